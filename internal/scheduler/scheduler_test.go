package scheduler

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leandrodaf/chordpartner/internal/device/devicefake"
	"github.com/leandrodaf/chordpartner/internal/output"
	"github.com/leandrodaf/chordpartner/internal/patterns"
	"github.com/leandrodaf/chordpartner/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testExercise is 4/4 at 60 BPM: a 4s bar before tempo scaling.
type testExercise struct {
	length int
}

func (e testExercise) Tempo() float64                   { return 60 }
func (e testExercise) Length() int                      { return e.length }
func (e testExercise) BeatDuration() time.Duration      { return time.Second }
func (e testExercise) BarDuration() time.Duration       { return 4 * time.Second }
func (e testExercise) WholeNoteDuration() time.Duration { return 4 * time.Second }
func (e testExercise) Progression() []int               { return make([]int, e.length) }
func (e testExercise) ChordNotes(int) []uint8           { return []uint8{60, 64, 67} }

func hits(pitch contracts.Pitch, duration float64, offsets ...float64) contracts.Track {
	var bar contracts.Bar
	for _, o := range offsets {
		bar = append(bar, contracts.Step{Offset: o, Notes: []contracts.NoteEvent{
			{Channel: 10, Pitch: pitch, Velocity: 63, Duration: duration},
		}})
	}
	return contracts.Track{Pattern: contracts.Pattern{bar}}
}

type fixture struct {
	drv   *devicefake.Driver
	port  *output.Port
	sched *Scheduler
}

func newFixture(t *testing.T, tracks map[string]contracts.Track, mutate ...func(*Config)) *fixture {
	t.Helper()
	drv := devicefake.New("A", "B")
	port, err := output.New(drv, output.Config{})
	require.NoError(t, err)

	cfg := Config{
		Output:        port,
		Tracks:        tracks,
		LateTolerance: 100 * time.Millisecond,
		IdlePoll:      10 * time.Millisecond,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	s := New(cfg)
	t.Cleanup(func() {
		s.Close()
		_ = port.Close()
	})
	return &fixture{drv: drv, port: port, sched: s}
}

func (f *fixture) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.sched.Position().Status == contracts.Idle
	}, 5*time.Second, 5*time.Millisecond)
}

// notes keeps note-on and note-off messages.
func notes(sent []devicefake.Sent) []devicefake.Sent {
	var out []devicefake.Sent
	for _, s := range sent {
		if kind := s.Data[0] & 0xf0; kind == 0x90 || kind == 0x80 {
			out = append(out, s)
		}
	}
	return out
}

func noteOns(sent []devicefake.Sent) []devicefake.Sent {
	var out []devicefake.Sent
	for _, s := range notes(sent) {
		if s.Data[0]&0xf0 == 0x90 {
			out = append(out, s)
		}
	}
	return out
}

func TestStartPlaysWholeTimelineInOrder(t *testing.T) {
	f := newFixture(t, map[string]contracts.Track{"t": hits(35, 0.01, 0, 0.5)})

	// 4s bars at 60 BPM become 100ms bars at 2400 BPM
	origin, err := f.sched.Start(testExercise{length: 2}, "t", 2400)
	require.NoError(t, err)
	assert.False(t, origin.IsZero())
	f.waitIdle(t)

	sent := notes(f.drv.Sent())
	require.Len(t, sent, 8)
	offsets := []time.Duration{0, 50 * time.Millisecond, 100 * time.Millisecond, 150 * time.Millisecond}
	for i, on := range noteOns(sent) {
		assert.Equal(t, []byte{0x99, 35, 63}, on.Data)
		// never earlier than due minus the early window
		assert.False(t, on.At.Before(origin.Add(offsets[i]-DefaultEarlyTolerance-time.Millisecond)), "event %d early", i)
	}
	for i := 1; i < len(sent); i++ {
		assert.False(t, sent[i].At.Before(sent[i-1].At))
	}
}

func TestLeadInPrecedesExercise(t *testing.T) {
	lead := hits(37, 0.01, 0)
	f := newFixture(t, map[string]contracts.Track{"t": hits(35, 0.01, 0)}, func(c *Config) {
		c.LeadIn = lead
		c.LeadInBars = 2
	})

	_, err := f.sched.Start(testExercise{length: 1}, "t", 2400)
	require.NoError(t, err)
	f.waitIdle(t)

	var pitches []byte
	for _, on := range noteOns(f.drv.Sent()) {
		pitches = append(pitches, on.Data[1])
	}
	assert.Equal(t, []byte{37, 37, 35}, pitches)
}

func TestStopWhenIdleChangesNothing(t *testing.T) {
	f := newFixture(t, map[string]contracts.Track{"t": hits(35, 0.01, 0)})

	before := f.sched.Position()
	f.sched.Stop()
	f.sched.Stop()

	assert.Equal(t, before, f.sched.Position())
	assert.Empty(t, f.drv.Sent())
}

func TestStopSilencesAndReturnsToIdle(t *testing.T) {
	f := newFixture(t, map[string]contracts.Track{"t": hits(35, 0.5, 0)})

	_, err := f.sched.Start(testExercise{length: 100}, "t", 60)
	require.NoError(t, err)
	assert.Equal(t, contracts.Playing, f.sched.Position().Status)

	f.sched.Stop()
	f.waitIdle(t)

	require.Eventually(t, func() bool {
		silenced := 0
		for _, s := range f.drv.Sent() {
			if s.Data[0]&0xf0 == 0xb0 && s.Data[1] == 0x78 {
				silenced++
			}
		}
		return silenced == 16
	}, time.Second, 5*time.Millisecond)
}

func TestChangeTempoShiftsMonotonicOrigin(t *testing.T) {
	f := newFixture(t, map[string]contracts.Track{"t": hits(35, 0.01, 0)})
	s := f.sched

	origin, err := s.Start(testExercise{length: 100}, "t", 60)
	require.NoError(t, err)

	s.mu.Lock()
	mono := s.st.monoOrigin
	s.mu.Unlock()

	shifted := origin.Add(1500 * time.Millisecond)
	s.ChangeTempo(120, shifted)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, 1500*time.Millisecond, s.st.monoOrigin.Sub(mono))
	assert.True(t, s.st.wallOrigin.Equal(shifted))
	assert.Equal(t, 120.0, s.st.tempo)
}

func TestTempoChangeKeepsPositionContinuous(t *testing.T) {
	f := newFixture(t, map[string]contracts.Track{"t": hits(35, 0.01, 0)})
	s := f.sched

	origin, err := s.Start(testExercise{length: 100}, "t", 60)
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)

	now := time.Now()
	s.mu.Lock()
	before := s.positionLocked(now)
	s.mu.Unlock()

	s.ChangeTempo(90, RetimedOrigin(origin, now, 60, 90))

	s.mu.Lock()
	after := s.positionLocked(now)
	later := s.positionLocked(now.Add(time.Second))
	s.mu.Unlock()

	assert.InDelta(t, float64(before.Elapsed), float64(after.Elapsed), float64(time.Millisecond))
	// one real second at 90 BPM is 1.5s of 60 BPM music
	assert.InDelta(t, float64(after.Elapsed+1500*time.Millisecond), float64(later.Elapsed), float64(time.Millisecond))
}

func TestRetimedOrigin(t *testing.T) {
	origin := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	now := origin.Add(10 * time.Second)

	assert.Equal(t, now.Add(-5*time.Second), RetimedOrigin(origin, now, 60, 120))
	assert.Equal(t, now.Add(-20*time.Second), RetimedOrigin(origin, now, 120, 60))
}

func TestLateEventsAreDroppedAfterStall(t *testing.T) {
	track := contracts.Track{Pattern: contracts.Pattern{{
		{Offset: 0, Notes: []contracts.NoteEvent{{Channel: 10, Pitch: 35, Velocity: 63, Duration: 0.01}}},
		{Offset: 0.1, Notes: []contracts.NoteEvent{{Channel: 10, Pitch: 38, Velocity: 63, Duration: 0.01}}},
		{Offset: 0.5, Notes: []contracts.NoteEvent{{Channel: 10, Pitch: 42, Velocity: 63, Duration: 0.01}}},
	}}}
	f := newFixture(t, map[string]contracts.Track{"t": track}, func(c *Config) {
		c.LateTolerance = 50 * time.Millisecond
	})

	var stalled atomic.Bool
	f.drv.OnSend(func(_ string, data []byte) error {
		if data[0] == 0x99 && data[1] == 35 && !stalled.Swap(true) {
			time.Sleep(250 * time.Millisecond)
		}
		return nil
	})

	// 1s bars: 35 at 0ms, 38 at 100ms, 42 at 500ms, each 10ms long
	origin, err := f.sched.Start(testExercise{length: 1}, "t", 240)
	require.NoError(t, err)
	f.waitIdle(t)

	sent := notes(f.drv.Sent())
	require.Len(t, sent, 3)
	assert.Equal(t, []byte{0x99, 35, 63}, sent[0].Data)
	assert.Equal(t, []byte{0x99, 42, 63}, sent[1].Data)
	assert.Equal(t, []byte{0x89, 42, 0}, sent[2].Data)
	assert.False(t, sent[1].At.Before(origin.Add(500*time.Millisecond-2*time.Millisecond)))
}

func TestChangeTrackNeverRepeatsEvents(t *testing.T) {
	tracks := map[string]contracts.Track{
		"a": hits(35, 0.01, 0, 0.25, 0.5, 0.75),
		"b": hits(38, 0.01, 0, 0.25, 0.5, 0.75),
	}
	f := newFixture(t, tracks)

	// 400ms bars, a hit every 100ms
	_, err := f.sched.Start(testExercise{length: 4}, "a", 600)
	require.NoError(t, err)
	time.Sleep(730 * time.Millisecond)
	require.NoError(t, f.sched.ChangeTrack("b"))
	f.waitIdle(t)

	ons := noteOns(f.drv.Sent())
	assert.Len(t, ons, 16)
	seen := map[byte]int{}
	for _, on := range ons {
		seen[on.Data[1]]++
	}
	assert.Positive(t, seen[35])
	assert.Positive(t, seen[38])
	assert.Equal(t, byte(38), ons[len(ons)-1].Data[1])
}

func TestChangeTrackUnknown(t *testing.T) {
	f := newFixture(t, map[string]contracts.Track{"t": hits(35, 0.01, 0)})
	err := f.sched.ChangeTrack("polka")
	assert.ErrorIs(t, err, ErrUnknownTrack)
	assert.ErrorIs(t, err, patterns.ErrUnknownTrack)
}

func TestSwitchPortMidPlaybackKeepsTimeline(t *testing.T) {
	f := newFixture(t, map[string]contracts.Track{"t": hits(35, 0.01, 0, 0.25, 0.5, 0.75)})

	_, err := f.sched.Start(testExercise{length: 2}, "t", 600)
	require.NoError(t, err)
	time.Sleep(330 * time.Millisecond)
	require.NoError(t, f.port.Switch("B"))
	f.waitIdle(t)

	ons := noteOns(f.drv.Sent())
	require.Len(t, ons, 8)
	switched := false
	for _, on := range ons {
		if on.Port == "B" {
			switched = true
			continue
		}
		assert.False(t, switched, "send to A after switching to B")
	}
	assert.True(t, switched)
}

func TestDeviceInitOnStartAndPortSwitch(t *testing.T) {
	track := hits(35, 0.01, 0, 0.5)
	track.Programs = map[int]uint8{1: 5}
	f := newFixture(t, map[string]contracts.Track{"t": track})

	_, err := f.sched.Start(testExercise{length: 2}, "t", 240)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, f.port.Switch("B"))
	f.waitIdle(t)

	var programs []string
	for _, s := range f.drv.Sent() {
		if s.Data[0] == 0xc0 {
			assert.Equal(t, byte(5), s.Data[1])
			programs = append(programs, s.Port)
		}
	}
	assert.Equal(t, []string{"A", "B"}, programs)
	assert.Equal(t, byte(0xc0), f.drv.Sent()[0].Data[0])
}

func TestSendFailuresAreNotFatal(t *testing.T) {
	f := newFixture(t, map[string]contracts.Track{"t": hits(35, 0.01, 0, 0.5)})
	var attempts atomic.Int32
	f.drv.OnSend(func(string, []byte) error {
		attempts.Add(1)
		return errors.New("cable unplugged")
	})

	_, err := f.sched.Start(testExercise{length: 2}, "t", 2400)
	require.NoError(t, err)
	f.waitIdle(t)

	assert.GreaterOrEqual(t, int(attempts.Load()), 8)
	assert.Empty(t, notes(f.drv.Sent()))
}

func TestPauseResume(t *testing.T) {
	f := newFixture(t, map[string]contracts.Track{"t": hits(35, 0.01, 0)})
	s := f.sched

	_, err := s.Start(testExercise{length: 100}, "t", 60)
	require.NoError(t, err)
	time.Sleep(80 * time.Millisecond)

	at := s.Pause()
	assert.Greater(t, at, time.Duration(0))
	assert.Equal(t, at, s.Pause())
	pos := s.Position()
	assert.Equal(t, contracts.Paused, pos.Status)
	assert.Equal(t, at, pos.Elapsed)

	// the paused position does not depend on tempo
	s.ChangeTempo(120, time.Now())
	assert.Equal(t, at, s.Position().Elapsed)

	time.Sleep(50 * time.Millisecond)
	origin := s.Resume()
	resumed := s.Position()
	assert.Equal(t, contracts.Playing, resumed.Status)
	assert.InDelta(t, float64(at), float64(resumed.Elapsed), float64(30*time.Millisecond))
	// at 120 BPM half the real time covers the same music
	assert.InDelta(t, float64(time.Since(origin)), float64(at/2), float64(30*time.Millisecond))
}

func TestPauseAndResumeWhenNotApplicable(t *testing.T) {
	f := newFixture(t, map[string]contracts.Track{"t": hits(35, 0.01, 0)})

	assert.Equal(t, time.Duration(0), f.sched.Pause())
	assert.True(t, f.sched.Resume().IsZero())
	assert.Equal(t, contracts.Idle, f.sched.Position().Status)
}

func TestStartReplacesRunningPlayback(t *testing.T) {
	f := newFixture(t, map[string]contracts.Track{"t": hits(35, 0.01, 0)})

	first, err := f.sched.Start(testExercise{length: 100}, "t", 60)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	second, err := f.sched.Start(testExercise{length: 100}, "t", 60)
	require.NoError(t, err)

	assert.True(t, second.After(first))
	assert.Equal(t, contracts.Playing, f.sched.Position().Status)
}

func TestStartValidation(t *testing.T) {
	f := newFixture(t, map[string]contracts.Track{"t": hits(35, 0.01, 0)})

	_, err := f.sched.Start(testExercise{length: 1}, "nope", 60)
	assert.ErrorIs(t, err, ErrUnknownTrack)
	_, err = f.sched.Start(testExercise{length: 1}, "t", 0)
	assert.ErrorIs(t, err, ErrInvalidTempo)
}

func TestCloseIsIdempotentAndRejectsStart(t *testing.T) {
	f := newFixture(t, map[string]contracts.Track{"t": hits(35, 0.01, 0)})

	_, err := f.sched.Start(testExercise{length: 100}, "t", 60)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		f.sched.Close()
		f.sched.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}

	_, err = f.sched.Start(testExercise{length: 1}, "t", 60)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPositionReportsBarAndBeat(t *testing.T) {
	f := newFixture(t, map[string]contracts.Track{"t": hits(35, 0.01, 0)})
	s := f.sched

	_, err := s.Start(testExercise{length: 100}, "t", 60)
	require.NoError(t, err)

	s.mu.Lock()
	pos := s.positionLocked(s.st.monoOrigin.Add(9*time.Second + 500*time.Millisecond))
	s.mu.Unlock()

	assert.Equal(t, 2, pos.Bar)
	assert.InDelta(t, 1.5, pos.Beat, 1e-9)
	assert.Equal(t, 9500*time.Millisecond, pos.Elapsed)
}

func countOns(sent []devicefake.Sent) map[byte]int {
	counts := map[byte]int{}
	for _, on := range noteOns(sent) {
		counts[on.Data[1]]++
	}
	return counts
}

func TestTempoDropAfterEarlySendDoesNotRepeat(t *testing.T) {
	// 38 is 0.9ms after 35, inside the early window, so both go out together
	track := contracts.Track{Pattern: contracts.Pattern{{
		{Offset: 0, Notes: []contracts.NoteEvent{{Channel: 10, Pitch: 35, Velocity: 63, Duration: 0.01}}},
		{Offset: 0.000225, Notes: []contracts.NoteEvent{{Channel: 10, Pitch: 38, Velocity: 63, Duration: 0.01}}},
	}}}
	f := newFixture(t, map[string]contracts.Track{"t": track})

	var slowed atomic.Bool
	f.drv.OnSend(func(_ string, data []byte) error {
		if data[0] == 0x99 && data[1] == 38 && !slowed.Swap(true) {
			f.sched.ChangeTempo(30, time.Time{})
		}
		return nil
	})

	_, err := f.sched.Start(testExercise{length: 1}, "t", 60)
	require.NoError(t, err)
	time.Sleep(200 * time.Millisecond)
	f.sched.Stop()
	f.waitIdle(t)

	require.True(t, slowed.Load())
	assert.Equal(t, map[byte]int{35: 1, 38: 1}, countOns(f.drv.Sent()))
}

func TestTempoChangeNeverRepeatsOrSkipsEvents(t *testing.T) {
	for _, tempo := range []float64{300, 1200} {
		t.Run(fmt.Sprint(tempo), func(t *testing.T) {
			f := newFixture(t, map[string]contracts.Track{"t": hits(35, 0.01, 0, 0.25, 0.5, 0.75)})

			// 400ms bars, a hit every 100ms
			origin, err := f.sched.Start(testExercise{length: 4}, "t", 600)
			require.NoError(t, err)
			time.Sleep(330 * time.Millisecond)
			f.sched.ChangeTempo(tempo, RetimedOrigin(origin, time.Now(), 600, tempo))
			f.waitIdle(t)

			assert.Len(t, noteOns(f.drv.Sent()), 16)
		})
	}
}

func TestResumeNeverRepeatsOrSkipsEvents(t *testing.T) {
	f := newFixture(t, map[string]contracts.Track{"t": hits(35, 0.01, 0, 0.25, 0.5, 0.75)})

	_, err := f.sched.Start(testExercise{length: 2}, "t", 600)
	require.NoError(t, err)
	time.Sleep(250 * time.Millisecond)
	f.sched.Pause()
	time.Sleep(50 * time.Millisecond)
	f.sched.Resume()
	f.waitIdle(t)

	assert.Len(t, noteOns(f.drv.Sent()), 8)
}

func TestMalformedTracksPanicAtConstruction(t *testing.T) {
	port, err := output.New(devicefake.New("A"), output.Config{})
	require.NoError(t, err)
	defer port.Close()

	badChannel := contracts.Track{Pattern: contracts.Pattern{{
		{Offset: 0, Notes: []contracts.NoteEvent{{Channel: 17, Pitch: 35, Velocity: 63, Duration: 0.25}}},
	}}}
	assert.Panics(t, func() {
		New(Config{Output: port, Tracks: map[string]contracts.Track{"bad": badChannel}})
	})
	assert.Panics(t, func() {
		New(Config{Output: port, Tracks: map[string]contracts.Track{"empty": {}}})
	})
	assert.Panics(t, func() {
		New(Config{Output: port, LeadIn: badChannel, LeadInBars: 1})
	})
	assert.Panics(t, func() {
		New(Config{Output: port, LeadInBars: -1})
	})
}

func TestCloseReleasesBlockedStart(t *testing.T) {
	f := newFixture(t, map[string]contracts.Track{"t": hits(35, 0.01, 0)})

	stalled := make(chan struct{})
	var once atomic.Bool
	f.drv.OnSend(func(_ string, data []byte) error {
		if data[0] == 0x99 && !once.Swap(true) {
			close(stalled)
			time.Sleep(300 * time.Millisecond)
		}
		return nil
	})

	_, err := f.sched.Start(testExercise{length: 100}, "t", 60)
	require.NoError(t, err)
	<-stalled

	// the loop is busy sending, so this Start cannot get an origin
	result := make(chan error, 1)
	go func() {
		_, err := f.sched.Start(testExercise{length: 100}, "t", 60)
		result <- err
	}()
	time.Sleep(50 * time.Millisecond)
	f.sched.Close()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return")
	}
}
