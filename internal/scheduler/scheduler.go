// Package scheduler runs the real-time dispatch loop that plays a backing
// track timeline on a MIDI output.
package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/leandrodaf/chordpartner/internal/logger"
	"github.com/leandrodaf/chordpartner/internal/patterns"
	"github.com/leandrodaf/chordpartner/internal/timeline"
	"github.com/leandrodaf/chordpartner/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
)

// Defaults for the dispatch windows. The loop's wait has coarse granularity:
// events up to EarlyTolerance ahead are sent now, events more than
// LateTolerance behind are dropped.
const (
	DefaultEarlyTolerance = time.Millisecond
	DefaultLateTolerance  = 20 * time.Millisecond
	DefaultIdlePoll       = 100 * time.Millisecond
)

// Error definitions for playback control.
var (
	ErrUnknownTrack = patterns.ErrUnknownTrack
	ErrInvalidTempo = errors.New("tempo must be positive")
	ErrClosed       = errors.New("scheduler closed")
)

// Output is where the loop sends commands.
type Output interface {
	Send(msg []byte) error
	Silence() error
	Generation() uint64
}

// Config wires a Scheduler.
type Config struct {
	Output         Output
	Tracks         map[string]contracts.Track
	LeadIn         contracts.Track
	LeadInBars     int
	EarlyTolerance time.Duration
	LateTolerance  time.Duration
	IdlePoll       time.Duration
	Clock          contracts.Clock
	Logger         contracts.Logger
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// state is the shared playback state. Every access holds Scheduler.mu.
type state struct {
	exercise   contracts.Exercise
	trackName  string
	tempo      float64
	wallOrigin time.Time // origin without monotonic reading
	monoOrigin time.Time // origin used for dispatch, monotonic when the clock provides it
	dirty      bool
	quit       bool

	status      contracts.PlaybackStatus
	startSeq    uint64        // bumped by Start and Resume
	fresh       bool          // the next origin starts from the beginning
	originSeq   uint64        // startSeq whose origin has been captured
	startOffset time.Duration // real time already played when the origin is captured
	pausedAt    time.Duration // musical position at the exercise tempo
	decided     time.Duration // musical offset of the last sent or dropped event, -1 before the first
}

// Scheduler owns the dispatch goroutine and the playback state.
type Scheduler struct {
	mu   sync.Mutex
	cond *sync.Cond
	wake chan struct{}
	done chan struct{}
	once sync.Once
	st   state

	out        Output
	tracks     map[string]contracts.Track
	leadIn     contracts.Track
	builder    timeline.Builder
	leadInBars int
	early      time.Duration
	late       time.Duration
	idlePoll   time.Duration
	clock      contracts.Clock
	logger     contracts.Logger

	// owned by the loop goroutine
	initTrack string
	initGen   uint64
	inited    bool
}

// New starts the dispatch goroutine. Close stops it.
func New(cfg Config) *Scheduler {
	if cfg.EarlyTolerance <= 0 {
		cfg.EarlyTolerance = DefaultEarlyTolerance
	}
	if cfg.LateTolerance <= 0 {
		cfg.LateTolerance = DefaultLateTolerance
	}
	if cfg.IdlePoll <= 0 {
		cfg.IdlePoll = DefaultIdlePoll
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	if cfg.LeadInBars < 0 {
		panic("scheduler: negative lead-in bars")
	}
	if cfg.LeadInBars > 0 {
		if err := timeline.ValidateTrack(cfg.LeadIn); err != nil {
			panic(fmt.Sprintf("scheduler: lead-in: %v", err))
		}
	}
	for name, t := range cfg.Tracks {
		if err := timeline.ValidateTrack(t); err != nil {
			panic(fmt.Sprintf("scheduler: track %q: %v", name, err))
		}
	}

	s := &Scheduler{
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		out:        cfg.Output,
		tracks:     cfg.Tracks,
		leadIn:     cfg.LeadIn,
		builder:    timeline.Builder{LeadIn: cfg.LeadInBars},
		leadInBars: cfg.LeadInBars,
		early:      cfg.EarlyTolerance,
		late:       cfg.LateTolerance,
		idlePoll:   cfg.IdlePoll,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
	}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// notifyLocked wakes the loop and any caller blocked in Start or Resume.
func (s *Scheduler) notifyLocked() {
	s.cond.Broadcast()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// waitLocked releases the lock for at most d or until notified.
func (s *Scheduler) waitLocked(d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	s.mu.Unlock()
	select {
	case <-s.wake:
	case <-t.C:
	}
	t.Stop()
	s.mu.Lock()
}

// awaitOriginLocked blocks until the loop captured the origin for seq. It
// fails with ErrClosed when the scheduler quits first.
func (s *Scheduler) awaitOriginLocked(seq uint64) (time.Time, error) {
	for s.st.originSeq < seq {
		if s.st.quit {
			return time.Time{}, ErrClosed
		}
		s.cond.Wait()
	}
	return s.st.wallOrigin, nil
}

// Start plays ex from the beginning with the named track and returns the
// wall-clock origin once the loop has captured it. A running playback is
// replaced.
func (s *Scheduler) Start(ex contracts.Exercise, track string, tempo float64) (time.Time, error) {
	if tempo <= 0 {
		return time.Time{}, ErrInvalidTempo
	}
	if _, ok := s.tracks[track]; !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownTrack, track)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.quit {
		return time.Time{}, ErrClosed
	}

	s.st.exercise = ex
	s.st.trackName = track
	s.st.tempo = tempo
	s.st.dirty = true
	s.st.status = contracts.Starting
	s.st.startOffset = 0
	s.st.pausedAt = 0
	s.st.fresh = true
	s.st.startSeq++
	seq := s.st.startSeq
	s.notifyLocked()

	return s.awaitOriginLocked(seq)
}

// Stop ends playback. Stopping an idle scheduler changes nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.status == contracts.Idle && s.st.exercise == nil {
		return
	}

	s.st.exercise = nil
	s.st.status = contracts.Idle
	s.st.pausedAt = 0
	if s.st.originSeq < s.st.startSeq {
		// release a Start that lost the race
		s.st.originSeq = s.st.startSeq
		s.st.wallOrigin = time.Time{}
	}
	s.notifyLocked()
}

// Pause suspends dispatch and returns the musical position, measured at the
// exercise's own tempo. It is a no-op unless playing.
func (s *Scheduler) Pause() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.st.status {
	case contracts.Paused:
		return s.st.pausedAt
	case contracts.Playing:
	default:
		return 0
	}

	s.st.pausedAt = s.elapsedLocked(s.clock.Now())
	s.st.status = contracts.Paused
	s.notifyLocked()
	return s.st.pausedAt
}

// Resume continues a paused playback from the pause position at the current
// tempo and returns the new wall-clock origin. It is a no-op unless paused
// and returns the zero time if the scheduler closes meanwhile.
func (s *Scheduler) Resume() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.status != contracts.Paused {
		return s.st.wallOrigin
	}

	ex := s.st.exercise
	s.st.startOffset = timeline.Scale(s.st.pausedAt, ex, s.st.tempo)
	s.st.fresh = false
	s.st.status = contracts.Starting
	s.st.dirty = true
	s.st.startSeq++
	seq := s.st.startSeq
	s.notifyLocked()

	origin, _ := s.awaitOriginLocked(seq)
	return origin
}

// ChangeTrack switches the backing track. Playback position is kept.
func (s *Scheduler) ChangeTrack(name string) error {
	if _, ok := s.tracks[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTrack, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.trackName = name
	s.st.dirty = true
	s.notifyLocked()
	return nil
}

// ChangeTempo sets the tempo. When origin is non-zero and playback is
// running, the time base moves: the monotonic origin shifts by the same
// amount as the wall-clock origin. While paused only the tempo is recorded,
// the pause position being tempo independent.
func (s *Scheduler) ChangeTempo(tempo float64, origin time.Time) {
	if tempo <= 0 {
		s.logger.Warn("Ignoring non-positive tempo", s.logger.Field().Float64("tempo", tempo))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.tempo = tempo
	if !origin.IsZero() && s.st.status == contracts.Playing {
		origin = origin.Round(0)
		s.st.monoOrigin = s.st.monoOrigin.Add(origin.Sub(s.st.wallOrigin))
		s.st.wallOrigin = origin
	}
	s.st.dirty = true
	s.notifyLocked()
}

// RetimedOrigin returns the origin that keeps the musical position at now
// unchanged when the tempo goes from oldTempo to newTempo.
func RetimedOrigin(origin, now time.Time, oldTempo, newTempo float64) time.Time {
	played := now.Sub(origin)
	return now.Add(-time.Duration(float64(played) * oldTempo / newTempo))
}

// Position reports where playback is.
func (s *Scheduler) Position() contracts.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked(s.clock.Now())
}

func (s *Scheduler) positionLocked(now time.Time) contracts.Position {
	pos := contracts.Position{Status: s.st.status}
	ex := s.st.exercise
	if ex == nil {
		return pos
	}
	switch s.st.status {
	case contracts.Playing:
		pos.Elapsed = s.elapsedLocked(now)
	case contracts.Paused:
		pos.Elapsed = s.st.pausedAt
	default:
		return pos
	}
	bar := ex.BarDuration()
	pos.Bar = int(pos.Elapsed / bar)
	pos.Beat = float64(pos.Elapsed%bar) / float64(ex.BeatDuration())
	return pos
}

// elapsedLocked converts real time since the origin into musical time at the
// exercise tempo.
func (s *Scheduler) elapsedLocked(now time.Time) time.Duration {
	played := now.Sub(s.st.monoOrigin)
	if played < 0 {
		return 0
	}
	return time.Duration(float64(played) * s.st.tempo / s.st.exercise.Tempo())
}

// Close stops the loop and waits for it to exit. It does not touch the output.
func (s *Scheduler) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.st.quit = true
		s.notifyLocked()
		s.mu.Unlock()
		<-s.done
	})
}

func (s *Scheduler) run() {
	defer close(s.done)
	s.mu.Lock()
	defer s.mu.Unlock()

	for !s.st.quit {
		if s.st.status == contracts.Starting {
			s.playLocked()
			continue
		}
		s.waitLocked(s.idlePoll)
	}
}

// playLocked captures the origin and dispatches until the timeline is
// exhausted, playback is stopped or paused, or the scheduler quits.
func (s *Scheduler) playLocked() {
	st := &s.st
	now := s.clock.Now()
	st.monoOrigin = now.Add(-st.startOffset)
	st.wallOrigin = st.monoOrigin.Round(0)
	if st.fresh {
		st.decided = -1
		s.inited = false
	}
	st.status = contracts.Playing
	st.originSeq = st.startSeq
	s.cond.Broadcast()
	s.logger.Info("Playback started",
		s.logger.Field().String("track", st.trackName),
		s.logger.Field().Float64("tempo", st.tempo),
		s.logger.Field().Duration("offset", st.startOffset))

	var (
		events               []contracts.TimelineEvent
		sent, dropped, fails int
	)
	for !st.quit && st.status == contracts.Playing {
		var batch []midi.Message
		if st.dirty {
			events = s.rebuildLocked()
			st.dirty = false
		}
		if gen := s.out.Generation(); !s.inited || gen != s.initGen || s.initTrack != st.trackName {
			batch = append(batch, timeline.Programs(s.tracks[st.trackName])...)
			s.inited, s.initGen, s.initTrack = true, gen, st.trackName
		}

		if len(events) == 0 && len(batch) == 0 {
			st.status = contracts.Idle
			st.exercise = nil
			break
		}

		now := s.clock.Now()
		if len(events) > 0 {
			if lag := now.Sub(s.dueLocked(events[0])); lag < -s.early && len(batch) == 0 {
				s.waitLocked(-lag)
				continue
			}
		}
		for len(events) > 0 {
			lag := now.Sub(s.dueLocked(events[0]))
			if lag < -s.early {
				break
			}
			if lag < s.late {
				batch = append(batch, events[0].Message)
			} else {
				dropped++
				s.logger.Debug("Dropping late event", s.logger.Field().Duration("lag", lag))
			}
			st.decided = events[0].At
			events = events[1:]
		}

		s.mu.Unlock()
		for _, msg := range batch {
			if err := s.out.Send(msg); err != nil {
				if fails == 0 {
					s.logger.Warn("MIDI send failed, playback continues silently", s.logger.Field().Error("error", err))
				}
				fails++
				continue
			}
			sent++
		}
		s.mu.Lock()
	}

	if !st.quit {
		s.mu.Unlock()
		if err := s.out.Silence(); err != nil {
			s.logger.Debug("Could not silence output", s.logger.Field().Error("error", err))
		}
		s.mu.Lock()
	}
	s.cond.Broadcast()
	s.logger.Info("Playback ended",
		s.logger.Field().String("status", st.status.String()),
		s.logger.Field().Int("sent", sent),
		s.logger.Field().Int("dropped", dropped),
		s.logger.Field().Int("failed", fails))
}

// dueLocked is when ev fires at the current tempo and origin.
func (s *Scheduler) dueLocked(ev contracts.TimelineEvent) time.Time {
	return s.st.monoOrigin.Add(timeline.Scale(ev.At, s.st.exercise, s.st.tempo))
}

// rebuildLocked builds lead-in and main timelines in musical time, at the
// exercise's own tempo, and discards events already decided on.
func (s *Scheduler) rebuildLocked() []contracts.TimelineEvent {
	st := &s.st
	ex := st.exercise

	var events []contracts.TimelineEvent
	if s.leadInBars > 0 {
		events = s.builder.Build(s.leadIn.Pattern, s.leadInBars, 0, ex, ex.Tempo())
	}
	if ex.Length() > 0 {
		main := s.builder.Build(s.tracks[st.trackName].Pattern, ex.Length(), s.leadInBars, ex, ex.Tempo())
		events = append(events, main...)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].At < events[j].At })

	skipped := 0
	for len(events) > 0 && events[0].At <= st.decided {
		events = events[1:]
		skipped++
	}
	s.logger.Debug("Timeline rebuilt",
		s.logger.Field().String("track", st.trackName),
		s.logger.Field().Float64("tempo", st.tempo),
		s.logger.Field().Int("events", len(events)),
		s.logger.Field().Int("skipped", skipped))
	return events
}
