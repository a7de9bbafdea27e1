// Package patterns holds the built-in backing tracks.
package patterns

import (
	"errors"
	"fmt"
	"sort"

	"github.com/leandrodaf/chordpartner/sdk/contracts"
)

// ErrUnknownTrack is returned when a track name is not in the library.
var ErrUnknownTrack = errors.New("unknown backing track")

// General MIDI drum kit notes and channels.
const (
	DrumBass     contracts.Pitch = 35
	DrumStick    contracts.Pitch = 37
	DrumSnare    contracts.Pitch = 38
	DrumHiHat    contracts.Pitch = 42
	ChannelDrums                 = 10
	ChannelChord                 = 1
)

// LeadInBars is the default count-off length.
const LeadInBars = 2

// DefaultTrack is played when no track is selected.
const DefaultTrack = "straight"

const (
	half  = 63 // velocity 0.5
	comp  = 80
	piano = 0 // acoustic grand
)

func drum(pitch contracts.Pitch, duration float64) contracts.NoteEvent {
	return contracts.NoteEvent{Channel: ChannelDrums, Pitch: pitch, Velocity: half, Duration: duration}
}

func chord(duration float64) contracts.NoteEvent {
	return contracts.NoteEvent{Channel: ChannelChord, Pitch: contracts.ChordPitch, Velocity: comp, Duration: duration}
}

func step(offset float64, notes ...contracts.NoteEvent) contracts.Step {
	return contracts.Step{Offset: offset, Notes: notes}
}

// LeadIn is the count-off: two half notes, then four quarter notes on sticks.
var LeadIn = contracts.Track{
	Name: "lead-in",
	Pattern: contracts.Pattern{
		{
			step(0.0, drum(DrumStick, 0.5)),
			step(0.5, drum(DrumStick, 0.5)),
		},
		{
			step(0.0, drum(DrumStick, 0.25)),
			step(0.25, drum(DrumStick, 0.25)),
			step(0.5, drum(DrumStick, 0.25)),
			step(0.75, drum(DrumStick, 0.25)),
		},
	},
}

// groove builds a one-bar rock beat with hi-hats at the given offsets.
func groove(hats [8]float64, chords ...contracts.Step) contracts.Pattern {
	var bar contracts.Bar
	for i, at := range hats {
		notes := []contracts.NoteEvent{drum(DrumHiHat, 0.125)}
		switch i {
		case 0, 4:
			notes = append([]contracts.NoteEvent{drum(DrumBass, 0.5)}, notes...)
		case 2, 6:
			notes = append([]contracts.NoteEvent{drum(DrumSnare, 0.25)}, notes...)
		}
		bar = append(bar, step(at, notes...))
	}
	for _, c := range chords {
		bar = mergeStep(bar, c)
	}
	return contracts.Pattern{bar}
}

// mergeStep adds s to bar, joining a step with the same offset.
func mergeStep(bar contracts.Bar, s contracts.Step) contracts.Bar {
	for i := range bar {
		if bar[i].Offset == s.Offset {
			bar[i].Notes = append(bar[i].Notes, s.Notes...)
			return bar
		}
	}
	bar = append(bar, s)
	sort.SliceStable(bar, func(i, j int) bool { return bar[i].Offset < bar[j].Offset })
	return bar
}

var (
	straightHats = [8]float64{0.0, 0.125, 0.25, 0.375, 0.5, 0.625, 0.75, 0.875}
	swingHats    = [8]float64{0.0, 0.167, 0.25, 0.417, 0.5, 0.667, 0.75, 0.917}
)

// Tracks returns a fresh copy of the built-in main tracks keyed by name.
func Tracks() map[string]contracts.Track {
	pianoProgram := map[int]uint8{ChannelChord: piano}
	return map[string]contracts.Track{
		"straight": {Name: "straight", Pattern: groove(straightHats)},
		"swing":    {Name: "swing", Pattern: groove(swingHats)},
		"straight-comp": {
			Name:     "straight-comp",
			Pattern:  groove(straightHats, step(0.0, chord(0.375)), step(0.5, chord(0.375))),
			Programs: pianoProgram,
		},
		"swing-comp": {
			Name:     "swing-comp",
			Pattern:  groove(swingHats, step(0.0, chord(0.25)), step(0.417, chord(0.5))),
			Programs: pianoProgram,
		},
	}
}

// Library is a set of named tracks.
type Library map[string]contracts.Track

// Lookup returns the named track.
func (l Library) Lookup(name string) (contracts.Track, error) {
	t, ok := l[name]
	if !ok {
		return contracts.Track{}, fmt.Errorf("%w: %q", ErrUnknownTrack, name)
	}
	return t, nil
}

// Names returns the track names in lexical order.
func (l Library) Names() []string {
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
