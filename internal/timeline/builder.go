// Package timeline turns declarative patterns into time-ordered MIDI events.
package timeline

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/leandrodaf/chordpartner/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
)

// AllSoundOff is the channel-mode controller that silences a channel.
const AllSoundOff = 0x78

// Builder converts patterns to timelines. LeadIn is the number of song bars
// preceding the first exercise bar; chord placeholders resolve against
// exercise bar = song bar - LeadIn.
type Builder struct {
	LeadIn int
}

// Scale converts a duration taken at the exercise tempo to the given tempo.
func Scale(d time.Duration, ex contracts.Exercise, tempo float64) time.Duration {
	if tempo == ex.Tempo() {
		return d
	}
	return time.Duration(float64(d) * ex.Tempo() / tempo)
}

// Build generates events for barCount bars starting at song bar startBar,
// cycling pattern bars. Offsets are relative to the playback origin. Every
// note yields exactly one note-on and one matching note-off.
//
// Malformed patterns (empty, bad channel, offset outside [0,1)) panic.
func (b Builder) Build(pattern contracts.Pattern, barCount, startBar int, ex contracts.Exercise, tempo float64) []contracts.TimelineEvent {
	if err := Validate(pattern); err != nil {
		panic("timeline: " + err.Error())
	}

	barDur := float64(Scale(ex.BarDuration(), ex, tempo))
	wholeDur := float64(Scale(ex.WholeNoteDuration(), ex, tempo))

	var events []contracts.TimelineEvent
	for bar := 0; bar < barCount; bar++ {
		songBar := startBar + bar
		exBar := songBar - b.LeadIn
		for _, step := range pattern[bar%len(pattern)] {
			on := time.Duration((float64(songBar) + step.Offset) * barDur)
			for _, note := range step.Notes {
				length := time.Duration(note.Duration * wholeDur)
				if note.Pitch != contracts.ChordPitch {
					events = appendNote(events, note, uint8(note.Pitch), on, length)
					continue
				}
				if exBar < 0 || exBar >= ex.Length() {
					continue
				}
				for _, pitch := range ex.ChordNotes(exBar) {
					events = appendNote(events, note, pitch, on, length)
				}
			}
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].At < events[j].At
	})
	return events
}

func appendNote(events []contracts.TimelineEvent, note contracts.NoteEvent, pitch uint8, on, length time.Duration) []contracts.TimelineEvent {
	ch := Channel(note.Channel)
	key := pitch & 0x7f
	return append(events,
		contracts.TimelineEvent{At: on, Message: midi.NoteOn(ch, key, note.Velocity&0x7f)},
		contracts.TimelineEvent{At: on + length, Message: midi.NoteOff(ch, key)},
	)
}

// ErrMalformedPattern is returned by Validate.
var ErrMalformedPattern = errors.New("malformed pattern")

// Validate reports the first defect that would make Build panic.
func Validate(pattern contracts.Pattern) error {
	if len(pattern) == 0 {
		return fmt.Errorf("%w: empty pattern", ErrMalformedPattern)
	}
	for i, bar := range pattern {
		for _, step := range bar {
			if step.Offset < 0 || step.Offset >= 1 {
				return fmt.Errorf("%w: bar %d: step offset %v outside [0,1)", ErrMalformedPattern, i, step.Offset)
			}
			for _, note := range step.Notes {
				if note.Channel < 1 || note.Channel > 16 {
					return fmt.Errorf("%w: bar %d: channel %d outside 1-16", ErrMalformedPattern, i, note.Channel)
				}
			}
		}
	}
	return nil
}

// ValidateTrack checks the pattern and the program channels of t.
func ValidateTrack(t contracts.Track) error {
	if err := Validate(t.Pattern); err != nil {
		return err
	}
	for ch := range t.Programs {
		if ch < 1 || ch > 16 {
			return fmt.Errorf("%w: program channel %d outside 1-16", ErrMalformedPattern, ch)
		}
	}
	return nil
}

// Channel maps a 1-16 channel number to the 0-15 wire nibble.
func Channel(channel int) uint8 {
	if channel < 1 || channel > 16 {
		panic(fmt.Sprintf("timeline: channel %d outside 1-16", channel))
	}
	return uint8(channel - 1)
}

// Programs returns the program change messages that initialize a device for track.
func Programs(track contracts.Track) []midi.Message {
	channels := make([]int, 0, len(track.Programs))
	for ch := range track.Programs {
		channels = append(channels, ch)
	}
	sort.Ints(channels)

	msgs := make([]midi.Message, 0, len(channels))
	for _, ch := range channels {
		msgs = append(msgs, midi.ProgramChange(Channel(ch), track.Programs[ch]&0x7f))
	}
	return msgs
}

// Silence returns the all-sound-off command for a 0-15 channel nibble.
func Silence(channel uint8) midi.Message {
	return midi.ControlChange(channel&0x0f, AllSoundOff, 0)
}
