package contracts

import (
	"time"

	"gitlab.com/gomidi/midi/v2"
)

// Pitch is a MIDI note number, or ChordPitch.
type Pitch int

// ChordPitch is the placeholder resolved at build time to the pitches of the
// chord sounding in the current exercise bar.
const ChordPitch Pitch = -1

// NoteEvent is one note of a pattern step.
type NoteEvent struct {
	Channel  int     // MIDI channel, 1-16.
	Pitch    Pitch   // Note number (0-127) or ChordPitch.
	Velocity uint8   // Note-on velocity (0-127).
	Duration float64 // Length as a fraction of a whole note.
}

// Step groups the notes starting at one bar-relative offset in [0,1).
type Step struct {
	Offset float64
	Notes  []NoteEvent
}

// Bar is the ordered list of steps in one bar.
type Bar []Step

// Pattern is a sequence of bars, cycled across however many bars are requested.
type Pattern []Bar

// Track is a named backing pattern. Programs maps channel (1-16) to the
// program (0-127) selected when the device is initialized for the track.
type Track struct {
	Name     string
	Pattern  Pattern
	Programs map[int]uint8
}

// TimelineEvent is one outbound command at an offset from the playback origin.
type TimelineEvent struct {
	At      time.Duration
	Message midi.Message
}
