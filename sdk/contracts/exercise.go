package contracts

import "time"

// Exercise is the musical content a player accompanies. Durations are
// expressed at the exercise's own tempo; implementations are immutable.
type Exercise interface {
	Tempo() float64                   // Beats per minute the durations were computed for.
	Length() int                      // Number of bars, lead-in excluded.
	BarDuration() time.Duration       // Duration of one bar.
	BeatDuration() time.Duration      // Duration of one beat.
	WholeNoteDuration() time.Duration // Duration of a whole note.
	Progression() []int               // Chord degree (0-6) per bar.
	ChordNotes(bar int) []uint8       // MIDI pitches of the chord for an exercise bar.
}
