package contracts

import "time"

// PlaybackStatus is the scheduler state visible to callers.
type PlaybackStatus int

const (
	// Idle means no exercise is loaded.
	Idle PlaybackStatus = iota
	// Starting means Start was called and the origin is not captured yet.
	Starting
	// Playing means events are being dispatched.
	Playing
	// Paused means dispatch is suspended at a remembered position.
	Paused
)

func (s PlaybackStatus) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	}
	return "unknown"
}

// Position is a snapshot of where playback is, counting lead-in bars.
type Position struct {
	Status  PlaybackStatus
	Elapsed time.Duration // Musical time from the origin, at the exercise's own tempo.
	Bar     int           // Song bar, lead-in included.
	Beat    float64       // Fractional beat within Bar.
}

// Player plays a backing track for an exercise on a MIDI output.
type Player interface {
	Start(ex Exercise, track string, tempo float64) (time.Time, error) // Starts playback, returns the wall-clock origin.
	Stop()                                                             // Stops playback; no-op when idle.
	Pause() time.Duration                                              // Suspends playback, returns the musical position.
	Resume() time.Time                                                 // Continues a paused playback, returns the new origin.
	ChangeTrack(name string) error                                     // Switches backing track without moving position.
	ChangeTempo(tempo float64, origin time.Time)                       // Sets tempo; a non-zero origin moves the time base.
	Position() Position                                                // Current position.
	Ports() ([]string, error)                                          // Output destinations by preference, virtual last.
	PortName() string                                                  // Active destination.
	SwitchPort(name string) error                                      // Changes destination; prior one stays on failure.
	Tracks() []string                                                  // Known backing track names.
	Close() error                                                      // Stops, silences every channel, releases the device.
}
