package contracts

import (
	"regexp"
	"time"
)

// PortWeight ranks output destinations whose name matches Pattern.
// Lower weights sort first; names matching no entry weigh 0.
type PortWeight struct {
	Pattern *regexp.Regexp
	Weight  int
}

// Clock returns the current time. Tests replace it to pin instants.
type Clock interface {
	Now() time.Time
}

// PlayerOptions defines the configuration options for the player.
type PlayerOptions struct {
	Logger          Logger        // Logger for logging events and errors.
	LogLevel        LogLevel      // Level of logging to use.
	LogFilePath     string        // File path for logging if file logging is enabled.
	Driver          DeviceDriver  // Device layer; chosen per OS when nil.
	PortName        string        // Preferred output destination, empty for the best ranked one.
	VirtualPortName string        // Name announced by the self-hosted destination.
	PortWeights     []PortWeight  // Preference table used to order destinations.
	LeadInBars      *int          // Count-off bars before the exercise; nil for the default.
	EarlyTolerance  time.Duration // How early an event may be sent.
	LateTolerance   time.Duration // Events later than this are dropped.
	IdlePoll        time.Duration // Bounded wait while no exercise is loaded.
	Tracks          map[string]Track
	LeadInTrack     *Track
	Clock           Clock
}

// Option is a function that modifies PlayerOptions.
type Option func(*PlayerOptions)

// WithLogger sets the logger for the player.
func WithLogger(l Logger) Option {
	return func(opts *PlayerOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level for the player.
func WithLogLevel(level LogLevel) Option {
	return func(opts *PlayerOptions) {
		opts.LogLevel = level
	}
}

// WithLogFile sends log output to the given file.
func WithLogFile(path string) Option {
	return func(opts *PlayerOptions) {
		opts.LogFilePath = path
	}
}

// WithDriver overrides the per-OS device layer.
func WithDriver(d DeviceDriver) Option {
	return func(opts *PlayerOptions) {
		opts.Driver = d
	}
}

// WithPortName selects the output destination opened at startup.
func WithPortName(name string) Option {
	return func(opts *PlayerOptions) {
		opts.PortName = name
	}
}

// WithVirtualPortName sets the name of the self-hosted destination.
func WithVirtualPortName(name string) Option {
	return func(opts *PlayerOptions) {
		opts.VirtualPortName = name
	}
}

// WithPortWeights replaces the destination preference table.
func WithPortWeights(weights []PortWeight) Option {
	return func(opts *PlayerOptions) {
		opts.PortWeights = weights
	}
}

// WithLeadInBars sets the number of count-off bars.
func WithLeadInBars(bars int) Option {
	return func(opts *PlayerOptions) {
		opts.LeadInBars = &bars
	}
}

// WithTolerances sets the early and late dispatch windows.
func WithTolerances(early, late time.Duration) Option {
	return func(opts *PlayerOptions) {
		opts.EarlyTolerance = early
		opts.LateTolerance = late
	}
}

// WithTracks adds backing tracks to the built-in library, replacing same-named ones.
func WithTracks(tracks map[string]Track) Option {
	return func(opts *PlayerOptions) {
		if opts.Tracks == nil {
			opts.Tracks = make(map[string]Track, len(tracks))
		}
		for name, t := range tracks {
			opts.Tracks[name] = t
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(opts *PlayerOptions) {
		opts.Clock = c
	}
}
