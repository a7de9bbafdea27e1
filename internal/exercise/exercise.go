// Package exercise generates chord exercises: a scale and a chord progression
// to play over a backing track.
package exercise

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/leandrodaf/chordpartner/sdk/contracts"
)

var (
	ErrUnknownRoot          = errors.New("unknown scale root")
	ErrUnknownMode          = errors.New("unknown scale mode")
	ErrUnknownHarmonization = errors.New("unknown harmonization")
	ErrUnknownProgression   = errors.New("unknown progression")
	ErrInvalidTempo         = errors.New("tempo must be positive")
)

const (
	DefaultTempo  = 60
	DefaultLength = 10
	BeatsInBar    = 4
)

// Config selects what to generate. Zero values pick defaults; an empty Root
// or Progression is chosen at random.
type Config struct {
	Tempo         float64
	Length        int
	Root          string
	Mode          Mode
	Harmonization Harmonization
	Progression   string
	Rand          *rand.Rand
}

// Exercise is an immutable chord exercise. It implements contracts.Exercise.
type Exercise struct {
	tempo         float64
	root          string
	rootPC        int
	mode          Mode
	harmonization Harmonization
	progression   []int
	chords        [][]uint8
	names         []string
}

var _ contracts.Exercise = (*Exercise)(nil)

// New generates an exercise.
func New(cfg Config) (*Exercise, error) {
	if cfg.Tempo == 0 {
		cfg.Tempo = DefaultTempo
	}
	if cfg.Tempo < 0 {
		return nil, ErrInvalidTempo
	}
	if cfg.Length <= 0 {
		cfg.Length = DefaultLength
	}
	if cfg.Mode == "" {
		cfg.Mode = Major
	}
	if cfg.Harmonization == "" {
		cfg.Harmonization = Triads
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if _, ok := scales[cfg.Mode]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Mode)
	}
	if _, ok := harmonizations[cfg.Harmonization]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHarmonization, cfg.Harmonization)
	}

	ex := &Exercise{tempo: cfg.Tempo, mode: cfg.Mode, harmonization: cfg.Harmonization}

	if cfg.Root == "" {
		s := scales[cfg.Mode]
		ex.root = s[cfg.Rand.Intn(len(s))]
		ex.rootPC, _ = NoteNumber(ex.root)
	} else {
		pc, err := NoteNumber(cfg.Root)
		if err != nil {
			return nil, err
		}
		ex.rootPC = pc
		ex.root = NormalizeRoot(pc, cfg.Mode)
	}

	if cfg.Progression == "" {
		ex.progression = make([]int, cfg.Length)
		for i := range ex.progression {
			ex.progression[i] = cfg.Rand.Intn(len(Roman))
		}
	} else {
		p, err := Progression(cfg.Progression, cfg.Length)
		if err != nil {
			return nil, err
		}
		ex.progression = p
	}

	for _, deg := range ex.progression {
		ex.chords = append(ex.chords, chordPitches(ex.rootPC, deg, ex.mode, ex.harmonization))
		ex.names = append(ex.names, ChordName(ex.root, deg, ex.mode, ex.harmonization))
	}
	return ex, nil
}

func (e *Exercise) Tempo() float64 { return e.tempo }

func (e *Exercise) Length() int { return len(e.progression) }

func (e *Exercise) BeatDuration() time.Duration {
	return time.Duration(60 / e.tempo * float64(time.Second))
}

func (e *Exercise) BarDuration() time.Duration { return BeatsInBar * e.BeatDuration() }

func (e *Exercise) WholeNoteDuration() time.Duration {
	return time.Duration(60 * 4 / e.tempo * float64(time.Second))
}

func (e *Exercise) Progression() []int {
	return append([]int(nil), e.progression...)
}

// ChordNotes returns the pitches of the chord in exercise bar bar, or nil
// outside the exercise.
func (e *Exercise) ChordNotes(bar int) []uint8 {
	if bar < 0 || bar >= len(e.chords) {
		return nil
	}
	return append([]uint8(nil), e.chords[bar]...)
}

// ChordName returns the chord name of an exercise bar.
func (e *Exercise) ChordName(bar int) string {
	if bar < 0 || bar >= len(e.names) {
		return ""
	}
	return e.names[bar]
}

// ScaleName is the scale being practiced, such as "D-major".
func (e *Exercise) ScaleName() string {
	return fmt.Sprintf("%s-%s", e.root, e.mode)
}

// RomanProgression renders the progression as roman numerals.
func (e *Exercise) RomanProgression() string {
	parts := make([]string, len(e.progression))
	for i, deg := range e.progression {
		parts[i] = Roman[deg]
	}
	return strings.Join(parts, ",")
}
