package patterns

import (
	"errors"
	"fmt"
	"io"

	"github.com/leandrodaf/chordpartner/sdk/contracts"
	"gopkg.in/yaml.v3"
)

// ErrInvalidPattern is returned when a track file describes an unplayable pattern.
var ErrInvalidPattern = errors.New("invalid pattern")

type fileTracks struct {
	Tracks []fileTrack `yaml:"tracks"`
}

type fileTrack struct {
	Name     string        `yaml:"name"`
	Programs map[int]uint8 `yaml:"programs"`
	Bars     [][]fileStep  `yaml:"bars"`
}

type fileStep struct {
	Offset float64    `yaml:"offset"`
	Notes  []fileNote `yaml:"notes"`
}

type fileNote struct {
	Channel  int       `yaml:"channel"`
	Pitch    filePitch `yaml:"pitch"`
	Velocity int       `yaml:"velocity"`
	Duration float64   `yaml:"duration"`
}

// filePitch accepts a note number or the word "chord".
type filePitch contracts.Pitch

func (p *filePitch) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode && value.Value == "chord" {
		*p = filePitch(contracts.ChordPitch)
		return nil
	}
	var n int
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("line %d: pitch must be a note number or \"chord\"", value.Line)
	}
	if n < 0 || n > 127 {
		return fmt.Errorf("line %d: pitch %d outside 0-127", value.Line, n)
	}
	*p = filePitch(n)
	return nil
}

// LoadYAML reads backing tracks from r.
//
//	tracks:
//	  - name: bossa
//	    programs: {1: 0}
//	    bars:
//	      - - offset: 0
//	          notes:
//	            - {channel: 10, pitch: 35, velocity: 63, duration: 0.5}
//	            - {channel: 1, pitch: chord, velocity: 80, duration: 0.25}
func LoadYAML(r io.Reader) (Library, error) {
	var doc fileTracks
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Library{}, nil
		}
		return nil, fmt.Errorf("decode tracks: %w", err)
	}

	lib := make(Library, len(doc.Tracks))
	for _, ft := range doc.Tracks {
		t, err := ft.track()
		if err != nil {
			return nil, err
		}
		if _, dup := lib[t.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate track %q", ErrInvalidPattern, t.Name)
		}
		lib[t.Name] = t
	}
	return lib, nil
}

func (ft fileTrack) track() (contracts.Track, error) {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: track %q: %s", ErrInvalidPattern, ft.Name, fmt.Sprintf(format, args...))
	}

	if ft.Name == "" {
		return contracts.Track{}, fmt.Errorf("%w: track without name", ErrInvalidPattern)
	}
	if len(ft.Bars) == 0 {
		return contracts.Track{}, invalid("no bars")
	}
	for ch, program := range ft.Programs {
		if ch < 1 || ch > 16 || program > 127 {
			return contracts.Track{}, invalid("program %d on channel %d", program, ch)
		}
	}

	pattern := make(contracts.Pattern, 0, len(ft.Bars))
	for b, fb := range ft.Bars {
		bar := make(contracts.Bar, 0, len(fb))
		for _, fs := range fb {
			if fs.Offset < 0 || fs.Offset >= 1 {
				return contracts.Track{}, invalid("bar %d: offset %v outside [0,1)", b+1, fs.Offset)
			}
			s := contracts.Step{Offset: fs.Offset}
			for _, fn := range fs.Notes {
				switch {
				case fn.Channel < 1 || fn.Channel > 16:
					return contracts.Track{}, invalid("bar %d: channel %d outside 1-16", b+1, fn.Channel)
				case fn.Velocity < 0 || fn.Velocity > 127:
					return contracts.Track{}, invalid("bar %d: velocity %d outside 0-127", b+1, fn.Velocity)
				case fn.Duration <= 0:
					return contracts.Track{}, invalid("bar %d: duration must be positive", b+1)
				}
				s.Notes = append(s.Notes, contracts.NoteEvent{
					Channel:  fn.Channel,
					Pitch:    contracts.Pitch(fn.Pitch),
					Velocity: uint8(fn.Velocity),
					Duration: fn.Duration,
				})
			}
			bar = append(bar, s)
		}
		pattern = append(pattern, bar)
	}

	return contracts.Track{Name: ft.Name, Pattern: pattern, Programs: ft.Programs}, nil
}
