package exercise

import (
	"fmt"
	"strings"
)

// MiddleC is the MIDI note number chords are voiced from.
const MiddleC = 60

var (
	sharpNames = [12]string{"C", "C♯", "D", "D♯", "E", "F", "F♯", "G", "G♯", "A", "A♯", "B"}
	flatNames  = [12]string{"C", "D♭", "D", "E♭", "E", "F", "G♭", "G", "A♭", "A", "B♭", "B"}
	isFlat     = [12]bool{false, true, false, true, false, true, false, false, true, false, true, false}
)

// Mode is a scale mode.
type Mode string

// Harmonization selects the chord type built on each scale degree.
type Harmonization string

const (
	Major Mode = "major"
	Minor Mode = "minor"

	Triads   Harmonization = "triads"
	Sevenths Harmonization = "7ths"
)

// scales lists the usual scale roots of each mode along the circle of fifths.
var scales = map[Mode][12]string{
	Major: {"C", "G", "D", "A", "E", "B", "F♯", "D♭", "A♭", "E♭", "B♭", "F"},
	Minor: {"A", "E", "B", "F♯", "C♯", "G♯", "D♯", "B♭", "F", "C", "G", "D"},
}

// degree is a chord on a scale degree: semitones above the scale root and
// quality. Alternates are accepted spellings shown with "or".
type degree struct {
	semitones  int
	quality    string
	alternates []string
}

var harmonizations = map[Harmonization]map[Mode][7]degree{
	Triads: {
		Major: {{0, "", nil}, {2, "m", nil}, {4, "m", nil}, {5, "", nil}, {7, "", []string{"7"}}, {9, "m", nil}, {11, "dim", nil}},
		Minor: {{0, "m", nil}, {2, "dim", nil}, {3, "", nil}, {5, "m", nil}, {7, "m", []string{""}}, {8, "", nil}, {10, "", []string{"7"}}},
	},
	Sevenths: {
		Major: {{0, "maj7", nil}, {2, "m7", nil}, {4, "m7", nil}, {5, "maj7", nil}, {7, "7", nil}, {9, "m7", nil}, {11, "m7♭5", nil}},
		Minor: {{0, "m7", nil}, {2, "m7♭5", nil}, {3, "maj7", nil}, {5, "m7", nil}, {7, "m7", nil}, {8, "maj7", nil}, {10, "7", nil}},
	},
}

// intervals gives chord tones above the chord root for each quality.
var intervals = map[string][]int{
	"":     {0, 4, 7},
	"m":    {0, 3, 7},
	"dim":  {0, 3, 6},
	"7":    {0, 4, 7, 10},
	"maj7": {0, 4, 7, 11},
	"m7":   {0, 3, 7, 10},
	"m7♭5": {0, 3, 6, 10},
}

// Roman is the numeral of each scale degree.
var Roman = [7]string{"I", "II", "III", "IV", "V", "VI", "VII"}

// NoteName returns the conventional name of a pitch class.
func NoteName(pc int) string {
	pc = mod12(pc)
	if isFlat[pc] {
		return flatNames[pc]
	}
	return sharpNames[pc]
}

// NoteNumber returns the pitch class of a note name, accepting sharps or flats
// written either as ♯/♭ or #/b.
func NoteNumber(name string) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: empty name", ErrUnknownRoot)
	}
	n := strings.ToUpper(name[:1]) + strings.NewReplacer("#", "♯", "b", "♭").Replace(name[1:])
	for i := range sharpNames {
		if sharpNames[i] == n || flatNames[i] == n {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRoot, name)
}

// NormalizeRoot returns the spelling used to name the scale on pitch class pc.
func NormalizeRoot(pc int, mode Mode) string {
	pc = mod12(pc)
	for _, r := range scales[mode] {
		if n, _ := NoteNumber(r); n == pc {
			return r
		}
	}
	name := flatNames[pc]
	if !strings.Contains(name, "♭") {
		return name
	}
	return sharpNames[pc]
}

// usesFlats reports whether a scale sits on the flat side of the circle of fifths.
func usesFlats(root string, mode Mode) bool {
	for i, r := range scales[mode] {
		if r == root {
			return i > 5
		}
	}
	return false
}

// ChordName names the chord on a scale degree (0-6).
func ChordName(root string, deg int, mode Mode, h Harmonization) string {
	pc, _ := NoteNumber(root)
	d := harmonizations[h][mode][deg]
	chordRoot := mod12(pc + d.semitones)
	name := sharpNames[chordRoot]
	if usesFlats(root, mode) {
		name = flatNames[chordRoot]
	}
	if len(d.alternates) == 0 {
		return name + d.quality
	}
	names := []string{name + d.quality}
	for _, q := range d.alternates {
		names = append(names, name+q)
	}
	return strings.Join(names, " or ")
}

// chordPitches voices the chord on a degree from middle C upward.
func chordPitches(rootPC, deg int, mode Mode, h Harmonization) []uint8 {
	d := harmonizations[h][mode][deg]
	base := MiddleC + mod12(rootPC+d.semitones)
	tones := intervals[d.quality]
	pitches := make([]uint8, len(tones))
	for i, iv := range tones {
		pitches[i] = uint8(base + iv)
	}
	return pitches
}

func mod12(n int) int {
	return ((n % 12) + 12) % 12
}
