package exercise

import (
	"fmt"
	"math"
	"sort"
)

var progressions = map[string][]int{
	"12 bar blues": {0, 0, 0, 0, 3, 3, 0, 0, 4, 3, 0, 0},
	"circle":       {0, 3, 6, 2, 5, 1, 4, 0},
	"scale":        {0, 1, 2, 3, 4, 5, 6, 0},
	"I-V":          {0, 4},
	"I-IV":         {0, 3},
}

// Progressions returns the names of the built-in progressions.
func Progressions() []string {
	names := make([]string, 0, len(progressions))
	for name := range progressions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProgressionLength fits a suggested exercise length to whole repeats of the
// named progression. It returns the chosen length and every multiple of the
// progression length up to maxLen.
func ProgressionLength(name string, suggested, maxLen int) (int, []int, error) {
	p, ok := progressions[name]
	if !ok {
		return 0, nil, fmt.Errorf("%w: %q", ErrUnknownProgression, name)
	}
	base := len(p)
	var options []int
	for l := base; l <= maxLen; l += base {
		options = append(options, l)
	}
	if len(options) == 0 {
		options = []int{base}
	}
	if suggested < base {
		return base, options, nil
	}
	repeats := int(math.Round(float64(suggested) / float64(base)))
	return base * repeats, options, nil
}

// Progression repeats the named progression to length bars.
func Progression(name string, length int) ([]int, error) {
	p, ok := progressions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProgression, name)
	}
	out := make([]int, length)
	for i := range out {
		out[i] = p[i%len(p)]
	}
	return out, nil
}
