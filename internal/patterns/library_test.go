package patterns

import (
	"strings"
	"testing"

	"github.com/leandrodaf/chordpartner/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltInTracksAreWellFormed(t *testing.T) {
	lib := Library(Tracks())
	lib[LeadIn.Name] = LeadIn

	for name, track := range lib {
		require.NotEmpty(t, track.Pattern, name)
		for _, bar := range track.Pattern {
			prev := -1.0
			for _, s := range bar {
				assert.GreaterOrEqual(t, s.Offset, 0.0, name)
				assert.Less(t, s.Offset, 1.0, name)
				assert.Greater(t, s.Offset, prev, "%s: steps must be ordered", name)
				prev = s.Offset
				for _, n := range s.Notes {
					assert.True(t, n.Channel >= 1 && n.Channel <= 16, name)
					assert.Greater(t, n.Duration, 0.0, name)
				}
			}
		}
	}
}

func TestLeadInNeverUsesChordPlaceholder(t *testing.T) {
	for _, bar := range LeadIn.Pattern {
		for _, s := range bar {
			for _, n := range s.Notes {
				assert.NotEqual(t, contracts.ChordPitch, n.Pitch)
			}
		}
	}
	assert.Len(t, LeadIn.Pattern, LeadInBars)
}

func TestCompTracksCarryChords(t *testing.T) {
	lib := Library(Tracks())
	track, err := lib.Lookup("straight-comp")
	require.NoError(t, err)

	chords := 0
	for _, s := range track.Pattern[0] {
		for _, n := range s.Notes {
			if n.Pitch == contracts.ChordPitch {
				chords++
				assert.Equal(t, ChannelChord, n.Channel)
			}
		}
	}
	assert.Equal(t, 2, chords)
	assert.Contains(t, track.Programs, ChannelChord)
}

func TestLookupUnknownTrack(t *testing.T) {
	_, err := Library(Tracks()).Lookup("polka")
	assert.ErrorIs(t, err, ErrUnknownTrack)
}

func TestNamesAreSorted(t *testing.T) {
	assert.Equal(t, []string{"straight", "straight-comp", "swing", "swing-comp"}, Library(Tracks()).Names())
}

func TestLoadYAML(t *testing.T) {
	src := `
tracks:
  - name: bossa
    programs: {1: 24}
    bars:
      - - offset: 0
          notes:
            - {channel: 10, pitch: 35, velocity: 63, duration: 0.5}
            - {channel: 1, pitch: chord, velocity: 80, duration: 0.25}
        - offset: 0.375
          notes:
            - {channel: 10, pitch: 37, velocity: 50, duration: 0.125}
`
	lib, err := LoadYAML(strings.NewReader(src))
	require.NoError(t, err)

	track, err := lib.Lookup("bossa")
	require.NoError(t, err)
	assert.Equal(t, map[int]uint8{1: 24}, track.Programs)
	require.Len(t, track.Pattern, 1)
	require.Len(t, track.Pattern[0], 2)
	assert.Equal(t, contracts.ChordPitch, track.Pattern[0][0].Notes[1].Pitch)
	assert.Equal(t, contracts.Pitch(37), track.Pattern[0][1].Notes[0].Pitch)
	assert.Equal(t, 0.375, track.Pattern[0][1].Offset)
}

func TestLoadYAMLEmpty(t *testing.T) {
	lib, err := LoadYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, lib)
}

func TestLoadYAMLRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"no bars":      "tracks: [{name: x}]",
		"bad offset":   "tracks: [{name: x, bars: [[{offset: 1, notes: []}]]}]",
		"bad channel":  "tracks: [{name: x, bars: [[{offset: 0, notes: [{channel: 0, pitch: 1, velocity: 1, duration: 1}]}]]}]",
		"bad pitch":    "tracks: [{name: x, bars: [[{offset: 0, notes: [{channel: 1, pitch: high, velocity: 1, duration: 1}]}]]}]",
		"no duration":  "tracks: [{name: x, bars: [[{offset: 0, notes: [{channel: 1, pitch: 1, velocity: 1}]}]]}]",
		"duplicate":    "tracks: [{name: x, bars: [[]]}, {name: x, bars: [[]]}]",
		"unknown key":  "tracks: [{name: x, tempo: 3, bars: [[]]}]",
		"bad velocity": "tracks: [{name: x, bars: [[{offset: 0, notes: [{channel: 1, pitch: 1, velocity: 300, duration: 1}]}]]}]",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadYAML(strings.NewReader(src))
			assert.Error(t, err)
		})
	}
}
