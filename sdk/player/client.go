package player

import (
	"github.com/leandrodaf/chordpartner/sdk/contracts"
)

// NewPlayer creates a backing track player with the specified options.
// It applies default options, opens the best MIDI output and starts the
// dispatch loop. Close releases both.
func NewPlayer(opts ...contracts.Option) (contracts.Player, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	if options.Driver == nil {
		options.Driver, err = NewDriver(&options)
		if err != nil {
			return nil, err
		}
	}

	return newPlayer(&options)
}
