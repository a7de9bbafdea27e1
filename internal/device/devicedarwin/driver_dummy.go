//go:build !darwin
// +build !darwin

package devicedarwin

import (
	"errors"

	"github.com/leandrodaf/chordpartner/sdk/contracts"
)

var errUnavailable = errors.New("CoreMIDI is not available on this platform")

// NewDriver fails on systems without CoreMIDI.
func NewDriver(options *contracts.PlayerOptions) (contracts.DeviceDriver, error) {
	options.Logger.Warn("CoreMIDI driver requested on non-macOS system")
	return nil, errUnavailable
}
