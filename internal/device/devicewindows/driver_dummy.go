//go:build !windows
// +build !windows

package devicewindows

import (
	"errors"

	"github.com/leandrodaf/chordpartner/sdk/contracts"
)

var errUnavailable = errors.New("winmm is not available on this platform")

// NewDriver fails on non-Windows systems.
func NewDriver(options *contracts.PlayerOptions) (contracts.DeviceDriver, error) {
	options.Logger.Warn("winmm driver requested on non-Windows system")
	return nil, errUnavailable
}
