//go:build !(linux && cgo)
// +build !linux !cgo

package devicertmidi

import (
	"errors"

	"github.com/leandrodaf/chordpartner/sdk/contracts"
)

var errUnavailable = errors.New("rtmidi requires linux with cgo")

// NewDriver fails where rtmidi is not built in.
func NewDriver(options *contracts.PlayerOptions) (contracts.DeviceDriver, error) {
	options.Logger.Warn("rtmidi driver requested but not built in")
	return nil, errUnavailable
}
