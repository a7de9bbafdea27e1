package player

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/leandrodaf/chordpartner/internal/device/devicedarwin"
	"github.com/leandrodaf/chordpartner/internal/device/devicertmidi"
	"github.com/leandrodaf/chordpartner/internal/device/devicewindows"
	"github.com/leandrodaf/chordpartner/sdk/contracts"
)

// ErrUnsupportedOS is returned when no MIDI output layer exists for the operating system.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// driverInitializers maps OS names to MIDI output layers.
var driverInitializers = map[string]func(*contracts.PlayerOptions) (contracts.DeviceDriver, error){
	"darwin":  devicedarwin.NewDriver,  // CoreMIDI.
	"windows": devicewindows.NewDriver, // winmm.
	"linux":   devicertmidi.NewDriver,  // RtMidi over ALSA.
}

// NewDriver initializes the MIDI output layer of the current operating system.
func NewDriver(opts *contracts.PlayerOptions) (contracts.DeviceDriver, error) {
	return driverFor(runtime.GOOS, opts)
}

func driverFor(goos string, opts *contracts.PlayerOptions) (contracts.DeviceDriver, error) {
	if initializer, exists := driverInitializers[goos]; exists {
		return initializer(opts)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, goos)
}
