//go:build linux && cgo
// +build linux,cgo

// Package devicertmidi sends through RtMidi, which talks to ALSA on Linux.
package devicertmidi

import (
	"errors"
	"fmt"

	"github.com/leandrodaf/chordpartner/sdk/contracts"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

var ErrUnknownOutput = errors.New("unknown MIDI output")

// Driver wraps an rtmidi driver.
type Driver struct {
	logger contracts.Logger
	drv    *rtmididrv.Driver
}

// NewDriver initialises rtmidi.
func NewDriver(options *contracts.PlayerOptions) (contracts.DeviceDriver, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	options.Logger.Info("rtmidi driver initialised")
	return &Driver{logger: options.Logger, drv: drv}, nil
}

func (d *Driver) Outputs() ([]string, error) {
	outs, err := d.drv.Outs()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(outs))
	for i, out := range outs {
		names[i] = out.String()
	}
	return names, nil
}

func (d *Driver) Open(name string) (contracts.Destination, error) {
	outs, err := d.drv.Outs()
	if err != nil {
		return nil, err
	}
	for _, out := range outs {
		if out.String() != name {
			continue
		}
		if err := out.Open(); err != nil {
			return nil, fmt.Errorf("open %q: %w", name, err)
		}
		return &output{out: out, name: name}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownOutput, name)
}

func (d *Driver) OpenVirtual(name string) (contracts.Destination, error) {
	out, err := d.drv.OpenVirtualOut(name)
	if err != nil {
		return nil, fmt.Errorf("virtual output %q: %w", name, err)
	}
	d.logger.Info("Virtual MIDI output published", d.logger.Field().String("name", name))
	return &output{out: out, name: contracts.VirtualPortName}, nil
}

func (d *Driver) Close() error {
	return d.drv.Close()
}

type output struct {
	out  drivers.Out
	name string
}

func (o *output) Send(msg []byte) error { return o.out.Send(msg) }
func (o *output) Close() error          { return o.out.Close() }
func (o *output) String() string        { return o.name }
