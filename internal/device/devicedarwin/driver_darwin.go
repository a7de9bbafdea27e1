//go:build darwin
// +build darwin

package devicedarwin

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/chordpartner/sdk/contracts"
	"github.com/youpy/go-coremidi"
)

// Error definitions for CoreMIDI output handling.
var (
	ErrUnknownDestination = errors.New("unknown MIDI destination")
	ErrCreateOutputPort   = errors.New("error creating output port")
	ErrCreateSource       = errors.New("error creating virtual source")
	ErrDriverClosed       = errors.New("CoreMIDI driver closed")
)

// Driver sends to CoreMIDI destinations on macOS.
type Driver struct {
	logger contracts.Logger
	client coremidi.Client     // CoreMIDI client owning the port and sources.
	port   coremidi.OutputPort // Shared output port for physical destinations.
	mu     sync.Mutex
	closed bool
}

// NewDriver creates the CoreMIDI client and its output port.
func NewDriver(options *contracts.PlayerOptions) (contracts.DeviceDriver, error) {
	client, err := coremidi.NewClient(options.VirtualPortName)
	if err != nil {
		return nil, err
	}
	port, err := coremidi.NewOutputPort(client, "Output Port")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateOutputPort, err)
	}
	options.Logger.Info("CoreMIDI client successfully created")

	return &Driver{logger: options.Logger, client: client, port: port}, nil
}

// Outputs lists every CoreMIDI destination by name.
func (d *Driver) Outputs() ([]string, error) {
	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI destinations: %w", err)
	}
	names := make([]string, len(destinations))
	for i, dest := range destinations {
		names[i] = dest.Name()
	}
	return names, nil
}

// Open connects to the first destination called name.
func (d *Driver) Open(name string) (contracts.Destination, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDriverClosed
	}

	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return nil, fmt.Errorf("error retrieving MIDI destinations: %w", err)
	}
	for i := range destinations {
		if destinations[i].Name() == name {
			d.logger.Debug("CoreMIDI destination opened", d.logger.Field().String("destination", name))
			return &destination{port: &d.port, dest: destinations[i], name: name}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDestination, name)
}

// OpenVirtual publishes a CoreMIDI source other applications can listen to.
func (d *Driver) OpenVirtual(name string) (contracts.Destination, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDriverClosed
	}

	source, err := coremidi.NewSource(d.client, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateSource, err)
	}
	d.logger.Info("CoreMIDI virtual source published", d.logger.Field().String("name", name))
	return &virtual{source: source}, nil
}

// Close marks the driver closed. The CoreMIDI client lives until exit.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

type destination struct {
	mu   sync.Mutex
	port *coremidi.OutputPort
	dest coremidi.Destination
	name string
	done bool
}

func (o *destination) Send(msg []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return fmt.Errorf("send on closed destination %q", o.name)
	}
	packet := coremidi.NewPacket(msg, 0)
	return packet.Send(o.port, &o.dest)
}

func (o *destination) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.done = true
	return nil
}

func (o *destination) String() string { return o.name }

type virtual struct {
	mu     sync.Mutex
	source coremidi.Source
	done   bool
}

func (v *virtual) Send(msg []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.done {
		return errors.New("send on closed virtual source")
	}
	packet := coremidi.NewPacket(msg, 0)
	return packet.Received(&v.source)
}

func (v *virtual) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.done {
		v.done = true
		v.source.Dispose()
	}
	return nil
}

func (v *virtual) String() string { return contracts.VirtualPortName }
