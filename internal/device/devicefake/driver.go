// Package devicefake provides an in-memory contracts.DeviceDriver that records
// what is sent to it.
package devicefake

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/leandrodaf/chordpartner/sdk/contracts"
)

// ErrUnavailable is returned for outputs configured to fail.
var ErrUnavailable = errors.New("fake output unavailable")

// Sent is one message received by a destination.
type Sent struct {
	Port string
	At   time.Time
	Data []byte
}

// Driver is a fake device layer. The zero value has no outputs.
type Driver struct {
	mu          sync.Mutex
	outputs     []string
	failing     map[string]bool
	listErr     error
	noVirtual   bool
	closed      bool
	open        map[string]int
	sent        []Sent
	sendHook    func(port string, data []byte) error
	openHook    func(name string)
	virtualName string
}

// New returns a driver exposing the given physical outputs.
func New(outputs ...string) *Driver {
	return &Driver{outputs: outputs, failing: map[string]bool{}, open: map[string]int{}}
}

// Fail makes opening name fail.
func (d *Driver) Fail(name string) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failing[name] = true
	return d
}

// FailListing makes Outputs return err.
func (d *Driver) FailListing(err error) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listErr = err
	return d
}

// DisableVirtual makes OpenVirtual fail.
func (d *Driver) DisableVirtual() *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.noVirtual = true
	return d
}

// OnSend installs a hook run before a send is recorded; a returned error
// fails the send without recording it.
func (d *Driver) OnSend(hook func(port string, data []byte) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sendHook = hook
}

// OnOpen installs a hook that sees every open attempt, virtual ones under
// contracts.VirtualPortName.
func (d *Driver) OnOpen(hook func(name string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openHook = hook
}

func (d *Driver) Outputs() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listErr != nil {
		return nil, d.listErr
	}
	return append([]string(nil), d.outputs...), nil
}

func (d *Driver) Open(name string) (contracts.Destination, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openHook != nil {
		d.openHook(name)
	}
	if d.failing[name] {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, name)
	}
	for _, o := range d.outputs {
		if o == name {
			d.open[name]++
			return &destination{driver: d, name: name}, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown output %q", ErrUnavailable, name)
}

func (d *Driver) OpenVirtual(name string) (contracts.Destination, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openHook != nil {
		d.openHook(contracts.VirtualPortName)
	}
	if d.noVirtual {
		return nil, fmt.Errorf("%w: virtual outputs disabled", ErrUnavailable)
	}
	d.virtualName = name
	d.open[contracts.VirtualPortName]++
	return &destination{driver: d, name: contracts.VirtualPortName}, nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Closed reports whether Close was called.
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// OpenCount returns how many destinations named name are open.
func (d *Driver) OpenCount(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open[name]
}

// VirtualName is the name the last virtual destination was announced under.
func (d *Driver) VirtualName() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.virtualName
}

// Sent returns a copy of every recorded message.
func (d *Driver) Sent() []Sent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Sent(nil), d.sent...)
}

// Reset forgets recorded messages.
func (d *Driver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = nil
}

type destination struct {
	driver *Driver
	name   string
	closed bool
}

func (o *destination) Send(msg []byte) error {
	d := o.driver
	d.mu.Lock()
	hook := d.sendHook
	d.mu.Unlock()

	if hook != nil {
		if err := hook(o.name, msg); err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if o.closed {
		return fmt.Errorf("send on closed output %q", o.name)
	}
	d.sent = append(d.sent, Sent{Port: o.name, At: time.Now(), Data: append([]byte(nil), msg...)})
	return nil
}

func (o *destination) Close() error {
	d := o.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if !o.closed {
		o.closed = true
		d.open[o.name]--
	}
	return nil
}

func (o *destination) String() string {
	return o.name
}
