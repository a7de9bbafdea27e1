//go:build windows
// +build windows

package devicewindows

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/leandrodaf/chordpartner/sdk/contracts"
	"golang.org/x/sys/windows"
)

// HMIDIOUT is a winmm output handle.
type HMIDIOUT windows.Handle

const callbackNull = 0x00000000

// Error definitions for winmm output handling.
var (
	ErrUnknownOutput      = errors.New("unknown MIDI output")
	ErrVirtualUnsupported = errors.New("virtual MIDI outputs are not supported on Windows")
	ErrLongMessage        = errors.New("message longer than a short MIDI message")
)

// midiOutCaps mirrors MIDIOUTCAPSW.
type midiOutCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	wTechnology    uint16
	wVoices        uint16
	wNotes         uint16
	wChannelMask   uint16
	dwSupport      uint32
}

var (
	winmm                 = windows.NewLazySystemDLL("winmm.dll")
	procMidiOutGetNumDevs = winmm.NewProc("midiOutGetNumDevs")
	procMidiOutGetDevCaps = winmm.NewProc("midiOutGetDevCapsW")
	procMidiOutOpen       = winmm.NewProc("midiOutOpen")
	procMidiOutShortMsg   = winmm.NewProc("midiOutShortMsg")
	procMidiOutReset      = winmm.NewProc("midiOutReset")
	procMidiOutClose      = winmm.NewProc("midiOutClose")
)

// Driver sends to winmm output devices.
type Driver struct {
	logger contracts.Logger
}

// NewDriver creates a winmm output driver.
func NewDriver(options *contracts.PlayerOptions) (contracts.DeviceDriver, error) {
	options.Logger.Info("winmm MIDI output driver created")
	return &Driver{logger: options.Logger}, nil
}

// Outputs lists winmm output device names in device id order.
func (d *Driver) Outputs() ([]string, error) {
	r0, _, _ := procMidiOutGetNumDevs.Call()
	count := uint32(r0)

	names := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		var caps midiOutCaps
		r1, _, _ := procMidiOutGetDevCaps.Call(
			uintptr(i),
			uintptr(unsafe.Pointer(&caps)),
			unsafe.Sizeof(caps),
		)
		if r1 != 0 {
			d.logger.Warn("Failed to get MIDI output capabilities", d.logger.Field().Int("device", int(i)))
			continue
		}
		names = append(names, windows.UTF16ToString(caps.szPname[:]))
	}
	return names, nil
}

// Open opens the first output device called name.
func (d *Driver) Open(name string) (contracts.Destination, error) {
	names, err := d.Outputs()
	if err != nil {
		return nil, err
	}
	for id, n := range names {
		if n != name {
			continue
		}
		var handle HMIDIOUT
		r1, _, callErr := procMidiOutOpen.Call(
			uintptr(unsafe.Pointer(&handle)),
			uintptr(id),
			0,
			0,
			callbackNull,
		)
		if r1 != 0 {
			return nil, fmt.Errorf("failed to open MIDI output %q: %v", name, callErr)
		}
		d.logger.Debug("MIDI output opened", d.logger.Field().String("output", name))
		return &output{handle: handle, name: name}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownOutput, name)
}

// OpenVirtual always fails: winmm cannot publish outputs.
func (d *Driver) OpenVirtual(string) (contracts.Destination, error) {
	return nil, ErrVirtualUnsupported
}

func (d *Driver) Close() error { return nil }

type output struct {
	mu     sync.Mutex
	handle HMIDIOUT
	name   string
}

// Send packs up to three bytes into a short message.
func (o *output) Send(msg []byte) error {
	if len(msg) == 0 || len(msg) > 3 {
		return ErrLongMessage
	}
	var packed uint32
	for i, b := range msg {
		packed |= uint32(b) << (8 * i)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.handle == 0 {
		return fmt.Errorf("send on closed MIDI output %q", o.name)
	}
	r1, _, err := procMidiOutShortMsg.Call(uintptr(o.handle), uintptr(packed))
	if r1 != 0 {
		return fmt.Errorf("midiOutShortMsg failed: %v", err)
	}
	return nil
}

func (o *output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.handle == 0 {
		return nil
	}
	procMidiOutReset.Call(uintptr(o.handle))
	r1, _, err := procMidiOutClose.Call(uintptr(o.handle))
	o.handle = 0
	if r1 != 0 {
		return fmt.Errorf("failed to close MIDI output %q: %v", o.name, err)
	}
	return nil
}

func (o *output) String() string { return o.name }
