// Package output manages the single MIDI destination a player sends to.
package output

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/leandrodaf/chordpartner/internal/logger"
	"github.com/leandrodaf/chordpartner/internal/timeline"
	"github.com/leandrodaf/chordpartner/sdk/contracts"
	"go.uber.org/multierr"
)

// Error definitions for output selection.
var (
	ErrDeviceUnavailable    = errors.New("no MIDI output available")
	ErrDeviceSwitchRejected = errors.New("MIDI output switch rejected")
	ErrClosed               = errors.New("MIDI output closed")
)

// DefaultWeights ranks loopback and patchbay ports after real devices.
var DefaultWeights = []contracts.PortWeight{
	{Pattern: regexp.MustCompile(`^Midi Through`), Weight: 10},
	{Pattern: regexp.MustCompile(`.*:qjackctl`), Weight: 20},
}

// DefaultVirtualName is the name the self-hosted destination is announced under.
const DefaultVirtualName = "Chord Exercise Partner"

// Config tunes destination selection.
type Config struct {
	Preferred   string                 // Destination to open first; empty picks the best ranked.
	VirtualName string                 // Announced name of the self-hosted destination.
	Weights     []contracts.PortWeight // Preference table.
	Logger      contracts.Logger
}

// Port holds exactly one open destination. It is safe for concurrent use.
type Port struct {
	mu          sync.Mutex
	driver      contracts.DeviceDriver
	dest        contracts.Destination
	name        string
	generation  uint64
	closed      bool
	virtualName string
	weights     []contracts.PortWeight
	logger      contracts.Logger
}

// New opens cfg.Preferred, else the best ranked physical destination, else
// the self-hosted one. It fails with ErrDeviceUnavailable when nothing opens.
func New(driver contracts.DeviceDriver, cfg Config) (*Port, error) {
	if cfg.VirtualName == "" {
		cfg.VirtualName = DefaultVirtualName
	}
	if cfg.Weights == nil {
		cfg.Weights = DefaultWeights
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	p := &Port{
		driver:      driver,
		virtualName: cfg.VirtualName,
		weights:     cfg.Weights,
		logger:      cfg.Logger,
	}

	var names []string
	if cfg.Preferred != "" {
		names = append(names, cfg.Preferred)
	}
	if listed, err := p.Enumerate(); err != nil {
		p.logger.Warn("Could not list MIDI outputs", p.logger.Field().Error("error", err))
	} else {
		names = append(names, listed...)
	}
	names = append(names, contracts.VirtualPortName)

	var errs error
	for _, name := range candidates(names) {
		dest, err := p.open(name)
		if err != nil {
			errs = multierr.Append(errs, err)
			p.logger.Warn("Could not open MIDI output",
				p.logger.Field().String("port", name),
				p.logger.Field().Error("error", err))
			continue
		}
		p.dest, p.name = dest, name
		p.logger.Info("MIDI output selected", p.logger.Field().String("port", name))
		return p, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, errs)
}

// candidates drops repeated names, keeping the first occurrence.
func candidates(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, name := range names {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// Enumerate lists physical destinations ordered by the weight table, stable
// within equal weights, followed by contracts.VirtualPortName.
func (p *Port) Enumerate() ([]string, error) {
	names, err := p.driver.Outputs()
	if err != nil {
		return []string{contracts.VirtualPortName}, err
	}
	ranked := make([]string, len(names))
	copy(ranked, names)
	sort.SliceStable(ranked, func(i, j int) bool {
		return p.weight(ranked[i]) < p.weight(ranked[j])
	})
	return append(ranked, contracts.VirtualPortName), nil
}

func (p *Port) weight(name string) int {
	for _, w := range p.weights {
		if w.Pattern.MatchString(name) {
			return w.Weight
		}
	}
	return 0
}

func (p *Port) open(name string) (contracts.Destination, error) {
	if name == contracts.VirtualPortName {
		return p.driver.OpenVirtual(p.virtualName)
	}
	return p.driver.Open(name)
}

// Switch makes name the active destination. Switching to the active name is a
// no-op. On failure the previous destination stays active.
func (p *Port) Switch(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if name == p.name {
		return nil
	}

	dest, err := p.open(name)
	if err != nil {
		p.logger.Warn("MIDI output switch rejected",
			p.logger.Field().String("port", name),
			p.logger.Field().Error("error", err))
		return fmt.Errorf("%w: %s: %v", ErrDeviceSwitchRejected, name, err)
	}

	old := p.dest
	p.dest, p.name = dest, name
	p.generation++
	if err := old.Close(); err != nil {
		p.logger.Warn("Could not close previous MIDI output", p.logger.Field().Error("error", err))
	}
	p.logger.Info("MIDI output switched", p.logger.Field().String("port", name))
	return nil
}

// Send writes msg to the active destination.
func (p *Port) Send(msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	return p.dest.Send(msg)
}

// Silence sends all-sound-off on every channel.
func (p *Port) Silence() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	return p.silenceLocked()
}

func (p *Port) silenceLocked() error {
	var errs error
	for ch := uint8(0); ch < 16; ch++ {
		errs = multierr.Append(errs, p.dest.Send(timeline.Silence(ch)))
	}
	return errs
}

// Name is the active destination name.
func (p *Port) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

// Generation increases on every successful switch.
func (p *Port) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

// Close silences every channel and releases the destination and the driver.
// Later calls return nil.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	err := p.silenceLocked()
	err = multierr.Append(err, p.dest.Close())
	err = multierr.Append(err, p.driver.Close())
	p.logger.Info("MIDI output closed", p.logger.Field().String("port", p.name))
	return err
}
