// Package player is the public entry point: it plays backing tracks for chord
// exercises on a MIDI output.
package player

import (
	"sync"
	"time"

	"github.com/leandrodaf/chordpartner/internal/output"
	"github.com/leandrodaf/chordpartner/internal/patterns"
	"github.com/leandrodaf/chordpartner/internal/scheduler"
	"github.com/leandrodaf/chordpartner/sdk/contracts"
	"go.uber.org/multierr"
)

// Player couples one output port with one dispatch loop.
type Player struct {
	logger    contracts.Logger
	port      *output.Port
	sched     *scheduler.Scheduler
	tracks    patterns.Library
	closeOnce sync.Once
	closeErr  error
}

var _ contracts.Player = (*Player)(nil)

func newPlayer(options *contracts.PlayerOptions) (*Player, error) {
	port, err := output.New(options.Driver, output.Config{
		Preferred:   options.PortName,
		VirtualName: options.VirtualPortName,
		Weights:     options.PortWeights,
		Logger:      options.Logger,
	})
	if err != nil {
		return nil, multierr.Append(err, options.Driver.Close())
	}

	sched := scheduler.New(scheduler.Config{
		Output:         port,
		Tracks:         options.Tracks,
		LeadIn:         *options.LeadInTrack,
		LeadInBars:     *options.LeadInBars,
		EarlyTolerance: options.EarlyTolerance,
		LateTolerance:  options.LateTolerance,
		IdlePoll:       options.IdlePoll,
		Clock:          options.Clock,
		Logger:         options.Logger,
	})

	return &Player{
		logger: options.Logger,
		port:   port,
		sched:  sched,
		tracks: patterns.Library(options.Tracks),
	}, nil
}

func (p *Player) Start(ex contracts.Exercise, track string, tempo float64) (time.Time, error) {
	return p.sched.Start(ex, track, tempo)
}

func (p *Player) Stop() { p.sched.Stop() }

func (p *Player) Pause() time.Duration { return p.sched.Pause() }

func (p *Player) Resume() time.Time { return p.sched.Resume() }

func (p *Player) ChangeTrack(name string) error { return p.sched.ChangeTrack(name) }

func (p *Player) ChangeTempo(tempo float64, origin time.Time) { p.sched.ChangeTempo(tempo, origin) }

func (p *Player) Position() contracts.Position { return p.sched.Position() }

func (p *Player) Ports() ([]string, error) { return p.port.Enumerate() }

func (p *Player) PortName() string { return p.port.Name() }

func (p *Player) SwitchPort(name string) error { return p.port.Switch(name) }

func (p *Player) Tracks() []string { return p.tracks.Names() }

// Close stops the loop, silences every channel and releases the device.
// Later calls return the first result.
func (p *Player) Close() error {
	p.closeOnce.Do(func() {
		p.sched.Close()
		p.closeErr = p.port.Close()
		p.logger.Info("Player closed")
		_ = p.logger.Sync()
	})
	return p.closeErr
}
