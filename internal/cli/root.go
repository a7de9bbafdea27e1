// Package cli implements the chordpartner command line.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/leandrodaf/chordpartner/internal/patterns"
	"github.com/leandrodaf/chordpartner/sdk/contracts"
	"github.com/leandrodaf/chordpartner/sdk/player"
	"github.com/spf13/cobra"
)

// PlayerFactory creates the player used by commands that need an output.
type PlayerFactory func(opts ...contracts.Option) (contracts.Player, error)

var logLevels = map[string]contracts.LogLevel{
	"debug": contracts.DebugLevel,
	"info":  contracts.InfoLevel,
	"warn":  contracts.WarnLevel,
	"error": contracts.ErrorLevel,
}

type rootFlags struct {
	logLevel string
	logFile  string
	port     string
	patterns string
}

type app struct {
	newPlayer PlayerFactory
	flags     rootFlags
}

// NewRootCommand builds the command tree around newPlayer.
func NewRootCommand(newPlayer PlayerFactory) *cobra.Command {
	a := &app{newPlayer: newPlayer}
	root := &cobra.Command{
		Use:   "chordpartner",
		Short: "Chord exercises over a drum backing track",
		Long: `chordpartner generates a chord progression in a scale and plays a
backing track for it on a MIDI output, after a two bar count-in.`,
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	pf.StringVar(&a.flags.logFile, "log-file", "", "write logs to this file instead of stderr")
	pf.StringVar(&a.flags.port, "port", "", "MIDI output to use, "+contracts.VirtualPortName+" for a self-hosted one")
	pf.StringVar(&a.flags.patterns, "patterns", "", "YAML file with extra backing tracks")

	root.AddCommand(a.portsCmd(), a.tracksCmd(), a.progressionsCmd(), a.playCmd())
	return root
}

// Execute runs the command line with the platform player.
func Execute() {
	if err := NewRootCommand(player.NewPlayer).Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *app) options() ([]contracts.Option, error) {
	level, ok := logLevels[strings.ToLower(a.flags.logLevel)]
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", a.flags.logLevel)
	}
	opts := []contracts.Option{
		contracts.WithLogLevel(level),
		contracts.WithPortName(a.flags.port),
	}
	if a.flags.logFile != "" {
		opts = append(opts, contracts.WithLogFile(a.flags.logFile))
	}
	lib, err := a.library()
	if err != nil {
		return nil, err
	}
	return append(opts, contracts.WithTracks(lib)), nil
}

// library is the built-in tracks plus the --patterns file.
func (a *app) library() (patterns.Library, error) {
	lib := patterns.Library(patterns.Tracks())
	if a.flags.patterns == "" {
		return lib, nil
	}
	f, err := os.Open(a.flags.patterns)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	extra, err := patterns.LoadYAML(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.flags.patterns, err)
	}
	for name, t := range extra {
		lib[name] = t
	}
	return lib, nil
}
