package player

import (
	"github.com/leandrodaf/chordpartner/internal/logger"
	"github.com/leandrodaf/chordpartner/internal/output"
	"github.com/leandrodaf/chordpartner/internal/patterns"
	"github.com/leandrodaf/chordpartner/sdk/contracts"
)

// applyDefaultOptions fills in every option the caller left unset and
// configures the logger.
func applyDefaultOptions(opts ...contracts.Option) (contracts.PlayerOptions, error) {
	options := &contracts.PlayerOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.LogLevel == 0 {
		options.LogLevel = contracts.InfoLevel
	}
	options.Logger.SetLevel(options.LogLevel)
	if options.LogFilePath != "" {
		if err := options.Logger.SetDestination(contracts.FileLog, options.LogFilePath); err != nil {
			return contracts.PlayerOptions{}, err
		}
	}

	if options.VirtualPortName == "" {
		options.VirtualPortName = output.DefaultVirtualName
	}
	if options.PortWeights == nil {
		options.PortWeights = output.DefaultWeights
	}

	// Built-in tracks first, caller tracks override same names.
	tracks := patterns.Tracks()
	for name, t := range options.Tracks {
		tracks[name] = t
	}
	options.Tracks = tracks

	if options.LeadInTrack == nil {
		lead := patterns.LeadIn
		options.LeadInTrack = &lead
	}
	if options.LeadInBars == nil {
		bars := patterns.LeadInBars
		options.LeadInBars = &bars
	}
	return *options, nil
}
