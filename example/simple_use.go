package main

import (
	"fmt"
	"time"

	"github.com/leandrodaf/chordpartner/internal/exercise"
	"github.com/leandrodaf/chordpartner/internal/logger"
	"github.com/leandrodaf/chordpartner/sdk/contracts"
	"github.com/leandrodaf/chordpartner/sdk/player"
)

func main() {
	log := logger.NewZapLogger()

	p, err := player.NewPlayer(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
	)
	if err != nil {
		log.Error("Failed to initialize player", log.Field().Error("error", err))
		return
	}
	defer p.Close()

	ports, err := p.Ports()
	if err != nil {
		log.Warn("Could not list MIDI outputs", log.Field().Error("error", err))
	}
	fmt.Println("MIDI outputs:", ports, "using", p.PortName())

	ex, err := exercise.New(exercise.Config{Root: "D", Progression: "circle", Length: 8})
	if err != nil {
		log.Error("Failed to create exercise", log.Field().Error("error", err))
		return
	}
	fmt.Println(ex.ScaleName(), ex.RomanProgression())

	origin, err := p.Start(ex, "swing-comp", 90)
	if err != nil {
		log.Error("Failed to start playback", log.Field().Error("error", err))
		return
	}
	log.Info("Playback started", log.Field().Time("origin", origin))

	for p.Position().Status != contracts.Idle {
		pos := p.Position()
		fmt.Printf("\rbar %2d beat %.1f", pos.Bar+1, pos.Beat+1)
		time.Sleep(250 * time.Millisecond)
	}
	fmt.Println()
}
