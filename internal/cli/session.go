package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/leandrodaf/chordpartner/internal/exercise"
	"github.com/leandrodaf/chordpartner/internal/scheduler"
	"github.com/leandrodaf/chordpartner/sdk/contracts"
)

const (
	tempoStep = 5
	minTempo  = 5
	pollEvery = 20 * time.Millisecond
)

// session follows a running exercise, printing each bar's chord and applying
// typed commands. Without a player it only follows.
type session struct {
	player   contracts.Player
	position func() contracts.Position
	ex       *exercise.Exercise
	tempo    float64
	origin   time.Time
	leadIn   int
	out      io.Writer
}

func (s *session) run(ctx context.Context, commands <-chan string) error {
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	lastBar := -1
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out, "Stopped")
			return nil
		case line, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			if quit := s.handle(line); quit {
				return nil
			}
		case <-ticker.C:
			pos := s.position()
			if pos.Status == contracts.Idle {
				fmt.Fprintln(s.out, "Done")
				return nil
			}
			if pos.Status == contracts.Playing && pos.Bar != lastBar {
				lastBar = pos.Bar
				s.printBar(pos.Bar)
			}
		}
	}
}

func (s *session) printBar(bar int) {
	if bar < s.leadIn {
		fmt.Fprintf(s.out, "count-in %d/%d\n", bar+1, s.leadIn)
		return
	}
	if i := bar - s.leadIn; i < s.ex.Length() {
		fmt.Fprintf(s.out, "bar %d/%d: %s\n", i+1, s.ex.Length(), s.ex.ChordName(i))
	}
}

// handle applies one command and reports whether to quit.
func (s *session) handle(line string) bool {
	verb, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	if verb == "q" {
		return true
	}
	if s.player == nil {
		fmt.Fprintln(s.out, "no MIDI output, only q is available")
		return false
	}

	switch verb {
	case "p":
		if s.player.Position().Status == contracts.Paused {
			s.origin = s.player.Resume()
			fmt.Fprintln(s.out, "Resumed")
		} else {
			at := s.player.Pause()
			fmt.Fprintf(s.out, "Paused at %s\n", at.Round(time.Millisecond))
		}
	case "+", "-":
		next := s.tempo + tempoStep
		if verb == "-" {
			next = s.tempo - tempoStep
		}
		if next < minTempo {
			next = minTempo
		}
		s.retempo(next)
		fmt.Fprintf(s.out, "Tempo %g BPM\n", s.tempo)
	case "t":
		if err := s.player.ChangeTrack(arg); err != nil {
			fmt.Fprintln(s.out, err)
			return false
		}
		fmt.Fprintf(s.out, "Track %s\n", arg)
	case "o":
		if err := s.player.SwitchPort(arg); err != nil {
			fmt.Fprintln(s.out, err)
			return false
		}
		fmt.Fprintf(s.out, "Output %s\n", s.player.PortName())
	default:
		fmt.Fprintf(s.out, "unknown command %q\n", line)
	}
	return false
}

// retempo changes tempo keeping the current position.
func (s *session) retempo(tempo float64) {
	if s.player.Position().Status != contracts.Playing {
		s.player.ChangeTempo(tempo, time.Time{})
		s.tempo = tempo
		return
	}
	s.origin = scheduler.RetimedOrigin(s.origin, time.Now(), s.tempo, tempo)
	s.player.ChangeTempo(tempo, s.origin)
	s.tempo = tempo
}

// silentClock tracks an exercise's position by time alone.
type silentClock struct {
	start time.Time
	ex    contracts.Exercise
	tempo float64
	bars  int
}

func (c silentClock) Position() contracts.Position {
	played := time.Since(c.start)
	bar := time.Duration(float64(c.ex.BarDuration()) * c.ex.Tempo() / c.tempo)
	n := int(played / bar)
	if n >= c.bars {
		return contracts.Position{Status: contracts.Idle}
	}
	elapsed := time.Duration(float64(played) * c.tempo / c.ex.Tempo())
	return contracts.Position{
		Status:  contracts.Playing,
		Elapsed: elapsed,
		Bar:     n,
		Beat:    float64(elapsed%c.ex.BarDuration()) / float64(c.ex.BeatDuration()),
	}
}
