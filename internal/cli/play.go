package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/leandrodaf/chordpartner/internal/exercise"
	"github.com/leandrodaf/chordpartner/internal/patterns"
	"github.com/spf13/cobra"
)

// maxLength caps how far a progression is repeated.
const maxLength = 64

type playFlags struct {
	tempo         float64
	length        int
	root          string
	mode          string
	harmonization string
	progression   string
	track         string
	seed          int64
}

func (a *app) playCmd() *cobra.Command {
	var f playFlags
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Generates an exercise and plays its backing track",
		Long: `play prints a chord exercise and plays the backing track. While playing,
type a command and press enter:

  p          pause or resume
  + / -      tempo up or down by 5 BPM
  t NAME     switch backing track
  o NAME     switch MIDI output
  q          quit

Without a usable MIDI output the exercise is followed silently.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.play(ctx, cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.Float64Var(&f.tempo, "tempo", exercise.DefaultTempo, "tempo in BPM")
	fl.IntVar(&f.length, "length", exercise.DefaultLength, "exercise length in bars, fitted to whole progressions")
	fl.StringVar(&f.root, "root", "", "scale root such as C, F#, Bb; random when empty")
	fl.StringVar(&f.mode, "mode", string(exercise.Major), "scale mode: major or minor")
	fl.StringVar(&f.harmonization, "harmonization", string(exercise.Triads), "chord type: triads or 7ths")
	fl.StringVar(&f.progression, "progression", "", "named progression; random chords when empty")
	fl.StringVar(&f.track, "track", patterns.DefaultTrack, "backing track")
	fl.Int64Var(&f.seed, "seed", 0, "random seed, 0 for a time based one")
	return cmd
}

func (f playFlags) exercise() (*exercise.Exercise, error) {
	length := f.length
	if f.progression != "" {
		fitted, _, err := exercise.ProgressionLength(f.progression, f.length, maxLength)
		if err != nil {
			return nil, err
		}
		length = fitted
	}
	var rnd *rand.Rand
	if f.seed != 0 {
		rnd = rand.New(rand.NewSource(f.seed))
	}
	return exercise.New(exercise.Config{
		Tempo:         f.tempo,
		Length:        length,
		Root:          f.root,
		Mode:          exercise.Mode(f.mode),
		Harmonization: exercise.Harmonization(f.harmonization),
		Progression:   f.progression,
		Rand:          rnd,
	})
}

func (a *app) play(ctx context.Context, cmd *cobra.Command, f playFlags) error {
	ex, err := f.exercise()
	if err != nil {
		return err
	}
	lib, err := a.library()
	if err != nil {
		return err
	}
	if _, err := lib.Lookup(f.track); err != nil {
		return err
	}
	opts, err := a.options()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	describe(out, ex, f.track, f.tempo)

	s := &session{ex: ex, tempo: f.tempo, leadIn: patterns.LeadInBars, out: out}
	p, err := a.newPlayer(opts...)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "MIDI output unavailable, following silently: %v\n", err)
		s.position = silentClock{start: time.Now(), ex: ex, tempo: f.tempo, bars: s.leadIn + ex.Length()}.Position
		return s.run(ctx, nil)
	}
	defer p.Close()

	s.player = p
	s.position = p.Position
	if s.origin, err = p.Start(ex, f.track, f.tempo); err != nil {
		return err
	}
	fmt.Fprintf(out, "Playing on %s\n", p.PortName())
	return s.run(ctx, readCommands(cmd.InOrStdin()))
}

func describe(w io.Writer, ex *exercise.Exercise, track string, tempo float64) {
	names := make([]string, ex.Length())
	for i := range names {
		names[i] = ex.ChordName(i)
	}
	fmt.Fprintf(w, "Scale:       %s\n", ex.ScaleName())
	fmt.Fprintf(w, "Progression: %s\n", ex.RomanProgression())
	fmt.Fprintf(w, "Chords:      %s\n", strings.Join(names, " | "))
	fmt.Fprintf(w, "Track:       %s at %g BPM\n", track, tempo)
}

// readCommands forwards trimmed input lines until EOF.
func readCommands(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				lines <- line
			}
		}
	}()
	return lines
}
