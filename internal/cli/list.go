package cli

import (
	"fmt"

	"github.com/leandrodaf/chordpartner/internal/exercise"
	"github.com/spf13/cobra"
)

func (a *app) portsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "Lists MIDI outputs in preference order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.options()
			if err != nil {
				return err
			}
			p, err := a.newPlayer(opts...)
			if err != nil {
				return err
			}
			defer p.Close()

			ports, err := p.Ports()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "listing outputs: %v\n", err)
			}
			for _, name := range ports {
				marker := " "
				if name == p.PortName() {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
			}
			return nil
		},
	}
}

func (a *app) tracksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tracks",
		Short: "Lists backing tracks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := a.library()
			if err != nil {
				return err
			}
			for _, name := range lib.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func (a *app) progressionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progressions",
		Short: "Lists named chord progressions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range exercise.Progressions() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
