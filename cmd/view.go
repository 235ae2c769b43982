package cmd

import (
	"github.com/spf13/cobra"

	"pianoroll/viewer"
)

var viewFlags struct {
	target string
	speed  float64
}

func init() {
	viewCmd.Flags().StringVar(&viewFlags.target, "target", "", `soundtrack target: "sf2:<path>", "sfz:<name>[@rate]", "system" or "none"`)
	viewCmd.Flags().Float64Var(&viewFlags.speed, "speed", 1, "playback speed")
	rootCmd.AddCommand(viewCmd)
}

var viewCmd = &cobra.Command{
	Use:   "view <file.mid>",
	Short: "Plays a MIDI file as a piano roll in a window",
	Long: `Plays a MIDI file as a piano roll in a window.

Keys: space play/pause, left/right seek, up/down speed, +/- zoom,
mouse wheel magnification, drag to pan, 0 reset view, R reload file, Esc quit.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		target, err := resolveTarget(cfg, viewFlags.target)
		if err != nil {
			return err
		}
		renderer, err := newRenderer(cfg, log)
		if err != nil {
			return err
		}
		return viewer.Run(cmd.Context(), cfg, renderer, args[0], viewer.Options{
			Target: target,
			Speed:  viewFlags.speed,
		}, log)
	},
}
