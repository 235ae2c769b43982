package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"pianoroll/util"
)

var synthFlags struct {
	target string
	output string
}

func init() {
	synthCmd.Flags().StringVar(&synthFlags.target, "target", "", `render target: "sf2:<path>", "sfz:<name>[@rate]" or "system"`)
	synthCmd.Flags().StringVarP(&synthFlags.output, "output", "o", "", "output wav (default <name>.wav)")
	rootCmd.AddCommand(synthCmd)
}

var synthCmd = &cobra.Command{
	Use:   "synth <file.mid>",
	Short: "Renders the audio of a MIDI file to WAV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		target, err := resolveTarget(cfg, synthFlags.target)
		if err != nil {
			return err
		}
		if target.Kind == 0 {
			return cmd.Help()
		}
		renderer, err := newRenderer(cfg, log)
		if err != nil {
			return err
		}

		midi, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var output = synthFlags.output
		if output == "" {
			output = util.FileNameWithoutExtension(args[0]) + ".wav"
		}
		return renderer.RenderFile(cmd.Context(), target, midi, output)
	},
}
