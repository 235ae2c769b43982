package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pianoroll/midiparser"
	"pianoroll/renderjob"
	"pianoroll/util"
)

var transcribeFlags struct {
	output  string
	demucs  bool
	profile string
}

func init() {
	f := transcribeCmd.Flags()
	f.StringVarP(&transcribeFlags.output, "output", "o", "", "output MIDI file (default <name>.mid)")
	f.BoolVar(&transcribeFlags.demucs, "demucs", false, "separate the piano stem first")
	f.StringVar(&transcribeFlags.profile, "profile", "", "transcription profile hint")
	rootCmd.AddCommand(transcribeCmd)
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio>",
	Short: "Turns an audio recording into a MIDI file on the transcription service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		client, err := newTranscriber(cfg, log)
		if err != nil {
			return err
		}
		audio, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		var req = renderjob.TranscribeRequest{
			UseDemucs: transcribeFlags.demucs || cfg.Transcribe.UseDemucs,
			Profile:   cfg.Transcribe.Profile,
		}
		if transcribeFlags.profile != "" {
			req.Profile = transcribeFlags.profile
		}
		midi, err := client.Transcribe(cmd.Context(), filepath.Base(args[0]), audio, req)
		if err != nil {
			return err
		}

		var output = transcribeFlags.output
		if output == "" {
			output = util.FileNameWithoutExtension(args[0]) + ".mid"
		}
		if err := os.WriteFile(output, midi, 0o644); err != nil {
			return err
		}
		log.Info("transcription saved", zap.String("output", output), zap.Int("bytes", len(midi)))

		tl, err := midiparser.Parse(midi)
		if err != nil {
			return err
		}
		printTimeline(cmd.OutOrStdout(), tl, false)
		return nil
	},
}
