package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pianoroll/apiserver"
	"pianoroll/timeline"
	"pianoroll/transport"
)

var serveFlags struct {
	port string
	play bool
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.port, "port", "", "listen port (default from config)")
	serveCmd.Flags().BoolVar(&serveFlags.play, "play", false, "start the live clock right away")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [file.mid]",
	Short: "Serves timelines and frames over HTTP",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		clock := transport.NewWallClock()
		engine := timeline.NewEngine(timeline.NewClock(clock),
			timeline.WithLogger(log),
			timeline.WithViewport(cfg.Viewport),
			timeline.WithOnset(cfg.Onset),
		)
		if len(args) == 1 {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			res := engine.LoadSync(cmd.Context(), args[0], data)
			if res.Snapshot == nil {
				return res.Err
			}
		}
		if serveFlags.play {
			clock.Play()
		}

		var port = serveFlags.port
		if port == "" {
			port = cfg.Server.Port
		}
		var opts []apiserver.Option
		transcriber, err := newTranscriber(cfg, log)
		switch {
		case err == nil:
			opts = append(opts, apiserver.WithTranscriber(transcriber))
		case !errors.Is(err, errNoTranscribeService):
			return err
		}

		log.Debug("serving", zap.Strings("allowedOrigins", cfg.Server.AllowedOrigins), zap.Bool("transcribe", transcriber != nil))
		return apiserver.New(engine, cfg, log, opts...).Run(cmd.Context(), port)
	},
}
