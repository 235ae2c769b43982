package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pianoroll/config"
	"pianoroll/logger"
	"pianoroll/renderjob"
	"pianoroll/synth"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "pianoroll",
	Short: "Piano roll timelines from MIDI files",
	Long: `Parses Standard MIDI Files into a note timeline and plays it back as a
scrolling piano roll: in a window, as an mp4, or over HTTP.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "JSON config file (default $"+config.EnvConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cobra.CheckErr(rootCmd.ExecuteContext(ctx))
}

// setup loads the config and builds the logger every command shares.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Resolve(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log, err := logger.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func newRenderer(cfg *config.Config, log *zap.Logger) (*synth.Renderer, error) {
	var opts = []synth.Option{
		synth.WithLogger(log.Named("synth")),
		synth.WithTimidity(cfg.Synth.Timidity),
	}
	if cfg.Synth.RenderServiceURL != "" {
		client, err := renderjob.New(cfg.Synth.RenderServiceURL, renderjob.WithLogger(log.Named("renderjob")))
		if err != nil {
			return nil, err
		}
		opts = append(opts, synth.WithRemote(client))
	}
	return synth.NewRenderer(opts...), nil
}

var errNoTranscribeService = errors.New("no transcription service configured")

func newTranscriber(cfg *config.Config, log *zap.Logger) (*renderjob.Client, error) {
	var serviceURL = cfg.TranscribeServiceURL()
	if serviceURL == "" {
		return nil, errNoTranscribeService
	}
	return renderjob.New(serviceURL,
		renderjob.WithLogger(log.Named("transcribe")),
		renderjob.WithHTTPClient(&http.Client{Timeout: 10 * time.Minute}),
	)
}

// resolveTarget prefers the flag value over the configured target. "none"
// disables audio.
func resolveTarget(cfg *config.Config, flag string) (synth.RenderTarget, error) {
	var s = flag
	if s == "" {
		s = cfg.Synth.Target
	}
	if s == "" || s == "none" {
		return synth.RenderTarget{}, nil
	}
	return synth.ParseTarget(s)
}
