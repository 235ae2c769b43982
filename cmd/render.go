package cmd

import (
	"github.com/spf13/cobra"

	"pianoroll/videogenerator"
)

var renderFlags struct {
	output     string
	speed      float64
	zoom       float64
	target     string
	resolution string
	fps        int
	keepFrames bool
}

func init() {
	f := renderCmd.Flags()
	f.StringVarP(&renderFlags.output, "output", "o", "", "output mp4 (default <outputDir>/<name>.mp4)")
	f.Float64Var(&renderFlags.speed, "speed", 1, "playback speed")
	f.Float64Var(&renderFlags.zoom, "zoom", 1, "horizontal zoom")
	f.StringVar(&renderFlags.target, "target", "", `soundtrack target: "sf2:<path>", "sfz:<name>[@rate]", "system" or "none"`)
	f.StringVar(&renderFlags.resolution, "resolution", "", "1080p, 720p, 480p or 360p")
	f.IntVar(&renderFlags.fps, "fps", 0, "frames per second")
	f.BoolVar(&renderFlags.keepFrames, "keep-frames", false, "keep the PNG frames")
	rootCmd.AddCommand(renderCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render <file.mid>",
	Short: "Renders a piano roll video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		if renderFlags.resolution != "" {
			r, err := videogenerator.Resolution(renderFlags.resolution)
			if err != nil {
				return err
			}
			cfg.Video.Width, cfg.Video.Height = int(r[0]), int(r[1])
		}
		if renderFlags.fps > 0 {
			cfg.Video.FPS = renderFlags.fps
		}
		if renderFlags.keepFrames {
			cfg.Video.KeepFrames = true
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		target, err := resolveTarget(cfg, renderFlags.target)
		if err != nil {
			return err
		}
		renderer, err := newRenderer(cfg, log)
		if err != nil {
			return err
		}

		var output = renderFlags.output
		if output == "" {
			output = videogenerator.OutputPath(cfg.Video.OutputDir, args[0])
		}
		g := videogenerator.New(cfg, renderer, log)
		return g.Generate(cmd.Context(), args[0], output, videogenerator.Options{
			Speed:  renderFlags.speed,
			Zoom:   renderFlags.zoom,
			Target: target,
		})
	},
}
