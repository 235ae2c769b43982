package videogenerator

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"pianoroll/synth"
)

// renderAudio writes the soundtrack next to the frames. It returns "" when
// there is nothing to render.
func (g *Generator) renderAudio(ctx context.Context, target synth.RenderTarget, midi []byte, folder string) (string, error) {
	if target.Kind == 0 || g.renderer == nil {
		return "", nil
	}
	var outputWavPath = filepath.Join(folder, "audio.wav")
	if err := g.renderer.RenderFile(ctx, target, midi, outputWavPath); err != nil {
		return "", err
	}
	return outputWavPath, nil
}

// soundtrack renders the audio, or returns "" for a silent video when the
// target cannot be rendered. Only cancellation is an error.
func (g *Generator) soundtrack(ctx context.Context, target synth.RenderTarget, midi []byte, folder string) (string, error) {
	path, err := g.renderAudio(ctx, target, midi, folder)
	if err == nil {
		return path, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	g.log.Warn("soundtrack unavailable, rendering a silent video", zap.String("target", target.String()), zap.Error(err))
	return "", nil
}

func removeAudioFile(filePath string) {
	if filePath != "" {
		os.Remove(filePath)
	}
}
