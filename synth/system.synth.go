package synth

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// renderSystem hands the file to the timidity executable and reads back the
// WAV it writes.
func (r *Renderer) renderSystem(ctx context.Context, target RenderTarget, midi []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "pianoroll-synth-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	var midiFilePath = filepath.Join(dir, "input.mid")
	var outputWavPath = filepath.Join(dir, "output.wav")
	if err := os.WriteFile(midiFilePath, midi, 0o644); err != nil {
		return nil, err
	}

	timidityCmdArgs := []string{
		midiFilePath, "-Ow",
		"--preserve-silence",
		"-s", fmt.Sprintf("%d", target.SampleRate),
		"-o", outputWavPath,
	}

	cmd := exec.CommandContext(ctx, r.timidity, timidityCmdArgs...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("error executing %s %s: %w: %s", r.timidity, strings.Join(timidityCmdArgs, " "), err, strings.TrimSpace(string(out)))
	}

	return os.ReadFile(outputWavPath)
}
