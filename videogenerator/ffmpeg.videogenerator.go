package videogenerator

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

type muxJob struct {
	framesFolder  string
	audioFilePath string
	outputPath    string
	fps           int
	// startDelay and duration are in video seconds.
	startDelay float64
	duration   float64
	speed      float64
}

// atempoFilter chains atempo stages, each limited to [0.5, 2].
func atempoFilter(speed float64) string {
	var parts []string
	for speed > 2 {
		parts = append(parts, "atempo=2.0")
		speed /= 2
	}
	for speed < 0.5 {
		parts = append(parts, "atempo=0.5")
		speed /= 0.5
	}
	parts = append(parts, fmt.Sprintf("atempo=%.4f", speed))
	return strings.Join(parts, ",")
}

func ffmpegArgs(j muxJob) []string {
	cmdArgs := []string{
		"-framerate", fmt.Sprintf("%d", j.fps),
		"-i", filepath.Join(j.framesFolder, framePattern),
	}

	if j.audioFilePath != "" {
		if j.speed == 1 {
			cmdArgs = append(cmdArgs,
				"-itsoffset", fmt.Sprintf("%fs", j.startDelay),
				"-i", j.audioFilePath,
			)
		} else {
			cmdArgs = append(cmdArgs,
				"-i", j.audioFilePath,
				"-filter:a", fmt.Sprintf("%s,adelay=%d:all=1", atempoFilter(j.speed), int(j.startDelay*1000)),
			)
		}
		cmdArgs = append(cmdArgs, "-map", "0:v", "-map", "1:a")
	}

	cmdArgs = append(cmdArgs,
		"-preset", "veryfast",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-tune", "animation",
		"-y",
		"-t", fmt.Sprintf("%f", j.duration),
		j.outputPath,
	)
	return cmdArgs
}

func createVideoFromFrames(ctx context.Context, ffmpeg string, j muxJob) error {
	cmdArgs := ffmpegArgs(j)
	cmd := exec.CommandContext(ctx, ffmpeg, cmdArgs...)

	if out, err := cmd.CombinedOutput(); err != nil {
		var fullCmd = ffmpeg + " " + strings.Join(cmdArgs, " ")
		return fmt.Errorf("error executing FFmpeg command: %s; %v: %s", fullCmd, err, lastLines(string(out), 5))
	}

	return nil
}

func lastLines(s string, n int) string {
	var lines = strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
