package videogenerator

import (
	"fmt"
	"path/filepath"

	"pianoroll/util"
)

func frameFileName(i int) string {
	return fmt.Sprintf(framePattern, i+1)
}

// OutputPath names the video after the midi file.
func OutputPath(outputFolder, midiFilePath string) string {
	return filepath.Join(outputFolder, util.FileNameWithoutExtension(midiFilePath)+".mp4")
}

func totalFrames(durationSeconds, speed float64, fps int) int {
	if speed <= 0 {
		speed = 1
	}
	return int(durationSeconds / speed * float64(fps))
}
