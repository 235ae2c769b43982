package timeline

import (
	"time"

	"pianoroll/midiparser"
	"pianoroll/viewport"

	"github.com/google/uuid"
)

// Snapshot is one loaded timeline. It is never mutated after it is published.
type Snapshot struct {
	ID         uuid.UUID
	Generation uint64
	Source     string
	LoadedAt   time.Time
	Timeline   *midiparser.ParsedTimeline
}

type LoadResult struct {
	Snapshot *Snapshot
	// Err is the parse error when the load fell back to the placeholder, or
	// the context error when the load was abandoned.
	Err      error
	Fallback bool
	// Stale is set when a newer load was published first and this one was
	// dropped.
	Stale bool
}

type VisibleNote struct {
	Pitch    uint8         `json:"pitch"`
	Rect     viewport.Rect `json:"rect"`
	IsActive bool          `json:"isActive"`
	Track    int           `json:"track"`
	Velocity uint8         `json:"velocity"`
}

type Frame struct {
	TimelineID           uuid.UUID          `json:"timelineId"`
	Now                  float64            `json:"now"`
	HostNow              float64            `json:"hostNow"`
	VisibleNotes         []VisibleNote      `json:"visibleNotes"`
	ActivePitches        []uint8            `json:"activePitches"`
	GlowPitches          []uint8            `json:"glowPitches"`
	Keys                 []viewport.Key     `json:"keys"`
	ImpactX              float64            `json:"impactX"`
	Transform            viewport.Transform `json:"transform"`
	PixelsPerSecond      float64            `json:"pixelsPerSecond"`
	TotalDurationSeconds float64            `json:"totalDurationSeconds"`
	Placeholder          bool               `json:"placeholder"`
	Playing              bool               `json:"playing"`
	Speed                float64            `json:"speed"`
}

func (f Frame) IsGlowing(pitch uint8) bool {
	return containsPitch(f.GlowPitches, pitch)
}

func (f Frame) IsPressed(pitch uint8) bool {
	return containsPitch(f.ActivePitches, pitch)
}

func containsPitch(pitches []uint8, pitch uint8) bool {
	for _, p := range pitches {
		if p == pitch {
			return true
		}
	}
	return false
}
