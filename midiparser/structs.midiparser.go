package midiparser

const (
	LowestPitch  uint8 = 21
	HighestPitch uint8 = 108

	MinNoteDuration = 0.03
	MaxNoteDuration = 30.0

	// TailSeconds is added after the last note ends.
	TailSeconds = 2.0
	// EmptyTimelineSeconds is the length of a timeline with no notes.
	EmptyTimelineSeconds = 10.0

	DefaultMicrosecondsPerQuarter uint32 = 500000
)

type NoteEvent struct {
	Pitch           uint8   `json:"pitch"`
	StartSeconds    float64 `json:"start"`
	DurationSeconds float64 `json:"duration"`
	Velocity        uint8   `json:"velocity"`
	Track           int     `json:"track"`
}

func (n NoteEvent) EndSeconds() float64 {
	return n.StartSeconds + n.DurationSeconds
}

type ParsedTimeline struct {
	Notes                []NoteEvent `json:"notes"`
	TotalDurationSeconds float64     `json:"totalDurationSeconds"`

	Format          uint16    `json:"format"`
	TrackCount      int       `json:"trackCount"`
	TicksPerQuarter uint32    `json:"ticksPerQuarter"`
	Tempo           *TempoMap `json:"-"`
	Unterminated    int       `json:"unterminated"`
	Discarded       int       `json:"discarded"`
	Warnings        []error   `json:"-"`
	Placeholder     bool      `json:"placeholder"`
}

// rawNote is a paired note still expressed in ticks.
type rawNote struct {
	pitch        uint8
	velocity     uint8
	track        int
	startTick    uint32
	endTick      uint32
	unterminated bool
}
