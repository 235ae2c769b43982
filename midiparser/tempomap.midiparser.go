package midiparser

import (
	"math"
	"sort"
)

type TempoChange struct {
	Tick                       uint32 `json:"tick"`
	MicrosecondsPerQuarterNote uint32 `json:"microsecondsPerQuarterNote"`
}

func (c TempoChange) BPM() float64 {
	return 60000000 / float64(c.MicrosecondsPerQuarterNote)
}

// TempoMap is an immutable, tick-ordered list of tempo changes whose first
// entry is always at tick 0.
type TempoMap struct {
	changes []TempoChange
}

// NewTempoMap orders the changes by tick. When several changes share a tick
// the last one given wins. A map without a change at tick 0 starts at 120 BPM.
func NewTempoMap(changes []TempoChange) *TempoMap {
	var ordered = make([]TempoChange, 0, len(changes)+1)
	for _, c := range changes {
		if c.MicrosecondsPerQuarterNote == 0 {
			continue
		}
		ordered = append(ordered, c)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Tick < ordered[j].Tick
	})

	var deduped = make([]TempoChange, 0, len(ordered)+1)
	for _, c := range ordered {
		if n := len(deduped); n > 0 && deduped[n-1].Tick == c.Tick {
			deduped[n-1] = c
			continue
		}
		deduped = append(deduped, c)
	}

	if len(deduped) == 0 || deduped[0].Tick > 0 {
		deduped = append([]TempoChange{{Tick: 0, MicrosecondsPerQuarterNote: DefaultMicrosecondsPerQuarter}}, deduped...)
	}

	return &TempoMap{changes: deduped}
}

func (m *TempoMap) Changes() []TempoChange {
	var out = make([]TempoChange, len(m.changes))
	copy(out, m.changes)
	return out
}

func segmentSeconds(ticks uint32, microsecondsPerQuarter uint32, ticksPerQuarter uint32) float64 {
	return float64(ticks) * (float64(microsecondsPerQuarter) / float64(ticksPerQuarter)) / 1000000
}

// BeatsToSeconds converts an absolute tick position to seconds. Every fully
// elapsed segment contributes its whole length, the segment containing ticks
// contributes the remainder.
func (m *TempoMap) BeatsToSeconds(ticks uint32, ticksPerQuarter uint32) float64 {
	if ticksPerQuarter == 0 {
		return 0
	}

	var seconds float64
	for i, c := range m.changes {
		if ticks <= c.Tick {
			break
		}
		var segmentEnd = ticks
		if i+1 < len(m.changes) && m.changes[i+1].Tick < ticks {
			segmentEnd = m.changes[i+1].Tick
		}
		seconds += segmentSeconds(segmentEnd-c.Tick, c.MicrosecondsPerQuarterNote, ticksPerQuarter)
	}
	return seconds
}

// SecondsToBeats is the inverse of BeatsToSeconds, rounded to the nearest tick.
func (m *TempoMap) SecondsToBeats(seconds float64, ticksPerQuarter uint32) uint32 {
	if seconds <= 0 || ticksPerQuarter == 0 {
		return 0
	}

	var elapsed float64
	for i, c := range m.changes {
		var ticksPerSecond = float64(ticksPerQuarter) * 1000000 / float64(c.MicrosecondsPerQuarterNote)
		if i+1 < len(m.changes) {
			var segment = segmentSeconds(m.changes[i+1].Tick-c.Tick, c.MicrosecondsPerQuarterNote, ticksPerQuarter)
			if elapsed+segment < seconds {
				elapsed += segment
				continue
			}
		}
		var ticks = float64(c.Tick) + (seconds-elapsed)*ticksPerSecond
		if ticks >= math.MaxUint32 {
			return math.MaxUint32
		}
		return uint32(math.Round(ticks))
	}
	return 0
}

func (m *TempoMap) At(tick uint32) TempoChange {
	var i = sort.Search(len(m.changes), func(i int) bool {
		return m.changes[i].Tick > tick
	})
	if i == 0 {
		return m.changes[0]
	}
	return m.changes[i-1]
}

func (m *TempoMap) BPMAt(tick uint32) float64 {
	return m.At(tick).BPM()
}
