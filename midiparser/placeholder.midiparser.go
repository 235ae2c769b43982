package midiparser

import (
	"bytes"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	placeholderTicksPerQuarter = 480
	placeholderBPM             = 120
	placeholderRepeats         = 4
)

// Two octave C major arpeggio, up and back down, one eighth note per step.
var placeholderPattern = []uint8{48, 52, 55, 60, 64, 67, 72, 67, 64, 60, 55, 52}

// PlaceholderSMF writes the placeholder pattern as a format 1 SMF.
func PlaceholderSMF() ([]byte, error) {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(placeholderTicksPerQuarter)

	var eighth uint32 = placeholderTicksPerQuarter / 2
	var tr smf.Track
	tr.Add(0, smf.MetaTempo(placeholderBPM))
	for i := 0; i < placeholderRepeats; i++ {
		for _, pitch := range placeholderPattern {
			tr.Add(0, midi.NoteOn(0, pitch, 90))
			tr.Add(eighth, midi.NoteOff(0, pitch))
		}
	}
	tr.Close(0)

	if err := s.Add(tr); err != nil {
		return nil, fmt.Errorf("adding placeholder track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("writing placeholder smf: %w", err)
	}
	return buf.Bytes(), nil
}

func placeholderNotes() []NoteEvent {
	var step = 60.0 / placeholderBPM / 2
	var notes []NoteEvent
	var i int
	for r := 0; r < placeholderRepeats; r++ {
		for _, pitch := range placeholderPattern {
			notes = append(notes, NoteEvent{
				Pitch:           pitch,
				StartSeconds:    float64(i) * step,
				DurationSeconds: step,
				Velocity:        90,
			})
			i++
		}
	}
	return notes
}

// Placeholder returns the deterministic timeline shown when a file can't be
// parsed at all. It always succeeds.
func Placeholder() *ParsedTimeline {
	var timeline *ParsedTimeline
	data, err := PlaceholderSMF()
	if err == nil {
		timeline, err = Parse(data)
	}
	if err != nil || len(timeline.Notes) == 0 {
		notes := placeholderNotes()
		timeline = &ParsedTimeline{
			Notes:                notes,
			TotalDurationSeconds: TotalDuration(notes),
			Format:               1,
			TrackCount:           1,
			TicksPerQuarter:      placeholderTicksPerQuarter,
			Tempo:                NewTempoMap(nil),
		}
	}
	timeline.Placeholder = true
	return timeline
}
