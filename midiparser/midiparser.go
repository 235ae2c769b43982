package midiparser

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"pianoroll/util"

	"gitlab.com/gomidi/midi/v2"
)

const headerLength = 14

type header struct {
	format          uint16
	tracksNumber    int
	ticksPerQuarter uint32
	end             int
}

func readMThd(data []byte) (header, error) {
	var h header
	if len(data) < headerLength {
		return h, invalidHeader("need %d bytes, got %d", headerLength, len(data))
	}
	if string(data[0:4]) != "MThd" {
		return h, invalidHeader("bad magic %q", data[0:4])
	}

	chunkLength := binary.BigEndian.Uint32(data[4:8])
	if chunkLength < 6 || uint64(chunkLength)+8 > uint64(len(data)) {
		return h, invalidHeader("bad header length %d", chunkLength)
	}

	h.format = binary.BigEndian.Uint16(data[8:10])
	if h.format > 1 {
		return h, invalidHeader("can't process track format %d", h.format)
	}
	h.tracksNumber = int(binary.BigEndian.Uint16(data[10:12]))

	division := binary.BigEndian.Uint16(data[12:14])
	if division&0x8000 != 0 {
		return h, invalidHeader("SMPTE time division is not supported")
	}
	if division == 0 {
		return h, invalidHeader("ticks per quarter note is zero")
	}
	h.ticksPerQuarter = uint32(division)
	h.end = 8 + int(chunkLength)
	return h, nil
}

type openNote struct {
	tick     uint32
	velocity uint8
}

type trackReader struct {
	data       []byte
	pos        int
	index      int
	tick       uint64
	lastStatus byte
}

func (r *trackReader) readByte() (byte, bool) {
	if r.pos >= len(r.data) {
		return 0, false
	}
	b := r.data[r.pos]
	r.pos++
	return b, true
}

func (r *trackReader) readBytes(n int) ([]byte, bool) {
	if n < 0 || len(r.data)-r.pos < n {
		r.pos = len(r.data)
		return nil, false
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, true
}

// readVarLen reads a variable-length quantity of at most four bytes.
func (r *trackReader) readVarLen() (uint32, bool) {
	var value uint32
	for i := 0; i < 4; i++ {
		c, ok := r.readByte()
		if !ok {
			return 0, false
		}
		value = (value << 7) | uint32(c&0x7F)
		if c&0x80 == 0 {
			return value, true
		}
	}
	return 0, false
}

func (r *trackReader) currentTick() uint32 {
	if r.tick > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(r.tick)
}

type parseState struct {
	tempos   []TempoChange
	notes    []rawNote
	warnings []error
}

func channelDataLength(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	}
	return 2
}

// readTrack walks one MTrk body. Notes are paired per pitch with a stack so a
// retriggered pitch releases the most recent start first. Whatever is still
// open when the track ends is closed as an unterminated note.
func (s *parseState) readTrack(index int, body []byte, bodyTruncated bool) {
	r := &trackReader{data: body, index: index}
	open := map[uint8][]openNote{}

	fail := func(reason string) {
		s.warnings = append(s.warnings, truncated(index, r.pos, reason))
	}

readLoop:
	for {
		if r.pos >= len(r.data) {
			if bodyTruncated {
				fail("chunk shorter than declared length")
			}
			break
		}

		delta, ok := r.readVarLen()
		if !ok {
			fail("delta time")
			break
		}
		r.tick += uint64(delta)

		status, ok := r.readByte()
		if !ok {
			fail("missing status byte")
			break
		}
		if status < 0x80 {
			if r.lastStatus == 0 {
				fail("data byte without running status")
				break
			}
			r.pos--
			status = r.lastStatus
		}

		switch {
		case status == 0xFF:
			r.lastStatus = 0
			metaType, ok := r.readByte()
			if !ok {
				fail("meta event type")
				break readLoop
			}
			length, ok := r.readVarLen()
			if !ok {
				fail("meta event length")
				break readLoop
			}
			payload, ok := r.readBytes(int(length))
			if !ok {
				fail("meta event payload")
				break readLoop
			}
			switch metaType {
			case 0x51:
				if len(payload) >= 3 {
					s.tempos = append(s.tempos, TempoChange{
						Tick:                       r.currentTick(),
						MicrosecondsPerQuarterNote: uint32(payload[0])<<16 | uint32(payload[1])<<8 | uint32(payload[2]),
					})
				}
			case 0x2F:
				break readLoop
			}

		case status == 0xF0 || status == 0xF7:
			r.lastStatus = 0
			length, ok := r.readVarLen()
			if !ok {
				fail("sysex length")
				break readLoop
			}
			if _, ok := r.readBytes(int(length)); !ok {
				fail("sysex payload")
				break readLoop
			}

		case status > 0xF0:
			fail(fmt.Sprintf("unexpected status 0x%X", status))
			break readLoop

		default:
			r.lastStatus = status
			payload, ok := r.readBytes(channelDataLength(status))
			if !ok {
				fail("channel message data")
				break readLoop
			}
			for _, b := range payload {
				if b&0x80 != 0 {
					fail("malformed channel message")
					break readLoop
				}
			}

			msg := midi.Message(append([]byte{status}, payload...))
			var channel, key, velocity uint8
			switch {
			case msg.GetNoteStart(&channel, &key, &velocity):
				open[key] = append(open[key], openNote{tick: r.currentTick(), velocity: velocity})
			case msg.GetNoteEnd(&channel, &key):
				stack := open[key]
				if len(stack) == 0 {
					continue
				}
				start := stack[len(stack)-1]
				open[key] = stack[:len(stack)-1]
				s.notes = append(s.notes, rawNote{
					pitch:     key,
					velocity:  start.velocity,
					track:     index,
					startTick: start.tick,
					endTick:   r.currentTick(),
				})
			}
		}
	}

	pitches := make([]int, 0, len(open))
	for key := range open {
		pitches = append(pitches, int(key))
	}
	sort.Ints(pitches)
	for _, key := range pitches {
		for _, start := range open[uint8(key)] {
			s.notes = append(s.notes, rawNote{
				pitch:        uint8(key),
				velocity:     start.velocity,
				track:        index,
				startTick:    start.tick,
				endTick:      start.tick,
				unterminated: true,
			})
		}
	}
}

// Parse decodes a Standard MIDI File (format 0 or 1) into a sorted note list.
// A malformed header is fatal and wraps ErrInvalidHeader. Damaged tracks are
// cut short and reported in ParsedTimeline.Warnings wrapping ErrTruncatedTrack.
func Parse(data []byte) (*ParsedTimeline, error) {
	h, err := readMThd(data)
	if err != nil {
		return nil, err
	}

	state := &parseState{}
	pos := h.end
	trackIndex := 0
	for trackIndex < h.tracksNumber && pos < len(data) {
		if len(data)-pos < 8 {
			state.warnings = append(state.warnings, truncated(trackIndex, pos, "chunk header"))
			pos = len(data)
			break
		}
		chunkID := string(data[pos : pos+4])
		chunkBytes := binary.BigEndian.Uint32(data[pos+4 : pos+8])
		pos += 8

		end := len(data)
		bodyTruncated := true
		if uint64(chunkBytes) <= uint64(len(data)-pos) {
			end = pos + int(chunkBytes)
			bodyTruncated = false
		}

		if chunkID != "MTrk" {
			pos = end
			continue
		}
		state.readTrack(trackIndex, data[pos:end], bodyTruncated)
		pos = end
		trackIndex++
	}
	if trackIndex < h.tracksNumber && pos >= len(data) && len(state.warnings) == 0 {
		state.warnings = append(state.warnings, truncated(trackIndex, pos, fmt.Sprintf("header announces %d tracks, found %d", h.tracksNumber, trackIndex)))
	}

	tempo := NewTempoMap(state.tempos)
	timeline := &ParsedTimeline{
		Format:          h.format,
		TrackCount:      trackIndex,
		TicksPerQuarter: h.ticksPerQuarter,
		Tempo:           tempo,
		Warnings:        state.warnings,
		Notes:           make([]NoteEvent, 0, len(state.notes)),
	}

	for _, raw := range state.notes {
		if raw.pitch < LowestPitch || raw.pitch > HighestPitch {
			timeline.Discarded++
			continue
		}

		start := tempo.BeatsToSeconds(raw.startTick, h.ticksPerQuarter)
		duration := MinNoteDuration
		if raw.unterminated {
			timeline.Unterminated++
		} else {
			duration = tempo.BeatsToSeconds(raw.endTick, h.ticksPerQuarter) - start
		}

		timeline.Notes = append(timeline.Notes, NoteEvent{
			Pitch:           raw.pitch,
			StartSeconds:    start,
			DurationSeconds: util.Clamp(duration, MinNoteDuration, MaxNoteDuration),
			Velocity:        raw.velocity,
			Track:           raw.track,
		})
	}

	SortNotes(timeline.Notes)
	timeline.TotalDurationSeconds = TotalDuration(timeline.Notes)
	return timeline, nil
}

func SortNotes(notes []NoteEvent) {
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].StartSeconds != notes[j].StartSeconds {
			return notes[i].StartSeconds < notes[j].StartSeconds
		}
		return notes[i].Pitch < notes[j].Pitch
	})
}

func TotalDuration(notes []NoteEvent) float64 {
	if len(notes) == 0 {
		return EmptyTimelineSeconds
	}
	var lastEnd float64
	for _, n := range notes {
		if end := n.EndSeconds(); end > lastEnd {
			lastEnd = end
		}
	}
	return lastEnd + TailSeconds
}

func ParseReader(r io.Reader) (*ParsedTimeline, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading midi data: %w", err)
	}
	return Parse(data)
}

func ParseFile(path string) (*ParsedTimeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading midi file: %w", err)
	}
	return Parse(data)
}
