package midiparser

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

type fixtureEvent struct {
	delta uint32
	msg   []byte
}

func on(delta uint32, key uint8) fixtureEvent {
	return fixtureEvent{delta, midi.NoteOn(0, key, 100)}
}

func off(delta uint32, key uint8) fixtureEvent {
	return fixtureEvent{delta, midi.NoteOff(0, key)}
}

func tempo(delta uint32, bpm float64) fixtureEvent {
	return fixtureEvent{delta, smf.MetaTempo(bpm)}
}

func buildSMF(t *testing.T, ticksPerQuarter uint16, tracks ...[]fixtureEvent) []byte {
	t.Helper()
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ticksPerQuarter)
	for _, events := range tracks {
		var tr smf.Track
		for _, ev := range events {
			tr.Add(ev.delta, ev.msg)
		}
		tr.Close(0)
		require.NoError(t, s.Add(tr))
	}
	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

// rawSMF assembles a format 1 file by hand. declared overrides the length
// written into each track chunk header when it is not zero.
func rawSMF(ticksPerQuarter uint16, declared uint32, bodies ...[]byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("MThd")
	binary.Write(&buf, binary.BigEndian, uint32(6))
	binary.Write(&buf, binary.BigEndian, uint16(1))
	binary.Write(&buf, binary.BigEndian, uint16(len(bodies)))
	binary.Write(&buf, binary.BigEndian, ticksPerQuarter)
	for _, body := range bodies {
		buf.WriteString("MTrk")
		length := uint32(len(body))
		if declared != 0 {
			length = declared
		}
		binary.Write(&buf, binary.BigEndian, length)
		buf.Write(body)
	}
	return buf.Bytes()
}

func TestQuarterNoteAt120BPM(t *testing.T) {
	data := buildSMF(t, 480, []fixtureEvent{
		tempo(0, 120),
		on(0, 60),
		off(480, 60),
	})

	tl, err := Parse(data)
	require.NoError(t, err)

	assert := assert.New(t)
	require.Len(t, tl.Notes, 1)
	assert.Equal(uint8(60), tl.Notes[0].Pitch)
	assert.InDelta(0.0, tl.Notes[0].StartSeconds, 1e-9)
	assert.InDelta(0.5, tl.Notes[0].DurationSeconds, 1e-9)
	assert.InDelta(2.5, tl.TotalDurationSeconds, 1e-9)
	assert.Equal(uint32(480), tl.TicksPerQuarter)
	assert.Empty(tl.Warnings)
	assert.False(tl.Placeholder)
}

func TestMalformedInputIsInvalidHeader(t *testing.T) {
	cases := map[string][]byte{
		"four bytes": {0x4D, 0x54, 0x68, 0x64},
		"bad magic":  append([]byte("RIFF"), 0, 0, 0, 6, 0, 1, 0, 1, 1, 0xE0),
		"zero tpq":   append([]byte("MThd"), 0, 0, 0, 6, 0, 1, 0, 1, 0, 0),
		"smpte":      append([]byte("MThd"), 0, 0, 0, 6, 0, 1, 0, 1, 0xE7, 0x28),
		"format 2":   append([]byte("MThd"), 0, 0, 0, 6, 0, 2, 0, 1, 1, 0xE0),
		"short len":  append([]byte("MThd"), 0, 0, 0, 4, 0, 1, 0, 1, 1, 0xE0),
		"empty":      {},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			tl, err := Parse(data)
			assert.Nil(t, tl)
			assert.True(t, errors.Is(err, ErrInvalidHeader), "got %v", err)
		})
	}
}

func TestUnterminatedNoteGetsMinimumDuration(t *testing.T) {
	data := buildSMF(t, 480, []fixtureEvent{
		on(0, 60),
		off(480, 60),
		on(0, 64),
	})

	tl, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, tl.Notes, 2)

	assert := assert.New(t)
	last := tl.Notes[1]
	assert.Equal(uint8(64), last.Pitch)
	assert.InDelta(0.5, last.StartSeconds, 1e-9)
	assert.Equal(MinNoteDuration, last.DurationSeconds)
	assert.Equal(1, tl.Unterminated)
}

func TestOverlappingSamePitchPairsLastInFirstOut(t *testing.T) {
	data := buildSMF(t, 480, []fixtureEvent{
		tempo(0, 120),
		on(0, 60),
		on(480, 60),
		off(480, 60),
		off(480, 60),
	})

	tl, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, tl.Notes, 2)

	assert := assert.New(t)
	// Ons at ticks 0 and 480, offs at 960 and 1440. The first off closes the
	// most recent on.
	assert.InDelta(0.0, tl.Notes[0].StartSeconds, 1e-9)
	assert.InDelta(1.5, tl.Notes[0].DurationSeconds, 1e-9)
	assert.InDelta(0.5, tl.Notes[1].StartSeconds, 1e-9)
	assert.InDelta(0.5, tl.Notes[1].DurationSeconds, 1e-9)

	// Oldest-first pairing would give both notes a full second.
	for _, n := range tl.Notes {
		assert.NotEqual(1.0, n.DurationSeconds)
	}
}

func TestDurationIsClamped(t *testing.T) {
	data := buildSMF(t, 480, []fixtureEvent{
		tempo(0, 60),
		on(0, 60),
		on(0, 62),
		off(1, 62),
		off(480*40, 60),
	})

	tl, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, tl.Notes, 2)

	for _, n := range tl.Notes {
		assert.GreaterOrEqual(t, n.DurationSeconds, MinNoteDuration)
		assert.LessOrEqual(t, n.DurationSeconds, MaxNoteDuration)
	}
	assert.Equal(t, MaxNoteDuration, tl.Notes[0].DurationSeconds)
	assert.Equal(t, MinNoteDuration, tl.Notes[1].DurationSeconds)
}

func TestPitchesOutsideKeyboardAreDiscarded(t *testing.T) {
	data := buildSMF(t, 96, []fixtureEvent{
		on(0, 20), off(96, 20),
		on(0, 21), off(96, 21),
		on(0, 108), off(96, 108),
		on(0, 109), off(96, 109),
	})

	tl, err := Parse(data)
	require.NoError(t, err)

	assert := assert.New(t)
	require.Len(t, tl.Notes, 2)
	assert.Equal(uint8(21), tl.Notes[0].Pitch)
	assert.Equal(uint8(108), tl.Notes[1].Pitch)
	assert.Equal(2, tl.Discarded)
	for _, n := range tl.Notes {
		assert.True(n.Pitch >= LowestPitch && n.Pitch <= HighestPitch)
	}
}

func TestTempoOnLaterTrackAppliesToAllTracks(t *testing.T) {
	data := buildSMF(t, 480,
		[]fixtureEvent{on(0, 60), off(480, 60)},
		[]fixtureEvent{tempo(0, 60)},
	)

	tl, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, tl.Notes, 1)
	assert.InDelta(t, 1.0, tl.Notes[0].DurationSeconds, 1e-9)
	assert.Equal(t, 2, tl.TrackCount)
	assert.Equal(t, 0, tl.Notes[0].Track)
}

func TestTempoChangeInsideNote(t *testing.T) {
	data := buildSMF(t, 480, []fixtureEvent{
		tempo(0, 120),
		on(0, 60),
		tempo(480, 60),
		off(480, 60),
	})

	tl, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, tl.Notes, 1)
	assert.InDelta(t, 1.5, tl.Notes[0].DurationSeconds, 1e-9)
	assert.InDelta(t, 120.0, tl.Tempo.BPMAt(0), 1e-9)
	assert.InDelta(t, 60.0, tl.Tempo.BPMAt(480), 1e-9)
}

func TestAgreesWithGomidiTimeAt(t *testing.T) {
	data := buildSMF(t, 960, []fixtureEvent{
		tempo(0, 120),
		on(0, 60),
		tempo(960, 90),
		off(960, 60),
		tempo(500, 140),
		on(100, 67),
		off(3000, 67),
	})

	tl, err := Parse(data)
	require.NoError(t, err)

	ref, err := smf.ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)

	assert := assert.New(t)
	for _, tick := range []int64{0, 960, 1920, 2420, 2520, 5520} {
		want := float64(ref.TimeAt(tick)) / 1e6
		got := tl.Tempo.BeatsToSeconds(uint32(tick), 960)
		assert.InDelta(want, got, 1e-5, "tick %d", tick)
	}
}

func TestRunningStatusNoteOnZeroVelocity(t *testing.T) {
	body := []byte{
		0x00, 0x90, 0x3C, 0x64,
		0x83, 0x60, 0x3C, 0x00,
		0x00, 0xFF, 0x2F, 0x00,
	}
	tl, err := Parse(rawSMF(480, 0, body))
	require.NoError(t, err)
	require.Len(t, tl.Notes, 1)
	assert.InDelta(t, 0.5, tl.Notes[0].DurationSeconds, 1e-9)
	assert.Empty(t, tl.Warnings)
}

func TestTruncatedTrackKeepsEarlierEvents(t *testing.T) {
	body := []byte{
		0x00, 0x90, 0x3C, 0x64,
		0x83, 0x60, 0x80, 0x3C, 0x00,
		0x00, 0x90, 0x3E, 0x64,
		0x83, 0x60, 0x80, 0x3E,
	}
	tl, err := Parse(rawSMF(480, uint32(len(body)+10), body))
	require.NoError(t, err)

	assert := assert.New(t)
	require.Len(t, tl.Notes, 2)
	assert.Equal(uint8(60), tl.Notes[0].Pitch)
	assert.InDelta(0.5, tl.Notes[0].DurationSeconds, 1e-9)
	assert.Equal(uint8(62), tl.Notes[1].Pitch)
	assert.Equal(MinNoteDuration, tl.Notes[1].DurationSeconds)

	require.Len(t, tl.Warnings, 1)
	assert.True(errors.Is(tl.Warnings[0], ErrTruncatedTrack))
	var trackErr *TrackError
	require.True(t, errors.As(tl.Warnings[0], &trackErr))
	assert.Equal(0, trackErr.Track)
}

func TestMissingTrackChunkIsReported(t *testing.T) {
	data := rawSMF(480, 0, []byte{0x00, 0xFF, 0x2F, 0x00})
	binary.BigEndian.PutUint16(data[10:12], 3)

	tl, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, 1, tl.TrackCount)
	require.Len(t, tl.Warnings, 1)
	assert.True(t, errors.Is(tl.Warnings[0], ErrTruncatedTrack))
}

func TestUnknownChunksAreSkipped(t *testing.T) {
	data := rawSMF(480, 0)
	binary.BigEndian.PutUint16(data[10:12], 1)
	data = append(data, []byte("XFIH")...)
	data = append(data, 0, 0, 0, 2, 0xAA, 0xBB)
	data = append(data, []byte("MTrk")...)
	data = append(data, 0, 0, 0, 13,
		0x00, 0x90, 0x40, 0x50,
		0x60, 0x80, 0x40, 0x00,
		0x00, 0xFF, 0x2F, 0x00, 0x00)

	tl, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, tl.Notes, 1)
	assert.Equal(t, uint8(64), tl.Notes[0].Pitch)
}

func TestEmptyFileIsNotAnError(t *testing.T) {
	tl, err := Parse(buildSMF(t, 480, []fixtureEvent{tempo(0, 100)}))
	require.NoError(t, err)
	assert.Empty(t, tl.Notes)
	assert.Equal(t, EmptyTimelineSeconds, tl.TotalDurationSeconds)
}

func TestNotesAreSortedByStart(t *testing.T) {
	data := buildSMF(t, 480,
		[]fixtureEvent{on(960, 70), off(480, 70)},
		[]fixtureEvent{on(0, 50), off(480, 50), on(0, 40), off(480, 40)},
	)

	tl, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, tl.Notes, 3)
	for i := 1; i < len(tl.Notes); i++ {
		assert.LessOrEqual(t, tl.Notes[i-1].StartSeconds, tl.Notes[i].StartSeconds)
	}
	assert.Equal(t, uint8(50), tl.Notes[0].Pitch)
	assert.Equal(t, uint8(70), tl.Notes[2].Pitch)
}

func TestBeatsToSecondsIsMonotonic(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for n := 0; n < 50; n++ {
		var changes []TempoChange
		segments := rnd.Intn(8)
		for i := 0; i < segments; i++ {
			changes = append(changes, TempoChange{
				Tick:                       uint32(rnd.Intn(20000)),
				MicrosecondsPerQuarterNote: uint32(100000 + rnd.Intn(1500000)),
			})
		}
		m := NewTempoMap(changes)
		tpq := uint32(24 + rnd.Intn(1000))

		prev := -1.0
		for tick := uint32(0); tick < 25000; tick += uint32(1 + rnd.Intn(97)) {
			got := m.BeatsToSeconds(tick, tpq)
			if got < prev {
				t.Fatalf("map %v: seconds went backwards at tick %d: %v < %v", changes, tick, got, prev)
			}
			prev = got
		}
	}
}

func TestSecondsToBeatsInvertsBeatsToSeconds(t *testing.T) {
	m := NewTempoMap([]TempoChange{
		{Tick: 0, MicrosecondsPerQuarterNote: 500000},
		{Tick: 1920, MicrosecondsPerQuarterNote: 750000},
		{Tick: 4800, MicrosecondsPerQuarterNote: 400000},
	})
	for _, tick := range []uint32{0, 1, 480, 1920, 2000, 4800, 9999} {
		seconds := m.BeatsToSeconds(tick, 480)
		assert.Equal(t, tick, m.SecondsToBeats(seconds, 480), "tick %d", tick)
	}
}

func TestTempoMapDefaultsAndDuplicates(t *testing.T) {
	assert := assert.New(t)

	empty := NewTempoMap(nil)
	assert.InDelta(0.5, empty.BeatsToSeconds(480, 480), 1e-12)

	late := NewTempoMap([]TempoChange{{Tick: 960, MicrosecondsPerQuarterNote: 1000000}})
	changes := late.Changes()
	require.Len(t, changes, 2)
	assert.Equal(TempoChange{Tick: 0, MicrosecondsPerQuarterNote: DefaultMicrosecondsPerQuarter}, changes[0])

	dup := NewTempoMap([]TempoChange{
		{Tick: 0, MicrosecondsPerQuarterNote: 500000},
		{Tick: 0, MicrosecondsPerQuarterNote: 1000000},
	})
	assert.InDelta(1.0, dup.BeatsToSeconds(480, 480), 1e-12)
	assert.Equal(0.0, dup.BeatsToSeconds(480, 0))
}

func TestPlaceholderIsDeterministic(t *testing.T) {
	a := Placeholder()
	b := Placeholder()

	assert := assert.New(t)
	assert.True(a.Placeholder)
	assert.Equal(a.Notes, b.Notes)
	require.Len(t, a.Notes, len(placeholderPattern)*placeholderRepeats)
	assert.InDelta(0.25, a.Notes[1].StartSeconds, 1e-9)
	assert.InDelta(0.25, a.Notes[0].DurationSeconds, 1e-9)
	assert.InDelta(14.0, a.TotalDurationSeconds, 1e-9)
	assert.Equal(placeholderNotes()[5].Pitch, a.Notes[5].Pitch)
}
