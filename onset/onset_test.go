package onset

import (
	"testing"

	"pianoroll/midiparser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ppse = 120.0

func note(pitch uint8, start, duration float64) midiparser.NoteEvent {
	return midiparser.NoteEvent{Pitch: pitch, StartSeconds: start, DurationSeconds: duration}
}

func TestGlowInsideEpsilonWindow(t *testing.T) {
	notes := []midiparser.NoteEvent{note(60, 1.0, 0.5), note(64, 1.2, 0.5)}

	d := New(DefaultConfig())
	assert.Empty(t, d.Tick(notes, 0.9, ppse, 10).GlowPitches)

	d = New(DefaultConfig())
	assert.Equal(t, []uint8{60}, d.Tick(notes, 0.98, ppse, 10).GlowPitches)

	d = New(DefaultConfig())
	assert.Equal(t, []uint8{60}, d.Tick(notes, 1.0, ppse, 10).GlowPitches)
}

func TestGlowIsIdempotentForUnchangedNow(t *testing.T) {
	notes := []midiparser.NoteEvent{note(60, 1.0, 0.5), note(67, 1.01, 0.5), note(72, 3, 1)}
	d := New(DefaultConfig())

	first := d.Tick(notes, 0.97, ppse, 5)
	entries := d.Entries()
	second := d.Tick(notes, 0.97, ppse, 5)

	assert.Equal(t, first, second)
	assert.Equal(t, entries, d.Entries())
	assert.Equal(t, []uint8{60, 67}, second.GlowPitches)
}

func TestGlowDoesNotDependOnZoom(t *testing.T) {
	notes := []midiparser.NoteEvent{note(60, 1.0, 0.5), note(62, 1.049, 0.5), note(64, 1.06, 0.5)}
	for _, rate := range []float64{60, 120, 360} {
		d := New(DefaultConfig())
		assert.Equal(t, []uint8{60, 62}, d.Tick(notes, 1.0, rate, 0).GlowPitches, "rate %v", rate)
	}
}

func TestReArmExtendsExpiry(t *testing.T) {
	notes := []midiparser.NoteEvent{note(60, 1.0, 0.1), note(60, 1.2, 0.1)}
	d := New(DefaultConfig())

	d.Tick(notes, 0.98, ppse, 10)
	require.Len(t, d.Entries(), 1)
	assert.InDelta(t, 10.25, d.Entries()[0].ExpiresAt, 1e-9)

	d.Tick(notes, 1.17, ppse, 10.19)
	require.Len(t, d.Entries(), 1)
	assert.InDelta(t, 10.44, d.Entries()[0].ExpiresAt, 1e-9)
}

func TestGlowExpires(t *testing.T) {
	notes := []midiparser.NoteEvent{note(60, 1.0, 0.1)}
	d := New(DefaultConfig())

	assert.Equal(t, []uint8{60}, d.Tick(notes, 0.98, ppse, 10).GlowPitches)
	assert.Equal(t, []uint8{60}, d.Tick(notes, 1.1, ppse, 10.2).GlowPitches)
	assert.Empty(t, d.Tick(notes, 1.3, ppse, 10.25).GlowPitches)
}

func TestSlowFrameStillFiresOnset(t *testing.T) {
	notes := []midiparser.NoteEvent{note(64, 1.0, 0.5)}
	d := New(DefaultConfig())

	assert.Empty(t, d.Tick(notes, 0.8, ppse, 0).GlowPitches)
	assert.Equal(t, []uint8{64}, d.Tick(notes, 1.1, ppse, 0.3).GlowPitches)
}

func TestSeekDoesNotFireSkippedOnsets(t *testing.T) {
	notes := []midiparser.NoteEvent{note(64, 1.0, 0.5), note(65, 2.0, 0.5)}

	d := New(DefaultConfig())
	d.Tick(notes, 0.5, ppse, 0)
	assert.Empty(t, d.Tick(notes, 5.0, ppse, 0.016).GlowPitches)

	d = New(DefaultConfig())
	d.Tick(notes, 5.0, ppse, 0)
	assert.Empty(t, d.Tick(notes, 0.9, ppse, 0.016).GlowPitches)
}

func TestActivePitches(t *testing.T) {
	notes := []midiparser.NoteEvent{
		note(48, 0, 30),
		note(60, 1, 2),
		note(60, 1.5, 0.5),
		note(64, 2.5, 1),
		note(67, 4, 1),
	}
	midiparser.SortNotes(notes)

	assert.Equal(t, []uint8{48, 60}, ActivePitches(notes, 2))
	assert.Equal(t, []uint8{48, 60, 64}, ActivePitches(notes, 2.9))
	assert.Equal(t, []uint8{}, ActivePitches(notes, 31))
	assert.Equal(t, []uint8{}, ActivePitches(nil, 1))

	d := New(DefaultConfig())
	assert.Equal(t, []uint8{48, 64}, d.Tick(notes, 3.2, ppse, 0).ActivePitches)
}

func TestResetClearsGlow(t *testing.T) {
	notes := []midiparser.NoteEvent{note(60, 1.0, 0.1)}
	d := New(DefaultConfig())
	d.Tick(notes, 0.99, ppse, 1)
	require.NotEmpty(t, d.GlowPitches())

	d.Reset()
	assert.Empty(t, d.GlowPitches())
	assert.Empty(t, d.Entries())
}
