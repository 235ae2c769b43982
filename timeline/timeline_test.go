package timeline

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pianoroll/midiparser"
	"pianoroll/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type recordingTransport struct {
	mu       sync.Mutex
	position float64
	rates    []float64
	seeks    []float64
	rateErr  error
}

func (r *recordingTransport) CurrentPosition() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.position
}

func (r *recordingTransport) SetRate(rate float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rateErr != nil {
		return r.rateErr
	}
	r.rates = append(r.rates, rate)
	return nil
}

func (r *recordingTransport) Seek(seconds float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seeks = append(r.seeks, seconds)
	r.position = seconds
	return nil
}

func (r *recordingTransport) IsPlaying() bool {
	return true
}

func TestClockWritesSpeedThrough(t *testing.T) {
	assert := assert.New(t)
	tr := &recordingTransport{}
	c := NewClock(tr)

	s, err := c.SetSpeed(1.5)
	assert.NoError(err)
	assert.Equal(1.5, s)
	s, _ = c.SetSpeed(10)
	assert.Equal(MaxSpeed, s)
	s, _ = c.SetSpeed(0)
	assert.Equal(MinSpeed, s)
	assert.Equal([]float64{1.5, MaxSpeed, MinSpeed}, tr.rates)
	assert.Equal(MinSpeed, c.State().SpeedMultiplier)

	tr.rateErr = errors.New("device busy")
	s, err = c.SetSpeed(2)
	assert.Error(err)
	assert.Equal(MinSpeed, s)
	assert.Equal(MinSpeed, c.Speed())
}

func TestClockSeekIsVisibleImmediately(t *testing.T) {
	tr := &recordingTransport{}
	c := NewClock(tr)

	require.NoError(t, c.Seek(12.5))
	assert.Equal(t, 12.5, c.Now())
	require.NoError(t, c.Seek(-1))
	assert.Equal(t, 0.0, c.Now())
	assert.Equal(t, []float64{12.5, 0}, tr.seeks)
}

func quarterNoteSMF(t *testing.T, pitch uint8) []byte {
	t.Helper()
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)
	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(480, midi.NoteOn(0, pitch, 100))
	tr.Add(480, midi.NoteOff(0, pitch))
	tr.Close(0)
	require.NoError(t, s.Add(tr))
	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *transport.Stepped) {
	st := transport.NewStepped(60)
	opts = append([]Option{WithLogger(zaptest.NewLogger(t)), WithHostClock(st.Elapsed)}, opts...)
	return NewEngine(NewClock(st), opts...), st
}

func TestLoadPublishesSnapshot(t *testing.T) {
	e, _ := newTestEngine(t)
	before := e.Snapshot()

	res := e.LoadSync(context.Background(), "a.mid", quarterNoteSMF(t, 60))
	require.NoError(t, res.Err)
	assert.False(t, res.Fallback)
	assert.False(t, res.Stale)
	assert.Equal(t, res.Snapshot, e.Snapshot())
	assert.NotEqual(t, before.ID, e.Snapshot().ID)

	notes := e.Snapshot().Timeline.Notes
	require.Len(t, notes, 1)
	assert.InDelta(t, 0.5, notes[0].StartSeconds, 1e-9)
}

func TestLoadFallsBackToPlaceholder(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	e, _ := newTestEngine(t, WithLogger(zap.New(core)))

	res := e.LoadSync(context.Background(), "broken.mid", []byte{1, 2, 3, 4})
	assert.True(t, errors.Is(res.Err, midiparser.ErrInvalidHeader))
	assert.True(t, res.Fallback)
	require.NotNil(t, res.Snapshot)
	assert.True(t, e.Snapshot().Timeline.Placeholder)
	assert.NotEmpty(t, e.Snapshot().Timeline.Notes)

	assert.Equal(t, 1, logs.FilterMessage("timeline fallback to placeholder").FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Equal(t, 0, logs.FilterMessage("timeline loaded").Len())

	e.LoadSync(context.Background(), "a.mid", quarterNoteSMF(t, 60))
	assert.Equal(t, 1, logs.FilterMessage("timeline loaded").Len())
	assert.False(t, e.Snapshot().Timeline.Placeholder)
}

func TestStaleLoadIsDropped(t *testing.T) {
	e, _ := newTestEngine(t)
	older := e.generation.Add(1)
	newer := e.generation.Add(1)

	first := e.load(context.Background(), newer, "new.mid", quarterNoteSMF(t, 72))
	second := e.load(context.Background(), older, "old.mid", quarterNoteSMF(t, 48))

	assert.False(t, first.Stale)
	assert.True(t, second.Stale)
	assert.Equal(t, "new.mid", e.Snapshot().Source)
	assert.Equal(t, uint8(72), e.Snapshot().Timeline.Notes[0].Pitch)
}

func TestCancelledLoadKeepsCurrentSnapshot(t *testing.T) {
	e, _ := newTestEngine(t)
	before := e.Snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := e.LoadSync(ctx, "a.mid", quarterNoteSMF(t, 60))
	assert.True(t, errors.Is(res.Err, context.Canceled))
	assert.Nil(t, res.Snapshot)
	assert.Equal(t, before, e.Snapshot())
}

func TestSwapResetsGlow(t *testing.T) {
	e, st := newTestEngine(t)
	e.Swap("first", &midiparser.ParsedTimeline{
		Notes:                []midiparser.NoteEvent{{Pitch: 60, StartSeconds: 1, DurationSeconds: 0.5}},
		TotalDurationSeconds: 3.5,
	})
	require.NoError(t, e.Clock().Seek(0.99))
	assert.Equal(t, []uint8{60}, e.Frame().GlowPitches)
	assert.Equal(t, []uint8{60}, e.Frame().GlowPitches)

	e.Swap("second", &midiparser.ParsedTimeline{
		Notes:                []midiparser.NoteEvent{{Pitch: 72, StartSeconds: 5, DurationSeconds: 0.5}},
		TotalDurationSeconds: 7.5,
	})
	frame := e.Frame()
	assert.Empty(t, frame.GlowPitches)
	assert.Equal(t, "second", e.Snapshot().Source)
	assert.Equal(t, e.Snapshot().ID, frame.TimelineID)
	assert.Equal(t, uint64(0), st.Frames())
}

func TestConcurrentFramesNeverReturnToOldPiece(t *testing.T) {
	e, _ := newTestEngine(t)
	piece := func(pitch uint8) *midiparser.ParsedTimeline {
		return &midiparser.ParsedTimeline{
			Notes:                []midiparser.NoteEvent{{Pitch: pitch, StartSeconds: 0, DurationSeconds: 1}},
			TotalDurationSeconds: 3,
		}
	}

	for round := 0; round < 200; round++ {
		e.Swap("old", piece(60))
		e.Frame()

		var wg sync.WaitGroup
		var sawNew atomic.Bool
		start := make(chan struct{})
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				f := e.Frame()
				if cur := e.Snapshot(); f.TimelineID == cur.ID && cur.Source == "new" {
					sawNew.Store(true)
				}
			}()
		}
		close(start)
		snap := e.Swap("new", piece(72))
		wg.Wait()

		if !sawNew.Load() {
			continue
		}
		e.mu.Lock()
		lastID := e.lastID
		e.mu.Unlock()
		require.Equal(t, snap.ID, lastID, "round %d", round)
	}
}

func TestFrameProjectsVisibleNotes(t *testing.T) {
	e, st := newTestEngine(t)
	e.Swap("piece", &midiparser.ParsedTimeline{
		Notes: []midiparser.NoteEvent{
			{Pitch: 60, StartSeconds: 0.5, DurationSeconds: 1},
			{Pitch: 62, StartSeconds: 2, DurationSeconds: 1},
			{Pitch: 64, StartSeconds: 20, DurationSeconds: 1},
		},
		TotalDurationSeconds: 23,
	})
	e.SetZoom(2)
	e.SetPan(10, -5)

	frame := e.Frame()
	require.Len(t, frame.VisibleNotes, 2)
	assert.InDelta(t, frame.ImpactX+0.5*240, frame.VisibleNotes[0].Rect.Right(), 1e-9)
	assert.Equal(t, 240.0, frame.PixelsPerSecond)
	assert.Len(t, frame.Keys, 88)
	assert.Equal(t, 23.0, frame.TotalDurationSeconds)
	assert.False(t, frame.Playing)

	st.Play()
	_, err := e.Clock().SetSpeed(2)
	require.NoError(t, err)
	for i := 0; i < 30; i++ {
		st.Advance()
	}
	frame = e.Frame()
	assert.InDelta(t, 1.0, frame.Now, 1e-9)
	assert.Equal(t, []uint8{60}, frame.ActivePitches)
	assert.True(t, frame.IsPressed(60))
	assert.True(t, frame.Playing)
	assert.Equal(t, 2.0, frame.Speed)
	require.Len(t, frame.VisibleNotes, 1)
	assert.Equal(t, uint8(62), frame.VisibleNotes[0].Pitch)
}

func TestReloaderCoalescesRequests(t *testing.T) {
	e, _ := newTestEngine(t)
	data := quarterNoteSMF(t, 64)

	var mu sync.Mutex
	reads := 0
	done := make(chan LoadResult, 4)
	r := NewReloader(e, 20*time.Millisecond, func(ctx context.Context) (string, []byte, error) {
		mu.Lock()
		reads++
		mu.Unlock()
		return "watched.mid", data, nil
	}, func(res LoadResult) {
		done <- res
	})

	for i := 0; i < 5; i++ {
		r.Request()
	}

	select {
	case res := <-done:
		require.NoError(t, res.Err)
		assert.Equal(t, "watched.mid", res.Snapshot.Source)
	case <-time.After(2 * time.Second):
		t.Fatal("reload did not happen")
	}

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, reads)
	mu.Unlock()
}
