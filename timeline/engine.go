package timeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"pianoroll/midiparser"
	"pianoroll/onset"
	"pianoroll/viewport"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine owns the current timeline snapshot, the viewport and the onset
// detector, and produces one Frame per refresh.
type Engine struct {
	log       *zap.Logger
	clock     *Clock
	hostClock func() float64

	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64

	mu       sync.Mutex
	viewport *viewport.Viewport
	detector *onset.Detector
	lastID   uuid.UUID
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithHostClock replaces the monotonic clock used for glow expiry.
func WithHostClock(f func() float64) Option {
	return func(e *Engine) {
		e.hostClock = f
	}
}

func WithViewport(cfg viewport.Config) Option {
	return func(e *Engine) {
		e.viewport = viewport.New(cfg)
	}
}

func WithOnset(cfg onset.Config) Option {
	return func(e *Engine) {
		e.detector = onset.New(cfg)
	}
}

func NewEngine(clock *Clock, opts ...Option) *Engine {
	var started = time.Now()
	e := &Engine{
		log:   zap.NewNop(),
		clock: clock,
		hostClock: func() float64 {
			return time.Since(started).Seconds()
		},
		viewport: viewport.New(viewport.DefaultConfig()),
		detector: onset.New(onset.DefaultConfig()),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.current.Store(&Snapshot{
		ID:       uuid.New(),
		Source:   "empty",
		LoadedAt: time.Now(),
		Timeline: &midiparser.ParsedTimeline{
			Notes:                []midiparser.NoteEvent{},
			TotalDurationSeconds: midiparser.EmptyTimelineSeconds,
			Tempo:                midiparser.NewTempoMap(nil),
		},
	})
	return e
}

func (e *Engine) Clock() *Clock {
	return e.clock
}

func (e *Engine) Snapshot() *Snapshot {
	return e.current.Load()
}

// publish installs snap unless a newer generation is already current.
func (e *Engine) publish(snap *Snapshot) bool {
	for {
		var cur = e.current.Load()
		if cur.Generation > snap.Generation {
			return false
		}
		if e.current.CompareAndSwap(cur, snap) {
			return true
		}
	}
}

func (e *Engine) newSnapshot(generation uint64, source string, tl *midiparser.ParsedTimeline) *Snapshot {
	return &Snapshot{
		ID:         uuid.New(),
		Generation: generation,
		Source:     source,
		LoadedAt:   time.Now(),
		Timeline:   tl,
	}
}

// Swap publishes an already parsed timeline.
func (e *Engine) Swap(source string, tl *midiparser.ParsedTimeline) *Snapshot {
	var snap = e.newSnapshot(e.generation.Add(1), source, tl)
	e.publish(snap)
	return snap
}

// Load parses data off the caller's goroutine. The returned channel receives
// exactly one result. The current snapshot stays in place until the new one
// is published. A file that can't be parsed is replaced by the placeholder.
func (e *Engine) Load(ctx context.Context, source string, data []byte) <-chan LoadResult {
	var generation = e.generation.Add(1)
	var out = make(chan LoadResult, 1)

	go func() {
		defer close(out)
		out <- e.load(ctx, generation, source, data)
	}()
	return out
}

func (e *Engine) LoadSync(ctx context.Context, source string, data []byte) LoadResult {
	return <-e.Load(ctx, source, data)
}

func (e *Engine) load(ctx context.Context, generation uint64, source string, data []byte) LoadResult {
	var log = e.log.With(zap.String("source", source), zap.Uint64("generation", generation))
	if err := ctx.Err(); err != nil {
		return LoadResult{Err: err}
	}

	var startTime = time.Now()
	var result LoadResult
	tl, err := midiparser.Parse(data)
	if err != nil {
		log.Warn("timeline fallback to placeholder", zap.Error(err))
		tl = midiparser.Placeholder()
		result.Err = err
		result.Fallback = true
	}
	if err := ctx.Err(); err != nil {
		return LoadResult{Err: err}
	}

	for _, w := range tl.Warnings {
		log.Warn("track damaged", zap.Error(w))
	}

	var snap = e.newSnapshot(generation, source, tl)
	result.Snapshot = snap
	if !e.publish(snap) {
		result.Stale = true
		log.Info("timeline load superseded", zap.Stringer("id", snap.ID))
		return result
	}

	if !result.Fallback {
		log.Info("timeline loaded",
			zap.Stringer("id", snap.ID),
			zap.Int("notes", len(tl.Notes)),
			zap.Int("tracks", tl.TrackCount),
			zap.Int("warnings", len(tl.Warnings)),
			zap.Float64("duration", tl.TotalDurationSeconds),
			zap.Duration("took", time.Since(startTime)),
		)
	}
	return result
}

func (e *Engine) SetZoom(zoom float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewport.SetZoom(zoom)
}

func (e *Engine) SetMagnification(m float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewport.SetMagnification(m)
}

func (e *Engine) SetPan(x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport.SetPan(x, y)
}

func (e *Engine) PanBy(dx, dy float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport.PanBy(dx, dy)
}

// Viewport returns a copy of the current viewport.
func (e *Engine) Viewport() viewport.Viewport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.viewport
}

// Frame computes the scene for the transport's current position. A new
// snapshot resets the detector so no glow carries over between pieces.
func (e *Engine) Frame() Frame {
	var state = e.clock.State()
	var hostNow = e.hostClock()

	// The snapshot is read under mu so callers see swaps in lock order.
	e.mu.Lock()
	var snap = e.current.Load()
	if snap.ID != e.lastID {
		e.detector.Reset()
		e.lastID = snap.ID
	}
	var vp = *e.viewport
	var frame = BuildFrame(snap, &vp, e.detector, state.RawPosition, hostNow)
	e.mu.Unlock()

	frame.Playing = state.IsPlaying
	frame.Speed = state.SpeedMultiplier
	return frame
}

// BuildFrame projects the visible part of snap at now. det is advanced by one
// tick.
func BuildFrame(snap *Snapshot, vp *viewport.Viewport, det *onset.Detector, now, hostNow float64) Frame {
	var tl = snap.Timeline
	var ppse = vp.PixelsPerSecond()
	var t = vp.Transform()
	var result = det.Tick(tl.Notes, now, ppse, hostNow)

	var lo, hi = vp.VisibleRange(tl.Notes, now)
	var visible = make([]VisibleNote, 0, hi-lo)
	for _, n := range tl.Notes[lo:hi] {
		visible = append(visible, VisibleNote{
			Pitch:    n.Pitch,
			Rect:     t.ApplyRect(vp.NoteRect(n, now)),
			IsActive: onset.IsActive(n, now),
			Track:    n.Track,
			Velocity: n.Velocity,
		})
	}

	return Frame{
		TimelineID:           snap.ID,
		Now:                  now,
		HostNow:              hostNow,
		VisibleNotes:         visible,
		ActivePitches:        result.ActivePitches,
		GlowPitches:          result.GlowPitches,
		Keys:                 vp.ScreenKeys(),
		ImpactX:              vp.ImpactX(),
		Transform:            t,
		PixelsPerSecond:      ppse,
		TotalDurationSeconds: tl.TotalDurationSeconds,
		Placeholder:          tl.Placeholder,
		Speed:                1,
	}
}
