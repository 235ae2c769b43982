package viewer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"go.uber.org/zap"

	"pianoroll/config"
	"pianoroll/midiparser"
	"pianoroll/synth"
	"pianoroll/timeline"
	"pianoroll/transport"
)

const (
	seekStepSeconds = 5.0
	speedStep       = 0.25
	zoomStep        = 1.25
	wheelStep       = 0.1
)

// Transport is a timeline.Transport the window can start and stop.
type Transport interface {
	timeline.Transport
	Play()
	Pause()
}

type Options struct {
	// Target renders the soundtrack. A zero Target plays silently on the
	// wall clock.
	Target synth.RenderTarget
	Speed  float64
}

type Game struct {
	engine     *timeline.Engine
	transport  Transport
	soundtrack *soundtrack
	reloader   *timeline.Reloader
	renderer   *synth.Renderer
	target     synth.RenderTarget
	log        *zap.Logger

	frame timeline.Frame

	mu     sync.Mutex
	status string

	dragging     bool
	dragX, dragY int
}

func fileSource(path string) timeline.Source {
	return func(ctx context.Context) (string, []byte, error) {
		data, err := os.ReadFile(path)
		return path, data, err
	}
}

// soundtrackMIDI is what the speakers should play for a load result.
func soundtrackMIDI(res timeline.LoadResult, data []byte) ([]byte, error) {
	if res.Fallback {
		return midiparser.PlaceholderSMF()
	}
	return data, nil
}

func New(ctx context.Context, cfg *config.Config, renderer *synth.Renderer, midiPath string, opts Options, log *zap.Logger) (*Game, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("viewer")

	data, err := os.ReadFile(midiPath)
	if err != nil {
		return nil, fmt.Errorf("reading midi file: %w", err)
	}

	g := &Game{
		renderer: renderer,
		target:   opts.Target,
		log:      log,
	}

	if opts.Target.Kind != 0 && renderer != nil {
		midi := data
		if _, err := midiparser.Parse(data); err != nil {
			if midi, err = midiparser.PlaceholderSMF(); err != nil {
				return nil, err
			}
		}
		st, err := newSoundtrack(ctx, renderer, opts.Target, midi)
		if err != nil {
			log.Warn("soundtrack unavailable, playing silently", zap.Error(err))
		} else {
			g.soundtrack = st
			g.transport = st.audio
		}
	}
	if g.transport == nil {
		g.transport = transport.NewWallClock()
	}

	g.engine = timeline.NewEngine(timeline.NewClock(g.transport),
		timeline.WithLogger(log),
		timeline.WithViewport(cfg.Viewport),
		timeline.WithOnset(cfg.Onset),
	)
	res := g.engine.LoadSync(ctx, midiPath, data)
	if res.Snapshot == nil {
		return nil, res.Err
	}
	if res.Fallback {
		g.setStatus("could not read " + midiPath + ", showing placeholder")
	}
	if opts.Speed != 0 {
		if _, err := g.engine.Clock().SetSpeed(opts.Speed); err != nil {
			return nil, err
		}
	}

	g.reloader = timeline.NewReloader(g.engine, cfg.ReloadDebounce(), fileSource(midiPath), g.onReload)
	return g, nil
}

func (g *Game) onReload(res timeline.LoadResult) {
	if res.Snapshot == nil || res.Stale {
		return
	}
	if res.Fallback {
		g.setStatus("reload failed, showing placeholder: " + res.Err.Error())
	} else {
		g.setStatus("reloaded " + res.Snapshot.Source)
	}

	if g.soundtrack == nil {
		if err := g.engine.Clock().Seek(0); err != nil {
			g.log.Warn("rewinding after reload", zap.Error(err))
		}
		return
	}
	data, err := os.ReadFile(res.Snapshot.Source)
	if err == nil {
		data, err = soundtrackMIDI(res, data)
	}
	if err == nil {
		err = g.soundtrack.replace(context.Background(), g.renderer, g.target, data)
	}
	if err != nil {
		g.log.Error("re-rendering soundtrack", zap.Error(err))
	}
}

func (g *Game) setStatus(s string) {
	g.mu.Lock()
	g.status = s
	g.mu.Unlock()
}

func (g *Game) getStatus() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

func (g *Game) togglePlayback() {
	if g.transport.IsPlaying() {
		g.transport.Pause()
	} else {
		g.transport.Play()
	}
}

func (g *Game) seekBy(delta float64) {
	var clock = g.engine.Clock()
	if err := clock.Seek(clock.Now() + delta); err != nil {
		g.log.Warn("seek failed", zap.Error(err))
	}
}

func (g *Game) speedBy(delta float64) {
	var clock = g.engine.Clock()
	if _, err := clock.SetSpeed(clock.Speed() + delta); err != nil {
		g.log.Warn("speed change failed", zap.Error(err))
	}
}

func (g *Game) handleKeys() error {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		return ebiten.Termination
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		g.togglePlayback()
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft):
		g.seekBy(-seekStepSeconds)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowRight):
		g.seekBy(seekStepSeconds)
	case inpututil.IsKeyJustPressed(ebiten.KeyHome):
		g.seekBy(-g.engine.Clock().Now())
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowUp):
		g.speedBy(speedStep)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowDown):
		g.speedBy(-speedStep)
	case inpututil.IsKeyJustPressed(ebiten.KeyEqual):
		vp := g.engine.Viewport()
		g.engine.SetZoom(vp.Zoom() * zoomStep)
	case inpututil.IsKeyJustPressed(ebiten.KeyMinus):
		vp := g.engine.Viewport()
		g.engine.SetZoom(vp.Zoom() / zoomStep)
	case inpututil.IsKeyJustPressed(ebiten.KeyDigit0):
		g.engine.SetZoom(1)
		g.engine.SetMagnification(1)
		g.engine.SetPan(0, 0)
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		g.setStatus("reloading")
		g.reloader.Request()
	}
	return nil
}

func (g *Game) handleMouse() {
	if _, wy := ebiten.Wheel(); wy != 0 {
		vp := g.engine.Viewport()
		g.engine.SetMagnification(vp.Magnification() * (1 + wheelStep*wy))
	}

	mx, my := ebiten.CursorPosition()
	if !ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		g.dragging = false
		return
	}
	if g.dragging {
		g.engine.PanBy(float64(mx-g.dragX), float64(my-g.dragY))
	}
	g.dragging = true
	g.dragX, g.dragY = mx, my
}

func (g *Game) Update() error {
	if err := g.handleKeys(); err != nil {
		return err
	}
	g.handleMouse()
	g.frame = g.engine.Frame()
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	drawFrame(screen, g.frame, g.getStatus())
}

func (g *Game) Layout(outsideW, outsideH int) (int, int) {
	return outsideW, outsideH
}

// Run opens the window and blocks until it is closed.
func Run(ctx context.Context, cfg *config.Config, renderer *synth.Renderer, midiPath string, opts Options, log *zap.Logger) error {
	g, err := New(ctx, cfg, renderer, midiPath, opts, log)
	if err != nil {
		return err
	}

	ebiten.SetWindowSize(cfg.Viewer.Width, cfg.Viewer.Height)
	ebiten.SetWindowTitle(cfg.Viewer.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	g.transport.Play()
	if err := ebiten.RunGame(g); err != nil && !errors.Is(err, ebiten.Termination) {
		return err
	}
	return nil
}
