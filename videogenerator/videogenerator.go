package videogenerator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"pianoroll/config"
	"pianoroll/midiparser"
	"pianoroll/onset"
	"pianoroll/synth"
	"pianoroll/timeline"
	"pianoroll/transport"
	"pianoroll/util"
	"pianoroll/viewport"
)

// Generator renders a timeline to an mp4. Frames are computed in order by one
// engine driven by a stepped transport, then drawn by a pool of workers.
type Generator struct {
	video       config.VideoConfig
	viewportCfg viewport.Config
	onsetCfg    onset.Config
	renderer    Renderer
	log         *zap.Logger
}

// Renderer writes the soundtrack for a MIDI file. *synth.Renderer satisfies it.
type Renderer interface {
	RenderFile(ctx context.Context, target synth.RenderTarget, midi []byte, outputPath string) error
}

func New(cfg *config.Config, renderer Renderer, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{
		video:       cfg.Video,
		viewportCfg: cfg.Viewport,
		onsetCfg:    cfg.Onset,
		renderer:    renderer,
		log:         log.Named("video"),
	}
}

// viewportConfig fits the whole keyboard to the video height.
func (g *Generator) viewportConfig() viewport.Config {
	var vc = g.viewportCfg
	var keys = int(vc.PianoRangeEnd) - int(vc.PianoRangeStart) + 1
	vc.KeyHeightPixels = float64(g.video.Height) / float64(keys)
	return vc
}

// shiftTimeline delays every note so the first ones approach from off screen.
func shiftTimeline(tl *midiparser.ParsedTimeline, delay float64) *midiparser.ParsedTimeline {
	var shifted = *tl
	shifted.Notes = make([]midiparser.NoteEvent, len(tl.Notes))
	for i, n := range tl.Notes {
		n.StartSeconds += delay
		shifted.Notes[i] = n
	}
	shifted.TotalDurationSeconds += delay
	return &shifted
}

func (g *Generator) Generate(ctx context.Context, midiFilePath, outputPath string, opts Options) error {
	data, err := os.ReadFile(midiFilePath)
	if err != nil {
		return fmt.Errorf("reading midi file: %w", err)
	}
	return g.GenerateBytes(ctx, midiFilePath, data, outputPath, opts)
}

func (g *Generator) GenerateBytes(ctx context.Context, source string, data []byte, outputPath string, opts Options) error {
	executionStartTime := time.Now()

	if err := os.MkdirAll(g.video.FramesDir, 0o755); err != nil {
		return err
	}
	framesFolder, err := os.MkdirTemp(g.video.FramesDir, "job-")
	if err != nil {
		return err
	}
	if !g.video.KeepFrames {
		defer func() {
			if err := removeFrames(framesFolder); err != nil {
				g.log.Warn("removing frames", zap.Error(err))
			}
		}()
	}

	result, err := g.renderFrames(ctx, source, data, framesFolder, opts)
	if err != nil {
		return err
	}

	audioFilePath, err := g.soundtrack(ctx, opts.Target, result.audioMidi, framesFolder)
	if err != nil {
		return err
	}
	defer removeAudioFile(audioFilePath)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	err = createVideoFromFrames(ctx, g.video.FFmpeg, muxJob{
		framesFolder:  framesFolder,
		audioFilePath: audioFilePath,
		outputPath:    outputPath,
		fps:           g.video.FPS,
		startDelay:    g.video.StartDelaySeconds / result.speed,
		duration:      float64(result.frames) / float64(g.video.FPS),
		speed:         result.speed,
	})
	if err != nil {
		return err
	}

	g.log.Info("video generated",
		zap.String("output", outputPath),
		zap.Int("frames", result.frames),
		zap.Bool("placeholder", result.fallback),
		zap.Duration("took", time.Since(executionStartTime)),
	)
	return nil
}

type renderResult struct {
	frames    int
	speed     float64
	fallback  bool
	audioMidi []byte
}

// renderFrames loads data and writes one PNG per frame into framesFolder.
func (g *Generator) renderFrames(ctx context.Context, source string, data []byte, framesFolder string, opts Options) (renderResult, error) {
	var speed = opts.Speed
	if speed == 0 {
		speed = 1
	}
	speed = util.Clamp(speed, timeline.MinSpeed, timeline.MaxSpeed)

	var st = transport.NewStepped(g.video.FPS)
	var vc = g.viewportConfig()
	engine := timeline.NewEngine(timeline.NewClock(st),
		timeline.WithLogger(g.log),
		timeline.WithHostClock(st.Elapsed),
		timeline.WithViewport(vc),
		timeline.WithOnset(g.onsetCfg),
	)

	loaded := engine.LoadSync(ctx, source, data)
	if loaded.Snapshot == nil {
		return renderResult{}, loaded.Err
	}

	var result = renderResult{speed: speed, audioMidi: data, fallback: loaded.Fallback}
	if loaded.Fallback {
		placeholder, err := midiparser.PlaceholderSMF()
		if err != nil {
			return renderResult{}, err
		}
		result.audioMidi = placeholder
	}

	var tl = shiftTimeline(loaded.Snapshot.Timeline, g.video.StartDelaySeconds)
	engine.Swap(source, tl)
	if opts.Zoom != 0 {
		engine.SetZoom(opts.Zoom)
	}
	if _, err := engine.Clock().SetSpeed(speed); err != nil {
		return renderResult{}, err
	}
	st.Play()

	result.frames = totalFrames(tl.TotalDurationSeconds, speed, g.video.FPS)
	if err := g.createFrames(ctx, engine, st, framesFolder, result.frames, vc.KeyHeightPixels); err != nil {
		return renderResult{}, err
	}
	return result, nil
}

func (g *Generator) createFrames(ctx context.Context, engine *timeline.Engine, st *transport.Stepped, framesFolder string, total int, keyH float64) error {
	var maxWorkers = g.video.Workers
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	sem := make(chan struct{}, maxWorkers)
	contexts := make(chan *canvas, maxWorkers)

	var wg sync.WaitGroup
	var finishedFrames atomic.Uint64
	var startTime = time.Now()
	var fps = g.video.FPS

	var errOnce sync.Once
	var firstErr error
	var failed atomic.Bool
	var fail = func(err error) {
		errOnce.Do(func() {
			firstErr = err
			failed.Store(true)
		})
	}

	for i := 0; i < maxWorkers; i++ {
		contexts <- newCanvas(g.video.Width, g.video.Height, keyH)
	}

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			fail(err)
		}
		if failed.Load() {
			break
		}

		var p = plannedFrame{index: i, frame: engine.Frame()}
		st.Advance()

		wg.Add(1)
		sem <- struct{}{}
		c := <-contexts
		go func(c *canvas, p plannedFrame) {
			defer wg.Done()
			if err := createFrame(c, framesFolder, p); err != nil {
				fail(fmt.Errorf("frame %d: %w", p.index, err))
			}
			f := finishedFrames.Add(1)
			if int(f)%(fps*30) == 0 {
				g.log.Info("frames rendered",
					zap.Uint64("done", f),
					zap.Int("total", total),
					zap.Float64("avgFrameSeconds", time.Since(startTime).Seconds()/float64(f)),
				)
			}
			<-sem
			contexts <- c
		}(c, p)
	}

	wg.Wait()
	return firstErr
}

func removeFrames(framesFolder string) error {
	var wg sync.WaitGroup
	const maxWorkers = 100
	sem := make(chan struct{}, maxWorkers)

	files, err := filepath.Glob(filepath.Join(framesFolder, "fr*.png"))
	if err != nil {
		return err
	}

	var mu sync.Mutex
	var errs []error
	for _, f := range files {
		wg.Add(1)
		sem <- struct{}{}

		go func(f string) {
			defer wg.Done()
			if err := os.Remove(f); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			<-sem
		}(f)
	}

	wg.Wait()
	errs = append(errs, os.RemoveAll(framesFolder))
	return errors.Join(errs...)
}
