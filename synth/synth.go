package synth

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sinshu/go-meltysynth/meltysynth"
	"go.uber.org/zap"
)

// Remote renders SFZ instruments on another machine.
type Remote interface {
	RenderSFZ(ctx context.Context, midi []byte, sfzName string, sampleRate int) ([]byte, error)
}

type Renderer struct {
	log      *zap.Logger
	remote   Remote
	timidity string

	mu         sync.Mutex
	soundFonts map[string]*meltysynth.SoundFont
}

type Option func(*Renderer)

func WithLogger(l *zap.Logger) Option {
	return func(r *Renderer) {
		r.log = l
	}
}

// WithRemote enables SFZ targets.
func WithRemote(remote Remote) Option {
	return func(r *Renderer) {
		r.remote = remote
	}
}

func WithTimidity(path string) Option {
	return func(r *Renderer) {
		r.timidity = path
	}
}

func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		log:        zap.NewNop(),
		timidity:   "timidity",
		soundFonts: map[string]*meltysynth.SoundFont{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render turns midi into WAV bytes using target.
func (r *Renderer) Render(ctx context.Context, target RenderTarget, midi []byte) ([]byte, error) {
	var startTime = time.Now()
	var log = r.log.With(zap.Stringer("target", target))

	var wav []byte
	var err error
	switch target.Kind {
	case KindSF2:
		var pcm PCM
		pcm, err = r.RenderSF2(ctx, target, midi)
		if err == nil {
			wav = pcm.WAV()
		}
	case KindSFZ:
		if r.remote == nil {
			return nil, fmt.Errorf("%w: sfz rendering needs a render service", ErrUnknownTarget)
		}
		wav, err = r.remote.RenderSFZ(ctx, midi, target.Name, target.SampleRate)
	case KindSystem:
		wav, err = r.renderSystem(ctx, target, midi)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownTarget, target.Kind)
	}
	if err != nil {
		log.Error("audio render failed", zap.Error(err))
		return nil, err
	}

	log.Info("audio rendered", zap.Int("bytes", len(wav)), zap.Duration("took", time.Since(startTime)))
	return wav, nil
}

func (r *Renderer) RenderFile(ctx context.Context, target RenderTarget, midi []byte, outputPath string) error {
	wav, err := r.Render(ctx, target, midi)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, wav, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}
	return nil
}
