package timeline

import (
	"context"
	"time"

	"github.com/bep/debounce"
	"go.uber.org/zap"
)

// Source returns the name and bytes of the file to load.
type Source func(ctx context.Context) (string, []byte, error)

// Reloader coalesces bursts of reload requests into one load.
type Reloader struct {
	engine    *Engine
	source    Source
	onResult  func(LoadResult)
	debounced func(f func())
	log       *zap.Logger
}

func NewReloader(e *Engine, delay time.Duration, source Source, onResult func(LoadResult)) *Reloader {
	return &Reloader{
		engine:    e,
		source:    source,
		onResult:  onResult,
		debounced: debounce.New(delay),
		log:       e.log.Named("reloader"),
	}
}

func (r *Reloader) Request() {
	r.debounced(r.reload)
}

func (r *Reloader) reload() {
	var ctx = context.Background()
	name, data, err := r.source(ctx)
	if err != nil {
		r.log.Error("reading timeline source", zap.Error(err))
		return
	}
	var result = r.engine.LoadSync(ctx, name, data)
	if r.onResult != nil {
		r.onResult(result)
	}
}
