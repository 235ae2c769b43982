package timeline

import (
	"fmt"
	"sync"

	"pianoroll/util"
)

const (
	MinSpeed = 0.25
	MaxSpeed = 4.0
)

// Transport is the audio player the timeline follows. CurrentPosition must not
// decrease while playing.
type Transport interface {
	CurrentPosition() float64
	SetRate(rate float64) error
	Seek(seconds float64) error
	IsPlaying() bool
}

type PlaybackState struct {
	RawPosition     float64 `json:"rawPosition"`
	SpeedMultiplier float64 `json:"speedMultiplier"`
	IsPlaying       bool    `json:"isPlaying"`
}

// Clock reads time from the transport and never keeps its own. Speed changes
// are applied to the transport so audio and picture share one rate.
type Clock struct {
	transport Transport

	mu    sync.Mutex
	speed float64
}

func NewClock(t Transport) *Clock {
	return &Clock{transport: t, speed: 1}
}

func (c *Clock) Transport() Transport {
	return c.transport
}

func (c *Clock) Now() float64 {
	var pos = c.transport.CurrentPosition()
	if pos < 0 {
		return 0
	}
	return pos
}

// SetSpeed clamps speed to [MinSpeed, MaxSpeed] and writes it through. The
// previous speed is kept when the transport rejects the rate.
func (c *Clock) SetSpeed(speed float64) (float64, error) {
	speed = util.Clamp(speed, MinSpeed, MaxSpeed)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.transport.SetRate(speed); err != nil {
		return c.speed, fmt.Errorf("setting transport rate %.2f: %w", speed, err)
	}
	c.speed = speed
	return speed, nil
}

func (c *Clock) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

func (c *Clock) Seek(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	if err := c.transport.Seek(seconds); err != nil {
		return fmt.Errorf("seeking transport to %.3fs: %w", seconds, err)
	}
	return nil
}

func (c *Clock) State() PlaybackState {
	return PlaybackState{
		RawPosition:     c.Now(),
		SpeedMultiplier: c.Speed(),
		IsPlaying:       c.transport.IsPlaying(),
	}
}
