package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrInvalidRate = errors.New("invalid playback rate")

func checkRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}
	return nil
}

// Stepped advances by a fixed frame period times the rate on every Advance.
// It drives offline rendering, where time must not depend on how long a frame
// takes to draw.
type Stepped struct {
	mu       sync.Mutex
	fps      int
	position float64
	rate     float64
	playing  bool
	frames   uint64
}

func NewStepped(fps int) *Stepped {
	if fps <= 0 {
		fps = 60
	}
	return &Stepped{fps: fps, rate: 1}
}

func (s *Stepped) FPS() int {
	return s.fps
}

func (s *Stepped) CurrentPosition() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

func (s *Stepped) SetRate(rate float64) error {
	if err := checkRate(rate); err != nil {
		return err
	}
	s.mu.Lock()
	s.rate = rate
	s.mu.Unlock()
	return nil
}

func (s *Stepped) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

func (s *Stepped) Seek(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	s.mu.Lock()
	s.position = seconds
	s.mu.Unlock()
	return nil
}

func (s *Stepped) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *Stepped) Play() {
	s.mu.Lock()
	s.playing = true
	s.mu.Unlock()
}

func (s *Stepped) Pause() {
	s.mu.Lock()
	s.playing = false
	s.mu.Unlock()
}

// Advance moves one frame forward and returns the new position.
func (s *Stepped) Advance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	if s.playing {
		s.position += s.rate / float64(s.fps)
	}
	return s.position
}

// Elapsed is host time in seconds, the number of frames advanced over fps.
func (s *Stepped) Elapsed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.frames) / float64(s.fps)
}

func (s *Stepped) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// WallClock follows the host clock scaled by the rate. Every rate change or
// seek re-anchors it so the position stays continuous.
type WallClock struct {
	mu         sync.Mutex
	now        func() time.Time
	anchorWall time.Time
	anchorPos  float64
	rate       float64
	playing    bool
}

func NewWallClock() *WallClock {
	return NewWallClockWith(time.Now)
}

func NewWallClockWith(now func() time.Time) *WallClock {
	return &WallClock{now: now, anchorWall: now(), rate: 1}
}

func (c *WallClock) positionLocked() float64 {
	if !c.playing {
		return c.anchorPos
	}
	return c.anchorPos + c.now().Sub(c.anchorWall).Seconds()*c.rate
}

func (c *WallClock) reanchorLocked() {
	c.anchorPos = c.positionLocked()
	c.anchorWall = c.now()
}

func (c *WallClock) CurrentPosition() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

func (c *WallClock) SetRate(rate float64) error {
	if err := checkRate(rate); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reanchorLocked()
	c.rate = rate
	return nil
}

func (c *WallClock) Seek(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.anchorPos = seconds
	c.anchorWall = c.now()
	return nil
}

func (c *WallClock) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *WallClock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		return
	}
	c.anchorWall = c.now()
	c.playing = true
}

func (c *WallClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return
	}
	c.reanchorLocked()
	c.playing = false
}
