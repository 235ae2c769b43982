package transport

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"pianoroll/util"
)

// PCMStream plays interleaved stereo samples at a variable rate. Read emits
// little endian float32 frames at the output sample rate. Past the end it
// emits silence so the player stays open for seeks.
type PCMStream struct {
	mu         sync.Mutex
	samples    []float32
	sourceRate int
	outputRate int
	rate       float64
	cursor     float64
}

func NewPCMStream(samples []float32, sourceRate, outputRate int) *PCMStream {
	if outputRate <= 0 {
		outputRate = sourceRate
	}
	return &PCMStream{
		samples:    samples,
		sourceRate: sourceRate,
		outputRate: outputRate,
		rate:       1,
	}
}

func (s *PCMStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(p) / 8
	var total = len(s.samples) / 2
	var step = s.rate * float64(s.sourceRate) / float64(s.outputRate)

	for i := 0; i < frames; i++ {
		var l, r float32
		idx := int(s.cursor)
		if idx < total {
			frac := float32(s.cursor - float64(idx))
			l0, r0 := s.samples[idx*2], s.samples[idx*2+1]
			l1, r1 := l0, r0
			if idx+1 < total {
				l1, r1 = s.samples[idx*2+2], s.samples[idx*2+3]
			}
			l = l0 + (l1-l0)*frac
			r = r0 + (r1-r0)*frac
			s.cursor += step
		}
		binary.LittleEndian.PutUint32(p[i*8:], math.Float32bits(l))
		binary.LittleEndian.PutUint32(p[i*8+4:], math.Float32bits(r))
	}
	return frames * 8, nil
}

func (s *PCMStream) Close() error {
	return nil
}

func (s *PCMStream) setRate(rate float64) {
	s.mu.Lock()
	s.rate = rate
	s.mu.Unlock()
}

func (s *PCMStream) seek(seconds float64) {
	s.mu.Lock()
	s.cursor = seconds * float64(s.sourceRate)
	s.mu.Unlock()
}

// Replace swaps the audio and rewinds to the start.
func (s *PCMStream) Replace(samples []float32, sourceRate int) {
	s.mu.Lock()
	s.samples = samples
	s.sourceRate = sourceRate
	s.cursor = 0
	s.mu.Unlock()
}

func (s *PCMStream) Seconds() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sourceRate == 0 {
		return 0
	}
	return float64(len(s.samples)/2) / float64(s.sourceRate)
}

// Player is the audio output. *audio.Player from ebiten satisfies it.
type Player interface {
	Play()
	Pause()
	IsPlaying() bool
	Position() time.Duration
}

// Audio reports the position of what the player has actually played. The
// position is re-anchored on every rate change or seek, since the player only
// counts output time.
type Audio struct {
	mu        sync.Mutex
	stream    *PCMStream
	player    Player
	rate      float64
	anchorOut time.Duration
	anchorSrc float64
}

func NewAudio(stream *PCMStream, player Player) *Audio {
	return &Audio{
		stream:    stream,
		player:    player,
		rate:      1,
		anchorOut: player.Position(),
	}
}

func (a *Audio) positionLocked() float64 {
	var played = (a.player.Position() - a.anchorOut).Seconds()
	return util.Clamp(a.anchorSrc+played*a.rate, 0, a.stream.Seconds())
}

func (a *Audio) reanchorLocked(source float64) {
	a.anchorSrc = source
	a.anchorOut = a.player.Position()
}

func (a *Audio) CurrentPosition() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positionLocked()
}

func (a *Audio) SetRate(rate float64) error {
	if err := checkRate(rate); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reanchorLocked(a.positionLocked())
	a.rate = rate
	a.stream.setRate(rate)
	return nil
}

func (a *Audio) Seek(seconds float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	seconds = util.Clamp(seconds, 0, a.stream.Seconds())
	a.stream.seek(seconds)
	a.reanchorLocked(seconds)
	return nil
}

// Reset rewinds after the stream's audio was replaced.
func (a *Audio) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reanchorLocked(0)
}

func (a *Audio) IsPlaying() bool {
	return a.player.IsPlaying()
}

func (a *Audio) Play() {
	a.player.Play()
}

func (a *Audio) Pause() {
	a.player.Pause()
}
