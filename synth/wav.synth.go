package synth

import (
	"encoding/binary"
	"math"

	"pianoroll/util"
)

// PCM is interleaved stereo float audio.
type PCM struct {
	Samples    []float32
	SampleRate int
}

func (p PCM) Frames() int {
	return len(p.Samples) / 2
}

func (p PCM) Seconds() float64 {
	if p.SampleRate == 0 {
		return 0
	}
	return float64(p.Frames()) / float64(p.SampleRate)
}

func (p PCM) WAV() []byte {
	return EncodeWAV16(p.Samples, p.SampleRate, 2)
}

func writeWAVHeader(out []byte, format uint16, sampleRate, channels, bitsPerSample, dataSize int) {
	blockAlign := channels * bitsPerSample / 8
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], format)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], uint16(bitsPerSample))
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
}

// EncodeWAV16 writes 16-bit PCM, the format timidity produces and every
// decoder downstream accepts.
func EncodeWAV16(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 2
	out := make([]byte, 44+dataSize)
	writeWAVHeader(out, 1, sampleRate, channels, 16, dataSize)
	for i, s := range samples {
		v := int16(util.Clamp(s, -1, 1) * math.MaxInt16)
		binary.LittleEndian.PutUint16(out[44+i*2:], uint16(v))
	}
	return out
}

func EncodeWAVFloat32(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	out := make([]byte, 44+dataSize)
	writeWAVHeader(out, 3, sampleRate, channels, 32, dataSize)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
