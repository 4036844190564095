package ui

import (
	"encoding/binary"
	"math"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/emu"
)

// apuStream implements io.Reader by pulling mono float32 PCM from the
// emulator's APU and converting it to 16-bit little-endian stereo frames,
// duplicating the mono sample to both channels, for ebiten's audio.Player.
type apuStream struct {
	m     *emu.Machine
	muted *bool

	scratch []float32

	// stats, surfaced by the debug overlay
	underruns int
}

func (s *apuStream) Read(p []byte) (int, error) {
	if s == nil || s.m == nil || len(p) < 4 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	if s.muted != nil && *s.muted {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	frames := len(p) / 4
	if cap(s.scratch) < frames {
		s.scratch = make([]float32, frames)
	}
	buf := s.scratch[:frames]
	n := s.m.AudioFill(buf)

	i := 0
	for j := 0; j < n; j++ {
		sample := clampSample(buf[j])
		v := int16(sample * 32767)
		binary.LittleEndian.PutUint16(p[i:], uint16(v))
		binary.LittleEndian.PutUint16(p[i+2:], uint16(v))
		i += 4
	}
	if n < frames {
		s.underruns++
		for ; i+3 < len(p); i += 4 {
			binary.LittleEndian.PutUint16(p[i:], 0)
			binary.LittleEndian.PutUint16(p[i+2:], 0)
		}
	}
	return len(p), nil
}

func clampSample(v float32) float32 {
	return float32(math.Max(-1, math.Min(1, float64(v))))
}
