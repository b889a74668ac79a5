package audio

import (
	"errors"
	"fmt"
	"time"
)

// Format describes signed little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultFormat matches the synthesis output: 44.1kHz 16-bit mono.
func DefaultFormat() Format {
	return Format{
		SampleRate: 44100,
		Channels:   1,
		BitDepth:   16,
	}
}

// BytesPerFrame returns the size of one sample across all channels.
func (f Format) BytesPerFrame() int {
	return f.BitDepth / 8 * f.Channels
}

// Validate checks that data is non-empty and frame aligned.
func (f Format) Validate(data []byte) error {
	if len(data) == 0 {
		return errors.New("empty PCM data")
	}
	if n := f.BytesPerFrame(); n == 0 || len(data)%n != 0 {
		return fmt.Errorf("PCM data length %d is not aligned to %d-byte frames", len(data), n)
	}
	return nil
}

// Duration returns how long n bytes of PCM play for.
func (f Format) Duration(n int) time.Duration {
	if f.SampleRate == 0 || f.BytesPerFrame() == 0 {
		return 0
	}
	frames := n / f.BytesPerFrame()
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Silence returns d worth of zeroed PCM.
func Silence(d time.Duration, f Format) []byte {
	frames := int(int64(d) * int64(f.SampleRate) / int64(time.Second))
	return make([]byte, frames*f.BytesPerFrame())
}
