package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// Player plays PCM through the system audio device.
type Player struct {
	context *oto.Context
	format  Format

	mu sync.Mutex
	// data is held for as long as oto may still read from it.
	data []byte
}

var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
	otoFmt  Format
)

// NewPlayer opens the audio device for f. oto allows a single context per
// process, so every Player shares it and must use the same format.
func NewPlayer(f Format) (*Player, error) {
	if err := validateFormat(f); err != nil {
		return nil, fmt.Errorf("invalid format: %w", err)
	}

	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   f.SampleRate,
			ChannelCount: f.Channels,
			Format:       oto.FormatSignedInt16LE,
		}
		var ready chan struct{}
		otoCtx, ready, otoErr = oto.NewContext(op)
		if otoErr == nil {
			<-ready
		}
		otoFmt = f
	})
	if otoErr != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", otoErr)
	}
	if otoFmt != f {
		return nil, fmt.Errorf("audio device already opened as %+v", otoFmt)
	}

	return &Player{context: otoCtx, format: f}, nil
}

func validateFormat(f Format) error {
	if f.SampleRate != 44100 && f.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", f.SampleRate)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", f.Channels)
	}
	if f.BitDepth != 16 {
		return fmt.Errorf("bit depth must be 16, got %d", f.BitDepth)
	}
	return nil
}

// Play blocks until pcm has been played or ctx is done.
func (p *Player) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return errors.New("audio data is empty")
	}
	if err := p.format.Validate(pcm); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.data = append(p.data[:0], pcm...)
	player := p.context.NewPlayer(bytes.NewReader(p.data))
	defer func() {
		if err := player.Close(); err != nil {
			log.Debug("Closing oto player", "error", err)
		}
	}()

	log.Debug("Starting playback", "duration", p.format.Duration(len(pcm)))
	player.Play()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
