package cache

import (
	"context"

	"github.com/charmbracelet/log"
)

// Backend synthesizes speech. It matches synth.Synthesizer.
type Backend interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// Synthesizer serves clips from the cache and fills it from a backend.
type Synthesizer struct {
	next  Backend
	cache *Manager
	model string
}

// NewSynthesizer wraps next. model is folded into every key so switching
// models never replays stale audio.
func NewSynthesizer(next Backend, m *Manager, model string) *Synthesizer {
	return &Synthesizer{next: next, cache: m, model: model}
}

// Synthesize returns a cached clip or calls the backend and caches its
// result. Backend errors are returned unchanged.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	key := Key(text, voiceID, s.model)
	if data, ok := s.cache.Get(key); ok {
		log.Debug("Synthesis cache hit", "voice", voiceID, "bytes", len(data))
		return data, nil
	}

	data, err := s.next.Synthesize(ctx, text, voiceID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Put(key, data); err != nil {
		log.Warn("Failed to cache synthesized clip", "err", err)
	}
	return data, nil
}
