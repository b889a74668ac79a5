package synth

import (
	"context"
	"time"

	"github.com/onetake-ai/hackernews-watercooler/internal/voice"
)

// Progress is the resumable cursor of a run. LastIndex is -1 before any
// node has been processed.
type Progress struct {
	Processed  int `json:"processed"`
	LastIndex  int `json:"last_index"`
	Total      int `json:"total"`
	Characters int `json:"characters"`
}

// NewProgress returns the cursor for a fresh run over total nodes.
func NewProgress(total int) Progress {
	return Progress{LastIndex: -1, Total: total}
}

// Done reports whether every node has been processed.
func (p Progress) Done() bool {
	return p.LastIndex == p.Total-1
}

// Event is emitted after every processed node, skipped ones included.
type Event struct {
	Index      int
	NodeID     int64
	Author     string
	Processed  int
	Total      int
	Characters int
	Skipped    bool
}

// RetryEvent is emitted before waiting out a rate limit.
type RetryEvent struct {
	Index   int
	Author  string
	Attempt int
	Delay   time.Duration
	Err     error
}

// Observer receives run notifications. Calls happen on the run's goroutine.
type Observer interface {
	OnProgress(Event)
	OnRetry(RetryEvent)
}

type nopObserver struct{}

func (nopObserver) OnProgress(Event) {}
func (nopObserver) OnRetry(RetryEvent) {}

// Commit describes one durable step of a run.
type Commit struct {
	Index    int
	State    State
	Progress Progress
	// Segments appended by this step.
	Segments []Segment
	Voices   map[string]voice.Voice
	// Text is the composed narration of the node at Index.
	Text  string
	Cause error
}

// Journal persists run steps so a run can be resumed by another process.
type Journal interface {
	Commit(ctx context.Context, c Commit) error
}
