package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/onetake-ai/hackernews-watercooler/internal/synth"
)

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramObserver forwards run events to a Bubble Tea program.
type ProgramObserver struct {
	p Sender
}

// NewObserver returns an observer that feeds p.
func NewObserver(p Sender) *ProgramObserver {
	return &ProgramObserver{p: p}
}

// OnProgress implements synth.Observer.
func (o *ProgramObserver) OnProgress(e synth.Event) {
	o.p.Send(progressMsg(e))
}

// OnRetry implements synth.Observer.
func (o *ProgramObserver) OnRetry(e synth.RetryEvent) {
	o.p.Send(retryMsg(e))
}

// LogObserver reports progress through the logger when there is no terminal.
type LogObserver struct{}

// OnProgress implements synth.Observer.
func (LogObserver) OnProgress(e synth.Event) {
	if e.Skipped {
		log.Info("Skipped empty comment", "node", e.NodeID, "progress", progressLabel(e))
		return
	}
	log.Info("Voiced", "author", e.Author, "progress", progressLabel(e),
		"characters", humanize.Comma(int64(e.Characters)))
}

// OnRetry implements synth.Observer.
func (LogObserver) OnRetry(e synth.RetryEvent) {
	log.Warn("Rate limited", "author", e.Author, "retry_in", e.Delay, "attempt", e.Attempt)
}

func progressLabel(e synth.Event) string {
	return humanize.Comma(int64(e.Processed)) + "/" + humanize.Comma(int64(e.Total))
}

var (
	_ synth.Observer = (*ProgramObserver)(nil)
	_ synth.Observer = LogObserver{}
)
