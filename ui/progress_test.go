package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/onetake-ai/hackernews-watercooler/internal/synth"
)

func update(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(model)
}

func TestModelShowsStageBeforeProgress(t *testing.T) {
	m := newModel("Show HN: A thing", nil)
	m = update(t, m, StageMsg("Collecting comments"))

	view := m.View()
	if !strings.Contains(view, "Show HN: A thing") || !strings.Contains(view, "Collecting comments") {
		t.Errorf("view = %q", view)
	}
}

func TestModelTracksProgress(t *testing.T) {
	m := newModel("Thread", nil)
	m = update(t, m, progressMsg{Index: 2, Author: "alice", Processed: 3, Total: 10, Characters: 12345})
	m = update(t, m, progressMsg{Index: 3, Processed: 4, Total: 10, Characters: 12345, Skipped: true})

	if m.processed != 4 || m.skipped != 1 {
		t.Errorf("processed = %d, skipped = %d", m.processed, m.skipped)
	}
	view := m.View()
	for _, want := range []string{"4/10", "12,345 characters", "1 skipped"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModelShowsRetryUntilNextProgress(t *testing.T) {
	m := newModel("Thread", nil)
	m = update(t, m, progressMsg{Processed: 1, Total: 5})
	m = update(t, m, retryMsg{Author: "bob", Attempt: 2, Delay: time.Second})
	if !strings.Contains(m.View(), "Retrying in 1s") {
		t.Errorf("view missing retry notice:\n%s", m.View())
	}

	m = update(t, m, progressMsg{Processed: 2, Total: 5, Author: "bob"})
	if strings.Contains(m.View(), "Retrying") {
		t.Error("retry notice not cleared by progress")
	}
}

func TestModelInterruptCancelsOnce(t *testing.T) {
	calls := 0
	m := newModel("Thread", func() { calls++ })
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})

	if calls != 1 || !m.quitting {
		t.Errorf("cancel calls = %d, quitting = %v", calls, m.quitting)
	}
}

func TestModelDone(t *testing.T) {
	m := newModel("Thread", nil)
	next, cmd := m.Update(DoneMsg{Summary: "Wrote out.wav"})
	if cmd == nil {
		t.Fatal("DoneMsg did not quit")
	}
	if !strings.Contains(next.View(), "Wrote out.wav") {
		t.Errorf("view = %q", next.View())
	}

	m = update(t, newModel("Thread", nil), DoneMsg{Err: errors.New("RATE_LIMITED: rate limited")})
	if !strings.Contains(m.View(), "ERROR") || !strings.Contains(m.View(), "RATE_LIMITED") {
		t.Errorf("view = %q", m.View())
	}
}

type recordingSender struct{ msgs []tea.Msg }

func (s *recordingSender) Send(msg tea.Msg) { s.msgs = append(s.msgs, msg) }

func TestProgramObserverForwardsEvents(t *testing.T) {
	s := &recordingSender{}
	o := NewObserver(s)
	o.OnProgress(synth.Event{Processed: 1, Total: 2})
	o.OnRetry(synth.RetryEvent{Attempt: 1})

	if len(s.msgs) != 2 {
		t.Fatalf("sent %d messages, want 2", len(s.msgs))
	}
	if _, ok := s.msgs[0].(progressMsg); !ok {
		t.Errorf("first message = %T", s.msgs[0])
	}
	if _, ok := s.msgs[1].(retryMsg); !ok {
		t.Errorf("second message = %T", s.msgs[1])
	}
}
