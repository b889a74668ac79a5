// Package ui renders synthesis progress in the terminal.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"

	"github.com/onetake-ai/hackernews-watercooler/internal/synth"
)

const (
	defaultWidth = 80
	maxBarWidth  = 60
	padding      = 2
)

// StageMsg changes the line shown while no node is being synthesized.
type StageMsg string

// DoneMsg ends the program. Err is shown if set.
type DoneMsg struct {
	Err     error
	Summary string
}

type (
	progressMsg synth.Event
	retryMsg    synth.RetryEvent
)

type model struct {
	title  string
	stage  string
	cancel context.CancelFunc

	spinner spinner.Model
	bar     progress.Model
	width   int

	processed  int
	total      int
	characters int
	skipped    int
	author     string
	retry      *synth.RetryEvent

	started  time.Time
	quitting bool
	done     bool
	summary  string
	err      error
}

func newModel(title string, cancel context.CancelFunc) model {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = spinnerStyle
	return model{
		title:   title,
		stage:   "Starting",
		cancel:  cancel,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient()),
		width:   defaultWidth,
		started: time.Now(),
	}
}

// NewProgram returns a progress program. cancel is called when the user
// interrupts the run; the program keeps running until it receives DoneMsg.
func NewProgram(title string, cancel context.CancelFunc) *tea.Program {
	log.Debug("Starting progress view", "title", title)
	return tea.NewProgram(newModel(title, cancel))
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.quitting && m.cancel != nil {
				m.cancel()
			}
			m.quitting = true
			m.stage = "Stopping"
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(min(msg.Width-padding*2-8, maxBarWidth), 10)
		return m, nil

	case StageMsg:
		m.stage = string(msg)
		return m, nil

	case progressMsg:
		m.processed = msg.Processed
		m.total = msg.Total
		m.characters = msg.Characters
		m.author = msg.Author
		if msg.Skipped {
			m.skipped++
		}
		m.retry = nil
		return m, nil

	case retryMsg:
		r := synth.RetryEvent(msg)
		m.retry = &r
		return m, nil

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		m.summary = msg.Summary
		return m, tea.Quit

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.processed) / float64(m.total)
}

func (m model) View() string {
	pad := strings.Repeat(" ", padding)
	lineWidth := uint(max(m.width-padding*2, 10)) //nolint:gosec

	if m.done {
		if m.err != nil {
			return fmt.Sprintf("\n%s%s %s\n\n", pad, errorTitleStyle.Render("ERROR"),
				truncate.StringWithTail(m.err.Error(), lineWidth, "…"))
		}
		return fmt.Sprintf("\n%s%s\n\n", pad, m.summary)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s%s\n\n", pad, titleStyle.Render(truncate.StringWithTail(m.title, lineWidth-2, "…")))

	if m.total == 0 {
		fmt.Fprintf(&b, "%s%s %s\n", pad, m.spinner.View(), m.stage)
		return b.String()
	}

	fmt.Fprintf(&b, "%s%s %d/%d\n", pad, m.bar.ViewAs(m.percent()), m.processed, m.total)

	status := m.stage
	if m.author != "" && !m.quitting {
		status = "Last voiced " + authorStyle.Render(m.author)
	}
	fmt.Fprintf(&b, "%s%s %s\n", pad, m.spinner.View(), status)

	if m.retry != nil {
		msg := fmt.Sprintf("Rate limited. Retrying in %s (attempt %d)", m.retry.Delay.Round(time.Millisecond), m.retry.Attempt)
		fmt.Fprintf(&b, "%s%s\n", pad, warnStyle.Render(truncate.StringWithTail(msg, lineWidth, "…")))
	}

	meta := fmt.Sprintf("%s characters", humanize.Comma(int64(m.characters)))
	if m.skipped > 0 {
		meta += fmt.Sprintf(" • %d skipped", m.skipped)
	}
	meta += " • started " + humanize.Time(m.started)
	fmt.Fprintf(&b, "\n%s%s\n", pad, subtleStyle.Render(truncate.StringWithTail(meta, lineWidth, "…")))
	return b.String()
}
