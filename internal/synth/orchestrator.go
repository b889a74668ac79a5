// Package synth drives speech synthesis over a narrated thread and keeps
// enough state to resume a run at the node that failed.
package synth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/onetake-ai/hackernews-watercooler/internal/audio"
	"github.com/onetake-ai/hackernews-watercooler/internal/errdefs"
	"github.com/onetake-ai/hackernews-watercooler/internal/narration"
	"github.com/onetake-ai/hackernews-watercooler/internal/thread"
	"github.com/onetake-ai/hackernews-watercooler/internal/voice"
)

// DefaultGap is the silence appended after every spoken segment.
const DefaultGap = 400 * time.Millisecond

// Synthesizer turns text into audio with the given voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// Config wires an orchestrator.
type Config struct {
	Thread      *thread.Thread
	Voices      *voice.Assigner
	Composer    *narration.Composer
	Synthesizer Synthesizer

	Retry  RetryPolicy
	Format audio.Format
	Gap    time.Duration

	Observer Observer
	Journal  Journal
}

// Orchestrator synthesizes a thread node by node, strictly in order.
type Orchestrator struct {
	cfg     Config
	rc      *narration.RunContext
	silence []byte

	mu       sync.Mutex
	running  bool
	state    State
	progress Progress
	segments []Segment
	fault    error

	// Composed text of a node whose synthesis has not completed yet.
	pendingIndex int
	pendingText  string
}

// NewOrchestrator validates cfg and returns an idle orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Thread == nil || cfg.Thread.Len() == 0 {
		return nil, errors.New("synth: thread is empty")
	}
	if cfg.Voices == nil {
		return nil, errors.New("synth: voice assigner is required")
	}
	if cfg.Synthesizer == nil {
		return nil, errors.New("synth: synthesizer is required")
	}
	if cfg.Composer == nil {
		cfg.Composer = narration.NewComposer(narration.DefaultPhrases(), nil)
	}
	if cfg.Format == (audio.Format{}) {
		cfg.Format = audio.DefaultFormat()
	}
	if cfg.Gap == 0 {
		cfg.Gap = DefaultGap
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}

	return &Orchestrator{
		cfg:          cfg,
		rc:           narration.NewRunContext(cfg.Thread),
		silence:      audio.Silence(cfg.Gap, cfg.Format),
		state:        State{Kind: StateIdle},
		progress:     NewProgress(cfg.Thread.Len()),
		pendingIndex: -1,
	}, nil
}

// Run synthesizes the thread from the start. A run that stops early is left
// Faulted and the returned error is also available from Fault.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.state.Kind != StateIdle {
		o.mu.Unlock()
		return fmt.Errorf("synth: run already started (state %s), use Resume", o.state)
	}
	o.mu.Unlock()
	return o.loop(ctx)
}

// Resume continues a faulted run at the node that failed, reusing the
// thread, voice assignments and run context.
func (o *Orchestrator) Resume(ctx context.Context) error {
	o.mu.Lock()
	kind := o.state.Kind
	o.mu.Unlock()

	switch kind {
	case StateDone:
		return nil
	case StateIdle, StateFaulted:
		return o.loop(ctx)
	default:
		return fmt.Errorf("synth: cannot resume while %s", kind)
	}
}

// Restore loads the cursor and segments of an earlier run, typically read
// from a journal, and leaves the orchestrator ready to Resume.
func (o *Orchestrator) Restore(p Progress, segments []Segment, pendingText string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return errors.New("synth: cannot restore while running")
	}
	if p.Total != o.cfg.Thread.Len() || p.LastIndex < -1 || p.LastIndex >= p.Total {
		return fmt.Errorf("synth: progress %+v does not match thread of %d nodes", p, o.cfg.Thread.Len())
	}

	// The pending node was composed before the fault, so the context has
	// already moved past it.
	upto := p.LastIndex
	if pendingText != "" {
		upto++
	}
	o.rc = narration.NewRunContext(o.cfg.Thread)
	o.cfg.Composer.Replay(o.rc, upto)

	o.progress = p
	o.segments = append([]Segment(nil), segments...)
	o.fault = nil
	o.pendingIndex, o.pendingText = -1, ""
	if pendingText != "" {
		o.pendingIndex, o.pendingText = p.LastIndex+1, pendingText
	}

	if p.Done() {
		o.state = State{Kind: StateDone}
	} else {
		o.state = State{Kind: StateFaulted, Index: p.LastIndex + 1}
	}
	return nil
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Progress returns the current cursor.
func (o *Orchestrator) Progress() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.progress
}

// Segments returns a copy of the segments produced so far.
func (o *Orchestrator) Segments() []Segment {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Segment(nil), o.segments...)
}

// Fault returns the error that froze the run, or nil.
func (o *Orchestrator) Fault() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fault
}

// Links returns the links shared so far in the run.
func (o *Orchestrator) Links() []narration.SharedLink {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rc.Links()
}

func (o *Orchestrator) loop(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return errors.New("synth: run in progress")
	}
	o.running = true
	o.fault = nil
	start := o.progress.LastIndex + 1
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	nodes := o.cfg.Thread.Nodes
	log.Debug("Synthesis loop starting", "from", start, "total", len(nodes))

	for i := start; i < len(nodes); i++ {
		if err := ctx.Err(); err != nil {
			return o.freeze(ctx, i, errdefs.New(errdefs.CodeCanceled, "synthesis canceled", err))
		}
		o.setState(speaking(i))

		n := nodes[i]
		text := o.compose(i, n)
		v := o.cfg.Voices.Assign(n.Author)

		var segs []Segment
		if text != "" && v.ID != "" {
			data, err := o.synthesize(ctx, i, n, text, v)
			if err != nil {
				return o.freeze(ctx, i, err)
			}
			segs = []Segment{
				{NodeID: n.ID, Audio: data, DurationHint: o.cfg.Format.Duration(len(data))},
				{NodeID: n.ID, Audio: o.silence, IsSilence: true, DurationHint: o.cfg.Gap},
			}
		} else {
			log.Debug("Skipping node", "index", i, "id", n.ID, "empty", text == "", "voice", v.ID)
		}

		if err := o.advance(ctx, i, n, text, segs); err != nil {
			return o.freeze(ctx, i, err)
		}
	}

	o.setState(State{Kind: StateDone})
	p := o.Progress()
	log.Info("Synthesis complete", "nodes", p.Processed, "characters", p.Characters)
	_ = o.commit(ctx, Commit{Index: p.LastIndex, State: o.State(), Progress: p})
	return nil
}

// compose returns the narration for node i, composing it at most once so a
// resumed node is spoken exactly as it would have been.
func (o *Orchestrator) compose(i int, n *thread.Node) string {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pendingIndex == i {
		return o.pendingText
	}
	text := o.cfg.Composer.Compose(n, o.rc)
	o.pendingIndex, o.pendingText = i, text
	return text
}

func (o *Orchestrator) synthesize(ctx context.Context, i int, n *thread.Node, text string, v voice.Voice) ([]byte, error) {
	policy := o.cfg.Retry
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.Warn("Rate limited, backing off", "index", i, "attempt", attempt, "delay", delay)
		o.cfg.Observer.OnRetry(RetryEvent{Index: i, Author: n.Author, Attempt: attempt, Delay: delay, Err: err})
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
	}

	var data []byte
	err := Retry(ctx, policy, func(ctx context.Context) error {
		var err error
		data, err = o.cfg.Synthesizer.Synthesize(ctx, text, v.ID)
		return err
	})
	return data, err
}

// advance journals node i and then moves the cursor past it. A step whose
// segments could not be journaled leaves the cursor at i.
func (o *Orchestrator) advance(ctx context.Context, i int, n *thread.Node, text string, segs []Segment) error {
	o.mu.Lock()
	p := o.progress
	p.LastIndex = i
	p.Processed++
	if len(segs) > 0 {
		p.Characters += utf8.RuneCountInString(text)
	}
	st := o.state
	o.mu.Unlock()

	err := o.commit(ctx, Commit{
		Index:    i,
		State:    st,
		Progress: p,
		Segments: segs,
		Voices:   o.cfg.Voices.Snapshot(),
		Text:     text,
	})
	if err != nil && len(segs) > 0 {
		return fmt.Errorf("synth: journal node %d: %w", n.ID, err)
	}

	o.mu.Lock()
	o.segments = append(o.segments, segs...)
	o.progress = p
	o.pendingIndex, o.pendingText = -1, ""
	o.mu.Unlock()

	o.cfg.Observer.OnProgress(Event{
		Index:      i,
		NodeID:     n.ID,
		Author:     n.Author,
		Processed:  p.Processed,
		Total:      p.Total,
		Characters: p.Characters,
		Skipped:    len(segs) == 0,
	})
	return nil
}

func (o *Orchestrator) freeze(ctx context.Context, i int, err error) error {
	o.mu.Lock()
	o.state = State{Kind: StateFaulted, Index: i}
	o.fault = err
	p := o.progress
	text := ""
	if o.pendingIndex == i {
		text = o.pendingText
	}
	o.mu.Unlock()

	log.Error("Synthesis halted", "index", i, "code", errdefs.CodeOf(err), "err", err)
	_ = o.commit(ctx, Commit{
		Index:    i,
		State:    State{Kind: StateFaulted, Index: i},
		Progress: p,
		Voices:   o.cfg.Voices.Snapshot(),
		Text:     text,
		Cause:    err,
	})
	return err
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if s == o.state {
		return
	}
	if !canTransition(o.state.Kind, s.Kind) {
		log.Debug("Unexpected state transition", "from", o.state, "to", s)
	}
	o.state = s
}

func (o *Orchestrator) commit(ctx context.Context, c Commit) error {
	if o.cfg.Journal == nil {
		return nil
	}
	err := o.cfg.Journal.Commit(context.WithoutCancel(ctx), c)
	if err != nil {
		log.Warn("Failed to journal run step", "index", c.Index, "err", err)
	}
	return err
}
