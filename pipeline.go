package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/onetake-ai/hackernews-watercooler/internal/audio"
	"github.com/onetake-ai/hackernews-watercooler/internal/cache"
	"github.com/onetake-ai/hackernews-watercooler/internal/checkpoint"
	"github.com/onetake-ai/hackernews-watercooler/internal/config"
	"github.com/onetake-ai/hackernews-watercooler/internal/elevenlabs"
	"github.com/onetake-ai/hackernews-watercooler/internal/hn"
	"github.com/onetake-ai/hackernews-watercooler/internal/narration"
	"github.com/onetake-ai/hackernews-watercooler/internal/synth"
	"github.com/onetake-ai/hackernews-watercooler/internal/thread"
	"github.com/onetake-ai/hackernews-watercooler/internal/voice"
	"github.com/onetake-ai/hackernews-watercooler/ui"
)

// app holds the collaborators shared by the commands of one invocation.
type app struct {
	cfg   config.Config
	store *checkpoint.Store
	clips *cache.Manager
	tts   *elevenlabs.Client
}

type appOption int

const (
	withSynthesis appOption = iota
	withCheckpoints
)

func newApp(cfg config.Config, opts ...appOption) (*app, error) {
	a := &app{cfg: cfg}
	for _, o := range opts {
		switch o {
		case withSynthesis:
			if err := cfg.RequireAPIKey(); err != nil {
				return nil, err
			}
			c, err := elevenlabs.NewClient(cfg.ElevenLabsConfig())
			if err != nil {
				return nil, err
			}
			a.tts = c

			if cfg.Cache.Enabled {
				m, err := cache.NewManager(cfg.CacheConfig())
				if err != nil {
					log.Warn("Audio cache disabled", "err", err)
				} else {
					a.clips = m
				}
			}

		case withCheckpoints:
			s, err := checkpoint.Open(cfg.Checkpoint.Path)
			if err != nil {
				a.Close()
				return nil, err
			}
			a.store = s
		}
	}
	return a, nil
}

func (a *app) Close() {
	if a.clips != nil {
		s := a.clips.Stats()
		log.Debug("Audio cache", "hits", s.Hits(), "promotions", s.Promotions,
			"disk", humanize.IBytes(uint64(s.Disk.Size))) //nolint:gosec
		if err := a.clips.Close(); err != nil {
			log.Warn("Could not close audio cache", "err", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn("Could not close checkpoint store", "err", err)
		}
	}
}

// collect fetches the thread rooted at itemID in reading order.
func (a *app) collect(ctx context.Context, itemID int64, limit int) (*thread.Thread, error) {
	src := hn.NewClient(a.cfg.HNConfig())
	c := thread.NewCollector(src, thread.WithConcurrency(a.cfg.HN.Concurrency))
	return thread.Load(ctx, c, itemID, limit)
}

// voices loads the catalog and seeds the assigner with earlier assignments.
func (a *app) voices(ctx context.Context, earlier map[string]voice.Voice) (*voice.Assigner, error) {
	catalog, err := a.tts.ListVoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load voices: %w", err)
	}
	as, err := voice.NewAssigner(catalog)
	if err != nil {
		return nil, err
	}
	if len(earlier) > 0 {
		as.Restore(earlier)
	}
	return as, nil
}

func (a *app) synthesizer() synth.Synthesizer {
	if a.clips == nil {
		return a.tts
	}
	return cache.NewSynthesizer(a.tts, a.clips, a.tts.Model())
}

func (a *app) orchestrator(t *thread.Thread, as *voice.Assigner, seed uint64, runID string, obs synth.Observer) (*synth.Orchestrator, error) {
	return synth.NewOrchestrator(synth.Config{
		Thread:      t,
		Voices:      as,
		Composer:    narration.NewSeededComposer(a.cfg.Phrases, seed),
		Synthesizer: a.synthesizer(),
		Retry:       a.cfg.RetryPolicy(),
		Format:      a.cfg.AudioFormat(),
		Gap:         a.cfg.Synthesis.Silence,
		Observer:    obs,
		Journal:     a.store.Journal(runID),
	})
}

// narrationResult is what a finished run hands back to the command.
type narrationResult struct {
	Title    string
	Output   string
	Audio    synth.Audio
	Links    []narration.SharedLink
	Progress synth.Progress
}

func (r narrationResult) summary() string {
	s := fmt.Sprintf("Wrote %s (%s, %s, %d comments, %s characters)",
		keyword(r.Output),
		r.Audio.Duration.Round(time.Second),
		humanize.IBytes(uint64(len(r.Audio.Data))), //nolint:gosec
		max(r.Progress.Total-1, 0),
		humanize.Comma(int64(r.Progress.Characters)))
	if n := len(r.Links); n > 0 {
		s += subtle(fmt.Sprintf("\n  %d %s shared in the thread", n, plural(n, "link", "links")))
	}
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// finish assembles the segments of o and writes the WAV file.
func (a *app) finish(o *synth.Orchestrator, title, output string) (*narrationResult, error) {
	res := &narrationResult{
		Title:    title,
		Output:   output,
		Audio:    synth.Assemble(o.Segments()),
		Links:    o.Links(),
		Progress: o.Progress(),
	}
	if err := writeWAV(output, res.Audio.Data, a.cfg.AudioFormat()); err != nil {
		return nil, err
	}
	if err := os.Remove(partialPath(output)); err == nil {
		log.Debug("Removed partial narration", "path", partialPath(output))
	}
	log.Info("Narration written", "path", output, "segments", res.Audio.Segments, "duration", res.Audio.Duration)
	return res, nil
}

// salvage writes the segments of a faulted run next to output and returns
// the path, or "" when nothing was written.
func (a *app) salvage(o *synth.Orchestrator, output string) string {
	segs := o.Segments()
	if len(segs) == 0 {
		return ""
	}
	path := partialPath(output)
	if err := writeWAV(path, synth.Assemble(segs).Data, a.cfg.AudioFormat()); err != nil {
		log.Warn("Could not write partial narration", "path", path, "err", err)
		return ""
	}
	log.Info("Partial narration written", "path", path, "segments", len(segs))
	return path
}

// partialPath turns out.wav into out.partial.wav.
func partialPath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + ".partial.wav"
}

func writeWAV(path string, pcm []byte, f audio.Format) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("unable to create output directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	w, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	if err := audio.WriteWAV(w, pcm, f); err != nil {
		_ = w.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("unable to write output file: %w", err)
	}
	if err := w.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("unable to write output file: %w", err)
	}
	return os.Rename(tmp, path) //nolint:wrapcheck
}

// deliver plays the result and copies links when asked to.
func (a *app) deliver(ctx context.Context, res *narrationResult, play, copyLinks bool) error {
	if copyLinks && len(res.Links) > 0 {
		if err := clipboard.WriteAll(formatLinks(res.Links)); err != nil {
			log.Warn("Could not copy links to the clipboard", "err", err)
		} else {
			log.Info("Copied links to the clipboard", "links", len(res.Links))
		}
	}
	if !play || len(res.Audio.Data) == 0 {
		return nil
	}

	p, err := audio.NewPlayer(a.cfg.AudioFormat())
	if err != nil {
		return fmt.Errorf("unable to open audio device: %w", err)
	}
	fmt.Fprintln(os.Stderr, subtle("Playing… press ctrl+c to stop"))
	if err := p.Play(ctx, res.Audio.Data); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("playback failed: %w", err)
	}
	return nil
}

func formatLinks(links []narration.SharedLink) string {
	var b strings.Builder
	for _, l := range links {
		author := l.Speaker
		if author == "" {
			author = "anonymous"
		}
		text := l.Text
		if text == "" || text == l.URL {
			fmt.Fprintf(&b, "- %s (%s)\n", l.URL, author)
			continue
		}
		fmt.Fprintf(&b, "- %s: %s (%s)\n", text, l.URL, author)
	}
	return b.String()
}

// job is the work shown by the progress view.
type job func(ctx context.Context, obs synth.Observer, stage func(string)) (*narrationResult, error)

// runWithProgress runs j under the progress view when stdout is a terminal,
// and with plain log output otherwise.
func runWithProgress(ctx context.Context, cancel context.CancelFunc, title string, j job) (*narrationResult, error) {
	if noTUI || !term.IsTerminal(int(os.Stdout.Fd())) {
		res, err := j(ctx, ui.LogObserver{}, func(s string) { log.Info(s) })
		if err == nil {
			fmt.Println(res.summary())
		}
		return res, err
	}

	restore := logToFile()
	defer restore()

	p := ui.NewProgram(title, cancel)
	type outcome struct {
		res *narrationResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := j(ctx, ui.NewObserver(p), func(s string) { p.Send(ui.StageMsg(s)) })
		msg := ui.DoneMsg{Err: err}
		if err == nil {
			msg.Summary = res.summary()
		}
		p.Send(msg)
		done <- outcome{res, err}
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		log.Error("Progress view failed", "err", err)
	}
	out := <-done
	return out.res, out.err
}

// resumable decorates a run failure with the command that continues it and
// the file holding the audio finished so far.
func resumable(runID, partial string, err error) error {
	err = fmt.Errorf("%w\n\n  %s %s", err, subtle("continue with:"), keyword("watercooler resume "+runID))
	if partial != "" {
		err = fmt.Errorf("%w\n  %s %s", err, subtle("audio so far:"), keyword(partial))
	}
	return err
}
