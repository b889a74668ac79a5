package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/onetake-ai/hackernews-watercooler/internal/audio"
	"github.com/onetake-ai/hackernews-watercooler/internal/config"
	"github.com/onetake-ai/hackernews-watercooler/internal/errdefs"
	"github.com/onetake-ai/hackernews-watercooler/internal/narration"
	"github.com/onetake-ai/hackernews-watercooler/internal/synth"
	"github.com/onetake-ai/hackernews-watercooler/internal/thread"
	"github.com/onetake-ai/hackernews-watercooler/internal/voice"
)

func TestFormatLinks(t *testing.T) {
	got := formatLinks([]narration.SharedLink{
		{URL: "https://a.example", Text: "a post", Speaker: "alice"},
		{URL: "https://b.example", Text: "https://b.example", Speaker: "bob"},
		{URL: "https://c.example"},
	})
	want := "- a post: https://a.example (alice)\n" +
		"- https://b.example (bob)\n" +
		"- https://c.example (anonymous)\n"
	if got != want {
		t.Errorf("formatLinks() = %q, want %q", got, want)
	}
}

func TestWriteWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.wav")
	pcm := []byte{1, 0, 2, 0, 3, 0}

	if err := writeWAV(path, pcm, audio.DefaultFormat()); err != nil {
		t.Fatalf("writeWAV: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temporary file left behind: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got, f, err := audio.ReadWAV(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("pcm = %v, want %v", got, pcm)
	}
	if f != audio.DefaultFormat() {
		t.Errorf("format = %+v, want %+v", f, audio.DefaultFormat())
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		hint string
	}{
		{"auth", errdefs.New(errdefs.CodeAuth, "rejected", nil), "ELEVENLABS_API_KEY"},
		{"source", errdefs.New(errdefs.CodeSourceUnavailable, "gone", nil), "still exists"},
		{"catalog", errdefs.New(errdefs.CodeEmptyCatalog, "no voices", nil), "at least one voice"},
		{"canceled", context.Canceled, "interrupted"},
		{"other", errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := describe(tt.err)
			if !errors.Is(got, tt.err) {
				t.Errorf("describe() lost the cause: %v", got)
			}
			if !strings.Contains(got.Error(), tt.hint) {
				t.Errorf("describe() = %q, want hint %q", got, tt.hint)
			}
		})
	}
}

func TestFilterVoices(t *testing.T) {
	catalog := []voice.Voice{
		{ID: "1", Name: "Rachel"},
		{ID: "2", Name: "Domi"},
		{ID: "3", Name: "Arnold"},
	}
	got := filterVoices(catalog, "rch")
	if len(got) != 1 || got[0].Name != "Rachel" {
		t.Errorf("filterVoices(rch) = %+v", got)
	}
	if got := filterVoices(catalog, "zzz"); len(got) != 0 {
		t.Errorf("filterVoices(zzz) = %+v", got)
	}
}

func TestColumns(t *testing.T) {
	got := columns([][2]string{{"Ann", "x"}, {"日本", "y"}})
	want := "  Ann   x\n  日本  y\n"
	if got != want {
		t.Errorf("columns() = %q, want %q", got, want)
	}
}

// flakySynth fails the call numbered failAt (1-based) once.
type flakySynth struct {
	calls  int
	failAt int
}

func (s *flakySynth) Synthesize(context.Context, string, string) ([]byte, error) {
	s.calls++
	if s.calls == s.failAt {
		return nil, errdefs.New(errdefs.CodeSynthesis, "boom", nil)
	}
	return []byte{1, 0, 2, 0}, nil
}

func TestFaultedRunLeavesPartialAudio(t *testing.T) {
	th, err := thread.NewThread([]*thread.Node{
		{ID: 1, Author: "alice", Title: "Ask HN: Anything?", IsRoot: true},
		{ID: 2, ParentID: 1, Author: "bob", Text: "first", Depth: 1},
		{ID: 3, ParentID: 1, Author: "carol", Text: "second", Depth: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	as, err := voice.NewAssigner([]voice.Voice{{ID: "v1", Name: "One"}})
	if err != nil {
		t.Fatal(err)
	}
	a := &app{cfg: config.Default()}
	o, err := synth.NewOrchestrator(synth.Config{
		Thread:      th,
		Voices:      as,
		Composer:    narration.NewSeededComposer(narration.DefaultPhrases(), 1),
		Synthesizer: &flakySynth{failAt: 2},
		Format:      a.cfg.AudioFormat(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := o.Run(context.Background()); err == nil {
		t.Fatal("Run succeeded, want fault")
	}

	output := filepath.Join(t.TempDir(), "thread.wav")
	partial := a.salvage(o, output)
	if want := filepath.Join(filepath.Dir(output), "thread.partial.wav"); partial != want {
		t.Fatalf("salvage() = %q, want %q", partial, want)
	}
	b, err := os.ReadFile(partial)
	if err != nil {
		t.Fatal(err)
	}
	pcm, _, err := audio.ReadWAV(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if want := synth.Assemble(o.Segments()).Data; len(pcm) == 0 || !bytes.Equal(pcm, want) {
		t.Errorf("partial audio = %d bytes, want %d", len(pcm), len(want))
	}

	msg := resumable("run-1", partial, o.Fault()).Error()
	if !strings.Contains(msg, "watercooler resume run-1") || !strings.Contains(msg, partial) {
		t.Errorf("resumable() = %q", msg)
	}

	if err := o.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if _, err := a.finish(o, "Ask HN: Anything?", output); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if _, err := os.Stat(partial); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("partial file left after a finished run: %v", err)
	}
}

func TestSalvageWithoutSegments(t *testing.T) {
	th, err := thread.NewThread([]*thread.Node{{ID: 1, Author: "alice", Title: "Hi", IsRoot: true}})
	if err != nil {
		t.Fatal(err)
	}
	as, err := voice.NewAssigner([]voice.Voice{{ID: "v1", Name: "One"}})
	if err != nil {
		t.Fatal(err)
	}
	o, err := synth.NewOrchestrator(synth.Config{Thread: th, Voices: as, Synthesizer: &flakySynth{failAt: 1}})
	if err != nil {
		t.Fatal(err)
	}
	_ = o.Run(context.Background())

	a := &app{cfg: config.Default()}
	output := filepath.Join(t.TempDir(), "thread.wav")
	if got := a.salvage(o, output); got != "" {
		t.Errorf("salvage() = %q, want nothing written", got)
	}
	if got := resumable("run-1", "", o.Fault()).Error(); strings.Contains(got, "audio so far") {
		t.Errorf("resumable() mentions missing partial audio: %q", got)
	}
}
