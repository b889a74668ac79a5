// Package voice binds discussion authors to synthesis voices.
package voice

import (
	"context"
	"sync"
	"unicode/utf16"

	"golang.org/x/text/cases"

	"github.com/onetake-ai/hackernews-watercooler/internal/errdefs"
)

// Voice is one entry of a synthesis voice catalog.
type Voice struct {
	ID   string `json:"voice_id" yaml:"voice_id"`
	Name string `json:"name" yaml:"name"`
}

// Catalog lists the voices available for a run.
type Catalog interface {
	ListVoices(ctx context.Context) ([]Voice, error)
}

// Assigner maps authors to voices. A voice whose name matches the author
// (case-insensitively) wins; otherwise the author's name hash picks one.
// Assignments are cached and never change for the rest of the run.
type Assigner struct {
	catalog []Voice
	byName  map[string]Voice

	mu       sync.Mutex
	assigned map[string]Voice
}

// NewAssigner creates an assigner over catalog. It fails with
// errdefs.ErrEmptyCatalog if catalog has no voices.
func NewAssigner(catalog []Voice) (*Assigner, error) {
	if len(catalog) == 0 {
		return nil, errdefs.New(errdefs.CodeEmptyCatalog, "no voices available", nil)
	}

	fold := cases.Fold()
	byName := make(map[string]Voice, len(catalog))
	for _, v := range catalog {
		key := fold.String(v.Name)
		if _, ok := byName[key]; !ok {
			byName[key] = v
		}
	}

	return &Assigner{
		catalog:  append([]Voice(nil), catalog...),
		byName:   byName,
		assigned: make(map[string]Voice),
	}, nil
}

// Assign returns the voice for author, computing it on first use.
func (a *Assigner) Assign(author string) Voice {
	a.mu.Lock()
	defer a.mu.Unlock()

	if v, ok := a.assigned[author]; ok {
		return v
	}

	v, ok := a.byName[cases.Fold().String(author)]
	if !ok {
		v = a.catalog[Hash(author)%int64(len(a.catalog))]
	}
	a.assigned[author] = v
	return v
}

// Snapshot returns a copy of the assignments made so far.
func (a *Assigner) Snapshot() map[string]Voice {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]Voice, len(a.assigned))
	for k, v := range a.assigned {
		out[k] = v
	}
	return out
}

// Restore seeds the assigner with assignments from an earlier run so a
// resumed run keeps its voices even if the catalog changed since.
func (a *Assigner) Restore(assignments map[string]Voice) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for k, v := range assignments {
		a.assigned[k] = v
	}
}

// Catalog returns the voices the assigner picks from.
func (a *Assigner) Catalog() []Voice {
	return append([]Voice(nil), a.catalog...)
}

// Hash is the 32-bit rolling hash h = h*31 + c over the UTF-16 code units
// of s, returned as its absolute value.
func Hash(s string) int64 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}
