// Package thread collects a discussion tree from an item source and flattens
// it into the order a person would read it aloud.
package thread

import (
	"context"
	"fmt"
	"strings"
)

// Item is a raw discussion entry as returned by a Source.
type Item struct {
	ID      int64   `json:"id"`
	Type    string  `json:"type,omitempty"`
	By      string  `json:"by,omitempty"`
	Text    string  `json:"text,omitempty"`
	Title   string  `json:"title,omitempty"`
	Parent  int64   `json:"parent,omitempty"`
	Kids    []int64 `json:"kids,omitempty"`
	Deleted bool    `json:"deleted,omitempty"`
	Dead    bool    `json:"dead,omitempty"`
	Flagged bool    `json:"flagged,omitempty"`
	Time    int64   `json:"time,omitempty"`
	Score   int     `json:"score,omitempty"`
}

// Excluded reports whether a non-root item must be dropped along with its
// whole subtree.
func (it *Item) Excluded() bool {
	return it.Deleted || it.Dead || it.Flagged || strings.TrimSpace(it.Text) == ""
}

// Source fetches items by id. A nil item with a nil error means not found.
type Source interface {
	Get(ctx context.Context, id int64) (*Item, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, id int64) (*Item, error)

// Get implements Source.
func (f SourceFunc) Get(ctx context.Context, id int64) (*Item, error) {
	return f(ctx, id)
}

// Node is one accepted post or comment. ParentID is 0 only for the root.
type Node struct {
	ID        int64  `json:"id"`
	Author    string `json:"author"`
	Text      string `json:"text,omitempty"`
	Title     string `json:"title,omitempty"`
	ParentID  int64  `json:"parent_id,omitempty"`
	Depth     int    `json:"depth"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Score     int    `json:"score,omitempty"`
	IsRoot    bool   `json:"is_root,omitempty"`
}

func newNode(it *Item, parentID int64, depth int) *Node {
	return &Node{
		ID:        it.ID,
		Author:    it.By,
		Text:      it.Text,
		Title:     it.Title,
		ParentID:  parentID,
		Depth:     depth,
		Timestamp: it.Time,
		Score:     it.Score,
	}
}

// Thread is the ordered sequence of accepted nodes for one discussion.
// Nodes[0] is the root and every other node's parent, when present in the
// thread, appears at a smaller index.
type Thread struct {
	Nodes []*Node `json:"nodes"`
	// Orphans lists nodes whose parent chain could not be resolved. They are
	// kept at the end of Nodes in collection order.
	Orphans []int64 `json:"orphans,omitempty"`

	index map[int64]int
}

// NewThread wraps an already ordered node list and verifies its invariants.
func NewThread(nodes []*Node) (*Thread, error) {
	t := &Thread{Nodes: nodes}
	t.reindex()
	if err := t.Verify(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Thread) reindex() {
	t.index = make(map[int64]int, len(t.Nodes))
	for i, n := range t.Nodes {
		t.index[n.ID] = i
	}
}

// Len returns the number of nodes, root included.
func (t *Thread) Len() int {
	return len(t.Nodes)
}

// Root returns the root node.
func (t *Thread) Root() *Node {
	if len(t.Nodes) == 0 {
		return nil
	}
	return t.Nodes[0]
}

// Lookup returns the node with the given id.
func (t *Thread) Lookup(id int64) (*Node, bool) {
	if t.index == nil {
		t.reindex()
	}
	i, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return t.Nodes[i], true
}

// Position returns the index of id in the thread, or -1.
func (t *Thread) Position(id int64) int {
	if t.index == nil {
		t.reindex()
	}
	if i, ok := t.index[id]; ok {
		return i
	}
	return -1
}

// Verify checks that the root comes first and that parents precede children.
// Orphans are exempt from the parent check.
func (t *Thread) Verify() error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("thread is empty")
	}
	if !t.Nodes[0].IsRoot {
		return fmt.Errorf("thread does not start with the root node (got %d)", t.Nodes[0].ID)
	}
	orphan := make(map[int64]bool, len(t.Orphans))
	for _, id := range t.Orphans {
		orphan[id] = true
	}
	for i, n := range t.Nodes[1:] {
		pos := i + 1
		if n.IsRoot {
			return fmt.Errorf("root node %d found at position %d", n.ID, pos)
		}
		if orphan[n.ID] {
			continue
		}
		p := t.Position(n.ParentID)
		if p >= pos {
			return fmt.Errorf("node %d at position %d precedes its parent %d at position %d", n.ID, pos, n.ParentID, p)
		}
	}
	return nil
}

// Occurrences counts how many nodes each author has in the thread.
func (t *Thread) Occurrences() map[string]int {
	counts := make(map[string]int)
	for _, n := range t.Nodes {
		counts[n.Author]++
	}
	return counts
}

// Authors returns the distinct authors in thread order.
func (t *Thread) Authors() []string {
	seen := make(map[string]bool)
	var authors []string
	for _, n := range t.Nodes {
		if seen[n.Author] {
			continue
		}
		seen[n.Author] = true
		authors = append(authors, n.Author)
	}
	return authors
}
