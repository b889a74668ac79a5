package thread

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/onetake-ai/hackernews-watercooler/internal/errdefs"
)

// fakeSource serves items from a map and records which ids were requested.
type fakeSource struct {
	mu      sync.Mutex
	items   map[int64]*Item
	fail    map[int64]error
	fetched []int64
}

func newFakeSource(items ...*Item) *fakeSource {
	s := &fakeSource{items: make(map[int64]*Item), fail: make(map[int64]error)}
	for _, it := range items {
		s.items[it.ID] = it
	}
	return s
}

func (s *fakeSource) Get(ctx context.Context, id int64) (*Item, error) {
	s.mu.Lock()
	s.fetched = append(s.fetched, id)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := s.fail[id]; ok {
		return nil, err
	}
	return s.items[id], nil
}

func (s *fakeSource) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fetched)
}

func story(id int64, by string, kids ...int64) *Item {
	return &Item{ID: id, By: by, Title: "Story", Kids: kids, Type: "story"}
}

func comment(id, parent int64, by string, kids ...int64) *Item {
	return &Item{ID: id, By: by, Text: fmt.Sprintf("comment %d", id), Parent: parent, Kids: kids, Type: "comment"}
}

func ids(nodes []*Node) []int64 {
	out := make([]int64, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCollectRespectsLimit(t *testing.T) {
	src := newFakeSource(
		story(1, "op", 2, 3, 4),
		comment(2, 1, "a", 5, 6),
		comment(3, 1, "b", 7),
		comment(4, 1, "c"),
		comment(5, 2, "d"),
		comment(6, 2, "e", 8),
		comment(7, 3, "f"),
		comment(8, 6, "g"),
	)

	for limit := -1; limit <= 9; limit++ {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			nodes, err := NewCollector(src).Collect(context.Background(), 1, limit)
			if err != nil {
				t.Fatalf("Collect() error = %v", err)
			}
			if !nodes[0].IsRoot {
				t.Fatalf("first node is not the root")
			}
			want := min(max(limit, 0), 7)
			if got := len(nodes) - 1; got != want {
				t.Errorf("non-root nodes = %d, want %d", got, want)
			}
		})
	}
}

func TestCollectDoesNotFetchPastLimit(t *testing.T) {
	src := newFakeSource(
		story(1, "op", 2, 3, 4, 5, 6),
		comment(2, 1, "a"),
		comment(3, 1, "b"),
		comment(4, 1, "c"),
		comment(5, 1, "d"),
		comment(6, 1, "e"),
	)

	nodes, err := NewCollector(src).Collect(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if want := []int64{1, 2, 3}; !equalIDs(ids(nodes), want) {
		t.Errorf("nodes = %v, want %v", ids(nodes), want)
	}
	// root + exactly two comments
	if got := src.fetchCount(); got != 3 {
		t.Errorf("fetches = %d, want 3", got)
	}
}

func TestCollectRefillsAfterExcludedNodes(t *testing.T) {
	deleted := comment(3, 1, "b")
	deleted.Deleted = true
	src := newFakeSource(
		story(1, "op", 2, 3, 4),
		comment(2, 1, "a"),
		deleted,
		comment(4, 1, "c"),
	)

	nodes, err := NewCollector(src).Collect(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if want := []int64{1, 2, 4}; !equalIDs(ids(nodes), want) {
		t.Errorf("nodes = %v, want %v", ids(nodes), want)
	}
}

func TestCollectPrunesExcludedSubtrees(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Item)
	}{
		{"deleted", func(it *Item) { it.Deleted = true }},
		{"dead", func(it *Item) { it.Dead = true }},
		{"flagged", func(it *Item) { it.Flagged = true }},
		{"empty text", func(it *Item) { it.Text = "  " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := comment(2, 1, "gone", 3, 4, 5)
			tt.mutate(bad)
			src := newFakeSource(
				story(1, "op", 2, 6),
				bad,
				comment(3, 2, "x"),
				comment(4, 2, "y"),
				comment(5, 2, "z"),
				comment(6, 1, "w"),
			)

			nodes, err := NewCollector(src).Collect(context.Background(), 1, 100)
			if err != nil {
				t.Fatalf("Collect() error = %v", err)
			}
			if want := []int64{1, 6}; !equalIDs(ids(nodes), want) {
				t.Errorf("nodes = %v, want %v", ids(nodes), want)
			}
			for _, fetched := range src.fetched {
				if fetched >= 3 && fetched <= 5 {
					t.Errorf("child %d of an excluded node was fetched", fetched)
				}
			}
		})
	}
}

func TestCollectSwallowsCommentErrors(t *testing.T) {
	src := newFakeSource(
		story(1, "op", 2, 3),
		comment(2, 1, "a", 4),
		comment(3, 1, "b"),
		comment(4, 2, "c"),
	)
	src.fail[2] = errors.New("connection reset")

	nodes, err := NewCollector(src).Collect(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if want := []int64{1, 3}; !equalIDs(ids(nodes), want) {
		t.Errorf("nodes = %v, want %v", ids(nodes), want)
	}
}

func TestCollectRootFailures(t *testing.T) {
	tests := []struct {
		name string
		src  *fakeSource
	}{
		{"not found", newFakeSource()},
		{"no title", newFakeSource(&Item{ID: 1, By: "op", Text: "hi"})},
		{"fetch error", func() *fakeSource {
			s := newFakeSource(story(1, "op"))
			s.fail[1] = errors.New("boom")
			return s
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCollector(tt.src).Collect(context.Background(), 1, 10)
			if !errors.Is(err, errdefs.ErrSourceUnavailable) {
				t.Errorf("Collect() error = %v, want SourceUnavailable", err)
			}
		})
	}
}

func TestCollectUsesAuthoritativeParent(t *testing.T) {
	// Item 4 is listed under 2 but claims 3 as its parent.
	src := newFakeSource(
		story(1, "op", 2, 3),
		comment(2, 1, "a", 4),
		comment(3, 1, "b"),
		comment(4, 3, "c"),
	)

	nodes, err := NewCollector(src).Collect(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	last := nodes[len(nodes)-1]
	if last.ID != 4 || last.ParentID != 3 {
		t.Errorf("node 4 parent = %d, want 3", last.ParentID)
	}
	if last.Depth != 2 {
		t.Errorf("node 4 depth = %d, want 2", last.Depth)
	}
}

func TestCollectCanceled(t *testing.T) {
	src := newFakeSource(story(1, "op", 2), comment(2, 1, "a"))
	ctx, cancel := context.WithCancel(context.Background())

	wrapped := SourceFunc(func(c context.Context, id int64) (*Item, error) {
		if id == 2 {
			cancel()
		}
		return src.Get(c, id)
	})

	nodes, err := NewCollector(wrapped).Collect(ctx, 1, 10)
	if !errors.Is(err, errdefs.ErrCanceled) {
		t.Fatalf("Collect() error = %v, want canceled", err)
	}
	if len(nodes) != 1 || !nodes[0].IsRoot {
		t.Errorf("partial nodes = %v, want just the root", ids(nodes))
	}
}

func TestReorderSiblingRanking(t *testing.T) {
	nodes := []*Node{
		{ID: 1, Author: "op", IsRoot: true},
		{ID: 2, ParentID: 1, Score: 1, Timestamp: 300},
		{ID: 3, ParentID: 1, Score: 5, Timestamp: 400},
		{ID: 4, ParentID: 1, Score: 1, Timestamp: 100},
		{ID: 5, ParentID: 2, Timestamp: 50},
		{ID: 6, ParentID: 3, Timestamp: 60},
	}

	ordered, orphans := Reorder(nodes)
	if len(orphans) != 0 {
		t.Fatalf("orphans = %v, want none", ids(orphans))
	}
	if want := []int64{1, 3, 6, 4, 2, 5}; !equalIDs(ids(ordered), want) {
		t.Errorf("order = %v, want %v", ids(ordered), want)
	}
}

func TestReorderAppendsOrphans(t *testing.T) {
	nodes := []*Node{
		{ID: 1, IsRoot: true},
		{ID: 2, ParentID: 1},
		{ID: 3, ParentID: 99},
		{ID: 4, ParentID: 3},
		{ID: 5, ParentID: 2},
	}

	ordered, orphans := Reorder(nodes)
	if want := []int64{1, 2, 5, 3, 4}; !equalIDs(ids(ordered), want) {
		t.Errorf("order = %v, want %v", ids(ordered), want)
	}
	if want := []int64{3, 4}; !equalIDs(ids(orphans), want) {
		t.Errorf("orphans = %v, want %v", ids(orphans), want)
	}
}

func TestReorderIsDeterministic(t *testing.T) {
	nodes := []*Node{
		{ID: 1, IsRoot: true},
		{ID: 2, ParentID: 1, Score: 2, Timestamp: 10},
		{ID: 3, ParentID: 1, Score: 2, Timestamp: 10},
		{ID: 4, ParentID: 2},
	}
	first, _ := Reorder(nodes)
	for i := 0; i < 10; i++ {
		again, _ := Reorder(nodes)
		if !equalIDs(ids(first), ids(again)) {
			t.Fatalf("Reorder() not deterministic: %v vs %v", ids(first), ids(again))
		}
	}
}

func TestReorderParentsPrecedeChildren(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for trial := 0; trial < 50; trial++ {
		nodes := []*Node{{ID: 1, IsRoot: true}}
		for id := int64(2); id < 40; id++ {
			parent := nodes[r.IntN(len(nodes))]
			nodes = append(nodes, &Node{
				ID:        id,
				ParentID:  parent.ID,
				Depth:     parent.Depth + 1,
				Score:     r.IntN(5),
				Timestamp: int64(r.IntN(100)),
			})
		}
		r.Shuffle(len(nodes)-1, func(i, j int) { nodes[i+1], nodes[j+1] = nodes[j+1], nodes[i+1] })

		ordered, orphans := Reorder(nodes)
		if len(ordered) != len(nodes) || len(orphans) != 0 {
			t.Fatalf("trial %d: ordered %d of %d nodes, %d orphans", trial, len(ordered), len(nodes), len(orphans))
		}
		if _, err := NewThread(ordered); err != nil {
			t.Fatalf("trial %d: %v", trial, err)
		}
	}
}

func TestLoadExampleThread(t *testing.T) {
	bob := comment(2, 1, "bob")
	bob.Score, bob.Time = 2, 10
	alice := comment(3, 1, "alice")
	alice.Score, alice.Time = 1, 20
	src := newFakeSource(story(1, "alice", 2, 3), bob, alice)

	th, err := Load(context.Background(), NewCollector(src), 1, 10)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	var authors []string
	for _, n := range th.Nodes {
		authors = append(authors, n.Author)
	}
	if fmt.Sprint(authors) != "[alice bob alice]" {
		t.Errorf("authors = %v, want [alice bob alice]", authors)
	}
	if got := th.Occurrences()["alice"]; got != 2 {
		t.Errorf("Occurrences()[alice] = %d, want 2", got)
	}
	if got := th.Authors(); fmt.Sprint(got) != "[alice bob]" {
		t.Errorf("Authors() = %v", got)
	}
	if n, ok := th.Lookup(3); !ok || n.Author != "alice" {
		t.Errorf("Lookup(3) = %v, %v", n, ok)
	}
}

func TestVerifyRejectsBrokenOrder(t *testing.T) {
	tests := []struct {
		name  string
		nodes []*Node
	}{
		{"empty", nil},
		{"root not first", []*Node{{ID: 2, ParentID: 1}, {ID: 1, IsRoot: true}}},
		{"child before parent", []*Node{{ID: 1, IsRoot: true}, {ID: 3, ParentID: 2}, {ID: 2, ParentID: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewThread(tt.nodes); err == nil {
				t.Error("NewThread() error = nil, want error")
			}
		})
	}
}
