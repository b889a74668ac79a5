package thread

import (
	"context"
	"sort"

	"github.com/charmbracelet/log"
)

// Reorder arranges nodes in reading order: a depth-first walk from the root
// in which each sibling group is ranked root first, then by descending score,
// then oldest first. The input order breaks remaining ties.
//
// Nodes the walk cannot reach (their parent was never collected) are not
// dropped. They are appended in input order, each followed by whatever of its
// own subtree was collected, and reported in orphans.
func Reorder(nodes []*Node) (ordered []*Node, orphans []*Node) {
	if len(nodes) == 0 {
		return nil, nil
	}

	pos := make(map[int64]int, len(nodes))
	for i, n := range nodes {
		pos[n.ID] = i
	}

	children := make(map[int64][]*Node)
	for _, n := range nodes {
		key := n.ParentID
		if n.IsRoot {
			key = 0
		}
		children[key] = append(children[key], n)
	}
	for _, group := range children {
		sort.SliceStable(group, func(i, j int) bool {
			a, b := group[i], group[j]
			if a.IsRoot != b.IsRoot {
				return a.IsRoot
			}
			if a.Score != b.Score {
				return a.Score > b.Score
			}
			if a.Timestamp != b.Timestamp {
				return a.Timestamp < b.Timestamp
			}
			return pos[a.ID] < pos[b.ID]
		})
	}

	ordered = make([]*Node, 0, len(nodes))
	visited := make(map[int64]bool, len(nodes))

	var walk func(n *Node)
	walk = func(n *Node) {
		if visited[n.ID] {
			return
		}
		visited[n.ID] = true
		ordered = append(ordered, n)
		for _, c := range children[n.ID] {
			walk(c)
		}
	}

	for _, n := range children[0] {
		if n.IsRoot {
			walk(n)
			break
		}
	}

	if len(ordered) == len(nodes) {
		return ordered, nil
	}

	// Start from unreached nodes whose parent is absent altogether, so a
	// reachable-from-orphan child is never emitted before its parent.
	reached := len(ordered)
	for _, n := range nodes {
		if visited[n.ID] {
			continue
		}
		if _, hasParent := pos[n.ParentID]; hasParent && n.ParentID != 0 {
			continue
		}
		walk(n)
	}
	// Whatever is still left sits on a parent cycle.
	for _, n := range nodes {
		walk(n)
	}

	orphans = append(orphans, ordered[reached:]...)
	return ordered, orphans
}

// Load collects the tree under rootID and returns it in reading order.
// When collection is canceled the partial thread is returned with the error.
func Load(ctx context.Context, c *Collector, rootID int64, limit int) (*Thread, error) {
	flat, cerr := c.Collect(ctx, rootID, limit)
	if len(flat) == 0 {
		return nil, cerr
	}

	ordered, orphans := Reorder(flat)
	if len(orphans) > 0 {
		log.Warn("Some comments could not be placed under their parent; reading them last",
			"count", len(orphans))
	}

	t := &Thread{Nodes: ordered}
	for _, o := range orphans {
		t.Orphans = append(t.Orphans, o.ID)
	}
	t.reindex()
	if err := t.Verify(); err != nil {
		return nil, err
	}

	log.Info("Thread collected", "root", rootID, "nodes", t.Len(), "limit", limit)
	return t, cerr
}
