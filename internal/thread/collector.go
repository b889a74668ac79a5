package thread

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/onetake-ai/hackernews-watercooler/internal/errdefs"
)

// DefaultConcurrency bounds the number of fetches in flight within one level.
const DefaultConcurrency = 8

// Collector walks a discussion tree level by level. All children of the
// current frontier are fetched concurrently; the next level starts only
// once the current one has drained.
type Collector struct {
	source      Source
	concurrency int
}

// Option configures a Collector.
type Option func(*Collector)

// WithConcurrency sets the maximum number of concurrent fetches per level.
func WithConcurrency(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// NewCollector creates a collector reading from src.
func NewCollector(src Source, opts ...Option) *Collector {
	c := &Collector{
		source:      src,
		concurrency: DefaultConcurrency,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type childRef struct {
	id        int64
	requester int64
}

// Collect fetches the root and up to limit accepted comments beneath it.
// The result is in collection order with the root first; use Reorder to
// obtain reading order.
//
// Only a missing or untitled root is an error. Comments that fail to fetch,
// or are deleted, dead, flagged or empty, are dropped with their subtree.
// On cancellation the nodes accepted so far are returned with the error.
func (c *Collector) Collect(ctx context.Context, rootID int64, limit int) ([]*Node, error) {
	if limit < 0 {
		limit = 0
	}

	rootItem, err := c.source.Get(ctx, rootID)
	if err != nil {
		return nil, errdefs.New(errdefs.CodeSourceUnavailable, fmt.Sprintf("fetch root %d", rootID), err)
	}
	if rootItem == nil || rootItem.Title == "" {
		return nil, errdefs.New(errdefs.CodeSourceUnavailable, fmt.Sprintf("root %d not found or has no title", rootID), nil)
	}

	root := newNode(rootItem, 0, 0)
	root.IsRoot = true

	nodes := []*Node{root}
	depth := map[int64]int{root.ID: 0}
	frontier := []*Item{rootItem}
	accepted := 0

	for level := 1; len(frontier) > 0 && accepted < limit; level++ {
		var pending []childRef
		for _, parent := range frontier {
			for _, kid := range parent.Kids {
				pending = append(pending, childRef{id: kid, requester: parent.ID})
			}
		}

		var next []*Item
		for len(pending) > 0 && accepted < limit {
			// Never issue more fetches than there is room left, so nothing
			// is requested once the limit is reached.
			n := min(limit-accepted, len(pending))
			batch := pending[:n]
			pending = pending[n:]

			items, err := c.fetchLevel(ctx, batch)
			for i, it := range items {
				if it == nil {
					continue
				}
				if _, dup := depth[it.ID]; dup {
					log.Debug("Skipping duplicate comment", "id", it.ID)
					continue
				}

				parentID := batch[i].requester
				if it.Parent != 0 {
					parentID = it.Parent
				}
				d, ok := depth[parentID]
				if !ok {
					d = depth[batch[i].requester]
				}

				node := newNode(it, parentID, d+1)
				depth[node.ID] = node.Depth
				nodes = append(nodes, node)
				next = append(next, it)
				accepted++
			}
			if err != nil {
				return nodes, errdefs.New(errdefs.CodeCanceled, "collection aborted", err)
			}
		}

		log.Debug("Collected level", "level", level, "accepted", accepted, "limit", limit)
		frontier = next
	}

	return nodes, nil
}

// fetchLevel fetches every ref concurrently and returns the accepted items
// aligned with refs; excluded or failed entries are nil. The returned error
// is non-nil only when ctx was canceled.
func (c *Collector) fetchLevel(ctx context.Context, refs []childRef) ([]*Item, error) {
	items := make([]*Item, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, ref := range refs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			it, err := c.source.Get(gctx, ref.id)
			if err != nil {
				if gctx.Err() == nil {
					ferr := errdefs.New(errdefs.CodeTreeFetch, "fetch comment", err).WithContext("id", ref.id)
					log.Warn("Dropping comment", "id", ref.id, "parent", ref.requester, "err", ferr)
				}
				return nil
			}
			if it == nil {
				log.Debug("Comment not found", "id", ref.id)
				return nil
			}
			if it.Excluded() {
				log.Debug("Excluding comment and its replies", "id", it.ID,
					"deleted", it.Deleted, "dead", it.Dead, "flagged", it.Flagged)
				return nil
			}
			items[i] = it
			return nil
		})
	}

	_ = g.Wait()
	return items, ctx.Err()
}
