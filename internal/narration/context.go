package narration

import (
	"github.com/onetake-ai/hackernews-watercooler/internal/thread"
)

// SharedLink is a URL mentioned during the run and who mentioned it.
type SharedLink struct {
	URL     string `json:"url" yaml:"url"`
	Text    string `json:"text,omitempty" yaml:"text,omitempty"`
	Speaker string `json:"speaker" yaml:"speaker"`
	NodeID  int64  `json:"node_id" yaml:"node_id"`
}

// SpeakerHistory tracks, per author, where they appear in the thread and
// how many of those appearances have been narrated so far.
type SpeakerHistory struct {
	appearances map[string][]int64
	spoken      map[string]int
}

func newSpeakerHistory(t *thread.Thread) *SpeakerHistory {
	h := &SpeakerHistory{
		appearances: make(map[string][]int64),
		spoken:      make(map[string]int),
	}
	if t == nil {
		return h
	}
	for _, n := range t.Nodes {
		h.appearances[n.Author] = append(h.appearances[n.Author], n.ID)
	}
	return h
}

// Appearances returns the IDs of author's nodes in thread order.
func (h *SpeakerHistory) Appearances(author string) []int64 {
	return h.appearances[author]
}

// Spoken reports whether author has been narrated at least once.
func (h *SpeakerHistory) Spoken(author string) bool {
	return h.spoken[author] > 0
}

func (h *SpeakerHistory) record(author string) {
	h.spoken[author]++
}

// RunContext is the mutable state carried across nodes within one run.
// It is not safe for concurrent use.
type RunContext struct {
	thread  *thread.Thread
	history *SpeakerHistory

	lastSpeaker string
	hasSpoken   bool
	lastParent  int64

	links []SharedLink
	seen  map[string]bool
}

// NewRunContext returns a fresh context for narrating t.
func NewRunContext(t *thread.Thread) *RunContext {
	return &RunContext{
		thread:  t,
		history: newSpeakerHistory(t),
		seen:    make(map[string]bool),
	}
}

// History returns the speaker history.
func (rc *RunContext) History() *SpeakerHistory { return rc.history }

// LastSpeaker returns the author of the most recently narrated node.
func (rc *RunContext) LastSpeaker() (string, bool) {
	return rc.lastSpeaker, rc.hasSpoken
}

// Links returns the links shared so far, deduplicated by URL.
func (rc *RunContext) Links() []SharedLink {
	return append([]SharedLink(nil), rc.links...)
}

func (rc *RunContext) recordLink(l Link, speaker string, nodeID int64) {
	if l.URL == "" || rc.seen[l.URL] {
		return
	}
	rc.seen[l.URL] = true
	rc.links = append(rc.links, SharedLink{
		URL:     l.URL,
		Text:    l.Text,
		Speaker: speaker,
		NodeID:  nodeID,
	})
}

func (rc *RunContext) advance(n *thread.Node) {
	rc.lastSpeaker = n.Author
	rc.hasSpoken = true
	rc.lastParent = n.ParentID
	rc.history.record(n.Author)
}
