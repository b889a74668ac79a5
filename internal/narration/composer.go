// Package narration turns thread nodes into speakable text.
package narration

import (
	"html"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/onetake-ai/hackernews-watercooler/internal/thread"
	"github.com/onetake-ai/hackernews-watercooler/internal/voice"
)

// Rand picks phrase variants. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// Composer builds the narration text for a node. A Composer is not safe
// for concurrent use.
type Composer struct {
	phrases Phrases
	rng     Rand
}

// NewComposer creates a composer. Empty pools in phrases fall back to the
// defaults; a nil rng is seeded from the clock.
func NewComposer(phrases Phrases, rng Rand) *Composer {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return &Composer{phrases: phrases.WithDefaults(), rng: rng}
}

// NewSeededComposer creates a composer whose phrase choices are fully
// determined by seed.
func NewSeededComposer(phrases Phrases, seed uint64) *Composer {
	return NewComposer(phrases, rand.New(rand.NewPCG(seed, seed)))
}

// Compose returns the narration for n and updates rc. Nodes whose text
// sanitizes to nothing yield "" and leave rc untouched apart from links.
func (c *Composer) Compose(n *thread.Node, rc *RunContext) string {
	body := c.body(n, rc)
	if body == "" {
		return ""
	}

	var parts []string
	if intro := c.replyIntro(n, rc); intro != "" {
		parts = append(parts, intro)
	}
	if intro := c.speakerIntro(n, rc); intro != "" {
		parts = append(parts, intro)
	}
	parts = append(parts, body)

	rc.advance(n)
	return strings.Join(parts, " ")
}

// Replay advances rc over nodes[0..upto] without choosing phrases, so a
// resumed run continues with the same speaker history and shared links.
func (c *Composer) Replay(rc *RunContext, upto int) {
	if rc.thread == nil {
		return
	}
	quiet := &Composer{phrases: c.phrases, rng: firstRand{}}
	for i := 0; i <= upto && i < len(rc.thread.Nodes); i++ {
		n := rc.thread.Nodes[i]
		if quiet.body(n, rc) != "" {
			rc.advance(n)
		}
	}
}

type firstRand struct{}

func (firstRand) IntN(int) int { return 0 }

func (c *Composer) body(n *thread.Node, rc *RunContext) string {
	text, links := sanitize(n.Text)
	text = c.replaceLinks(text, links, n, rc)
	text = c.frameQuotes(text)
	text = strings.Join(strings.Fields(text), " ")

	if !n.IsRoot {
		return text
	}
	title := strings.TrimSpace(html.UnescapeString(n.Title))
	if title == "" {
		return text
	}
	if !strings.ContainsAny(title[len(title)-1:], ".?!") {
		title += "."
	}
	if text == "" {
		return title
	}
	return title + " " + text
}

func (c *Composer) replyIntro(n *thread.Node, rc *RunContext) string {
	if rc.thread == nil || n.IsRoot || n.ParentID == 0 || n.ParentID == rc.lastParent {
		return ""
	}
	if root := rc.thread.Root(); root != nil && root.ID == n.ParentID {
		return ""
	}
	parent, ok := rc.thread.Lookup(n.ParentID)
	if !ok {
		return ""
	}
	return c.pick(c.phrases.Reply, parent.Author)
}

func (c *Composer) speakerIntro(n *thread.Node, rc *RunContext) string {
	if last, ok := rc.LastSpeaker(); ok && last == n.Author {
		return ""
	}
	h := rc.history
	if len(h.Appearances(n.Author)) <= 1 || !h.Spoken(n.Author) {
		return c.pick(c.phrases.FirstTime, n.Author)
	}
	return c.pick(c.phrases.Returning, n.Author)
}

// replaceLinks swaps link markers for spoken phrases. The first link uses
// the first pool, the second link the second pool, and any further link is
// read as its visible text unless that text is itself a URL.
func (c *Composer) replaceLinks(text string, links []Link, n *thread.Node, rc *RunContext) string {
	for _, l := range links {
		rc.recordLink(l, n.Author, n.ID)
	}
	return markerPattern.ReplaceAllStringFunc(text, func(m string) string {
		i, err := strconv.Atoi(strings.Trim(m, string([]rune{markerOpen, markerClose})))
		if err != nil || i >= len(links) {
			return ""
		}
		l := links[i]
		switch i {
		case 0:
			return pickFor(c.phrases.LinkFirst, l.URL)
		case 1:
			return pickFor(c.phrases.LinkSecond, l.URL)
		}
		if looksLikeURL(l.Text) {
			return ""
		}
		return l.Text
	})
}

// frameQuotes merges each run of lines starting with '>' into one spoken
// span wrapped by a quote intro and ending.
func (c *Composer) frameQuotes(text string) string {
	var (
		out     []string
		quote   []string
		inQuote bool
	)
	flush := func() {
		if inQuote && len(quote) > 0 {
			out = append(out, c.pick(c.phrases.QuoteIntro, "")+" "+
				strings.Join(quote, " ")+" "+c.pick(c.phrases.QuoteEnding, ""))
		}
		quote, inQuote = nil, false
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, ">") {
			inQuote = true
			if q := strings.TrimSpace(strings.TrimLeft(trimmed, "> ")); q != "" {
				quote = append(quote, q)
			}
			continue
		}
		flush()
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	flush()
	return strings.Join(out, "\n")
}

func (c *Composer) pick(pool []string, user string) string {
	if len(pool) == 0 {
		return ""
	}
	return render(pool[c.rng.IntN(len(pool))], user)
}

// pickFor selects a template deterministically from key.
func pickFor(pool []string, key string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[voice.Hash(key)%int64(len(pool))]
}
