package narration

import (
	"strings"
	"testing"

	"github.com/onetake-ai/hackernews-watercooler/internal/thread"
)

func mustThread(t *testing.T, nodes ...*thread.Node) *thread.Thread {
	t.Helper()
	th, err := thread.NewThread(nodes)
	if err != nil {
		t.Fatalf("NewThread: %v", err)
	}
	return th
}

func root(id int64, by, title, text string) *thread.Node {
	return &thread.Node{ID: id, Author: by, Title: title, Text: text, IsRoot: true}
}

func reply(id, parent int64, by, text string) *thread.Node {
	return &thread.Node{ID: id, ParentID: parent, Author: by, Text: text, Depth: 1}
}

func testComposer() *Composer {
	return NewComposer(DefaultPhrases(), firstRand{})
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		want      string
		wantLinks int
	}{
		{"empty", "", "", 0},
		{"paragraphs", "first<p>second", "first\nsecond", 0},
		{"entities", "it&#x27;s &quot;fine&quot; &amp; good", `it's "fine" & good`, 0},
		{"citations", "as shown [1] and [23] here", "as shown and here", 0},
		{"whitespace", "  lots \t of  space  ", "lots of space", 0},
		{"tags stripped", "<i>italic</i> and <code>code</code>", "italic and code", 0},
		{"script dropped", "safe<script>alert(1)</script>", "safe", 0},
		{"anchor", `see <a href="https://example.com">this</a>`, "see \uE0000\uE001", 1},
		{"bare url", "go to https://example.com/a.", "go to \uE0000\uE001.", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, links := sanitize(tt.in)
			if got != tt.want {
				t.Errorf("sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if len(links) != tt.wantLinks {
				t.Errorf("sanitize(%q) links = %d, want %d", tt.in, len(links), tt.wantLinks)
			}
		})
	}
}

func TestComposeExampleThread(t *testing.T) {
	th := mustThread(t,
		root(1, "alice", "Show HN: A thing", "I built it"),
		reply(2, 1, "bob", "Nice"),
		reply(3, 1, "alice", "Thanks"),
	)
	c := testComposer()
	rc := NewRunContext(th)

	want := []string{
		"Hey, alice here. Show HN: A thing. I built it",
		"Hey, bob here. Nice",
		"Hey, it's alice again. Thanks",
	}
	for i, n := range th.Nodes {
		if got := c.Compose(n, rc); got != want[i] {
			t.Errorf("Compose(node %d) = %q, want %q", n.ID, got, want[i])
		}
	}
}

func TestComposeSameSpeakerHasNoIntro(t *testing.T) {
	th := mustThread(t,
		root(1, "alice", "Ask HN: Why?", ""),
		reply(2, 1, "alice", "Adding context"),
	)
	c := testComposer()
	rc := NewRunContext(th)

	if got := c.Compose(th.Nodes[0], rc); got != "Hey, alice here. Ask HN: Why?" {
		t.Errorf("root = %q", got)
	}
	if got := c.Compose(th.Nodes[1], rc); got != "Adding context" {
		t.Errorf("follow-up = %q, want no intro", got)
	}
}

func TestComposeReplyPhrase(t *testing.T) {
	th := mustThread(t,
		root(1, "alice", "Title", "body"),
		reply(2, 1, "bob", "top level"),
		reply(3, 2, "carol", "nested"),
		reply(4, 2, "dave", "also nested"),
		reply(5, 1, "erin", "another top level"),
		reply(6, 99, "frank", "parent never fetched"),
	)
	c := testComposer()
	rc := NewRunContext(th)

	var got []string
	for _, n := range th.Nodes {
		got = append(got, c.Compose(n, rc))
	}

	if strings.HasPrefix(got[1], "Replying") {
		t.Errorf("reply to root should not announce parent: %q", got[1])
	}
	if want := "Replying to bob. Hey, carol here. nested"; got[2] != want {
		t.Errorf("nested = %q, want %q", got[2], want)
	}
	if want := "Hey, dave here. also nested"; got[3] != want {
		t.Errorf("sibling with same parent = %q, want %q", got[3], want)
	}
	if strings.HasPrefix(got[4], "Replying") {
		t.Errorf("reply to root should not announce parent: %q", got[4])
	}
	if want := "Hey, frank here. parent never fetched"; got[5] != want {
		t.Errorf("missing parent = %q, want %q", got[5], want)
	}
}

func TestComposeQuote(t *testing.T) {
	th := mustThread(t,
		root(1, "alice", "Title", ""),
		reply(2, 1, "bob", "&gt; first quoted line\n<p>&gt; second quoted line<p>My answer"),
	)
	c := testComposer()
	rc := NewRunContext(th)
	c.Compose(th.Nodes[0], rc)

	got := c.Compose(th.Nodes[1], rc)
	want := "Hey, bob here. Quote: first quoted line second quoted line End quote. My answer"
	if got != want {
		t.Errorf("Compose = %q, want %q", got, want)
	}
	if strings.Contains(got, ">") {
		t.Errorf("quote marker left in %q", got)
	}
}

func TestComposeQuoteRoundTrip(t *testing.T) {
	phrases := DefaultPhrases()
	for seed := uint64(0); seed < 20; seed++ {
		c := NewSeededComposer(phrases, seed)
		th := mustThread(t, root(1, "alice", "T", ""), reply(2, 1, "bob", "&gt; quoted text"))
		rc := NewRunContext(th)
		c.Compose(th.Nodes[0], rc)
		got := c.Compose(th.Nodes[1], rc)

		if strings.Contains(got, ">") {
			t.Fatalf("seed %d: residual quote marker in %q", seed, got)
		}
		var intro, ending bool
		for _, p := range phrases.QuoteIntro {
			intro = intro || strings.Contains(got, p+" quoted text")
		}
		for _, p := range phrases.QuoteEnding {
			ending = ending || strings.HasSuffix(got, "quoted text "+p)
		}
		if !intro || !ending {
			t.Errorf("seed %d: quote not framed in %q", seed, got)
		}
	}
}

func TestComposeLinks(t *testing.T) {
	text := `Read <a href="https://a.example/one">the paper</a>, ` +
		`<a href="https://b.example/two">the code</a> and ` +
		`<a href="https://c.example/three">https://c.example/three</a>.`
	th := mustThread(t, root(1, "alice", "T", ""), reply(2, 1, "bob", text))
	c := testComposer()
	rc := NewRunContext(th)
	c.Compose(th.Nodes[0], rc)
	got := c.Compose(th.Nodes[1], rc)

	phrases := DefaultPhrases()
	templated := 0
	for _, p := range append(phrases.LinkFirst, phrases.LinkSecond...) {
		templated += strings.Count(got, p)
	}
	if templated != 2 {
		t.Errorf("templated link phrases = %d, want 2 in %q", templated, got)
	}
	for _, frag := range []string{"http", "example", "\uE000", "\uE001"} {
		if strings.Contains(got, frag) {
			t.Errorf("link remnant %q in %q", frag, got)
		}
	}

	links := rc.Links()
	if len(links) != 3 {
		t.Fatalf("shared links = %d, want 3", len(links))
	}
	for _, l := range links {
		if l.Speaker != "bob" || l.NodeID != 2 {
			t.Errorf("link %+v not attributed to bob", l)
		}
	}
}

func TestComposeThirdLinkKeepsVisibleText(t *testing.T) {
	text := `<a href="https://a.example">a</a> <a href="https://b.example">b</a> ` +
		`<a href="https://c.example">the docs</a>`
	th := mustThread(t, root(1, "alice", "T", text))
	rc := NewRunContext(th)
	got := testComposer().Compose(th.Nodes[0], rc)

	if !strings.HasSuffix(got, "the docs") {
		t.Errorf("Compose = %q, want third link read as its text", got)
	}
}

func TestSharedLinksAreDeduplicated(t *testing.T) {
	th := mustThread(t,
		root(1, "alice", "T", `<a href="https://x.example">x</a>`),
		reply(2, 1, "bob", `again https://x.example`),
	)
	c := testComposer()
	rc := NewRunContext(th)
	for _, n := range th.Nodes {
		c.Compose(n, rc)
	}

	links := rc.Links()
	if len(links) != 1 || links[0].Speaker != "alice" {
		t.Errorf("links = %+v, want one link by alice", links)
	}
}

func TestComposeEmptyNode(t *testing.T) {
	th := mustThread(t,
		root(1, "alice", "T", ""),
		reply(2, 1, "bob", "<p> </p>"),
		reply(3, 1, "bob", "hello"),
	)
	c := testComposer()
	rc := NewRunContext(th)
	c.Compose(th.Nodes[0], rc)

	if got := c.Compose(th.Nodes[1], rc); got != "" {
		t.Errorf("empty comment composed to %q", got)
	}
	if got := c.Compose(th.Nodes[2], rc); got != "Hey, bob here. hello" {
		t.Errorf("Compose = %q, want first-time intro after skipped node", got)
	}
}

func TestReplayMatchesLiveContext(t *testing.T) {
	th := mustThread(t,
		root(1, "alice", "T", "see https://a.example"),
		reply(2, 1, "bob", "one"),
		reply(3, 2, "carol", "two"),
		reply(4, 2, "alice", "three"),
	)
	c := testComposer()

	live := NewRunContext(th)
	for _, n := range th.Nodes[:3] {
		c.Compose(n, live)
	}

	replayed := NewRunContext(th)
	c.Replay(replayed, 2)

	if a, b := c.Compose(th.Nodes[3], live), c.Compose(th.Nodes[3], replayed); a != b {
		t.Errorf("after replay got %q, want %q", b, a)
	}
	if len(live.Links()) != len(replayed.Links()) {
		t.Errorf("links: live %d, replayed %d", len(live.Links()), len(replayed.Links()))
	}
}

func TestPhrasesWithDefaults(t *testing.T) {
	p := Phrases{FirstTime: []string{"Yo {user}."}}.WithDefaults()
	if len(p.FirstTime) != 1 || len(p.Returning) == 0 || len(p.QuoteEnding) == 0 {
		t.Errorf("WithDefaults = %+v", p)
	}

	c := NewComposer(p, firstRand{})
	th := mustThread(t, root(1, "", "T", ""))
	if got := c.Compose(th.Nodes[0], NewRunContext(th)); got != "Yo anonymous. T." {
		t.Errorf("Compose = %q", got)
	}
}
