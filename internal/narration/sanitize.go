package narration

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	markerOpen  = '\uE000'
	markerClose = '\uE001'
)

var (
	ugcPolicy = bluemonday.UGCPolicy()

	citationPattern = regexp.MustCompile(`\[\d+\]`)
	bareURLPattern  = regexp.MustCompile(`https?://[^\s<>"]+`)
	markerPattern   = regexp.MustCompile(`\x{E000}(\d+)\x{E001}`)
)

// Link is a hyperlink found in a comment body.
type Link struct {
	URL  string
	Text string
}

// sanitize turns comment HTML into plain text. Paragraph breaks become
// newlines, entities are decoded, citation markers such as [3] are removed
// and each link is replaced by a marker indexing the returned slice.
func sanitize(raw string) (string, []Link) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}

	z := html.NewTokenizer(strings.NewReader(ugcPolicy.Sanitize(raw)))

	var (
		b        strings.Builder
		links    []Link
		open     *Link
		linkText strings.Builder
	)
	closeLink := func() {
		open.Text = normalizeSpace(linkText.String())
		if open.Text == "" {
			open.Text = open.URL
		}
		writeMarker(&b, len(links))
		links = append(links, *open)
		open = nil
	}

loop:
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a malformed tail; either way keep what we have.
			break loop

		case html.TextToken:
			text := stripMarkers(string(z.Text()))
			if open != nil {
				linkText.WriteString(text)
				continue
			}
			writeText(&b, text, &links)

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch atom.Lookup(name) {
			case atom.P, atom.Br, atom.Div, atom.Li, atom.Pre, atom.Blockquote:
				b.WriteByte('\n')
			case atom.A:
				if open != nil {
					closeLink()
				}
				href := ""
				for hasAttr {
					var key, val []byte
					key, val, hasAttr = z.TagAttr()
					if string(key) == "href" {
						href = string(val)
					}
				}
				if href != "" {
					open = &Link{URL: href}
					linkText.Reset()
				}
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.A:
				if open != nil {
					closeLink()
				}
			case atom.P, atom.Div, atom.Li, atom.Pre, atom.Blockquote:
				b.WriteByte('\n')
			}
		}
	}
	if open != nil {
		closeLink()
	}

	text := citationPattern.ReplaceAllString(b.String(), "")
	return normalizeLines(text), links
}

// writeText appends text, turning bare URLs into link markers.
func writeText(b *strings.Builder, text string, links *[]Link) {
	last := 0
	for _, m := range bareURLPattern.FindAllStringIndex(text, -1) {
		b.WriteString(text[last:m[0]])
		url := strings.TrimRight(text[m[0]:m[1]], ".,;:!?)")
		writeMarker(b, len(*links))
		*links = append(*links, Link{URL: url, Text: url})
		last = m[0] + len(url)
	}
	b.WriteString(text[last:])
}

func writeMarker(b *strings.Builder, i int) {
	fmt.Fprintf(b, "%c%d%c", markerOpen, i, markerClose)
}

func stripMarkers(s string) string {
	return strings.Map(func(r rune) rune {
		if r == markerOpen || r == markerClose {
			return -1
		}
		return r
	}, s)
}

// normalizeLines collapses whitespace inside each line and drops blank lines.
func normalizeLines(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = normalizeSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func looksLikeURL(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "://") || strings.HasPrefix(s, "www.")
}
