// Package script renders the narration of a thread as a readable document,
// without synthesizing any audio.
package script

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/onetake-ai/hackernews-watercooler/internal/narration"
	"github.com/onetake-ai/hackernews-watercooler/internal/thread"
	"github.com/onetake-ai/hackernews-watercooler/internal/voice"
)

// Line is the narration of one node.
type Line struct {
	NodeID int64  `yaml:"id"`
	Author string `yaml:"author"`
	Voice  string `yaml:"voice,omitempty"`
	Depth  int    `yaml:"depth"`
	Text   string `yaml:"text"`
	Source string `yaml:"source,omitempty"`
}

// Script is the full narration of a thread in reading order.
type Script struct {
	Title   string                 `yaml:"title"`
	URL     string                 `yaml:"url,omitempty"`
	Lines   []Line                 `yaml:"lines"`
	Skipped []int64                `yaml:"skipped,omitempty"`
	Links   []narration.SharedLink `yaml:"links,omitempty"`
}

// Options controls what Build includes.
type Options struct {
	// Voices, when set, names the voice each line would be spoken with.
	Voices *voice.Assigner
	// WithSource adds each comment's own text, converted to Markdown.
	WithSource bool
	URL        string
}

var sourceConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
	),
)

// Build composes every node of t in order. Nodes that narrate to nothing
// are listed in Skipped.
func Build(t *thread.Thread, c *narration.Composer, opts Options) (*Script, error) {
	s := &Script{URL: opts.URL}
	if root := t.Root(); root != nil {
		s.Title = root.Title
	}

	rc := narration.NewRunContext(t)
	for _, n := range t.Nodes {
		text := c.Compose(n, rc)
		if text == "" {
			s.Skipped = append(s.Skipped, n.ID)
			continue
		}
		l := Line{NodeID: n.ID, Author: n.Author, Depth: n.Depth, Text: text}
		if opts.Voices != nil {
			l.Voice = opts.Voices.Assign(n.Author).Name
		}
		if opts.WithSource && n.Text != "" {
			md, err := sourceConverter.ConvertString(n.Text)
			if err != nil {
				return nil, fmt.Errorf("unable to convert comment %d: %w", n.ID, err)
			}
			l.Source = strings.TrimSpace(md)
		}
		s.Lines = append(s.Lines, l)
	}
	s.Links = rc.Links()
	return s, nil
}

// Markdown renders s as a Markdown document. Replies are indented by
// blockquote depth.
func (s *Script) Markdown() string {
	var b strings.Builder
	title := s.Title
	if title == "" {
		title = "Untitled thread"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if s.URL != "" {
		fmt.Fprintf(&b, "<%s>\n\n", s.URL)
	}

	for _, l := range s.Lines {
		quote := strings.Repeat("> ", min(l.Depth, 6))
		speaker := "**" + l.Author + "**"
		if l.Voice != "" {
			speaker += " _(" + l.Voice + ")_"
		}
		fmt.Fprintf(&b, "%s%s\n%s\n", quote, speaker, strings.TrimRight(quote, " "))
		for _, para := range strings.Split(l.Text, "\n") {
			if para = strings.TrimSpace(para); para != "" {
				fmt.Fprintf(&b, "%s%s\n", quote, para)
			}
		}
		if l.Source != "" {
			fmt.Fprintf(&b, "%s\n", strings.TrimRight(quote, " "))
			for _, para := range strings.Split(l.Source, "\n") {
				fmt.Fprintf(&b, "%s> %s\n", quote, para)
			}
		}
		b.WriteString("\n")
	}

	if len(s.Links) > 0 {
		b.WriteString("## Shared links\n\n")
		for _, l := range s.Links {
			text := l.Text
			if text == "" {
				text = l.URL
			}
			fmt.Fprintf(&b, "- [%s](%s) (%s)\n", text, l.URL, l.Speaker)
		}
	}
	return b.String()
}

// HTML renders the Markdown form of s as an HTML fragment.
func (s *Script) HTML() (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Linkify))
	var buf bytes.Buffer
	if err := md.Convert([]byte(s.Markdown()), &buf); err != nil {
		return "", fmt.Errorf("unable to render html: %w", err)
	}
	return buf.String(), nil
}

// YAML encodes s.
func (s *Script) YAML() (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return "", fmt.Errorf("unable to encode script: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("unable to encode script: %w", err)
	}
	return buf.String(), nil
}
