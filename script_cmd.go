package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/onetake-ai/hackernews-watercooler/internal/hn"
	"github.com/onetake-ai/hackernews-watercooler/internal/narration"
	"github.com/onetake-ai/hackernews-watercooler/internal/script"
)

var (
	scriptFormat     string
	scriptWithSource bool

	scriptCmd = &cobra.Command{
		Use:   "script [URL|ID]",
		Short: "Print what would be said, without synthesizing audio",
		Long: paragraph(fmt.Sprintf("\nPrint the %s of a thread as Markdown, HTML or YAML. "+
			"Voices are listed when an ElevenLabs key is configured.", keyword("narration script"))),
		Example: paragraph("watercooler script 8863\nwatercooler script 8863 --format yaml --with-source > script.yml"),
		Args:    cobra.ExactArgs(1),
		RunE:    runScript,
	}
)

func init() {
	scriptCmd.Flags().StringVarP(&scriptFormat, "format", "f", "md", "output format: md, html or yaml")
	scriptCmd.Flags().BoolVar(&scriptWithSource, "with-source", false, "include each comment's original text")
	scriptCmd.Flags().IntP("limit", "n", 0, "maximum number of comments to include")
	scriptCmd.Flags().Uint64("seed", 0, "phrase selection seed (0 picks one)")
}

func runScript(cmd *cobra.Command, args []string) error {
	switch scriptFormat {
	case "md", "html", "yaml":
	default:
		return fmt.Errorf("unknown format %q: use md, html or yaml", scriptFormat)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	itemID, err := hn.ParseItemID(args[0])
	if err != nil {
		return err //nolint:wrapcheck
	}
	limit, _ := cmd.Flags().GetInt("limit")
	if !cmd.Flags().Changed("limit") {
		limit = cfg.Limit
	}
	seed, _ := cmd.Flags().GetUint64("seed")
	if seed == 0 {
		seed = cfg.Seed
	}
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) //nolint:gosec
	}

	ctx, cancel := interruptible(cmd.Context())
	defer cancel()

	var opts []appOption
	if cfg.RequireAPIKey() == nil {
		opts = append(opts, withSynthesis)
	}
	a, err := newApp(cfg, opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.collect(ctx, itemID, limit)
	if err != nil {
		return describe(err)
	}

	sopts := script.Options{WithSource: scriptWithSource, URL: hn.ItemURL(itemID)}
	if a.tts != nil {
		as, err := a.voices(ctx, nil)
		if err != nil {
			log.Warn("Listing without voices", "err", err)
		} else {
			sopts.Voices = as
		}
	}

	s, err := script.Build(t, narration.NewSeededComposer(cfg.Phrases, seed), sopts)
	if err != nil {
		return err //nolint:wrapcheck
	}

	var out string
	switch scriptFormat {
	case "html":
		out, err = s.HTML()
	case "yaml":
		out, err = s.YAML()
	default:
		out, err = renderMarkdown(s.Markdown())
	}
	if err != nil {
		return err //nolint:wrapcheck
	}
	_, err = fmt.Fprint(os.Stdout, out)
	return err //nolint:wrapcheck
}

// renderMarkdown styles md for the terminal, and leaves it as is when
// stdout is redirected.
func renderMarkdown(md string) (string, error) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return md, nil
	}
	width := 80
	if w, _, err := term.GetSize(fd); err == nil && w > 0 {
		width = min(w, 120)
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("unable to create renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("unable to render markdown: %w", err)
	}
	return out, nil
}
