package main

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/onetake-ai/hackernews-watercooler/internal/voice"
)

var (
	voicesFor []string

	voicesCmd = &cobra.Command{
		Use:   "voices [QUERY]",
		Short: "List the voices available for narration",
		Long: paragraph(fmt.Sprintf("\nList the voices of your ElevenLabs account, %s by QUERY. "+
			"A voice named exactly like a commenter is always used for that commenter.", keyword("fuzzy filtered"))),
		Example: paragraph("watercooler voices\nwatercooler voices rach\nwatercooler voices --for pg --for dang"),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runVoices,
	}
)

func init() {
	voicesCmd.Flags().StringSliceVar(&voicesFor, "for", nil, "show the voice each of these authors would get")
}

func runVoices(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, withSynthesis)
	if err != nil {
		return describe(err)
	}
	defer a.Close()

	catalog, err := a.tts.ListVoices(cmd.Context())
	if err != nil {
		return describe(err)
	}

	if len(voicesFor) > 0 {
		as, err := voice.NewAssigner(catalog)
		if err != nil {
			return describe(err)
		}
		rows := make([][2]string, 0, len(voicesFor))
		for _, author := range voicesFor {
			v := as.Assign(author)
			rows = append(rows, [2]string{author, v.Name + " " + subtle(v.ID)})
		}
		fmt.Print(columns(rows))
		return nil
	}

	if len(args) == 1 {
		catalog = filterVoices(catalog, args[0])
	}
	if len(catalog) == 0 {
		fmt.Println(subtle("No matching voices."))
		return nil
	}

	rows := make([][2]string, 0, len(catalog))
	for _, v := range catalog {
		rows = append(rows, [2]string{v.Name, subtle(v.ID)})
	}
	fmt.Print(columns(rows))
	return nil
}

// filterVoices returns the voices whose names fuzzy match query, best first.
func filterVoices(catalog []voice.Voice, query string) []voice.Voice {
	names := make([]string, len(catalog))
	for i, v := range catalog {
		names[i] = v.Name
	}
	matches := fuzzy.Find(query, names)
	out := make([]voice.Voice, 0, len(matches))
	for _, m := range matches {
		out = append(out, catalog[m.Index])
	}
	return out
}

// columns aligns the first column by display width.
func columns(rows [][2]string) string {
	width := 0
	for _, r := range rows {
		width = max(width, runewidth.StringWidth(r[0]))
	}
	var b strings.Builder
	for _, r := range rows {
		b.WriteString("  ")
		b.WriteString(runewidth.FillRight(r[0], width))
		b.WriteString("  ")
		b.WriteString(r[1])
		b.WriteByte('\n')
	}
	return b.String()
}
