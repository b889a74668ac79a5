package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/onetake-ai/hackernews-watercooler/internal/checkpoint"
	"github.com/onetake-ai/hackernews-watercooler/internal/synth"
)

var (
	listRuns bool

	resumeCmd = &cobra.Command{
		Use:   "resume [RUN-ID]",
		Short: "Continue a narration that stopped early",
		Long: paragraph(fmt.Sprintf("\n%s a run from the comment that failed. Audio already synthesized is kept, "+
			"and every speaker keeps their voice. Without an id the most recent unfinished run is used.", keyword("Resume"))),
		Example: paragraph("watercooler resume\nwatercooler resume --list\nwatercooler resume 0190f5c2-…"),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runResume,
	}
)

func init() {
	resumeCmd.Flags().BoolVarP(&listRuns, "list", "l", false, "list recent runs")
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := interruptible(cmd.Context())
	defer cancel()

	if listRuns {
		a, err := newApp(cfg, withCheckpoints)
		if err != nil {
			return err
		}
		defer a.Close()
		return printRuns(ctx, a.store)
	}

	a, err := newApp(cfg, withSynthesis, withCheckpoints)
	if err != nil {
		return err
	}
	defer a.Close()

	id := ""
	if len(args) == 1 {
		id = args[0]
	} else if id, err = a.store.LatestResumable(ctx); errors.Is(err, checkpoint.ErrNotFound) {
		return errors.New("there is no unfinished run to resume")
	} else if err != nil {
		return err //nolint:wrapcheck
	}

	run, segments, err := a.store.LoadRun(ctx, id)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return fmt.Errorf("no run with id %q (see watercooler resume --list)", id)
	}
	if err != nil {
		return err //nolint:wrapcheck
	}

	output := run.Output
	if cmd.Flags().Changed("output") {
		output = cfg.Output
	}
	log.Info("Resuming run", "run", run.ID, "state", run.State, "progress",
		fmt.Sprintf("%d/%d", run.Progress.Processed, run.Progress.Total))

	res, err := runWithProgress(ctx, cancel, run.Title,
		func(ctx context.Context, obs synth.Observer, stage func(string)) (*narrationResult, error) {
			stage("Loading voices")
			voices, err := a.voices(ctx, run.Voices)
			if err != nil {
				return nil, err
			}

			o, err := a.orchestrator(run.Thread, voices, run.Seed, run.ID, obs)
			if err != nil {
				return nil, err
			}
			if err := o.Restore(run.Progress, segments, run.PendingText); err != nil {
				return nil, err //nolint:wrapcheck
			}
			if run.Fault != "" {
				log.Info("Previous attempt stopped", "at", o.State(), "reason", run.Fault)
			}

			stage("Synthesizing " + run.Title)
			if err := o.Resume(ctx); err != nil {
				return nil, resumable(run.ID, a.salvage(o, output), err)
			}
			return a.finish(o, run.Title, output)
		})
	if err != nil {
		return describe(err)
	}

	return a.deliver(ctx, res, cfg.Play, copyLinks)
}

const titleWidth = 48

func printRuns(ctx context.Context, store *checkpoint.Store) error {
	runs, err := store.ListRuns(ctx, 20)
	if err != nil {
		return err //nolint:wrapcheck
	}
	if len(runs) == 0 {
		fmt.Println(subtle("No runs yet."))
		return nil
	}

	for _, r := range runs {
		title := runewidth.Truncate(r.Title, titleWidth, "…")
		title += strings.Repeat(" ", titleWidth-runewidth.StringWidth(title))

		state := r.State.Kind.String()
		if r.Resumable() {
			state = warning(state)
		}
		fmt.Fprintf(os.Stdout, "%s  %s  %s  %d/%d  %s\n",
			keyword(r.ID), title, state,
			r.Progress.Processed, r.Progress.Total,
			subtle(humanize.Time(r.Updated)))
	}
	return nil
}
