// Package main provides the entry point for the watercooler CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/onetake-ai/hackernews-watercooler/internal/config"
	"github.com/onetake-ai/hackernews-watercooler/internal/errdefs"
	"github.com/onetake-ai/hackernews-watercooler/internal/hn"
	"github.com/onetake-ai/hackernews-watercooler/internal/synth"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	debug      bool
	noTUI      bool
	copyLinks  bool

	rootCmd = &cobra.Command{
		Use:   "watercooler [URL|ID]",
		Short: "Turn a Hacker News thread into a multi-voice audio narration",
		Long: paragraph(
			fmt.Sprintf("\nTurn a Hacker News thread into %s, one voice per commenter.", keyword("a spoken conversation")),
		),
		Example: paragraph("watercooler https://news.ycombinator.com/item?id=8863\nwatercooler 8863 --limit 30 --play"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.ExactArgs(1),
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return readConfigFlag()
		},
		RunE: execute,
	}
)

// readConfigFlag switches to an explicitly named config file.
func readConfigFlag() error {
	if configFile == "" {
		return nil
	}
	viper.SetConfigFile(configFile)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("unable to read config file %s: %w", configFile, err)
	}
	log.Debug("Using configuration file", "path", configFile)
	return nil
}

// loadConfig decodes, validates and applies the configuration.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return cfg, err //nolint:wrapcheck
	}
	setLogLevel(cfg.Log.Level)
	return cfg, nil
}

func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}

func execute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	itemID, err := hn.ParseItemID(args[0])
	if err != nil {
		return err //nolint:wrapcheck
	}

	ctx, cancel := interruptible(cmd.Context())
	defer cancel()

	a, err := newApp(cfg, withSynthesis, withCheckpoints)
	if err != nil {
		return err
	}
	defer a.Close()

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) //nolint:gosec
	}

	res, err := runWithProgress(ctx, cancel, hn.ItemURL(itemID),
		func(ctx context.Context, obs synth.Observer, stage func(string)) (*narrationResult, error) {
			stage("Collecting comments")
			t, err := a.collect(ctx, itemID, cfg.Limit)
			if err != nil {
				return nil, err //nolint:wrapcheck
			}

			stage("Loading voices")
			voices, err := a.voices(ctx, nil)
			if err != nil {
				return nil, err
			}

			runID, err := a.store.CreateRun(ctx, itemID, t, seed, cfg.Output)
			if err != nil {
				return nil, err //nolint:wrapcheck
			}
			log.Info("Run started", "run", runID, "nodes", t.Len(), "authors", len(t.Authors()))

			o, err := a.orchestrator(t, voices, seed, runID, obs)
			if err != nil {
				return nil, err
			}
			stage("Synthesizing " + t.Root().Title)
			if err := o.Run(ctx); err != nil {
				return nil, resumable(runID, a.salvage(o, cfg.Output), err)
			}
			return a.finish(o, t.Root().Title, cfg.Output)
		})
	if err != nil {
		return describe(err)
	}

	return a.deliver(ctx, res, cfg.Play, copyLinks)
}

// describe adds a hint for failures the user can fix.
func describe(err error) error {
	switch errdefs.CodeOf(err) {
	case errdefs.CodeAuth:
		return fmt.Errorf("%w\n\n  %s", err, subtle("check ELEVENLABS_API_KEY"))
	case errdefs.CodeSourceUnavailable:
		return fmt.Errorf("%w\n\n  %s", err, subtle("is the item id a story that still exists?"))
	case errdefs.CodeEmptyCatalog:
		return fmt.Errorf("%w\n\n  %s", err, subtle("add at least one voice to your ElevenLabs account"))
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("interrupted: %w", err)
	}
	return err
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log debug messages")
	rootCmd.PersistentFlags().BoolVar(&noTUI, "no-tui", false, "report progress as log lines")
	rootCmd.PersistentFlags().StringP("output", "o", "", "write the narration to this WAV file")
	rootCmd.PersistentFlags().BoolP("play", "p", false, "play the narration when it is ready")
	rootCmd.PersistentFlags().BoolVar(&copyLinks, "copy-links", false, "copy the links shared in the thread to the clipboard")
	rootCmd.Flags().IntP("limit", "n", 0, "maximum number of comments to narrate")
	rootCmd.Flags().Uint64("seed", 0, "phrase selection seed (0 picks one)")

	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("play", rootCmd.PersistentFlags().Lookup("play"))
	_ = viper.BindPFlag("limit", rootCmd.Flags().Lookup("limit"))
	_ = viper.BindPFlag("seed", rootCmd.Flags().Lookup("seed"))

	config.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(configCmd, manCmd, resumeCmd, scriptCmd, voicesCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, config.AppName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, config.AppName)}, dirs...)
	}

	if c := os.Getenv("WATERCOOLER_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(config.AppName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(config.AppName)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], config.AppName+".yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
		return
	}
	viper.SetConfigFile(configFile)
}
