package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# comments to collect below the root post
limit: 100
# where the narration is written (WAV)
output: "hn-thread-audio.wav"
# play the narration when it is ready
play: false
# phrase selection seed (0 picks a new one every run)
seed: 0

hn:
  base_url: "https://hacker-news.firebaseio.com/v0"
  requests_per_second: 20
  concurrency: 8
  timeout: "10s"

elevenlabs:
  # prefer the ELEVENLABS_API_KEY environment variable or a .env file
  # api_key: ""
  model: "eleven_multilingual_v2"
  stability: 0.5
  similarity_boost: 0.75
  output_format: "pcm_44100"
  timeout: "60s"

synthesis:
  max_retries: 5
  initial_delay: "500ms"
  # silence between speakers
  silence: "400ms"

cache:
  enabled: true
  # dir: "~/.cache/watercooler/audio"
  memory_mb: 64
  disk_mb: 512
  compression_level: 3
  ttl: "168h"

# checkpoint:
#   path: "~/.local/share/watercooler/runs.db"

log:
  level: "info"

# phrase pools; {user} is replaced by the speaker or the replied-to author
# phrases:
#   first_time: ["Hey, {user} here."]
#   returning: ["Hey, it's {user} again."]
#   reply: ["Replying to {user}."]
#   quote_intro: ["Quote:"]
#   quote_ending: ["End quote."]
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the watercooler config file",
	Long:    paragraph(fmt.Sprintf("\n%s the watercooler config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("watercooler config\nwatercooler config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Watercooler", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
