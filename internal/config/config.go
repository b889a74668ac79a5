// Package config holds the typed runtime configuration. Values come from the
// config file and flags through viper; the API key comes from the
// environment (optionally seeded from a .env file).
package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"

	"github.com/onetake-ai/hackernews-watercooler/internal/audio"
	"github.com/onetake-ai/hackernews-watercooler/internal/cache"
	"github.com/onetake-ai/hackernews-watercooler/internal/elevenlabs"
	"github.com/onetake-ai/hackernews-watercooler/internal/hn"
	"github.com/onetake-ai/hackernews-watercooler/internal/narration"
	"github.com/onetake-ai/hackernews-watercooler/internal/synth"
)

// AppName scopes config, cache and data directories.
const AppName = "watercooler"

// Config is the complete runtime configuration.
type Config struct {
	Limit  int    `mapstructure:"limit"`
	Output string `mapstructure:"output"`
	Play   bool   `mapstructure:"play"`
	Seed   uint64 `mapstructure:"seed"`

	HN         HN                `mapstructure:"hn"`
	ElevenLabs ElevenLabs        `mapstructure:"elevenlabs"`
	Synthesis  Synthesis         `mapstructure:"synthesis"`
	Cache      Cache             `mapstructure:"cache"`
	Checkpoint Checkpoint        `mapstructure:"checkpoint"`
	Log        Log               `mapstructure:"log"`
	Phrases    narration.Phrases `mapstructure:"phrases"`
}

// HN configures the item source.
type HN struct {
	BaseURL           string        `mapstructure:"base_url"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Concurrency       int           `mapstructure:"concurrency"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// ElevenLabs configures the synthesis service.
type ElevenLabs struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	Model           string        `mapstructure:"model"`
	Stability       float64       `mapstructure:"stability"`
	SimilarityBoost float64       `mapstructure:"similarity_boost"`
	OutputFormat    string        `mapstructure:"output_format"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// Synthesis configures retries and pacing.
type Synthesis struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	Silence      time.Duration `mapstructure:"silence"`
}

// Cache configures the synthesized audio cache.
type Cache struct {
	Enabled          bool          `mapstructure:"enabled"`
	Dir              string        `mapstructure:"dir"`
	MemoryMB         int           `mapstructure:"memory_mb"`
	DiskMB           int           `mapstructure:"disk_mb"`
	CompressionLevel int           `mapstructure:"compression_level"`
	TTL              time.Duration `mapstructure:"ttl"`
}

// Checkpoint configures the run journal.
type Checkpoint struct {
	Path string `mapstructure:"path"`
}

// Log configures logging.
type Log struct {
	Level string `mapstructure:"level"`
}

// secrets are read from the environment only.
type secrets struct {
	ElevenLabsAPIKey string `env:"ELEVENLABS_API_KEY"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Limit:  100,
		Output: "hn-thread-audio.wav",
		HN: HN{
			BaseURL:           hn.DefaultBaseURL,
			RequestsPerSecond: 20,
			Concurrency:       8,
			Timeout:           10 * time.Second,
		},
		ElevenLabs: ElevenLabs{
			BaseURL:         elevenlabs.DefaultBaseURL,
			Model:           elevenlabs.DefaultModel,
			Stability:       0.5,
			SimilarityBoost: 0.75,
			OutputFormat:    elevenlabs.DefaultOutputFormat,
			Timeout:         60 * time.Second,
		},
		Synthesis: Synthesis{
			MaxRetries:   5,
			InitialDelay: 500 * time.Millisecond,
			Silence:      synth.DefaultGap,
		},
		Cache: Cache{
			Enabled:          true,
			MemoryMB:         64,
			DiskMB:           512,
			CompressionLevel: 3,
			TTL:              7 * 24 * time.Hour,
		},
		Log:     Log{Level: "info"},
		Phrases: narration.DefaultPhrases(),
	}
}

// SetDefaults registers every default with v so that config files and
// flags only need to name what they change.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("limit", d.Limit)
	v.SetDefault("output", d.Output)
	v.SetDefault("play", d.Play)
	v.SetDefault("seed", d.Seed)

	v.SetDefault("hn.base_url", d.HN.BaseURL)
	v.SetDefault("hn.requests_per_second", d.HN.RequestsPerSecond)
	v.SetDefault("hn.concurrency", d.HN.Concurrency)
	v.SetDefault("hn.timeout", d.HN.Timeout)

	v.SetDefault("elevenlabs.base_url", d.ElevenLabs.BaseURL)
	v.SetDefault("elevenlabs.model", d.ElevenLabs.Model)
	v.SetDefault("elevenlabs.stability", d.ElevenLabs.Stability)
	v.SetDefault("elevenlabs.similarity_boost", d.ElevenLabs.SimilarityBoost)
	v.SetDefault("elevenlabs.output_format", d.ElevenLabs.OutputFormat)
	v.SetDefault("elevenlabs.timeout", d.ElevenLabs.Timeout)

	v.SetDefault("synthesis.max_retries", d.Synthesis.MaxRetries)
	v.SetDefault("synthesis.initial_delay", d.Synthesis.InitialDelay)
	v.SetDefault("synthesis.silence", d.Synthesis.Silence)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.memory_mb", d.Cache.MemoryMB)
	v.SetDefault("cache.disk_mb", d.Cache.DiskMB)
	v.SetDefault("cache.compression_level", d.Cache.CompressionLevel)
	v.SetDefault("cache.ttl", d.Cache.TTL)

	v.SetDefault("checkpoint.path", "")
	v.SetDefault("log.level", d.Log.Level)
}

// Load reads v into a Config, applies the environment and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unable to decode configuration: %w", err)
	}

	// A missing .env is normal.
	if err := godotenv.Load(); err == nil {
		log.Debug("Loaded environment from .env")
	}
	s, err := env.ParseAs[secrets]()
	if err != nil {
		return cfg, fmt.Errorf("error parsing environment: %w", err)
	}
	if s.ElevenLabsAPIKey != "" {
		cfg.ElevenLabs.APIKey = s.ElevenLabsAPIKey
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate fills derived defaults and range checks every value.
func (c *Config) Validate() error {
	if c.Limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", c.Limit)
	}
	if strings.TrimSpace(c.Output) == "" {
		return fmt.Errorf("output path is required")
	}
	if ext := strings.ToLower(filepath.Ext(c.Output)); ext != ".wav" {
		return fmt.Errorf("output must be a .wav file, got %q", c.Output)
	}

	if c.HN.RequestsPerSecond <= 0 || c.HN.RequestsPerSecond > 1000 {
		return fmt.Errorf("hn.requests_per_second must be between 0 and 1000, got %g", c.HN.RequestsPerSecond)
	}
	if c.HN.Concurrency < 1 || c.HN.Concurrency > 64 {
		return fmt.Errorf("hn.concurrency must be between 1 and 64, got %d", c.HN.Concurrency)
	}

	if c.ElevenLabs.Stability < 0 || c.ElevenLabs.Stability > 1 {
		return fmt.Errorf("elevenlabs.stability must be between 0 and 1, got %g", c.ElevenLabs.Stability)
	}
	if c.ElevenLabs.SimilarityBoost < 0 || c.ElevenLabs.SimilarityBoost > 1 {
		return fmt.Errorf("elevenlabs.similarity_boost must be between 0 and 1, got %g", c.ElevenLabs.SimilarityBoost)
	}
	if _, err := sampleRate(c.ElevenLabs.OutputFormat); err != nil {
		return fmt.Errorf("elevenlabs.output_format: %w", err)
	}

	if c.Synthesis.MaxRetries < 0 || c.Synthesis.MaxRetries > 20 {
		return fmt.Errorf("synthesis.max_retries must be between 0 and 20, got %d", c.Synthesis.MaxRetries)
	}
	if c.Synthesis.InitialDelay <= 0 {
		return fmt.Errorf("synthesis.initial_delay must be positive, got %s", c.Synthesis.InitialDelay)
	}
	if c.Synthesis.Silence < 0 {
		return fmt.Errorf("synthesis.silence must not be negative, got %s", c.Synthesis.Silence)
	}

	if c.Cache.MemoryMB < 1 || c.Cache.DiskMB < 1 {
		return fmt.Errorf("cache sizes must be at least 1 MB")
	}
	if c.Cache.CompressionLevel < 0 || c.Cache.CompressionLevel > 4 {
		return fmt.Errorf("cache.compression_level must be between 0 and 4, got %d", c.Cache.CompressionLevel)
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	c.Phrases = c.Phrases.WithDefaults()
	return c.resolvePaths()
}

func (c *Config) resolvePaths() error {
	scope := gap.NewScope(gap.User, AppName)
	var err error

	if c.Output, err = homedir.Expand(c.Output); err != nil {
		return fmt.Errorf("output: %w", err)
	}

	if c.Cache.Dir == "" {
		if c.Cache.Dir, err = scope.CacheDir(); err != nil {
			return fmt.Errorf("unable to find cache directory: %w", err)
		}
		c.Cache.Dir = filepath.Join(c.Cache.Dir, "audio")
	}
	if c.Cache.Dir, err = homedir.Expand(c.Cache.Dir); err != nil {
		return fmt.Errorf("cache.dir: %w", err)
	}

	if c.Checkpoint.Path == "" {
		if c.Checkpoint.Path, err = scope.DataPath("runs.db"); err != nil {
			return fmt.Errorf("unable to find data directory: %w", err)
		}
	}
	if c.Checkpoint.Path, err = homedir.Expand(c.Checkpoint.Path); err != nil {
		return fmt.Errorf("checkpoint.path: %w", err)
	}
	return nil
}

// sampleRate parses the rate out of an output format such as "pcm_44100".
func sampleRate(format string) (int, error) {
	raw, ok := strings.CutPrefix(format, "pcm_")
	if !ok {
		return 0, fmt.Errorf("%q is not a raw pcm format", format)
	}
	rate, err := strconv.Atoi(raw)
	if err != nil || rate < 8000 || rate > 48000 {
		return 0, fmt.Errorf("unsupported sample rate in %q", format)
	}
	return rate, nil
}

// AudioFormat returns the PCM layout produced by the configured output format.
func (c Config) AudioFormat() audio.Format {
	f := audio.DefaultFormat()
	if rate, err := sampleRate(c.ElevenLabs.OutputFormat); err == nil {
		f.SampleRate = rate
	}
	return f
}

// RequireAPIKey fails when no ElevenLabs key is configured.
func (c Config) RequireAPIKey() error {
	if strings.TrimSpace(c.ElevenLabs.APIKey) == "" {
		return fmt.Errorf("ELEVENLABS_API_KEY is not set (export it, add it to .env or set elevenlabs.api_key)")
	}
	return nil
}

// RetryPolicy returns the synthesis backoff policy.
func (c Config) RetryPolicy() synth.RetryPolicy {
	return synth.RetryPolicy{
		MaxRetries:   c.Synthesis.MaxRetries,
		InitialDelay: c.Synthesis.InitialDelay,
	}
}

// CacheConfig returns the audio cache sizing.
func (c Config) CacheConfig() cache.Config {
	return cache.Config{
		MemoryCapacity:   int64(c.Cache.MemoryMB) << 20,
		DiskCapacity:     int64(c.Cache.DiskMB) << 20,
		Dir:              c.Cache.Dir,
		CompressionLevel: c.Cache.CompressionLevel,
		TTL:              c.Cache.TTL,
	}
}

// HNConfig returns the item source settings.
func (c Config) HNConfig() hn.Config {
	return hn.Config{
		BaseURL:           c.HN.BaseURL,
		RequestsPerSecond: c.HN.RequestsPerSecond,
		Timeout:           c.HN.Timeout,
	}
}

// ElevenLabsConfig returns the synthesis client settings.
func (c Config) ElevenLabsConfig() elevenlabs.Config {
	return elevenlabs.Config{
		APIKey:          c.ElevenLabs.APIKey,
		BaseURL:         c.ElevenLabs.BaseURL,
		Model:           c.ElevenLabs.Model,
		OutputFormat:    c.ElevenLabs.OutputFormat,
		Stability:       c.ElevenLabs.Stability,
		SimilarityBoost: c.ElevenLabs.SimilarityBoost,
		Timeout:         c.ElevenLabs.Timeout,
	}
}
