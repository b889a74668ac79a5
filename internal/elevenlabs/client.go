// Package elevenlabs is a minimal ElevenLabs client: the voice catalog and
// text-to-speech synthesis returning raw PCM.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/onetake-ai/hackernews-watercooler/internal/errdefs"
	"github.com/onetake-ai/hackernews-watercooler/internal/voice"
)

const (
	DefaultBaseURL      = "https://api.elevenlabs.io"
	DefaultModel        = "eleven_multilingual_v2"
	DefaultOutputFormat = "pcm_44100"

	defaultTimeout  = 60 * time.Second
	maxAudioSize    = 64 << 20
	maxErrorBodyLen = 512
)

// Config configures a Client.
type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	OutputFormat    string
	Stability       float64
	SimilarityBoost float64
	Timeout         time.Duration
	HTTPClient      *http.Client
}

// Client talks to the ElevenLabs HTTP API.
type Client struct {
	cfg  Config
	base string
	http *http.Client
}

// NewClient creates a client. An empty API key fails with errdefs.ErrAuth.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errdefs.New(errdefs.CodeAuth, "ElevenLabs API key is not set", nil)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = DefaultOutputFormat
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, base: strings.TrimRight(cfg.BaseURL, "/"), http: hc}, nil
}

// Model returns the synthesis model id.
func (c *Client) Model() string {
	return c.cfg.Model
}

type voicesResponse struct {
	Voices []voice.Voice `json:"voices"`
}

// ListVoices returns the account's voice catalog.
func (c *Client) ListVoices(ctx context.Context) ([]voice.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var vr voicesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAudioSize)).Decode(&vr); err != nil {
		return nil, fmt.Errorf("elevenlabs: decode voices: %w", err)
	}
	log.Debug("Voice catalog loaded", "voices", len(vr.Voices))
	return vr.Voices, nil
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize returns PCM audio for text spoken with voiceID.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	body, err := json.Marshal(synthesisRequest{
		Text:    text,
		ModelID: c.cfg.Model,
		VoiceSettings: voiceSettings{
			Stability:       c.cfg.Stability,
			SimilarityBoost: c.cfg.SimilarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		c.base, url.PathEscape(voiceID), url.QueryEscape(c.cfg.OutputFormat))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/pcm")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioSize))
	if err != nil {
		return nil, errdefs.New(errdefs.CodeSynthesis, "failed to read audio", err)
	}
	if len(audio) == 0 {
		return nil, errdefs.New(errdefs.CodeSynthesis, "empty audio response", nil)
	}
	return audio, nil
}

// do sends req with credentials and maps failure statuses to pipeline errors.
// On success the caller owns the response body.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, errdefs.New(errdefs.CodeCanceled, "request canceled", ctxErr)
		}
		return nil, errdefs.New(errdefs.CodeSynthesis, "request failed", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	msg := strings.TrimSpace(string(detail))

	var e *errdefs.Error
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		e = errdefs.New(errdefs.CodeRateLimited, "rate limited", nil)
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			e.WithContext("retry_after", ra)
		}
	case http.StatusUnauthorized:
		e = errdefs.New(errdefs.CodeAuth, "invalid API key", nil)
	default:
		e = errdefs.New(errdefs.CodeSynthesis, fmt.Sprintf("http %d", resp.StatusCode), nil)
	}
	if msg != "" {
		e.WithContext("body", msg)
	}
	return nil, e.WithContext("status", resp.StatusCode)
}
