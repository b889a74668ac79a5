// Package hn reads discussion items from the Hacker News Firebase API.
package hn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/onetake-ai/hackernews-watercooler/internal/thread"
)

const (
	// DefaultBaseURL is the public Firebase endpoint.
	DefaultBaseURL = "https://hacker-news.firebaseio.com/v0"

	defaultRequestsPerSecond = 20
	defaultTimeout           = 10 * time.Second
	maxItemSize              = 1 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL           string
	RequestsPerSecond float64
	Timeout           time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Client fetches items by id. It implements thread.Source.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
}

var _ thread.Source = (*Client)(nil)

// NewClient creates a rate limited client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRequestsPerSecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
	}
}

// Get returns the item with the given id. A missing item yields nil, nil.
func (c *Client) Get(ctx context.Context, id int64) (*thread.Item, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("hn: rate limit wait: %w", err)
	}

	endpoint := fmt.Sprintf("%s/item/%d.json", c.base, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("hn: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hn: get item %d: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("hn: get item %d: http %d", id, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxItemSize))
	if err != nil {
		return nil, fmt.Errorf("hn: read item %d: %w", id, err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		log.Debug("Item not found", "id", id)
		return nil, nil
	}

	var it thread.Item
	if err := json.Unmarshal(body, &it); err != nil {
		return nil, fmt.Errorf("hn: decode item %d: %w", id, err)
	}
	if it.ID == 0 {
		return nil, nil
	}
	return &it, nil
}

// ParseItemID accepts a bare numeric id or a news.ycombinator.com item URL.
func ParseItemID(ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, fmt.Errorf("empty thread reference")
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if id <= 0 {
			return 0, fmt.Errorf("invalid item id %d", id)
		}
		return id, nil
	}

	if !strings.Contains(ref, "://") {
		ref = "https://" + ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return 0, fmt.Errorf("invalid thread URL %q: %w", ref, err)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "news.ycombinator.com" {
		return 0, fmt.Errorf("not a Hacker News thread URL: %q", ref)
	}
	raw := u.Query().Get("id")
	if raw == "" {
		return 0, fmt.Errorf("thread URL has no item id: %q", ref)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", raw)
	}
	return id, nil
}

// ItemURL returns the discussion page for id.
func ItemURL(id int64) string {
	return "https://news.ycombinator.com/item?id=" + strconv.FormatInt(id, 10)
}
