package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onetake-ai/hackernews-watercooler/internal/errdefs"
)

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{APIKey: "  "}); !errors.Is(err, errdefs.ErrAuth) {
		t.Errorf("NewClient() error = %v, want ErrAuth", err)
	}
}

func TestListVoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/voices" || r.Header.Get("xi-api-key") != "k" {
			t.Errorf("unexpected request %s key=%q", r.URL.Path, r.Header.Get("xi-api-key"))
		}
		w.Write([]byte(`{"voices":[{"voice_id":"a1","name":"Rachel","category":"premade"},{"voice_id":"b2","name":"Adam"}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	voices, err := c.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 2 || voices[0].ID != "a1" || voices[1].Name != "Adam" {
		t.Errorf("voices = %+v", voices)
	}
}

func TestSynthesizeRequest(t *testing.T) {
	var got synthesisRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/text-to-speech/voice-1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if f := r.URL.Query().Get("output_format"); f != DefaultOutputFormat {
			t.Errorf("output_format = %q", f)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte{1, 0, 2, 0})
	}))
	defer srv.Close()

	c, _ := NewClient(Config{APIKey: "k", BaseURL: srv.URL, Stability: 0.5, SimilarityBoost: 0.75})
	audio, err := c.Synthesize(context.Background(), "Hey, pg here.", "voice-1")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(audio) != 4 {
		t.Errorf("audio = %v", audio)
	}
	want := synthesisRequest{
		Text:          "Hey, pg here.",
		ModelID:       DefaultModel,
		VoiceSettings: voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
	}
	if got != want {
		t.Errorf("request = %+v, want %+v", got, want)
	}
}

func TestSynthesizeErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		want      *errdefs.Error
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"detail":"slow down"}`, errdefs.ErrRateLimited, true},
		{"bad key", http.StatusUnauthorized, "", errdefs.ErrAuth, false},
		{"server error", http.StatusInternalServerError, "boom", errdefs.ErrSynthesis, false},
		{"empty audio", http.StatusOK, "", errdefs.ErrSynthesis, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, _ := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
			_, err := c.Synthesize(context.Background(), "text", "v")
			if !errors.Is(err, tt.want) {
				t.Fatalf("Synthesize() error = %v, want %v", err, tt.want)
			}
			if errdefs.IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", errdefs.IsRetryable(err), tt.retryable)
			}
		})
	}
}

func TestSynthesizeCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, _ := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	if _, err := c.Synthesize(ctx, "text", "v"); !errors.Is(err, errdefs.ErrCanceled) {
		t.Errorf("Synthesize() error = %v, want ErrCanceled", err)
	}
}
