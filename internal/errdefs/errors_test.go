package errdefs

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("synthesize node 3: %w", New(CodeRateLimited, "429 from service", nil))

	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("errors.Is(err, ErrRateLimited) = false, want true")
	}
	if errors.Is(err, ErrSynthesis) {
		t.Errorf("errors.Is(err, ErrSynthesis) = true, want false")
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without cause",
			err:  New(CodeEmptyCatalog, "no voices", nil),
			want: "EMPTY_CATALOG: no voices",
		},
		{
			name: "with cause",
			err:  New(CodeAuth, "voices", errors.New("401")),
			want: "AUTH: voices: 401",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		code      Code
		fatal     bool
		retryable bool
	}{
		{CodeSourceUnavailable, true, false},
		{CodeEmptyCatalog, true, false},
		{CodeAuth, true, false},
		{CodeRateLimited, false, true},
		{CodeSynthesis, false, false},
		{CodeTreeFetch, false, false},
		{CodeCanceled, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			e := New(tt.code, "x", nil)
			if e.IsFatal() != tt.fatal {
				t.Errorf("IsFatal() = %v, want %v", e.IsFatal(), tt.fatal)
			}
			if e.IsRetryable() != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", e.IsRetryable(), tt.retryable)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", New(CodeTreeFetch, "item 7", nil).WithContext("id", 7))
	if got := CodeOf(wrapped); got != CodeTreeFetch {
		t.Errorf("CodeOf() = %q, want %q", got, CodeTreeFetch)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("IsRetryable(plain) = true, want false")
	}
}
