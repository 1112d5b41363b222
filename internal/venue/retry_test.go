package venue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"no quote", fmt.Errorf("%w: SOL", ErrNoQuote), false},
		{"http 400", &httpStatusError{Status: http.StatusBadRequest}, false},
		{"http 404", &httpStatusError{Status: http.StatusNotFound}, false},
		{"http 429", &httpStatusError{Status: http.StatusTooManyRequests}, true},
		{"http 500", &httpStatusError{Status: http.StatusInternalServerError}, true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isRetryable(tc.err); got != tc.want {
				t.Fatalf("isRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestParsePlatform(t *testing.T) {
	if p, ok := ParsePlatform(" Jupiter "); !ok || p != PlatformJupiter {
		t.Fatalf("expected jupiter, got %q ok=%v", p, ok)
	}
	if _, ok := ParsePlatform("binance"); ok {
		t.Fatalf("binance must not parse")
	}
}
