package venue

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"traderelay/internal/config"
)

func testVenuesConfig() config.VenuesConfig {
	return config.VenuesConfig{
		Retry: config.RetryConfig{
			MaxAttempts: 3,
			MinDelay:    time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
		},
		CallTimeout: 5 * time.Second,
	}
}

func newTestJupiter(baseURL string) *Jupiter {
	return NewJupiter(config.JupiterConfig{BaseURL: baseURL, SlippageBps: 50}, testVenuesConfig(), nil)
}

func TestJupiterPrice_ReturnsQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/price" || r.URL.Query().Get("ids") != "SOL" {
			t.Errorf("unexpected request: %s", r.URL.String())
		}
		w.Write([]byte(`{"data":{"SOL":{"price":9.87}}}`))
	}))
	defer server.Close()

	quote, err := newTestJupiter(server.URL).Price(context.Background(), "SOL")
	if err != nil {
		t.Fatalf("Price returned error: %v", err)
	}
	if quote.Price != 9.87 {
		t.Fatalf("expected price 9.87, got %f", quote.Price)
	}
}

func TestJupiterPrice_MissingAssetIsNoQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	if _, err := newTestJupiter(server.URL).Price(context.Background(), "UNKNOWN"); !errors.Is(err, ErrNoQuote) {
		t.Fatalf("expected ErrNoQuote, got %v", err)
	}
}

func TestJupiterPrice_NotFoundIsNoQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	if _, err := newTestJupiter(server.URL).Price(context.Background(), "SOL"); !errors.Is(err, ErrNoQuote) {
		t.Fatalf("expected ErrNoQuote, got %v", err)
	}
}

func TestJupiterPrice_ServerErrorRetriedThenUnavailable(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestJupiter(server.URL).Price(context.Background(), "SOL")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestJupiterExecute_ReturnsFill(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/swap" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"success":true,"price":9.91,"txid":"sig-1"}`))
	}))
	defer server.Close()

	fill, err := newTestJupiter(server.URL).Execute(context.Background(), TradeRequest{
		Side:      SideBuy,
		Amount:    1.5,
		Asset:     "SOL",
		WalletRef: "wallet-1",
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if fill.Price != 9.91 || fill.Reference != "sig-1" {
		t.Fatalf("unexpected fill: %+v", fill)
	}
}

func TestJupiterExecute_RejectionIsTerminal(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"success":false,"error":"insufficient balance"}`))
	}))
	defer server.Close()

	_, err := newTestJupiter(server.URL).Execute(context.Background(), TradeRequest{
		Side: SideBuy, Amount: 1, Asset: "SOL",
	})
	if err == nil || errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected terminal rejection error, got %v", err)
	}
	// 业务拒绝不应触发重试。
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected single attempt, got %d", got)
	}
}
