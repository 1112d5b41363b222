package venue

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"traderelay/internal/config"
)

func newTestPolymarket(baseURL string) *Polymarket {
	return NewPolymarket(config.PolymarketConfig{BaseURL: baseURL}, testVenuesConfig(), nil)
}

func TestPolymarketPrice_ParsesMidpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token_id") != "123456" {
			t.Errorf("unexpected token_id: %s", r.URL.Query().Get("token_id"))
		}
		w.Write([]byte(`{"mid":"0.45"}`))
	}))
	defer server.Close()

	quote, err := newTestPolymarket(server.URL).Price(context.Background(), "123456")
	if err != nil {
		t.Fatalf("Price returned error: %v", err)
	}
	if quote.Price != 0.45 {
		t.Fatalf("expected 0.45, got %f", quote.Price)
	}
}

func TestPolymarketPrice_EmptyMidIsNoQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"mid":""}`))
	}))
	defer server.Close()

	if _, err := newTestPolymarket(server.URL).Price(context.Background(), "123456"); !errors.Is(err, ErrNoQuote) {
		t.Fatalf("expected ErrNoQuote, got %v", err)
	}
}

func TestPolymarketExecute_ReturnsFill(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"orderID":"ord-9","avgPrice":"0.47"}`))
	}))
	defer server.Close()

	fill, err := newTestPolymarket(server.URL).Execute(context.Background(), TradeRequest{
		Side: SideBuy, Amount: 100, Asset: "123456", WalletRef: "0xabc",
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if fill.Price != 0.47 || fill.Reference != "ord-9" {
		t.Fatalf("unexpected fill: %+v", fill)
	}
}

func TestPolymarketExecute_MalformedAvgPriceYieldsZeroFillPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"orderID":"ord-10","avgPrice":"n/a"}`))
	}))
	defer server.Close()

	fill, err := newTestPolymarket(server.URL).Execute(context.Background(), TradeRequest{
		Side: SideBuy, Amount: 100, Asset: "123456", WalletRef: "0xabc",
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if fill.Price != 0 {
		t.Fatalf("expected zero fill price for unparsable avgPrice, got %f", fill.Price)
	}
	if fill.Reference != "ord-10" {
		t.Fatalf("unexpected reference: %s", fill.Reference)
	}
}
