package bitvavo

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

var testCreds = Credentials{Key: "test-key", Secret: "test-secret"}

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	return NewClient(server.URL, NewSigner(10000)), server
}

func TestGetSendsAuthHeaders(t *testing.T) {
	var captured http.Header
	var contentLength int64
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Header.Clone()
		contentLength = r.ContentLength
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"symbol":"EUR","available":"100.50","inOrder":"0"}`)
	})
	defer server.Close()

	var balance Balance
	if err := client.Get("/balance?symbol=EUR", testCreds, &balance); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	if got := captured.Get("Bitvavo-Access-Key"); got != "test-key" {
		t.Errorf("Bitvavo-Access-Key = %q, want test-key", got)
	}
	if captured.Get("Bitvavo-Access-Signature") == "" {
		t.Error("Bitvavo-Access-Signature header missing")
	}
	if captured.Get("Bitvavo-Access-Timestamp") == "" {
		t.Error("Bitvavo-Access-Timestamp header missing")
	}
	if got := captured.Get("Bitvavo-Access-Window"); got != "10000" {
		t.Errorf("Bitvavo-Access-Window = %q, want 10000", got)
	}
	if got := captured.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q, want application/json", got)
	}
	if contentLength != 0 {
		t.Errorf("GET carried a body of length %d, want none", contentLength)
	}

	if balance.Symbol != "EUR" || balance.Available != 100.50 {
		t.Errorf("decoded balance = %+v, want EUR/100.50", balance)
	}
}

func TestPostSignsExactBody(t *testing.T) {
	var gotBody []byte
	var gotSignature string
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get("Bitvavo-Access-Signature")
		io.WriteString(w, `{"orderId":"abc-123","market":"BTC-EUR","side":"buy","status":"filled"}`)
	})
	defer server.Close()

	order := CreateOrderRequest{
		Market:      "BTC-EUR",
		Side:        "buy",
		OrderType:   "market",
		AmountQuote: 100,
	}

	var resp CreateOrderResponse
	if err := client.Post("/order", order, testCreds, &resp); err != nil {
		t.Fatalf("Post returned error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("request body is not valid JSON: %v", err)
	}
	if decoded["amountQuote"] != 100.0 {
		t.Errorf("amountQuote = %v, want 100", decoded["amountQuote"])
	}
	if _, present := decoded["amount"]; present {
		t.Error("amount should be omitted on a quote-sized order")
	}
	if gotSignature == "" {
		t.Error("POST request was not signed")
	}
	if resp.OrderID != "abc-123" {
		t.Errorf("orderId = %q, want abc-123", resp.OrderID)
	}
}

func TestRemoteErrorsSurfaceUntranslated(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"errorCode":309,"error":"insufficient balance"}`)
	})
	defer server.Close()

	err := client.Get("/balance?symbol=EUR", testCreds, &Balance{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", apiErr.StatusCode, http.StatusConflict)
	}
	if apiErr.Body != `{"errorCode":309,"error":"insufficient balance"}` {
		t.Errorf("body = %q, exchange error must not be translated", apiErr.Body)
	}
}

func TestEmptyCredentialsFailBeforeRequest(t *testing.T) {
	requests := 0
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		requests++
	})
	defer server.Close()

	err := client.Get("/balance", Credentials{}, &Balance{})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	if requests != 0 {
		t.Error("no HTTP request should be made with empty credentials")
	}
}
