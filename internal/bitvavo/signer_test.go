package bitvavo

import (
	"errors"
	"testing"
	"time"
)

func fixedNow() time.Time {
	// 1548183413114 ms since epoch
	return time.UnixMilli(1548183413114)
}

func TestSignProducesKnownSignature(t *testing.T) {
	creds := Credentials{Key: "test-key", Secret: "test-secret"}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   string
	}{
		{
			name:   "GET without body",
			method: "GET",
			path:   "/balance?symbol=EUR",
			body:   "",
			want:   "ad50f8568f735f90e05bfaa0211c84ca156024dede204631d01e51837483cf4b",
		},
		{
			name:   "POST with body",
			method: "POST",
			path:   "/order",
			body:   `{"market":"BTC-EUR","side":"buy","orderType":"market","amountQuote":100}`,
			want:   "8bd61a51dfa261922a24a7663e2cacbeb84b4c7dd0bc1b68b344298ee86109c2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer := NewSigner(10000)
			signer.now = fixedNow

			headers, err := signer.Sign(tt.method, tt.path, tt.body, creds)
			if err != nil {
				t.Fatalf("Sign returned error: %v", err)
			}

			if headers.Signature != tt.want {
				t.Errorf("signature = %s, want %s", headers.Signature, tt.want)
			}
			if headers.AccessKey != "test-key" {
				t.Errorf("access key = %s, want test-key", headers.AccessKey)
			}
			if headers.Timestamp != "1548183413114" {
				t.Errorf("timestamp = %s, want 1548183413114", headers.Timestamp)
			}
			if headers.Window != "10000" {
				t.Errorf("window = %s, want 10000", headers.Window)
			}
		})
	}
}

func TestSignRejectsEmptyCredentials(t *testing.T) {
	signer := NewSigner(10000)

	tests := []struct {
		name  string
		creds Credentials
		want  error
	}{
		{"empty key", Credentials{Key: "", Secret: "s"}, ErrMissingAPIKey},
		{"empty secret", Credentials{Key: "k", Secret: ""}, ErrMissingAPISecret},
		{"both empty", Credentials{}, ErrMissingAPIKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := signer.Sign("GET", "/balance", "", tt.creds)
			if !errors.Is(err, tt.want) {
				t.Errorf("Sign error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSignaturesDifferPerTimestamp(t *testing.T) {
	creds := Credentials{Key: "k", Secret: "s"}

	first := NewSigner(10000)
	first.now = func() time.Time { return time.UnixMilli(1000) }
	second := NewSigner(10000)
	second.now = func() time.Time { return time.UnixMilli(2000) }

	h1, err := first.Sign("GET", "/balance", "", creds)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := second.Sign("GET", "/balance", "", creds)
	if err != nil {
		t.Fatal(err)
	}

	if h1.Signature == h2.Signature {
		t.Error("signatures for different timestamps should differ")
	}
}
