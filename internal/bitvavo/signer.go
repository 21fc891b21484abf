package bitvavo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

// apiVersionPrefix is the fixed path prefix Bitvavo includes in the signed
// message for its versioned API.
const apiVersionPrefix = "/v2"

var (
	ErrMissingAPIKey    = errors.New("bitvavo: API key is not set")
	ErrMissingAPISecret = errors.New("bitvavo: API secret is not set")
)

// Credentials is the ephemeral, decrypted form of a bot's exchange
// credentials. It is produced on demand from the encrypted store and passed
// explicitly to the call that needs it; it is never persisted or logged.
type Credentials struct {
	Key    string
	Secret string
}

// AuthHeaders carries the authentication header values for one signed request.
type AuthHeaders struct {
	AccessKey string
	Signature string
	Timestamp string
	Window    string
}

// Signer builds Bitvavo authentication headers. The window is the server-side
// validity period, in milliseconds, echoed to the exchange unchanged.
type Signer struct {
	windowMS int
	now      func() time.Time
}

func NewSigner(windowMS int) *Signer {
	return &Signer{
		windowMS: windowMS,
		now:      time.Now,
	}
}

// Sign produces the headers for a request. The body must be the exact raw
// payload string that will be sent, or empty when the request has none.
// Empty credentials are rejected before any cryptographic work.
func (s *Signer) Sign(method, path, body string, creds Credentials) (*AuthHeaders, error) {
	if creds.Key == "" {
		return nil, ErrMissingAPIKey
	}
	if creds.Secret == "" {
		return nil, ErrMissingAPISecret
	}

	timestamp := strconv.FormatInt(s.now().UnixMilli(), 10)
	signature := computeSignature(timestamp, method, path, body, creds.Secret)

	return &AuthHeaders{
		AccessKey: creds.Key,
		Signature: signature,
		Timestamp: timestamp,
		Window:    strconv.Itoa(s.windowMS),
	}, nil
}

// computeSignature is HMAC-SHA256 over timestamp + method + "/v2" + path +
// body, keyed with the API secret, hex-encoded.
func computeSignature(timestamp, method, path, body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + method + apiVersionPrefix + path + body))
	return hex.EncodeToString(mac.Sum(nil))
}
