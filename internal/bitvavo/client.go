package bitvavo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const redactedMarker = "REDACTED"

// APIError is a non-2xx response from the exchange, surfaced to the caller
// without translation. No retries happen at this layer.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bitvavo: status %d: %s", e.StatusCode, e.Body)
}

// Client is a thin typed client for the Bitvavo REST API. Every request is
// signed with the credentials passed to the individual call.
type Client struct {
	baseURL string
	signer  *Signer
	http    *http.Client
}

func NewClient(baseURL string, signer *Signer) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  signer,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Get issues a signed GET request and decodes the JSON response into out.
func (c *Client) Get(path string, creds Credentials, out interface{}) error {
	return c.do(http.MethodGet, path, "", creds, out)
}

// Post issues a signed POST request with a JSON body and decodes the
// response into out.
func (c *Client) Post(path string, body interface{}, creds Credentials, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("bitvavo: encoding request body: %w", err)
	}
	return c.do(http.MethodPost, path, string(raw), creds, out)
}

func (c *Client) do(method, path, body string, creds Credentials, out interface{}) error {
	headers, err := c.signer.Sign(method, path, body, creds)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}

	req.Header.Set("Bitvavo-Access-Key", headers.AccessKey)
	req.Header.Set("Bitvavo-Access-Signature", headers.Signature)
	req.Header.Set("Bitvavo-Access-Timestamp", headers.Timestamp)
	req.Header.Set("Bitvavo-Access-Window", headers.Window)
	req.Header.Set("Accept", "application/json")
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	logRequest(req, body)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Msg("exchange response received")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("bitvavo: decoding response: %w", err)
	}
	return nil
}

// logRequest traces the outbound request in curl form. Header values whose
// names contain Key or Secret are replaced with a redaction marker.
func logRequest(req *http.Request, body string) {
	if zerolog.GlobalLevel() > zerolog.TraceLevel {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "curl -X %s '%s'", req.Method, req.URL.String())
	for name, values := range req.Header {
		for _, value := range values {
			if strings.Contains(name, "Key") || strings.Contains(name, "Secret") {
				value = redactedMarker
			}
			fmt.Fprintf(&b, " -H '%s: %s'", name, value)
		}
	}
	if body != "" {
		fmt.Fprintf(&b, " -d '%s'", strings.ReplaceAll(body, "'", `'\''`))
	}

	log.Trace().Msg(b.String())
}
