package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// NoChangeSentinel is the literal body the backend returns when nothing
// changed since the last poll.
const NoChangeSentinel = "continua"

// ErrNoChange signals that the backend reported no change; the caller
// must skip reconciliation without touching state.
var ErrNoChange = errors.New("backend reported no change")

// TransportError covers timeouts, network failures and non-2xx replies.
// State must never be mutated when a fetch fails with one.
type TransportError struct {
	Action string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.Action, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.Action, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client performs the request/response exchange with the automation
// backend. All requests are POSTs of {action, params} to a single
// endpoint; an override URL can be supplied per call.
type Client struct {
	URL     string
	Timeout time.Duration
	HTTP    *http.Client
}

// New returns a client for the given webhook endpoint. A zero timeout
// falls back to 15s.
func New(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{URL: url, Timeout: timeout, HTTP: &http.Client{}}
}

type envelope struct {
	Action string `json:"action"`
	Params any    `json:"params"`
}

// Fetch posts {action, params} to the fixed endpoint and decodes the
// reply. Returns ErrNoChange for the sentinel body, a *TransportError on
// failure, and otherwise the decoded JSON value. A body that is not
// valid JSON is returned as the raw text; the extractor treats it as not
// a recognizable structure.
func (c *Client) Fetch(ctx context.Context, action string, params any) (any, error) {
	return c.FetchURL(ctx, c.URL, action, params)
}

// FetchURL is Fetch against an explicit endpoint (per-tenant override).
func (c *Client) FetchURL(ctx context.Context, url, action string, params any) (any, error) {
	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(envelope{Action: action, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encode request for %s: %w", action, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Action: action, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &TransportError{Action: action, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Action: action, Status: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Action: action, Err: err}
	}
	text := string(raw)
	if strings.TrimSpace(text) == NoChangeSentinel {
		return nil, ErrNoChange
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		// malformed JSON is not fatal at this layer
		return text, nil
	}
	return decoded, nil
}

// Post sends an arbitrary action payload (outbound triggers use payload
// shapes that do not follow the {action, params} envelope). The response
// body is discarded; only transport failures are reported.
func (c *Client) Post(ctx context.Context, url string, payload any) error {
	if url == "" {
		url = c.URL
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &TransportError{Action: "post", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &TransportError{Action: "post", Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{Action: "post", Status: resp.StatusCode}
	}
	return nil
}
