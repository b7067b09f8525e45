package bsky

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// StatusError is a non-2xx response from an XRPC endpoint, carrying the message shown to the user.
type StatusError struct {
	URL        string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return e.Message
}

// userAgentTransport sets a fixed User-Agent on requests that don't already have one.
type userAgentTransport struct {
	Base      http.RoundTripper
	UserAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if req.Header.Get("User-Agent") != "" {
		return t.Base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.UserAgent)
	return t.Base.RoundTrip(r)
}

func (r *Resolver) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	r.log.Debugw("request", "url", url)
	return r.client.Do(req)
}

// getJSON decodes a 2xx response into v. Otherwise, onStatus builds the error from the status code and response body.
func (r *Resolver) getJSON(ctx context.Context, url string, v any, onStatus func(status int, body []byte) string) error {
	resp, err := r.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return &StatusError{URL: url, StatusCode: resp.StatusCode, Message: onStatus(resp.StatusCode, body)}
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// xrpcMessage extracts the "message" of an XRPC error body, falling back to the raw body.
func xrpcMessage(body []byte) string {
	var xrpcErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &xrpcErr); err == nil && xrpcErr.Message != "" {
		return xrpcErr.Message
	}
	return string(body)
}
