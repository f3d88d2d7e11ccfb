// Package backendclient implements the Egress HTTP Client (C7): forwards
// validated payloads to the trusting backend and relays its response.
package backendclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrTransport wraps a network or timeout failure talking to the backend.
// It is never forwarded to the device; no automatic retry happens here.
var ErrTransport = errors.New("backend transport error")

// StatusError is returned when the backend answers with a non-2xx
// status. It is not itself a failure to bridge: the gateway treats this
// as successful bridging (the device observes the backend's own error),
// per spec.md §4.11.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d", e.Status)
}

// Client issues one POST per accepted message. It holds no per-device
// state; the underlying http.Client reuses connections via its default
// transport.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New builds a Client. timeout bounds every POST to the backend
// (spec.md §4.7, default 10s).
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Forward POSTs payload (the verbatim validated bytes) to
// ${backend_base}/device/${device_id}/data and returns the response
// body. A 2xx response is returned with a nil *StatusError; a non-2xx
// response is returned alongside a *StatusError so the caller can decide
// whether to surface it to the device.
func (c *Client) Forward(ctx context.Context, deviceID string, payload []byte) ([]byte, error) {
	target := c.baseURL + "/device/" + url.PathEscape(deviceID) + "/data"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, &StatusError{Status: resp.StatusCode, Body: body}
	}

	return body, nil
}
