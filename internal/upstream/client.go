// Package upstream holds the HTTP plumbing and wire types shared by the
// ULCA pipeline clients (transcription, translation, diarization).
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"meeting-insights-go/internal/apierror"
)

// Client posts JSON to one upstream service and classifies the response.
type Client struct {
	Service string
	HTTP    *http.Client
}

func NewClient(service string, timeout time.Duration) *Client {
	return &Client{Service: service, HTTP: &http.Client{Timeout: timeout}}
}

// PostJSON sends payload and returns the body of a 200 response. Any other
// outcome is returned as an *apierror.Error.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindInternal, c.Service, fmt.Errorf("encode request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, apierror.Wrap(apierror.KindInternal, c.Service, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, c.transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apierror.FromStatus(c.Service, resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *Client) transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apierror.Wrap(apierror.KindTimeout, c.Service, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return apierror.Wrap(apierror.KindTimeout, c.Service, err)
	}
	if errors.Is(err, context.Canceled) {
		return apierror.Wrap(apierror.KindTimeout, c.Service, err)
	}
	return apierror.Wrap(apierror.KindUnreachable, c.Service, err)
}
