package matrixclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// VersionsResponse is the shape of GET /_matrix/client/versions, the
// well-known readiness document served by a healthy homeserver.
type VersionsResponse struct {
	Versions         []string        `json:"versions"`
	UnstableFeatures map[string]bool `json:"unstable_features,omitempty"`
}

// Ready reports whether the document announces at least one supported
// client-server spec version.
func (v *VersionsResponse) Ready() bool {
	return v != nil && len(v.Versions) > 0
}

// Versions fetches the homeserver's supported spec versions.
func (c *Client) Versions(ctx context.Context) (*VersionsResponse, error) {
	var out VersionsResponse
	err := c.retry.Do(ctx, true, func() error {
		return c.breaker.Execute(func() error {
			return c.doRequest(ctx, http.MethodGet, "/_matrix/client/versions", &out)
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if decodeErr := json.NewDecoder(resp.Body).Decode(apiErr); decodeErr != nil {
			apiErr.Message = resp.Status
		}
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}
