package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"arbflow/models"
)

// GetJSON performs a GET against a venue REST endpoint and decodes the JSON
// body into out. Transport failures come back transient; HTTP error statuses
// are mapped through ClassifyStatus; an undecodable body is a data failure.
func GetJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Classify(models.FailureData, fmt.Errorf("build request: %w", err))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Classify(models.FailureTransient, fmt.Errorf("request %s: %w", url, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Classify(models.FailureTransient, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return ClassifyStatus(resp.StatusCode, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 256)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return Classify(models.FailureData, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
