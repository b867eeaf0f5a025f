package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cricsight/internal/domain"
)

// maxResponseBytes caps embedding API response bodies. A batch of vectors
// is well under this; anything larger is a misbehaving server.
const maxResponseBytes = 10 << 20

var defaultHTTPClient = &http.Client{Timeout: 60 * time.Second}

// postJSON sends payload to url and decodes the JSON response into out.
// Non-200 statuses surface the body text wrapped in ErrEmbeddingFailed so
// the error classifier can read the status code.
func postJSON(ctx context.Context, client *http.Client, url, bearer string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal request: %v", domain.ErrEmbeddingFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: create request: %v", domain.ErrEmbeddingFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: http request: %v", domain.ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domain.ErrEmbeddingFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: API error %d: %s", domain.ErrEmbeddingFailed, resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: unmarshal response: %v", domain.ErrEmbeddingFailed, err)
	}
	return nil
}
