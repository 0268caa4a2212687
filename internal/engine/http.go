package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

// recognizeRequest is the body sent to HTTP-backed engines.
type recognizeRequest struct {
	Image     string   `json:"image"`
	Languages []string `json:"languages,omitempty"`
	GPU       bool     `json:"gpu"`
}

// recognizeLine is one recognised line. Confidence is optional because
// some vision services never report it.
type recognizeLine struct {
	Text       string    `json:"text"`
	Confidence *float64  `json:"confidence,omitempty"`
	Box        []float64 `json:"box,omitempty"`
}

type recognizeResponse struct {
	Lines []recognizeLine `json:"lines"`
	Error string          `json:"error,omitempty"`
}

// postImage sends imagePath base64-encoded to endpoint and decodes the line list.
func postImage(ctx context.Context, client *http.Client, endpoint string, headers map[string]string, imagePath string, languages []string, gpu bool) (*recognizeResponse, error) {
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	body, err := json.Marshal(recognizeRequest{
		Image:     base64.StdEncoding.EncodeToString(imageData),
		Languages: languages,
		GPU:       gpu,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var out recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("engine error: %s", out.Error)
	}
	return &out, nil
}
