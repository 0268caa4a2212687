package engine

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// ReaderOptions configures a detection+recognition sidecar (EasyOCR, PaddleOCR).
type ReaderOptions struct {
	Endpoint  string
	Languages []string
	UseGPU    bool
	Client    *http.Client
}

// ReaderEngine calls a reader-style OCR service over HTTP.
// Confidence is the mean of the per-line confidences.
type ReaderEngine struct {
	name      string
	endpoint  string
	languages []string
	gpu       bool
	client    *http.Client
}

// NewReaderEngine returns ErrUnavailable when no endpoint is configured.
func NewReaderEngine(name string, opts ReaderOptions) (*ReaderEngine, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, fmt.Errorf("%s: no endpoint configured: %w", name, ErrUnavailable)
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	return &ReaderEngine{
		name:      name,
		endpoint:  opts.Endpoint,
		languages: ReaderLanguages(opts.Languages),
		gpu:       opts.UseGPU,
		client:    client,
	}, nil
}

func (e *ReaderEngine) Name() string { return e.name }

// Extract posts the image and joins recognised lines with newlines.
func (e *ReaderEngine) Extract(ctx context.Context, imagePath string) (Output, error) {
	resp, err := postImage(ctx, e.client, e.endpoint, nil, imagePath, e.languages, e.gpu)
	if err != nil {
		return Output{}, fmt.Errorf("%s: %w", e.name, err)
	}

	texts := make([]string, 0, len(resp.Lines))
	confs := make([]float64, 0, len(resp.Lines))
	details := make([]WordDetail, 0, len(resp.Lines))
	for _, line := range resp.Lines {
		var c float64
		if line.Confidence != nil {
			c = *line.Confidence
		}
		texts = append(texts, line.Text)
		confs = append(confs, c)
		details = append(details, WordDetail{Text: line.Text, Confidence: c, Box: line.Box})
	}

	return Output{
		Text:          strings.Join(texts, "\n"),
		Confidence:    mean(confs),
		HasConfidence: true,
		Details:       details,
	}, nil
}
