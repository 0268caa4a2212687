package engine

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// CloudDefaultConfidence stands in when a vision service reports no line confidence.
const CloudDefaultConfidence = 0.9

// cloudKeyHeaders holds the API key header per provider; unknown providers use X-Api-Key.
var cloudKeyHeaders = map[string]string{
	"azure":  "Ocp-Apim-Subscription-Key",
	"google": "X-Goog-Api-Key",
	"aws":    "X-Api-Key",
}

// CloudOptions configures a vision-API style engine.
type CloudOptions struct {
	Endpoint  string
	APIKey    string
	Languages []string
	Client    *http.Client
}

// CloudEngine analyses a whole image through a hosted vision API.
type CloudEngine struct {
	name      string
	endpoint  string
	headers   map[string]string
	languages []string
	client    *http.Client
}

// NewCloudEngine requires both an endpoint and a key.
func NewCloudEngine(name string, opts CloudOptions) (*CloudEngine, error) {
	if strings.TrimSpace(opts.Endpoint) == "" || strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("%s: API key or endpoint not provided: %w", name, ErrUnavailable)
	}
	header, ok := cloudKeyHeaders[name]
	if !ok {
		header = "X-Api-Key"
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	return &CloudEngine{
		name:      name,
		endpoint:  opts.Endpoint,
		headers:   map[string]string{header: opts.APIKey},
		languages: ReaderLanguages(opts.Languages),
		client:    client,
	}, nil
}

func (e *CloudEngine) Name() string { return e.name }

func (e *CloudEngine) Extract(ctx context.Context, imagePath string) (Output, error) {
	resp, err := postImage(ctx, e.client, e.endpoint, e.headers, imagePath, e.languages, false)
	if err != nil {
		return Output{}, fmt.Errorf("%s: %w", e.name, err)
	}

	texts := make([]string, 0, len(resp.Lines))
	var reported []float64
	details := make([]WordDetail, 0, len(resp.Lines))
	for _, line := range resp.Lines {
		c := CloudDefaultConfidence
		if line.Confidence != nil {
			c = *line.Confidence
			reported = append(reported, c)
		}
		texts = append(texts, line.Text)
		details = append(details, WordDetail{Text: line.Text, Confidence: c, Box: line.Box})
	}

	conf := CloudDefaultConfidence
	if len(reported) > 0 {
		conf = mean(reported)
	}

	return Output{
		Text:          strings.Join(texts, "\n"),
		Confidence:    conf,
		HasConfidence: true,
		Details:       details,
	}, nil
}
