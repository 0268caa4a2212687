// Package tesseract provides the gosseract-backed engine, which is also the
// fallback for any engine that cannot start.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/troyyang/ocr-compare/internal/engine"
)

// Options configures the tesseract engine.
type Options struct {
	Languages   []string
	PageSegMode int
}

// Engine implements engine.Engine using a fresh gosseract client per call,
// since a client is not safe for concurrent use.
type Engine struct {
	languages     []string
	pageSegMode   gosseract.PageSegMode
	clientFactory func() *gosseract.Client
}

// New constructs the engine.
func New(opts Options) *Engine {
	psm := gosseract.PSM_AUTO
	if opts.PageSegMode > 0 {
		psm = gosseract.PageSegMode(opts.PageSegMode)
	}
	return &Engine{
		languages:     engine.TesseractLanguages(opts.Languages),
		pageSegMode:   psm,
		clientFactory: gosseract.NewClient,
	}
}

// Factory adapts New to the registry contract.
func Factory(opts Options) engine.Factory {
	return func() (engine.Engine, error) {
		return New(opts), nil
	}
}

func (e *Engine) Name() string { return engine.FallbackEngine }

// Extract recognises imagePath. Confidence is the mean of word confidences,
// skipping the -1 sentinel, scaled to [0,1].
func (e *Engine) Extract(ctx context.Context, imagePath string) (engine.Output, error) {
	if err := ctx.Err(); err != nil {
		return engine.Output{}, err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImage(imagePath); err != nil {
		return engine.Output{}, fmt.Errorf("set image: %w", err)
	}
	if err := c.SetLanguage(e.languages...); err != nil {
		return engine.Output{}, fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetPageSegMode(e.pageSegMode); err != nil {
		return engine.Output{}, fmt.Errorf("set page segmentation mode: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return engine.Output{}, fmt.Errorf("recognize text: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return engine.Output{}, fmt.Errorf("word boxes: %w", err)
	}

	confs := make([]float64, 0, len(boxes))
	details := make([]engine.WordDetail, 0, len(boxes))
	for _, b := range boxes {
		if b.Confidence >= 0 {
			confs = append(confs, b.Confidence)
		}
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		wc := 0.0
		if b.Confidence >= 0 {
			wc = b.Confidence / 100
		}
		details = append(details, engine.WordDetail{
			Text:       b.Word,
			Confidence: wc,
			Box:        []float64{float64(b.Box.Min.X), float64(b.Box.Min.Y), float64(b.Box.Max.X), float64(b.Box.Max.Y)},
		})
	}

	return engine.Output{
		Text:          strings.TrimSpace(text),
		Confidence:    WordConfidence(confs),
		HasConfidence: true,
		Details:       details,
	}, nil
}

// WordConfidence averages tesseract word confidences (0-100), ignoring
// negative sentinels, and scales the mean to [0,1].
func WordConfidence(raw []float64) float64 {
	var sum float64
	var n int
	for _, c := range raw {
		if c < 0 {
			continue
		}
		sum += c
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n) / 100
}
