package pdf

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	pdf "github.com/ledongthuc/pdf"

	"github.com/troyyang/ocr-compare/internal/domain"
	"github.com/troyyang/ocr-compare/internal/observability"
)

// ClassifierOptions holds the scanned-page heuristics.
type ClassifierOptions struct {
	// TextThreshold is the character count below which an image-bearing page counts as scanned.
	TextThreshold int
	// ScannedThreshold is the inclusive scanned-page ratio at which a document is scanned.
	ScannedThreshold float64
}

// DefaultClassifierOptions returns 100 characters and a 0.3 ratio.
func DefaultClassifierOptions() ClassifierOptions {
	return ClassifierOptions{TextThreshold: 100, ScannedThreshold: 0.3}
}

// Classifier decides page by page whether a PDF needs OCR.
type Classifier struct {
	opts   ClassifierOptions
	logger *observability.Logger
}

// NewClassifier creates a classifier.
func NewClassifier(opts ClassifierOptions, logger *observability.Logger) *Classifier {
	return &Classifier{opts: opts, logger: observability.OrDefault(logger)}
}

// Classify opens the PDF and classifies every page.
func (c *Classifier) Classify(ctx context.Context, path string) (*domain.Classification, error) {
	pages, err := InspectPages(ctx, path)
	if err != nil {
		return nil, err
	}
	cls := ClassifyPages(pages, c.opts)
	c.logger.Debug().
		Str("document", path).
		Int("total_pages", cls.TotalPages).
		Ints("scanned_pages", cls.ScannedPages).
		Float64("scanned_ratio", cls.ScannedRatio).
		Bool("is_scanned", cls.IsScanned).
		Msg("Classified document")
	return cls, nil
}

// ClassifyPages applies the scanned-page rule to already inspected pages.
func ClassifyPages(pages []domain.PageInfo, opts ClassifierOptions) *domain.Classification {
	cls := &domain.Classification{
		TotalPages:   len(pages),
		Pages:        pages,
		ScannedPages: []int{},
	}
	for _, p := range pages {
		if p.TextLength < opts.TextThreshold && p.ImageCount > 0 {
			cls.ScannedPages = append(cls.ScannedPages, p.Number)
		}
	}
	if len(pages) > 0 {
		cls.ScannedRatio = float64(len(cls.ScannedPages)) / float64(len(pages))
		cls.IsScanned = cls.ScannedRatio >= opts.ScannedThreshold
	}
	return cls
}

// InspectPages reads each page's text length and embedded image count.
func InspectPages(ctx context.Context, path string) ([]domain.PageInfo, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, domain.DocumentError(fmt.Sprintf("failed to open PDF: %s", path), err)
	}
	defer f.Close()

	total := r.NumPage()
	pages := make([]domain.PageInfo, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		info := domain.PageInfo{Number: i}
		if !p.V.IsNull() {
			text, err := pageText(p)
			if err != nil {
				return nil, domain.DocumentError(fmt.Sprintf("failed to read text of page %d", i), err)
			}
			info.TextLength = utf8.RuneCountInString(strings.TrimSpace(text))
			info.ImageCount = countImages(p.Resources(), 0)
		}
		pages = append(pages, info)
	}
	return pages, nil
}

// pageText extracts plain text, converting parser panics on malformed streams to errors.
func pageText(p pdf.Page) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed page content: %v", rec)
		}
	}()
	fonts := make(map[string]*pdf.Font)
	for _, name := range p.Fonts() {
		font := p.Font(name)
		fonts[name] = &font
	}
	return p.GetPlainText(fonts)
}

const maxFormDepth = 3

// countImages counts image XObjects, descending into form XObjects.
func countImages(resources pdf.Value, depth int) int {
	if resources.IsNull() || depth > maxFormDepth {
		return 0
	}
	xobjects := resources.Key("XObject")
	if xobjects.IsNull() {
		return 0
	}
	n := 0
	for _, key := range xobjects.Keys() {
		obj := xobjects.Key(key)
		switch obj.Key("Subtype").Name() {
		case "Image":
			n++
		case "Form":
			n += countImages(obj.Key("Resources"), depth+1)
		}
	}
	return n
}
