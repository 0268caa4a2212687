package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/troyyang/ocr-compare/internal/domain"
)

func TestHeadline(t *testing.T) {
	a := New(DefaultOptions())

	results := domain.NewResults()
	results.Set("tesseract", domain.OCRResult{EngineName: "tesseract", Text: "hello", Confidence: 0.9, ProcessingTimeMS: 1000})
	results.Set("azure", domain.OCRResult{EngineName: "azure", Text: "hi", Confidence: 0.95, ProcessingTimeMS: 500})
	results.Set("paddleocr", domain.OCRResult{EngineName: "paddleocr", Confidence: 1,
		Metadata: map[string]interface{}{domain.MetaError: "down"}})

	assert.Equal(t,
		"Recommendation: AZURE performed best with 95.0% confidence, 0.50s processing time, and $0.0010 estimated cost.",
		a.Headline(results))
}

func TestHeadline_ReportedCostWins(t *testing.T) {
	a := New(DefaultOptions())

	results := domain.NewResults()
	results.Set("tesseract", domain.OCRResult{EngineName: "tesseract", Text: "hello", Confidence: 0.8, ProcessingTimeMS: 250,
		Metadata: map[string]interface{}{domain.MetaEstimatedCost: 0.5}})

	assert.Equal(t,
		"Recommendation: TESSERACT performed best with 80.0% confidence, 0.25s processing time, and $0.5000 estimated cost.",
		a.Headline(results))
}

func TestHeadline_NothingUsable(t *testing.T) {
	a := New(DefaultOptions())
	assert.Equal(t, NoEnginesMessage, a.Headline(domain.NewResults()))
	assert.Equal(t, NoEnginesMessage, a.DocumentRecommendation(nil))

	results := domain.NewResults()
	results.Set("tesseract", domain.OCRResult{EngineName: "tesseract", Confidence: 0.5})
	results.Set("easyocr", domain.OCRResult{EngineName: "easyocr", Text: "partial",
		Metadata: map[string]interface{}{domain.MetaError: "timeout after 1s"}})
	assert.Equal(t, AllFailedMessage, a.Headline(results))
	assert.Equal(t, AllFailedMessage, a.DocumentRecommendation(results))
}

func TestDocumentRecommendation_AppendsSummary(t *testing.T) {
	a := New(DefaultOptions())

	results := domain.NewResults()
	results.Set("tesseract", domain.OCRResult{EngineName: "tesseract", Text: "hello world", Confidence: 0.9, ProcessingTimeMS: 1000})

	rec := a.DocumentRecommendation(results)
	headline, summary, ok := strings.Cut(rec, "\n\n")
	assert.True(t, ok)
	assert.Equal(t, a.Headline(results), headline)
	assert.NotEmpty(t, summary)
}
