package selection

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/troyyang/ocr-compare/internal/domain"
)

func resultsOf(rs ...domain.OCRResult) *domain.Results {
	m := domain.NewResults()
	for _, r := range rs {
		m.Set(r.EngineName, r)
	}
	return m
}

func TestSelector_Score(t *testing.T) {
	s := New(DefaultOptions())
	r := domain.OCRResult{Text: strings.Repeat("a", 1000), Confidence: 0.5}
	assert.InDelta(t, 0.5*0.8+0.5*0.2, s.Score(r), 1e-12)

	long := domain.OCRResult{Text: strings.Repeat("a", 5000), Confidence: 1}
	assert.InDelta(t, 1.0, s.Score(long), 1e-12)
}

func TestSelectBest_HighestConfidenceWinsOverFailure(t *testing.T) {
	text := strings.Repeat("word ", 100)
	results := resultsOf(
		domain.OCRResult{EngineName: "engine1", Text: text, Confidence: 0.95, ProcessingTimeMS: 1000},
		domain.OCRResult{EngineName: "engine2", Text: text, Confidence: 0.80, ProcessingTimeMS: 500},
		domain.OCRResult{EngineName: "engine3", Metadata: map[string]interface{}{domain.MetaError: "boom"}},
	)

	s := New(DefaultOptions())
	best := s.SelectBest(results)
	require.NotNil(t, best)
	assert.Equal(t, "engine1", best.EngineName)

	for i := 0; i < 5; i++ {
		assert.Equal(t, "engine1", s.SelectBest(results).EngineName)
	}
}

func TestSelectBest_TieGoesToFirstInserted(t *testing.T) {
	results := resultsOf(
		domain.OCRResult{EngineName: "zeta", Text: "same", Confidence: 0.7},
		domain.OCRResult{EngineName: "alpha", Text: "same", Confidence: 0.7},
	)
	assert.Equal(t, "zeta", New(DefaultOptions()).SelectBest(results).EngineName)
}

func TestSelectBest_NoTextReturnsFirstEntry(t *testing.T) {
	results := resultsOf(
		domain.OCRResult{EngineName: "paddleocr", Metadata: map[string]interface{}{domain.MetaError: "x"}},
		domain.OCRResult{EngineName: "tesseract", Confidence: 0.9},
	)
	best := New(DefaultOptions()).SelectBest(results)
	require.NotNil(t, best)
	assert.Equal(t, "paddleocr", best.EngineName)
}

func TestSelectBest_EmptyIsNil(t *testing.T) {
	assert.Nil(t, New(DefaultOptions()).SelectBest(domain.NewResults()))
	assert.Nil(t, New(DefaultOptions()).SelectBest(nil))
}

func TestSelectBest_LengthCanOutweighConfidence(t *testing.T) {
	results := resultsOf(
		domain.OCRResult{EngineName: "short", Text: "ab", Confidence: 0.8},
		domain.OCRResult{EngineName: "long", Text: strings.Repeat("x", 2000), Confidence: 0.7},
	)
	// short: 0.64 + ~0; long: 0.56 + 0.2
	assert.Equal(t, "long", New(DefaultOptions()).SelectBest(results).EngineName)
}

func TestCompare(t *testing.T) {
	results := resultsOf(
		domain.OCRResult{EngineName: "tesseract", Text: "héllo", Confidence: 0.9, ProcessingTimeMS: 100},
		domain.OCRResult{EngineName: "easyocr", Confidence: 0, ProcessingTimeMS: 300, Metadata: map[string]interface{}{domain.MetaError: "x"}},
	)

	data := Compare(results)
	assert.Equal(t, 2, data.EngineCount)
	assert.InDelta(t, 0.45, data.AvgConfidence, 1e-12)
	assert.InDelta(t, 200, data.AvgProcessingTime, 1e-12)
	assert.Equal(t, []string{"tesseract", "easyocr"}, data.TextLengths.Keys())

	n, _ := data.TextLengths.Get("tesseract")
	assert.Equal(t, 5, n)
	c, _ := data.Confidences.Get("easyocr")
	assert.Zero(t, c)
}

func TestCompare_Empty(t *testing.T) {
	data := Compare(domain.NewResults())
	assert.Zero(t, data.EngineCount)
	assert.Zero(t, data.AvgConfidence)
	assert.Equal(t, 0, data.TextLengths.Len())
}
