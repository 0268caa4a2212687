package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOCRResult_Failed(t *testing.T) {
	tests := []struct {
		name   string
		result OCRResult
		want   bool
	}{
		{"no metadata", OCRResult{Text: "x"}, false},
		{"other metadata", OCRResult{Metadata: map[string]interface{}{MetaPagesProcessed: 2}}, false},
		{"empty error tag", OCRResult{Text: "text", Metadata: map[string]interface{}{MetaError: ""}}, true},
		{"nil error tag", OCRResult{Text: "text", Metadata: map[string]interface{}{MetaError: nil}}, true},
		{"error tag", OCRResult{Text: "text", Metadata: map[string]interface{}{MetaError: "boom"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.Failed())
		})
	}
}

func TestOCRResult_SucceededRequiresTextAndNoError(t *testing.T) {
	assert.True(t, OCRResult{Text: "hello"}.Succeeded())
	assert.False(t, OCRResult{}.Succeeded())
	assert.False(t, OCRResult{Text: "hello", Metadata: map[string]interface{}{MetaError: "x"}}.Succeeded())
	assert.Equal(t, "x", OCRResult{Metadata: map[string]interface{}{MetaError: "x"}}.Error())
}

func TestOCRResult_ErrorTagWithoutMessage(t *testing.T) {
	for _, v := range []interface{}{nil, "", 42} {
		r := OCRResult{Text: "partial", Metadata: map[string]interface{}{MetaError: v}}
		assert.False(t, r.Succeeded(), "%v", v)
		assert.Equal(t, "unknown error", r.Error(), "%v", v)
	}
	assert.Equal(t, "", OCRResult{Text: "ok"}.Error())
}

func TestOCRResult_TextLengthCountsRunes(t *testing.T) {
	r := OCRResult{Text: "héllo 世界", ProcessingTimeMS: 500}
	assert.Equal(t, 8, r.TextLength())
	assert.InDelta(t, 16.0, r.CharsPerSecond(), 1e-9)
	assert.Zero(t, OCRResult{Text: "abc"}.CharsPerSecond())
}

func TestOCRResult_MetaIntAfterJSONRoundTrip(t *testing.T) {
	in := OCRResult{EngineName: "tesseract", Metadata: map[string]interface{}{MetaPagesProcessed: 2}}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out OCRResult
	require.NoError(t, json.Unmarshal(data, &out))
	n, ok := out.MetaInt(MetaPagesProcessed)
	require.True(t, ok)
	assert.Equal(t, 2, n)
}

func TestOrderedMap_PreservesInsertionOrder(t *testing.T) {
	m := NewOrderedMap[int]()
	m.Set("zeta", 1)
	m.Set("alpha", 2)
	m.Set("mid", 3)
	m.Set("zeta", 4)

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, m.Keys())
	assert.Equal(t, []int{4, 2, 3}, m.Values())
	assert.Equal(t, 3, m.Len())

	v, ok := m.Get("alpha")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestOrderedMap_JSONKeepsOrder(t *testing.T) {
	m := NewOrderedMap[float64]()
	m.Set("tesseract", 0.5)
	m.Set("easyocr", 0.75)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tesseract":0.5,"easyocr":0.75}`, string(data))
	assert.Equal(t, `{"tesseract":0.5,"easyocr":0.75}`, string(data))

	back := NewOrderedMap[float64]()
	require.NoError(t, json.Unmarshal([]byte(`{"b":1,"a":2,"c":3}`), back))
	assert.Equal(t, []string{"b", "a", "c"}, back.Keys())
}

func TestOrderedMap_NilIsEmpty(t *testing.T) {
	var m *OrderedMap[string]
	assert.Equal(t, 0, m.Len())
	assert.Nil(t, m.Keys())
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestOrderedMap_EachStopsEarly(t *testing.T) {
	m := NewOrderedMap[int]()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("c", 3)

	var seen []string
	m.Each(func(k string, _ int) bool {
		seen = append(seen, k)
		return k != "b"
	})
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestParseOutput_JSONShape(t *testing.T) {
	results := NewResults()
	results.Set("tesseract", OCRResult{EngineName: "tesseract", Text: "a", Confidence: 0.9, PageNum: 1})
	out := ParseOutput{
		FilePath:         "/tmp/a.png",
		FileType:         FileTypeImage,
		ProcessingMethod: MethodOCR,
		TotalPages:       1,
		Results:          results,
	}

	data, err := json.Marshal(out)
	require.NoError(t, err)

	var generic map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &generic))
	for _, key := range []string{"file_path", "file_type", "processing_method", "total_pages", "results", "best_result", "summary"} {
		assert.Contains(t, generic, key)
	}
	assert.Equal(t, "ocr", generic["processing_method"])
}

func TestClassification_RequiresOCR(t *testing.T) {
	assert.False(t, (&Classification{TotalPages: 3}).RequiresOCR())
	assert.True(t, (&Classification{TotalPages: 10, ScannedPages: []int{4}, ScannedRatio: 0.1}).RequiresOCR())
}

func TestDomainError_TypeAndUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := IOError("write report", cause)

	assert.Equal(t, "[io] write report: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsType(err, ErrorTypeIO))
	assert.False(t, IsType(err, ErrorTypeConfig))

	wrapped := errors.Join(errors.New("outer"), ValidationError("missing required OCR result fields", nil))
	assert.True(t, IsType(wrapped, ErrorTypeValidation))
	assert.Equal(t, "[validation] missing required OCR result fields", ValidationError("missing required OCR result fields", nil).Error())
}
