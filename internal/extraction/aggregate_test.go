package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/troyyang/ocr-compare/internal/domain"
)

func pageResult(engine string, num int, text string, conf, ms float64) domain.OCRResult {
	return domain.OCRResult{
		EngineName:       engine,
		Text:             text,
		Confidence:       conf,
		ProcessingTimeMS: ms,
		PageNum:          num,
		Metadata:         map[string]interface{}{},
	}
}

func failedPage(engine string, num int, msg string) domain.OCRResult {
	r := pageResult(engine, num, "", 0, 5)
	r.Metadata[domain.MetaError] = msg
	return r
}

func TestAggregate_JoinsInPageOrder(t *testing.T) {
	in := []domain.OCRResult{
		pageResult("tesseract", 3, "three", 0.6, 30),
		pageResult("tesseract", 1, "one", 0.9, 10),
		pageResult("tesseract", 2, "", 0.3, 20),
	}

	out := Aggregate(in, []string{"tesseract"}, 3)
	r, ok := out.Get("tesseract")
	require.True(t, ok)

	assert.Equal(t, "one\n\nthree", r.Text)
	assert.Equal(t, 60.0, r.ProcessingTimeMS)
	assert.InDelta(t, 0.6, r.Confidence, 1e-12)
	assert.Equal(t, 3, r.PageNum)
	assert.Equal(t, 3, r.Metadata[domain.MetaPagesProcessed])
	assert.False(t, r.Failed())
}

func TestAggregate_FollowsEngineOrderAndSkipsAbsent(t *testing.T) {
	in := []domain.OCRResult{
		pageResult("b", 1, "bee", 0.5, 1),
		pageResult("a", 1, "ay", 0.5, 1),
	}
	out := Aggregate(in, []string{"a", "missing", "b"}, 1)
	assert.Equal(t, []string{"a", "b"}, out.Keys())
}

func TestAggregate_ErrorMetadata(t *testing.T) {
	in := []domain.OCRResult{
		failedPage("cloud", 1, "quota exceeded"),
		failedPage("cloud", 2, "quota exceeded"),
		pageResult("local", 1, "fine", 0.8, 10),
		failedPage("local", 2, "blurry"),
	}
	out := Aggregate(in, []string{"cloud", "local"}, 2)

	cloud, _ := out.Get("cloud")
	assert.True(t, cloud.Failed())
	assert.Equal(t, "page 1: quota exceeded; page 2: quota exceeded", cloud.Error())
	assert.Empty(t, cloud.Text)
	assert.Equal(t, 10.0, cloud.ProcessingTimeMS)

	local, _ := out.Get("local")
	assert.False(t, local.Failed())
	assert.Equal(t, "fine", local.Text)
	assert.Equal(t, []string{"page 2: blurry"}, local.Metadata[domain.MetaPageErrors])
	assert.InDelta(t, 0.4, local.Confidence, 1e-12)
}

func TestAggregate_Empty(t *testing.T) {
	out := Aggregate(nil, []string{"tesseract"}, 4)
	assert.Equal(t, 0, out.Len())
}
