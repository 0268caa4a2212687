package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/troyyang/ocr-compare/internal/config"
	"github.com/troyyang/ocr-compare/internal/domain"
	"github.com/troyyang/ocr-compare/internal/observability"
)

type fakeEngine struct {
	name   string
	out    Output
	err    error
	delay  time.Duration
	panics bool
	closed bool
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Extract(ctx context.Context, _ string) (Output, error) {
	if f.panics {
		panic("native crash")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Output{}, ctx.Err()
		}
	}
	return f.out, f.err
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

func staticFactory(e Engine) Factory {
	return func() (Engine, error) { return e, nil }
}

func unavailableFactory() (Engine, error) {
	return nil, ErrUnavailable
}

func TestInvoke_Success(t *testing.T) {
	e := &fakeEngine{name: "easyocr", out: Output{Text: "hello", Confidence: 0.87, HasConfidence: true}}
	r := Invoke(context.Background(), e, "page.jpg", 3, time.Second)

	assert.Equal(t, "easyocr", r.EngineName)
	assert.Equal(t, "hello", r.Text)
	assert.Equal(t, 0.87, r.Confidence)
	assert.Equal(t, 3, r.PageNum)
	assert.False(t, r.Failed())
	assert.GreaterOrEqual(t, r.ProcessingTimeMS, 0.0)
}

func TestInvoke_MissingConfidenceDefaultsToHalf(t *testing.T) {
	e := &fakeEngine{name: "x", out: Output{Text: "hello"}}
	r := Invoke(context.Background(), e, "p.jpg", 1, time.Second)
	assert.Equal(t, domain.DefaultConfidence, r.Confidence)
}

func TestInvoke_ClampsConfidence(t *testing.T) {
	high := Invoke(context.Background(), &fakeEngine{name: "x", out: Output{Text: "a", Confidence: 97, HasConfidence: true}}, "p", 1, time.Second)
	low := Invoke(context.Background(), &fakeEngine{name: "x", out: Output{Text: "a", Confidence: -0.2, HasConfidence: true}}, "p", 1, time.Second)
	assert.Equal(t, 1.0, high.Confidence)
	assert.Equal(t, 0.0, low.Confidence)
}

func TestInvoke_ErrorBecomesFailedResult(t *testing.T) {
	e := &fakeEngine{name: "paddleocr", err: errors.New("model missing")}
	r := Invoke(context.Background(), e, "p.jpg", 2, time.Second)

	assert.True(t, r.Failed())
	assert.Equal(t, "model missing", r.Error())
	assert.Empty(t, r.Text)
	assert.Zero(t, r.Confidence)
	assert.Equal(t, 2, r.PageNum)
}

func TestInvoke_PanicIsRecovered(t *testing.T) {
	r := Invoke(context.Background(), &fakeEngine{name: "x", panics: true}, "p.jpg", 1, time.Second)
	assert.True(t, r.Failed())
	assert.Contains(t, r.Error(), "panic")
}

func TestInvoke_Timeout(t *testing.T) {
	e := &fakeEngine{name: "slow", delay: time.Second, out: Output{Text: "late"}}
	r := Invoke(context.Background(), e, "p.jpg", 1, 20*time.Millisecond)

	assert.True(t, r.Failed())
	assert.Contains(t, r.Error(), "timeout after")
	assert.Empty(t, r.Text)
}

func TestClampConfidence(t *testing.T) {
	for _, c := range []float64{-5, 0, 0.4, 1, 3} {
		got := ClampConfidence(c)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}
}

func TestNewRegistry_FallbackRegisteredOnce(t *testing.T) {
	tess := &fakeEngine{name: "tesseract"}
	factories := map[string]Factory{
		"easyocr":   unavailableFactory,
		"paddleocr": unavailableFactory,
		"tesseract": staticFactory(tess),
	}

	reg, err := NewRegistry([]string{"EasyOCR", "paddleocr", "tesseract"}, factories, observability.NopLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"tesseract"}, reg.Names())
	assert.Equal(t, 1, reg.Len())
}

func TestNewRegistry_KeepsRequestOrderAndDedupes(t *testing.T) {
	factories := map[string]Factory{
		"easyocr":   staticFactory(&fakeEngine{name: "easyocr"}),
		"tesseract": staticFactory(&fakeEngine{name: "tesseract"}),
		"azure":     staticFactory(&fakeEngine{name: "azure"}),
	}

	reg, err := NewRegistry([]string{"azure", "easyocr", "AZURE", "tesseract"}, factories, observability.NopLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"azure", "easyocr", "tesseract"}, reg.Names())

	e, ok := reg.Get("EasyOCR")
	require.True(t, ok)
	assert.Equal(t, "easyocr", e.Name())
}

func TestNewRegistry_UnknownEngineFallsBack(t *testing.T) {
	factories := map[string]Factory{
		"tesseract": staticFactory(&fakeEngine{name: "tesseract"}),
	}
	reg, err := NewRegistry([]string{"magicocr"}, factories, observability.NopLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"tesseract"}, reg.Names())
}

func TestNewRegistry_EmptyIsConfigError(t *testing.T) {
	factories := map[string]Factory{"tesseract": unavailableFactory}
	_, err := NewRegistry([]string{"easyocr"}, factories, observability.NopLogger())
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))

	_, err = NewRegistry(nil, factories, observability.NopLogger())
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
}

func TestRegistry_CloseClosesEngines(t *testing.T) {
	tess := &fakeEngine{name: "tesseract"}
	reg, err := NewRegistry([]string{"tesseract"}, map[string]Factory{"tesseract": staticFactory(tess)}, observability.NopLogger())
	require.NoError(t, err)
	require.NoError(t, reg.Close())
	assert.True(t, tess.closed)
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page_1.jpg")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xd8, 0xff}, 0o644))
	return path
}

func TestReaderEngine_MeanLineConfidence(t *testing.T) {
	var got recognizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"lines":[{"text":"Invoice","confidence":0.9},{"text":"Total 42","confidence":0.7}]}`))
	}))
	defer srv.Close()

	e, err := NewReaderEngine("easyocr", ReaderOptions{Endpoint: srv.URL, Languages: []string{"en", "ch"}, UseGPU: true})
	require.NoError(t, err)

	out, err := e.Extract(context.Background(), writeImage(t))
	require.NoError(t, err)

	assert.Equal(t, "Invoice\nTotal 42", out.Text)
	assert.InDelta(t, 0.8, out.Confidence, 1e-9)
	assert.True(t, out.HasConfidence)
	assert.Len(t, out.Details, 2)
	assert.Equal(t, []string{"en", "ch_sim"}, got.Languages)
	assert.True(t, got.GPU)
	assert.NotEmpty(t, got.Image)
}

func TestReaderEngine_UnavailableWithoutEndpoint(t *testing.T) {
	_, err := NewReaderEngine("paddleocr", ReaderOptions{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestReaderEngine_HTTPErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e, err := NewReaderEngine("easyocr", ReaderOptions{Endpoint: srv.URL})
	require.NoError(t, err)
	_, err = e.Extract(context.Background(), writeImage(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestCloudEngine_DefaultConfidenceWhenUnreported(t *testing.T) {
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("Ocp-Apim-Subscription-Key")
		_, _ = w.Write([]byte(`{"lines":[{"text":"line one"},{"text":"line two"}]}`))
	}))
	defer srv.Close()

	e, err := NewCloudEngine("azure", CloudOptions{Endpoint: srv.URL, APIKey: "k1"})
	require.NoError(t, err)

	out, err := e.Extract(context.Background(), writeImage(t))
	require.NoError(t, err)
	assert.Equal(t, "k1", key)
	assert.Equal(t, "line one\nline two", out.Text)
	assert.Equal(t, CloudDefaultConfidence, out.Confidence)
}

func TestCloudEngine_ReportedConfidenceIsAveraged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"lines":[{"text":"a","confidence":0.5},{"text":"b","confidence":0.7}]}`))
	}))
	defer srv.Close()

	e, err := NewCloudEngine("google", CloudOptions{Endpoint: srv.URL, APIKey: "k"})
	require.NoError(t, err)
	out, err := e.Extract(context.Background(), writeImage(t))
	require.NoError(t, err)
	assert.InDelta(t, 0.6, out.Confidence, 1e-9)
}

func TestCloudEngine_RequiresKeyAndEndpoint(t *testing.T) {
	_, err := NewCloudEngine("azure", CloudOptions{Endpoint: "https://x"})
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = NewCloudEngine("azure", CloudOptions{APIKey: "k"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFactories_UnconfiguredEnginesFallBack(t *testing.T) {
	cfg := config.DefaultConfig().Engines
	factories := Factories(cfg, staticFactory(&fakeEngine{name: "tesseract"}))

	reg, err := NewRegistry([]string{"easyocr", "paddleocr", "tesseract", "azure"}, factories, observability.NopLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"tesseract"}, reg.Names())
}

func TestLanguages(t *testing.T) {
	assert.Equal(t, []string{"eng", "chi_sim", "jpn", "xx"}, TesseractLanguages([]string{"en", "CH", "jp", "xx"}))
	assert.Equal(t, []string{"eng"}, TesseractLanguages(nil))
	assert.Equal(t, []string{"en", "ch_sim", "ja"}, ReaderLanguages([]string{"en", "chinese", "jp"}))
}
