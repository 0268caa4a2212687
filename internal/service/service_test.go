package service

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/troyyang/ocr-compare/internal/analysis"
	"github.com/troyyang/ocr-compare/internal/cache"
	"github.com/troyyang/ocr-compare/internal/config"
	"github.com/troyyang/ocr-compare/internal/domain"
	"github.com/troyyang/ocr-compare/internal/observability"
	"github.com/troyyang/ocr-compare/internal/progress"
	"github.com/troyyang/ocr-compare/internal/storage"
)

type fakeParser struct {
	out     *domain.ParseOutput
	err     error
	engines []string
	calls   int
	paths   []string
}

func (p *fakeParser) Parse(ctx context.Context, path string, notifier progress.Notifier) (*domain.ParseOutput, error) {
	p.calls++
	p.paths = append(p.paths, path)
	notifier.Update(ctx, progress.StageOCR, 1, 2, "tesseract finished page 1")
	notifier.Update(ctx, progress.StageOCR, 2, 2, "easyocr finished page 1")
	if p.err != nil {
		return nil, p.err
	}
	return p.out, nil
}

func (p *fakeParser) Engines() []string { return p.engines }

type recorder struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recorder) notifier() progress.Notifier {
	return progress.Func{DocumentID: "doc", Fn: func(ev progress.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, ev)
	}}
}

func (r *recorder) last() progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fixture struct {
	svc       *Service
	parser    *fakeParser
	uploadDir string
	exportDir string
}

func newFixture(t *testing.T, parseCache *cache.ParseCache) *fixture {
	t.Helper()
	root := t.TempDir()
	db, err := storage.Open(context.Background(), config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(root, "ocr.db"), MaxOpenConns: 1},
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		parser:    &fakeParser{engines: []string{"tesseract", "easyocr"}},
		uploadDir: filepath.Join(root, "uploads"),
		exportDir: filepath.Join(root, "exports"),
	}
	f.svc = New(db, f.parser, analysis.New(analysis.DefaultOptions()), parseCache,
		observability.NopLogger(), Options{UploadDir: f.uploadDir, ExportDir: f.exportDir})
	return f
}

// storeDoc places a file under the upload dir and records it for alice.
func (f *fixture) storeDoc(t *testing.T, name string) *storage.Document {
	t.Helper()
	rel := filepath.Join("alice", name)
	path := filepath.Join(f.uploadDir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("content of "+name), 0o644))

	doc, err := f.svc.CreateDocument(context.Background(), CreateRequest{Filename: name, FilePath: rel, FileSize: 10}, "alice")
	require.NoError(t, err)
	return doc
}

func twoEngineOutput() *domain.ParseOutput {
	results := domain.NewResults()
	results.Set("tesseract", domain.OCRResult{EngineName: "tesseract", Text: "Invoice total 42", Confidence: 0.9,
		ProcessingTimeMS: 1200.7, Metadata: map[string]interface{}{domain.MetaPagesProcessed: 2}})
	results.Set("easyocr", domain.OCRResult{EngineName: "easyocr", Confidence: 0,
		ProcessingTimeMS: 30, Metadata: map[string]interface{}{domain.MetaError: "reader unavailable"}})
	results.Set("paddleocr", domain.OCRResult{EngineName: "paddleocr", Confidence: 0.5, ProcessingTimeMS: 10})
	best := results.Values()[0]
	return &domain.ParseOutput{FileType: domain.FileTypePDF, ProcessingMethod: domain.MethodOCR,
		TotalPages: 2, Results: results, BestResult: &best}
}

func TestCreateDocument(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	doc := f.storeDoc(t, "scan.PNG")
	assert.Equal(t, "image", doc.FileType)
	assert.Equal(t, storage.StatusPending, doc.Status)
	assert.Equal(t, "alice", doc.CreatedBy)
	assert.Equal(t, "alice", doc.UpdatedBy)

	pdfDoc := f.storeDoc(t, "report.pdf")
	assert.Equal(t, "pdf", pdfDoc.FileType)

	_, err := f.svc.CreateDocument(ctx, CreateRequest{Filename: "notes.txt", FilePath: "alice/notes.txt"}, "alice")
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))

	_, err = f.svc.CreateDocument(ctx, CreateRequest{Filename: "a.pdf"}, "alice")
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestAddFile_CopiesIntoUploadDir(t *testing.T) {
	f := newFixture(t, nil)
	src := filepath.Join(t.TempDir(), "receipt.jpg")
	require.NoError(t, os.WriteFile(src, []byte("jpeg bytes"), 0o644))

	doc, err := f.svc.AddFile(context.Background(), src, "alice/../bob")
	require.NoError(t, err)
	assert.Equal(t, "receipt.jpg", doc.Filename)
	assert.Equal(t, int64(len("jpeg bytes")), doc.FileSize)
	assert.Equal(t, 1, len(strings.Split(filepath.ToSlash(filepath.Dir(doc.FilePath)), "/")))

	data, err := os.ReadFile(filepath.Join(f.uploadDir, doc.FilePath))
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))

	_, err = f.svc.AddFile(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), "alice")
	assert.True(t, domain.IsType(err, domain.ErrorTypeDocument))
}

func TestGetUpdateDelete(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc := f.storeDoc(t, "page.png")

	_, err := f.svc.GetDocument(ctx, uuid.New())
	assert.True(t, domain.IsType(err, domain.ErrorTypeNotFound))

	name := "renamed.png"
	updated, err := f.svc.UpdateDocument(ctx, doc.ID, storage.DocumentUpdate{Filename: &name}, "bob")
	require.NoError(t, err)
	assert.Equal(t, name, updated.Filename)
	assert.Equal(t, "bob", updated.UpdatedBy)

	bogus := storage.ProcessingStatus("archived")
	_, err = f.svc.UpdateDocument(ctx, doc.ID, storage.DocumentUpdate{Status: &bogus}, "bob")
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))

	failed, err := f.svc.ChangeStatus(ctx, doc.ID, storage.StatusFailed, "bob")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusFailed, failed.Status)

	_, err = f.svc.ChangeStatus(ctx, uuid.New(), storage.StatusFailed, "bob")
	assert.True(t, domain.IsType(err, domain.ErrorTypeNotFound))

	require.NoError(t, f.svc.DeleteDocument(ctx, doc.ID))
	_, err = os.Stat(filepath.Join(f.uploadDir, doc.FilePath))
	assert.True(t, os.IsNotExist(err))
	_, err = f.svc.GetDocument(ctx, doc.ID)
	assert.True(t, domain.IsType(err, domain.ErrorTypeNotFound))
}

func TestAddOCRResult_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc := f.storeDoc(t, "page.png")

	_, err := f.svc.AddOCRResult(ctx, doc.ID, map[string]any{"engine": "tesseract", "extracted_text": "x"}, "alice")
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "Missing required OCR result fields")

	_, err = f.svc.AddOCRResult(ctx, doc.ID, map[string]any{
		"engine": "tesseract", "extracted_text": "x", "processing_time_ms": "slow",
	}, "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid OCR data format")

	_, err = f.svc.AddOCRResult(ctx, uuid.New(), map[string]any{
		"engine": "tesseract", "extracted_text": "x", "processing_time_ms": 5,
	}, "alice")
	assert.True(t, domain.IsType(err, domain.ErrorTypeNotFound))
}

func TestAddOCRResult_StatusFlip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc := f.storeDoc(t, "page.png")

	res, err := f.svc.AddOCRResult(ctx, doc.ID, map[string]any{
		"engine": "easyocr", "extracted_text": "", "processing_time_ms": 12.0,
		"error_message": "model missing",
	}, "alice")
	require.NoError(t, err)
	assert.Equal(t, "model missing", res.ErrorMessage.String)

	details, err := f.svc.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusPending, details.Document.Status)

	_, err = f.svc.AddOCRResult(ctx, doc.ID, map[string]any{
		"engine": "tesseract", "extracted_text": "hello", "processing_time_ms": 250,
		"confidence_score": 0.88, "estimated_cost": 0.0, "page_metrics": map[string]any{"text_length": 5},
	}, "alice")
	require.NoError(t, err)

	_, err = f.svc.AddOCRResult(ctx, doc.ID, map[string]any{
		"engine": "tesseract", "extracted_text": "hello again", "processing_time_ms": 300,
	}, "alice")
	require.NoError(t, err)

	details, err = f.svc.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusCompleted, details.Document.Status)
	require.Len(t, details.Results, 2)

	var texts []string
	for _, r := range details.Results {
		texts = append(texts, r.Engine+":"+r.ExtractedText)
	}
	assert.ElementsMatch(t, []string{"easyocr:", "tesseract:hello again"}, texts)
}

func TestParseDocument(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc := f.storeDoc(t, "invoice.pdf")
	f.parser.out = twoEngineOutput()

	rec := &recorder{}
	result, err := f.svc.ParseDocument(ctx, doc.ID, "alice", rec.notifier())
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.Equal(t, []string{filepath.Join(f.uploadDir, "alice", "invoice.pdf")}, f.parser.paths)

	assert.Equal(t, storage.StatusCompleted, result.Document.Status)
	assert.Equal(t, "Invoice total 42", result.Document.SearchableContent.String)
	assert.True(t, strings.HasPrefix(result.Document.Recommendation.String, "Recommendation: TESSERACT performed best with 90.0% confidence"))

	var steps []int
	var stages []string
	for _, ev := range rec.events[:len(rec.events)-1] {
		steps = append(steps, ev.Current)
		stages = append(stages, ev.Stage)
		assert.Equal(t, ParseSteps, ev.Total)
	}
	assert.Equal(t, []int{1, 2, 3, 9, 15, 16, 17, 18, 19}, steps)
	assert.Equal(t, progress.StageInitializing, stages[0])
	assert.Equal(t, progress.StageOCR, stages[3])
	assert.Equal(t, progress.StageFinalizing, stages[len(stages)-1])

	final := rec.last()
	assert.True(t, final.Completed)
	require.NotNil(t, final.Success)
	assert.True(t, *final.Success)
	assert.Equal(t, "OCR processing completed successfully with 1 engines", final.Message)

	details, err := f.svc.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, details.Results, 2)
	byEngine := map[string]*storage.OCRResult{}
	for _, r := range details.Results {
		byEngine[r.Engine] = r
	}

	tess := byEngine["tesseract"]
	require.NotNil(t, tess)
	assert.Equal(t, int64(1200), tess.ProcessingTimeMS)
	assert.InDelta(t, 0.9, tess.ConfidenceScore.Float64, 1e-12)
	assert.True(t, tess.EstimatedCost.Valid)
	assert.JSONEq(t, `{"text_length":16,"pages_processed":2}`, string(tess.PageMetrics))
	assert.False(t, tess.ErrorMessage.Valid)

	easy := byEngine["easyocr"]
	require.NotNil(t, easy)
	assert.Equal(t, "reader unavailable", easy.ErrorMessage.String)
	assert.Empty(t, easy.ExtractedText)
	assert.True(t, easy.ConfidenceScore.Valid)
	assert.Zero(t, easy.ConfidenceScore.Float64)
	assert.Zero(t, easy.EstimatedCost.Float64)

	assert.Nil(t, byEngine["paddleocr"])
}

func TestParseDocument_AllEnginesFail(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc := f.storeDoc(t, "scan.png")

	results := domain.NewResults()
	for _, name := range []string{"tesseract", "easyocr"} {
		results.Set(name, domain.OCRResult{EngineName: name,
			Metadata: map[string]interface{}{domain.MetaError: "timeout after 2m0s"}})
	}
	f.parser.out = &domain.ParseOutput{FileType: domain.FileTypeImage, Results: results}

	rec := &recorder{}
	result, err := f.svc.ParseDocument(ctx, doc.ID, "alice", rec.notifier())
	require.NoError(t, err)
	assert.Equal(t, storage.StatusFailed, result.Document.Status)
	assert.Equal(t, analysis.AllFailedMessage, result.Document.Recommendation.String)
	assert.False(t, result.Document.SearchableContent.Valid)

	final := rec.last()
	assert.True(t, final.Completed)
	assert.False(t, *final.Success)

	details, err := f.svc.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, details.Results, 2)
}

func TestParseDocument_ParserError(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc := f.storeDoc(t, "broken.pdf")
	f.parser.err = errors.New("rasterizer crashed")

	rec := &recorder{}
	_, err := f.svc.ParseDocument(ctx, doc.ID, "alice", rec.notifier())
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeExtraction))

	final := rec.last()
	assert.False(t, *final.Success)
	assert.Equal(t, "Processing failed: rasterizer crashed", final.Message)

	details, err := f.svc.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusFailed, details.Document.Status)
}

func TestParseDocument_MissingDocumentOrFile(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	rec := &recorder{}
	_, err := f.svc.ParseDocument(ctx, uuid.New(), "alice", rec.notifier())
	assert.True(t, domain.IsType(err, domain.ErrorTypeNotFound))
	assert.Equal(t, "Document not found", rec.last().Message)

	doc, err := f.svc.CreateDocument(ctx, CreateRequest{Filename: "gone.pdf", FilePath: "alice/gone.pdf"}, "alice")
	require.NoError(t, err)
	rec = &recorder{}
	_, err = f.svc.ParseDocument(ctx, doc.ID, "alice", rec.notifier())
	assert.True(t, domain.IsType(err, domain.ErrorTypeNotFound))
	assert.Equal(t, "Document file not found on server", rec.last().Message)
	assert.Zero(t, f.parser.calls)
}

func TestParseDocument_UsesParseCache(t *testing.T) {
	f := newFixture(t, cache.NewParseCache(cache.NewMemoryClient(10), time.Hour))
	ctx := context.Background()
	f.parser.out = twoEngineOutput()

	first := f.storeDoc(t, "a.pdf")
	result, err := f.svc.ParseDocument(ctx, first.ID, "alice", nil)
	require.NoError(t, err)
	assert.False(t, result.Cached)

	again, err := f.svc.ParseDocument(ctx, first.ID, "alice", nil)
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, 1, f.parser.calls)
	assert.Equal(t, storage.StatusCompleted, again.Document.Status)
	assert.Equal(t, "Invoice total 42", again.Document.SearchableContent.String)
}

func TestExportParseResult(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc := f.storeDoc(t, "invoice.pdf")

	_, err := f.svc.ExportParseResult(ctx, doc.ID)
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeNotFound))
	assert.Contains(t, err.Error(), "No OCR results to export for this document.")

	_, err = f.svc.ExportParseResult(ctx, uuid.New())
	assert.True(t, domain.IsType(err, domain.ErrorTypeNotFound))

	f.parser.out = twoEngineOutput()
	_, err = f.svc.ParseDocument(ctx, doc.ID, "alice", nil)
	require.NoError(t, err)

	path, err := f.svc.ExportParseResult(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.exportDir, doc.ID.String()+"_export.csv"), path)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, exportHeader, records[0])

	byEngine := map[string][]string{}
	for _, r := range records[1:] {
		byEngine[r[0]] = r
	}
	assert.Equal(t, "1200", byEngine["tesseract"][1])
	assert.Equal(t, "0.9", byEngine["tesseract"][2])
	assert.JSONEq(t, `{"text_length":16,"pages_processed":2}`, byEngine["tesseract"][5])
	assert.Equal(t, "reader unavailable", byEngine["easyocr"][4])
	assert.Empty(t, byEngine["easyocr"][5])
	_, err = time.Parse(time.RFC3339Nano, byEngine["easyocr"][3])
	assert.NoError(t, err)
}

func TestStatisticsAndSearch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	stats, err := f.svc.Statistics(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalDocuments)
	assert.Zero(t, stats.SuccessRate)
	assert.Empty(t, stats.EnginePerformance)
	assert.Empty(t, stats.RecentProcessingTimes)

	parsed := f.storeDoc(t, "invoice.pdf")
	f.storeDoc(t, "pending.png")
	f.storeDoc(t, "other.png")
	f.parser.out = twoEngineOutput()
	_, err = f.svc.ParseDocument(ctx, parsed.ID, "alice", nil)
	require.NoError(t, err)

	stats, err = f.svc.Statistics(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalDocuments)
	assert.Equal(t, 1, stats.CompletedDocuments)
	assert.Zero(t, stats.FailedDocuments)
	assert.Equal(t, 33.33, stats.SuccessRate)
	require.Len(t, stats.EnginePerformance, 2)
	assert.Equal(t, "easyocr", stats.EnginePerformance[0].Engine)
	assert.Equal(t, "tesseract", stats.EnginePerformance[1].Engine)
	assert.InDelta(t, 0.9, stats.EnginePerformance[1].AvgConfidence, 1e-9)
	assert.ElementsMatch(t, []int64{1200, 30}, stats.RecentProcessingTimes)

	found, err := f.svc.SearchDocuments(ctx, "alice", "invoice TOTAL", 0, -3)
	require.NoError(t, err)
	assert.Equal(t, 1, found.Total)
	assert.Equal(t, DefaultSearchLimit, found.Limit)
	assert.Zero(t, found.Offset)
	require.Len(t, found.Documents, 1)
	assert.Equal(t, parsed.ID, found.Documents[0].ID)

	found, err = f.svc.SearchDocuments(ctx, "bob", "", 10, 0)
	require.NoError(t, err)
	assert.Zero(t, found.Total)
	assert.NotNil(t, found.Documents)
}
