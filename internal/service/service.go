// Package service persists documents and their OCR results and drives
// parsing for stored documents.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/troyyang/ocr-compare/internal/analysis"
	"github.com/troyyang/ocr-compare/internal/cache"
	"github.com/troyyang/ocr-compare/internal/domain"
	"github.com/troyyang/ocr-compare/internal/observability"
	"github.com/troyyang/ocr-compare/internal/pdf"
	"github.com/troyyang/ocr-compare/internal/progress"
	"github.com/troyyang/ocr-compare/internal/storage"
)

const (
	// ParseSteps is the outer progress scale of ParseDocument.
	ParseSteps = 20

	// DefaultSearchLimit applies when a search passes no positive limit.
	DefaultSearchLimit = 50

	recentProcessingTimes = 10
)

// Parser runs every configured engine over one file.
type Parser interface {
	Parse(ctx context.Context, path string, notifier progress.Notifier) (*domain.ParseOutput, error)
	Engines() []string
}

// Options holds file locations used by the service.
type Options struct {
	UploadDir string
	ExportDir string
}

// Service implements the document operations.
type Service struct {
	logger   *observability.Logger
	docs     *storage.DocumentRepository
	results  *storage.OCRResultRepository
	parser   Parser
	analyzer *analysis.Analyzer
	cache    *cache.ParseCache
	opts     Options
}

// New creates a document service. parseCache may be nil.
func New(db storage.DB, parser Parser, analyzer *analysis.Analyzer, parseCache *cache.ParseCache,
	logger *observability.Logger, opts Options) *Service {
	if analyzer == nil {
		analyzer = analysis.New(analysis.DefaultOptions())
	}
	return &Service{
		logger:   observability.OrDefault(logger).WithOperation("document_service"),
		docs:     storage.NewDocumentRepository(db),
		results:  storage.NewOCRResultRepository(db),
		parser:   parser,
		analyzer: analyzer,
		cache:    parseCache,
		opts:     opts,
	}
}

// CreateRequest describes an uploaded file already placed under UploadDir.
type CreateRequest struct {
	Filename string
	FilePath string
	FileSize int64
}

// DocumentDetails is a document with its stored results.
type DocumentDetails struct {
	Document *storage.Document    `json:"document"`
	Results  []*storage.OCRResult `json:"ocr_results"`
}

// ParseResult is the outcome of ParseDocument.
type ParseResult struct {
	Document *storage.Document  `json:"document"`
	Output   *domain.ParseOutput `json:"output"`
	Cached   bool               `json:"cached"`
}

// Statistics summarizes a user's documents.
type Statistics struct {
	TotalDocuments        int                       `json:"total_documents"`
	CompletedDocuments    int                       `json:"completed_documents"`
	FailedDocuments       int                       `json:"failed_documents"`
	SuccessRate           float64                   `json:"success_rate"`
	EnginePerformance     []storage.EngineAggregate `json:"engine_performance"`
	RecentProcessingTimes []int64                   `json:"recent_processing_times"`
}

// SearchResult is one page of matching documents.
type SearchResult struct {
	Documents []*storage.Document `json:"documents"`
	Total     int                 `json:"total"`
	Limit     int                 `json:"limit"`
	Offset    int                 `json:"offset"`
}

// CreateDocument records an uploaded file in the pending state.
func (s *Service) CreateDocument(ctx context.Context, req CreateRequest, userID string) (*storage.Document, error) {
	if req.Filename == "" || req.FilePath == "" {
		return nil, domain.ValidationError("filename and file path are required", nil)
	}
	fileType, ok := pdf.FileTypeFor(req.Filename)
	if !ok {
		return nil, domain.ValidationError(fmt.Sprintf("Unsupported file type: %s", filepath.Ext(req.Filename)), nil)
	}

	doc := &storage.Document{
		Filename:  req.Filename,
		FileType:  string(fileType),
		FilePath:  req.FilePath,
		FileSize:  req.FileSize,
		Status:    storage.StatusPending,
		CreatedBy: userID,
		UpdatedBy: userID,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, domain.StorageError("create document", err)
	}

	s.logger.Info().
		Str("document_id", doc.ID.String()).
		Str("filename", doc.Filename).
		Str("user_id", userID).
		Msg("Document created")
	return doc, nil
}

// AddFile copies a local file into the user's upload directory and creates
// its document.
func (s *Service) AddFile(ctx context.Context, srcPath, userID string) (*storage.Document, error) {
	if _, err := pdf.NewValidator().ValidateDocumentPath(srcPath); err != nil {
		return nil, err
	}

	name := filepath.Base(srcPath)
	rel := filepath.Join(safeSegment(userID), uuid.NewString()+strings.ToLower(filepath.Ext(name)))
	dst := filepath.Join(s.opts.UploadDir, rel)
	size, err := copyFile(srcPath, dst)
	if err != nil {
		return nil, domain.IOError("store uploaded file", err)
	}

	doc, err := s.CreateDocument(ctx, CreateRequest{Filename: name, FilePath: rel, FileSize: size}, userID)
	if err != nil {
		_ = os.Remove(dst)
		return nil, err
	}
	return doc, nil
}

// GetDocument returns a document with its results.
func (s *Service) GetDocument(ctx context.Context, id uuid.UUID) (*DocumentDetails, error) {
	doc, err := s.getDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	results, err := s.results.ListByDocument(ctx, id)
	if err != nil {
		return nil, domain.StorageError("list OCR results", err)
	}
	return &DocumentDetails{Document: doc, Results: results}, nil
}

// UpdateDocument applies the non-nil fields of upd.
func (s *Service) UpdateDocument(ctx context.Context, id uuid.UUID, upd storage.DocumentUpdate, userID string) (*storage.Document, error) {
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, domain.ValidationError(fmt.Sprintf("invalid status: %s", *upd.Status), nil)
	}
	doc, err := s.docs.Update(ctx, id, upd, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.NotFoundError("Document not found.", err)
	}
	if err != nil {
		return nil, domain.StorageError("update document", err)
	}
	return doc, nil
}

// ChangeStatus moves a document to status.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, status storage.ProcessingStatus, userID string) (*storage.Document, error) {
	return s.UpdateDocument(ctx, id, storage.DocumentUpdate{Status: &status}, userID)
}

// DeleteDocument removes a document, its results and its uploaded file.
func (s *Service) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	doc, err := s.getDocument(ctx, id)
	if err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		return domain.StorageError("delete document", err)
	}
	if err := os.Remove(filepath.Join(s.opts.UploadDir, doc.FilePath)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn().Err(err).Str("document_id", id.String()).Msg("Failed to remove uploaded file")
	}
	return nil
}

// AddOCRResult stores one engine result given as loosely typed fields and
// marks the document completed when the result carries no error.
func (s *Service) AddOCRResult(ctx context.Context, docID uuid.UUID, fields map[string]any, userID string) (*storage.OCRResult, error) {
	for _, key := range []string{"engine", "extracted_text", "processing_time_ms"} {
		if _, ok := fields[key]; !ok {
			return nil, domain.ValidationError("Missing required OCR result fields", nil)
		}
	}
	res, err := resultFromFields(fields)
	if err != nil {
		return nil, domain.ValidationError("Invalid OCR data format", err)
	}

	doc, err := s.getDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	res.DocumentID = doc.ID
	res.CreatedBy = userID
	res.UpdatedBy = userID
	if err := s.results.Replace(ctx, res); err != nil {
		return nil, domain.StorageError("save OCR result", err)
	}

	if doc.Status != storage.StatusCompleted && !res.ErrorMessage.Valid {
		if _, err := s.ChangeStatus(ctx, doc.ID, storage.StatusCompleted, userID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// ParseDocument runs every engine over a stored document, saves one row per
// engine and records the recommendation. The notifier always receives a
// Complete call.
func (s *Service) ParseDocument(ctx context.Context, docID uuid.UUID, userID string, notifier progress.Notifier) (*ParseResult, error) {
	notifier = progress.OrNoop(notifier)
	ctx = observability.ContextWithRunID(ctx, uuid.NewString())
	logger := s.logger.ForRun(ctx).With().Str("document_id", docID.String()).Logger()

	doc, err := s.docs.GetByID(ctx, docID)
	if errors.Is(err, storage.ErrNotFound) {
		notifier.Complete(ctx, false, "Document not found")
		return nil, domain.NotFoundError("Document not found.", err)
	}
	if err != nil {
		notifier.Complete(ctx, false, fmt.Sprintf("Processing failed: %v", err))
		return nil, domain.StorageError("load document", err)
	}

	path := filepath.Join(s.opts.UploadDir, doc.FilePath)
	if _, err := os.Stat(path); err != nil {
		notifier.Complete(ctx, false, "Document file not found on server")
		return nil, domain.NotFoundError("Document file not found on server.", err)
	}

	result, err := s.parseStored(ctx, doc, path, userID, notifier, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Document processing failed")
		failed := storage.StatusFailed
		if _, uerr := s.docs.Update(ctx, doc.ID, storage.DocumentUpdate{Status: &failed}, userID); uerr != nil {
			logger.Warn().Err(uerr).Msg("Failed to mark document as failed")
		}
		notifier.Complete(ctx, false, fmt.Sprintf("Processing failed: %v", err))
		return nil, domain.ExtractionError("Processing failed", err)
	}
	return result, nil
}

func (s *Service) parseStored(ctx context.Context, doc *storage.Document, path, userID string,
	notifier progress.Notifier, logger *observability.Logger) (*ParseResult, error) {
	notifier.Update(ctx, progress.StageInitializing, 1, ParseSteps, "Initializing OCR engines...")
	processing := storage.StatusProcessing
	if _, err := s.docs.Update(ctx, doc.ID, storage.DocumentUpdate{Status: &processing}, userID); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}

	notifier.Update(ctx, progress.StageSetup, 2, ParseSteps, "Setting up OCR parser...")
	notifier.Update(ctx, progress.StageParsing, 3, ParseSteps, "Starting document parsing...")
	out, cached, err := s.parse(ctx, path, progress.Range{N: notifier, From: 3, To: 15, Of: ParseSteps}, logger)
	if err != nil {
		return nil, err
	}

	notifier.Update(ctx, progress.StageResults, 16, ParseSteps, "Processing OCR results...")
	notifier.Update(ctx, progress.StageSaving, 17, ParseSteps, "Saving OCR results to database...")
	succeeded, err := s.saveResults(ctx, doc.ID, out.Results, userID)
	if err != nil {
		return nil, err
	}

	notifier.Update(ctx, progress.StageRecommendations, 18, ParseSteps, "Generating recommendations...")
	recommendation := s.analyzer.DocumentRecommendation(out.Results)

	notifier.Update(ctx, progress.StageFinalizing, 19, ParseSteps, "Finalizing document updates...")
	status := storage.StatusFailed
	if succeeded > 0 {
		status = storage.StatusCompleted
	}
	upd := storage.DocumentUpdate{Status: &status, Recommendation: &recommendation}
	if best := bestText(out); best != "" {
		upd.SearchableContent = &best
	}
	updated, err := s.docs.Update(ctx, doc.ID, upd, userID)
	if err != nil {
		return nil, fmt.Errorf("finalize document: %w", err)
	}

	logger.Info().
		Str("status", string(status)).
		Int("engines", out.Results.Len()).
		Int("succeeded", succeeded).
		Bool("cached", cached).
		Msg("Document processing finished")

	if succeeded > 0 {
		notifier.Complete(ctx, true, fmt.Sprintf("OCR processing completed successfully with %d engines", succeeded))
	} else {
		notifier.Complete(ctx, false, "All OCR engines failed to process this document")
	}
	return &ParseResult{Document: updated, Output: out, Cached: cached}, nil
}

// parse consults the parse cache before running the parser.
func (s *Service) parse(ctx context.Context, path string, notifier progress.Notifier,
	logger *observability.Logger) (*domain.ParseOutput, bool, error) {
	var key string
	if s.cache.Enabled() {
		digest, err := cache.FileDigest(path)
		if err != nil {
			logger.Warn().Err(err).Msg("Skipping parse cache")
		} else {
			key = cache.ParseKey(digest, s.parser.Engines())
			if out, ok := s.cache.Get(ctx, key); ok && out.Results != nil {
				logger.Debug().Str("key", key).Msg("Parse cache hit")
				return out, true, nil
			}
		}
	}

	out, err := s.parser.Parse(ctx, path, notifier)
	if err != nil {
		return nil, false, err
	}
	if out.Results == nil {
		out.Results = domain.NewResults()
	}
	if key != "" {
		if err := s.cache.Put(ctx, key, out); err != nil {
			logger.Warn().Err(err).Msg("Failed to cache parse output")
		}
	}
	return out, false, nil
}

// saveResults replaces each engine's row and returns how many engines
// produced text without error. Engines with neither text nor error are
// not stored.
func (s *Service) saveResults(ctx context.Context, docID uuid.UUID, results *domain.Results, userID string) (int, error) {
	var (
		succeeded int
		saveErr   error
	)
	now := time.Now().UTC()
	results.Each(func(name string, r domain.OCRResult) bool {
		row := &storage.OCRResult{
			DocumentID:       docID,
			Engine:           name,
			ProcessingTimeMS: int64(r.ProcessingTimeMS),
			ProcessedAt:      now,
			CreatedBy:        userID,
			UpdatedBy:        userID,
		}
		switch {
		case r.Failed():
			row.ErrorMessage = sql.NullString{String: r.Error(), Valid: true}
			row.ConfidenceScore = sql.NullFloat64{Valid: true}
			row.EstimatedCost = sql.NullFloat64{Valid: true}
		case r.Text != "":
			succeeded++
			pages, ok := r.MetaInt(domain.MetaPagesProcessed)
			if !ok {
				pages = 1
			}
			metrics, err := json.Marshal(map[string]int{"text_length": r.TextLength(), "pages_processed": pages})
			if err != nil {
				saveErr = err
				return false
			}
			row.ExtractedText = r.Text
			row.ConfidenceScore = sql.NullFloat64{Float64: r.Confidence, Valid: true}
			row.EstimatedCost = sql.NullFloat64{Float64: s.analyzer.EstimatedCost(name, r), Valid: true}
			row.PageMetrics = metrics
		default:
			return true
		}
		if err := s.results.Replace(ctx, row); err != nil {
			saveErr = fmt.Errorf("save %s result: %w", name, err)
			return false
		}
		return true
	})
	return succeeded, saveErr
}

// bestText is the selected result's text, or the most confident successful
// engine's text when nothing was selected.
func bestText(out *domain.ParseOutput) string {
	if out.BestResult != nil && out.BestResult.Text != "" {
		return out.BestResult.Text
	}
	var (
		text string
		conf = -1.0
	)
	out.Results.Each(func(_ string, r domain.OCRResult) bool {
		if r.Succeeded() && r.Confidence > conf {
			text, conf = r.Text, r.Confidence
		}
		return true
	})
	return text
}

// Statistics summarizes the user's documents and engine averages.
func (s *Service) Statistics(ctx context.Context, userID string) (*Statistics, error) {
	counts, err := s.docs.CountByStatus(ctx, userID)
	if err != nil {
		return nil, domain.StorageError("count documents", err)
	}
	aggs, err := s.results.EngineAggregates(ctx, userID)
	if err != nil {
		return nil, domain.StorageError("aggregate engines", err)
	}
	recent, err := s.results.RecentProcessingTimes(ctx, userID, recentProcessingTimes)
	if err != nil {
		return nil, domain.StorageError("recent processing times", err)
	}
	if aggs == nil {
		aggs = []storage.EngineAggregate{}
	}

	stats := &Statistics{
		TotalDocuments:        counts.Total(),
		CompletedDocuments:    counts[storage.StatusCompleted],
		FailedDocuments:       counts[storage.StatusFailed],
		EnginePerformance:     aggs,
		RecentProcessingTimes: recent,
	}
	if stats.TotalDocuments > 0 {
		rate := float64(stats.CompletedDocuments) / float64(stats.TotalDocuments) * 100
		stats.SuccessRate = math.Round(rate*100) / 100
	}
	return stats, nil
}

// SearchDocuments pages through the user's documents matching query.
func (s *Service) SearchDocuments(ctx context.Context, userID, query string, limit, offset int) (*SearchResult, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if offset < 0 {
		offset = 0
	}
	docs, total, err := s.docs.Search(ctx, userID, query, limit, offset)
	if err != nil {
		return nil, domain.StorageError("search documents", err)
	}
	if docs == nil {
		docs = []*storage.Document{}
	}
	return &SearchResult{Documents: docs, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *Service) getDocument(ctx context.Context, id uuid.UUID) (*storage.Document, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.NotFoundError("Document not found.", err)
	}
	if err != nil {
		return nil, domain.StorageError("load document", err)
	}
	return doc, nil
}

func copyFile(src, dst string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return 0, err
	}
	return n, nil
}

// safeSegment keeps a user id usable as a single path element.
func safeSegment(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
