package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Queries bind positional "$n" parameters. SQLite numbers "$n" by first
// appearance, so every statement introduces them in ascending order.

const documentColumns = `id, filename, file_type, file_path, file_size, status, searchable_content,
	recommendation, upload_timestamp, created_by, updated_by, created_at, updated_at`

// DocumentRepository handles document CRUD operations.
type DocumentRepository struct {
	db DB
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(db DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a new document in the pending state.
func (r *DocumentRepository) Create(ctx context.Context, doc *Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.Status == "" {
		doc.Status = StatusPending
	}
	now := time.Now().UTC()
	if doc.UploadTimestamp.IsZero() {
		doc.UploadTimestamp = now
	}
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.UpdatedBy == "" {
		doc.UpdatedBy = doc.CreatedBy
	}

	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.Filename, doc.FileType, doc.FilePath, doc.FileSize, doc.Status,
		doc.SearchableContent, doc.Recommendation, doc.UploadTimestamp,
		doc.CreatedBy, doc.UpdatedBy, doc.CreatedAt, doc.UpdatedAt,
	)
	return err
}

// GetByID retrieves a document by ID.
func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return doc, err
}

// Update applies the non-nil fields of upd and returns the stored row.
func (r *DocumentRepository) Update(ctx context.Context, id uuid.UUID, upd DocumentUpdate, userID string) (*Document, error) {
	var (
		sets []string
		args []interface{}
	)
	add := func(column string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Filename != nil {
		add("filename", *upd.Filename)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.SearchableContent != nil {
		add("searchable_content", *upd.SearchableContent)
	}
	if upd.Recommendation != nil {
		add("recommendation", *upd.Recommendation)
	}
	add("updated_by", userID)
	add("updated_at", time.Now().UTC())
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE documents SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes a document and its OCR results.
func (r *DocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM ocr_results WHERE document_id = $1`, id); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Search matches query case-insensitively against the filename, searchable
// content and recommendation of the owner's documents, newest first. It
// returns one page of documents and the total match count.
func (r *DocumentRepository) Search(ctx context.Context, owner, query string, limit, offset int) ([]*Document, int, error) {
	where := `WHERE created_by = $1`
	args := []interface{}{owner}
	if q := strings.TrimSpace(query); q != "" {
		args = append(args, "%"+strings.ToLower(q)+"%")
		where += ` AND (LOWER(filename) LIKE $2
			OR LOWER(COALESCE(searchable_content, '')) LIKE $2
			OR LOWER(COALESCE(recommendation, '')) LIKE $2)`
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pageArgs := append(append([]interface{}{}, args...), limit, offset)
	pageQuery := fmt.Sprintf(`SELECT %s FROM documents %s ORDER BY upload_timestamp DESC LIMIT $%d OFFSET $%d`,
		documentColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, pageQuery, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	return docs, total, rows.Err()
}

// CountByStatus counts the owner's documents per status.
func (r *DocumentRepository) CountByStatus(ctx context.Context, owner string) (StatusCounts, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM documents WHERE created_by = $1 GROUP BY status`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := StatusCounts{}
	for rows.Next() {
		var (
			status ProcessingStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*Document, error) {
	doc := &Document{}
	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.FileType, &doc.FilePath, &doc.FileSize, &doc.Status,
		&doc.SearchableContent, &doc.Recommendation, &doc.UploadTimestamp,
		&doc.CreatedBy, &doc.UpdatedBy, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

const resultColumns = `id, document_id, engine, extracted_text, confidence_score, processing_time_ms,
	page_metrics, estimated_cost, processed_at, error_message, created_by, updated_by`

// OCRResultRepository handles stored engine results.
type OCRResultRepository struct {
	db DB
}

// NewOCRResultRepository creates a new OCR result repository.
func NewOCRResultRepository(db DB) *OCRResultRepository {
	return &OCRResultRepository{db: db}
}

type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Replace stores res as the current result of its engine for the document,
// removing any earlier row for the same pair.
func (r *OCRResultRepository) Replace(ctx context.Context, res *OCRResult) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	if res.ProcessedAt.IsZero() {
		res.ProcessedAt = time.Now().UTC()
	}
	if res.UpdatedBy == "" {
		res.UpdatedBy = res.CreatedBy
	}

	b, ok := r.db.(txBeginner)
	if !ok {
		return replaceResult(ctx, r.db, res)
	}
	tx, err := b.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := replaceResult(ctx, tx, res); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func replaceResult(ctx context.Context, db DB, res *OCRResult) error {
	if _, err := db.ExecContext(ctx,
		`DELETE FROM ocr_results WHERE document_id = $1 AND engine = $2`, res.DocumentID, res.Engine); err != nil {
		return err
	}

	var metrics sql.NullString
	if len(res.PageMetrics) > 0 {
		metrics = sql.NullString{String: string(res.PageMetrics), Valid: true}
	}
	query := `
		INSERT INTO ocr_results (` + resultColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := db.ExecContext(ctx, query,
		res.ID, res.DocumentID, res.Engine, res.ExtractedText, res.ConfidenceScore, res.ProcessingTimeMS,
		metrics, res.EstimatedCost, res.ProcessedAt, res.ErrorMessage, res.CreatedBy, res.UpdatedBy,
	)
	return err
}

// ListByDocument returns a document's results in processing order.
func (r *OCRResultRepository) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*OCRResult, error) {
	query := `SELECT ` + resultColumns + ` FROM ocr_results WHERE document_id = $1 ORDER BY processed_at, engine`
	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*OCRResult
	for rows.Next() {
		res := &OCRResult{}
		var metrics sql.NullString
		if err := rows.Scan(
			&res.ID, &res.DocumentID, &res.Engine, &res.ExtractedText, &res.ConfidenceScore,
			&res.ProcessingTimeMS, &metrics, &res.EstimatedCost, &res.ProcessedAt,
			&res.ErrorMessage, &res.CreatedBy, &res.UpdatedBy,
		); err != nil {
			return nil, err
		}
		if metrics.Valid && metrics.String != "" {
			res.PageMetrics = []byte(metrics.String)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// EngineAggregates averages confidence and time per engine over the owner's
// completed documents.
func (r *OCRResultRepository) EngineAggregates(ctx context.Context, owner string) ([]EngineAggregate, error) {
	query := `
		SELECT r.engine, AVG(r.confidence_score), AVG(r.processing_time_ms), COUNT(r.id)
		FROM ocr_results r
		JOIN documents d ON d.id = r.document_id
		WHERE d.created_by = $1 AND d.status = $2
		GROUP BY r.engine
		ORDER BY r.engine
	`
	rows, err := r.db.QueryContext(ctx, query, owner, StatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EngineAggregate
	for rows.Next() {
		var (
			agg        EngineAggregate
			conf, elapsed sql.NullFloat64
		)
		if err := rows.Scan(&agg.Engine, &conf, &elapsed, &agg.TotalProcessed); err != nil {
			return nil, err
		}
		agg.AvgConfidence = conf.Float64
		agg.AvgProcessingTimeMS = elapsed.Float64
		out = append(out, agg)
	}
	return out, rows.Err()
}

// RecentProcessingTimes returns the latest processing times over the owner's
// completed documents, newest first.
func (r *OCRResultRepository) RecentProcessingTimes(ctx context.Context, owner string, limit int) ([]int64, error) {
	query := `
		SELECT r.processing_time_ms
		FROM ocr_results r
		JOIN documents d ON d.id = r.document_id
		WHERE d.created_by = $1 AND d.status = $2
		ORDER BY r.processed_at DESC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, owner, StatusCompleted, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	times := []int64{}
	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return nil, err
		}
		times = append(times, ms)
	}
	return times, rows.Err()
}
