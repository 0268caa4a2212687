package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/troyyang/ocr-compare/internal/domain"
	"github.com/troyyang/ocr-compare/internal/storage"
)

var exportHeader = []string{
	"engine", "processing_time_ms", "confidence_score", "processed_at", "error_message", "page_metrics",
}

// ExportParseResult writes the document's stored results to
// {ExportDir}/{id}_export.csv and returns the file path.
func (s *Service) ExportParseResult(ctx context.Context, docID uuid.UUID) (string, error) {
	doc, err := s.getDocument(ctx, docID)
	if err != nil {
		return "", err
	}
	rows, err := s.results.ListByDocument(ctx, doc.ID)
	if err != nil {
		return "", domain.StorageError("list OCR results", err)
	}
	if len(rows) == 0 {
		return "", domain.NotFoundError("No OCR results to export for this document.", nil)
	}

	if err := os.MkdirAll(s.opts.ExportDir, 0o755); err != nil {
		return "", domain.IOError("create export directory", err)
	}
	path := filepath.Join(s.opts.ExportDir, fmt.Sprintf("%s_export.csv", doc.ID))
	if err := writeExport(path, rows); err != nil {
		return "", domain.IOError("write export", err)
	}

	s.logger.Info().
		Str("document_id", doc.ID.String()).
		Str("path", path).
		Int("rows", len(rows)).
		Msg("Exported OCR results")
	return path, nil
}

func writeExport(path string, rows []*storage.OCRResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(exportHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.Engine,
			strconv.FormatInt(r.ProcessingTimeMS, 10),
			"",
			r.ProcessedAt.UTC().Format(time.RFC3339Nano),
			r.ErrorMessage.String,
			string(r.PageMetrics),
		}
		if r.ConfidenceScore.Valid {
			record[2] = strconv.FormatFloat(r.ConfidenceScore.Float64, 'f', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
