// Package storage persists documents and their per-engine OCR results.
package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ProcessingStatus is the lifecycle state of a document.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Valid reports whether s is a known status.
func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Document is an uploaded file tracked by the service.
type Document struct {
	ID                uuid.UUID        `json:"id"`
	Filename          string           `json:"filename"`
	FileType          string           `json:"file_type"`
	FilePath          string           `json:"file_path"`
	FileSize          int64            `json:"file_size"`
	Status            ProcessingStatus `json:"status"`
	SearchableContent sql.NullString   `json:"-"`
	Recommendation    sql.NullString   `json:"-"`
	UploadTimestamp   time.Time        `json:"upload_timestamp"`
	CreatedBy         string           `json:"created_by"`
	UpdatedBy         string           `json:"updated_by"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// OCRResult is one engine's stored outcome for a document.
type OCRResult struct {
	ID               uuid.UUID       `json:"id"`
	DocumentID       uuid.UUID       `json:"document_id"`
	Engine           string          `json:"engine"`
	ExtractedText    string          `json:"extracted_text"`
	ConfidenceScore  sql.NullFloat64 `json:"-"`
	ProcessingTimeMS int64           `json:"processing_time_ms"`
	PageMetrics      json.RawMessage `json:"page_metrics,omitempty"`
	EstimatedCost    sql.NullFloat64 `json:"-"`
	ErrorMessage     sql.NullString  `json:"-"`
	ProcessedAt      time.Time       `json:"processed_at"`
	CreatedBy        string          `json:"created_by"`
	UpdatedBy        string          `json:"updated_by"`
}

// DocumentUpdate carries the optional fields of an update. Nil fields are
// left untouched.
type DocumentUpdate struct {
	Filename          *string
	Status            *ProcessingStatus
	SearchableContent *string
	Recommendation    *string
}

// StatusCounts is the number of documents per status for one owner.
type StatusCounts map[ProcessingStatus]int

// Total sums every status.
func (c StatusCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// EngineAggregate is per-engine averages over completed documents.
type EngineAggregate struct {
	Engine              string  `json:"engine"`
	AvgConfidence       float64 `json:"avg_confidence"`
	AvgProcessingTimeMS float64 `json:"avg_processing_time_ms"`
	TotalProcessed      int     `json:"total_processed"`
}
