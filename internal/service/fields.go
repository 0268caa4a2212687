package service

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/troyyang/ocr-compare/internal/storage"
)

// resultFromFields converts loosely typed OCR result fields, as decoded from
// JSON or built by a caller, into a storage row.
func resultFromFields(fields map[string]any) (*storage.OCRResult, error) {
	engine, ok := fields["engine"].(string)
	if !ok || engine == "" {
		return nil, fmt.Errorf("engine must be a non-empty string")
	}
	text, ok := fields["extracted_text"].(string)
	if !ok {
		return nil, fmt.Errorf("extracted_text must be a string")
	}
	ms, ok := toFloat(fields["processing_time_ms"])
	if !ok || ms < 0 {
		return nil, fmt.Errorf("processing_time_ms must be a non-negative number")
	}

	res := &storage.OCRResult{
		Engine:           engine,
		ExtractedText:    text,
		ProcessingTimeMS: int64(ms),
	}

	if v, present := fields["confidence_score"]; present && v != nil {
		conf, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("confidence_score must be a number")
		}
		res.ConfidenceScore = sql.NullFloat64{Float64: conf, Valid: true}
	}
	if v, present := fields["estimated_cost"]; present && v != nil {
		cost, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("estimated_cost must be a number")
		}
		res.EstimatedCost = sql.NullFloat64{Float64: cost, Valid: true}
	}
	if v, present := fields["error_message"]; present && v != nil {
		msg, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("error_message must be a string")
		}
		if msg != "" {
			res.ErrorMessage = sql.NullString{String: msg, Valid: true}
		}
	}
	if v, present := fields["page_metrics"]; present && v != nil {
		metrics, err := rawJSON(v)
		if err != nil {
			return nil, fmt.Errorf("page_metrics: %w", err)
		}
		res.PageMetrics = metrics
	}
	return res, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func rawJSON(v any) (json.RawMessage, error) {
	switch m := v.(type) {
	case json.RawMessage:
		if !json.Valid(m) {
			return nil, fmt.Errorf("invalid JSON")
		}
		return m, nil
	case string:
		if !json.Valid([]byte(m)) {
			return nil, fmt.Errorf("invalid JSON")
		}
		return json.RawMessage(m), nil
	}
	return json.Marshal(v)
}
