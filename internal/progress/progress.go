// Package progress reports document processing progress to pluggable sinks.
// Notifications are advisory: sinks log and swallow their own failures.
package progress

import (
	"context"
	"math"
	"time"
)

// Stage names used by the orchestrator and the document service.
const (
	StageInitializing    = "initializing"
	StageSetup           = "setup"
	StageParsing         = "parsing"
	StageClassifying     = "classifying"
	StageDigital         = "digital_extracting"
	StageRasterizing     = "rasterizing"
	StageOCR             = "ocr_extracting"
	StageAggregating     = "aggregating"
	StageResults         = "processing_results"
	StageSaving          = "saving_results"
	StageRecommendations = "generating_recommendations"
	StageFinalizing      = "finalizing"
	StageCompleted       = "completed"
	StageFailed          = "failed"
)

// Notifier receives progress for one document.
type Notifier interface {
	Update(ctx context.Context, stage string, current, total int, message string)
	Complete(ctx context.Context, success bool, message string)
}

// Event is the payload delivered to sinks.
type Event struct {
	DocumentID string    `json:"document_id"`
	Stage      string    `json:"stage"`
	Current    int       `json:"current"`
	Total      int       `json:"total"`
	Percentage float64   `json:"percentage"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	Completed  bool      `json:"completed,omitempty"`
	Success    *bool     `json:"success,omitempty"`
}

// Percentage returns current/total on a 0-100 scale rounded to one decimal.
func Percentage(current, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(current)/float64(total)*1000) / 10
}

// NewUpdateEvent builds an in-flight event.
func NewUpdateEvent(documentID, stage string, current, total int, message string) Event {
	return Event{
		DocumentID: documentID,
		Stage:      stage,
		Current:    current,
		Total:      total,
		Percentage: Percentage(current, total),
		Message:    message,
		Timestamp:  time.Now().UTC(),
	}
}

// NewCompleteEvent builds the terminal event.
func NewCompleteEvent(documentID string, success bool, message string) Event {
	stage := StageCompleted
	if !success {
		stage = StageFailed
	}
	return Event{
		DocumentID: documentID,
		Stage:      stage,
		Current:    100,
		Total:      100,
		Percentage: 100,
		Message:    message,
		Timestamp:  time.Now().UTC(),
		Completed:  true,
		Success:    &success,
	}
}

// OrNoop returns n, or a Noop when n is nil.
func OrNoop(n Notifier) Notifier {
	if n == nil {
		return Noop{}
	}
	return n
}

// Noop discards everything.
type Noop struct{}

func (Noop) Update(context.Context, string, int, int, string) {}
func (Noop) Complete(context.Context, bool, string) {}

// Func adapts a function to a Notifier.
type Func struct {
	DocumentID string
	Fn         func(Event)
}

func (f Func) Update(_ context.Context, stage string, current, total int, message string) {
	if f.Fn != nil {
		f.Fn(NewUpdateEvent(f.DocumentID, stage, current, total, message))
	}
}

func (f Func) Complete(_ context.Context, success bool, message string) {
	if f.Fn != nil {
		f.Fn(NewCompleteEvent(f.DocumentID, success, message))
	}
}

// Multi fans out to several notifiers in order.
type Multi []Notifier

func (m Multi) Update(ctx context.Context, stage string, current, total int, message string) {
	for _, n := range m {
		if n != nil {
			n.Update(ctx, stage, current, total, message)
		}
	}
}

func (m Multi) Complete(ctx context.Context, success bool, message string) {
	for _, n := range m {
		if n != nil {
			n.Complete(ctx, success, message)
		}
	}
}

// Range maps a nested component's steps onto [From, To] of an outer scale
// of Of steps. Complete is swallowed; the outer owner finishes the run.
type Range struct {
	N        Notifier
	From, To int
	Of       int
}

func (r Range) Update(ctx context.Context, stage string, current, total int, message string) {
	if r.N == nil {
		return
	}
	step := r.From
	if total > 0 {
		if current > total {
			current = total
		}
		step += current * (r.To - r.From) / total
	}
	r.N.Update(ctx, stage, step, r.Of, message)
}

func (r Range) Complete(context.Context, bool, string) {}
