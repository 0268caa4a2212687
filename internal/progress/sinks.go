package progress

import (
	"context"
	"time"

	"github.com/troyyang/ocr-compare/internal/cache"
	"github.com/troyyang/ocr-compare/internal/observability"
)

// Log writes progress as structured log lines.
type Log struct {
	documentID string
	logger     *observability.Logger
}

// NewLog creates a log sink for documentID.
func NewLog(documentID string, logger *observability.Logger) *Log {
	return &Log{documentID: documentID, logger: observability.OrDefault(logger)}
}

func (l *Log) Update(_ context.Context, stage string, current, total int, message string) {
	l.logger.Debug().
		Str("document_id", l.documentID).
		Str("stage", stage).
		Int("current", current).
		Int("total", total).
		Float64("percentage", Percentage(current, total)).
		Msg(message)
}

func (l *Log) Complete(_ context.Context, success bool, message string) {
	ev := l.logger.Info()
	if !success {
		ev = l.logger.Warn()
	}
	ev.Str("document_id", l.documentID).
		Bool("success", success).
		Msg(message)
}

// DefaultPublishTimeout bounds a single publish.
const DefaultPublishTimeout = 2 * time.Second

// Redis publishes JSON events on "{channel}:{document_id}".
type Redis struct {
	documentID string
	channel    string
	publisher  cache.Publisher
	logger     *observability.Logger
	timeout    time.Duration
}

// NewRedis creates a publishing sink.
func NewRedis(publisher cache.Publisher, channel, documentID string, logger *observability.Logger) *Redis {
	return &Redis{
		documentID: documentID,
		channel:    channel,
		publisher:  publisher,
		logger:     observability.OrDefault(logger),
		timeout:    DefaultPublishTimeout,
	}
}

// Channel is the channel name events go to, before the client prefix.
func (r *Redis) Channel() string {
	return r.channel + ":" + r.documentID
}

func (r *Redis) Update(ctx context.Context, stage string, current, total int, message string) {
	r.publish(ctx, NewUpdateEvent(r.documentID, stage, current, total, message))
}

func (r *Redis) Complete(ctx context.Context, success bool, message string) {
	r.publish(ctx, NewCompleteEvent(r.documentID, success, message))
}

func (r *Redis) publish(ctx context.Context, ev Event) {
	// a cancelled parent must not suppress the terminal event
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if err := r.publisher.Publish(pubCtx, r.Channel(), ev); err != nil {
		r.logger.Warn().
			Str("document_id", r.documentID).
			Str("stage", ev.Stage).
			Err(err).
			Msg("Failed to publish progress")
	}
}
