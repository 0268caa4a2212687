package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/troyyang/ocr-compare/internal/domain"
)

// DefaultCallTimeout bounds a single engine call when none is configured.
const DefaultCallTimeout = 120 * time.Second

type callOutcome struct {
	out Output
	err error
}

// Invoke runs one engine against one image and always returns a result.
// Errors, panics and timeouts become an empty, zero-confidence result with
// metadata.error set.
func Invoke(ctx context.Context, eng Engine, imagePath string, pageNum int, timeout time.Duration) domain.OCRResult {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan callOutcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- callOutcome{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		out, err := eng.Extract(callCtx, imagePath)
		done <- callOutcome{out: out, err: err}
	}()

	var outcome callOutcome
	select {
	case outcome = <-done:
	case <-callCtx.Done():
		outcome.err = callCtx.Err()
	}
	if outcome.err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		outcome.err = fmt.Errorf("timeout after %s", timeout)
	}
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	if outcome.err != nil {
		return Failed(eng.Name(), pageNum, elapsed, outcome.err)
	}

	conf := domain.DefaultConfidence
	if outcome.out.HasConfidence {
		conf = ClampConfidence(outcome.out.Confidence)
	}

	return domain.OCRResult{
		EngineName:       eng.Name(),
		Text:             outcome.out.Text,
		Confidence:       conf,
		ProcessingTimeMS: elapsed,
		PageNum:          pageNum,
		Metadata:         map[string]interface{}{},
	}
}

// Failed builds the data-only representation of an engine failure.
func Failed(engineName string, pageNum int, elapsedMS float64, err error) domain.OCRResult {
	return domain.OCRResult{
		EngineName:       engineName,
		Text:             "",
		Confidence:       0,
		ProcessingTimeMS: elapsedMS,
		PageNum:          pageNum,
		Metadata:         map[string]interface{}{domain.MetaError: err.Error()},
	}
}

// ClampConfidence maps any value into [0,1]; NaN becomes 0.
func ClampConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
