// Package engine wraps OCR backends behind one extraction contract and keeps
// the set of engines that were actually initialised for a run.
package engine

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by a Factory when its backend cannot be used
// (missing endpoint, missing key, missing native library).
var ErrUnavailable = errors.New("engine unavailable")

// Engine extracts text from one image file.
type Engine interface {
	Name() string
	Extract(ctx context.Context, imagePath string) (Output, error)
}

// Factory builds an engine once per registry.
type Factory func() (Engine, error)

// Output is the normalised native output of one engine call.
type Output struct {
	Text       string
	Confidence float64
	// HasConfidence is false when the backend reported nothing usable.
	HasConfidence bool
	Details       []WordDetail
}

// WordDetail is one recognised unit with its bounding box as
// [left, top, right, bottom] or a flattened polygon.
type WordDetail struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Box        []float64 `json:"box,omitempty"`
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
