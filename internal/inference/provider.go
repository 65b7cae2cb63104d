// Package inference defines the boundary to image classification models and
// the demo-mode fallback used when no model can be reached.
package inference

import (
	"context"
	"errors"

	"github.com/example/leafdoctor/internal/diagnosis"
	"github.com/example/leafdoctor/internal/imageprocessor"
)

// ErrUnavailable marks a provider that cannot be reached or failed to
// initialize. Callers substitute demo scores when they see it.
var ErrUnavailable = errors.New("inference: provider unavailable")

// Source identifies where a prediction's scores came from.
type Source string

const (
	SourceModel Source = "model"
	SourceDemo  Source = "demo"
)

// Provider produces raw scores aligned to the configured label order.
type Provider interface {
	Predict(ctx context.Context, img *imageprocessor.Image) (diagnosis.ScoreVector, error)
	Name() string
}

// Prediction is a raw score vector and its origin.
type Prediction struct {
	Scores   diagnosis.ScoreVector
	Source   Source
	Provider string
}
