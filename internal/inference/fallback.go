package inference

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/example/leafdoctor/internal/diagnosis"
	"github.com/example/leafdoctor/internal/imageprocessor"
	"github.com/example/leafdoctor/internal/logging"
)

const demoProviderName = "demo"

// Fallback runs the primary provider and substitutes demo scores when it is
// missing or unavailable.
type Fallback struct {
	primary Provider
	demo    *diagnosis.DemoScoreGenerator
	logger  *zap.Logger
}

// NewFallback wraps primary, which may be nil when the model failed to
// initialize.
func NewFallback(primary Provider, demo *diagnosis.DemoScoreGenerator, logger *zap.Logger) *Fallback {
	return &Fallback{
		primary: primary,
		demo:    demo,
		logger:  logger.Named("inference_fallback"),
	}
}

// Mode reports whether predictions come from a model or from demo mode.
func (f *Fallback) Mode() Source {
	if f.primary == nil {
		return SourceDemo
	}
	return SourceModel
}

// Predict returns model scores, or demo scores when the model is unavailable.
// Other provider errors are returned unchanged.
func (f *Fallback) Predict(ctx context.Context, requestID string, img *imageprocessor.Image) (*Prediction, error) {
	if f.primary == nil {
		return f.demoPrediction(), nil
	}

	scores, err := f.primary.Predict(ctx, img)
	if err == nil {
		return &Prediction{Scores: scores, Source: SourceModel, Provider: f.primary.Name()}, nil
	}

	opLogger := logging.WithOperation(f.logger, "inference.predict", requestID)
	if errors.Is(err, ErrUnavailable) {
		opLogger.Warn("model unavailable, using demo scores", zap.String("provider", f.primary.Name()), zap.Error(err))
		return f.demoPrediction(), nil
	}
	opLogger.Error("prediction failed", zap.String("provider", f.primary.Name()), zap.Error(err))
	return nil, logging.NewOperationError("inference.predict", requestID, err)
}

func (f *Fallback) demoPrediction() *Prediction {
	return &Prediction{Scores: f.demo.Generate(), Source: SourceDemo, Provider: demoProviderName}
}
