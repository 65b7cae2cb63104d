//go:build !tflite

package inference

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/leafdoctor/internal/diagnosis"
	"github.com/example/leafdoctor/internal/imageprocessor"
)

// TFLiteProvider is unavailable in builds without the tflite tag.
type TFLiteProvider struct{}

// NewTFLiteProvider always fails with ErrUnavailable; rebuild with -tags tflite.
func NewTFLiteProvider(path string, labels int, threads int, logger *zap.Logger) (*TFLiteProvider, error) {
	return nil, fmt.Errorf("%w: built without tflite support (model %s)", ErrUnavailable, path)
}

// Name implements Provider.
func (p *TFLiteProvider) Name() string { return "tflite" }

// Predict implements Provider.
func (p *TFLiteProvider) Predict(ctx context.Context, img *imageprocessor.Image) (diagnosis.ScoreVector, error) {
	return nil, ErrUnavailable
}

// Close implements io.Closer.
func (p *TFLiteProvider) Close() error { return nil }
