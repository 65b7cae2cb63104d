//go:build tflite

package inference

import (
	"context"
	"fmt"
	"sync"

	"github.com/mattn/go-tflite"
	"go.uber.org/zap"

	"github.com/example/leafdoctor/internal/diagnosis"
	"github.com/example/leafdoctor/internal/imageprocessor"
)

// TFLiteProvider runs a TensorFlow Lite model in process. The interpreter is
// not safe for concurrent use, so calls are serialized.
type TFLiteProvider struct {
	mu          sync.Mutex
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	labels      int
}

// NewTFLiteProvider loads the model at path. Load failures wrap ErrUnavailable.
func NewTFLiteProvider(path string, labels int, threads int, logger *zap.Logger) (*TFLiteProvider, error) {
	model := tflite.NewModelFromFile(path)
	if model == nil {
		return nil, fmt.Errorf("%w: cannot load tflite model %s", ErrUnavailable, path)
	}

	options := tflite.NewInterpreterOptions()
	if threads > 0 {
		options.SetNumThread(threads)
	}
	options.SetErrorReporter(func(msg string, _ interface{}) {
		logger.Warn("tflite", zap.String("message", msg))
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("%w: cannot create tflite interpreter", ErrUnavailable)
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("%w: allocate tensors: status %v", ErrUnavailable, status)
	}

	return &TFLiteProvider{
		model:       model,
		options:     options,
		interpreter: interpreter,
		labels:      labels,
	}, nil
}

// Name implements Provider.
func (p *TFLiteProvider) Name() string { return "tflite" }

// Predict implements Provider.
func (p *TFLiteProvider) Predict(ctx context.Context, img *imageprocessor.Image) (diagnosis.ScoreVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	input := p.interpreter.GetInputTensor(0)
	buf := input.Float32s()
	if len(buf) != len(img.Tensor) {
		return nil, fmt.Errorf("tflite: input tensor holds %d values, image has %d", len(buf), len(img.Tensor))
	}
	copy(buf, img.Tensor)

	if status := p.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tflite: invoke: status %v", status)
	}

	out := p.interpreter.GetOutputTensor(0).Float32s()
	scores := make(diagnosis.ScoreVector, len(out))
	for i, v := range out {
		scores[i] = float64(v)
	}
	return scores, nil
}

// Close releases the interpreter and model.
func (p *TFLiteProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interpreter.Delete()
	p.options.Delete()
	p.model.Delete()
	return nil
}
