package inference

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/example/leafdoctor/internal/diagnosis"
	"github.com/example/leafdoctor/internal/imageprocessor"
	"github.com/example/leafdoctor/internal/logging"
)

type stubProvider struct {
	scores diagnosis.ScoreVector
	err    error
	calls  int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Predict(ctx context.Context, img *imageprocessor.Image) (diagnosis.ScoreVector, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.scores, nil
}

type halfSource struct{}

func (halfSource) Float64() float64 { return 0.5 }

func newDemo(t *testing.T) *diagnosis.DemoScoreGenerator {
	t.Helper()
	gen, err := diagnosis.NewDemoScoreGenerator(diagnosis.DefaultDemoWeights(), halfSource{})
	if err != nil {
		t.Fatalf("failed to build demo generator: %v", err)
	}
	return gen
}

func TestFallbackUsesModelScores(t *testing.T) {
	primary := &stubProvider{scores: diagnosis.ScoreVector{0.1, 0.1, 0.8}}
	f := NewFallback(primary, newDemo(t), zap.NewNop())

	pred, err := f.Predict(context.Background(), "req-1", &imageprocessor.Image{})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if pred.Source != SourceModel || pred.Provider != "stub" {
		t.Fatalf("unexpected source %s/%s", pred.Source, pred.Provider)
	}
	if f.Mode() != SourceModel {
		t.Fatalf("expected model mode, got %s", f.Mode())
	}
}

func TestFallbackSubstitutesDemoWhenUnavailable(t *testing.T) {
	primary := &stubProvider{err: fmt.Errorf("dial: %w", ErrUnavailable)}
	f := NewFallback(primary, newDemo(t), zap.NewNop())

	pred, err := f.Predict(context.Background(), "req-2", &imageprocessor.Image{})
	if err != nil {
		t.Fatalf("expected demo substitution, got error: %v", err)
	}
	if pred.Source != SourceDemo {
		t.Fatalf("expected demo source, got %s", pred.Source)
	}
	want := diagnosis.ScoreVector{0.7, 0.2, 0.1}
	for i := range want {
		if pred.Scores[i] != want[i] {
			t.Fatalf("unexpected demo scores %v", pred.Scores)
		}
	}
}

func TestFallbackWithoutPrimaryIsDemoMode(t *testing.T) {
	f := NewFallback(nil, newDemo(t), zap.NewNop())

	if f.Mode() != SourceDemo {
		t.Fatalf("expected demo mode, got %s", f.Mode())
	}
	pred, err := f.Predict(context.Background(), "req-3", nil)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if pred.Source != SourceDemo {
		t.Fatalf("expected demo source, got %s", pred.Source)
	}
}

func TestFallbackReturnsOtherErrors(t *testing.T) {
	primary := &stubProvider{err: errors.New("bad tensor")}
	f := NewFallback(primary, newDemo(t), zap.NewNop())

	_, err := f.Predict(context.Background(), "req-4", &imageprocessor.Image{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var opErr *logging.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.RequestID != "req-4" {
		t.Fatalf("unexpected request id: %s", opErr.RequestID)
	}
}

func TestTFLiteStubIsUnavailable(t *testing.T) {
	_, err := NewTFLiteProvider("missing.tflite", 3, 1, zap.NewNop())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
