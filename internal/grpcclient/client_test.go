package grpcclient

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/example/leafdoctor/internal/imageprocessor"
	"github.com/example/leafdoctor/internal/inference"
)

type stubClassifier struct {
	scores   []interface{}
	err      error
	received []byte
}

func (s *stubClassifier) Classify(ctx context.Context, image *wrapperspb.BytesValue) (*structpb.ListValue, error) {
	s.received = image.GetValue()
	if s.err != nil {
		return nil, s.err
	}
	return structpb.NewList(s.scores)
}

func startServer(t *testing.T, srv LeafClassifierServer) *Provider {
	t.Helper()

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	RegisterLeafClassifierServer(server, srv)
	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(server.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return listener.DialContext(ctx)
	}
	provider, conn, err := DialLeafClassifier(context.Background(), "bufnet", time.Second, zap.NewNop(), grpc.WithContextDialer(dialer))
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return provider
}

func TestPredictReturnsScores(t *testing.T) {
	srv := &stubClassifier{scores: []interface{}{0.1, 0.1, 0.8}}
	provider := startServer(t, srv)

	scores, err := provider.Predict(context.Background(), &imageprocessor.Image{Encoded: []byte("png")})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(scores) != 3 || scores[2] != 0.8 {
		t.Fatalf("unexpected scores: %v", scores)
	}
	if string(srv.received) != "png" {
		t.Fatalf("expected encoded image to be sent, got %q", srv.received)
	}
}

func TestPredictMapsUnavailable(t *testing.T) {
	provider := startServer(t, &stubClassifier{err: status.Error(codes.Unavailable, "model loading")})

	_, err := provider.Predict(context.Background(), &imageprocessor.Image{Encoded: []byte("png")})
	if !errors.Is(err, inference.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestPredictKeepsOtherErrors(t *testing.T) {
	provider := startServer(t, &stubClassifier{err: status.Error(codes.InvalidArgument, "bad image")})

	_, err := provider.Predict(context.Background(), &imageprocessor.Image{Encoded: []byte("png")})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if errors.Is(err, inference.ErrUnavailable) {
		t.Fatalf("did not expect ErrUnavailable for %v", err)
	}
}

func TestPredictRejectsNonNumericScores(t *testing.T) {
	provider := startServer(t, &stubClassifier{scores: []interface{}{0.5, "high", 0.1}})

	if _, err := provider.Predict(context.Background(), &imageprocessor.Image{Encoded: []byte("png")}); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestPredictRequiresEncodedImage(t *testing.T) {
	provider := NewProvider(nil, 0, zap.NewNop())

	if _, err := provider.Predict(context.Background(), &imageprocessor.Image{}); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestDialFailureIsUnavailable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	listener := bufconn.Listen(1 << 10)
	listener.Close()
	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return listener.DialContext(ctx)
	}

	_, _, err := DialLeafClassifier(ctx, "bufnet", time.Second, zap.NewNop(), grpc.WithContextDialer(dialer))
	if !errors.Is(err, inference.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
