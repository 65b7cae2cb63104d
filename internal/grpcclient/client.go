package grpcclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/example/leafdoctor/internal/diagnosis"
	"github.com/example/leafdoctor/internal/imageprocessor"
	"github.com/example/leafdoctor/internal/inference"
	"github.com/example/leafdoctor/internal/logging"
)

// DialLeafClassifier returns a ready-to-use gRPC provider for the model
// service. Dial failures wrap inference.ErrUnavailable.
func DialLeafClassifier(ctx context.Context, addr string, timeout time.Duration, logger *zap.Logger, opts ...grpc.DialOption) (*Provider, *grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	}, opts...)

	conn, err := grpc.DialContext(dialCtx, addr, dialOpts...)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.dial_leaf_classifier", "", fmt.Errorf("%w: %v", inference.ErrUnavailable, err))
		logger.Error("failed to dial leaf classifier", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}
	return NewProvider(conn, timeout, logger), conn, nil
}

// Provider calls the Classify method of a remote leaf classifier.
type Provider struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
	logger  *zap.Logger
}

// NewProvider wraps an existing connection.
func NewProvider(conn grpc.ClientConnInterface, timeout time.Duration, logger *zap.Logger) *Provider {
	return &Provider{conn: conn, timeout: timeout, logger: logger.Named("grpc_leaf_classifier")}
}

// Name implements inference.Provider.
func (p *Provider) Name() string { return "grpc" }

// Predict implements inference.Provider.
func (p *Provider) Predict(ctx context.Context, img *imageprocessor.Image) (diagnosis.ScoreVector, error) {
	if img == nil || len(img.Encoded) == 0 {
		return nil, errors.New("grpcclient: no encoded image")
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req := wrapperspb.Bytes(img.Encoded)
	resp := &structpb.ListValue{}
	if err := p.conn.Invoke(ctx, classifyMethod, req, resp); err != nil {
		wrapped := logging.NewOperationError("grpcclient.classify", "", classifyError(err))
		p.logger.Error("leaf classifier call failed", zap.Error(wrapped))
		return nil, wrapped
	}

	scores := make(diagnosis.ScoreVector, 0, len(resp.GetValues()))
	for i, v := range resp.GetValues() {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("grpcclient: score %d is not a number", i)
		}
		scores = append(scores, n.NumberValue)
	}
	return scores, nil
}

func classifyError(err error) error {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %v", inference.ErrUnavailable, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", inference.ErrUnavailable, err)
	}
	return err
}
