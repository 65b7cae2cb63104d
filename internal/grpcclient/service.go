package grpcclient

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName    = "leafdoctor.v1.LeafClassifier"
	classifyMethod = "/" + serviceName + "/Classify"
)

// LeafClassifierServer is implemented by model sidecars. Classify receives a
// 224x224 PNG and returns one score per label, in label order.
type LeafClassifierServer interface {
	Classify(ctx context.Context, image *wrapperspb.BytesValue) (*structpb.ListValue, error)
}

// RegisterLeafClassifierServer registers srv on s.
func RegisterLeafClassifierServer(s grpc.ServiceRegistrar, srv LeafClassifierServer) {
	s.RegisterService(&leafClassifierServiceDesc, srv)
}

var leafClassifierServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LeafClassifierServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Classify",
			Handler:    classifyHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "leafdoctor/v1/classifier.proto",
}

func classifyHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LeafClassifierServer).Classify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: classifyMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LeafClassifierServer).Classify(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}
