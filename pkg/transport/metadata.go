package transport

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

const (
	ConnectionIDHeader = "X-Connection-ID"
)

// ExtractConnectionIDHeader extracts the connection id the dialer attached to the stream.
func ExtractConnectionIDHeader(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}

	values := md.Get(ConnectionIDHeader)
	if len(values) == 0 {
		return "", false
	}

	return values[0], true
}

func SetConnectionIDHeader(ctx context.Context, connectionID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, ConnectionIDHeader, connectionID)
}

// connectionIDStreamInterceptor returns a gRPC stream interceptor that adds the connection id to outgoing streams.
func connectionIDStreamInterceptor(connectionID string) grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		ctx = SetConnectionIDHeader(ctx, connectionID)
		return streamer(ctx, desc, cc, method, opts...)
	}
}
