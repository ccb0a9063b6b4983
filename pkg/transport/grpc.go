package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/peer"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const streamMethod = "/collab.transport.Transport/Stream"

// streamServer is the handler type of the frame stream service.
type streamServer interface {
	serveStream(stream grpc.ServerStream) error
}

var streamServiceDesc = grpc.ServiceDesc{
	ServiceName: "collab.transport.Transport",
	HandlerType: (*streamServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       streamHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "collab/transport.proto",
}

func streamHandler(srv any, stream grpc.ServerStream) error {
	return srv.(streamServer).serveStream(stream)
}

// GRPCServer accepts frame streams into a Manager. Every bidirectional stream becomes one socket.
type GRPCServer struct {
	m *Manager
}

func NewGRPCServer(m *Manager) *GRPCServer {
	return &GRPCServer{m: m}
}

// Register adds the frame stream service to s.
func (g *GRPCServer) Register(s *grpc.Server) {
	s.RegisterService(&streamServiceDesc, g)
}

func (g *GRPCServer) serveStream(stream grpc.ServerStream) error {
	ctx := stream.Context()
	connectionID, ok := ExtractConnectionIDHeader(ctx)
	if !ok {
		return fmt.Errorf("missing connection id in the headers")
	}

	remote := connectionID
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		remote = p.Addr.String()
	}
	glog.Infof("accepted stream %s from %s", connectionID, remote)

	conn := &grpcServerConn{
		stream: stream,
		remote: remote,
		done:   make(chan struct{}),
	}
	g.m.Accept(conn)

	// Returning ends the stream, so stay until the socket is done with it.
	select {
	case <-conn.done:
	case <-ctx.Done():
	}
	return nil
}

type grpcServerConn struct {
	stream grpc.ServerStream
	remote string
	once   sync.Once
	done   chan struct{}
}

func (c *grpcServerConn) ReadFrame() ([]byte, error) {
	msg := &wrapperspb.BytesValue{}
	if err := c.stream.RecvMsg(msg); err != nil {
		return nil, err
	}
	return msg.GetValue(), nil
}

func (c *grpcServerConn) WriteFrame(frame []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	return c.stream.SendMsg(wrapperspb.Bytes(frame))
}

func (c *grpcServerConn) Close() error {
	c.once.Do(func() {
		close(c.done)
	})
	return nil
}

func (c *grpcServerConn) RemoteAddr() string {
	return c.remote
}

// DialGRPC returns a DialFunc that opens a frame stream to target. Every dial uses a fresh
// connection id, sent in the stream headers.
func DialGRPC(target string, opts ...grpc.DialOption) DialFunc {
	return func(ctx context.Context) (FrameConn, error) {
		connectionID := uuid.NewString()
		dialOpts := append([]grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithStreamInterceptor(connectionIDStreamInterceptor(connectionID)),
		}, opts...)

		cc, err := grpc.DialContext(ctx, target, dialOpts...)
		if err != nil {
			return nil, fmt.Errorf("error dialing %s: %w", target, err)
		}

		// The stream outlives the dial context.
		streamCtx, cancel := context.WithCancel(context.Background())
		stream, err := cc.NewStream(streamCtx, &streamServiceDesc.Streams[0], streamMethod)
		if err != nil {
			cancel()
			_ = cc.Close()
			return nil, fmt.Errorf("error opening stream to %s: %w", target, err)
		}
		return &grpcClientConn{
			cc:     cc,
			stream: stream,
			cancel: cancel,
			remote: target,
		}, nil
	}
}

type grpcClientConn struct {
	cc     *grpc.ClientConn
	stream grpc.ClientStream
	cancel context.CancelFunc
	remote string
	once   sync.Once
}

func (c *grpcClientConn) ReadFrame() ([]byte, error) {
	msg := &wrapperspb.BytesValue{}
	if err := c.stream.RecvMsg(msg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrClosed
		}
		return nil, err
	}
	return msg.GetValue(), nil
}

func (c *grpcClientConn) WriteFrame(frame []byte) error {
	return c.stream.SendMsg(wrapperspb.Bytes(frame))
}

func (c *grpcClientConn) Close() error {
	var err error
	c.once.Do(func() {
		_ = c.stream.CloseSend()
		c.cancel()
		err = c.cc.Close()
	})
	return err
}

func (c *grpcClientConn) RemoteAddr() string {
	return c.remote
}
