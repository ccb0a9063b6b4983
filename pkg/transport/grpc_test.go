package transport

import (
	"context"
	"net"
	"testing"

	"github.com/mikekulinski/collab/pkg/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
)

func TestConnectionIDHeader(t *testing.T) {
	ctx := SetConnectionIDHeader(context.Background(), "abc")
	md, ok := metadata.FromOutgoingContext(ctx)
	require.True(t, ok)

	id, ok := ExtractConnectionIDHeader(metadata.NewIncomingContext(context.Background(), md))
	require.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = ExtractConnectionIDHeader(context.Background())
	assert.False(t, ok)
}

func TestGRPC_Exchange(t *testing.T) {
	server := NewManager()
	client := NewManager()
	defer server.Close()
	defer client.Close()

	lis := bufconn.Listen(1 << 20)
	grpcServer := grpc.NewServer()
	NewGRPCServer(server).Register(grpcServer)
	go func() {
		_ = grpcServer.Serve(lis)
	}()
	defer grpcServer.Stop()

	accepted := acceptOne(t, server)
	dial := DialGRPC("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	clientSocket := client.Dial(context.Background(), dial)
	clientEvents := &socketRecorder{}
	clientSocket.RegisterListener(clientEvents)

	pump(t, func() bool {
		return clientEvents.has("connected")
	}, client)
	require.NoError(t, clientSocket.Send([]byte{0x30, 1}, network.HighPriority, network.ReliableOrdered, network.DefaultChannel))

	var serverSocket network.Socket
	pump(t, func() bool {
		select {
		case serverSocket = <-accepted:
		default:
		}
		return serverSocket != nil
	}, server, client)
	serverEvents := &socketRecorder{}
	serverSocket.RegisterListener(serverEvents)

	require.NoError(t, serverSocket.Send([]byte{0x31, 2}, network.HighPriority, network.ReliableOrdered, network.DefaultChannel))
	pump(t, func() bool {
		return clientEvents.frameCount() == 1
	}, server, client)
	_, frames := clientEvents.snapshot()
	assert.Equal(t, [][]byte{{0x31, 2}}, frames)

	require.NoError(t, clientSocket.Close())
	pump(t, func() bool {
		return serverEvents.has("disconnected")
	}, server, client)
}
