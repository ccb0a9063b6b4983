package transport

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mikekulinski/collab/pkg/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebsocket_Exchange(t *testing.T) {
	server := NewManager()
	client := NewManager()
	defer server.Close()
	defer client.Close()

	httpServer := httptest.NewServer(NewWebsocketHandler(server, nil))
	defer httpServer.Close()

	accepted := acceptOne(t, server)
	url := "ws" + strings.TrimPrefix(httpServer.URL, "http")
	clientSocket := client.Dial(context.Background(), DialWebsocket(url, nil))
	clientEvents := &socketRecorder{}
	clientSocket.RegisterListener(clientEvents)

	var serverSocket network.Socket
	pump(t, func() bool {
		select {
		case serverSocket = <-accepted:
		default:
		}
		return serverSocket != nil && clientEvents.has("connected")
	}, server, client)
	serverEvents := &socketRecorder{}
	serverSocket.RegisterListener(serverEvents)

	require.NoError(t, clientSocket.Send([]byte{0x30, 7}, network.HighPriority, network.ReliableOrdered, network.DefaultChannel))
	require.NoError(t, serverSocket.Send([]byte{0x31, 8}, network.HighPriority, network.ReliableOrdered, network.DefaultChannel))
	pump(t, func() bool {
		return serverEvents.frameCount() == 1 && clientEvents.frameCount() == 1
	}, server, client)

	_, frames := serverEvents.snapshot()
	assert.Equal(t, [][]byte{{0x30, 7}}, frames)
	_, frames = clientEvents.snapshot()
	assert.Equal(t, [][]byte{{0x31, 8}}, frames)

	serverSocket.Close()
	pump(t, func() bool {
		return clientEvents.has("disconnected")
	}, server, client)
}
