package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mikekulinski/collab/pkg/network"
	mock_network "github.com/mikekulinski/collab/pkg/network/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type socketRecorder struct {
	mu     sync.Mutex
	events []string
	frames [][]byte
}

func (r *socketRecorder) OnConnected(network.Socket) {
	r.add("connected")
}

func (r *socketRecorder) OnConnectFailed(network.Socket) {
	r.add("failed")
}

func (r *socketRecorder) OnDisconnected(network.Socket) {
	r.add("disconnected")
}

func (r *socketRecorder) OnMessageReceived(_ network.Socket, frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
}

func (r *socketRecorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *socketRecorder) snapshot() ([]string, [][]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...), append([][]byte(nil), r.frames...)
}

func (r *socketRecorder) has(e string) bool {
	events, _ := r.snapshot()
	for _, got := range events {
		if got == e {
			return true
		}
	}
	return false
}

func (r *socketRecorder) frameCount() int {
	_, frames := r.snapshot()
	return len(frames)
}

// pump runs the service loops of managers until cond holds.
func pump(t *testing.T, cond func() bool, managers ...*Manager) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, m := range managers {
			m.Update()
		}
		return cond()
	}, 2*time.Second, time.Millisecond)
}

// acceptOne accepts a single socket on server and returns it once the service loop handed it over.
func acceptOne(t *testing.T, server *Manager) <-chan network.Socket {
	t.Helper()
	ctrl := gomock.NewController(t)
	acceptor := mock_network.NewMockAcceptListener(ctrl)
	accepted := make(chan network.Socket, 1)
	acceptor.EXPECT().OnNewConnection(gomock.Any()).Do(func(s network.Socket) {
		assert.Equal(t, network.SocketConnected, s.Status())
		accepted <- s
	})
	stop := server.Listen(acceptor)
	t.Cleanup(stop)
	return accepted
}

func connectedPair(t *testing.T, server, client *Manager) (network.Socket, *socketRecorder, network.Socket, *socketRecorder) {
	t.Helper()
	accepted := acceptOne(t, server)

	a, b := Pipe()
	server.Accept(a)
	clientSocket := client.Connect(b)
	assert.Equal(t, network.SocketConnecting, clientSocket.Status())
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
	return serverSocket, serverEvents, clientSocket, clientEvents
}

func TestManager_Exchange(t *testing.T) {
	server := NewManager()
	client := NewManager()
	defer server.Close()
	defer client.Close()

	serverSocket, serverEvents, clientSocket, clientEvents := connectedPair(t, server, client)
	assert.Equal(t, network.SocketConnected, clientSocket.Status())
	assert.Equal(t, 1, server.SocketCount())

	require.NoError(t, clientSocket.Send([]byte{0x30, 1}, network.HighPriority, network.ReliableOrdered, network.DefaultChannel))
	require.NoError(t, clientSocket.Send([]byte{0x30, 2}, network.HighPriority, network.ReliableOrdered, network.DefaultChannel))
	require.NoError(t, serverSocket.Send([]byte{0x31, 3}, network.HighPriority, network.ReliableOrdered, network.DefaultChannel))

	pump(t, func() bool {
		return serverEvents.frameCount() == 2 && clientEvents.frameCount() == 1
	}, server, client)

	_, frames := serverEvents.snapshot()
	assert.Equal(t, [][]byte{{0x30, 1}, {0x30, 2}}, frames)
	_, frames = clientEvents.snapshot()
	assert.Equal(t, [][]byte{{0x31, 3}}, frames)
}

func TestManager_CloseNotifiesPeer(t *testing.T) {
	server := NewManager()
	client := NewManager()
	defer server.Close()
	defer client.Close()

	_, serverEvents, clientSocket, _ := connectedPair(t, server, client)

	require.NoError(t, clientSocket.Close())
	assert.Equal(t, network.SocketDisconnecting, clientSocket.Status())

	pump(t, func() bool {
		return serverEvents.has("disconnected")
	}, server, client)
	pump(t, func() bool {
		return clientSocket.Status() == network.SocketDisconnected
	}, client)
	assert.Equal(t, 0, server.SocketCount())

	err := clientSocket.Send([]byte{0x30}, network.HighPriority, network.Reliable, network.DefaultChannel)
	assert.ErrorIs(t, err, network.ErrNotConnected)
}

func TestManager_DialFailure(t *testing.T) {
	client := NewManager()
	defer client.Close()

	s := client.Dial(context.Background(), func(context.Context) (FrameConn, error) {
		return nil, errors.New("connection refused")
	})
	events := &socketRecorder{}
	s.RegisterListener(events)

	pump(t, func() bool {
		return events.has("failed")
	}, client)
	assert.Equal(t, network.SocketDisconnected, s.Status())
	assert.False(t, events.has("connected"))
}

func TestManager_DialSuccess(t *testing.T) {
	server := NewManager()
	client := NewManager()
	defer server.Close()
	defer client.Close()

	accepted := acceptOne(t, server)
	s := client.Dial(context.Background(), func(context.Context) (FrameConn, error) {
		a, b := Pipe()
		server.Accept(a)
		return b, nil
	})
	events := &socketRecorder{}
	s.RegisterListener(events)

	var serverSocket network.Socket
	pump(t, func() bool {
		select {
		case serverSocket = <-accepted:
		default:
		}
		return serverSocket != nil && events.has("connected")
	}, server, client)
	assert.Equal(t, "pipe:b", s.RemoteAddr())
}

func TestManager_UnacceptedSocketsAreClosed(t *testing.T) {
	server := NewManager()
	client := NewManager()
	defer server.Close()
	defer client.Close()

	a, b := Pipe()
	server.Accept(a)
	clientSocket := client.Connect(b)
	events := &socketRecorder{}
	clientSocket.RegisterListener(events)

	pump(t, func() bool {
		return events.has("disconnected")
	}, server, client)
}

func TestManager_InterceptorConsumesFrames(t *testing.T) {
	server := NewManager()
	client := NewManager()
	defer server.Close()
	defer client.Close()

	serverSocket, serverEvents, clientSocket, _ := connectedPair(t, server, client)

	intercepted := make(chan []byte, 4)
	remove := serverSocket.AddInterceptor(func(sender network.SocketID, frame []byte) bool {
		if sender != serverSocket.ID() || frame[0] != 0x40 {
			return false
		}
		intercepted <- frame
		return true
	})

	require.NoError(t, clientSocket.Send([]byte{0x40, 1}, network.HighPriority, network.ReliableOrdered, network.DefaultChannel))
	require.NoError(t, clientSocket.Send([]byte{0x41, 2}, network.HighPriority, network.ReliableOrdered, network.DefaultChannel))

	select {
	case frame := <-intercepted:
		assert.Equal(t, []byte{0x40, 1}, frame)
	case <-time.After(2 * time.Second):
		t.Fatal("interceptor never ran")
	}
	pump(t, func() bool {
		return serverEvents.frameCount() == 1
	}, server, client)
	_, frames := serverEvents.snapshot()
	assert.Equal(t, [][]byte{{0x41, 2}}, frames)

	remove()
	require.NoError(t, clientSocket.Send([]byte{0x40, 3}, network.HighPriority, network.ReliableOrdered, network.DefaultChannel))
	pump(t, func() bool {
		return serverEvents.frameCount() == 2
	}, server, client)
	assert.Empty(t, intercepted)
}

func TestManager_RemoveInterceptorWaitsForRunningOne(t *testing.T) {
	server := NewManager()
	client := NewManager()
	defer server.Close()
	defer client.Close()

	serverSocket, _, clientSocket, _ := connectedPair(t, server, client)

	entered := make(chan struct{})
	release := make(chan struct{})
	remove := serverSocket.AddInterceptor(func(network.SocketID, []byte) bool {
		close(entered)
		<-release
		return true
	})
	require.NoError(t, clientSocket.Send([]byte{0x40}, network.HighPriority, network.ReliableOrdered, network.DefaultChannel))
	<-entered

	removed := make(chan struct{})
	go func() {
		remove()
		close(removed)
	}()

	select {
	case <-removed:
		t.Fatal("remove returned while the interceptor was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-removed:
	case <-time.After(2 * time.Second):
		t.Fatal("remove never returned")
	}
}

func TestManager_CloseStopsEverything(t *testing.T) {
	server := NewManager()
	client := NewManager()
	defer client.Close()

	_, _, _, clientEvents := connectedPair(t, server, client)
	server.Close()

	pump(t, func() bool {
		return clientEvents.has("disconnected")
	}, client)

	a, _ := Pipe()
	s := server.Accept(a)
	assert.Equal(t, network.SocketDisconnected, s.Status())
}
