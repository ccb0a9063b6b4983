package session

import (
	"testing"
	"time"

	"github.com/mikekulinski/collab/pkg/network"
	mock_network "github.com/mikekulinski/collab/pkg/network/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func hello(magic uint32, version uint16, role Role) *network.InMessage {
	out := network.NewOutMessage(network.Handshake)
	out.WriteUint32(magic)
	out.WriteUint16(version)
	_ = out.WriteByte(byte(role))
	return network.NewInMessage(out.Bytes())
}

func TestSessionHandshakeLogic_Validate(t *testing.T) {
	server := NewSessionHandshakeLogic(true)
	client := NewSessionHandshakeLogic(false)

	tests := []struct {
		name  string
		logic *SessionHandshakeLogic
		msg   *network.InMessage
		want  HandshakeResult
	}{
		{
			name:  "server accepts client",
			logic: server,
			msg:   network.NewInMessage(client.Hello().Bytes()),
			want:  HandshakeSuccess,
		},
		{
			name:  "client accepts server",
			logic: client,
			msg:   network.NewInMessage(server.Hello().Bytes()),
			want:  HandshakeSuccess,
		},
		{
			name:  "server rejects server",
			logic: server,
			msg:   hello(HandshakeMagic, ProtocolVersion, RoleServer),
			want:  HandshakeMismatch,
		},
		{
			name:  "wrong magic",
			logic: server,
			msg:   hello(0xdeadbeef, ProtocolVersion, RoleClient),
			want:  HandshakeMismatch,
		},
		{
			name:  "wrong version",
			logic: client,
			msg:   hello(HandshakeMagic, ProtocolVersion+1, RoleServer),
			want:  HandshakeMismatch,
		},
		{
			name:  "truncated",
			logic: server,
			msg:   network.NewInMessage([]byte{byte(network.Handshake), 0x63, 0x6f}),
			want:  HandshakeFailed,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, test.logic.Validate(test.msg))
		})
	}
}

type handshakeOutcome struct {
	calls  int
	result HandshakeResult
}

func (o *handshakeOutcome) callback(_ network.Socket, _ network.SocketID, result HandshakeResult) {
	o.calls++
	o.result = result
}

func TestNetworkHandshake(t *testing.T) {
	deadline := time.Unix(100, 0)
	clientHello := NewSessionHandshakeLogic(false).Hello().Bytes()

	// newSocket expects the calls every handshake makes on a connected socket and returns the
	// listener the handshake registers.
	newSocket := func(t *testing.T) (*mock_network.MockSocket, *network.SocketListener, *bool) {
		ctrl := gomock.NewController(t)
		s := mock_network.NewMockSocket(ctrl)
		var listener network.SocketListener
		unregistered := false
		s.EXPECT().ID().Return(network.SocketID(9)).AnyTimes()
		s.EXPECT().RemoteAddr().Return("pipe").AnyTimes()
		s.EXPECT().Status().Return(network.SocketConnected).AnyTimes()
		s.EXPECT().RegisterListener(gomock.Any()).DoAndReturn(func(l network.SocketListener) func() {
			listener = l
			return func() { unregistered = true }
		})
		s.EXPECT().Send(NewSessionHandshakeLogic(true).Hello().Bytes(), network.HighPriority, network.ReliableOrdered, network.SessionChannel).Return(nil)
		return s, &listener, &unregistered
	}

	t.Run("success keeps the socket open", func(t *testing.T) {
		s, listener, unregistered := newSocket(t)
		var outcome handshakeOutcome
		h := NewNetworkHandshake(s, NewSessionHandshakeLogic(true), deadline, outcome.callback)
		require.NotNil(t, *listener)
		assert.False(t, h.Done())

		(*listener).OnMessageReceived(s, clientHello)
		assert.True(t, h.Done())
		assert.True(t, *unregistered)
		assert.Equal(t, handshakeOutcome{calls: 1, result: HandshakeSuccess}, outcome)

		// Nothing happens once done.
		h.CheckTimeout(deadline.Add(time.Hour))
		assert.Equal(t, 1, outcome.calls)
	})

	t.Run("timeout closes the socket", func(t *testing.T) {
		s, _, unregistered := newSocket(t)
		s.EXPECT().Close().Return(nil)
		var outcome handshakeOutcome
		h := NewNetworkHandshake(s, NewSessionHandshakeLogic(true), deadline, outcome.callback)

		h.CheckTimeout(deadline)
		assert.Equal(t, 0, outcome.calls)

		h.CheckTimeout(deadline.Add(time.Millisecond))
		assert.True(t, *unregistered)
		assert.Equal(t, handshakeOutcome{calls: 1, result: HandshakeTimedOut}, outcome)
	})

	t.Run("mismatch closes the socket", func(t *testing.T) {
		s, listener, _ := newSocket(t)
		s.EXPECT().Close().Return(nil)
		var outcome handshakeOutcome
		NewNetworkHandshake(s, NewSessionHandshakeLogic(true), deadline, outcome.callback)

		(*listener).OnMessageReceived(s, NewSessionHandshakeLogic(true).Hello().Bytes())
		assert.Equal(t, handshakeOutcome{calls: 1, result: HandshakeMismatch}, outcome)
	})

	t.Run("other traffic fails the handshake", func(t *testing.T) {
		s, listener, _ := newSocket(t)
		s.EXPECT().Close().Return(nil)
		var outcome handshakeOutcome
		NewNetworkHandshake(s, NewSessionHandshakeLogic(true), deadline, outcome.callback)

		out, err := EncodeControl(JoinSessionRequest{User: User{Name: "ada", ID: 1}})
		require.NoError(t, err)
		(*listener).OnMessageReceived(s, out.Bytes())
		assert.Equal(t, handshakeOutcome{calls: 1, result: HandshakeFailed}, outcome)
	})

	t.Run("disconnect fails the handshake", func(t *testing.T) {
		s, listener, _ := newSocket(t)
		s.EXPECT().Close().Return(nil)
		var outcome handshakeOutcome
		NewNetworkHandshake(s, NewSessionHandshakeLogic(true), deadline, outcome.callback)

		(*listener).OnDisconnected(s)
		assert.Equal(t, handshakeOutcome{calls: 1, result: HandshakeFailed}, outcome)
	})

	t.Run("abort reports nothing", func(t *testing.T) {
		s, _, unregistered := newSocket(t)
		s.EXPECT().Close().Return(nil)
		var outcome handshakeOutcome
		h := NewNetworkHandshake(s, NewSessionHandshakeLogic(true), deadline, outcome.callback)

		h.Abort()
		h.CheckTimeout(deadline.Add(time.Hour))
		assert.True(t, h.Done())
		assert.True(t, *unregistered)
		assert.Equal(t, 0, outcome.calls)
	})
}
