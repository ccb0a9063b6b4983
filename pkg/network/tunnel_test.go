package network_test

import (
	"testing"

	"github.com/mikekulinski/collab/pkg/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTunnelConnection(t *testing.T) {
	s := newFakeSocket(1)
	primary := network.NewConnection()
	primary.SetSocket(s)

	tunnel := network.NewTunnelConnection(primary)
	assert.False(t, tunnel.IsConnected())

	var log []string
	l := &recorder{name: "tunnel", log: &log}
	tunnel.AddListener(testMessage, l)

	s.connect()
	assert.True(t, tunnel.IsConnected())
	assert.Equal(t, []string{"tunnel:connected"}, log)

	t.Run("outbound frames are wrapped", func(t *testing.T) {
		msg := tunnel.CreateMessage(testMessage)
		msg.WriteInt32(3)
		require.NoError(t, tunnel.Send(msg, network.HighPriority, network.ReliableOrdered, network.SessionChannel))

		sent := s.sentFrames()
		require.Len(t, sent, 1)
		assert.Equal(t, append([]byte{byte(network.Tunnel)}, msg.Bytes()...), sent[0].frame)
		assert.Equal(t, network.SessionChannel, sent[0].channel)
	})

	t.Run("inbound frames are unwrapped", func(t *testing.T) {
		var primaryLog []string
		primary.AddListener(testMessage, &recorder{name: "primary", log: &primaryLog})

		s.receive(append([]byte{byte(network.Tunnel)}, intFrame(testMessage, 8)...))
		assert.Equal(t, []int32{8}, l.values)
		assert.Empty(t, primaryLog)
	})

	t.Run("async callbacks see unwrapped frames", func(t *testing.T) {
		var asyncLog []string
		async := &recorder{name: "async", log: &asyncLog}
		require.True(t, tunnel.RegisterAsyncCallback(testMessage, async))

		s.receive(append([]byte{byte(network.Tunnel)}, intFrame(testMessage, 9)...))
		assert.Equal(t, []int32{9}, async.values)
		assert.Equal(t, []int32{8}, l.values)

		tunnel.UnregisterAsyncCallback(testMessage)
		assert.Equal(t, 0, s.interceptorCount())
	})

	t.Run("status follows the primary", func(t *testing.T) {
		log = nil
		s.drop()
		assert.False(t, tunnel.IsConnected())
		assert.Equal(t, []string{"tunnel:disconnected"}, log)
	})
}

func TestTunnelConnection_DisconnectLeavesPrimary(t *testing.T) {
	primary, s := connectedConnection(t)
	tunnel := network.NewTunnelConnection(primary)
	require.True(t, tunnel.IsConnected())

	var log []string
	tunnel.AddListener(testMessage, &recorder{name: "tunnel", log: &log})

	tunnel.Disconnect()
	assert.False(t, tunnel.IsConnected())
	assert.True(t, primary.IsConnected())
	assert.Equal(t, []string{"tunnel:disconnected"}, log)

	s.receive(append([]byte{byte(network.Tunnel)}, intFrame(testMessage, 1)...))
	assert.Equal(t, []string{"tunnel:disconnected"}, log)
}
