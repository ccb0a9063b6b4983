package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/mikekulinski/collab/pkg/client"
	mock_client "github.com/mikekulinski/collab/pkg/client/mocks"
	"github.com/mikekulinski/collab/pkg/network"
	mock_network "github.com/mikekulinski/collab/pkg/network/mocks"
	"github.com/mikekulinski/collab/pkg/session"
	"github.com/mikekulinski/collab/pkg/synctree"
	"github.com/mikekulinski/collab/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func pendingSocket(ctrl *gomock.Controller) *mock_network.MockSocket {
	s := mock_network.NewMockSocket(ctrl)
	s.EXPECT().ID().Return(network.SocketID(1)).AnyTimes()
	s.EXPECT().RemoteAddr().Return("").AnyTimes()
	s.EXPECT().Status().Return(network.SocketConnecting).AnyTimes()
	s.EXPECT().RegisterListener(gomock.Any()).Return(func() {}).AnyTimes()
	return s
}

func TestClient_HandshakeTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	manager := mock_client.NewMockSocketManager(ctrl)
	listener := mock_client.NewMockListener(ctrl)

	now := time.Unix(1000, 0)
	c := client.New(manager, client.Config{
		User:             session.User{Name: "ada", ID: 1},
		HandshakeTimeout: time.Second,
		Clock:            func() time.Time { return now },
	})
	c.RegisterListener(listener)

	sock := pendingSocket(ctrl)
	manager.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(sock)
	manager.EXPECT().Update().Return(0).AnyTimes()
	require.NoError(t, c.Connect(context.Background(), nil))
	assert.ErrorIs(t, c.Connect(context.Background(), nil), client.ErrAlreadyConnected)

	c.Update()
	assert.False(t, c.Joined())

	gomock.InOrder(
		sock.EXPECT().Close().Return(nil),
		listener.EXPECT().OnJoined(c, false),
	)
	now = now.Add(2 * time.Second)
	c.Update()
	assert.False(t, c.Joined())
	assert.Nil(t, c.Connection())
}

func TestClient_DisconnectWhileConnecting(t *testing.T) {
	ctrl := gomock.NewController(t)
	manager := mock_client.NewMockSocketManager(ctrl)
	c := client.New(manager, client.Config{User: session.User{Name: "ada", ID: 1}})

	sock := pendingSocket(ctrl)
	manager.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(sock).Times(2)
	sock.EXPECT().Close().Return(nil)

	require.NoError(t, c.Connect(context.Background(), nil))
	c.Disconnect()
	// The client can connect again once it gave up.
	require.NoError(t, c.Connect(context.Background(), nil))
}

func TestClient_SetUserBeforeJoin(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := client.New(mock_client.NewMockSocketManager(ctrl), client.Config{User: session.User{Name: "ada", ID: 1}})
	assert.ErrorIs(t, c.SetUser("bob", true), client.ErrNotJoined)
	assert.Equal(t, "ada", c.User().Name)
}

// harness runs a session and any number of clients on in-memory pipes.
type harness struct {
	t       *testing.T
	server  *transport.Manager
	session *session.Session
	clients []*client.Client
}

func newHarness(t *testing.T) *harness {
	server := transport.NewManager()
	t.Cleanup(server.Close)
	return &harness{
		t:       t,
		server:  server,
		session: session.New(server, session.NewConfig(session.WithName("test"), session.WithIDs(synctree.NewIDGenerator(100)))),
	}
}

func (h *harness) dial(context.Context) (transport.FrameConn, error) {
	local, remote := transport.Pipe()
	h.server.Accept(remote)
	return local, nil
}

func (h *harness) newClient(user session.User, l client.Listener) *client.Client {
	manager := transport.NewManager()
	h.t.Cleanup(manager.Close)
	c := client.New(manager, client.Config{User: user, IDs: synctree.NewIDGenerator(user.ID)})
	c.RegisterListener(l)
	h.clients = append(h.clients, c)
	require.NoError(h.t, c.Connect(context.Background(), h.dial))
	return c
}

func (h *harness) pump(cond func() bool) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		h.session.Update()
		for _, c := range h.clients {
			c.Update()
		}
		return cond()
	}, 2*time.Second, time.Millisecond)
}

func TestClient_JoinEditAndLeave(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := newHarness(t)

	listener := mock_client.NewMockListener(ctrl)
	var joined, left bool
	c := h.newClient(session.User{Name: "ada", ID: 1}, listener)
	listener.EXPECT().OnJoined(c, true).Do(func(*client.Client, bool) { joined = true })

	h.pump(func() bool { return joined })
	assert.True(t, c.Joined())
	assert.NotNil(t, c.Connection())
	assert.NotNil(t, c.Tunnel())
	assert.Equal(t, []session.User{{Name: "ada", ID: 1}}, h.session.Users())

	_, err := c.Tree().Root().CreateIntElement("score", 3)
	require.NoError(t, err)
	h.pump(func() bool {
		e, err := h.session.Tree().Lookup("/score")
		return err == nil && e.(*synctree.IntElement).Value() == 3
	})

	require.NoError(t, c.SetUser("ada lovelace", true))
	h.pump(func() bool {
		users := h.session.Users()
		return len(users) == 1 && users[0].Muted
	})
	assert.Equal(t, session.User{Name: "ada lovelace", ID: 1, Muted: true}, h.session.Users()[0])

	listener.EXPECT().OnLeft(c).Do(func(*client.Client) { left = true })
	c.Disconnect()
	h.pump(func() bool { return left && h.session.UserCount() == 0 })
	assert.False(t, c.Joined())
	assert.Nil(t, c.Connection())
}

func TestClient_JoinRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := newHarness(t)

	first := mock_client.NewMockListener(ctrl)
	var firstJoined bool
	a := h.newClient(session.User{Name: "ada", ID: 1}, first)
	first.EXPECT().OnJoined(a, true).Do(func(*client.Client, bool) { firstJoined = true })
	h.pump(func() bool { return firstJoined })

	second := mock_client.NewMockListener(ctrl)
	var rejected bool
	b := h.newClient(session.User{Name: "impostor", ID: 1}, second)
	second.EXPECT().OnJoined(b, false).Do(func(*client.Client, bool) { rejected = true })
	h.pump(func() bool { return rejected && b.Connection() == nil })

	assert.False(t, b.Joined())
	assert.True(t, a.Joined())
	assert.Equal(t, 1, h.session.UserCount())
}

func TestClient_SessionClosed(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := newHarness(t)

	listener := mock_client.NewMockListener(ctrl)
	var joined, left bool
	c := h.newClient(session.User{Name: "ada", ID: 1}, listener)
	listener.EXPECT().OnJoined(c, true).Do(func(*client.Client, bool) { joined = true })
	h.pump(func() bool { return joined })

	listener.EXPECT().OnLeft(c).Do(func(*client.Client) { left = true })
	h.session.Close()
	h.pump(func() bool { return left })
	assert.False(t, c.Joined())
}
