// Package client joins a session from the participant's side and keeps a low authority replica
// of the session's tree.
package client

import (
	"context"
	"errors"
	"time"

	"github.com/golang/glog"
	"github.com/mikekulinski/collab/pkg/network"
	"github.com/mikekulinski/collab/pkg/session"
	"github.com/mikekulinski/collab/pkg/synctree"
	"github.com/mikekulinski/collab/pkg/transport"
)

var (
	ErrAlreadyConnected = errors.New("client: already connected")
	ErrNotJoined        = errors.New("client: not joined")
)

// SocketManager opens the client's socket and runs its service loop. *transport.Manager
// implements it.
//
//go:generate mockgen -source=client.go -destination=mocks/mock_client.go -package=mock_client
type SocketManager interface {
	Dial(ctx context.Context, dial transport.DialFunc) network.Socket
	Update() int
}

// Listener is told how joining went and when the client left.
type Listener interface {
	// OnJoined reports the outcome of the join. ok is false if the handshake or the join failed.
	OnJoined(c *Client, ok bool)
	OnLeft(c *Client)
}

type ListenerFuncs struct {
	Joined func(c *Client, ok bool)
	Left   func(c *Client)
}

func (l *ListenerFuncs) OnJoined(c *Client, ok bool) {
	if l.Joined != nil {
		l.Joined(c, ok)
	}
}

func (l *ListenerFuncs) OnLeft(c *Client) {
	if l.Left != nil {
		l.Left(c)
	}
}

type Config struct {
	User             session.User
	HandshakeTimeout time.Duration
	TickInterval     time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
	// IDs generates the GUIDs of the elements this client creates. Nil means random.
	IDs synctree.IDGenerator
}

// Client is not safe for concurrent use. Like Session, it is driven by Update from one goroutine.
type Client struct {
	cfg     Config
	manager SocketManager
	tree    *synctree.Tree
	router  *session.Router
	control *network.ListenerFuncs

	listeners []Listener
	handshake *session.NetworkHandshake
	conn      *network.Connection
	tunnel    *network.Connection
	joining   bool
	joined    bool
}

func New(manager SocketManager, cfg Config) *Client {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = session.DefaultHandshakeTimeout
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = session.DefaultTickInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	c := &Client{
		cfg:     cfg,
		manager: manager,
		tree:    synctree.New(synctree.AuthorityLow, cfg.IDs),
		router:  session.NewRouter(),
	}
	c.control = &network.ListenerFuncs{
		ConnectFailed: c.onDisconnected,
		Disconnected:  c.onDisconnected,
		Message:       c.onControlMessage,
	}
	session.Handle(c.router, c.onJoinSessionReply)
	return c
}

// Tree is the client's replica. It is attached to the session while the client is joined.
func (c *Client) Tree() *synctree.Tree {
	return c.tree
}

func (c *Client) User() session.User {
	return c.cfg.User
}

func (c *Client) Joined() bool {
	return c.joined
}

// Connection is the link to the session, nil until the handshake succeeded.
func (c *Client) Connection() *network.Connection {
	return c.conn
}

// Tunnel is a secondary connection multiplexed over the primary one. The session forwards
// broadcasts sent on it like those sent on the primary connection.
func (c *Client) Tunnel() *network.Connection {
	return c.tunnel
}

// RegisterListener adds l. The returned func removes it again.
func (c *Client) RegisterListener(l Listener) func() {
	next := make([]Listener, len(c.listeners), len(c.listeners)+1)
	copy(next, c.listeners)
	c.listeners = append(next, l)
	return func() {
		for i, existing := range c.listeners {
			if existing == l {
				next := make([]Listener, 0, len(c.listeners)-1)
				next = append(next, c.listeners[:i]...)
				c.listeners = append(next, c.listeners[i+1:]...)
				return
			}
		}
	}
}

// Connect dials the session in the background. The outcome is reported to the listeners from a
// later Update.
func (c *Client) Connect(ctx context.Context, dial transport.DialFunc) error {
	if c.handshake != nil || c.conn != nil {
		return ErrAlreadyConnected
	}
	sock := c.manager.Dial(ctx, dial)
	deadline := c.cfg.Clock().Add(c.cfg.HandshakeTimeout)
	c.handshake = session.NewNetworkHandshake(sock, session.NewSessionHandshakeLogic(false), deadline, c.onHandshakeComplete)
	return nil
}

// Update runs one iteration of the service loop.
func (c *Client) Update() {
	c.manager.Update()
	if c.handshake != nil {
		c.handshake.CheckTimeout(c.cfg.Clock())
	}
}

// Run calls Update every TickInterval until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()
	for {
		c.Update()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SetUser renames the user or changes its mute state and tells the session.
func (c *Client) SetUser(name string, muted bool) error {
	if !c.joined {
		return ErrNotJoined
	}
	c.cfg.User.Name = name
	c.cfg.User.Muted = muted
	return session.SendControl(c.conn, session.UserChangedSessionMsg{User: c.cfg.User})
}

// Disconnect leaves the session, or gives up connecting to it.
func (c *Client) Disconnect() {
	if c.handshake != nil {
		c.handshake.Abort()
		c.handshake = nil
		return
	}
	if c.conn != nil {
		c.conn.Disconnect()
	}
}

func (c *Client) onHandshakeComplete(sock network.Socket, _ network.SocketID, result session.HandshakeResult) {
	c.handshake = nil
	if result != session.HandshakeSuccess {
		glog.Warningf("client %d: handshake with %s failed: %s", c.cfg.User.ID, sock.RemoteAddr(), result)
		c.notifyJoined(false)
		return
	}

	c.conn = network.NewConnection()
	c.conn.AddListener(network.SessionControl, c.control)
	c.conn.SetSocket(sock)
	c.tunnel = network.NewTunnelConnection(c.conn)
	c.joining = true
	if err := session.SendControl(c.conn, session.JoinSessionRequest{User: c.cfg.User}); err != nil {
		glog.Errorf("client %d: error sending join request: %v", c.cfg.User.ID, err)
		c.conn.Disconnect()
	}
}

func (c *Client) onControlMessage(conn *network.Connection, msg *network.InMessage) {
	if err := c.router.Route(conn, msg); err != nil {
		glog.Errorf("client %d: bad control message: %v", c.cfg.User.ID, err)
	}
}

func (c *Client) onJoinSessionReply(reply session.JoinSessionReply, conn *network.Connection) {
	if !c.joining {
		glog.Warningf("client %d: unexpected join reply", c.cfg.User.ID)
		return
	}
	c.joining = false
	if !reply.Success {
		glog.Warningf("client %d: session rejected the join", c.cfg.User.ID)
		c.notifyJoined(false)
		return
	}
	c.joined = true
	c.tree.AddConnection(conn)
	glog.Infof("client %d: joined session at %s", c.cfg.User.ID, conn.RemoteAddr())
	c.notifyJoined(true)
}

func (c *Client) onDisconnected(conn *network.Connection) {
	conn.RemoveListener(network.SessionControl, c.control)
	c.tree.RemoveConnection(conn)
	c.conn = nil
	c.tunnel = nil

	wasJoining, wasJoined := c.joining, c.joined
	c.joining = false
	c.joined = false
	switch {
	case wasJoined:
		glog.Infof("client %d: left the session", c.cfg.User.ID)
		for _, l := range c.listeners {
			l.OnLeft(c)
		}
	case wasJoining:
		c.notifyJoined(false)
	}
}

func (c *Client) notifyJoined(ok bool) {
	for _, l := range c.listeners {
		l.OnJoined(c, ok)
	}
}
