// Package session runs the server side of one collaborative session: it accepts connections,
// handshakes with them, admits the users that join, fans out their broadcasts and keeps them
// attached to the session's synchronized tree until they leave.
package session

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/mikekulinski/collab/pkg/metrics"
	"github.com/mikekulinski/collab/pkg/network"
	"github.com/mikekulinski/collab/pkg/synctree"
)

// Listener is told about the population of a session. It is called from the service loop.
type Listener interface {
	OnUserJoined(s *Session, u User)
	OnUserLeft(s *Session, u User)
	OnUserChanged(s *Session, u User)
	// OnSessionEmpty is called once each time the session becomes empty and is reset.
	OnSessionEmpty(s *Session)
}

// ListenerFuncs is a Listener built from optional funcs.
type ListenerFuncs struct {
	UserJoined   func(s *Session, u User)
	UserLeft     func(s *Session, u User)
	UserChanged  func(s *Session, u User)
	SessionEmpty func(s *Session)
}

func (l *ListenerFuncs) OnUserJoined(s *Session, u User) {
	if l.UserJoined != nil {
		l.UserJoined(s, u)
	}
}

func (l *ListenerFuncs) OnUserLeft(s *Session, u User) {
	if l.UserLeft != nil {
		l.UserLeft(s, u)
	}
}

func (l *ListenerFuncs) OnUserChanged(s *Session, u User) {
	if l.UserChanged != nil {
		l.UserChanged(s, u)
	}
}

func (l *ListenerFuncs) OnSessionEmpty(s *Session) {
	if l.SessionEmpty != nil {
		l.SessionEmpty(s)
	}
}

// Descriptor summarizes a session for listings.
type Descriptor struct {
	Name    string
	ID      uint32
	Type    Type
	Address string
	Users   []User
}

// remoteClient is a participant, pending until its join is accepted.
type remoteClient struct {
	conn *network.Connection
	// tunnel carries the frames the participant wraps in Tunnel messages.
	tunnel *network.Connection
	user   User
}

// Session is not safe for concurrent use. Every method must be called from the goroutine that
// drives Update, which is the one running Run if Run is used.
type Session struct {
	cfg     Config
	manager network.SocketManager
	metrics *metrics.Metrics

	tree      *synctree.Tree
	forwarder *network.BroadcastForwarder
	router    *Router
	control   *network.ListenerFuncs
	listeners []Listener

	stopListening func()
	handshakes    map[network.SocketID]*NetworkHandshake
	pending       []*remoteClient
	clients       []*remoteClient

	lastCheck    time.Time
	emptyTime    time.Duration
	emptyApplied bool
	closed       bool
}

// New starts a session accepting the connections of manager. Zero fields of cfg take their
// defaults.
func New(manager network.SocketManager, cfg Config) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		cfg:        cfg,
		manager:    manager,
		metrics:    cfg.Metrics,
		forwarder:  network.NewBroadcastForwarder(),
		router:     NewRouter(),
		handshakes: map[network.SocketID]*NetworkHandshake{},
		lastCheck:  cfg.Clock(),
	}
	if s.cfg.IDs == nil {
		s.cfg.IDs = synctree.RandomIDGenerator()
	}
	s.tree = s.newTree()
	s.control = &network.ListenerFuncs{
		ConnectFailed: s.onDisconnected,
		Disconnected:  s.onDisconnected,
		Message:       s.onControlMessage,
	}
	Handle(s.router, s.onJoinSessionRequest)
	Handle(s.router, s.onUserChanged)

	s.stopListening = manager.Listen(network.AcceptFunc(s.onNewConnection))
	glog.Infof("session %s (%d): started, %s", cfg.Name, cfg.ID, cfg.Type)
	return s
}

func (s *Session) newTree() *synctree.Tree {
	return synctree.New(synctree.AuthorityHigh, s.cfg.IDs, synctree.WithRelay())
}

func (s *Session) Name() string {
	return s.cfg.Name
}

func (s *Session) ID() uint32 {
	return s.cfg.ID
}

func (s *Session) Type() Type {
	return s.cfg.Type
}

// Tree is the session's current tree. It is replaced every time the session becomes empty.
func (s *Session) Tree() *synctree.Tree {
	return s.tree
}

// RegisterListener adds l. The returned func removes it again.
func (s *Session) RegisterListener(l Listener) func() {
	next := make([]Listener, len(s.listeners), len(s.listeners)+1)
	copy(next, s.listeners)
	s.listeners = append(next, l)
	return func() {
		for i, existing := range s.listeners {
			if existing == l {
				next := make([]Listener, 0, len(s.listeners)-1)
				next = append(next, s.listeners[:i]...)
				s.listeners = append(next, s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Users returns the joined users in the order they joined.
func (s *Session) Users() []User {
	users := make([]User, 0, len(s.clients))
	for _, rc := range s.clients {
		users = append(users, rc.user)
	}
	return users
}

func (s *Session) UserCount() int {
	return len(s.clients)
}

// PendingCount is the number of connections that finished the handshake but did not join yet.
func (s *Session) PendingCount() int {
	return len(s.pending)
}

// HandshakeCount is the number of handshakes in progress.
func (s *Session) HandshakeCount() int {
	return len(s.handshakes)
}

// Accepting reports whether the session still takes new connections.
func (s *Session) Accepting() bool {
	return s.stopListening != nil
}

func (s *Session) Descriptor() Descriptor {
	return Descriptor{
		Name:    s.cfg.Name,
		ID:      s.cfg.ID,
		Type:    s.cfg.Type,
		Address: s.cfg.Address,
		Users:   s.Users(),
	}
}

// Update runs one iteration of the service loop: socket events, handshake deadlines and the
// idle check.
func (s *Session) Update() {
	if s.closed {
		return
	}
	s.manager.Update()
	now := s.cfg.Clock()
	for _, h := range s.handshakes {
		h.CheckTimeout(now)
	}
	s.CheckIfEmpty(false)
}

// Run calls Update every TickInterval until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		s.Update()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// CheckIfEmpty accounts the time since the previous check. Once the session has been empty for
// longer than the idle timeout, or right away with immediate set, the tree is rebuilt and the
// listeners are told. Ad-hoc sessions also stop accepting and drop their pending connections.
// This happens once per empty period.
func (s *Session) CheckIfEmpty(immediate bool) {
	if s.closed {
		return
	}
	now := s.cfg.Clock()
	delta := now.Sub(s.lastCheck)
	s.lastCheck = now

	if len(s.clients) > 0 {
		s.emptyApplied = false
		s.emptyTime = 0
		return
	}
	s.emptyTime += delta
	if s.emptyApplied || !(immediate || s.emptyTime > s.cfg.IdleTimeout) {
		return
	}
	s.emptyApplied = true

	glog.Infof("session %s: no more clients, resetting", s.cfg.Name)
	if s.cfg.Archive != nil && s.tree.Len() > 0 {
		s.cfg.Archive(s.cfg.ID, s.tree)
	}
	s.tree.Close()
	s.tree = s.newTree()
	s.metrics.RecordEmpty()
	for _, l := range s.listeners {
		l.OnSessionEmpty(s)
	}

	if s.cfg.Type == AdHoc {
		s.stopAccepting()
		s.dropPending()
	}
}

// Close stops accepting, disconnects everybody without notifying the listeners and closes the tree.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.stopAccepting()
	s.dropPending()
	clients := s.clients
	s.clients = nil
	for _, rc := range clients {
		s.release(rc)
		rc.conn.Disconnect()
	}
	s.tree.Close()
	s.metrics.SetUsers(0)
	glog.Infof("session %s: closed", s.cfg.Name)
}

func (s *Session) stopAccepting() {
	if s.stopListening == nil {
		return
	}
	s.stopListening()
	s.stopListening = nil
	glog.Infof("session %s: no longer accepting connections", s.cfg.Name)
}

// dropPending closes every connection that has not joined yet.
func (s *Session) dropPending() {
	handshakes := s.handshakes
	s.handshakes = map[network.SocketID]*NetworkHandshake{}
	for _, h := range handshakes {
		h.Abort()
	}
	pending := s.pending
	s.pending = nil
	for _, rc := range pending {
		rc.conn.RemoveListener(network.SessionControl, s.control)
		rc.conn.Disconnect()
	}
	s.metrics.SetPending(0)
}

func (s *Session) onNewConnection(sock network.Socket) {
	if s.closed || s.stopListening == nil {
		_ = sock.Close()
		return
	}
	glog.Infof("session %s: new connection from %s, starting handshake", s.cfg.Name, sock.RemoteAddr())
	deadline := s.cfg.Clock().Add(s.cfg.HandshakeTimeout)
	s.handshakes[sock.ID()] = NewNetworkHandshake(sock, NewSessionHandshakeLogic(true), deadline, s.onHandshakeComplete)
}

func (s *Session) onHandshakeComplete(sock network.Socket, id network.SocketID, result HandshakeResult) {
	delete(s.handshakes, id)
	s.metrics.RecordHandshake(result.String())
	if result != HandshakeSuccess {
		glog.Infof("session %s: handshake with %s failed: %s", s.cfg.Name, sock.RemoteAddr(), result)
		return
	}
	s.addConnection(sock)
}

// addConnection wraps a socket that passed the handshake. It stays pending until it joins.
func (s *Session) addConnection(sock network.Socket) {
	conn := network.NewConnection()
	conn.SetSocket(sock)
	rc := &remoteClient{
		conn:   conn,
		tunnel: network.NewTunnelConnection(conn),
	}
	conn.AddListener(network.SessionControl, s.control)
	s.pending = append(s.pending, rc)
	s.metrics.SetPending(len(s.pending))
}

func (s *Session) onControlMessage(conn *network.Connection, msg *network.InMessage) {
	if err := s.router.Route(conn, msg); err != nil {
		glog.Errorf("session %s: bad control message from connection %d, disconnecting: %v", s.cfg.Name, conn.ID(), err)
		s.metrics.RecordControlFailure()
		conn.Disconnect()
	}
}

func (s *Session) onJoinSessionRequest(req JoinSessionRequest, conn *network.Connection) {
	rc := s.takePending(conn)
	if rc == nil {
		glog.Errorf("session %s: join request from connection %d, which is not pending", s.cfg.Name, conn.ID())
		return
	}
	rc.user = req.User

	result := metrics.JoinAccepted
	if rc.user.ID == InvalidUserID {
		glog.Errorf("session %s: join request with the invalid user id", s.cfg.Name)
		result = metrics.JoinInvalidUser
	} else if s.clientFor(rc.user.ID) != nil {
		glog.Errorf("session %s: user id %d in join request is a duplicate of a user already in this session", s.cfg.Name, rc.user.ID)
		result = metrics.JoinDuplicateUser
	}
	s.metrics.RecordJoin(result)

	if result != metrics.JoinAccepted {
		conn.RemoveListener(network.SessionControl, s.control)
		if err := SendControl(conn, JoinSessionReply{Success: false}); err != nil {
			glog.Warningf("session %s: error sending join failure: %v", s.cfg.Name, err)
		}
		conn.Disconnect()
		s.CheckIfEmpty(true)
		return
	}

	s.clients = append(s.clients, rc)
	if err := SendControl(conn, JoinSessionReply{Success: true}); err != nil {
		glog.Warningf("session %s: error sending join reply: %v", s.cfg.Name, err)
	}
	group := conn.ID()
	s.forwarder.AddConnection(rc.conn, group)
	s.forwarder.AddConnection(rc.tunnel, group)
	s.tree.AddConnection(rc.conn)
	s.metrics.SetUsers(len(s.clients))

	glog.Infof("session %s: user %s (%d) joined", s.cfg.Name, rc.user.Name, rc.user.ID)
	for _, l := range s.listeners {
		l.OnUserJoined(s, rc.user)
	}
}

func (s *Session) onUserChanged(msg UserChangedSessionMsg, conn *network.Connection) {
	rc := s.joinedFor(conn)
	if rc == nil {
		glog.Errorf("session %s: user change from connection %d, which has not joined", s.cfg.Name, conn.ID())
		return
	}
	rc.user = msg.User
	for _, l := range s.listeners {
		l.OnUserChanged(s, rc.user)
	}
}

func (s *Session) onDisconnected(conn *network.Connection) {
	if s.closed {
		return
	}
	if rc := s.joinedFor(conn); rc != nil {
		for i, existing := range s.clients {
			if existing == rc {
				s.clients = append(s.clients[:i:i], s.clients[i+1:]...)
				break
			}
		}
		s.release(rc)
		s.metrics.SetUsers(len(s.clients))
		s.metrics.RecordLeave()
		glog.Infof("session %s: user %s (%d) left", s.cfg.Name, rc.user.Name, rc.user.ID)
		for _, l := range s.listeners {
			l.OnUserLeft(s, rc.user)
		}
	} else if rc := s.takePending(conn); rc != nil {
		conn.RemoveListener(network.SessionControl, s.control)
	}
	s.CheckIfEmpty(true)
}

// release detaches a joined client from forwarding and from the tree.
func (s *Session) release(rc *remoteClient) {
	rc.conn.RemoveListener(network.SessionControl, s.control)
	s.forwarder.RemoveConnection(rc.conn)
	s.forwarder.RemoveConnection(rc.tunnel)
	s.tree.RemoveConnection(rc.conn)
}

func (s *Session) takePending(conn *network.Connection) *remoteClient {
	for i, rc := range s.pending {
		if rc.conn == conn {
			s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
			s.metrics.SetPending(len(s.pending))
			return rc
		}
	}
	return nil
}

func (s *Session) joinedFor(conn *network.Connection) *remoteClient {
	for _, rc := range s.clients {
		if rc.conn == conn {
			return rc
		}
	}
	return nil
}

func (s *Session) clientFor(userID uint32) *remoteClient {
	for _, rc := range s.clients {
		if rc.user.ID == userID {
			return rc
		}
	}
	return nil
}
