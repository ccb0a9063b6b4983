package network

import (
	"errors"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/golang/glog"
	"github.com/google/uuid"
)

var (
	// ErrNotConnected is returned when sending on a connection without a live socket.
	// Nothing is queued.
	ErrNotConnected = errors.New("network: connection is not connected")
)

var connectionCounter atomic.Uint64

// Connection is one logical link to a peer. It outlives the sockets it is bound to: the socket
// can be replaced or cleared while the listeners registered on the Connection stay in place.
type Connection struct {
	id   uint64
	guid uuid.UUID

	// mu guards every field below. It is never held while a listener runs.
	mu               sync.Mutex
	socket           Socket
	unregisterSocket func()
	listeners        map[MessageID]*listenerList
	async            map[MessageID]*asyncCallback
}

// asyncCallback is an Immediate listener together with the interceptor that serves it while
// the connection is live.
type asyncCallback struct {
	listener          Listener
	removeInterceptor func()

	// gate is held for reading while the listener runs, so closing it waits for a delivery in flight.
	gate   sync.RWMutex
	closed bool
}

func (cb *asyncCallback) deliver(c *Connection, frame []byte) bool {
	cb.gate.RLock()
	defer cb.gate.RUnlock()

	if cb.closed {
		return false
	}
	cb.listener.OnMessageReceived(c, NewInMessage(frame))
	return true
}

func (cb *asyncCallback) close() {
	cb.gate.Lock()
	cb.closed = true
	cb.gate.Unlock()
}

func NewConnection() *Connection {
	return &Connection{
		id:        connectionCounter.Add(1),
		guid:      uuid.New(),
		listeners: map[MessageID]*listenerList{},
		async:     map[MessageID]*asyncCallback{},
	}
}

// ID is unique within this process.
func (c *Connection) ID() uint64 {
	return c.id
}

// GUID is random and stable for the life of the connection.
func (c *Connection) GUID() uuid.UUID {
	return c.guid
}

func (c *Connection) Socket() Socket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socket
}

func (c *Connection) IsConnected() bool {
	s := c.Socket()
	return s != nil && s.Status() == SocketConnected
}

func (c *Connection) RemoteAddr() string {
	if s := c.Socket(); s != nil {
		return s.RemoteAddr()
	}
	return ""
}

// SetSocket binds the connection to s, replacing the current socket. If s is already connected
// the listeners are told right away. A nil socket clears the binding, notifying a disconnect if
// the old socket was still connected.
func (c *Connection) SetSocket(s Socket) {
	if s == nil {
		old := c.Socket()
		if old == nil {
			return
		}
		if old.Status() == SocketConnected {
			glog.Infof("connection %d: clearing open socket", c.id)
			c.handleDisconnect(old, false)
			return
		}
		c.mu.Lock()
		removers := c.detachSocketLocked()
		c.mu.Unlock()
		runAll(removers)
		return
	}

	c.mu.Lock()
	var removers []func()
	if c.socket != nil {
		glog.Infof("connection %d: replacing socket %d with socket %d", c.id, c.socket.ID(), s.ID())
		removers = c.detachSocketLocked()
	}
	c.socket = s
	c.unregisterSocket = s.RegisterListener(socketEvents{c})
	c.mu.Unlock()
	runAll(removers)

	if s.Status() == SocketConnected {
		c.handleConnect(s)
	}
}

// Disconnect tears the link down on purpose. Listeners get OnDisconnected and the socket is closed.
func (c *Connection) Disconnect() {
	s := c.Socket()
	if s == nil {
		return
	}
	status := s.Status()
	if status == SocketDisconnected || status == SocketDisconnecting {
		return
	}
	glog.Infof("connection %d: intentionally closing connection to %s", c.id, s.RemoteAddr())
	c.handleDisconnect(s, false)
	if err := s.Close(); err != nil {
		glog.V(1).Infof("connection %d: error closing socket: %v", c.id, err)
	}
}

// CreateMessage starts a frame of the given type.
func (c *Connection) CreateMessage(messageType MessageID) *OutMessage {
	return NewOutMessage(messageType)
}

// Send hands msg to the transport. If the connection is not connected it returns
// ErrNotConnected and the message is dropped.
func (c *Connection) Send(msg *OutMessage, priority Priority, reliability Reliability, channel Channel) error {
	return c.SendRaw(msg.Bytes(), priority, reliability, channel)
}

// SendRaw sends an already encoded frame.
func (c *Connection) SendRaw(frame []byte, priority Priority, reliability Reliability, channel Channel) error {
	s := c.Socket()
	if s == nil || s.Status() != SocketConnected {
		glog.Warningf("connection %d: trying to send a %s message to a remote host that is not connected", c.id, frameType(frame))
		return ErrNotConnected
	}
	return s.Send(frame, priority, reliability, channel)
}

// Broadcast asks the receiving session to forward msg to every other member. The frame is
// prefixed with a broadcast header carrying the send parameters for the forwarded copies.
func (c *Connection) Broadcast(msg *OutMessage, priority Priority, reliability Reliability, channel Channel) error {
	header := BroadcastHeader{Priority: priority, Reliability: reliability, Channel: channel}
	return c.SendRaw(encodeBroadcast(msg.Bytes(), header), priority, reliability, channel)
}

// AddListener registers a Queued listener for messageType. Ids below Start register for status
// notices only. Registering the same listener twice delivers every message to it twice.
func (c *Connection) AddListener(messageType MessageID, l Listener) {
	messageType = messageType.normalize()

	c.mu.Lock()
	list, ok := c.listeners[messageType]
	if !ok {
		list = &listenerList{}
		c.listeners[messageType] = list
	}
	c.mu.Unlock()

	list.add(l)
}

// RemoveListener undoes one AddListener call.
func (c *Connection) RemoveListener(messageType MessageID, l Listener) {
	messageType = messageType.normalize()

	c.mu.Lock()
	list, ok := c.listeners[messageType]
	c.mu.Unlock()

	if ok {
		list.remove(l)
	}
}

// Register adds l for messageType with the given delivery. Queued registration always succeeds;
// Immediate registration fails like RegisterAsyncCallback does.
func (c *Connection) Register(messageType MessageID, l Listener, delivery Delivery) bool {
	if delivery == Immediate {
		return c.RegisterAsyncCallback(messageType, l)
	}
	c.AddListener(messageType, l)
	return true
}

// RegisterAsyncCallback installs an Immediate listener for messageType. It fails if the type is
// reserved or already has a callback. Frames of that type from this connection's peer are then
// handed to l in the transport's delivery goroutine and never reach the Queued listeners.
//
// UnregisterAsyncCallback and Disconnect wait for a running callback to return, so l must not
// call either on c itself. Hand that teardown to another goroutine or to a Queued listener.
func (c *Connection) RegisterAsyncCallback(messageType MessageID, l Listener) bool {
	if messageType < Start {
		return false
	}

	c.mu.Lock()
	if _, ok := c.async[messageType]; ok {
		c.mu.Unlock()
		return false
	}
	cb := &asyncCallback{listener: l}
	c.async[messageType] = cb
	s := c.socket
	c.mu.Unlock()

	if s != nil && s.Status() == SocketConnected {
		c.attachInterceptor(s, messageType, cb)
	}
	return true
}

// UnregisterAsyncCallback removes the Immediate listener of messageType. When it returns the
// callback is not running and will not be invoked again.
func (c *Connection) UnregisterAsyncCallback(messageType MessageID) {
	c.mu.Lock()
	cb, ok := c.async[messageType]
	var remove func()
	if ok {
		delete(c.async, messageType)
		remove = cb.removeInterceptor
		cb.removeInterceptor = nil
	}
	c.mu.Unlock()

	if !ok {
		glog.Warningf("connection %d: no async callback registered for %s", c.id, messageType)
		return
	}
	cb.close()
	if remove != nil {
		remove()
	}
}

// attachInterceptor installs the interceptor serving cb on s. The transport's interceptor
// barrier can wait for running callbacks, which may themselves use the connection, so c.mu is
// not held while installing.
func (c *Connection) attachInterceptor(s Socket, messageType MessageID, cb *asyncCallback) {
	remove := c.installInterceptor(s, messageType, cb)

	c.mu.Lock()
	if c.socket == s && c.async[messageType] == cb && cb.removeInterceptor == nil {
		cb.removeInterceptor = remove
		remove = nil
	}
	c.mu.Unlock()

	// Unregistered or disconnected in the meantime.
	if remove != nil {
		remove()
	}
}

func (c *Connection) installInterceptor(s Socket, messageType MessageID, cb *asyncCallback) func() {
	sender := s.ID()
	// The interceptor lives in the transport; it must not keep the connection reachable.
	conn := weak.Make(c)
	return s.AddInterceptor(func(from SocketID, frame []byte) bool {
		if from != sender || len(frame) == 0 || MessageID(frame[0]) != messageType {
			return false
		}
		target := conn.Value()
		if target == nil {
			return false
		}
		return cb.deliver(target, frame)
	})
}

// detachSocketLocked clears the socket binding and returns the interceptor removers, which the
// caller runs once c.mu has been released.
func (c *Connection) detachSocketLocked() []func() {
	if c.unregisterSocket != nil {
		c.unregisterSocket()
	}
	c.socket = nil
	c.unregisterSocket = nil

	var removers []func()
	for _, cb := range c.async {
		if cb.removeInterceptor != nil {
			removers = append(removers, cb.removeInterceptor)
			cb.removeInterceptor = nil
		}
	}
	return removers
}

func (c *Connection) handleConnect(s Socket) {
	c.mu.Lock()
	if s != c.socket {
		c.mu.Unlock()
		return
	}
	lists := c.listenerSnapshotLocked()
	var stale []func()
	pending := make(map[MessageID]*asyncCallback, len(c.async))
	for messageType, cb := range c.async {
		if cb.removeInterceptor != nil {
			stale = append(stale, cb.removeInterceptor)
			cb.removeInterceptor = nil
		}
		pending[messageType] = cb
	}
	c.mu.Unlock()
	runAll(stale)

	for _, list := range lists {
		for _, l := range list.snapshot() {
			l.OnConnected(c)
		}
	}
	for messageType, cb := range pending {
		cb.listener.OnConnected(c)
		c.attachInterceptor(s, messageType, cb)
	}
}

// handleDisconnect clears the socket and notifies every listener. failed selects
// OnConnectFailed instead of OnDisconnected.
func (c *Connection) handleDisconnect(s Socket, failed bool) {
	c.mu.Lock()
	if s != c.socket {
		c.mu.Unlock()
		return
	}
	lists := c.listenerSnapshotLocked()
	asyncListeners := make([]Listener, 0, len(c.async))
	for _, cb := range c.async {
		asyncListeners = append(asyncListeners, cb.listener)
	}
	removers := c.detachSocketLocked()
	c.mu.Unlock()
	runAll(removers)

	notify := Listener.OnDisconnected
	if failed {
		notify = Listener.OnConnectFailed
	}
	for _, list := range lists {
		for _, l := range list.snapshot() {
			notify(l, c)
		}
	}
	for _, l := range asyncListeners {
		notify(l, c)
	}
}

func (c *Connection) handleMessage(s Socket, frame []byte) {
	if len(frame) == 0 {
		return
	}
	if MessageID(frame[0]) < Start {
		glog.Errorf("connection %d: dropping frame with reserved type %d", c.id, frame[0])
		return
	}
	c.mu.Lock()
	if s != c.socket {
		c.mu.Unlock()
		return
	}
	list, ok := c.listeners[MessageID(frame[0])]
	c.mu.Unlock()
	if !ok {
		glog.V(2).Infof("connection %d: no listener for %s", c.id, MessageID(frame[0]))
		return
	}

	// Later registrations run first, each with its own cursor.
	listeners := list.snapshot()
	for i := len(listeners) - 1; i >= 0; i-- {
		listeners[i].OnMessageReceived(c, NewInMessage(frame))
	}
}

func (c *Connection) listenerSnapshotLocked() []*listenerList {
	lists := make([]*listenerList, 0, len(c.listeners))
	for _, list := range c.listeners {
		lists = append(lists, list)
	}
	return lists
}

// socketEvents forwards socket events to the connection without putting the SocketListener
// methods on Connection's own API.
type socketEvents struct {
	c *Connection
}

func (e socketEvents) OnConnected(s Socket) {
	e.c.handleConnect(s)
}

func (e socketEvents) OnConnectFailed(s Socket) {
	e.c.handleDisconnect(s, true)
}

func (e socketEvents) OnDisconnected(s Socket) {
	e.c.handleDisconnect(s, false)
}

func (e socketEvents) OnMessageReceived(s Socket, frame []byte) {
	e.c.handleMessage(s, frame)
}

func runAll(funcs []func()) {
	for _, f := range funcs {
		f()
	}
}

func frameType(frame []byte) MessageID {
	if len(frame) == 0 {
		return StatusOnly
	}
	return MessageID(frame[0])
}
