package transport

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
	"github.com/mikekulinski/collab/pkg/network"
)

const (
	DefaultEventQueueSize = 4096
	DefaultSendQueueSize  = 1024
)

type Option func(*Manager)

// WithEventQueueSize bounds the events waiting for Update. Reader goroutines block while it is full.
func WithEventQueueSize(n int) Option {
	return func(m *Manager) {
		m.eventQueueSize = n
	}
}

// WithSendQueueSize bounds the frames waiting to be written per socket.
func WithSendQueueSize(n int) Option {
	return func(m *Manager) {
		m.sendQueueSize = n
	}
}

type eventKind int

const (
	eventAccepted eventKind = iota
	eventConnected
	eventConnectFailed
	eventDisconnected
	eventMessage
)

type event struct {
	kind   eventKind
	socket *socket
	frame  []byte
}

type interceptor struct {
	handle uint64
	fn     network.InterceptFunc
}

// Manager owns a set of sockets and the single service loop that observes them. Socket events
// are queued by the per-socket goroutines and dispatched by Update.
type Manager struct {
	eventQueueSize int
	sendQueueSize  int

	events chan event
	done   chan struct{}

	nextSocket atomic.Uint64

	// interceptMu is held for reading while interceptors run. Removing one takes it for
	// writing, which waits out every interceptor already running.
	interceptMu     sync.RWMutex
	interceptors    []interceptor
	nextInterceptor uint64

	mu         sync.Mutex
	acceptors  map[uint64]network.AcceptListener
	nextAccept uint64
	sockets    map[network.SocketID]*socket
	closed     bool
}

var _ network.SocketManager = (*Manager)(nil)

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		eventQueueSize: DefaultEventQueueSize,
		sendQueueSize:  DefaultSendQueueSize,
		done:           make(chan struct{}),
		acceptors:      map[uint64]network.AcceptListener{},
		sockets:        map[network.SocketID]*socket{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.events = make(chan event, m.eventQueueSize)
	return m
}

// Listen routes every accepted socket to l until stop is called. Sockets accepted while nobody
// listens are closed.
func (m *Manager) Listen(l network.AcceptListener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	handle := m.nextAccept
	m.nextAccept++
	m.acceptors[handle] = l
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.acceptors, handle)
	}
}

// Accept adopts a FrameConn opened by a remote peer. The socket is handed to the accept
// listeners on the service loop, already connected.
func (m *Manager) Accept(conn FrameConn) network.Socket {
	s := m.newSocket(conn.RemoteAddr())
	if !m.track(s) {
		_ = conn.Close()
		return s
	}
	s.conn = conn
	m.enqueue(event{kind: eventAccepted, socket: s})
	s.start()
	return s
}

// Connect adopts a FrameConn opened by this side. The returned socket is Connecting until the
// next Update reports it connected.
func (m *Manager) Connect(conn FrameConn) network.Socket {
	s := m.newSocket(conn.RemoteAddr())
	if !m.track(s) {
		_ = conn.Close()
		return s
	}
	s.conn = conn
	m.enqueue(event{kind: eventConnected, socket: s})
	s.start()
	return s
}

// Dial opens a connection in the background. The socket reports OnConnected or OnConnectFailed
// from a later Update.
func (m *Manager) Dial(ctx context.Context, dial DialFunc) network.Socket {
	s := m.newSocket("")
	if !m.track(s) {
		return s
	}
	go func() {
		conn, err := dial(ctx)
		if err != nil {
			glog.Warningf("socket %d: dial failed: %v", s.id, err)
			s.lostOnce.Do(func() {
				m.enqueue(event{kind: eventConnectFailed, socket: s})
			})
			return
		}
		if !s.attach(conn) {
			_ = conn.Close()
			s.lost()
			return
		}
		m.enqueue(event{kind: eventConnected, socket: s})
		s.start()
	}()
	return s
}

// Update dispatches the events queued so far and returns how many were handled. It must only
// be called from the service loop.
func (m *Manager) Update() int {
	n := len(m.events)
	for i := 0; i < n; i++ {
		select {
		case ev := <-m.events:
			m.dispatch(ev)
		default:
			return i
		}
	}
	return n
}

// Close closes every socket. Events already queued can still be drained with Update.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sockets := make([]*socket, 0, len(m.sockets))
	for _, s := range m.sockets {
		sockets = append(sockets, s)
	}
	m.mu.Unlock()

	for _, s := range sockets {
		_ = s.Close()
	}
	close(m.done)
}

// SocketCount is the number of sockets that have not been reported disconnected yet.
func (m *Manager) SocketCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sockets)
}

func (m *Manager) newSocket(remote string) *socket {
	return &socket{
		id:     network.SocketID(m.nextSocket.Add(1)),
		m:      m,
		status: network.SocketConnecting,
		remote: remote,
		sendq:  make(chan []byte, m.sendQueueSize),
		done:   make(chan struct{}),
		drain:  make(chan struct{}),
	}
}

func (m *Manager) track(s *socket) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		s.status = network.SocketDisconnected
		return false
	}
	m.sockets[s.id] = s
	return true
}

func (m *Manager) forget(s *socket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sockets, s.id)
}

func (m *Manager) enqueue(ev event) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

func (m *Manager) dispatch(ev event) {
	s := ev.socket
	switch ev.kind {
	case eventAccepted:
		if !s.transition(network.SocketConnecting, network.SocketConnected) {
			return
		}
		m.mu.Lock()
		acceptors := make([]network.AcceptListener, 0, len(m.acceptors))
		for _, l := range m.acceptors {
			acceptors = append(acceptors, l)
		}
		m.mu.Unlock()
		if len(acceptors) == 0 {
			glog.Warningf("socket %d: nobody is accepting connections, closing", s.id)
			_ = s.Close()
			return
		}
		glog.V(1).Infof("socket %d: accepted connection from %s", s.id, s.RemoteAddr())
		for _, l := range acceptors {
			l.OnNewConnection(s)
		}

	case eventConnected:
		if !s.transition(network.SocketConnecting, network.SocketConnected) {
			return
		}
		glog.V(1).Infof("socket %d: connected to %s", s.id, s.RemoteAddr())
		if l := s.currentListener(); l != nil {
			l.OnConnected(s)
		}

	case eventConnectFailed:
		s.setStatus(network.SocketDisconnected)
		m.forget(s)
		if l := s.currentListener(); l != nil {
			l.OnConnectFailed(s)
		}

	case eventDisconnected:
		prev := s.setStatus(network.SocketDisconnected)
		m.forget(s)
		glog.V(1).Infof("socket %d: disconnected from %s", s.id, s.RemoteAddr())
		l := s.currentListener()
		if l == nil {
			return
		}
		if prev == network.SocketConnecting {
			l.OnConnectFailed(s)
			return
		}
		l.OnDisconnected(s)

	case eventMessage:
		if s.Status() != network.SocketConnected {
			return
		}
		if l := s.currentListener(); l != nil {
			l.OnMessageReceived(s, ev.frame)
		}
	}
}

func (m *Manager) addInterceptor(fn network.InterceptFunc) func() {
	m.interceptMu.Lock()
	defer m.interceptMu.Unlock()

	m.nextInterceptor++
	handle := m.nextInterceptor
	m.interceptors = append(m.interceptors, interceptor{handle: handle, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			m.interceptMu.Lock()
			defer m.interceptMu.Unlock()
			for i, in := range m.interceptors {
				if in.handle == handle {
					m.interceptors = append(m.interceptors[:i:i], m.interceptors[i+1:]...)
					return
				}
			}
		})
	}
}

// intercept runs in a socket's reader goroutine.
func (m *Manager) intercept(sender network.SocketID, frame []byte) bool {
	m.interceptMu.RLock()
	defer m.interceptMu.RUnlock()
	for _, in := range m.interceptors {
		if in.fn(sender, frame) {
			return true
		}
	}
	return false
}
