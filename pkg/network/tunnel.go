package network

import (
	"sync"
	"sync/atomic"
)

// Tunnel socket ids live above the range handed out by transports.
var tunnelCounter atomic.Uint64

func nextTunnelID() SocketID {
	return SocketID(1<<32 + tunnelCounter.Add(1))
}

// NewTunnelConnection returns a secondary Connection that shares the primary's link. Every frame
// it sends travels as a Tunnel message on primary, and Tunnel messages received by primary are
// unwrapped and delivered to it. Its status follows the primary.
func NewTunnelConnection(primary *Connection) *Connection {
	conn := NewConnection()
	conn.SetSocket(&tunnelSocket{id: nextTunnelID(), primary: primary})
	return conn
}

// tunnelSocket is a Socket carried inside another Connection.
type tunnelSocket struct {
	id      SocketID
	primary *Connection

	mu       sync.Mutex
	listener SocketListener
	hook     *ListenerFuncs
	closed   bool
}

func (t *tunnelSocket) ID() SocketID {
	return t.id
}

func (t *tunnelSocket) Send(frame []byte, priority Priority, reliability Reliability, channel Channel) error {
	if t.Status() != SocketConnected {
		return ErrNotConnected
	}
	wrapped := make([]byte, 0, len(frame)+1)
	wrapped = append(wrapped, byte(Tunnel))
	return t.primary.SendRaw(append(wrapped, frame...), priority, reliability, channel)
}

func (t *tunnelSocket) Status() SocketStatus {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return SocketDisconnected
	}
	s := t.primary.Socket()
	if s == nil {
		return SocketDisconnected
	}
	return s.Status()
}

func (t *tunnelSocket) RegisterListener(l SocketListener) func() {
	t.mu.Lock()
	t.listener = l
	install := t.hook == nil && !t.closed
	if install {
		t.hook = t.newHook()
	}
	hook := t.hook
	t.mu.Unlock()

	if install {
		t.primary.AddListener(Tunnel, hook)
	}
	return func() {
		t.mu.Lock()
		if t.listener != l {
			t.mu.Unlock()
			return
		}
		t.listener = nil
		hook := t.hook
		t.hook = nil
		t.mu.Unlock()

		if hook != nil {
			t.primary.RemoveListener(Tunnel, hook)
		}
	}
}

// newHook builds the listener that relays the primary's Tunnel traffic and status.
func (t *tunnelSocket) newHook() *ListenerFuncs {
	return &ListenerFuncs{
		Connected: func(*Connection) {
			if l := t.currentListener(); l != nil {
				l.OnConnected(t)
			}
		},
		ConnectFailed: func(*Connection) {
			if l := t.currentListener(); l != nil {
				l.OnConnectFailed(t)
			}
		},
		Disconnected: func(*Connection) {
			if l := t.currentListener(); l != nil {
				l.OnDisconnected(t)
			}
		},
		Message: func(_ *Connection, msg *InMessage) {
			inner := msg.Rest()
			if len(inner) == 0 {
				return
			}
			if l := t.currentListener(); l != nil {
				l.OnMessageReceived(t, inner)
			}
		},
	}
}

func (t *tunnelSocket) currentListener() SocketListener {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	return t.listener
}

// AddInterceptor installs fn on the primary's current socket, unwrapping Tunnel frames for it.
func (t *tunnelSocket) AddInterceptor(fn InterceptFunc) func() {
	s := t.primary.Socket()
	if s == nil {
		return func() {}
	}
	carrier := s.ID()
	return s.AddInterceptor(func(from SocketID, frame []byte) bool {
		if from != carrier || len(frame) < 2 || MessageID(frame[0]) != Tunnel {
			return false
		}
		return fn(t.id, frame[1:])
	})
}

func (t *tunnelSocket) RemoteAddr() string {
	return t.primary.RemoteAddr() + "/tunnel"
}

// Close stops the tunnel. The primary connection is left untouched.
func (t *tunnelSocket) Close() error {
	t.mu.Lock()
	t.closed = true
	hook := t.hook
	t.hook = nil
	t.mu.Unlock()

	if hook != nil {
		t.primary.RemoveListener(Tunnel, hook)
	}
	return nil
}
