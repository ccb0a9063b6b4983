package network

import "sync"

// Listener receives the traffic and status notices of a Connection.
type Listener interface {
	OnConnected(c *Connection)
	OnConnectFailed(c *Connection)
	OnDisconnected(c *Connection)
	OnMessageReceived(c *Connection, msg *InMessage)
}

// Delivery selects where a listener is invoked.
type Delivery int

const (
	// Queued listeners run on the service loop, after the transport event has been queued.
	Queued Delivery = iota
	// Immediate listeners run in the transport's delivery goroutine as soon as the frame
	// arrives, and consume it.
	Immediate
)

func (d Delivery) String() string {
	if d == Immediate {
		return "Immediate"
	}
	return "Queued"
}

// ListenerFuncs is a Listener built from optional funcs. Use it by pointer so it can be removed again.
type ListenerFuncs struct {
	Connected     func(c *Connection)
	ConnectFailed func(c *Connection)
	Disconnected  func(c *Connection)
	Message       func(c *Connection, msg *InMessage)
}

func (l *ListenerFuncs) OnConnected(c *Connection) {
	if l.Connected != nil {
		l.Connected(c)
	}
}

func (l *ListenerFuncs) OnConnectFailed(c *Connection) {
	if l.ConnectFailed != nil {
		l.ConnectFailed(c)
	}
}

func (l *ListenerFuncs) OnDisconnected(c *Connection) {
	if l.Disconnected != nil {
		l.Disconnected(c)
	}
}

func (l *ListenerFuncs) OnMessageReceived(c *Connection, msg *InMessage) {
	if l.Message != nil {
		l.Message(c, msg)
	}
}

// listenerList is a copy-on-write list. Snapshots handed out are never mutated, so a listener
// may add or remove listeners while the list is being notified.
type listenerList struct {
	mu        sync.Mutex
	listeners []Listener
}

func (l *listenerList) add(listener Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := make([]Listener, len(l.listeners), len(l.listeners)+1)
	copy(next, l.listeners)
	l.listeners = append(next, listener)
}

// remove drops the first registration of listener and reports whether one was found.
func (l *listenerList) remove(listener Listener) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, existing := range l.listeners {
		if existing == listener {
			next := make([]Listener, 0, len(l.listeners)-1)
			next = append(next, l.listeners[:i]...)
			l.listeners = append(next, l.listeners[i+1:]...)
			return true
		}
	}
	return false
}

func (l *listenerList) snapshot() []Listener {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listeners
}
