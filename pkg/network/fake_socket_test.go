package network_test

import (
	"fmt"
	"sync"

	"github.com/mikekulinski/collab/pkg/network"
)

type sentFrame struct {
	frame       []byte
	priority    network.Priority
	reliability network.Reliability
	channel     network.Channel
}

// fakeSocket is a Socket driven by the test: events are injected with connect, receive and drop.
type fakeSocket struct {
	id network.SocketID

	mu           sync.Mutex
	status       network.SocketStatus
	listener     network.SocketListener
	sent         []sentFrame
	interceptors map[int]network.InterceptFunc
	nextHandle   int
	closed       bool
}

func newFakeSocket(id network.SocketID) *fakeSocket {
	return &fakeSocket{
		id:           id,
		interceptors: map[int]network.InterceptFunc{},
	}
}

func (s *fakeSocket) ID() network.SocketID {
	return s.id
}

func (s *fakeSocket) Send(frame []byte, p network.Priority, r network.Reliability, ch network.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != network.SocketConnected {
		return fmt.Errorf("socket %d not connected", s.id)
	}
	s.sent = append(s.sent, sentFrame{frame: append([]byte(nil), frame...), priority: p, reliability: r, channel: ch})
	return nil
}

func (s *fakeSocket) Status() network.SocketStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *fakeSocket) RegisterListener(l network.SocketListener) func() {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.listener == l {
			s.listener = nil
		}
	}
}

func (s *fakeSocket) AddInterceptor(fn network.InterceptFunc) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle := s.nextHandle
	s.nextHandle++
	s.interceptors[handle] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.interceptors, handle)
	}
}

func (s *fakeSocket) RemoteAddr() string {
	return fmt.Sprintf("fake:%d", s.id)
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.status = network.SocketDisconnected
	return nil
}

func (s *fakeSocket) currentListener() network.SocketListener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener
}

func (s *fakeSocket) connect() {
	s.mu.Lock()
	s.status = network.SocketConnected
	s.mu.Unlock()
	if l := s.currentListener(); l != nil {
		l.OnConnected(s)
	}
}

func (s *fakeSocket) fail() {
	s.mu.Lock()
	s.status = network.SocketDisconnected
	s.mu.Unlock()
	if l := s.currentListener(); l != nil {
		l.OnConnectFailed(s)
	}
}

func (s *fakeSocket) drop() {
	s.mu.Lock()
	s.status = network.SocketDisconnected
	s.mu.Unlock()
	if l := s.currentListener(); l != nil {
		l.OnDisconnected(s)
	}
}

// receive runs the interceptors like a transport delivery goroutine would, then hands the frame
// to the listener unless it was consumed.
func (s *fakeSocket) receive(frame []byte) {
	s.mu.Lock()
	fns := make([]network.InterceptFunc, 0, len(s.interceptors))
	for _, fn := range s.interceptors {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		if fn(s.id, frame) {
			return
		}
	}
	if l := s.currentListener(); l != nil {
		l.OnMessageReceived(s, frame)
	}
}

func (s *fakeSocket) interceptorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.interceptors)
}

func (s *fakeSocket) sentFrames() []sentFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentFrame(nil), s.sent...)
}

// recorder is a Listener that records what it saw.
type recorder struct {
	name   string
	log    *[]string
	values []int32
}

func (r *recorder) OnConnected(*network.Connection) {
	*r.log = append(*r.log, r.name+":connected")
}

func (r *recorder) OnConnectFailed(*network.Connection) {
	*r.log = append(*r.log, r.name+":failed")
}

func (r *recorder) OnDisconnected(*network.Connection) {
	*r.log = append(*r.log, r.name+":disconnected")
}

func (r *recorder) OnMessageReceived(_ *network.Connection, msg *network.InMessage) {
	*r.log = append(*r.log, fmt.Sprintf("%s:%s", r.name, msg.Type()))
	if v, err := msg.ReadInt32(); err == nil {
		r.values = append(r.values, v)
	}
}
