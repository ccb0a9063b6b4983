package transport

import (
	"sync"

	"github.com/golang/glog"
	"github.com/mikekulinski/collab/pkg/network"
)

// socket adapts a FrameConn to network.Socket. One goroutine reads and runs the interceptors,
// another drains the send queue.
type socket struct {
	id     network.SocketID
	m      *Manager
	sendq  chan []byte
	done   chan struct{}
	remote string

	// drain asks the writer to flush the send queue and then shut down.
	drain     chan struct{}
	drainOnce sync.Once
	closeOnce sync.Once
	lostOnce  sync.Once

	mu       sync.Mutex
	conn     FrameConn
	status   network.SocketStatus
	listener network.SocketListener
	closing  bool
}

var _ network.Socket = (*socket)(nil)

func (s *socket) ID() network.SocketID {
	return s.id
}

// Send queues frame for the writer goroutine. Unreliable frames are dropped when the queue is
// full, reliable ones wait for room.
func (s *socket) Send(frame []byte, _ network.Priority, reliability network.Reliability, _ network.Channel) error {
	if s.Status() != network.SocketConnected {
		return network.ErrNotConnected
	}
	frame = append([]byte(nil), frame...)

	if !reliability.IsReliable() {
		select {
		case s.sendq <- frame:
		default:
			glog.V(2).Infof("socket %d: send queue full, dropping unreliable %d byte frame", s.id, len(frame))
		}
		return nil
	}
	select {
	case s.sendq <- frame:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

func (s *socket) Status() network.SocketStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *socket) RegisterListener(l network.SocketListener) func() {
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

func (s *socket) AddInterceptor(fn network.InterceptFunc) func() {
	return s.m.addInterceptor(fn)
}

func (s *socket) RemoteAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

// Close starts an orderly shutdown: frames already queued are still written, then the
// FrameConn is closed. The socket is Disconnecting until the service loop sees the reader stop.
func (s *socket) Close() error {
	s.mu.Lock()
	s.closing = true
	if s.status == network.SocketConnected || s.status == network.SocketConnecting {
		s.status = network.SocketDisconnecting
	}
	started := s.conn != nil
	s.mu.Unlock()

	if !started {
		return s.shutdown()
	}
	s.drainOnce.Do(func() {
		close(s.drain)
	})
	return nil
}

func (s *socket) shutdown() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn != nil {
			err = conn.Close()
		}
	})
	return err
}

// attach binds a dialed FrameConn. It fails if the socket was closed while dialing.
func (s *socket) attach(conn FrameConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conn = conn
	s.remote = conn.RemoteAddr()
	return true
}

func (s *socket) start() {
	go s.readLoop()
	go s.writeLoop()
}

func (s *socket) readLoop() {
	for {
		frame, err := s.conn.ReadFrame()
		if err != nil {
			glog.V(1).Infof("socket %d: read stopped: %v", s.id, err)
			s.lost()
			return
		}
		if len(frame) == 0 {
			continue
		}
		if s.m.intercept(s.id, frame) {
			continue
		}
		s.m.enqueue(event{kind: eventMessage, socket: s, frame: frame})
	}
}

func (s *socket) writeLoop() {
	for {
		select {
		case frame := <-s.sendq:
			if err := s.conn.WriteFrame(frame); err != nil {
				glog.V(1).Infof("socket %d: write failed: %v", s.id, err)
				s.lost()
				return
			}
		case <-s.drain:
			s.flush()
			_ = s.shutdown()
			return
		case <-s.done:
			return
		}
	}
}

func (s *socket) flush() {
	for {
		select {
		case frame := <-s.sendq:
			if err := s.conn.WriteFrame(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

// lost reports the end of the connection exactly once and releases the FrameConn.
func (s *socket) lost() {
	s.lostOnce.Do(func() {
		s.m.enqueue(event{kind: eventDisconnected, socket: s})
	})
	_ = s.shutdown()
}

func (s *socket) currentListener() network.SocketListener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener
}

// transition moves the status from one value to another and reports whether it did.
func (s *socket) transition(from, to network.SocketStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != from {
		return false
	}
	s.status = to
	return true
}

// setStatus returns the previous status.
func (s *socket) setStatus(status network.SocketStatus) network.SocketStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.status
	s.status = status
	return prev
}
