package transport

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by a FrameConn after either side closed it.
var ErrClosed = errors.New("transport: connection closed")

// FrameConn carries whole frames in order. ReadFrame and WriteFrame are each called from a
// single goroutine, but the two may run concurrently with each other and with Close.
type FrameConn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(frame []byte) error
	Close() error
	RemoteAddr() string
}

// DialFunc opens a FrameConn to a remote peer.
type DialFunc func(ctx context.Context) (FrameConn, error)

const pipeBufferSize = 256

// Pipe returns the two ends of an in-memory FrameConn. Closing either end closes both.
func Pipe() (FrameConn, FrameConn) {
	ab := make(chan []byte, pipeBufferSize)
	ba := make(chan []byte, pipeBufferSize)
	shared := &pipeState{done: make(chan struct{})}
	return &pipeConn{in: ba, out: ab, state: shared, name: "pipe:a"},
		&pipeConn{in: ab, out: ba, state: shared, name: "pipe:b"}
}

type pipeState struct {
	once sync.Once
	done chan struct{}
}

type pipeConn struct {
	in    <-chan []byte
	out   chan<- []byte
	state *pipeState
	name  string
}

// ReadFrame returns the frames written before the pipe was closed before reporting ErrClosed.
func (p *pipeConn) ReadFrame() ([]byte, error) {
	select {
	case frame := <-p.in:
		return frame, nil
	case <-p.state.done:
	}
	select {
	case frame := <-p.in:
		return frame, nil
	default:
		return nil, ErrClosed
	}
}

func (p *pipeConn) WriteFrame(frame []byte) error {
	select {
	case <-p.state.done:
		return ErrClosed
	default:
	}
	select {
	case p.out <- append([]byte(nil), frame...):
		return nil
	case <-p.state.done:
		return ErrClosed
	}
}

func (p *pipeConn) Close() error {
	p.state.once.Do(func() {
		close(p.state.done)
	})
	return nil
}

func (p *pipeConn) RemoteAddr() string {
	return p.name
}
