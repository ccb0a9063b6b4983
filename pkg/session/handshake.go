package session

import (
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/mikekulinski/collab/pkg/network"
)

const (
	// HandshakeMagic opens every handshake frame.
	HandshakeMagic uint32 = 0x636f6c62
	// ProtocolVersion must match on both sides.
	ProtocolVersion uint16 = 1
)

type HandshakeResult int

const (
	HandshakeSuccess HandshakeResult = iota
	// HandshakeMismatch means the peer speaks another protocol, version or role.
	HandshakeMismatch
	HandshakeFailed
	HandshakeTimedOut
)

func (r HandshakeResult) String() string {
	switch r {
	case HandshakeSuccess:
		return "Success"
	case HandshakeMismatch:
		return "Mismatch"
	case HandshakeFailed:
		return "Failed"
	case HandshakeTimedOut:
		return "TimedOut"
	default:
		return fmt.Sprintf("HandshakeResult(%d)", int(r))
	}
}

// Role is the part a peer plays in a session.
type Role byte

const (
	RoleServer Role = iota + 1
	RoleClient
)

// HandshakeLogic decides what a side says first and whether it accepts what the peer said.
type HandshakeLogic interface {
	Hello() *network.OutMessage
	Validate(msg *network.InMessage) HandshakeResult
}

// SessionHandshakeLogic exchanges the magic, the protocol version and the role. A server only
// accepts clients and a client only accepts servers.
type SessionHandshakeLogic struct {
	role Role
}

func NewSessionHandshakeLogic(server bool) *SessionHandshakeLogic {
	if server {
		return &SessionHandshakeLogic{role: RoleServer}
	}
	return &SessionHandshakeLogic{role: RoleClient}
}

func (l *SessionHandshakeLogic) Hello() *network.OutMessage {
	out := network.NewOutMessage(network.Handshake)
	out.WriteUint32(HandshakeMagic)
	out.WriteUint16(ProtocolVersion)
	_ = out.WriteByte(byte(l.role))
	return out
}

func (l *SessionHandshakeLogic) Validate(msg *network.InMessage) HandshakeResult {
	magic, err := msg.ReadUint32()
	if err != nil {
		return HandshakeFailed
	}
	version, err := msg.ReadUint16()
	if err != nil {
		return HandshakeFailed
	}
	role, err := msg.ReadByte()
	if err != nil {
		return HandshakeFailed
	}
	if magic != HandshakeMagic || version != ProtocolVersion {
		glog.Warningf("handshake: peer speaks %08x version %d, want %08x version %d", magic, version, HandshakeMagic, ProtocolVersion)
		return HandshakeMismatch
	}
	want := RoleClient
	if l.role == RoleClient {
		want = RoleServer
	}
	if Role(role) != want {
		glog.Warningf("handshake: peer has role %d, want %d", role, want)
		return HandshakeMismatch
	}
	return HandshakeSuccess
}

// HandshakeCallback receives the outcome of a handshake. On failure the socket is already closed.
type HandshakeCallback func(s network.Socket, id network.SocketID, result HandshakeResult)

// NetworkHandshake runs a HandshakeLogic on a raw socket before it is wrapped in a Connection.
// Each side sends its hello once connected and succeeds when it has sent its own and accepted
// the peer's. It is driven from the service loop, which must call CheckTimeout regularly.
type NetworkHandshake struct {
	socket   network.Socket
	id       network.SocketID
	logic    HandshakeLogic
	callback HandshakeCallback
	deadline time.Time

	unregister func()
	sent       bool
	received   bool
	done       bool
}

var _ network.SocketListener = (*NetworkHandshake)(nil)

// NewNetworkHandshake takes over s's listener until the handshake is over. It fails with
// HandshakeTimedOut if it has not finished by deadline.
func NewNetworkHandshake(s network.Socket, logic HandshakeLogic, deadline time.Time, callback HandshakeCallback) *NetworkHandshake {
	h := &NetworkHandshake{
		socket:   s,
		id:       s.ID(),
		logic:    logic,
		callback: callback,
		deadline: deadline,
	}
	h.unregister = s.RegisterListener(h)
	if s.Status() == network.SocketConnected {
		h.sendHello()
	}
	return h
}

func (h *NetworkHandshake) Done() bool {
	return h.done
}

// CheckTimeout fails the handshake if now is past its deadline.
func (h *NetworkHandshake) CheckTimeout(now time.Time) {
	if !h.done && now.After(h.deadline) {
		h.finish(HandshakeTimedOut)
	}
}

// Abort closes the socket without reporting a result.
func (h *NetworkHandshake) Abort() {
	if h.done {
		return
	}
	h.done = true
	h.unregister()
	_ = h.socket.Close()
}

func (h *NetworkHandshake) OnConnected(network.Socket) {
	if !h.done {
		h.sendHello()
	}
}

func (h *NetworkHandshake) OnConnectFailed(network.Socket) {
	if !h.done {
		h.finish(HandshakeFailed)
	}
}

func (h *NetworkHandshake) OnDisconnected(network.Socket) {
	if !h.done {
		h.finish(HandshakeFailed)
	}
}

func (h *NetworkHandshake) OnMessageReceived(_ network.Socket, frame []byte) {
	if h.done {
		return
	}
	if msgType := network.NewInMessage(frame).Type(); msgType != network.Handshake {
		glog.Errorf("handshake %d: got a %s frame before the handshake finished", h.id, msgType)
		h.finish(HandshakeFailed)
		return
	}
	if result := h.logic.Validate(network.NewInMessage(frame)); result != HandshakeSuccess {
		h.finish(result)
		return
	}
	h.received = true
	if h.sent {
		h.finish(HandshakeSuccess)
	}
}

func (h *NetworkHandshake) sendHello() {
	if h.sent {
		return
	}
	err := h.socket.Send(h.logic.Hello().Bytes(), network.HighPriority, network.ReliableOrdered, network.SessionChannel)
	if err != nil {
		glog.Warningf("handshake %d: error sending hello: %v", h.id, err)
		h.finish(HandshakeFailed)
		return
	}
	h.sent = true
	if h.received {
		h.finish(HandshakeSuccess)
	}
}

func (h *NetworkHandshake) finish(result HandshakeResult) {
	h.done = true
	h.unregister()
	if result != HandshakeSuccess {
		_ = h.socket.Close()
	}
	h.callback(h.socket, h.id, result)
}
