package network

import "fmt"

// MessageID is the first byte of every frame on the wire and selects which listeners receive it.
type MessageID byte

const (
	// StatusOnly is the slot used by listeners that registered for an id below Start. They get
	// connect, disconnect and connect-failed notices but never any payload.
	StatusOnly MessageID = 0

	// Start is the first id that may appear on the wire. Everything below it is reserved for
	// connection status pseudo types.
	Start MessageID = 0x10
)

const (
	// Broadcast frames carry a BroadcastHeader and are fanned out by the receiving session.
	Broadcast MessageID = Start + iota
	// SessionControl frames carry JSON session control messages.
	SessionControl
	// SyncMessage frames carry the object tree replication protocol.
	SyncMessage
	// Tunnel frames wrap a whole frame of a secondary connection.
	Tunnel
	// Handshake frames are exchanged on a raw socket before it is wrapped in a Connection.
	Handshake
)

// UserMessageStart is the first id available to applications.
const UserMessageStart MessageID = Start + 0x10

func (m MessageID) String() string {
	switch m {
	case StatusOnly:
		return "StatusOnly"
	case Broadcast:
		return "Broadcast"
	case SessionControl:
		return "SessionControl"
	case SyncMessage:
		return "SyncMessage"
	case Tunnel:
		return "Tunnel"
	case Handshake:
		return "Handshake"
	}
	if m >= UserMessageStart {
		return fmt.Sprintf("User(%d)", m-UserMessageStart)
	}
	return fmt.Sprintf("MessageID(%d)", byte(m))
}

// normalize maps reserved ids onto StatusOnly.
func (m MessageID) normalize() MessageID {
	if m < Start {
		return StatusOnly
	}
	return m
}

type Priority byte

const (
	ImmediatePriority Priority = iota
	HighPriority
	MediumPriority
	LowPriority
)

type Reliability byte

const (
	Unreliable Reliability = iota
	UnreliableSequenced
	Reliable
	ReliableOrdered
	ReliableSequenced
)

// IsReliable reports whether frames sent with r must not be dropped.
func (r Reliability) IsReliable() bool {
	return r >= Reliable
}

type Channel byte

const (
	DefaultChannel Channel = iota
	SessionChannel
	SyncChannel
	AudioChannel
	UserChannelStart Channel = 16
)
