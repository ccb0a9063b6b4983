package network

import (
	"github.com/mikekulinski/collab/pkg/xvalue"
)

// BroadcastHeaderSize is the size of the header written in front of a broadcast payload:
// message id, priority, reliability and channel, one byte each.
const BroadcastHeaderSize = 4

// OutMessage is a frame under construction. The first byte is always its MessageID.
type OutMessage struct {
	*xvalue.Encoder
}

// NewOutMessage starts a frame of the given type.
func NewOutMessage(messageType MessageID) *OutMessage {
	return &OutMessage{Encoder: xvalue.NewEncoderWith(byte(messageType))}
}

func (m *OutMessage) Type() MessageID {
	return MessageID(m.Bytes()[0])
}

// InMessage is a received frame with its read cursor positioned just past the type byte.
// Every listener receives its own InMessage, so consuming one never affects another.
type InMessage struct {
	*xvalue.Decoder
	messageType MessageID
	size        int
}

// NewInMessage wraps a raw frame. The frame must not be empty.
func NewInMessage(frame []byte) *InMessage {
	d := xvalue.NewDecoder(frame)
	b, _ := d.ReadByte()
	return &InMessage{
		Decoder:     d,
		messageType: MessageID(b),
		size:        len(frame),
	}
}

func (m *InMessage) Type() MessageID {
	return m.messageType
}

// Size is the size of the whole frame including the type byte.
func (m *InMessage) Size() int {
	return m.size
}

// BroadcastHeader is the routing information a sender attaches to a broadcast frame.
type BroadcastHeader struct {
	Priority    Priority
	Reliability Reliability
	Channel     Channel
}

// encodeBroadcast prefixes payload with a broadcast header.
func encodeBroadcast(payload []byte, header BroadcastHeader) []byte {
	frame := make([]byte, 0, BroadcastHeaderSize+len(payload))
	frame = append(frame, byte(Broadcast), byte(header.Priority), byte(header.Reliability), byte(header.Channel))
	return append(frame, payload...)
}

// ReadBroadcastHeader consumes the remainder of a broadcast header from msg, whose type byte
// has already been consumed, and returns the header plus the inner frame.
func ReadBroadcastHeader(msg *InMessage) (BroadcastHeader, []byte, error) {
	b, err := msg.ReadBytes(BroadcastHeaderSize - 1)
	if err != nil {
		return BroadcastHeader{}, nil, err
	}
	header := BroadcastHeader{
		Priority:    Priority(b[0]),
		Reliability: Reliability(b[1]),
		Channel:     Channel(b[2]),
	}
	return header, msg.Rest(), nil
}
