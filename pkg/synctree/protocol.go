package synctree

import (
	"fmt"

	"github.com/mikekulinski/collab/pkg/network"
	"github.com/mikekulinski/collab/pkg/xvalue"
)

// Sync messages travel in order on one channel, which keeps every element's history in order.
const (
	syncPriority    = network.HighPriority
	syncReliability = network.ReliableOrdered
	syncChannel     = network.SyncChannel
)

type op byte

const (
	opHello op = iota + 1
	opCreate
	opDelete
	opValueChanged
)

func (o op) String() string {
	switch o {
	case opHello:
		return "Hello"
	case opCreate:
		return "Create"
	case opDelete:
		return "Delete"
	case opValueChanged:
		return "ValueChanged"
	default:
		return fmt.Sprintf("op(%d)", byte(o))
	}
}

type helloMsg struct {
	authority Authority
}

type createMsg struct {
	parent GUID
	guid   GUID
	name   string
	kind   Kind
	// value is unset for objects.
	value xvalue.Value
}

type deleteMsg struct {
	guid GUID
}

type valueChangedMsg struct {
	guid  GUID
	value xvalue.Value
}

func encodeHello(m helloMsg) *network.OutMessage {
	out := network.NewOutMessage(network.SyncMessage)
	_ = out.WriteByte(byte(opHello))
	_ = out.WriteByte(byte(m.authority))
	return out
}

func encodeCreate(m createMsg) *network.OutMessage {
	out := network.NewOutMessage(network.SyncMessage)
	_ = out.WriteByte(byte(opCreate))
	out.WriteInt64(int64(m.parent))
	out.WriteInt64(int64(m.guid))
	out.WriteValue(xvalue.String(m.name))
	_ = out.WriteByte(byte(m.kind))
	if m.kind != KindObject {
		out.WriteValue(m.value)
	}
	return out
}

func encodeDelete(m deleteMsg) *network.OutMessage {
	out := network.NewOutMessage(network.SyncMessage)
	_ = out.WriteByte(byte(opDelete))
	out.WriteInt64(int64(m.guid))
	return out
}

func encodeValueChanged(m valueChangedMsg) *network.OutMessage {
	out := network.NewOutMessage(network.SyncMessage)
	_ = out.WriteByte(byte(opValueChanged))
	out.WriteInt64(int64(m.guid))
	out.WriteValue(m.value)
	return out
}

func readOp(msg *network.InMessage) (op, error) {
	b, err := msg.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("error reading sync op: %w", err)
	}
	return op(b), nil
}

func decodeHello(msg *network.InMessage) (helloMsg, error) {
	b, err := msg.ReadByte()
	if err != nil {
		return helloMsg{}, fmt.Errorf("error reading authority: %w", err)
	}
	authority := Authority(b)
	if !authority.valid() {
		return helloMsg{}, fmt.Errorf("invalid authority %d", b)
	}
	return helloMsg{authority: authority}, nil
}

func decodeCreate(msg *network.InMessage) (createMsg, error) {
	var m createMsg
	parent, err := msg.ReadInt64()
	if err != nil {
		return m, fmt.Errorf("error reading parent: %w", err)
	}
	guid, err := msg.ReadInt64()
	if err != nil {
		return m, fmt.Errorf("error reading guid: %w", err)
	}
	name, err := msg.ReadValue()
	if err != nil {
		return m, fmt.Errorf("error reading name: %w", err)
	}
	nameStr, ok := name.Str()
	if !ok {
		return m, fmt.Errorf("name has type %s", name.Type())
	}
	kind, err := msg.ReadByte()
	if err != nil {
		return m, fmt.Errorf("error reading kind: %w", err)
	}
	m = createMsg{parent: GUID(parent), guid: GUID(guid), name: nameStr, kind: Kind(kind)}

	switch m.kind {
	case KindObject:
		return m, nil
	case KindInt, KindFloat, KindString:
		m.value, err = readLeafValue(msg, m.kind)
		return m, err
	default:
		return m, fmt.Errorf("unknown element kind %d", kind)
	}
}

func decodeDelete(msg *network.InMessage) (deleteMsg, error) {
	guid, err := msg.ReadInt64()
	if err != nil {
		return deleteMsg{}, fmt.Errorf("error reading guid: %w", err)
	}
	return deleteMsg{guid: GUID(guid)}, nil
}

// decodeValueChanged leaves the type check to the caller, which knows the element.
func decodeValueChanged(msg *network.InMessage) (valueChangedMsg, error) {
	guid, err := msg.ReadInt64()
	if err != nil {
		return valueChangedMsg{}, fmt.Errorf("error reading guid: %w", err)
	}
	v, err := msg.ReadValue()
	if err != nil {
		return valueChangedMsg{}, fmt.Errorf("error reading value: %w", err)
	}
	return valueChangedMsg{guid: GUID(guid), value: v}, nil
}

func readLeafValue(msg *network.InMessage, kind Kind) (xvalue.Value, error) {
	v, err := msg.ReadValue()
	if err != nil {
		return v, fmt.Errorf("error reading value: %w", err)
	}
	if v.Type() != kind.valueType() {
		return v, fmt.Errorf("%s element carries a %s value", kind, v.Type())
	}
	return v, nil
}
