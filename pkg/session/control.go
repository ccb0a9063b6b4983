package session

import (
	"errors"
	"fmt"
	"math"

	"github.com/mikekulinski/collab/pkg/network"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	ErrMalformedControl = errors.New("session: malformed control message")
	ErrNoHandler        = errors.New("session: no handler for control message")
)

// InvalidUserID is never a valid user. Joins carrying it are rejected.
const InvalidUserID uint32 = 0

// User describes a participant as it presents itself to the session.
type User struct {
	Name  string
	ID    uint32
	Muted bool
}

// ControlMessage is a session control message. On the wire it is a JSON object whose "type"
// member names the message, carried as a string in a SessionControl frame.
type ControlMessage interface {
	Type() string
	fields() map[string]any
}

type JoinSessionRequest struct {
	User User
}

func (JoinSessionRequest) Type() string {
	return "JoinSessionRequest"
}

func (m JoinSessionRequest) fields() map[string]any {
	return userFields(m.User)
}

type JoinSessionReply struct {
	Success bool
}

func (JoinSessionReply) Type() string {
	return "JoinSessionReply"
}

func (m JoinSessionReply) fields() map[string]any {
	return map[string]any{"success": m.Success}
}

// UserChangedSessionMsg updates the name, id or mute state of a joined user.
type UserChangedSessionMsg struct {
	User User
}

func (UserChangedSessionMsg) Type() string {
	return "UserChangedSessionMsg"
}

func (m UserChangedSessionMsg) fields() map[string]any {
	return userFields(m.User)
}

func userFields(u User) map[string]any {
	return map[string]any{
		"userName":  u.Name,
		"userID":    u.ID,
		"muteState": u.Muted,
	}
}

// EncodeControl renders m as a SessionControl frame.
func EncodeControl(m ControlMessage) (*network.OutMessage, error) {
	fields := m.fields()
	fields["type"] = m.Type()
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("error building %s: %w", m.Type(), err)
	}
	text, err := protojson.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("error marshaling %s: %w", m.Type(), err)
	}
	out := network.NewOutMessage(network.SessionControl)
	out.WriteString(string(text))
	return out, nil
}

// SendControl sends m reliably and in order on the session channel.
func SendControl(conn *network.Connection, m ControlMessage) error {
	out, err := EncodeControl(m)
	if err != nil {
		return err
	}
	return conn.Send(out, network.HighPriority, network.ReliableOrdered, network.SessionChannel)
}

// DecodeControl parses the payload of a SessionControl frame.
func DecodeControl(msg *network.InMessage) (ControlMessage, error) {
	text, err := msg.ReadString()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedControl, err)
	}
	st := &structpb.Struct{}
	if err := protojson.Unmarshal([]byte(text), st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedControl, err)
	}
	msgType, err := stringField(st, "type")
	if err != nil {
		return nil, err
	}

	switch msgType {
	case JoinSessionRequest{}.Type():
		u, err := readUser(st)
		return JoinSessionRequest{User: u}, err
	case UserChangedSessionMsg{}.Type():
		u, err := readUser(st)
		return UserChangedSessionMsg{User: u}, err
	case JoinSessionReply{}.Type():
		ok, err := boolField(st, "success")
		return JoinSessionReply{Success: ok}, err
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedControl, msgType)
	}
}

func readUser(st *structpb.Struct) (User, error) {
	name, err := stringField(st, "userName")
	if err != nil {
		return User{}, err
	}
	id, err := uint32Field(st, "userID")
	if err != nil {
		return User{}, err
	}
	muted, err := boolField(st, "muteState")
	if err != nil {
		return User{}, err
	}
	return User{Name: name, ID: id, Muted: muted}, nil
}

func stringField(st *structpb.Struct, name string) (string, error) {
	v, ok := st.GetFields()[name].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%w: %s is not a string", ErrMalformedControl, name)
	}
	return v.StringValue, nil
}

func boolField(st *structpb.Struct, name string) (bool, error) {
	v, ok := st.GetFields()[name].GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, fmt.Errorf("%w: %s is not a bool", ErrMalformedControl, name)
	}
	return v.BoolValue, nil
}

func uint32Field(st *structpb.Struct, name string) (uint32, error) {
	v, ok := st.GetFields()[name].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not a number", ErrMalformedControl, name)
	}
	n := v.NumberValue
	if n < 0 || n > math.MaxUint32 || n != math.Trunc(n) {
		return 0, fmt.Errorf("%w: %s is out of range: %v", ErrMalformedControl, name, n)
	}
	return uint32(n), nil
}

// Router hands decoded control messages to the handler registered for their type.
type Router struct {
	handlers map[string]func(ControlMessage, *network.Connection)
}

func NewRouter() *Router {
	return &Router{handlers: map[string]func(ControlMessage, *network.Connection){}}
}

// Handle registers h for messages of type M, replacing any previous handler.
func Handle[M ControlMessage](r *Router, h func(m M, conn *network.Connection)) {
	var zero M
	r.handlers[zero.Type()] = func(m ControlMessage, conn *network.Connection) {
		h(m.(M), conn)
	}
}

// Route decodes msg and calls its handler. It fails if the message is malformed or nobody
// handles its type.
func (r *Router) Route(conn *network.Connection, msg *network.InMessage) error {
	m, err := DecodeControl(msg)
	if err != nil {
		return err
	}
	h, ok := r.handlers[m.Type()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, m.Type())
	}
	h(m, conn)
	return nil
}
