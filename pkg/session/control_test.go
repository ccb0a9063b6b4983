package session

import (
	"testing"

	"github.com/mikekulinski/collab/pkg/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func controlFrame(text string) *network.InMessage {
	out := network.NewOutMessage(network.SessionControl)
	out.WriteString(text)
	return network.NewInMessage(out.Bytes())
}

func TestControl_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  ControlMessage
	}{
		{
			name: "join request",
			msg:  JoinSessionRequest{User: User{Name: "ada", ID: 42, Muted: true}},
		},
		{
			name: "largest user id",
			msg:  JoinSessionRequest{User: User{Name: "max", ID: 0xffffffff}},
		},
		{
			name: "join accepted",
			msg:  JoinSessionReply{Success: true},
		},
		{
			name: "join rejected",
			msg:  JoinSessionReply{Success: false},
		},
		{
			name: "user changed",
			msg:  UserChangedSessionMsg{User: User{Name: "grace", ID: 7}},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			out, err := EncodeControl(test.msg)
			require.NoError(t, err)
			assert.Equal(t, network.SessionControl, out.Type())

			got, err := DecodeControl(network.NewInMessage(out.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, test.msg, got)
		})
	}
}

func TestControl_WireFormat(t *testing.T) {
	out, err := EncodeControl(JoinSessionRequest{User: User{Name: "ada", ID: 42}})
	require.NoError(t, err)

	text, err := network.NewInMessage(out.Bytes()).ReadString()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"JoinSessionRequest","userName":"ada","userID":42,"muteState":false}`, text)
}

func TestDecodeControl_Malformed(t *testing.T) {
	tests := []struct {
		name string
		msg  *network.InMessage
	}{
		{
			name: "no payload",
			msg:  network.NewInMessage([]byte{byte(network.SessionControl)}),
		},
		{
			name: "not json",
			msg:  controlFrame("join please"),
		},
		{
			name: "json array",
			msg:  controlFrame(`[1, 2]`),
		},
		{
			name: "missing type",
			msg:  controlFrame(`{"success":true}`),
		},
		{
			name: "unknown type",
			msg:  controlFrame(`{"type":"LeaveSessionRequest"}`),
		},
		{
			name: "missing field",
			msg:  controlFrame(`{"type":"JoinSessionReply"}`),
		},
		{
			name: "name is not a string",
			msg:  controlFrame(`{"type":"JoinSessionRequest","userName":3,"userID":1,"muteState":false}`),
		},
		{
			name: "negative user id",
			msg:  controlFrame(`{"type":"JoinSessionRequest","userName":"ada","userID":-1,"muteState":false}`),
		},
		{
			name: "fractional user id",
			msg:  controlFrame(`{"type":"JoinSessionRequest","userName":"ada","userID":1.5,"muteState":false}`),
		},
		{
			name: "user id too large",
			msg:  controlFrame(`{"type":"UserChangedSessionMsg","userName":"ada","userID":4294967296,"muteState":false}`),
		},
		{
			name: "mute state is not a bool",
			msg:  controlFrame(`{"type":"UserChangedSessionMsg","userName":"ada","userID":1,"muteState":"yes"}`),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := DecodeControl(test.msg)
			assert.ErrorIs(t, err, ErrMalformedControl)
		})
	}
}

func TestRouter(t *testing.T) {
	r := NewRouter()
	conn := network.NewConnection()

	var joins []User
	Handle(r, func(m JoinSessionRequest, from *network.Connection) {
		assert.Same(t, conn, from)
		joins = append(joins, m.User)
	})

	encode := func(m ControlMessage) *network.InMessage {
		out, err := EncodeControl(m)
		require.NoError(t, err)
		return network.NewInMessage(out.Bytes())
	}

	require.NoError(t, r.Route(conn, encode(JoinSessionRequest{User: User{Name: "ada", ID: 1}})))
	assert.Equal(t, []User{{Name: "ada", ID: 1}}, joins)

	err := r.Route(conn, encode(JoinSessionReply{Success: true}))
	assert.ErrorIs(t, err, ErrNoHandler)

	err = r.Route(conn, controlFrame("{"))
	assert.ErrorIs(t, err, ErrMalformedControl)
	assert.Len(t, joins, 1)

	t.Run("later handlers replace earlier ones", func(t *testing.T) {
		var replaced bool
		Handle(r, func(JoinSessionRequest, *network.Connection) {
			replaced = true
		})
		require.NoError(t, r.Route(conn, encode(JoinSessionRequest{User: User{Name: "bob", ID: 2}})))
		assert.True(t, replaced)
		assert.Len(t, joins, 1)
	})
}
