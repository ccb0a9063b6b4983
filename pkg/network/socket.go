package network

// SocketID identifies a socket within one process.
type SocketID uint64

type SocketStatus int32

const (
	SocketDisconnected SocketStatus = iota
	SocketConnecting
	SocketConnected
	SocketDisconnecting
)

func (s SocketStatus) String() string {
	switch s {
	case SocketConnecting:
		return "Connecting"
	case SocketConnected:
		return "Connected"
	case SocketDisconnecting:
		return "Disconnecting"
	default:
		return "Disconnected"
	}
}

// SocketListener receives the events of one socket. All methods are called from the service
// loop, i.e. from inside SocketManager.Update.
type SocketListener interface {
	OnConnected(s Socket)
	OnConnectFailed(s Socket)
	OnDisconnected(s Socket)
	OnMessageReceived(s Socket, frame []byte)
}

// InterceptFunc inspects a raw inbound frame in the transport's delivery goroutine, before it
// is queued for the service loop. Returning true consumes the frame.
//
// An InterceptFunc must not add or remove interceptors itself.
type InterceptFunc func(sender SocketID, frame []byte) bool

// Socket is one endpoint of the underlying transport.
//
//go:generate mockgen -source=socket.go -destination=mocks/mock_socket.go -package=mock_network
type Socket interface {
	ID() SocketID
	// Send hands a frame to the transport. It never blocks waiting for the remote peer.
	Send(frame []byte, priority Priority, reliability Reliability, channel Channel) error
	Status() SocketStatus
	// RegisterListener makes l the single listener of this socket, replacing any previous one.
	// The returned func unregisters l if it is still the current listener.
	RegisterListener(l SocketListener) (unregister func())
	// AddInterceptor installs fn with the transport. Once the returned func returns, fn is not
	// running and will never be called again.
	AddInterceptor(fn InterceptFunc) (remove func())
	RemoteAddr() string
	Close() error
}

// AcceptListener is told about every socket accepted by a SocketManager.
type AcceptListener interface {
	OnNewConnection(s Socket)
}

// AcceptFunc adapts a function to an AcceptListener.
type AcceptFunc func(s Socket)

func (f AcceptFunc) OnNewConnection(s Socket) {
	f(s)
}

// SocketManager owns the sockets of one service loop.
type SocketManager interface {
	// Listen routes accepted sockets to l until stop is called.
	Listen(l AcceptListener) (stop func())
	// Update dispatches queued socket events and returns how many were handled.
	Update() int
}
