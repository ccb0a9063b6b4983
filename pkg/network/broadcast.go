package network

import (
	"sync"

	"github.com/golang/glog"
)

// BroadcastForwarder fans Broadcast frames out to every registered connection outside the
// sender's group. Connections that belong to the same peer share a group so a peer never
// receives its own broadcast.
type BroadcastForwarder struct {
	mu      sync.Mutex
	members map[*Connection]uint64
}

func NewBroadcastForwarder() *BroadcastForwarder {
	return &BroadcastForwarder{members: map[*Connection]uint64{}}
}

// AddConnection starts forwarding broadcasts sent by conn. Adding a connection twice only moves
// it to the new group.
func (f *BroadcastForwarder) AddConnection(conn *Connection, group uint64) {
	f.mu.Lock()
	_, exists := f.members[conn]
	f.members[conn] = group
	f.mu.Unlock()

	if !exists {
		conn.AddListener(Broadcast, f)
	}
}

func (f *BroadcastForwarder) RemoveConnection(conn *Connection) {
	f.mu.Lock()
	_, exists := f.members[conn]
	delete(f.members, conn)
	f.mu.Unlock()

	if exists {
		conn.RemoveListener(Broadcast, f)
	}
}

func (f *BroadcastForwarder) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.members)
}

func (f *BroadcastForwarder) OnConnected(*Connection)     {}
func (f *BroadcastForwarder) OnConnectFailed(*Connection) {}
func (f *BroadcastForwarder) OnDisconnected(*Connection)  {}

func (f *BroadcastForwarder) OnMessageReceived(sender *Connection, msg *InMessage) {
	header, inner, err := ReadBroadcastHeader(msg)
	if err != nil {
		glog.Errorf("connection %d: malformed broadcast: %v", sender.ID(), err)
		return
	}
	if len(inner) == 0 {
		return
	}

	f.mu.Lock()
	group, ok := f.members[sender]
	if !ok {
		f.mu.Unlock()
		return
	}
	targets := make([]*Connection, 0, len(f.members))
	for conn, g := range f.members {
		if g != group {
			targets = append(targets, conn)
		}
	}
	f.mu.Unlock()

	glog.V(2).Infof("connection %d: forwarding %s broadcast to %d connections", sender.ID(), frameType(inner), len(targets))
	for _, conn := range targets {
		if !conn.IsConnected() {
			continue
		}
		if err := conn.SendRaw(inner, header.Priority, header.Reliability, header.Channel); err != nil {
			glog.V(1).Infof("connection %d: dropping forwarded broadcast: %v", conn.ID(), err)
		}
	}
}
