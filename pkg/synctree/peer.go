package synctree

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/mikekulinski/collab/pkg/network"
)

// peer is a connection attached to the tree.
type peer struct {
	conn     *network.Connection
	listener *network.ListenerFuncs
	// authority and synced are known once the peer's Hello arrived.
	authority Authority
	synced    bool
	removed   bool
}

// gone reports whether p can no longer speak for the elements it authored.
func (p *peer) gone() bool {
	return p.removed || !p.conn.IsConnected()
}

// AddConnection attaches a remote replica reachable over conn. Both sides greet each other with
// their authority, and each answers the other's greeting with the elements the other should
// hold. Attaching the same connection twice is a no-op.
func (t *Tree) AddConnection(conn *network.Connection) {
	if t.closed || t.peerFor(conn) != nil {
		return
	}
	p := &peer{conn: conn}
	p.listener = &network.ListenerFuncs{
		Connected: func(*network.Connection) {
			t.sendHello(p)
		},
		ConnectFailed: func(*network.Connection) {
			t.lost(p)
		},
		Disconnected: func(*network.Connection) {
			t.lost(p)
		},
		Message: func(_ *network.Connection, msg *network.InMessage) {
			t.handleMessage(p, msg)
		},
	}
	t.peers = append(t.peers, p)
	conn.AddListener(network.SyncMessage, p.listener)

	if conn.IsConnected() {
		t.sendHello(p)
	}
}

// RemoveConnection detaches conn. If its authority outranks ours, the elements it authored are
// deleted and reported; otherwise they stay in the tree.
func (t *Tree) RemoveConnection(conn *network.Connection) {
	p := t.peerFor(conn)
	if p == nil {
		return
	}
	t.unhook(p)
	for i, existing := range t.peers {
		if existing == p {
			t.peers = append(t.peers[:i:i], t.peers[i+1:]...)
			break
		}
	}
	t.lost(p)
	p.removed = true
}

// PeerCount is the number of attached connections.
func (t *Tree) PeerCount() int {
	return len(t.peers)
}

func (t *Tree) peerFor(conn *network.Connection) *peer {
	for _, p := range t.peers {
		if p.conn == conn {
			return p
		}
	}
	return nil
}

func (t *Tree) unhook(p *peer) {
	p.conn.RemoveListener(network.SyncMessage, p.listener)
}

func (t *Tree) sendHello(p *peer) {
	p.synced = false
	t.send(p, encodeHello(helloMsg{authority: t.authority}))
}

// lost drops what p authored if p outranks this replica.
func (t *Tree) lost(p *peer) {
	if !p.synced {
		return
	}
	p.synced = false
	if p.authority <= t.authority {
		return
	}

	var owned []Element
	t.walk(func(e Element) {
		if e.node().author == p {
			owned = append(owned, e)
		}
	})
	for _, e := range owned {
		// A parent deleted earlier took its subtree with it.
		if e.IsValid() {
			t.deleteSubtree(e, true)
		}
	}
	glog.Infof("tree %s: discarded %d elements authored by connection %d", t.id, len(owned), p.conn.ID())
}

func (t *Tree) send(p *peer, msg *network.OutMessage) {
	if err := p.conn.Send(msg, syncPriority, syncReliability, syncChannel); err != nil {
		glog.V(1).Infof("tree %s: error sending to connection %d: %v", t.id, p.conn.ID(), err)
	}
}

// sendToPeers sends msg to every synced peer except skip.
func (t *Tree) sendToPeers(msg *network.OutMessage, skip *peer) {
	for _, p := range t.peers {
		if p != skip && p.synced {
			t.send(p, msg)
		}
	}
}

// relayToPeers forwards an op received from author to the other peers, if this tree relays.
func (t *Tree) relayToPeers(msg *network.OutMessage, author *peer) {
	if t.relay {
		t.sendToPeers(msg, author)
	}
}

func (t *Tree) handleMessage(p *peer, msg *network.InMessage) {
	if t.closed || p.removed {
		return
	}
	o, err := readOp(msg)
	if err != nil {
		t.malformed(p, err)
		return
	}

	switch o {
	case opHello:
		m, err := decodeHello(msg)
		if err != nil {
			t.malformed(p, err)
			return
		}
		t.handleHello(p, m)
	case opCreate:
		m, err := decodeCreate(msg)
		if err != nil {
			t.malformed(p, err)
			return
		}
		t.handleCreate(p, m)
	case opDelete:
		m, err := decodeDelete(msg)
		if err != nil {
			t.malformed(p, err)
			return
		}
		t.handleDelete(p, m)
	case opValueChanged:
		m, err := decodeValueChanged(msg)
		if err != nil {
			t.malformed(p, err)
			return
		}
		t.handleValueChanged(p, m)
	default:
		t.malformed(p, fmt.Errorf("unknown sync op %s", o))
	}
}

func (t *Tree) malformed(p *peer, err error) {
	glog.Errorf("tree %s: malformed sync message from connection %d, disconnecting: %v", t.id, p.conn.ID(), err)
	p.conn.Disconnect()
}

// handleHello answers a greeting with a snapshot of what the peer should hold, parents first.
// Elements of other peers are only included by relaying trees that do not rank below p.
func (t *Tree) handleHello(p *peer, m helloMsg) {
	p.authority = m.authority
	localOnly := !t.relay || t.authority < p.authority

	sent := 0
	t.walk(func(e Element) {
		n := e.node()
		if n.author == p || (localOnly && n.state != boundLocal) {
			return
		}
		t.send(p, encodeCreate(createMsgFor(e)))
		sent++
	})
	p.synced = true
	glog.V(1).Infof("tree %s: connection %d (%s authority) synced with %d elements", t.id, p.conn.ID(), p.authority, sent)
}

func (t *Tree) handleCreate(p *peer, m createMsg) {
	if !p.synced {
		glog.Errorf("tree %s: create of %s from connection %d before its hello, ignoring", t.id, m.guid, p.conn.ID())
		return
	}
	if e, ok := t.elements[m.guid]; ok {
		t.rebind(p, e, m)
		return
	}
	parentElement, ok := t.Find(m.parent)
	if !ok {
		glog.Errorf("tree %s: parent %s of %s is unknown, ignoring create", t.id, m.parent, m.name)
		return
	}
	parent, ok := parentElement.(*ObjectElement)
	if !ok {
		glog.Errorf("tree %s: parent %s of %s is a %s, ignoring create", t.id, m.parent, m.name, parentElement.Kind())
		return
	}
	if err := validateName(m.name); err != nil {
		glog.Errorf("tree %s: ignoring create from connection %d: %v", t.id, p.conn.ID(), err)
		return
	}
	if parent.byName[m.name] != nil {
		glog.Errorf("tree %s: %s already has a child named %s, ignoring create of %s", t.id, parent.name, m.name, m.guid)
		return
	}

	child := newElement(element{
		tree:   t,
		guid:   m.guid,
		name:   m.name,
		kind:   m.kind,
		parent: parent,
		state:  boundRemote,
		author: p,
	}, m.value)
	parent.attach(child)
	t.elements[m.guid] = child

	t.relayToPeers(encodeCreate(m), p)
	for _, l := range parent.listeners {
		l.OnElementAdded(parent, child)
	}
}

// rebind handles a create for an element that already exists. If the element's author has gone
// away, p takes it over: a replica that reconnects over a new connection announces its elements
// again and keeps writing to them. Otherwise the create is ignored.
func (t *Tree) rebind(p *peer, e Element, m createMsg) {
	n := e.node()
	if n.state != boundRemote || n.author == nil || n.author == p || !n.author.gone() {
		glog.V(1).Infof("tree %s: %s already exists, ignoring create", t.id, m.guid)
		return
	}
	if n.kind != m.kind || n.name != m.name || n.parent.guid != m.parent {
		glog.Errorf("tree %s: connection %d announced %s as %s %s under %s, which does not match, ignoring create",
			t.id, p.conn.ID(), m.guid, m.kind, m.name, m.parent)
		return
	}
	glog.V(1).Infof("tree %s: connection %d took over %s (%s)", t.id, p.conn.ID(), n.name, m.guid)
	n.author = p
	if n.kind == KindObject || !assign(e, m.value) {
		return
	}
	t.relayToPeers(encodeValueChanged(valueChangedMsg{guid: m.guid, value: m.value}), p)
	parent := n.parent
	for _, l := range parent.listeners {
		l.OnElementChanged(parent, e)
	}
}

func (t *Tree) handleDelete(p *peer, m deleteMsg) {
	e, ok := t.elements[m.guid]
	if !ok {
		// Deletes can race ahead of the creates they undo.
		return
	}
	if e.node().author != p {
		glog.Errorf("tree %s: connection %d tried to delete %s (%s) it did not create", t.id, p.conn.ID(), e.Name(), m.guid)
		return
	}
	t.relayToPeers(encodeDelete(m), p)
	t.deleteSubtree(e, true)
}

func (t *Tree) handleValueChanged(p *peer, m valueChangedMsg) {
	e, ok := t.elements[m.guid]
	if !ok {
		glog.V(1).Infof("tree %s: value change for unknown element %s", t.id, m.guid)
		return
	}
	n := e.node()
	if n.author != p {
		glog.Errorf("tree %s: connection %d tried to change %s (%s) it did not create", t.id, p.conn.ID(), n.name, m.guid)
		return
	}
	if n.kind == KindObject || m.value.Type() != n.kind.valueType() {
		t.malformed(p, fmt.Errorf("%s element cannot hold a %s value", n.kind, m.value.Type()))
		return
	}
	if !assign(e, m.value) {
		return
	}
	t.relayToPeers(encodeValueChanged(m), p)
	parent := n.parent
	for _, l := range parent.listeners {
		l.OnElementChanged(parent, e)
	}
}
