package synctree

import (
	"fmt"
	"strings"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/mikekulinski/collab/pkg/xvalue"
)

// RootName is the name every tree gives its root, so peers find it without coordination.
const RootName = "Root"

// Authority ranks the peers of a tree. When a peer goes away, the elements it authored are
// discarded by peers of lower authority and kept by the others.
type Authority byte

const (
	AuthorityLow Authority = iota + 1
	AuthorityMedium
	AuthorityHigh
)

func (a Authority) valid() bool {
	return a >= AuthorityLow && a <= AuthorityHigh
}

func (a Authority) String() string {
	switch a {
	case AuthorityLow:
		return "Low"
	case AuthorityMedium:
		return "Medium"
	case AuthorityHigh:
		return "High"
	default:
		return fmt.Sprintf("Authority(%d)", byte(a))
	}
}

// Tree is one replica of a synchronized tree. It is not safe for concurrent use: every method,
// like the connection listeners it installs, runs on the service loop.
type Tree struct {
	id        uuid.UUID
	authority Authority
	ids       IDGenerator
	root      *ObjectElement
	elements  map[GUID]Element
	peers     []*peer
	relay     bool
	closed    bool
}

type Option func(*Tree)

// WithRelay makes the tree forward the ops it receives to its other peers and include their
// elements in the snapshots it sends, so peers attached to a hub see each other's elements.
// Ops are never sent back to the peer that authored them.
func WithRelay() Option {
	return func(t *Tree) {
		t.relay = true
	}
}

func New(authority Authority, ids IDGenerator, opts ...Option) *Tree {
	if !authority.valid() {
		panic(fmt.Sprintf("unrecoverable: invalid authority %d", authority))
	}
	if ids == nil {
		ids = RandomIDGenerator()
	}
	t := &Tree{
		id:        uuid.New(),
		authority: authority,
		ids:       ids,
		elements:  map[GUID]Element{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.root = newObject(element{tree: t, guid: RootGUID, name: RootName, kind: KindObject, state: boundLocal})
	return t
}

// ID identifies this replica. A rebuilt tree never shares it with the one it replaced.
func (t *Tree) ID() uuid.UUID {
	return t.id
}

func (t *Tree) Authority() Authority {
	return t.authority
}

func (t *Tree) Root() *ObjectElement {
	return t.root
}

// Find returns the live element with the given GUID.
func (t *Tree) Find(guid GUID) (Element, bool) {
	if guid == RootGUID {
		return t.root, true
	}
	e, ok := t.elements[guid]
	return e, ok
}

// Lookup resolves a path such as "/rooms/lobby" from the root.
func (t *Tree) Lookup(path string) (Element, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	var current Element = t.root
	for _, name := range strings.Split(path, "/")[1:] {
		obj, ok := current.(*ObjectElement)
		if !ok {
			return nil, fmt.Errorf("%s is not an object", current.Name())
		}
		next := obj.Child(name)
		if next == nil {
			return nil, fmt.Errorf("no element named %s under %s", name, obj.Name())
		}
		current = next
	}
	return current, nil
}

// Len is the number of live elements, not counting the root.
func (t *Tree) Len() int {
	return len(t.elements)
}

// Close detaches every connection and deletes every element without notices. The tree cannot be
// used afterwards.
func (t *Tree) Close() {
	if t.closed {
		return
	}
	for _, p := range append([]*peer(nil), t.peers...) {
		t.unhook(p)
	}
	t.peers = nil
	for _, child := range t.root.children {
		t.markDeleted(child)
	}
	t.root.children = nil
	t.root.byName = map[string]Element{}
	t.root.state = deleted
	t.elements = map[GUID]Element{}
	t.closed = true
}

func (t *Tree) createLocal(parent *ObjectElement, name string, kind Kind, v xvalue.Value) (Element, error) {
	parent.mustBeValid()
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateValue(v); err != nil {
		return nil, err
	}
	if parent.byName[name] != nil {
		return nil, fmt.Errorf("%w: %s already has a child named %s", ErrDuplicateName, parent.name, name)
	}

	child := newElement(element{
		tree:   t,
		guid:   t.ids.Next(),
		name:   name,
		kind:   kind,
		parent: parent,
		state:  boundLocal,
	}, v)
	if _, ok := t.elements[child.GUID()]; ok || child.GUID() == RootGUID {
		panic(fmt.Sprintf("unrecoverable: id generator reused GUID %s", child.GUID()))
	}
	parent.attach(child)
	t.elements[child.GUID()] = child

	glog.V(2).Infof("tree %s: created %s %s (%s) under %s", t.id, kind, name, child.GUID(), parent.name)
	t.sendToPeers(encodeCreate(createMsgFor(child)), nil)
	return child, nil
}

func (t *Tree) removeLocal(child Element) {
	guid := child.GUID()
	t.deleteSubtree(child, false)
	t.sendToPeers(encodeDelete(deleteMsg{guid: guid}), nil)
}

func (t *Tree) setLocal(e Element, v xvalue.Value) error {
	n := e.node()
	n.mustBeValid()
	if n.state != boundLocal {
		return fmt.Errorf("%w: %s", ErrNotAuthor, n.name)
	}
	if err := validateValue(v); err != nil {
		return err
	}
	if !assign(e, v) {
		return nil
	}
	t.sendToPeers(encodeValueChanged(valueChangedMsg{guid: n.guid, value: v}), nil)
	return nil
}

// deleteSubtree detaches e from its parent and deletes it with everything below it. With notify
// set, each deletion is reported to the listeners of the deleted element's parent, bottom up.
func (t *Tree) deleteSubtree(e Element, notify bool) {
	n := e.node()
	if obj, ok := e.(*ObjectElement); ok {
		for _, child := range append([]Element(nil), obj.children...) {
			t.deleteSubtree(child, notify)
		}
	}

	parent := n.parent
	parent.detach(e)
	delete(t.elements, n.guid)
	n.state = deleted
	n.parent = nil

	if notify {
		for _, l := range parent.listeners {
			l.OnElementDeleted(parent, e)
		}
	}
}

func (t *Tree) markDeleted(e Element) {
	if obj, ok := e.(*ObjectElement); ok {
		for _, child := range obj.children {
			t.markDeleted(child)
		}
		obj.children = nil
		obj.byName = map[string]Element{}
	}
	n := e.node()
	n.state = deleted
	n.parent = nil
}

// walk visits every element below the root in pre-order, so parents come before children.
func (t *Tree) walk(visit func(Element)) {
	var rec func(obj *ObjectElement)
	rec = func(obj *ObjectElement) {
		for _, child := range obj.children {
			visit(child)
			if o, ok := child.(*ObjectElement); ok {
				rec(o)
			}
		}
	}
	rec(t.root)
}

func createMsgFor(e Element) createMsg {
	n := e.node()
	return createMsg{
		parent: n.parent.guid,
		guid:   n.guid,
		name:   n.name,
		kind:   n.kind,
		value:  valueOf(e),
	}
}
