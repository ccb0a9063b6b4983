package synctree

import (
	"errors"
	"fmt"

	"github.com/mikekulinski/collab/pkg/xvalue"
)

var (
	// ErrNotAuthor is returned when changing or removing an element another peer created.
	ErrNotAuthor = errors.New("synctree: element is bound to a remote author")
	// ErrDuplicateName is returned when a sibling already uses the name.
	ErrDuplicateName = errors.New("synctree: duplicate element name")
	// ErrNotChild is returned when removing an element from an object that does not hold it.
	ErrNotChild = errors.New("synctree: element is not a child of this object")
)

type Kind byte

const (
	KindObject Kind = iota + 1
	KindInt
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "Object"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	default:
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
}

// valueType is the codec type a leaf of this kind carries.
func (k Kind) valueType() xvalue.Type {
	switch k {
	case KindInt:
		return xvalue.TypeInt
	case KindFloat:
		return xvalue.TypeFloat
	case KindString:
		return xvalue.TypeString
	default:
		return xvalue.Unknown
	}
}

type state int

const (
	boundLocal state = iota
	boundRemote
	deleted
)

// Element is a node of the tree.
type Element interface {
	GUID() GUID
	Name() string
	Kind() Kind
	// Parent is nil for the root and for deleted elements.
	Parent() *ObjectElement
	// IsValid reports whether the element has not been deleted.
	IsValid() bool
	// IsLocal reports whether this process authored the element.
	IsLocal() bool
	// Revision counts the value changes applied to the element.
	Revision() uint64

	node() *element
}

type element struct {
	tree     *Tree
	guid     GUID
	name     string
	kind     Kind
	parent   *ObjectElement
	state    state
	author   *peer
	revision uint64
}

func (e *element) GUID() GUID {
	return e.guid
}

func (e *element) Name() string {
	return e.name
}

func (e *element) Kind() Kind {
	return e.kind
}

func (e *element) Parent() *ObjectElement {
	return e.parent
}

func (e *element) IsValid() bool {
	return e.state != deleted
}

func (e *element) IsLocal() bool {
	return e.state == boundLocal
}

func (e *element) Revision() uint64 {
	return e.revision
}

func (e *element) node() *element {
	return e
}

func (e *element) mustBeValid() {
	if e.state == deleted {
		panic(fmt.Sprintf("unrecoverable: element %s (%s) used after deletion", e.name, e.guid))
	}
}

// ObjectListener is told about remote changes to the children of an object.
type ObjectListener interface {
	OnElementAdded(parent *ObjectElement, child Element)
	OnElementDeleted(parent *ObjectElement, child Element)
	OnElementChanged(parent *ObjectElement, child Element)
}

// ObjectListenerFuncs is an ObjectListener built from optional funcs. Use it by pointer.
type ObjectListenerFuncs struct {
	Added   func(parent *ObjectElement, child Element)
	Deleted func(parent *ObjectElement, child Element)
	Changed func(parent *ObjectElement, child Element)
}

func (l *ObjectListenerFuncs) OnElementAdded(parent *ObjectElement, child Element) {
	if l.Added != nil {
		l.Added(parent, child)
	}
}

func (l *ObjectListenerFuncs) OnElementDeleted(parent *ObjectElement, child Element) {
	if l.Deleted != nil {
		l.Deleted(parent, child)
	}
}

func (l *ObjectListenerFuncs) OnElementChanged(parent *ObjectElement, child Element) {
	if l.Changed != nil {
		l.Changed(parent, child)
	}
}

// ObjectElement is a container of uniquely named children, kept in creation order.
type ObjectElement struct {
	element
	children  []Element
	byName    map[string]Element
	listeners []ObjectListener
}

func newObject(base element) *ObjectElement {
	return &ObjectElement{
		element: base,
		byName:  map[string]Element{},
	}
}

func (o *ObjectElement) Child(name string) Element {
	o.mustBeValid()
	return o.byName[name]
}

// Children returns the children in creation order. The slice is a copy.
func (o *ObjectElement) Children() []Element {
	o.mustBeValid()
	return append([]Element(nil), o.children...)
}

// AddListener registers l for the changes of o's children. Listeners may be added and removed
// from inside a notice.
func (o *ObjectElement) AddListener(l ObjectListener) {
	next := make([]ObjectListener, len(o.listeners), len(o.listeners)+1)
	copy(next, o.listeners)
	o.listeners = append(next, l)
}

func (o *ObjectElement) RemoveListener(l ObjectListener) {
	for i, existing := range o.listeners {
		if existing == l {
			next := make([]ObjectListener, 0, len(o.listeners)-1)
			next = append(next, o.listeners[:i]...)
			o.listeners = append(next, o.listeners[i+1:]...)
			return
		}
	}
}

func (o *ObjectElement) CreateObjectElement(name string) (*ObjectElement, error) {
	child, err := o.tree.createLocal(o, name, KindObject, xvalue.Value{})
	if err != nil {
		return nil, err
	}
	return child.(*ObjectElement), nil
}

func (o *ObjectElement) CreateIntElement(name string, v int32) (*IntElement, error) {
	child, err := o.tree.createLocal(o, name, KindInt, xvalue.Int(v))
	if err != nil {
		return nil, err
	}
	return child.(*IntElement), nil
}

func (o *ObjectElement) CreateFloatElement(name string, v float32) (*FloatElement, error) {
	child, err := o.tree.createLocal(o, name, KindFloat, xvalue.Float(v))
	if err != nil {
		return nil, err
	}
	return child.(*FloatElement), nil
}

func (o *ObjectElement) CreateStringElement(name string, v string) (*StringElement, error) {
	child, err := o.tree.createLocal(o, name, KindString, xvalue.String(v))
	if err != nil {
		return nil, err
	}
	return child.(*StringElement), nil
}

// RemoveElement deletes child and its whole subtree and tells the peers. Only locally authored
// elements can be removed.
func (o *ObjectElement) RemoveElement(child Element) error {
	o.mustBeValid()
	n := child.node()
	n.mustBeValid()
	if n.parent != o {
		return fmt.Errorf("%w: %s", ErrNotChild, n.name)
	}
	if n.state != boundLocal {
		return fmt.Errorf("%w: %s", ErrNotAuthor, n.name)
	}
	o.tree.removeLocal(child)
	return nil
}

func (o *ObjectElement) attach(child Element) {
	o.children = append(o.children, child)
	o.byName[child.Name()] = child
}

func (o *ObjectElement) detach(child Element) {
	delete(o.byName, child.Name())
	for i, existing := range o.children {
		if existing == child {
			o.children = append(o.children[:i:i], o.children[i+1:]...)
			return
		}
	}
}

type IntElement struct {
	element
	value int32
}

func (e *IntElement) Value() int32 {
	e.mustBeValid()
	return e.value
}

// SetValue changes the value and sends it to the peers. It fails on remote elements.
func (e *IntElement) SetValue(v int32) error {
	return e.tree.setLocal(e, xvalue.Int(v))
}

type FloatElement struct {
	element
	value float32
}

func (e *FloatElement) Value() float32 {
	e.mustBeValid()
	return e.value
}

func (e *FloatElement) SetValue(v float32) error {
	return e.tree.setLocal(e, xvalue.Float(v))
}

type StringElement struct {
	element
	value string
}

func (e *StringElement) Value() string {
	e.mustBeValid()
	return e.value
}

func (e *StringElement) SetValue(v string) error {
	return e.tree.setLocal(e, xvalue.String(v))
}

// newElement builds an unattached element of the given kind holding v.
func newElement(base element, v xvalue.Value) Element {
	switch base.kind {
	case KindObject:
		return newObject(base)
	case KindInt:
		i, _ := v.Int()
		return &IntElement{element: base, value: i}
	case KindFloat:
		f, _ := v.Float()
		return &FloatElement{element: base, value: f}
	case KindString:
		s, _ := v.Str()
		return &StringElement{element: base, value: s}
	}
	panic(fmt.Sprintf("unrecoverable: unknown element kind %s", base.kind))
}

// valueOf returns the value held by a leaf, or the zero Value for objects.
func valueOf(e Element) xvalue.Value {
	switch leaf := e.(type) {
	case *IntElement:
		return xvalue.Int(leaf.value)
	case *FloatElement:
		return xvalue.Float(leaf.value)
	case *StringElement:
		return xvalue.String(leaf.value)
	}
	return xvalue.Value{}
}

// assign stores v in a leaf and reports whether it changed.
func assign(e Element, v xvalue.Value) bool {
	switch leaf := e.(type) {
	case *IntElement:
		i, _ := v.Int()
		if leaf.value == i {
			return false
		}
		leaf.value = i
	case *FloatElement:
		f, _ := v.Float()
		if leaf.value == f {
			return false
		}
		leaf.value = f
	case *StringElement:
		s, _ := v.Str()
		if leaf.value == s {
			return false
		}
		leaf.value = s
	default:
		return false
	}
	e.node().revision++
	return true
}
