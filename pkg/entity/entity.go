// Package entity maps structured records onto object elements of a synchronized tree.
package entity

import (
	"errors"
	"fmt"

	"github.com/golang/glog"
	"github.com/mikekulinski/collab/pkg/synctree"
)

var (
	ErrNoSuchChild = errors.New("entity: no such child")
	ErrNoSuchField = errors.New("entity: no such field")
	// ErrFieldType is returned when writing a field with a value of a different kind than it holds.
	ErrFieldType = errors.New("entity: field holds another kind")
)

// Stats counts the remote notices an entity received.
type Stats struct {
	Added         int
	Deleted       int
	IntChanges    int
	FloatChanges  int
	StringChanges int
}

// Entity is a record stored in an object element: leaf children are its fields and object
// children are nested entities. It follows remote changes to the element, so a replica of an
// entity stays current without polling. Like the tree, it is only used from the service loop.
type Entity struct {
	element  *synctree.ObjectElement
	fields   map[string]synctree.Element
	children []*Entity
	stats    Stats
	listener *synctree.ObjectListenerFuncs
}

// New wraps element and everything already below it.
func New(element *synctree.ObjectElement) *Entity {
	e := &Entity{
		element: element,
		fields:  map[string]synctree.Element{},
	}
	for _, child := range element.Children() {
		e.bind(child)
	}
	e.listener = &synctree.ObjectListenerFuncs{
		Added:   e.onAdded,
		Deleted: e.onDeleted,
		Changed: e.onChanged,
	}
	element.AddListener(e.listener)
	return e
}

func (e *Entity) Name() string {
	return e.element.Name()
}

func (e *Entity) GUID() synctree.GUID {
	return e.element.GUID()
}

func (e *Entity) Element() *synctree.ObjectElement {
	return e.element
}

func (e *Entity) Stats() Stats {
	return e.stats
}

// AddChild creates a nested entity.
func (e *Entity) AddChild(name string) (*Entity, error) {
	obj, err := e.element.CreateObjectElement(name)
	if err != nil {
		return nil, err
	}
	child := New(obj)
	e.children = append(e.children, child)
	return child, nil
}

// RemoveChild deletes the nested entity with the given name, with everything below it.
func (e *Entity) RemoveChild(name string) error {
	for i, child := range e.children {
		if child.Name() != name {
			continue
		}
		if err := e.element.RemoveElement(child.element); err != nil {
			return err
		}
		e.children = append(e.children[:i:i], e.children[i+1:]...)
		child.release()
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNoSuchChild, name)
}

func (e *Entity) Child(name string) *Entity {
	for _, child := range e.children {
		if child.Name() == name {
			return child
		}
	}
	return nil
}

// Children returns the nested entities. The slice is a copy.
func (e *Entity) Children() []*Entity {
	return append([]*Entity(nil), e.children...)
}

// SetInt writes an int field, creating it on first write.
func (e *Entity) SetInt(name string, v int32) error {
	field, ok := e.fields[name]
	if !ok {
		created, err := e.element.CreateIntElement(name, v)
		if err != nil {
			return err
		}
		e.fields[name] = created
		return nil
	}
	leaf, ok := field.(*synctree.IntElement)
	if !ok {
		return fmt.Errorf("%w: %s is a %s field", ErrFieldType, name, field.Kind())
	}
	return leaf.SetValue(v)
}

// SetFloat writes a float field, creating it on first write.
func (e *Entity) SetFloat(name string, v float32) error {
	field, ok := e.fields[name]
	if !ok {
		created, err := e.element.CreateFloatElement(name, v)
		if err != nil {
			return err
		}
		e.fields[name] = created
		return nil
	}
	leaf, ok := field.(*synctree.FloatElement)
	if !ok {
		return fmt.Errorf("%w: %s is a %s field", ErrFieldType, name, field.Kind())
	}
	return leaf.SetValue(v)
}

// SetString writes a string field, creating it on first write.
func (e *Entity) SetString(name string, v string) error {
	field, ok := e.fields[name]
	if !ok {
		created, err := e.element.CreateStringElement(name, v)
		if err != nil {
			return err
		}
		e.fields[name] = created
		return nil
	}
	leaf, ok := field.(*synctree.StringElement)
	if !ok {
		return fmt.Errorf("%w: %s is a %s field", ErrFieldType, name, field.Kind())
	}
	return leaf.SetValue(v)
}

// RemoveField unbinds a field and deletes its element. The name can be written again later.
func (e *Entity) RemoveField(name string) error {
	field, ok := e.fields[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchField, name)
	}
	if err := e.element.RemoveElement(field); err != nil {
		return err
	}
	delete(e.fields, name)
	return nil
}

func (e *Entity) HasField(name string) bool {
	_, ok := e.fields[name]
	return ok
}

func (e *Entity) IntValue(name string) (int32, bool) {
	leaf, ok := e.fields[name].(*synctree.IntElement)
	if !ok {
		return 0, false
	}
	return leaf.Value(), true
}

func (e *Entity) FloatValue(name string) (float32, bool) {
	leaf, ok := e.fields[name].(*synctree.FloatElement)
	if !ok {
		return 0, false
	}
	return leaf.Value(), true
}

func (e *Entity) StringValue(name string) (string, bool) {
	leaf, ok := e.fields[name].(*synctree.StringElement)
	if !ok {
		return "", false
	}
	return leaf.Value(), true
}

// Equal reports whether two entities describe the same record: same name and GUID, the same
// fields with matching GUIDs and values, and children that pair up one to one by GUID and are
// equal themselves. The order of children does not matter.
func (e *Entity) Equal(other *Entity) bool {
	if e == nil || other == nil {
		return e == other
	}
	if !e.element.IsValid() || !other.element.IsValid() {
		return false
	}
	if e.Name() != other.Name() || e.GUID() != other.GUID() {
		return false
	}

	if len(e.fields) != len(other.fields) {
		return false
	}
	for name, field := range e.fields {
		theirs, ok := other.fields[name]
		if !ok || field.GUID() != theirs.GUID() || !sameValue(field, theirs) {
			return false
		}
	}

	if len(e.children) != len(other.children) {
		return false
	}
	byGUID := make(map[synctree.GUID]*Entity, len(other.children))
	for _, child := range other.children {
		byGUID[child.GUID()] = child
	}
	for _, child := range e.children {
		match, ok := byGUID[child.GUID()]
		if !ok || !child.Equal(match) {
			return false
		}
		delete(byGUID, child.GUID())
	}
	return true
}

func sameValue(a, b synctree.Element) bool {
	switch x := a.(type) {
	case *synctree.IntElement:
		y, ok := b.(*synctree.IntElement)
		return ok && x.Value() == y.Value()
	case *synctree.FloatElement:
		y, ok := b.(*synctree.FloatElement)
		return ok && x.Value() == y.Value()
	case *synctree.StringElement:
		y, ok := b.(*synctree.StringElement)
		return ok && x.Value() == y.Value()
	}
	return false
}

func (e *Entity) bind(child synctree.Element) {
	if obj, ok := child.(*synctree.ObjectElement); ok {
		e.children = append(e.children, New(obj))
		return
	}
	if _, ok := e.fields[child.Name()]; ok {
		glog.Errorf("entity %s: field %s bound twice", e.Name(), child.Name())
		return
	}
	e.fields[child.Name()] = child
}

// release stops following the element, which is gone.
func (e *Entity) release() {
	for _, child := range e.children {
		child.release()
	}
	e.element.RemoveListener(e.listener)
}

func (e *Entity) onAdded(_ *synctree.ObjectElement, child synctree.Element) {
	e.stats.Added++
	e.bind(child)
}

func (e *Entity) onDeleted(_ *synctree.ObjectElement, child synctree.Element) {
	e.stats.Deleted++
	if field, ok := e.fields[child.Name()]; ok && field.GUID() == child.GUID() {
		delete(e.fields, child.Name())
		return
	}
	for i, existing := range e.children {
		if existing.GUID() == child.GUID() {
			e.children = append(e.children[:i:i], e.children[i+1:]...)
			existing.release()
			return
		}
	}
	// Elements deleted before this entity saw them added are not an error.
	glog.V(2).Infof("entity %s: deleted %s was never bound", e.Name(), child.GUID())
}

func (e *Entity) onChanged(_ *synctree.ObjectElement, child synctree.Element) {
	switch child.Kind() {
	case synctree.KindInt:
		e.stats.IntChanges++
	case synctree.KindFloat:
		e.stats.FloatChanges++
	case synctree.KindString:
		e.stats.StringChanges++
	}
}
