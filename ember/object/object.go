// Package object is the tagged object registry.
//
// Every stateful runtime entity (device, timer, pin) is an Object of some
// kind. A kind is registered once at boot with a Descriptor: the behavior
// table every object of that kind shares. Objects that must be reachable
// from interrupt context get a small integer id; events address objects by
// that id and the registry dispatches them to the kind's hooks.
package object

import (
	"ember/ember/alloc"
	"ember/ember/event"
	"ember/ember/stream"
)

// Tag identifies a registered kind.
type Tag uint8

// AnyTag matches every kind in Lookup.
const AnyTag Tag = 0xff

// ID is an object's event address. NoID means the object is not id-mapped.
type ID uint16

const NoID ID = 0

// Callback is the consumer callback contract. The return value is a
// control value; only timer rewinds interpret it.
type Callback func(o *Object, code event.Code, param any) int

// Descriptor is the behavior table of one kind. Optional behavior is
// expressed by also implementing the hook interfaces below.
type Descriptor interface {
	Name() string
}

// Destroyer releases kind-specific resources before the object is freed.
type Destroyer interface {
	Destroy(o *Object)
}

// EventHandler receives every event addressed to the object except DESTROY.
type EventHandler interface {
	HandleEvent(o *Object, code event.Code)
}

// ErrorHandler sees an ERROR event before HandleEvent does.
type ErrorHandler interface {
	HandleError(o *Object, err error)
}

// Listener subscribes an object's consumer to stream notifications.
type Listener interface {
	Listen(o *Object, m stream.Mask) error
	Ignore(o *Object, m stream.Mask) error
}

// IndexedProps exposes positional properties.
type IndexedProps interface {
	GetIndex(o *Object, index int) (int64, error)
	SetIndex(o *Object, index int, v int64) error
}

// NamedProps exposes properties by name, as text.
type NamedProps interface {
	GetProp(o *Object, name string) (string, error)
	SetProp(o *Object, name, value string) error
}

// Streamer gives generic read/write helpers the object's stream.
type Streamer interface {
	Stream(o *Object) (*stream.Stream, error)
}

// Object is one registry entry. Payload holds the kind's own state.
type Object struct {
	tag  Tag
	id   ID
	ref  int
	mem  alloc.Ptr
	err  error
	dead bool

	Payload any
}

func (o *Object) Tag() Tag { return o.tag }
func (o *Object) ID() ID   { return o.id }

// Err returns the last asynchronous error recorded on the object.
func (o *Object) Err() error { return o.err }

// SetErr records err on the object.
func (o *Object) SetErr(err error) { o.err = err }

// Alive reports whether the object has not been destroyed.
func (o *Object) Alive() bool { return !o.dead }
