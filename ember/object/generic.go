package object

import (
	"ember/ember/errno"
	"ember/ember/stream"
)

// Read reads from the object's stream.
func (r *Registry) Read(o *Object, p []byte) (int, error) {
	s, err := r.Stream(o)
	if err != nil {
		return 0, err
	}
	return s.Read(p)
}

// Write writes to the object's stream.
func (r *Registry) Write(o *Object, p []byte) (int, error) {
	s, err := r.Stream(o)
	if err != nil {
		return 0, err
	}
	return s.Write(p)
}

// Stream returns the object's stream when its kind has one.
func (r *Registry) Stream(o *Object) (*stream.Stream, error) {
	if o == nil || o.dead {
		return nil, errno.EINVAL
	}
	sk, ok := r.descriptor(o).(Streamer)
	if !ok {
		return nil, errno.EIMPLEMENT
	}
	return sk.Stream(o)
}

// Listen subscribes to the object's notifications.
func (r *Registry) Listen(o *Object, m stream.Mask) error {
	if o == nil || o.dead {
		return errno.EINVAL
	}
	l, ok := r.descriptor(o).(Listener)
	if !ok {
		return errno.EIMPLEMENT
	}
	return l.Listen(o, m)
}

// Ignore unsubscribes from the object's notifications.
func (r *Registry) Ignore(o *Object, m stream.Mask) error {
	if o == nil || o.dead {
		return errno.EINVAL
	}
	l, ok := r.descriptor(o).(Listener)
	if !ok {
		return errno.EIMPLEMENT
	}
	return l.Ignore(o, m)
}

func (r *Registry) GetIndex(o *Object, index int) (int64, error) {
	if o == nil || o.dead {
		return 0, errno.EINVAL
	}
	p, ok := r.descriptor(o).(IndexedProps)
	if !ok {
		return 0, errno.EIMPLEMENT
	}
	return p.GetIndex(o, index)
}

func (r *Registry) SetIndex(o *Object, index int, v int64) error {
	if o == nil || o.dead {
		return errno.EINVAL
	}
	p, ok := r.descriptor(o).(IndexedProps)
	if !ok {
		return errno.EIMPLEMENT
	}
	return p.SetIndex(o, index, v)
}

func (r *Registry) GetProp(o *Object, name string) (string, error) {
	if o == nil || o.dead {
		return "", errno.EINVAL
	}
	p, ok := r.descriptor(o).(NamedProps)
	if !ok {
		return "", errno.EIMPLEMENT
	}
	return p.GetProp(o, name)
}

func (r *Registry) SetProp(o *Object, name, value string) error {
	if o == nil || o.dead {
		return errno.EINVAL
	}
	p, ok := r.descriptor(o).(NamedProps)
	if !ok {
		return errno.EIMPLEMENT
	}
	return p.SetProp(o, name, value)
}
