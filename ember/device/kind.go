package device

import (
	"ember/ember/errno"
	"ember/ember/event"
	"ember/ember/object"
	"ember/ember/stream"
)

// kind is the "device" object descriptor. It forwards the generic object
// API to the Device in the payload.
type kind struct {
	fw *Framework
}

func (kind) Name() string { return "device" }

func dev(o *object.Object) *Device {
	d, _ := o.Payload.(*Device)
	return d
}

func (kind) Destroy(o *object.Object) {
	if d := dev(o); d != nil {
		d.destroy()
	}
}

func (kind) HandleEvent(o *object.Object, code event.Code) {
	d := dev(o)
	if d == nil {
		return
	}
	if code == event.CodeResponse {
		d.complete()
		return
	}
	d.callback(code)
}

func (kind) Listen(o *object.Object, m stream.Mask) error { return dev(o).Listen(m) }
func (kind) Ignore(o *object.Object, m stream.Mask) error { return dev(o).Ignore(m) }

func (kind) Stream(o *object.Object) (*stream.Stream, error) {
	d := dev(o)
	return d.ioStream()
}

func (kind) GetIndex(o *object.Object, index int) (int64, error) {
	return dev(o).Get(index)
}

func (kind) SetIndex(o *object.Object, index int, v int64) error {
	return dev(o).Set(index, v)
}

// GetProp reads a configuration field as text.
func (kind) GetProp(o *object.Object, name string) (string, error) {
	d := dev(o)
	if d.cfg == nil {
		return "", errno.EIMPLEMENT
	}
	return d.cfg.Get(name)
}

// SetProp writes a configuration field. It takes effect on the next
// Enable.
func (kind) SetProp(o *object.Object, name, value string) error {
	d := dev(o)
	if d.cfg == nil {
		return errno.EIMPLEMENT
	}
	return d.cfg.Set(name, value)
}
