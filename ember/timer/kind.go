package timer

import (
	"fmt"

	"ember/ember/errno"
	"ember/ember/event"
	"ember/ember/object"
)

// Stop, returned from a timer callback, stops the timer.
const Stop = -1

const kindPayload = 16

// Kind is the "timer" object kind. Each timer object owns one repeating
// timeout whose expiry posts REWIND to the object; the callback runs on
// dispatch and its return value steers the next interval.
type Kind struct {
	reg *object.Registry
	svc *Service
	tag object.Tag
}

type state struct {
	handle Handle
	cb     object.Callback
	param  any
	fired  uint32
}

// NewKind registers the timer kind.
func NewKind(reg *object.Registry, svc *Service) (*Kind, error) {
	k := &Kind{reg: reg, svc: svc}
	tag, err := reg.RegisterKind(kindPayload, k)
	if err != nil {
		return nil, err
	}
	k.tag = tag
	return k, nil
}

func (k *Kind) Name() string     { return "timer" }
func (k *Kind) Tag() object.Tag { return k.tag }

// Start creates a running timer that calls cb every wait ticks.
func (k *Kind) Start(wait uint64, cb object.Callback, param any) (*object.Object, error) {
	if cb == nil || wait == 0 {
		return nil, errno.EINVAL
	}
	o, err := k.reg.CreateWithID(k.tag)
	if err != nil {
		return nil, fmt.Errorf("timer: start: %w", err)
	}
	st := &state{cb: cb, param: param}
	o.Payload = st
	h, err := k.svc.Register(wait, true, func(m Mode, _ any) {
		switch m {
		case Fire:
			k.reg.Post(o, event.CodeRewind)
		case Drop:
			st.handle = 0
		}
	}, nil)
	if err != nil {
		k.reg.Destroy(o)
		return nil, fmt.Errorf("timer: start: %w", err)
	}
	st.handle = h
	return o, nil
}

func (k *Kind) state(o *object.Object) *state {
	st, _ := o.Payload.(*state)
	return st
}

// Running reports whether the timer still has a live timeout.
func (k *Kind) Running(o *object.Object) bool {
	st := k.state(o)
	return st != nil && st.handle != 0
}

// Fired reports how many rewinds the callback has seen.
func (k *Kind) Fired(o *object.Object) uint32 {
	if st := k.state(o); st != nil {
		return st.fired
	}
	return 0
}

// Halt stops the timer without destroying it. A timer whose timeout was
// already cleared from the service is stopped and Halt is a no-op.
func (k *Kind) Halt(o *object.Object) error {
	st := k.state(o)
	if st == nil || st.handle == 0 {
		return nil
	}
	h := st.handle
	st.handle = 0
	if err := k.svc.Unregister(h); err != nil {
		return fmt.Errorf("timer: halt %d: %w", o.ID(), err)
	}
	return nil
}

func (k *Kind) Destroy(o *object.Object) {
	// The object goes away whether or not the timeout was still registered.
	_ = k.Halt(o)
}

func (k *Kind) HandleEvent(o *object.Object, code event.Code) {
	st := k.state(o)
	if st == nil || code != event.CodeRewind || st.handle == 0 {
		return
	}
	st.fired++
	ret := st.cb(o, code, st.param)
	var err error
	switch {
	case ret < 0:
		err = k.Halt(o)
	case ret > 0 && st.handle != 0:
		if err = k.svc.Reset(st.handle, uint64(ret)); err != nil {
			err = fmt.Errorf("timer: rewind %d: %w", o.ID(), err)
		}
	}
	if err != nil {
		k.reg.Fail(o, err)
	}
}

// GetIndex exposes the interval at index 0.
func (k *Kind) GetIndex(o *object.Object, index int) (int64, error) {
	st := k.state(o)
	if st == nil || index != 0 {
		return 0, errno.EINVAL
	}
	w, ok := k.svc.Wait(st.handle)
	if !ok {
		return 0, nil
	}
	return int64(w), nil
}

// SetIndex changes the interval at index 0.
func (k *Kind) SetIndex(o *object.Object, index int, v int64) error {
	st := k.state(o)
	if st == nil || index != 0 || v <= 0 {
		return errno.EINVAL
	}
	if st.handle == 0 {
		return errno.EENABLED
	}
	return k.svc.Reset(st.handle, uint64(v))
}
