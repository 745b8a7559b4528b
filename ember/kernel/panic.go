package kernel

import (
	"fmt"

	"ember/ember/event"
)

// PanicInfo describes a panic recovered from the main loop.
type PanicInfo struct {
	Tick  uint64
	Event event.Event
	Value any
	Stack []byte
}

// OnPanic installs the handler for the first panic the main loop recovers.
// It must not panic.
func (k *Kernel) OnPanic(fn func(PanicInfo)) { k.onPanic = fn }

// Panicked reports whether a handler has panicked. A panicked kernel stops
// dispatching.
func (k *Kernel) Panicked() bool { return k.fault != nil }

func (k *Kernel) recovered(v any) {
	if k.fault != nil {
		return
	}
	info := PanicInfo{Tick: k.now, Event: k.cur, Value: v, Stack: captureStack()}
	k.fault = fmt.Errorf("kernel: panic at tick %d in %s event: %v", info.Tick, info.Event.Type, v)
	if k.onPanic != nil {
		k.onPanic(info)
	}
}
