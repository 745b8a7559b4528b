// Package devicetest builds a small runtime for driver tests.
package devicetest

import (
	"testing"

	"ember/ember/alloc"
	"ember/ember/device"
	"ember/ember/event"
	"ember/ember/object"
)

// Rig is a heap, registry and framework with a manual clock.
type Rig struct {
	Heap *alloc.Heap
	Reg  *object.Registry
	FW   *device.Framework
	Now  uint64

	// Seen records every code delivered to callbacks installed by Watch.
	Seen []event.Code
}

// New returns a rig with a 32-page heap.
func New(t testing.TB) *Rig {
	t.Helper()
	r := &Rig{Heap: alloc.New()}
	if err := r.Heap.AddZone(make([]byte, 32*alloc.PageSize)); err != nil {
		t.Fatalf("add zone: %v", err)
	}
	r.Reg = object.NewRegistry(r.Heap, event.NewQueue(event.Config{Size: 32}, nil), object.Config{}, nil)
	fw, err := device.NewFramework(r.Reg, device.Config{
		RxSize:    64,
		TxSize:    64,
		SyncSpins: 100,
		Clock:     func() uint64 { return r.Now },
	}, nil)
	if err != nil {
		t.Fatalf("framework: %v", err)
	}
	r.FW = fw
	return r
}

// Open registers drv under name, then requests and enables instance inst
// with the given config line.
func (r *Rig) Open(t testing.TB, name string, instMax int, drv device.Driver, inst int, config string) *device.Device {
	t.Helper()
	if !r.registered(name) {
		if err := r.FW.Register(name, instMax, drv); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	d, err := r.FW.Request(name, inst)
	if err != nil {
		t.Fatalf("request %s%d: %v", name, inst, err)
	}
	if config != "" {
		if err := d.Config().Parse(config); err != nil {
			t.Fatalf("config %s%d: %v", name, inst, err)
		}
	}
	if err := d.Enable(); err != nil {
		t.Fatalf("enable %s%d: %v", name, inst, err)
	}
	return d
}

func (r *Rig) registered(name string) bool {
	for _, n := range r.FW.Drivers() {
		if n == name {
			return true
		}
	}
	return false
}

// Watch installs a callback that records codes in Seen and runs fn, if set.
func (r *Rig) Watch(d *device.Device, fn func(code event.Code)) {
	d.SetCallback(func(o *object.Object, code event.Code, _ any) int {
		r.Seen = append(r.Seen, code)
		if fn != nil {
			fn(code)
		}
		return 0
	}, nil)
}

// Step runs one main loop pass: poll devices, then dispatch every event.
func (r *Rig) Step() {
	r.FW.Poll()
	r.Dispatch()
}

// Dispatch drains the event queue.
func (r *Rig) Dispatch() {
	for {
		ev, ok := r.Reg.Queue().Take()
		if !ok {
			return
		}
		r.Reg.Dispatch(ev)
	}
}

// Count reports how many times code was seen.
func (r *Rig) Count(code event.Code) int {
	n := 0
	for _, c := range r.Seen {
		if c == code {
			n++
		}
	}
	return n
}
