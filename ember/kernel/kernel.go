// Package kernel ties the runtime together: it builds the heap from the
// platform's raw memory, owns the event queue, and runs the cooperative
// main loop that polls devices and dispatches events.
package kernel

import (
	"context"
	"fmt"
	"sync/atomic"

	"ember/ember/alloc"
	"ember/ember/device"
	"ember/ember/errno"
	"ember/ember/event"
	"ember/ember/object"
	"ember/ember/timer"
	"ember/hal"
)

// Config sizes the runtime. Zero fields take the DefaultConfig values.
type Config struct {
	// HeapBytes is claimed from hal.Memory and split over at most
	// alloc.MaxZones zones. Zero claims all of it.
	HeapBytes int
	Queue     event.Config
	Objects   object.Config
	Devices   device.Config
	// StopAfter makes Run return once the clock reaches it. Zero runs
	// until the context ends.
	StopAfter uint64
}

// DefaultConfig returns the sizes used when a Config field is zero.
func DefaultConfig() Config {
	return Config{
		Queue:   event.Config{Size: 64, Reserve: 4},
		Objects: object.Config{MaxIDs: 32, MaxKinds: 16},
		Devices: device.Config{RxSize: 64, TxSize: 64, SyncSpins: 10000},
	}
}

func (c *Config) defaults() {
	d := DefaultConfig()
	if c.Queue.Size <= 0 {
		c.Queue = d.Queue
	}
	if c.Objects.MaxIDs <= 0 {
		c.Objects.MaxIDs = d.Objects.MaxIDs
	}
	if c.Objects.MaxKinds <= 0 {
		c.Objects.MaxKinds = d.Objects.MaxKinds
	}
	if c.Devices.RxSize <= 0 {
		c.Devices.RxSize = d.Devices.RxSize
	}
	if c.Devices.TxSize <= 0 {
		c.Devices.TxSize = d.Devices.TxSize
	}
	if c.Devices.SyncSpins <= 0 {
		c.Devices.SyncSpins = d.Devices.SyncSpins
	}
}

// Kernel is the runtime context. Everything except Tick and Post runs on
// the main loop goroutine.
type Kernel struct {
	h   hal.HAL
	log hal.Logger
	cfg Config

	heap   *alloc.Heap
	queue  *event.Queue
	reg    *object.Registry
	timers *timer.Service
	timer  *timer.Kind
	fw     *device.Framework

	now   uint64
	ticks atomic.Uint64
	user  func(ev event.Event)

	cur     event.Event
	fault   error
	onPanic func(PanicInfo)
}

// New builds a kernel on h.
func New(h hal.HAL, cfg Config) (*Kernel, error) {
	cfg.defaults()
	k := &Kernel{h: h, log: h.Logger(), cfg: cfg}

	k.heap = alloc.New()
	if err := k.addZones(h.Memory(), cfg.HeapBytes); err != nil {
		return nil, err
	}
	k.queue = event.NewQueue(cfg.Queue, h.Mask())
	k.reg = object.NewRegistry(k.heap, k.queue, cfg.Objects, k.log)
	k.timers = timer.NewService(k.heap, k.log)

	var err error
	if k.timer, err = timer.NewKind(k.reg, k.timers); err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}
	if cfg.Devices.Clock == nil {
		cfg.Devices.Clock = k.Now
	}
	if k.fw, err = device.NewFramework(k.reg, cfg.Devices, k.log); err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}

	k.logf("kernel: %d pages in %d zones, queue %d, %d ids",
		k.heap.TotalPages(), k.heap.Zones(), k.queue.Cap(), cfg.Objects.MaxIDs)
	return k, nil
}

func (k *Kernel) addZones(m hal.Memory, want int) error {
	if m == nil {
		return fmt.Errorf("kernel: no memory: %w", errno.ENOMEM)
	}
	left := m.Size()
	if want > 0 && want < left {
		left = want
	}
	maxZone := alloc.PageSize << alloc.MaxOrder
	for k.heap.Zones() < alloc.MaxZones && left >= alloc.PageSize {
		n := min(left, maxZone)
		n &^= alloc.PageSize - 1
		mem, err := m.Alloc(n, alloc.PageSize)
		if err != nil {
			return fmt.Errorf("kernel: claim %d bytes: %w: %w", n, err, errno.ENOMEM)
		}
		if err := k.heap.AddZone(mem); err != nil {
			return fmt.Errorf("kernel: %w", err)
		}
		left -= n
	}
	if k.heap.Zones() == 0 {
		return fmt.Errorf("kernel: heap: %w", errno.ENOMEM)
	}
	return nil
}

func (k *Kernel) logf(format string, args ...any) {
	if k.log == nil {
		return
	}
	k.log.WriteLineString(fmt.Sprintf(format, args...))
}

func (k *Kernel) HAL() hal.HAL               { return k.h }
func (k *Kernel) Heap() *alloc.Heap          { return k.heap }
func (k *Kernel) Queue() *event.Queue        { return k.queue }
func (k *Kernel) Registry() *object.Registry { return k.reg }
func (k *Kernel) Timers() *timer.Service     { return k.timers }
func (k *Kernel) Timer() *timer.Kind         { return k.timer }
func (k *Kernel) Devices() *device.Framework { return k.fw }
func (k *Kernel) Logger() hal.Logger         { return k.log }

// Now is the main loop clock: SYSTICK events dispatched so far.
func (k *Kernel) Now() uint64 { return k.now }

// Ticks counts Tick calls, including ticks whose event was dropped.
func (k *Kernel) Ticks() uint64 { return k.ticks.Load() }

// Tick is the tick interrupt entry. It is safe from any goroutine.
func (k *Kernel) Tick() bool {
	k.ticks.Add(1)
	return k.queue.Post(event.TypeSystick, event.CodeNone, 0)
}

// OnUser installs the handler for USER events.
func (k *Kernel) OnUser(fn func(ev event.Event)) { k.user = fn }

// Post queues a USER event. It is safe from any goroutine.
func (k *Kernel) Post(code event.Code, which uint16) bool {
	return k.queue.Post(event.TypeUser, code, which)
}

// Step runs one main loop pass: poll every enabled device, then drain the
// event queue. It returns the number of events dispatched.
func (k *Kernel) Step() (n int) {
	if k.fault != nil {
		return 0
	}
	defer func() {
		if v := recover(); v != nil {
			k.recovered(v)
		}
	}()

	k.cur = event.Event{}
	k.fw.Poll()
	for {
		ev, ok := k.queue.Take()
		if !ok {
			return n
		}
		n++
		k.cur = ev
		k.dispatch(ev)
	}
}

func (k *Kernel) dispatch(ev event.Event) {
	switch ev.Type {
	case event.TypeSystick:
		k.now++
		k.timers.Sync(k.now)
		k.fw.SyncStreams(k.now)
	case event.TypeObject:
		k.reg.Dispatch(ev)
	case event.TypeUser:
		if k.user != nil {
			k.user(ev)
		}
	}
}

// Run feeds platform ticks into Tick and steps the main loop until ctx
// ends, the clock reaches Config.StopAfter, or a handler panics.
func (k *Kernel) Run(ctx context.Context) error {
	var ticks <-chan uint64
	if t := k.h.Time(); t != nil {
		ticks = t.Ticks()
	}
	k.logf("kernel: running")
	for {
		n := k.Step()
		if k.fault != nil {
			return k.stop(k.fault)
		}
		if k.cfg.StopAfter > 0 && k.now >= k.cfg.StopAfter {
			return k.stop(nil)
		}
		if n > 0 {
			select {
			case <-ctx.Done():
				return k.stop(ctx.Err())
			case <-ticks:
				k.Tick()
			default:
			}
			continue
		}
		select {
		case <-ctx.Done():
			return k.stop(ctx.Err())
		case <-ticks:
			k.Tick()
		}
	}
}

func (k *Kernel) stop(err error) error {
	s := k.Stats()
	k.logf("kernel: stopped at tick %d: %d objects, %d timers, %d free pages, %d systick drops",
		s.Now, s.Objects, s.Timers, s.FreePages, s.Dropped[event.TypeSystick])
	return err
}

// Stats is a snapshot of runtime counters.
type Stats struct {
	Now       uint64
	Ticks     uint64
	Heap      alloc.Stats
	FreePages int
	Objects   int
	Timers    int
	Enabled   int
	Queued    int
	Dropped   [event.TypeUser + 1]uint32
}

func (k *Kernel) Stats() Stats {
	s := Stats{
		Now:       k.now,
		Ticks:     k.ticks.Load(),
		Heap:      k.heap.Stats(),
		FreePages: k.heap.FreePages(),
		Objects:   k.reg.Live(),
		Timers:    k.timers.Len(),
		Enabled:   k.fw.Enabled(),
		Queued:    k.queue.Len(),
	}
	for t := range s.Dropped {
		s.Dropped[t] = k.queue.Dropped(event.Type(t))
	}
	return s
}
