package device

import (
	"fmt"
	"sort"
	"strings"

	"ember/ember/alloc"
	"ember/ember/cfgstruct"
	"ember/ember/errno"
	"ember/ember/object"
	"ember/hal"
)

// devicePayload is the heap footprint of a device object's payload.
const devicePayload = 48

// Config holds framework defaults.
type Config struct {
	// RxSize and TxSize are stream ring sizes for drivers without a
	// StreamSizer. Zero means 64.
	RxSize int
	TxSize int
	// SyncSpins bounds ReadSync and WriteSync: the number of consecutive
	// driver calls that move nothing before ETIMEOUT. Zero means 10000.
	SyncSpins int
	// StarveTicks is passed to every stream.
	StarveTicks uint64
	// Clock returns the current tick for stream bookkeeping.
	Clock func() uint64
}

type entry struct {
	name    string
	instMax int
	drv     Driver
	used    []*Device
}

// Framework owns the driver table and every requested device.
type Framework struct {
	reg  *object.Registry
	heap *alloc.Heap
	cfg  Config
	log  hal.Logger
	tag  object.Tag

	drivers map[string]*entry
	polled  []*Device
	visit   []*Device
	streams []*Device
	pending []*Device
}

// NewFramework registers the device object kind with reg.
func NewFramework(reg *object.Registry, cfg Config, log hal.Logger) (*Framework, error) {
	if cfg.RxSize <= 0 {
		cfg.RxSize = 64
	}
	if cfg.TxSize <= 0 {
		cfg.TxSize = 64
	}
	if cfg.SyncSpins <= 0 {
		cfg.SyncSpins = 10000
	}
	if cfg.Clock == nil {
		cfg.Clock = func() uint64 { return 0 }
	}
	fw := &Framework{
		reg:     reg,
		heap:    reg.Heap(),
		cfg:     cfg,
		log:     log,
		drivers: make(map[string]*entry),
	}
	tag, err := reg.RegisterKind(devicePayload, kind{fw})
	if err != nil {
		return nil, fmt.Errorf("device: %w", err)
	}
	fw.tag = tag
	return fw, nil
}

func (fw *Framework) logf(format string, args ...any) {
	if fw.log == nil {
		return
	}
	fw.log.WriteLineString("device: " + fmt.Sprintf(format, args...))
}

// Tag returns the device object kind.
func (fw *Framework) Tag() object.Tag { return fw.tag }

// Register adds a driver serving instMax instances.
func (fw *Framework) Register(name string, instMax int, drv Driver) error {
	name = strings.TrimSpace(name)
	if name == "" || drv == nil || instMax <= 0 {
		return fmt.Errorf("device: register %q: %w", name, errno.EINVAL)
	}
	if _, ok := fw.drivers[name]; ok {
		return fmt.Errorf("device: register %q: %w", name, errno.ENAME)
	}
	if c, ok := drv.(Configurable); ok {
		if _, err := cfgstruct.New(c.Schema()); err != nil {
			return fmt.Errorf("device: register %q: %w", name, err)
		}
	}
	fw.drivers[name] = &entry{name: name, instMax: instMax, drv: drv, used: make([]*Device, instMax)}
	return nil
}

// Drivers returns the registered driver names, sorted.
func (fw *Framework) Drivers() []string {
	out := make([]string, 0, len(fw.drivers))
	for name := range fw.drivers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Request reserves instance inst of the named driver and creates its
// device object.
func (fw *Framework) Request(name string, inst int) (*Device, error) {
	e, ok := fw.drivers[name]
	if !ok {
		return nil, fmt.Errorf("device: request %s: unknown driver: %w", name, errno.ENAME)
	}
	if inst < 0 || inst >= e.instMax {
		return nil, fmt.Errorf("device: request %s%d: %w", name, inst, errno.EINVAL)
	}
	if e.used[inst] != nil {
		return nil, fmt.Errorf("device: request %s%d: in use: %w", name, inst, errno.ERESOURCE)
	}

	d := &Device{fw: fw, entry: e, inst: inst}
	if c, ok := e.drv.(Configurable); ok {
		cfg, err := cfgstruct.New(c.Schema())
		if err != nil {
			return nil, fmt.Errorf("device: request %s: %w", d, err)
		}
		d.cfg = cfg
	}

	if err := e.drv.Request(inst); err != nil {
		return nil, fmt.Errorf("device: request %s: %w", d, err)
	}
	o, err := fw.reg.CreateWithID(fw.tag)
	if err != nil {
		e.drv.Release(inst)
		return nil, fmt.Errorf("device: request %s: %w", d, err)
	}
	o.Payload = d
	d.obj = o
	e.used[inst] = d
	fw.logf("%s requested as #%d", d, o.ID())
	return d, nil
}

// Lookup returns the live device with object id id.
func (fw *Framework) Lookup(id object.ID) *Device {
	o := fw.reg.Lookup(id, fw.tag)
	if o == nil {
		return nil
	}
	d, _ := o.Payload.(*Device)
	return d
}

// Device returns the requested instance of the named driver, or nil.
func (fw *Framework) Device(name string, inst int) *Device {
	e, ok := fw.drivers[name]
	if !ok || inst < 0 || inst >= e.instMax {
		return nil
	}
	return e.used[inst]
}

// Poll visits every enabled device whose driver polls, and re-posts
// completions the event queue refused earlier.
func (fw *Framework) Poll() {
	// A Poll hook may disable devices, which reorders fw.polled.
	fw.visit = append(fw.visit[:0], fw.polled...)
	for i, d := range fw.visit {
		fw.visit[i] = nil
		if d.enabled {
			d.entry.drv.(Poller).Poll(d.inst, d)
		}
	}
	if len(fw.pending) == 0 {
		return
	}
	retry := fw.pending
	fw.pending = nil
	for _, d := range retry {
		d.postResponse()
	}
}

// SyncStreams runs every stream's starvation guard.
func (fw *Framework) SyncStreams(now uint64) {
	for _, d := range fw.streams {
		if d.stream != nil {
			d.stream.Sync(now)
		}
	}
}

// Enabled reports the number of enabled devices.
func (fw *Framework) Enabled() int {
	n := 0
	for _, e := range fw.drivers {
		for _, d := range e.used {
			if d != nil && d.enabled {
				n++
			}
		}
	}
	return n
}

func remove(list []*Device, d *Device) []*Device {
	for i, x := range list {
		if x == d {
			last := len(list) - 1
			list[i] = list[last]
			list[last] = nil
			return list[:last]
		}
	}
	return list
}
