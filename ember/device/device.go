package device

import (
	"fmt"

	"ember/ember/cfgstruct"
	"ember/ember/errno"
	"ember/ember/event"
	"ember/ember/object"
	"ember/ember/stream"
)

// State is where a device is in its lifecycle.
type State uint8

const (
	Unrequested State = iota
	Requested
	Enabled
	Busy
	// Disabled is a requested device that has been enabled and disabled
	// again. It may be re-enabled or released.
	Disabled
)

func (s State) String() string {
	switch s {
	case Unrequested:
		return "unrequested"
	case Requested:
		return "requested"
	case Enabled:
		return "enabled"
	case Busy:
		return "busy"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Device is one requested driver instance. All methods run on the main
// loop except Push, Pull, ResponsePush and ResponseEnd, which drivers call
// from their own context.
type Device struct {
	fw    *Framework
	entry *entry
	inst  int
	obj   *object.Object

	enabled  bool
	disabled bool
	cfg      *cfgstruct.Struct
	stream   *stream.Stream

	q query

	cb    object.Callback
	param any
}

func (d *Device) String() string { return fmt.Sprintf("%s%d", d.entry.name, d.inst) }

// Driver returns the name the driver registered under.
func (d *Device) Driver() string { return d.entry.name }

// Instance returns the instance number.
func (d *Device) Instance() int { return d.inst }

// Object returns the device's registry object.
func (d *Device) Object() *object.Object { return d.obj }

// ID returns the device's event address.
func (d *Device) ID() object.ID {
	if d.obj == nil {
		return object.NoID
	}
	return d.obj.ID()
}

func (d *Device) State() State {
	switch {
	case d.obj == nil || !d.obj.Alive():
		return Unrequested
	case d.q.busy:
		return Busy
	case d.enabled:
		return Enabled
	case d.disabled:
		return Disabled
	default:
		return Requested
	}
}

// Config returns the configuration record, or nil when the driver has none.
func (d *Device) Config() *cfgstruct.Struct { return d.cfg }

// Stream returns the device's stream while enabled.
func (d *Device) Stream() *stream.Stream { return d.stream }

// Err returns the last fault recorded on the device.
func (d *Device) Err() error {
	if d.obj == nil {
		return nil
	}
	return d.obj.Err()
}

// SetCallback sets the consumer callback. It sees RESPONSE, DATA, DRAIN,
// ERROR and any driver-specific codes.
func (d *Device) SetCallback(cb object.Callback, param any) {
	d.cb = cb
	d.param = param
}

func (d *Device) alive() error {
	if d.obj == nil || !d.obj.Alive() {
		return errno.EINVAL
	}
	return nil
}

// Enable runs the driver's Setup and, when the driver moves bytes, gives
// the device a stream.
func (d *Device) Enable() error {
	if err := d.alive(); err != nil {
		return err
	}
	if d.enabled {
		return fmt.Errorf("device: enable %s: %w", d, errno.EBUSY)
	}
	drv := d.entry.drv
	if err := drv.Setup(d.inst, d); err != nil {
		return fmt.Errorf("device: setup %s: %w", d, err)
	}

	r, readable := drv.(Reader)
	w, writable := drv.(Writer)
	if readable || writable {
		rx, tx := d.fw.cfg.RxSize, d.fw.cfg.TxSize
		if sz, ok := drv.(StreamSizer); ok {
			rx, tx = sz.StreamSizes()
		}
		cfg := stream.Config{
			Clock:       d.fw.cfg.Clock,
			StarveTicks: d.fw.cfg.StarveTicks,
		}
		if readable {
			cfg.RxSize = rx
			cfg.Read = func(p []byte) (int, error) { return r.Read(d.inst, p) }
		}
		if writable {
			cfg.TxSize = tx
			cfg.Write = func(p []byte) (int, error) { return w.Write(d.inst, p) }
		}
		s, err := stream.New(d.fw.heap, cfg, d.notify)
		if err != nil {
			drv.Reset(d.inst)
			return fmt.Errorf("device: enable %s: %w", d, err)
		}
		d.stream = s
		d.fw.streams = append(d.fw.streams, d)
	}
	if _, ok := drv.(Poller); ok {
		d.fw.polled = append(d.fw.polled, d)
	}
	d.enabled, d.disabled = true, false
	d.fw.logf("%s enabled", d)
	return nil
}

// notify turns stream notifications into device events.
func (d *Device) notify(c event.Code) {
	d.fw.reg.Post(d.obj, c)
}

// Disable resets the driver and releases the stream. A device with a
// query outstanding cannot be disabled.
func (d *Device) Disable() error {
	if err := d.alive(); err != nil {
		return err
	}
	if !d.enabled {
		return fmt.Errorf("device: disable %s: %w", d, errno.EENABLED)
	}
	if d.q.busy {
		return fmt.Errorf("device: disable %s: %w", d, errno.EBUSY)
	}
	d.teardown()
	return nil
}

func (d *Device) teardown() {
	d.entry.drv.Reset(d.inst)
	d.fw.polled = remove(d.fw.polled, d)
	if d.stream != nil {
		d.fw.streams = remove(d.fw.streams, d)
		d.stream.Close()
		d.stream = nil
	}
	d.enabled = false
	d.disabled = true
	d.fw.logf("%s disabled", d)
}

// Release destroys the device, disabling it first if needed, and frees
// the instance for the next Request.
func (d *Device) Release() {
	if d.alive() != nil {
		return
	}
	d.fw.reg.Destroy(d.obj)
}

// destroy is the object kind's destroy hook.
func (d *Device) destroy() {
	if d.enabled {
		d.q.free(d.fw.heap)
		d.fw.pending = remove(d.fw.pending, d)
		d.teardown()
	}
	d.entry.drv.Release(d.inst)
	d.entry.used[d.inst] = nil
	d.fw.logf("%s released", d)
}

// Push hands received bytes to the stream and returns how many fit.
func (d *Device) Push(p []byte) int {
	if d.stream == nil {
		return 0
	}
	return d.stream.Push(p)
}

// Pull takes bytes queued for transmission.
func (d *Device) Pull(p []byte) int {
	if d.stream == nil {
		return 0
	}
	return d.stream.Pull(p)
}

// Unshift returns one byte to the front of the receive stream.
func (d *Device) Unshift(b byte) bool {
	if d.stream == nil {
		return false
	}
	return d.stream.Unshift(b)
}

func (d *Device) ioStream() (*stream.Stream, error) {
	if err := d.alive(); err != nil {
		return nil, err
	}
	if !d.enabled {
		return nil, errno.EENABLED
	}
	if d.stream == nil {
		return nil, errno.EIMPLEMENT
	}
	return d.stream, nil
}

// Read copies received bytes into p.
func (d *Device) Read(p []byte) (int, error) {
	s, err := d.ioStream()
	if err != nil {
		return 0, err
	}
	return s.Read(p)
}

// Write queues p for transmission.
func (d *Device) Write(p []byte) (int, error) {
	s, err := d.ioStream()
	if err != nil {
		return 0, err
	}
	return s.Write(p)
}

// ReadSync fills p straight from the driver, spinning until it is full.
// Neither the stream nor the event queue is involved.
func (d *Device) ReadSync(p []byte) (int, error) {
	r, ok := d.entry.drv.(Reader)
	if !ok {
		return 0, errno.EIMPLEMENT
	}
	return d.spin(p, func(b []byte) (int, error) { return r.Read(d.inst, b) })
}

// WriteSync sends all of p straight through the driver.
func (d *Device) WriteSync(p []byte) (int, error) {
	w, ok := d.entry.drv.(Writer)
	if !ok {
		return 0, errno.EIMPLEMENT
	}
	return d.spin(p, func(b []byte) (int, error) { return w.Write(d.inst, b) })
}

func (d *Device) spin(p []byte, io func([]byte) (int, error)) (int, error) {
	if err := d.alive(); err != nil {
		return 0, err
	}
	if !d.enabled {
		return 0, errno.EENABLED
	}
	n, idle := 0, 0
	for n < len(p) {
		m, err := io(p[n:])
		if err != nil {
			return n, err
		}
		if m == 0 {
			idle++
			if idle >= d.fw.cfg.SyncSpins {
				return n, fmt.Errorf("device: %s sync i/o: %w", d, errno.ETIMEOUT)
			}
			continue
		}
		idle = 0
		n += m
	}
	return n, nil
}

// Get reads an indexed driver property.
func (d *Device) Get(index int) (int64, error) {
	if err := d.alive(); err != nil {
		return 0, err
	}
	g, ok := d.entry.drv.(Getter)
	if !ok {
		return 0, errno.EIMPLEMENT
	}
	if !d.enabled {
		return 0, errno.EENABLED
	}
	return g.Get(d.inst, index)
}

// Set writes an indexed driver property.
func (d *Device) Set(index int, v int64) error {
	if err := d.alive(); err != nil {
		return err
	}
	s, ok := d.entry.drv.(Setter)
	if !ok {
		return errno.EIMPLEMENT
	}
	if !d.enabled {
		return errno.EENABLED
	}
	return s.Set(d.inst, index, v)
}

// Fault records a hardware fault and queues ERROR for the consumer.
func (d *Device) Fault(err error) {
	if d.alive() != nil || err == nil {
		return
	}
	d.fw.reg.Fail(d.obj, err)
}

// Post queues a driver-specific event for the device.
func (d *Device) Post(code event.Code) bool {
	if d.alive() != nil {
		return false
	}
	return d.fw.reg.Post(d.obj, code)
}

// Poster returns a function that queues events for the device and touches
// nothing but the event queue, so interrupt handlers may call it. Drivers
// take it in Setup and stop calling it in Reset.
func (d *Device) Poster() func(code event.Code) bool {
	q, id := d.fw.reg.Queue(), uint16(d.ID())
	return func(code event.Code) bool {
		return q.Post(event.TypeObject, code, id)
	}
}

// Listen subscribes the callback to stream notifications.
func (d *Device) Listen(m stream.Mask) error {
	if err := d.alive(); err != nil {
		return err
	}
	if d.stream == nil {
		if m&^stream.MaskError != 0 {
			return errno.EIMPLEMENT
		}
		return nil
	}
	d.stream.Listen(m)
	return nil
}

// Ignore unsubscribes from stream notifications.
func (d *Device) Ignore(m stream.Mask) error {
	if err := d.alive(); err != nil {
		return err
	}
	if d.stream != nil {
		d.stream.Ignore(m)
	}
	return nil
}

func (d *Device) callback(code event.Code) {
	if d.cb != nil {
		d.cb(d.obj, code, d.param)
	}
}
