// Package uart is the stream driver for hal.Serial ports.
//
// Received bytes move from the port's FIFO into the device stream on every
// poll; queued transmit bytes move out while the transmitter is armed and
// the FIFO has room.
package uart

import (
	"fmt"

	"ember/ember/cfgstruct"
	"ember/ember/device"
	"ember/ember/errno"
	"ember/hal"
)

const Name = "uart"

// Property indexes for Get.
const (
	PropRxFIFO = iota
	PropTxFree
	PropOverruns
)

var schema = cfgstruct.Schema{
	{Name: "baud", Kind: cfgstruct.Uint, Size: 4, Default: "115200"},
	{Name: "data", Kind: cfgstruct.Uint, Size: 1, Default: "8"},
	{Name: "parity", Kind: cfgstruct.Enum, Options: []string{"none", "even", "odd"}},
	{Name: "stop", Kind: cfgstruct.Uint, Size: 1, Default: "1"},
}

// overrunCounter is implemented by ports that count receive FIFO overruns.
type overrunCounter interface {
	Overruns() uint32
}

type port struct {
	s        hal.Serial
	armed    bool
	overruns uint32
	baud     uint64
}

// Driver serves the ports returned by a HAL.
type Driver struct {
	serial func(n int) hal.Serial
	ports  []*port
	buf    [32]byte
}

// New returns a driver for n ports of h.
func New(h hal.HAL, n int) *Driver {
	return &Driver{serial: h.Serial, ports: make([]*port, n)}
}

// Register adds the driver to fw.
func Register(fw *device.Framework, h hal.HAL, n int) (*Driver, error) {
	d := New(h, n)
	if err := fw.Register(Name, n, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Driver) Schema() cfgstruct.Schema { return schema }

func (d *Driver) Request(inst int) error {
	s := d.serial(inst)
	if s == nil {
		return fmt.Errorf("uart%d: %w: %w", inst, hal.ErrNoDevice, errno.ERESOURCE)
	}
	d.ports[inst] = &port{s: s}
	return nil
}

func (d *Driver) Release(inst int) { d.ports[inst] = nil }

func (d *Driver) Setup(inst int, dev *device.Device) error {
	cfg := dev.Config()
	baud, _ := cfg.GetUint(cfg.Index("baud"))
	data, _ := cfg.GetUint(cfg.Index("data"))
	stop, _ := cfg.GetUint(cfg.Index("stop"))
	if baud == 0 || data < 5 || data > 8 || stop < 1 || stop > 2 {
		return fmt.Errorf("uart%d: bad line settings %s: %w", inst, cfg, errno.EINVAL)
	}
	p := d.ports[inst]
	p.baud = baud
	p.armed = false
	if oc, ok := p.s.(overrunCounter); ok {
		p.overruns = oc.Overruns()
	}
	return nil
}

func (d *Driver) Reset(inst int) {
	if p := d.ports[inst]; p != nil {
		p.armed = false
	}
}

// Read copies what the receive FIFO holds. A nil p is a no-op: receive is
// always armed.
func (d *Driver) Read(inst int, p []byte) (int, error) {
	if p == nil {
		return 0, nil
	}
	return d.ports[inst].s.Read(p)
}

// Write fills the transmit FIFO. A nil p arms the transmitter so Poll
// keeps draining the stream.
func (d *Driver) Write(inst int, p []byte) (int, error) {
	pt := d.ports[inst]
	if p == nil {
		pt.armed = true
		return 0, nil
	}
	return pt.s.Write(p)
}

// Poll stands in for the receive and transmit-empty interrupts.
func (d *Driver) Poll(inst int, dev *device.Device) {
	p := d.ports[inst]

	for p.s.Buffered() > 0 {
		n, err := p.s.Read(d.buf[:])
		if err != nil {
			dev.Fault(fmt.Errorf("uart%d: %w: %w", inst, err, errno.EHARDWARE))
			break
		}
		if n == 0 {
			break
		}
		dev.Push(d.buf[:n])
	}
	if oc, ok := p.s.(overrunCounter); ok {
		if o := oc.Overruns(); o != p.overruns {
			dev.Fault(fmt.Errorf("uart%d: %d bytes overrun: %w", inst, o-p.overruns, errno.EHARDWARE))
			p.overruns = o
		}
	}

	for p.armed {
		room := min(p.s.TxFree(), len(d.buf))
		if room == 0 {
			break
		}
		n := dev.Pull(d.buf[:room])
		if n == 0 {
			p.armed = false
			break
		}
		if w, _ := p.s.Write(d.buf[:n]); w < n {
			dev.Fault(fmt.Errorf("uart%d: %d bytes lost in transmit FIFO: %w", inst, n-w, errno.EHARDWARE))
		}
	}
}

func (d *Driver) Get(inst, index int) (int64, error) {
	p := d.ports[inst]
	switch index {
	case PropRxFIFO:
		return int64(p.s.Buffered()), nil
	case PropTxFree:
		return int64(p.s.TxFree()), nil
	case PropOverruns:
		return int64(p.overruns), nil
	default:
		return 0, errno.EINVAL
	}
}
