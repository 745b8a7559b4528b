// Package gpio is the pin driver. Each instance is one pin; configured
// edges arrive as PIN_EDGE events on the pin's device.
package gpio

import (
	"fmt"
	"sync/atomic"

	"ember/ember/cfgstruct"
	"ember/ember/device"
	"ember/ember/errno"
	"ember/ember/event"
	"ember/hal"
)

const Name = "gpio"

// Property indexes for Get and Set.
const (
	PropLevel = iota
	PropEdges
	PropLastEdge
)

var schema = cfgstruct.Schema{
	{Name: "mode", Kind: cfgstruct.Enum, Options: []string{"input", "output"}},
	{Name: "pull", Kind: cfgstruct.Enum, Options: []string{"none", "up", "down"}},
	{Name: "edge", Kind: cfgstruct.Enum, Options: []string{"none", "rising", "falling", "both"}},
	{Name: "level", Kind: cfgstruct.Uint, Size: 1},
}

type pin struct {
	p hal.GPIOPin

	// Written from the edge handler.
	edges atomic.Uint32
	last  atomic.Bool
}

type Driver struct {
	gpio hal.GPIO
	pins []*pin
}

func New(h hal.HAL) *Driver {
	g := h.GPIO()
	n := 0
	if g != nil {
		n = g.PinCount()
	}
	return &Driver{gpio: g, pins: make([]*pin, n)}
}

// Register adds the driver to fw with one instance per pin.
func Register(fw *device.Framework, h hal.HAL) (*Driver, error) {
	d := New(h)
	if len(d.pins) == 0 {
		return nil, fmt.Errorf("gpio: %w", hal.ErrNoDevice)
	}
	if err := fw.Register(Name, len(d.pins), d); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Driver) Schema() cfgstruct.Schema { return schema }

func (d *Driver) Request(inst int) error {
	p := d.gpio.Pin(inst)
	if p == nil {
		return fmt.Errorf("gpio%d: %w: %w", inst, hal.ErrNoDevice, errno.ERESOURCE)
	}
	d.pins[inst] = &pin{p: p}
	return nil
}

func (d *Driver) Release(inst int) { d.pins[inst] = nil }

func mapMode(v int) hal.GPIOMode {
	if v == 1 {
		return hal.GPIOModeOutput
	}
	return hal.GPIOModeInput
}

func mapPull(v int) hal.GPIOPull {
	switch v {
	case 1:
		return hal.GPIOPullUp
	case 2:
		return hal.GPIOPullDown
	default:
		return hal.GPIOPullNone
	}
}

func mapEdge(v int) hal.GPIOEdge {
	switch v {
	case 1:
		return hal.GPIOEdgeRising
	case 2:
		return hal.GPIOEdgeFalling
	case 3:
		return hal.GPIOEdgeBoth
	default:
		return hal.GPIOEdgeNone
	}
}

func (d *Driver) Setup(inst int, dev *device.Device) error {
	cfg := dev.Config()
	mode, _ := cfg.GetEnum(cfg.Index("mode"))
	pull, _ := cfg.GetEnum(cfg.Index("pull"))
	edge, _ := cfg.GetEnum(cfg.Index("edge"))
	level, _ := cfg.GetUint(cfg.Index("level"))

	p := d.pins[inst]
	if err := p.p.Configure(mapMode(mode), mapPull(pull)); err != nil {
		return fmt.Errorf("gpio%d: %w: %w", inst, err, errno.EINVAL)
	}
	if mapMode(mode) == hal.GPIOModeOutput {
		if err := p.p.Write(level != 0); err != nil {
			return fmt.Errorf("gpio%d: %w: %w", inst, err, errno.EHARDWARE)
		}
	}
	p.edges.Store(0)
	if e := mapEdge(edge); e != hal.GPIOEdgeNone {
		post := dev.Poster()
		err := p.p.SetInterrupt(e, func(level bool) {
			p.edges.Add(1)
			p.last.Store(level)
			post(event.CodePinEdge)
		})
		if err != nil {
			return fmt.Errorf("gpio%d: %w: %w", inst, err, errno.EIMPLEMENT)
		}
	}
	return nil
}

func (d *Driver) Reset(inst int) {
	p := d.pins[inst]
	if p == nil {
		return
	}
	if p.p.Caps()&hal.GPIOCapInterrupt != 0 {
		p.p.SetInterrupt(hal.GPIOEdgeNone, nil)
	}
	p.p.Configure(hal.GPIOModeInput, hal.GPIOPullNone)
}

func (d *Driver) Get(inst, index int) (int64, error) {
	p := d.pins[inst]
	switch index {
	case PropLevel:
		level, err := p.p.Read()
		if err != nil {
			return 0, fmt.Errorf("gpio%d: %w: %w", inst, err, errno.EHARDWARE)
		}
		return b2i(level), nil
	case PropEdges:
		return int64(p.edges.Load()), nil
	case PropLastEdge:
		return b2i(p.last.Load()), nil
	default:
		return 0, errno.EINVAL
	}
}

// Set drives an output pin: index PropLevel, nonzero v is high.
func (d *Driver) Set(inst, index int, v int64) error {
	if index != PropLevel {
		return errno.EINVAL
	}
	if err := d.pins[inst].p.Write(v != 0); err != nil {
		return fmt.Errorf("gpio%d: %w: %w", inst, err, errno.EINVAL)
	}
	return nil
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
