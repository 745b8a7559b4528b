// Package adc is the polled conversion driver for hal.ADC.
//
// The converter raises no interrupt, so each query walks a small state
// machine from the main loop poll: start the conversion, wait for ready,
// fetch the sample. The response is the 16-bit little-endian sample.
package adc

import (
	"encoding/binary"
	"fmt"

	"ember/ember/cfgstruct"
	"ember/ember/device"
	"ember/ember/errno"
	"ember/hal"
)

const Name = "adc"

var schema = cfgstruct.Schema{
	{Name: "channel", Kind: cfgstruct.Uint, Size: 1},
	{Name: "timeout", Kind: cfgstruct.Uint, Size: 2, Default: "100"},
}

type phase uint8

const (
	idle phase = iota
	starting
	converting
)

type unit struct {
	phase   phase
	ch      int
	conv    int // channel of the conversion in flight
	polls   int
	timeout int
	last    []int64
}

// Driver serves one converter shared by every instance. Each instance
// picks its channel in the config or in the first request byte.
type Driver struct {
	adc   hal.ADC
	units []*unit
}

func New(h hal.HAL, n int) *Driver {
	return &Driver{adc: h.ADC(), units: make([]*unit, n)}
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
	if d.adc == nil || d.adc.Channels() == 0 {
		return fmt.Errorf("adc%d: %w: %w", inst, hal.ErrNoDevice, errno.ERESOURCE)
	}
	d.units[inst] = &unit{last: make([]int64, d.adc.Channels())}
	return nil
}

func (d *Driver) Release(inst int) { d.units[inst] = nil }

func (d *Driver) Setup(inst int, dev *device.Device) error {
	cfg := dev.Config()
	ch, _ := cfg.GetUint(cfg.Index("channel"))
	timeout, _ := cfg.GetUint(cfg.Index("timeout"))
	if int(ch) >= d.adc.Channels() || timeout == 0 {
		return fmt.Errorf("adc%d: channel %d: %w", inst, ch, errno.EINVAL)
	}
	u := d.units[inst]
	u.ch = int(ch)
	u.timeout = int(timeout)
	u.phase = idle
	return nil
}

func (d *Driver) Reset(inst int) {
	if u := d.units[inst]; u != nil {
		u.phase = idle
	}
}

// Query starts a conversion. An optional request byte overrides the
// configured channel for this conversion.
func (d *Driver) Query(inst int, dev *device.Device, want int) error {
	u := d.units[inst]
	ch := u.ch
	if req := dev.RequestBytes(); len(req) > 0 {
		ch = int(req[0])
	}
	if ch >= d.adc.Channels() || want < 2 {
		return errno.EINVAL
	}
	if err := d.adc.Start(ch); err != nil {
		return fmt.Errorf("adc%d: %w: %w", inst, err, errno.EHARDWARE)
	}
	u.phase = starting
	u.polls = 0
	u.conv = ch
	return nil
}

func (d *Driver) Poll(inst int, dev *device.Device) {
	u := d.units[inst]
	switch u.phase {
	case idle:
		return
	case starting:
		u.phase = converting
		fallthrough
	case converting:
		u.polls++
		if !d.adc.Ready(u.conv) {
			if u.polls >= u.timeout {
				u.phase = idle
				dev.Fault(fmt.Errorf("adc%d: channel %d: %w", inst, u.conv, errno.ETIMEOUT))
				dev.ResponseEnd()
			}
			return
		}
	}
	u.phase = idle
	v, err := d.adc.Value(u.conv)
	if err != nil {
		dev.Fault(fmt.Errorf("adc%d: %w: %w", inst, err, errno.EHARDWARE))
		dev.ResponseEnd()
		return
	}
	u.last[u.conv] = int64(v)
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	dev.ResponsePush(b[:])
	dev.ResponseEnd()
}

// Get returns the last sample taken on channel index.
func (d *Driver) Get(inst, index int) (int64, error) {
	u := d.units[inst]
	if index < 0 || index >= len(u.last) {
		return 0, errno.EINVAL
	}
	return u.last[index], nil
}
