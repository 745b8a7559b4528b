// Package i2c is the query driver for I2C buses.
//
// A query writes the request bytes to the configured target and then reads
// want bytes back with a repeated start. The transfer runs on the next poll
// so the caller always gets its answer through the RESPONSE event. Get and
// Set address single target registers directly.
package i2c

import (
	"fmt"

	"tinygo.org/x/drivers"

	"ember/ember/cfgstruct"
	"ember/ember/device"
	"ember/ember/errno"
	"ember/hal"
)

const Name = "i2c"

var schema = cfgstruct.Schema{
	{Name: "addr", Kind: cfgstruct.Uint, Size: 1},
	{Name: "speed", Kind: cfgstruct.Enum, Options: []string{"100k", "400k", "1m"}},
}

type bus struct {
	b       drivers.I2C
	addr    uint8
	pending bool
	want    int
	resp    []byte
}

// Driver serves the I2C buses of a HAL.
type Driver struct {
	bus   func(n int) drivers.I2C
	buses []*bus
}

func New(h hal.HAL, n int) *Driver {
	return &Driver{bus: h.I2C, buses: make([]*bus, n)}
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
	b := d.bus(inst)
	if b == nil {
		return fmt.Errorf("i2c%d: %w: %w", inst, hal.ErrNoDevice, errno.ERESOURCE)
	}
	d.buses[inst] = &bus{b: b}
	return nil
}

func (d *Driver) Release(inst int) { d.buses[inst] = nil }

func (d *Driver) Setup(inst int, dev *device.Device) error {
	cfg := dev.Config()
	addr, _ := cfg.GetUint(cfg.Index("addr"))
	if addr == 0 || addr > 0x77 {
		return fmt.Errorf("i2c%d: target address %#x: %w", inst, addr, errno.EINVAL)
	}
	d.buses[inst].addr = uint8(addr)
	return nil
}

func (d *Driver) Reset(inst int) {
	if b := d.buses[inst]; b != nil {
		b.pending = false
	}
}

func (d *Driver) Query(inst int, dev *device.Device, want int) error {
	if len(dev.RequestBytes()) == 0 && want == 0 {
		return errno.EINVAL
	}
	b := d.buses[inst]
	b.pending = true
	b.want = want
	return nil
}

func (d *Driver) Poll(inst int, dev *device.Device) {
	b := d.buses[inst]
	if !b.pending {
		return
	}
	b.pending = false
	if cap(b.resp) < b.want {
		b.resp = make([]byte, b.want)
	}
	r := b.resp[:b.want]
	if err := b.b.Tx(uint16(b.addr), dev.RequestBytes(), r); err != nil {
		dev.Fault(fmt.Errorf("i2c%d: %w: %w", inst, err, errno.EHARDWARE))
	} else {
		dev.ResponsePush(r)
	}
	dev.ResponseEnd()
}

// Get reads target register index.
func (d *Driver) Get(inst, index int) (int64, error) {
	if index < 0 || index > 0xff {
		return 0, errno.EINVAL
	}
	b := d.buses[inst]
	var v [1]byte
	if err := b.b.ReadRegister(b.addr, uint8(index), v[:]); err != nil {
		return 0, fmt.Errorf("i2c%d: %w: %w", inst, err, errno.EHARDWARE)
	}
	return int64(v[0]), nil
}

// Set writes the low byte of v to target register index.
func (d *Driver) Set(inst, index int, v int64) error {
	if index < 0 || index > 0xff {
		return errno.EINVAL
	}
	b := d.buses[inst]
	if err := b.b.WriteRegister(b.addr, uint8(index), []byte{byte(v)}); err != nil {
		return fmt.Errorf("i2c%d: %w: %w", inst, err, errno.EHARDWARE)
	}
	return nil
}
