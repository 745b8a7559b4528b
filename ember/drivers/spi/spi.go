// Package spi is the query driver for SPI buses. A query clocks the
// request out and captures the same number of bytes in; the transfer
// completes inside Query.
package spi

import (
	"fmt"

	"tinygo.org/x/drivers"

	"ember/ember/cfgstruct"
	"ember/ember/device"
	"ember/ember/errno"
	"ember/hal"
)

const Name = "spi"

// Property indexes for Get.
const (
	PropTransfers = iota
	PropBytes
)

var schema = cfgstruct.Schema{
	{Name: "freq", Kind: cfgstruct.Uint, Size: 4, Default: "1000000"},
	{Name: "mode", Kind: cfgstruct.Uint, Size: 1},
	{Name: "fill", Kind: cfgstruct.Uint, Size: 1, Default: "0xff"},
}

type bus struct {
	b         drivers.SPI
	fill      byte
	in        []byte
	out       []byte
	transfers int64
	bytes     int64
}

type Driver struct {
	bus   func(n int) drivers.SPI
	buses []*bus
}

func New(h hal.HAL, n int) *Driver {
	return &Driver{bus: h.SPI, buses: make([]*bus, n)}
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
		return fmt.Errorf("spi%d: %w: %w", inst, hal.ErrNoDevice, errno.ERESOURCE)
	}
	d.buses[inst] = &bus{b: b}
	return nil
}

func (d *Driver) Release(inst int) { d.buses[inst] = nil }

func (d *Driver) Setup(inst int, dev *device.Device) error {
	cfg := dev.Config()
	mode, _ := cfg.GetUint(cfg.Index("mode"))
	freq, _ := cfg.GetUint(cfg.Index("freq"))
	fill, _ := cfg.GetUint(cfg.Index("fill"))
	if mode > 3 || freq == 0 {
		return fmt.Errorf("spi%d: mode %d at %d Hz: %w", inst, mode, freq, errno.EINVAL)
	}
	d.buses[inst].fill = byte(fill)
	return nil
}

func (d *Driver) Reset(inst int) {}

// Query exchanges max(len(request), want) bytes. Missing request bytes are
// clocked out as the fill byte.
func (d *Driver) Query(inst int, dev *device.Device, want int) error {
	b := d.buses[inst]
	req := dev.RequestBytes()
	n := max(len(req), want)
	if n == 0 {
		return errno.EINVAL
	}
	if cap(b.out) < n {
		b.out = make([]byte, n)
		b.in = make([]byte, n)
	}
	out, in := b.out[:n], b.in[:n]
	copy(out, req)
	for i := len(req); i < n; i++ {
		out[i] = b.fill
	}

	var err error
	if n == 1 {
		in[0], err = b.b.Transfer(out[0])
	} else {
		err = b.b.Tx(out, in)
	}
	if err != nil {
		return fmt.Errorf("spi%d: %w: %w", inst, err, errno.EHARDWARE)
	}
	b.transfers++
	b.bytes += int64(n)
	dev.ResponsePush(in)
	dev.ResponseEnd()
	return nil
}

func (d *Driver) Get(inst, index int) (int64, error) {
	b := d.buses[inst]
	switch index {
	case PropTransfers:
		return b.transfers, nil
	case PropBytes:
		return b.bytes, nil
	default:
		return 0, errno.EINVAL
	}
}
