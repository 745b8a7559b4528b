//go:build !tinygo

package hal

import (
	"fmt"
	"sync"
)

// VirtualI2C is a bus of register-file targets.
//
// A write transfers a register pointer followed by data bytes written from
// that pointer on; a read returns bytes from the current pointer. The
// pointer auto-increments and wraps at 256, which is how most sensor parts
// behave.
type VirtualI2C struct {
	mu      sync.Mutex
	targets map[uint16]*i2cTarget
}

type i2cTarget struct {
	regs [256]byte
	ptr  uint8
}

// NewVirtualI2C returns an empty bus.
func NewVirtualI2C() *VirtualI2C {
	return &VirtualI2C{targets: make(map[uint16]*i2cTarget)}
}

// Attach adds a target at addr with the given initial registers.
func (b *VirtualI2C) Attach(addr uint16, regs map[uint8]byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := &i2cTarget{}
	for r, v := range regs {
		t.regs[r] = v
	}
	b.targets[addr] = t
}

// Register returns the current value of a target register.
func (b *VirtualI2C) Register(addr uint16, reg uint8) (byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.targets[addr]
	if !ok {
		return 0, false
	}
	return t.regs[reg], true
}

// Tx performs a write then a read transfer with a repeated start.
func (b *VirtualI2C) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.targets[addr]
	if !ok {
		return fmt.Errorf("i2c: address 0x%02x: no ack", addr)
	}
	if len(w) > 0 {
		t.ptr = w[0]
		for _, v := range w[1:] {
			t.regs[t.ptr] = v
			t.ptr++
		}
	}
	for i := range r {
		r[i] = t.regs[t.ptr]
		t.ptr++
	}
	return nil
}

func (b *VirtualI2C) ReadRegister(addr uint8, r uint8, buf []byte) error {
	return b.Tx(uint16(addr), []byte{r}, buf)
}

func (b *VirtualI2C) WriteRegister(addr uint8, r uint8, buf []byte) error {
	w := make([]byte, 1+len(buf))
	w[0] = r
	copy(w[1:], buf)
	return b.Tx(uint16(addr), w, nil)
}

// LoopbackSPI is a bus whose MISO is wired to MOSI.
type LoopbackSPI struct {
	mu    sync.Mutex
	bytes uint64
}

func (s *LoopbackSPI) Tx(w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case w == nil:
		for i := range r {
			r[i] = 0
		}
	case r == nil:
	default:
		if len(w) != len(r) {
			return fmt.Errorf("spi: tx length %d != rx length %d", len(w), len(r))
		}
		copy(r, w)
	}
	n := len(w)
	if len(r) > n {
		n = len(r)
	}
	s.bytes += uint64(n)
	return nil
}

func (s *LoopbackSPI) Transfer(b byte) (byte, error) {
	var r [1]byte
	err := s.Tx([]byte{b}, r[:])
	return r[0], err
}

// Transferred reports the total bytes clocked on the bus.
func (s *LoopbackSPI) Transferred() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}

// VirtualADC converts channel n to a value set with SetInput. A conversion
// completes after a fixed number of Ready polls.
type VirtualADC struct {
	mu      sync.Mutex
	polls   int
	input   []uint16
	pending []int
	fault   []bool
}

// NewVirtualADC returns channels ADC channels that each need polls Ready
// calls per conversion.
func NewVirtualADC(channels, polls int) *VirtualADC {
	if polls <= 0 {
		polls = 1
	}
	a := &VirtualADC{
		polls:   polls,
		input:   make([]uint16, channels),
		pending: make([]int, channels),
		fault:   make([]bool, channels),
	}
	for i := range a.pending {
		a.pending[i] = -1
	}
	return a
}

// SetInput sets the value the next conversion on ch returns.
func (a *VirtualADC) SetInput(ch int, v uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ch >= 0 && ch < len(a.input) {
		a.input[ch] = v & 0x0fff
	}
}

// SetFault makes conversions on ch fail.
func (a *VirtualADC) SetFault(ch int, on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ch >= 0 && ch < len(a.fault) {
		a.fault[ch] = on
	}
}

func (a *VirtualADC) Channels() int { return len(a.input) }

func (a *VirtualADC) Start(ch int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ch < 0 || ch >= len(a.input) {
		return ErrNoDevice
	}
	a.pending[ch] = a.polls
	return nil
}

func (a *VirtualADC) Ready(ch int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ch < 0 || ch >= len(a.pending) || a.pending[ch] < 0 {
		return false
	}
	if a.pending[ch] > 0 {
		a.pending[ch]--
	}
	return a.pending[ch] == 0
}

func (a *VirtualADC) Value(ch int) (uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ch < 0 || ch >= len(a.input) {
		return 0, ErrNoDevice
	}
	if a.pending[ch] != 0 {
		return 0, fmt.Errorf("adc: channel %d: conversion not complete", ch)
	}
	a.pending[ch] = -1
	if a.fault[ch] {
		return 0, fmt.Errorf("adc: channel %d: conversion fault", ch)
	}
	return a.input[ch], nil
}
