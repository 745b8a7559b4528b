//go:build !tinygo

package hal

import (
	"fmt"
	"sync"
)

// VirtualPin is a host pin whose input level can be driven from outside,
// raising the armed edge interrupt the way a real pin controller would.
// The handler runs on the goroutine that caused the edge.
type VirtualPin struct {
	mu    sync.Mutex
	name  string
	mode  GPIOMode
	level bool

	edge GPIOEdge
	isr  func(level bool)
}

// NewVirtualPin returns a pin with every capability.
func NewVirtualPin(name string) *VirtualPin {
	return &VirtualPin{name: name}
}

func (p *VirtualPin) Name() string   { return p.name }
func (p *VirtualPin) Caps() GPIOCaps { return GPIOCapAll }

// Configure sets the direction. A pull on an input settles the level.
func (p *VirtualPin) Configure(mode GPIOMode, pull GPIOPull) error {
	if err := checkPinConfig(p.name, GPIOCapAll, mode, pull); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = mode
	if mode == GPIOModeInput && pull != GPIOPullNone {
		p.level = pull == GPIOPullUp
	}
	return nil
}

func (p *VirtualPin) Read() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level, nil
}

func (p *VirtualPin) Write(level bool) error {
	if !p.set(GPIOModeOutput, level) {
		return fmt.Errorf("gpio: pin %s: not an output", p.name)
	}
	return nil
}

// Drive sets the level seen on an input pin from outside the chip. It is
// ignored while the pin is an output.
func (p *VirtualPin) Drive(level bool) { p.set(GPIOModeInput, level) }

func (p *VirtualPin) SetInterrupt(edge GPIOEdge, fn func(level bool)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if edge == GPIOEdgeNone || fn == nil {
		edge, fn = GPIOEdgeNone, nil
	}
	p.edge, p.isr = edge, fn
	return nil
}

// set changes the level when the pin is in mode and runs the handler,
// outside the lock, if the change is an armed edge.
func (p *VirtualPin) set(mode GPIOMode, level bool) bool {
	p.mu.Lock()
	if p.mode != mode {
		p.mu.Unlock()
		return false
	}
	old := p.level
	p.level = level
	var isr func(bool)
	if p.isr != nil && p.edge.Fires(old, level) {
		isr = p.isr
	}
	p.mu.Unlock()

	if isr != nil {
		isr(level)
	}
	return true
}

// wavePin is an input-only square wave counted in host ticks: high for the
// first high ticks of every period. It has no interrupt so it only shows up
// when polled.
type wavePin struct {
	name         string
	period, high uint64
	now          func() uint64
}

func newWavePin(name string, period, high uint64, now func() uint64) *wavePin {
	if period == 0 {
		period = 1
	}
	return &wavePin{name: name, period: period, high: min(high, period), now: now}
}

func (p *wavePin) Name() string   { return p.name }
func (p *wavePin) Caps() GPIOCaps { return GPIOCapInput }

func (p *wavePin) Configure(mode GPIOMode, pull GPIOPull) error {
	return checkPinConfig(p.name, GPIOCapInput, mode, pull)
}

func (p *wavePin) Read() (bool, error) { return p.now()%p.period < p.high, nil }

func (p *wavePin) Write(bool) error {
	return fmt.Errorf("gpio: pin %s: input only", p.name)
}

func (p *wavePin) SetInterrupt(GPIOEdge, func(bool)) error {
	return fmt.Errorf("gpio: pin %s: no interrupt", p.name)
}
