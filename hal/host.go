//go:build !tinygo

package hal

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"tinygo.org/x/drivers"
)

// HostConfig sizes the host platform.
type HostConfig struct {
	// MemoryBytes is the raw memory reported to the allocator.
	MemoryBytes int
	// UARTs is the number of loopback UARTs.
	UARTs int
	// FIFOBytes bounds each UART hardware FIFO.
	FIFOBytes int
	// Pins is the number of virtual GPIO pins with interrupts.
	Pins int
	// ADCChannels is the number of virtual ADC channels.
	ADCChannels int
	// ADCPolls is how many Ready polls a conversion takes.
	ADCPolls int
	// TickPeriod is the wall-clock length of one tick. Zero means 1ms.
	TickPeriod time.Duration
	// Log receives log lines; defaults to stdout.
	Log io.Writer
}

func (c *HostConfig) defaults() {
	if c.MemoryBytes <= 0 {
		c.MemoryBytes = 64 << 10
	}
	if c.UARTs <= 0 {
		c.UARTs = 2
	}
	if c.FIFOBytes <= 0 {
		c.FIFOBytes = 64
	}
	if c.Pins <= 0 {
		c.Pins = 8
	}
	if c.ADCChannels <= 0 {
		c.ADCChannels = 4
	}
	if c.ADCPolls <= 0 {
		c.ADCPolls = 3
	}
	if c.Log == nil {
		c.Log = os.Stdout
	}
}

// Host is the host platform: real time and memory, virtual peripherals.
type Host struct {
	logger *hostLogger
	mask   *hostMask
	mem    Memory
	t      *hostTime
	uarts  []*LoopbackSerial
	i2c    []*VirtualI2C
	spi    []*LoopbackSPI
	adc    *VirtualADC
	gpio   GPIO
	pins   []*VirtualPin
}

// New returns a host HAL implementation with default sizes.
func New() HAL {
	return NewHost(HostConfig{})
}

// NewHost returns a host HAL implementation.
func NewHost(cfg HostConfig) *Host {
	cfg.defaults()
	logger := &hostLogger{w: cfg.Log}

	h := &Host{
		logger: logger,
		mask:   &hostMask{},
		mem:    newRegionMemory(mapRegion(cfg.MemoryBytes)),
		t:      newHostTime(cfg.TickPeriod),
		i2c:    []*VirtualI2C{NewVirtualI2C()},
		spi:    []*LoopbackSPI{{}},
		adc:    NewVirtualADC(cfg.ADCChannels, cfg.ADCPolls),
	}
	for i := 0; i < cfg.UARTs; i++ {
		h.uarts = append(h.uarts, NewLoopbackSerial(cfg.FIFOBytes))
	}

	var bank pinBank
	for i := 0; i < cfg.Pins; i++ {
		p := NewVirtualPin(fmt.Sprintf("GPIO%d", i))
		h.pins = append(h.pins, p)
		bank = append(bank, p)
	}
	// Square waves behind the virtual pins, for polling without wiring.
	t := h.t
	bank = append(bank,
		newWavePin("SIG1HZ", t.perSecond(1), t.perSecond(2), t.now),
		newWavePin("SIG5HZ", t.perSecond(5), t.perSecond(10), t.now),
	)
	h.gpio = bank
	return h
}

func (h *Host) Logger() Logger        { return h.logger }
func (h *Host) Mask() CriticalSection { return h.mask }
func (h *Host) Memory() Memory        { return h.mem }
func (h *Host) Time() Time            { return h.t }
func (h *Host) ADC() ADC              { return h.adc }
func (h *Host) GPIO() GPIO            { return h.gpio }

func (h *Host) Serial(n int) Serial {
	if n < 0 || n >= len(h.uarts) {
		return nil
	}
	return h.uarts[n]
}

func (h *Host) I2C(bus int) drivers.I2C {
	if bus < 0 || bus >= len(h.i2c) {
		return nil
	}
	return h.i2c[bus]
}

func (h *Host) SPI(bus int) drivers.SPI {
	if bus < 0 || bus >= len(h.spi) {
		return nil
	}
	return h.spi[bus]
}

// UART returns the concrete loopback UART n, for wiring host input.
func (h *Host) UART(n int) *LoopbackSerial {
	if n < 0 || n >= len(h.uarts) {
		return nil
	}
	return h.uarts[n]
}

// Bus returns the concrete virtual I2C bus, for attaching targets.
func (h *Host) Bus(n int) *VirtualI2C {
	if n < 0 || n >= len(h.i2c) {
		return nil
	}
	return h.i2c[n]
}

// Pin returns the concrete virtual pin n, for driving input levels.
func (h *Host) Pin(n int) *VirtualPin {
	if n < 0 || n >= len(h.pins) {
		return nil
	}
	return h.pins[n]
}

// Step advances the host tick source by n ticks.
func (h *Host) Step(n uint64) { h.t.stepN(n) }

// DroppedTicks reports ticks lost because nobody was reading them.
func (h *Host) DroppedTicks() uint64 { return h.t.dropped.Load() }

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}

// hostMask stands in for the interrupt mask: goroutines play the part of
// interrupt handlers, so masking is mutual exclusion.
type hostMask struct {
	mu sync.Mutex
}

func (m *hostMask) Lock()   { m.mu.Lock() }
func (m *hostMask) Unlock() { m.mu.Unlock() }
