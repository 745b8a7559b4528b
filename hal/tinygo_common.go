//go:build tinygo && baremetal

package hal

import (
	"fmt"
	"machine"
	"runtime/interrupt"
	"time"
)

type tinyGoTime struct {
	ch  chan uint64
	seq uint64
}

func newTinyGoTime() *tinyGoTime {
	t := &tinyGoTime{ch: make(chan uint64, 16)}
	go func() {
		ticker := time.NewTicker(1 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			t.seq++
			select {
			case t.ch <- t.seq:
			default:
			}
		}
	}()
	return t
}

func (t *tinyGoTime) Ticks() <-chan uint64 { return t.ch }

type uartLogger struct {
	uart *machine.UART
}

func (l *uartLogger) WriteLineString(s string) {
	for i := 0; i < len(s); i++ {
		l.uart.WriteByte(s[i])
	}
	l.uart.WriteByte('\r')
	l.uart.WriteByte('\n')
}

func (l *uartLogger) WriteLineBytes(b []byte) {
	for i := 0; i < len(b); i++ {
		l.uart.WriteByte(b[i])
	}
	l.uart.WriteByte('\r')
	l.uart.WriteByte('\n')
}

// irqMask disables every interrupt while held.
type irqMask struct {
	state interrupt.State
}

func (m *irqMask) Lock()   { m.state = interrupt.Disable() }
func (m *irqMask) Unlock() { interrupt.Restore(m.state) }

// uartFIFO is the depth of the RP2 UART transmit FIFO.
const uartFIFO = 32

type uartSerial struct {
	uart *machine.UART
}

func (s *uartSerial) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && s.uart.Buffered() > 0 {
		b, err := s.uart.ReadByte()
		if err != nil {
			return n, err
		}
		p[n] = b
		n++
	}
	return n, nil
}

// Write hands at most one FIFO's worth to the UART per call so callers on
// the main loop are not held up by a slow line.
func (s *uartSerial) Write(p []byte) (int, error) {
	if len(p) > uartFIFO {
		p = p[:uartFIFO]
	}
	return s.uart.Write(p)
}

func (s *uartSerial) Buffered() int { return s.uart.Buffered() }
func (s *uartSerial) TxFree() int   { return uartFIFO }

// boardADC converts synchronously; Start takes the sample and Ready is
// immediately true.
type boardADC struct {
	ch   []machine.ADC
	last []uint16
}

func newBoardADC(pins ...machine.Pin) *boardADC {
	machine.InitADC()
	a := &boardADC{last: make([]uint16, len(pins))}
	for _, p := range pins {
		c := machine.ADC{Pin: p}
		c.Configure(machine.ADCConfig{})
		a.ch = append(a.ch, c)
	}
	return a
}

func (a *boardADC) Channels() int { return len(a.ch) }

func (a *boardADC) Start(ch int) error {
	if ch < 0 || ch >= len(a.ch) {
		return fmt.Errorf("adc: channel %d out of range", ch)
	}
	// Get returns a 16-bit scaled reading of the 12-bit converter.
	a.last[ch] = a.ch[ch].Get() >> 4
	return nil
}

func (a *boardADC) Ready(ch int) bool { return ch >= 0 && ch < len(a.ch) }

func (a *boardADC) Value(ch int) (uint16, error) {
	if ch < 0 || ch >= len(a.ch) {
		return 0, fmt.Errorf("adc: channel %d out of range", ch)
	}
	return a.last[ch], nil
}

type boardPin struct {
	pin machine.Pin
}

func (p *boardPin) Name() string { return fmt.Sprintf("GP%d", p.pin) }

func (p *boardPin) Caps() GPIOCaps { return GPIOCapAll }

func (p *boardPin) Configure(mode GPIOMode, pull GPIOPull) error {
	var m machine.PinMode
	switch {
	case mode == GPIOModeOutput:
		m = machine.PinOutput
	case pull == GPIOPullUp:
		m = machine.PinInputPullup
	case pull == GPIOPullDown:
		m = machine.PinInputPulldown
	default:
		m = machine.PinInput
	}
	p.pin.Configure(machine.PinConfig{Mode: m})
	return nil
}

func (p *boardPin) Read() (bool, error) { return p.pin.Get(), nil }

func (p *boardPin) Write(level bool) error {
	p.pin.Set(level)
	return nil
}

func (p *boardPin) SetInterrupt(edge GPIOEdge, fn func(level bool)) error {
	if edge == GPIOEdgeNone || fn == nil {
		return p.pin.SetInterrupt(0, nil)
	}
	var change machine.PinChange
	if edge&GPIOEdgeRising != 0 {
		change |= machine.PinRising
	}
	if edge&GPIOEdgeFalling != 0 {
		change |= machine.PinFalling
	}
	return p.pin.SetInterrupt(change, func(pin machine.Pin) { fn(pin.Get()) })
}
