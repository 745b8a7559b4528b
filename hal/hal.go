package hal

import (
	"errors"

	"tinygo.org/x/drivers"
)

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

var (
	ErrNotImplemented = errors.New("not implemented")
	ErrNoMemory       = errors.New("hal: out of raw memory")
	ErrNoDevice       = errors.New("hal: no device")
)

// CriticalSection masks the interrupt class that may post runtime events.
//
// Lock masks, Unlock restores. Sections never nest.
type CriticalSection interface {
	Lock()
	Unlock()
}

// Memory is the raw memory the allocator builds its zones from.
type Memory interface {
	// Size reports the free memory not yet handed out by Alloc.
	Size() int
	// Alloc carves size bytes aligned to align out of free memory.
	Alloc(size, align int) ([]byte, error)
}

// Time provides a base tick stream.
//
// The tick duration is platform-defined; higher-level timers live in the runtime.
type Time interface {
	Ticks() <-chan uint64
}

// Serial is a byte-oriented UART peripheral.
//
// Read and Write never block: they move what the hardware FIFOs allow and
// return the count.
type Serial interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	// Buffered reports bytes waiting in the receive FIFO.
	Buffered() int
	// TxFree reports room left in the transmit FIFO.
	TxFree() int
}

// ADC is a set of analog input channels with a start/poll conversion cycle.
type ADC interface {
	Channels() int
	Start(ch int) error
	Ready(ch int) bool
	Value(ch int) (uint16, error)
}

// HAL provides the only contact point between the runtime and the outside world.
type HAL interface {
	Logger() Logger
	Mask() CriticalSection
	Memory() Memory
	Time() Time
	Serial(n int) Serial
	I2C(bus int) drivers.I2C
	SPI(bus int) drivers.SPI
	ADC() ADC
	GPIO() GPIO
}
