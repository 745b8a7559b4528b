package hal

import "fmt"

// GPIOMode selects whether a pin is an input or output.
type GPIOMode uint8

const (
	GPIOModeInput GPIOMode = iota
	GPIOModeOutput
)

// GPIOPull selects the pull resistor configuration.
type GPIOPull uint8

const (
	GPIOPullNone GPIOPull = iota
	GPIOPullUp
	GPIOPullDown
)

// GPIOCaps declares what operations a pin supports.
type GPIOCaps uint8

const (
	GPIOCapInput GPIOCaps = 1 << iota
	GPIOCapOutput
	GPIOCapPullUp
	GPIOCapPullDown
	GPIOCapInterrupt
)

// GPIOCapAll is a fully featured pin.
const GPIOCapAll = GPIOCapInput | GPIOCapOutput | GPIOCapPullUp | GPIOCapPullDown | GPIOCapInterrupt

// GPIOEdge selects which level transitions raise a pin interrupt.
type GPIOEdge uint8

const (
	GPIOEdgeNone    GPIOEdge = 0
	GPIOEdgeRising  GPIOEdge = 1 << 0
	GPIOEdgeFalling GPIOEdge = 1 << 1
	GPIOEdgeBoth             = GPIOEdgeRising | GPIOEdgeFalling
)

// Fires reports whether a change from old to level is an edge e selects.
func (e GPIOEdge) Fires(old, level bool) bool {
	switch {
	case old == level:
		return false
	case level:
		return e&GPIOEdgeRising != 0
	default:
		return e&GPIOEdgeFalling != 0
	}
}

// GPIO provides access to general-purpose IO pins.
type GPIO interface {
	PinCount() int
	// Pin returns nil for ids outside [0, PinCount).
	Pin(id int) GPIOPin
}

// GPIOPin is a single digital IO pin.
type GPIOPin interface {
	Name() string
	Caps() GPIOCaps
	Configure(mode GPIOMode, pull GPIOPull) error
	Read() (level bool, err error)
	Write(level bool) error
	// SetInterrupt installs fn as the edge handler. fn runs in interrupt
	// context; passing GPIOEdgeNone or a nil fn disarms the pin.
	SetInterrupt(edge GPIOEdge, fn func(level bool)) error
}

// pinBank is a fixed set of pins numbered from zero. A nil bank has none.
type pinBank []GPIOPin

func (b pinBank) PinCount() int { return len(b) }

func (b pinBank) Pin(id int) GPIOPin {
	if id < 0 || id >= len(b) {
		return nil
	}
	return b[id]
}

var (
	modeCaps = [...]GPIOCaps{GPIOModeInput: GPIOCapInput, GPIOModeOutput: GPIOCapOutput}
	pullCaps = [...]GPIOCaps{GPIOPullNone: 0, GPIOPullUp: GPIOCapPullUp, GPIOPullDown: GPIOCapPullDown}
)

// checkPinConfig validates mode and pull against what a pin can do.
func checkPinConfig(name string, caps GPIOCaps, mode GPIOMode, pull GPIOPull) error {
	if int(mode) >= len(modeCaps) {
		return fmt.Errorf("gpio: pin %s: invalid mode %d", name, mode)
	}
	if int(pull) >= len(pullCaps) {
		return fmt.Errorf("gpio: pin %s: invalid pull %d", name, pull)
	}
	if caps&modeCaps[mode] != modeCaps[mode] {
		return fmt.Errorf("gpio: pin %s: mode %d unsupported", name, mode)
	}
	if caps&pullCaps[pull] != pullCaps[pull] {
		return fmt.Errorf("gpio: pin %s: pull %d unsupported", name, pull)
	}
	return nil
}
