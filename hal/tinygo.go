//go:build tinygo && baremetal

package hal

import (
	"machine"

	"tinygo.org/x/drivers"
)

// arenaBytes is the static region handed to the allocator.
const arenaBytes = 96 << 10

var arena [arenaBytes]byte

type board struct {
	logger *uartLogger
	mask   *irqMask
	mem    Memory
	t      *tinyGoTime
	serial []Serial
	i2c    []drivers.I2C
	spi    []drivers.SPI
	adc    ADC
	gpio   GPIO
}

// New returns an RP2040/RP2350 HAL implementation.
//
// UART0 on GP0 (TX) / GP1 (RX), 115200 8N1, carries the log.
// UART1 on GP4 / GP5 is serial port 0 for the runtime.
// I2C0 on GP8 (SDA) / GP9 (SCL), SPI0 on GP18-GP19 / GP16.
// ADC channels 0-2 on GP26-GP28. GP10-GP15 are general-purpose pins.
func New() HAL {
	log := machine.UART0
	log.Configure(machine.UARTConfig{BaudRate: 115200, TX: machine.GP0, RX: machine.GP1})

	port := machine.UART1
	port.Configure(machine.UARTConfig{BaudRate: 115200, TX: machine.GP4, RX: machine.GP5})

	machine.I2C0.Configure(machine.I2CConfig{Frequency: 400 * machine.KHz, SDA: machine.GP8, SCL: machine.GP9})
	machine.SPI0.Configure(machine.SPIConfig{Frequency: 1 * machine.MHz, SCK: machine.GP18, SDO: machine.GP19, SDI: machine.GP16})

	var pins pinBank
	for _, p := range []machine.Pin{machine.GP10, machine.GP11, machine.GP12, machine.GP13, machine.GP14, machine.GP15} {
		pins = append(pins, &boardPin{pin: p})
	}

	return &board{
		logger: &uartLogger{uart: log},
		mask:   &irqMask{},
		mem:    newRegionMemory(arena[:]),
		t:      newTinyGoTime(),
		serial: []Serial{&uartSerial{uart: port}},
		i2c:    []drivers.I2C{machine.I2C0},
		spi:    []drivers.SPI{machine.SPI0},
		adc:    newBoardADC(machine.ADC0, machine.ADC1, machine.ADC2),
		gpio:   pins,
	}
}

func (b *board) Logger() Logger        { return b.logger }
func (b *board) Mask() CriticalSection { return b.mask }
func (b *board) Memory() Memory        { return b.mem }
func (b *board) Time() Time            { return b.t }
func (b *board) ADC() ADC              { return b.adc }
func (b *board) GPIO() GPIO            { return b.gpio }

func (b *board) Serial(n int) Serial {
	if n < 0 || n >= len(b.serial) {
		return nil
	}
	return b.serial[n]
}

func (b *board) I2C(bus int) drivers.I2C {
	if bus < 0 || bus >= len(b.i2c) {
		return nil
	}
	return b.i2c[bus]
}

func (b *board) SPI(bus int) drivers.SPI {
	if bus < 0 || bus >= len(b.spi) {
		return nil
	}
	return b.spi[bus]
}
