// Package app boots the runtime on a HAL: it builds the kernel, registers
// the reference drivers and opens the devices named in the config.
package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"ember/ember/device"
	"ember/ember/drivers/adc"
	"ember/ember/drivers/gpio"
	"ember/ember/drivers/i2c"
	"ember/ember/drivers/spi"
	"ember/ember/drivers/uart"
	"ember/ember/errno"
	"ember/ember/event"
	"ember/ember/kernel"
	"ember/ember/object"
	"ember/ember/stream"
	"ember/hal"
	"ember/internal/buildinfo"
)

const maxPorts = 4

type Config struct {
	Kernel kernel.Config
	// Devices are opened in order at boot, one per line:
	// "driver instance key=value ...".
	Devices []string
	// Echo sends everything uart0 receives straight back.
	Echo bool
}

// System is a booted runtime.
type System struct {
	k       *kernel.Kernel
	log     hal.Logger
	devices []*device.Device
	step    string
}

// New boots a system on h.
func New(h hal.HAL, cfg Config) (*System, error) {
	s := &System{log: h.Logger()}

	s.logf("boot: %s", buildinfo.String())
	s.bootStep("kernel")
	k, err := kernel.New(h, cfg.Kernel)
	if err != nil {
		return nil, s.bootFail(err)
	}
	s.k = k
	installPanicHandler(k, s.log)

	s.bootStep("drivers")
	if err := registerDrivers(k.Devices(), h); err != nil {
		return nil, s.bootFail(err)
	}

	for _, line := range cfg.Devices {
		s.bootStep("open " + line)
		d, err := s.Open(line)
		if err != nil {
			return nil, s.bootFail(err)
		}
		if cfg.Echo && d.Driver() == uart.Name && d.Instance() == 0 {
			if err := echo(d); err != nil {
				return nil, s.bootFail(err)
			}
		}
	}
	s.bootStep("ready")
	return s, nil
}

func (s *System) Kernel() *kernel.Kernel { return s.k }

// Devices returns the devices opened so far, in order.
func (s *System) Devices() []*device.Device { return s.devices }

// Run runs the main loop until ctx ends.
func (s *System) Run(ctx context.Context) error { return s.k.Run(ctx) }

func (s *System) logf(format string, args ...any) {
	if s.log == nil {
		return
	}
	s.log.WriteLineString(fmt.Sprintf(format, args...))
}

func (s *System) bootStep(msg string) {
	s.step = msg
	s.logf("boot: %s", msg)
}

func (s *System) bootFail(err error) error {
	s.logf("boot: %s: %v", s.step, err)
	return fmt.Errorf("boot: %s: %w", s.step, err)
}

// registerDrivers adds every driver the platform has hardware for.
func registerDrivers(fw *device.Framework, h hal.HAL) error {
	if n := count(func(i int) bool { return h.Serial(i) != nil }); n > 0 {
		if _, err := uart.Register(fw, h, n); err != nil {
			return err
		}
	}
	if n := count(func(i int) bool { return h.I2C(i) != nil }); n > 0 {
		if _, err := i2c.Register(fw, h, n); err != nil {
			return err
		}
	}
	if n := count(func(i int) bool { return h.SPI(i) != nil }); n > 0 {
		if _, err := spi.Register(fw, h, n); err != nil {
			return err
		}
	}
	if a := h.ADC(); a != nil && a.Channels() > 0 {
		if _, err := adc.Register(fw, h, a.Channels()); err != nil {
			return err
		}
	}
	if g := h.GPIO(); g != nil && g.PinCount() > 0 {
		if _, err := gpio.Register(fw, h); err != nil {
			return err
		}
	}
	return nil
}

func count(present func(i int) bool) int {
	n := 0
	for n < maxPorts && present(n) {
		n++
	}
	return n
}

// Open requests, configures and enables a device from a line of the form
// "driver instance key=value ...". Values may be quoted.
func (s *System) Open(line string) (*device.Device, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("%q: %w: %w", line, err, errno.EINVAL)
	}
	if len(args) < 2 {
		return nil, fmt.Errorf("%q: want driver and instance: %w", line, errno.EINVAL)
	}
	inst, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, fmt.Errorf("%q: instance %q: %w", line, args[1], errno.EINVAL)
	}

	d, err := s.k.Devices().Request(args[0], inst)
	if err != nil {
		return nil, err
	}
	if err := configure(d, args[2:]); err != nil {
		d.Release()
		return nil, err
	}
	if err := d.Enable(); err != nil {
		d.Release()
		return nil, err
	}
	d.SetCallback(s.logEvent, nil)
	s.devices = append(s.devices, d)
	s.logf("app: %s enabled: %s", d, d.Config())
	return d, nil
}

func configure(d *device.Device, pairs []string) error {
	cfg := d.Config()
	for _, kv := range pairs {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("%s: %q: want key=value: %w", d, kv, errno.EINVAL)
		}
		if cfg == nil {
			return fmt.Errorf("%s: no config: %w", d, errno.EINVAL)
		}
		if err := cfg.Set(key, val); err != nil {
			return fmt.Errorf("%s: %w", d, err)
		}
	}
	return nil
}

// logEvent is the default device callback.
func (s *System) logEvent(o *object.Object, code event.Code, _ any) int {
	d := s.k.Devices().Lookup(o.ID())
	if d == nil {
		return 0
	}
	switch code {
	case event.CodeError:
		s.logf("app: %s: %v", d, d.Err())
	case event.CodeData:
		s.logf("app: %s: %d bytes waiting", d, d.Stream().Buffered())
	default:
		s.logf("app: %s: %s", d, code)
	}
	return 0
}

func echo(d *device.Device) error {
	if err := d.Listen(stream.MaskData); err != nil {
		return err
	}
	buf := make([]byte, 64)
	d.SetCallback(func(o *object.Object, code event.Code, _ any) int {
		if code != event.CodeData {
			return 0
		}
		for {
			n, _ := d.Read(buf)
			if n == 0 {
				return 0
			}
			w, _ := d.Write(buf[:n])
			// Unsent bytes go back to the front of the receive ring and
			// wait for the next DATA.
			for i := n - 1; i >= w; i-- {
				if !d.Unshift(buf[i]) {
					break
				}
			}
			if w < n {
				return 0
			}
		}
	}, nil)
	return nil
}
