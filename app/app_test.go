package app

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/ember/device"
	"ember/ember/errno"
	"ember/ember/event"
	"ember/hal"
)

func boot(t *testing.T, cfg Config) (*System, *hal.Host, *bytes.Buffer) {
	t.Helper()
	var log bytes.Buffer
	h := hal.NewHost(hal.HostConfig{Log: &log})
	s, err := New(h, cfg)
	require.NoError(t, err)
	return s, h, &log
}

func TestBootOpensDevices(t *testing.T) {
	s, h, log := boot(t, Config{Devices: []string{
		"uart 0 baud=9600 parity=even",
		"gpio 2 mode=output 'level=1'",
	}})

	require.Len(t, s.Devices(), 2)
	for _, d := range s.Devices() {
		assert.Equal(t, device.Enabled, d.State())
	}
	v, _ := h.Pin(2).Read()
	assert.True(t, v)
	assert.Contains(t, log.String(), "boot: ready")
	assert.Contains(t, log.String(), "app: uart0 enabled")

	drivers := s.Kernel().Devices().Drivers()
	assert.Equal(t, []string{"adc", "gpio", "i2c", "spi", "uart"}, drivers)
}

func TestBootStopsAtBadLine(t *testing.T) {
	var log bytes.Buffer
	h := hal.NewHost(hal.HostConfig{Log: &log})
	_, err := New(h, Config{Devices: []string{"uart x"}})
	assert.ErrorIs(t, err, errno.EINVAL)
	assert.Contains(t, err.Error(), "boot: open uart x")

	_, err = New(hal.NewHost(hal.HostConfig{Log: &log}), Config{Devices: []string{"lcd 0"}})
	assert.ErrorIs(t, err, errno.ENAME)
}

func TestOpenReleasesOnFailure(t *testing.T) {
	s, _, _ := boot(t, Config{})
	_, err := s.Open("uart 1 nope=1")
	require.Error(t, err)
	_, err = s.Open("uart 1 stop=9")
	require.Error(t, err, "rejected by setup")

	d, err := s.Open("uart 1")
	require.NoError(t, err)
	assert.Equal(t, "uart1", d.String())
}

func TestEcho(t *testing.T) {
	s, h, _ := boot(t, Config{Devices: []string{"uart 0"}, Echo: true})
	k := s.Kernel()

	h.UART(0).Inject([]byte("ping"))
	for i := 0; i < 8; i++ {
		k.Tick()
		k.Step()
	}
	assert.Equal(t, "ping", string(h.UART(0).Drain()))
}

func TestPanicIsLogged(t *testing.T) {
	s, _, log := boot(t, Config{})
	k := s.Kernel()
	k.OnUser(func(event.Event) { panic("bad handler") })
	k.Post(event.CodeNone, 0)
	k.Step()

	require.True(t, k.Panicked())
	assert.Contains(t, log.String(), "ember panic: tick=0 event=user/none which=0 panic=bad handler")
}
