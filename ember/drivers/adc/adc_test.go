package adc

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/ember/device"
	"ember/ember/device/devicetest"
	"ember/ember/errno"
	"ember/ember/event"
	"ember/hal"
)

type fixture struct {
	host    *hal.Host
	rig     *devicetest.Rig
	dev     *device.Device
	samples []uint16
}

func open(t *testing.T, config string) *fixture {
	t.Helper()
	f := &fixture{host: hal.NewHost(hal.HostConfig{ADCChannels: 4, ADCPolls: 3, Log: io.Discard})}
	f.rig = devicetest.New(t)
	f.dev = f.rig.Open(t, Name, 2, New(f.host, 2), 0, config)
	f.rig.Watch(f.dev, func(c event.Code) {
		if c == event.CodeResponse && len(f.dev.Response()) == 2 {
			f.samples = append(f.samples, binary.LittleEndian.Uint16(f.dev.Response()))
		}
	})
	return f
}

func (f *fixture) adc() *hal.VirtualADC { return f.host.ADC().(*hal.VirtualADC) }

func TestConversionTakesPolls(t *testing.T) {
	f := open(t, "channel=2")
	f.adc().SetInput(2, 0x7ff)

	require.NoError(t, f.dev.Query(nil, 2))
	f.rig.Step()
	f.rig.Step()
	assert.Empty(t, f.samples)
	assert.Equal(t, device.Busy, f.dev.State())

	f.rig.Step()
	assert.Equal(t, []uint16{0x7ff}, f.samples)
	assert.Equal(t, device.Enabled, f.dev.State())

	v, err := f.dev.Get(2)
	require.NoError(t, err)
	assert.Equal(t, int64(0x7ff), v)
}

func TestRequestByteSelectsChannel(t *testing.T) {
	f := open(t, "channel=0")
	f.adc().SetInput(3, 100)

	f.adc().SetInput(0, 11)

	require.NoError(t, f.dev.Query([]byte{3}, 2))
	for i := 0; i < 3; i++ {
		f.rig.Step()
	}
	assert.Equal(t, []uint16{100}, f.samples)

	require.NoError(t, f.dev.Query(nil, 2))
	for i := 0; i < 3; i++ {
		f.rig.Step()
	}
	assert.Equal(t, []uint16{100, 11}, f.samples, "the override lasts one conversion")
}

func TestConversionTimeout(t *testing.T) {
	f := open(t, "timeout=2")
	require.NoError(t, f.dev.Query(nil, 2))
	f.rig.Step()
	assert.Equal(t, device.Busy, f.dev.State())

	f.rig.Step()
	assert.Equal(t, []event.Code{event.CodeError, event.CodeResponse}, f.rig.Seen, "three polls are needed, two allowed")
	assert.ErrorIs(t, f.dev.Err(), errno.ETIMEOUT)
	assert.Equal(t, device.Enabled, f.dev.State())
}

func TestConversionFault(t *testing.T) {
	f := open(t, "channel=1")
	f.adc().SetFault(1, true)

	require.NoError(t, f.dev.Query(nil, 2))
	for i := 0; i < 3; i++ {
		f.rig.Step()
	}
	assert.Equal(t, []event.Code{event.CodeError, event.CodeResponse}, f.rig.Seen)
	assert.ErrorIs(t, f.dev.Err(), errno.EHARDWARE)
	assert.Empty(t, f.samples)
}

func TestQueryValidation(t *testing.T) {
	f := open(t, "")
	assert.ErrorIs(t, f.dev.Query(nil, 1), errno.EINVAL)
	assert.ErrorIs(t, f.dev.Query([]byte{9}, 2), errno.EINVAL)
	assert.Equal(t, device.Enabled, f.dev.State())
}
