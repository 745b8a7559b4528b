package kernel

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/ember/alloc"
	"ember/ember/drivers/uart"
	"ember/ember/errno"
	"ember/ember/event"
	"ember/ember/object"
	"ember/ember/stream"
	"ember/ember/timer"
	"ember/hal"
)

func newKernel(t *testing.T, cfg Config) (*Kernel, *hal.Host) {
	t.Helper()
	h := hal.NewHost(hal.HostConfig{MemoryBytes: 64 << 10, Log: io.Discard})
	k, err := New(h, cfg)
	require.NoError(t, err)
	return k, h
}

func ticks(k *Kernel, n int) {
	for i := 0; i < n; i++ {
		k.Tick()
		k.Step()
	}
}

func TestNewClaimsMemory(t *testing.T) {
	k, _ := newKernel(t, Config{})
	assert.Equal(t, 1, k.Heap().Zones())
	assert.Equal(t, 64, k.Heap().TotalPages())

	k, h := newKernel(t, Config{HeapBytes: 16 << 10})
	assert.Equal(t, 16, k.Heap().TotalPages())
	assert.Equal(t, 48<<10, h.Memory().Size())
}

func TestNewWithoutMemory(t *testing.T) {
	h := hal.NewHost(hal.HostConfig{Log: io.Discard})
	_, err := New(h, Config{HeapBytes: alloc.PageSize / 2})
	assert.ErrorIs(t, err, errno.ENOMEM)
}

func TestTicksDriveTimers(t *testing.T) {
	k, _ := newKernel(t, Config{})
	var fired []uint64
	_, err := k.Timers().Register(5, true, func(m timer.Mode, _ any) {
		if m == timer.Fire {
			fired = append(fired, k.Now())
		}
	}, nil)
	require.NoError(t, err)

	ticks(k, 12)
	assert.Equal(t, []uint64{5, 10}, fired)
	assert.Equal(t, uint64(12), k.Now())
	assert.Equal(t, uint64(12), k.Ticks())
}

func TestBatchedTicksAdvanceClock(t *testing.T) {
	k, _ := newKernel(t, Config{})
	for i := 0; i < 7; i++ {
		k.Tick()
	}
	assert.Equal(t, 7, k.Step())
	assert.Equal(t, uint64(7), k.Now())
}

func TestTimerObjectRewinds(t *testing.T) {
	k, _ := newKernel(t, Config{})
	var at []uint64
	o, err := k.Timer().Start(4, func(o *object.Object, code event.Code, _ any) int {
		at = append(at, k.Now())
		if len(at) == 2 {
			return timer.Stop
		}
		return 0
	}, nil)
	require.NoError(t, err)

	ticks(k, 20)
	assert.Equal(t, []uint64{4, 8}, at)
	assert.False(t, k.Timer().Running(o))
}

func TestUserEvents(t *testing.T) {
	k, _ := newKernel(t, Config{})
	var got []event.Event
	k.OnUser(func(ev event.Event) { got = append(got, ev) })

	require.True(t, k.Post(event.CodeReady, 7))
	assert.Equal(t, 1, k.Step())
	assert.Equal(t, []event.Event{{Type: event.TypeUser, Code: event.CodeReady, Which: 7}}, got)
}

func TestSystickKeepsReservedSlots(t *testing.T) {
	k, _ := newKernel(t, Config{Queue: event.Config{Size: 8, Reserve: 2}})
	for i := 0; i < 8; i++ {
		k.Post(event.CodeNone, 0)
	}
	assert.True(t, k.Tick())
	assert.True(t, k.Tick())
	assert.False(t, k.Tick())

	s := k.Stats()
	assert.Equal(t, uint32(2), s.Dropped[event.TypeUser])
	assert.Equal(t, uint32(1), s.Dropped[event.TypeSystick])
	assert.Equal(t, uint64(3), s.Ticks)

	k.Step()
	assert.Equal(t, uint64(2), k.Now(), "dropped tick never reaches the clock")
}

func TestPanicStopsDispatch(t *testing.T) {
	k, _ := newKernel(t, Config{})
	var info PanicInfo
	k.OnPanic(func(p PanicInfo) { info = p })
	k.OnUser(func(ev event.Event) { panic("boom") })

	k.Tick()
	k.Post(event.CodeData, 3)
	k.Step()
	require.True(t, k.Panicked())
	assert.Equal(t, "boom", info.Value)
	assert.Equal(t, uint64(1), info.Tick)
	assert.Equal(t, event.TypeUser, info.Event.Type)
	assert.NotEmpty(t, info.Stack)

	k.Tick()
	assert.Zero(t, k.Step())
	err := k.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRunStopsAfter(t *testing.T) {
	k, h := newKernel(t, Config{StopAfter: 5})
	h.Step(5)
	require.NoError(t, k.Run(context.Background()))
	assert.Equal(t, uint64(5), k.Now())
}

func TestRunCanceled(t *testing.T) {
	k, _ := newKernel(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, k.Run(ctx), context.Canceled)
}

func TestUARTEchoThroughMainLoop(t *testing.T) {
	k, h := newKernel(t, Config{})
	_, err := uart.Register(k.Devices(), h, 2)
	require.NoError(t, err)
	d, err := k.Devices().Request(uart.Name, 0)
	require.NoError(t, err)
	require.NoError(t, d.Enable())
	require.NoError(t, d.Listen(stream.MaskData))

	var echoed int
	d.SetCallback(func(o *object.Object, code event.Code, _ any) int {
		if code != event.CodeData {
			return 0
		}
		buf := make([]byte, 64)
		n, _ := d.Read(buf)
		w, _ := d.Write(buf[:n])
		echoed += w
		return 0
	}, nil)

	msg := "0123456789abcdefghijklmnopqrstuvwxyz!?"
	h.UART(0).Inject([]byte(msg))
	for i := 0; i < 3; i++ {
		k.Tick()
		k.Step()
	}
	assert.Equal(t, len(msg), echoed)
	assert.Equal(t, msg, string(h.UART(0).Drain()))
}

func TestStarvedInputIsAnnounced(t *testing.T) {
	k, h := newKernel(t, Config{})
	_, err := uart.Register(k.Devices(), h, 2)
	require.NoError(t, err)
	d, err := k.Devices().Request(uart.Name, 1)
	require.NoError(t, err)
	require.NoError(t, d.Enable())
	require.NoError(t, d.Listen(stream.MaskData))

	var at []uint64
	d.SetCallback(func(o *object.Object, code event.Code, _ any) int {
		if code == event.CodeData {
			at = append(at, k.Now())
		}
		return 0
	}, nil)

	h.UART(1).Inject([]byte("hi"))
	ticks(k, 7)
	assert.Equal(t, []uint64{stream.DefaultStarveTicks}, at)
}
