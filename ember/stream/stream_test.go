package stream

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/ember/alloc"
	"ember/ember/errno"
	"ember/ember/event"
)

type harness struct {
	heap   *alloc.Heap
	now    uint64
	events []event.Code
	armed  int
	direct []byte
	accept int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{heap: alloc.New()}
	require.NoError(t, h.heap.AddZone(make([]byte, 8*alloc.PageSize)))
	return h
}

func (h *harness) stream(t *testing.T, rx, tx int) *Stream {
	t.Helper()
	s, err := New(h.heap, Config{
		RxSize: rx,
		TxSize: tx,
		Read:   func(p []byte) (int, error) { return 0, nil },
		Write: func(p []byte) (int, error) {
			if p == nil {
				h.armed++
				return 0, nil
			}
			n := min(h.accept, len(p))
			h.direct = append(h.direct, p[:n]...)
			return n, nil
		},
		Clock: func() uint64 { return h.now },
	}, func(c event.Code) { h.events = append(h.events, c) })
	require.NoError(t, err)
	return s
}

func (h *harness) count(c event.Code) int {
	n := 0
	for _, e := range h.events {
		if e == c {
			n++
		}
	}
	return n
}

func TestFlagsRequireSizeAndCallback(t *testing.T) {
	h := newHarness(t)
	raw := func(p []byte) (int, error) { return 0, nil }

	_, err := New(h.heap, Config{RxSize: 16}, nil)
	require.ErrorIs(t, err, errno.EINVAL)

	s, err := New(h.heap, Config{RxSize: 16, Read: raw, Write: raw}, nil)
	require.NoError(t, err)
	assert.Equal(t, Readable, s.Flags())

	_, err = s.Write([]byte("x"))
	assert.ErrorIs(t, err, errno.EIMPLEMENT)
	assert.Zero(t, s.Pull(make([]byte, 4)))
}

func TestRingsAllocatedLazily(t *testing.T) {
	h := newHarness(t)
	before := h.heap.FreePages()
	s := h.stream(t, 64, 64)
	assert.Equal(t, before, h.heap.FreePages())
	assert.Zero(t, h.heap.LiveBlocks())

	s.Push([]byte("a"))
	assert.Equal(t, 1, h.heap.LiveBlocks())

	s.Close()
	assert.Zero(t, h.heap.LiveBlocks())
	assert.Equal(t, before, h.heap.FreePages())
}

func TestWatermarkFiresOncePerFill(t *testing.T) {
	h := newHarness(t)
	s := h.stream(t, 32, 0)
	s.Listen(MaskData)
	assert.Equal(t, Flowing, s.State())

	s.Push(bytes.Repeat([]byte{1}, 16))
	assert.Zero(t, h.count(event.CodeData), "exactly half full must not fire")

	s.Push([]byte{2})
	assert.Equal(t, 1, h.count(event.CodeData))

	s.Push(bytes.Repeat([]byte{3}, 8))
	assert.Equal(t, 1, h.count(event.CodeData), "no second DATA before drain")

	buf := make([]byte, 64)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	s.Push(bytes.Repeat([]byte{4}, 17))
	assert.Equal(t, 2, h.count(event.CodeData), "drain re-arms the watermark")
}

func TestWatermarkNeedsSubscription(t *testing.T) {
	h := newHarness(t)
	s := h.stream(t, 32, 0)

	s.Push(bytes.Repeat([]byte{1}, 20))
	assert.Empty(t, h.events)

	s.Listen(MaskData)
	assert.Equal(t, 1, h.count(event.CodeData), "subscribing above the watermark fires")
}

func TestStarvationGuard(t *testing.T) {
	h := newHarness(t)
	s := h.stream(t, 32, 0)
	s.Listen(MaskData)

	h.now = 10
	s.Push([]byte("abc"))
	for tick := uint64(11); tick < 10+DefaultStarveTicks; tick++ {
		s.Sync(tick)
	}
	assert.Zero(t, h.count(event.CodeData))

	s.Sync(10 + DefaultStarveTicks)
	assert.Equal(t, 1, h.count(event.CodeData))

	s.Sync(11 + DefaultStarveTicks)
	assert.Equal(t, 1, h.count(event.CodeData), "guard restarts its wait after firing")

	buf := make([]byte, 8)
	s.Read(buf)
	s.Sync(100)
	assert.Equal(t, 1, h.count(event.CodeData), "nothing to announce once read")
}

func TestPausedStreamStaysQuiet(t *testing.T) {
	h := newHarness(t)
	s := h.stream(t, 32, 0)
	s.Listen(MaskData)
	s.Pause()

	s.Push(bytes.Repeat([]byte{1}, 30))
	s.Sync(100)
	assert.Empty(t, h.events)
	assert.Equal(t, Paused, s.State())

	s.Resume()
	assert.Equal(t, Flowing, s.State())
	assert.Equal(t, 1, h.count(event.CodeData))

	s.Ignore(MaskData)
	assert.Equal(t, Idle, s.State())
}

func TestPushOverflow(t *testing.T) {
	h := newHarness(t)
	s := h.stream(t, 16, 0)

	assert.Equal(t, 16, s.Push(bytes.Repeat([]byte{7}, 20)))
	assert.Equal(t, uint32(4), s.Overflows())
	assert.Equal(t, 16, s.Buffered())
	assert.False(t, s.Unshift(1))
}

func TestUnshift(t *testing.T) {
	h := newHarness(t)
	s := h.stream(t, 16, 0)

	s.Push([]byte("bc"))
	require.True(t, s.Unshift('a'))
	buf := make([]byte, 3)
	n, _ := s.Read(buf)
	assert.Equal(t, "abc", string(buf[:n]))
}

func TestWriteBuffersAndDrains(t *testing.T) {
	h := newHarness(t)
	s := h.stream(t, 0, 16)
	s.Listen(MaskDrain)

	n, err := s.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, s.Pending())
	assert.Equal(t, 1, h.armed)

	buf := make([]byte, 3)
	assert.Equal(t, 3, s.Pull(buf))
	assert.Zero(t, h.count(event.CodeDrain))
	assert.Equal(t, 2, s.Pull(buf))
	assert.Equal(t, 1, h.count(event.CodeDrain))
	assert.Zero(t, s.Pull(buf))
	assert.Equal(t, 1, h.count(event.CodeDrain), "drain fires once per emptying")
}

func TestWriteGoesDirectWhenIdle(t *testing.T) {
	h := newHarness(t)
	s := h.stream(t, 0, 8)
	h.accept = 3

	n, err := s.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "abc", string(h.direct))
	assert.Equal(t, 3, s.Pending())

	// Bytes are queued, so later writes must not overtake them.
	n, _ = s.Write([]byte("ghijklm"))
	assert.Equal(t, 5, n)
	assert.Equal(t, "abc", string(h.direct))

	buf := make([]byte, 16)
	k := s.Pull(buf)
	assert.Equal(t, "defghijk", string(buf[:k]))
}

func TestRingWrapAround(t *testing.T) {
	h := newHarness(t)
	s := h.stream(t, 32, 0)

	var want, got []byte
	buf := make([]byte, 5)
	for i := 0; i < 40; i++ {
		chunk := []byte{byte(3 * i), byte(3*i + 1), byte(3*i + 2)}
		require.Equal(t, 3, s.Push(chunk))
		want = append(want, chunk...)
		if i%2 == 1 {
			n, _ := s.Read(buf)
			got = append(got, buf[:n]...)
		}
	}
	for s.Buffered() > 0 {
		n, _ := s.Read(buf)
		got = append(got, buf[:n]...)
	}
	assert.Equal(t, want, got)
}

func TestRxAllocationFailure(t *testing.T) {
	h := newHarness(t)
	for h.heap.Alloc(alloc.PageSize) != alloc.Nil {
	}
	for h.heap.Alloc(16) != alloc.Nil {
	}
	s := h.stream(t, 32, 0)
	s.Listen(MaskError)

	assert.Zero(t, s.Push([]byte("x")))
	assert.ErrorIs(t, s.Err(), errno.ENOMEM)
	assert.Equal(t, 1, h.count(event.CodeError))
}
