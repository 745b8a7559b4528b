package alloc

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassFor(t *testing.T) {
	cases := []struct{ size, want int }{
		{1, 16}, {16, 16}, {17, 32}, {33, 64}, {100, 128}, {129, 256}, {256, 256},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, classSizes[classFor(c.size)], "size %d", c.size)
	}
}

func TestBlockCacheAccounting(t *testing.T) {
	h := newTestHeap(t, 32*PageSize)
	before := h.FreePages()
	rng := rand.New(rand.NewSource(7))

	for _, size := range []int{1, 16, 24, 64, 100, 200, 256} {
		ptrs := make([]Ptr, 100)
		for i := range ptrs {
			ptrs[i] = h.Alloc(size)
			require.NotEqual(t, Nil, ptrs[i], "size %d alloc %d", size, i)
		}
		assert.Less(t, h.FreePages(), before)

		rng.Shuffle(len(ptrs), func(i, j int) { ptrs[i], ptrs[j] = ptrs[j], ptrs[i] })
		for _, p := range ptrs {
			h.Free(p)
		}
		require.Equal(t, before, h.FreePages(), "size %d leaked pages", size)
		require.Zero(t, h.LiveBlocks())
	}
	assert.Zero(t, h.Stats().BadFrees)
}

func TestBlocksShareAPage(t *testing.T) {
	h := newTestHeap(t, 4*PageSize)

	a := h.Alloc(32)
	b := h.Alloc(32)
	require.NotEqual(t, a, b)
	assert.Equal(t, 3, h.FreePages())
	assert.Equal(t, a.offset()>>PageShift, b.offset()>>PageShift)
	assert.Equal(t, 32, h.Cap(a))

	copy(h.Bytes(a, 32), "hello")
	assert.Equal(t, "hello", string(h.Bytes(a, 5)))
	assert.Zero(t, h.Bytes(b, 1)[0])

	h.Free(a)
	assert.Equal(t, 3, h.FreePages())
	h.Free(b)
	assert.Equal(t, 4, h.FreePages())
}

func TestFullPageReturnsToPartialList(t *testing.T) {
	h := newTestHeap(t, 2*PageSize)

	per := PageSize / 256
	ptrs := make([]Ptr, per)
	for i := range ptrs {
		ptrs[i] = h.Alloc(256)
	}
	assert.Equal(t, 1, h.FreePages())

	h.Free(ptrs[2])
	again := h.Alloc(200)
	assert.Equal(t, ptrs[2], again)
	assert.Equal(t, 1, h.FreePages())
}

func TestBlockDoubleFree(t *testing.T) {
	h := newTestHeap(t, 2*PageSize)

	a := h.Alloc(16)
	b := h.Alloc(16)
	h.Free(a)
	h.Free(a)
	h.Free(b + 3)
	assert.Equal(t, uint32(2), h.Stats().BadFrees)

	h.Free(b)
	assert.Equal(t, 2, h.FreePages())
}

func TestCorruptFreeListDetected(t *testing.T) {
	h := newTestHeap(t, 4*PageSize)

	a := h.Alloc(64)
	b := h.Alloc(64)
	h.Free(b)
	// Scribble over the freed block's link, as a dangling write would.
	raw := h.zones[0].mem[b.offset() : b.offset()+4]
	raw[0], raw[1] = 0xff, 0x01

	c := h.Alloc(64)
	require.NotEqual(t, Nil, c)
	assert.Equal(t, uint32(1), h.Stats().Corrupt)
	assert.NotEqual(t, a.offset()>>PageShift, c.offset()>>PageShift, "corrupt page must not be reused")
}

func TestPoisonedPageIsNotRelinked(t *testing.T) {
	h := newTestHeap(t, 4*PageSize)

	a := h.Alloc(64)
	b := h.Alloc(64)
	x := h.Alloc(64)
	bad := a.offset() >> PageShift
	require.Equal(t, bad, x.offset()>>PageShift)
	h.Free(x)
	raw := h.zones[0].mem[x.offset() : x.offset()+4]
	raw[0], raw[1] = 0xff, 0x01

	c := h.Alloc(64)
	require.NotEqual(t, Nil, c)
	require.Equal(t, uint32(1), h.Stats().Corrupt)

	h.Free(b)
	d := h.Alloc(64)
	require.NotEqual(t, Nil, d)
	assert.NotEqual(t, bad, d.offset()>>PageShift, "freed block on a poisoned page was handed out again")
	assert.NotEqual(t, int32(bad), h.zones[0].partial[classFor(64)])
	assert.Equal(t, uint32(1), h.Stats().Corrupt)

	free := h.FreePages()
	h.Free(a)
	assert.Equal(t, free+1, h.FreePages(), "poisoned page returns to the buddy allocator when empty")
	assert.Equal(t, 2, h.LiveBlocks())
}
