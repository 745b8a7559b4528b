package alloc

import (
	"encoding/binary"
	"math/bits"
)

var classSizes = [...]int{16, 32, 64, 128, 256}

const numClasses = len(classSizes)

func classFor(size int) int {
	for c, s := range classSizes {
		if size <= s {
			return c
		}
	}
	return numClasses - 1
}

// A free block starts with the offset+1 of the next free block in its page
// and the bitwise complement of that link. A mismatch means something wrote
// through a dangling pointer.
func writeLink(b []byte, next uint16) {
	binary.LittleEndian.PutUint16(b[0:2], next)
	binary.LittleEndian.PutUint16(b[2:4], ^next)
}

func readLink(b []byte) (uint16, bool) {
	next := binary.LittleEndian.Uint16(b[0:2])
	chk := binary.LittleEndian.Uint16(b[2:4])
	return next, chk == ^next
}

func (h *Heap) allocBlock(c int) Ptr {
	for zi, z := range h.zones {
		if z.partial[c] == none {
			continue
		}
		if off, ok := h.takeBlock(z, int(z.partial[c])); ok {
			return makePtr(zi, off)
		}
	}
	for zi, z := range h.zones {
		idx, ok := z.allocRun(0)
		if !ok {
			continue
		}
		z.initCachePage(idx, c)
		if off, ok := h.takeBlock(z, idx); ok {
			return makePtr(zi, off)
		}
		return Nil
	}
	return Nil
}

// initCachePage threads every block of page idx onto its free list.
func (z *zone) initCachePage(idx, c int) {
	size := classSizes[c]
	base := idx << PageShift
	pg := &z.pages[idx]
	pg.flags = pageHead | pageUsed | pageCache
	pg.class = uint8(c)
	pg.live = 0
	n := PageSize / size
	for k := 0; k < n; k++ {
		var next uint16
		if k+1 < n {
			next = uint16((k+1)*size) + 1
		}
		writeLink(z.mem[base+k*size:], next)
	}
	pg.free = 1
	z.link(&z.partial[c], idx)
}

// takeBlock pops the first free block of page idx and returns its zone
// offset. A page whose free list fails the link check is poisoned: it
// serves no more blocks and goes back to the buddy allocator once its live
// blocks are freed.
func (h *Heap) takeBlock(z *zone, idx int) (int, bool) {
	pg := &z.pages[idx]
	c := int(pg.class)
	base := idx << PageShift
	rel := int(pg.free) - 1
	next, ok := readLink(z.mem[base+rel:])
	if !ok || int(next) > PageSize {
		h.stats.Corrupt++
		z.unlink(&z.partial[c], idx)
		pg.flags |= pagePoison
		pg.free = 0
		return 0, false
	}
	pg.free = next
	pg.live |= 1 << (rel / classSizes[c])
	if next == 0 {
		z.unlink(&z.partial[c], idx)
	}
	return base + rel, true
}

// freeBlock returns the block at rel within page idx. When the page has no
// live blocks left it goes back to the buddy allocator.
func (h *Heap) freeBlock(z *zone, idx, rel int) bool {
	pg := &z.pages[idx]
	c := int(pg.class)
	size := classSizes[c]
	if rel < 0 || rel%size != 0 {
		return false
	}
	bit := uint64(1) << (rel / size)
	if pg.live&bit == 0 {
		return false
	}
	pg.live &^= bit
	// Poisoned and full pages are on no partial list.
	listed := pg.flags&pagePoison == 0 && pg.free != 0
	if pg.live == 0 {
		if listed {
			z.unlink(&z.partial[c], idx)
		}
		pg.flags = pageHead | pageUsed
		pg.order = 0
		z.freeRun(idx)
		return true
	}
	if pg.flags&pagePoison != 0 {
		return true
	}
	base := idx << PageShift
	writeLink(z.mem[base+rel:], pg.free)
	pg.free = uint16(rel) + 1
	if !listed {
		z.link(&z.partial[c], idx)
	}
	return true
}

// LiveBlocks reports the number of blocks in use across all cache pages.
func (h *Heap) LiveBlocks() int {
	n := 0
	for _, z := range h.zones {
		for i := range z.pages {
			if z.pages[i].flags&pageCache != 0 {
				n += bits.OnesCount64(z.pages[i].live)
			}
		}
	}
	return n
}
