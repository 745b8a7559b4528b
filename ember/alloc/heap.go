// Package alloc is the runtime's two-tier allocator.
//
// Memory comes from at most MaxZones zones, each a contiguous region sliced
// into PageSize pages. Requests larger than MaxBlockSize get a power-of-two
// run of pages from a buddy allocator; smaller ones get a block from a
// per-size-class cache that carves single pages into equal blocks.
//
// Pages are tracked by index in a per-zone descriptor array and every free
// list is index-linked, so no allocator state lives inside Go pointers.
// A Heap is not safe for concurrent use.
package alloc

import (
	"fmt"

	"ember/ember/errno"
)

const (
	PageShift = 10
	PageSize  = 1 << PageShift

	// MaxZones bounds the number of zones a Heap accepts.
	MaxZones = 2

	// MaxOrder is the largest run order; a zone never exceeds one
	// MaxOrder run (16 MiB), which keeps offsets within a Ptr.
	MaxOrder = 14

	// MaxBlockSize is the largest request served by the block cache.
	MaxBlockSize = 256

	zoneShift   = 24
	maxZoneSize = 1 << zoneShift
)

// Ptr addresses allocated memory: zone number plus one in the top byte,
// byte offset within the zone below it.
type Ptr uint32

// Nil is the null Ptr returned when an allocation fails.
const Nil Ptr = 0

func makePtr(zone, off int) Ptr { return Ptr(uint32(zone+1)<<zoneShift | uint32(off)) }

func (p Ptr) zone() int   { return int(p>>zoneShift) - 1 }
func (p Ptr) offset() int { return int(p & (maxZoneSize - 1)) }

func (p Ptr) String() string {
	if p == Nil {
		return "nil"
	}
	return fmt.Sprintf("%d:%#x", p.zone(), p.offset())
}

// Stats counts allocator activity.
type Stats struct {
	Allocs   uint32
	Frees    uint32
	Failed   uint32
	BadFrees uint32
	Corrupt  uint32
}

// Heap is the allocator state for all zones.
type Heap struct {
	zones []*zone
	stats Stats
}

// New returns a Heap with no zones.
func New() *Heap {
	return &Heap{}
}

// AddZone hands mem to the heap as a new zone. mem is truncated to whole
// pages and to the maximum zone size; it is owned by the heap from now on.
func (h *Heap) AddZone(mem []byte) error {
	if len(h.zones) >= MaxZones {
		return fmt.Errorf("alloc: add zone: %w", errno.ERESOURCE)
	}
	if len(mem) > maxZoneSize {
		mem = mem[:maxZoneSize]
	}
	n := len(mem) >> PageShift
	if n == 0 {
		return fmt.Errorf("alloc: add zone of %d bytes: %w", len(mem), errno.EINVAL)
	}
	h.zones = append(h.zones, newZone(mem[:n<<PageShift]))
	return nil
}

// Zones reports the number of zones.
func (h *Heap) Zones() int { return len(h.zones) }

// Alloc returns size zeroed bytes, or Nil when memory is exhausted.
func (h *Heap) Alloc(size int) Ptr {
	var p Ptr
	switch {
	case size <= 0:
	case size <= MaxBlockSize:
		p = h.allocBlock(classFor(size))
	case size > PageSize<<MaxOrder:
	default:
		p = h.allocPages(size)
	}
	if p == Nil {
		h.stats.Failed++
		return Nil
	}
	h.stats.Allocs++
	b := h.Bytes(p, h.Cap(p))
	clear(b)
	return p
}

// Free returns p to the heap. Nil is ignored; pointers the heap did not
// hand out, or already freed, are ignored and counted as bad frees.
func (h *Heap) Free(p Ptr) {
	if p == Nil {
		return
	}
	z, idx, ok := h.locate(p)
	if !ok {
		h.stats.BadFrees++
		return
	}
	pg := &z.pages[idx]
	switch {
	case pg.flags&pageCache != 0:
		if !h.freeBlock(z, idx, p.offset()-idx<<PageShift) {
			h.stats.BadFrees++
			return
		}
	case pg.flags == pageHead|pageUsed && p.offset() == idx<<PageShift:
		z.freeRun(idx)
	default:
		h.stats.BadFrees++
		return
	}
	h.stats.Frees++
}

// Cap reports the usable size of p: its size class or its run length.
func (h *Heap) Cap(p Ptr) int {
	z, idx, ok := h.locate(p)
	if !ok {
		return 0
	}
	pg := &z.pages[idx]
	switch {
	case pg.flags&pageCache != 0:
		return classSizes[pg.class]
	case pg.flags&pageHead != 0 && pg.flags&pageUsed != 0:
		return PageSize << pg.order
	default:
		return 0
	}
}

// Bytes returns the first n bytes of the memory at p, clipped to Cap(p).
func (h *Heap) Bytes(p Ptr, n int) []byte {
	c := h.Cap(p)
	if c == 0 {
		return nil
	}
	if n > c || n < 0 {
		n = c
	}
	z := h.zones[p.zone()]
	off := p.offset()
	return z.mem[off : off+n : off+n]
}

// Stats returns a copy of the activity counters.
func (h *Heap) Stats() Stats { return h.stats }

// FreePages reports the number of free pages across all zones.
func (h *Heap) FreePages() int {
	n := 0
	for _, z := range h.zones {
		for o := 0; o <= MaxOrder; o++ {
			n += z.nfree[o] << o
		}
	}
	return n
}

// FreeRuns reports the number of free runs of the given order.
func (h *Heap) FreeRuns(order int) int {
	if order < 0 || order > MaxOrder {
		return 0
	}
	n := 0
	for _, z := range h.zones {
		n += z.nfree[order]
	}
	return n
}

// TotalPages reports the number of pages across all zones.
func (h *Heap) TotalPages() int {
	n := 0
	for _, z := range h.zones {
		n += len(z.pages)
	}
	return n
}

func (h *Heap) locate(p Ptr) (*zone, int, bool) {
	zi := p.zone()
	if zi < 0 || zi >= len(h.zones) {
		return nil, 0, false
	}
	z := h.zones[zi]
	idx := p.offset() >> PageShift
	if idx >= len(z.pages) {
		return nil, 0, false
	}
	return z, idx, true
}

func (h *Heap) allocPages(size int) Ptr {
	pages := (size + PageSize - 1) >> PageShift
	order := 0
	for 1<<order < pages {
		order++
	}
	if order > MaxOrder {
		return Nil
	}
	for zi, z := range h.zones {
		if idx, ok := z.allocRun(order); ok {
			return makePtr(zi, idx<<PageShift)
		}
	}
	return Nil
}
