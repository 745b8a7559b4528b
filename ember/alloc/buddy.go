package alloc

import "sort"

const (
	pageUsed uint8 = 1 << iota
	pageHead
	pageCache
	// pagePoison marks a cache page whose free list failed the link check.
	pagePoison
)

const none = -1

// page describes one page of a zone. Only the head page of a run carries
// flags and an order; the pages behind it are zero.
type page struct {
	flags uint8
	order uint8
	class uint8

	// next/prev link free run heads, or cache pages with free blocks.
	next, prev int32

	// Block cache: offset+1 of the first free block, and which blocks are live.
	free uint16
	live uint64
}

type zone struct {
	mem     []byte
	pages   []page
	free    [MaxOrder + 1]int32
	nfree   [MaxOrder + 1]int
	partial [numClasses]int32
}

func newZone(mem []byte) *zone {
	z := &zone{mem: mem, pages: make([]page, len(mem)>>PageShift)}
	for o := range z.free {
		z.free[o] = none
	}
	for c := range z.partial {
		z.partial[c] = none
	}
	z.carve()
	return z
}

// carve splits the zone into maximal aligned runs and frees them.
func (z *zone) carve() {
	n := len(z.pages)
	for i := 0; i < n; {
		o := MaxOrder
		for o > 0 && (i&(1<<o-1) != 0 || i+1<<o > n) {
			o--
		}
		z.pages[i] = page{flags: pageHead, order: uint8(o)}
		z.pushFree(i, o)
		i += 1 << o
	}
}

func (z *zone) link(head *int32, i int) {
	pg := &z.pages[i]
	pg.prev = none
	pg.next = *head
	if *head != none {
		z.pages[*head].prev = int32(i)
	}
	*head = int32(i)
}

func (z *zone) unlink(head *int32, i int) {
	pg := &z.pages[i]
	if pg.prev != none {
		z.pages[pg.prev].next = pg.next
	} else {
		*head = pg.next
	}
	if pg.next != none {
		z.pages[pg.next].prev = pg.prev
	}
	pg.next, pg.prev = none, none
}

func (z *zone) pushFree(i, o int) {
	z.link(&z.free[o], i)
	z.nfree[o]++
}

func (z *zone) removeFree(i, o int) {
	z.unlink(&z.free[o], i)
	z.nfree[o]--
}

// allocRun takes the smallest free run of at least the given order,
// splitting larger runs and returning the upper halves to their lists.
func (z *zone) allocRun(order int) (int, bool) {
	o := order
	for o <= MaxOrder && z.free[o] == none {
		o++
	}
	if o > MaxOrder {
		return 0, false
	}
	i := int(z.free[o])
	z.removeFree(i, o)
	for o > order {
		o--
		buddy := i + 1<<o
		z.pages[buddy] = page{flags: pageHead, order: uint8(o)}
		z.pushFree(buddy, o)
	}
	z.pages[i] = page{flags: pageHead | pageUsed, order: uint8(order), next: none, prev: none}
	return i, true
}

// freeRun releases the run headed by i and merges it with free buddies of
// the same order until a buddy is in use or the zone ends.
func (z *zone) freeRun(i int) {
	o := int(z.pages[i].order)
	z.pages[i] = page{}
	for o < MaxOrder {
		b := i ^ (1 << o)
		if b >= len(z.pages) {
			break
		}
		bp := &z.pages[b]
		if bp.flags != pageHead || int(bp.order) != o {
			break
		}
		z.removeFree(b, o)
		z.pages[b] = page{}
		if b < i {
			i = b
		}
		o++
	}
	z.pages[i] = page{flags: pageHead, order: uint8(o)}
	z.pushFree(i, o)
}

// ZoneSnapshot is the free-list state of one zone: the sorted head page
// indices of the free runs of each order.
type ZoneSnapshot struct {
	Pages int
	Free  [MaxOrder + 1][]int
}

// Snapshot captures the free-list state of every zone.
func (h *Heap) Snapshot() []ZoneSnapshot {
	out := make([]ZoneSnapshot, len(h.zones))
	for zi, z := range h.zones {
		out[zi].Pages = len(z.pages)
		for o := 0; o <= MaxOrder; o++ {
			var heads []int
			for i := z.free[o]; i != none; i = z.pages[i].next {
				heads = append(heads, int(i))
			}
			sort.Ints(heads)
			out[zi].Free[o] = heads
		}
	}
	return out
}
