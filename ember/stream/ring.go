package stream

import "ember/ember/alloc"

// ring is a byte FIFO whose storage lives in heap memory.
type ring struct {
	p    alloc.Ptr
	buf  []byte
	head int
	n    int
}

func newRing(h *alloc.Heap, size int) (*ring, bool) {
	p := h.Alloc(size)
	if p == alloc.Nil {
		return nil, false
	}
	return &ring{p: p, buf: h.Bytes(p, size)}, true
}

func (r *ring) free(h *alloc.Heap) {
	h.Free(r.p)
	r.p, r.buf = alloc.Nil, nil
	r.head, r.n = 0, 0
}

func (r *ring) room() int { return len(r.buf) - r.n }

func (r *ring) put(p []byte) int {
	k := 0
	for k < len(p) && r.n < len(r.buf) {
		tail := (r.head + r.n) % len(r.buf)
		c := copy(r.buf[tail:min(len(r.buf), tail+r.room())], p[k:])
		r.n += c
		k += c
	}
	return k
}

func (r *ring) get(p []byte) int {
	k := 0
	for k < len(p) && r.n > 0 {
		c := copy(p[k:], r.buf[r.head:min(len(r.buf), r.head+r.n)])
		r.head = (r.head + c) % len(r.buf)
		r.n -= c
		k += c
	}
	if r.n == 0 {
		r.head = 0
	}
	return k
}

func (r *ring) unshift(b byte) bool {
	if r.n >= len(r.buf) {
		return false
	}
	r.head = (r.head - 1 + len(r.buf)) % len(r.buf)
	r.buf[r.head] = b
	r.n++
	return true
}
