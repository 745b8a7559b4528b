package hal

import "sync"

// regionMemory hands out aligned slices of one region, front to back.
// Nothing is ever returned to it.
type regionMemory struct {
	mu     sync.Mutex
	region []byte
	off    int
}

func newRegionMemory(region []byte) *regionMemory {
	return &regionMemory{region: region}
}

func (m *regionMemory) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.region) - m.off
}

func (m *regionMemory) Alloc(size, align int) ([]byte, error) {
	if size <= 0 {
		return nil, ErrNoMemory
	}
	if align <= 0 {
		align = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	start := (m.off + align - 1) / align * align
	if start+size > len(m.region) {
		return nil, ErrNoMemory
	}
	m.off = start + size
	return m.region[start : start+size : start+size], nil
}
