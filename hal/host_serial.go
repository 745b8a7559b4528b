//go:build !tinygo

package hal

import (
	"sync"

	"github.com/eapache/queue"
)

// LoopbackSerial is a host UART with bounded hardware FIFOs.
//
// The far end of the wire is driven with Inject (bytes arriving) and Drain
// (bytes leaving). With loopback on, transmitted bytes arrive on the receive
// FIFO instead.
type LoopbackSerial struct {
	mu       sync.Mutex
	rx       *queue.Queue
	tx       *queue.Queue
	depth    int
	loop     bool
	overruns uint32
}

// NewLoopbackSerial returns a UART whose FIFOs hold depth bytes each.
func NewLoopbackSerial(depth int) *LoopbackSerial {
	if depth <= 0 {
		depth = 16
	}
	return &LoopbackSerial{rx: queue.New(), tx: queue.New(), depth: depth}
}

// SetLoopback routes transmitted bytes back into the receive FIFO.
func (s *LoopbackSerial) SetLoopback(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loop = on
}

func (s *LoopbackSerial) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for n < len(p) && s.rx.Length() > 0 {
		p[n] = s.rx.Remove().(byte)
		n++
	}
	return n, nil
}

func (s *LoopbackSerial) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dst := s.tx
	if s.loop {
		dst = s.rx
	}
	n := 0
	for n < len(p) && dst.Length() < s.depth {
		dst.Add(p[n])
		n++
	}
	return n, nil
}

func (s *LoopbackSerial) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rx.Length()
}

func (s *LoopbackSerial) TxFree() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loop {
		return s.depth - s.rx.Length()
	}
	return s.depth - s.tx.Length()
}

// Inject delivers bytes from the far end. Bytes that do not fit the receive
// FIFO are lost and counted as overruns.
func (s *LoopbackSerial) Inject(p []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range p {
		if s.rx.Length() >= s.depth {
			s.overruns++
			continue
		}
		s.rx.Add(b)
		n++
	}
	return n
}

// Drain removes and returns everything waiting in the transmit FIFO.
func (s *LoopbackSerial) Drain() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, 0, s.tx.Length())
	for s.tx.Length() > 0 {
		out = append(out, s.tx.Remove().(byte))
	}
	return out
}

// Overruns reports bytes lost because the receive FIFO was full.
func (s *LoopbackSerial) Overruns() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overruns
}
