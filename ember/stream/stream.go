// Package stream is the flow-controlled byte stream devices use for I/O.
//
// The producer side (Push, Pull) runs from driver context; the consumer side
// (Read, Write) from application code. Both run on the main loop. Receive
// and transmit rings are allocated from the heap on first use.
package stream

import (
	"fmt"

	"ember/ember/alloc"
	"ember/ember/errno"
	"ember/ember/event"
)

// DefaultStarveTicks is how long received data may sit unread before Sync
// raises DATA again.
const DefaultStarveTicks = 5

// Flags are the directions a stream supports.
type Flags uint8

const (
	Readable Flags = 1 << iota
	Writable
)

// State is the consumer-facing flow state.
type State uint8

const (
	Idle State = iota
	Paused
	Flowing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Paused:
		return "paused"
	case Flowing:
		return "flowing"
	default:
		return "unknown"
	}
}

// Mask selects the notifications a consumer subscribes to.
type Mask uint8

const (
	MaskData Mask = 1 << iota
	MaskDrain
	MaskError
)

// RawIO moves bytes between the stream and its hardware and returns how
// many it moved. A nil p asks the hardware to arm asynchronous transfer
// instead of copying now.
type RawIO func(p []byte) (int, error)

// Notify delivers DATA, DRAIN and ERROR to the stream's owner.
type Notify func(c event.Code)

// Config describes a stream. A direction is enabled only when both its
// size and its raw callback are set.
type Config struct {
	RxSize int
	TxSize int
	Read   RawIO
	Write  RawIO

	// Clock returns the current tick.
	Clock func() uint64
	// StarveTicks overrides DefaultStarveTicks.
	StarveTicks uint64
}

// Stream is a pair of lazily allocated rings plus watermark bookkeeping.
type Stream struct {
	heap   *alloc.Heap
	cfg    Config
	notify Notify

	flags Flags
	state State
	mask  Mask

	rx *ring
	tx *ring

	lastPush  uint64
	dataFired bool
	overflows uint32
	err       error
}

// New returns a stream for cfg. It fails with EINVAL when cfg enables no
// direction.
func New(h *alloc.Heap, cfg Config, notify Notify) (*Stream, error) {
	s := &Stream{heap: h, cfg: cfg, notify: notify}
	if cfg.RxSize > 0 && cfg.Read != nil {
		s.flags |= Readable
	}
	if cfg.TxSize > 0 && cfg.Write != nil {
		s.flags |= Writable
	}
	if s.flags == 0 {
		return nil, fmt.Errorf("stream: no direction configured: %w", errno.EINVAL)
	}
	if s.cfg.Clock == nil {
		s.cfg.Clock = func() uint64 { return 0 }
	}
	if s.cfg.StarveTicks == 0 {
		s.cfg.StarveTicks = DefaultStarveTicks
	}
	if s.notify == nil {
		s.notify = func(event.Code) {}
	}
	return s, nil
}

func (s *Stream) Flags() Flags { return s.flags }
func (s *Stream) State() State { return s.state }

// Err returns the last error recorded on the stream.
func (s *Stream) Err() error { return s.err }

// Overflows reports pushed bytes lost to a full receive ring.
func (s *Stream) Overflows() uint32 { return s.overflows }

// Buffered reports received bytes waiting to be read.
func (s *Stream) Buffered() int {
	if s.rx == nil {
		return 0
	}
	return s.rx.n
}

// Pending reports written bytes waiting to be pulled.
func (s *Stream) Pending() int {
	if s.tx == nil {
		return 0
	}
	return s.tx.n
}

func (s *Stream) rxRing() *ring {
	if s.rx == nil {
		r, ok := newRing(s.heap, s.cfg.RxSize)
		if !ok {
			s.fail(errno.ENOMEM)
			return nil
		}
		s.rx = r
	}
	return s.rx
}

func (s *Stream) txRing() *ring {
	if s.tx == nil {
		r, ok := newRing(s.heap, s.cfg.TxSize)
		if !ok {
			s.fail(errno.ENOMEM)
			return nil
		}
		s.tx = r
	}
	return s.tx
}

func (s *Stream) fail(err error) {
	s.err = err
	if s.mask&MaskError != 0 {
		s.notify(event.CodeError)
	}
}

// Push stores received bytes and returns how many fit.
func (s *Stream) Push(p []byte) int {
	if s.flags&Readable == 0 || len(p) == 0 {
		return 0
	}
	rx := s.rxRing()
	if rx == nil {
		return 0
	}
	n := rx.put(p)
	if n < len(p) {
		s.overflows += uint32(len(p) - n)
	}
	if n > 0 {
		s.lastPush = s.cfg.Clock()
		s.checkWatermark()
	}
	return n
}

func (s *Stream) checkWatermark() {
	if s.mask&MaskData == 0 || s.state != Flowing || s.dataFired || s.rx == nil {
		return
	}
	if s.rx.n > len(s.rx.buf)/2 {
		s.dataFired = true
		s.notify(event.CodeData)
	}
}

// Pull takes bytes waiting to be transmitted. When the transmit ring runs
// empty a DRAIN notification follows.
func (s *Stream) Pull(p []byte) int {
	if s.flags&Writable == 0 || s.tx == nil || s.tx.n == 0 {
		return 0
	}
	n := s.tx.get(p)
	if s.tx.n == 0 && s.mask&MaskDrain != 0 {
		s.notify(event.CodeDrain)
	}
	return n
}

// Unshift puts b back at the front of the receive ring.
func (s *Stream) Unshift(b byte) bool {
	if s.flags&Readable == 0 {
		return false
	}
	rx := s.rxRing()
	if rx == nil {
		return false
	}
	return rx.unshift(b)
}

// Read copies received bytes into p. When the ring holds fewer than len(p)
// bytes the raw reader is asked for the rest.
func (s *Stream) Read(p []byte) (int, error) {
	if s.flags&Readable == 0 {
		return 0, errno.EIMPLEMENT
	}
	n := 0
	if s.rx != nil {
		n = s.rx.get(p)
		if s.rx.n == 0 {
			s.dataFired = false
		}
	}
	if n < len(p) {
		m, err := s.cfg.Read(p[n:])
		n += m
		if err != nil {
			s.err = err
			return n, err
		}
	}
	return n, nil
}

// Write queues p for transmission. With nothing queued the raw writer gets
// first chance at p; what it leaves is buffered, and the raw writer is
// armed while bytes are waiting. Write returns fewer than len(p) bytes when
// the transmit ring is full.
func (s *Stream) Write(p []byte) (int, error) {
	if s.flags&Writable == 0 {
		return 0, errno.EIMPLEMENT
	}
	n := 0
	if s.tx == nil || s.tx.n == 0 {
		m, err := s.cfg.Write(p)
		if err != nil {
			s.err = err
			return m, err
		}
		n = m
	}
	if n < len(p) {
		tx := s.txRing()
		if tx == nil {
			return n, errno.ENOMEM
		}
		n += tx.put(p[n:])
	}
	if s.tx != nil && s.tx.n > 0 {
		if _, err := s.cfg.Write(nil); err != nil {
			s.err = err
			return n, err
		}
	}
	return n, nil
}

// Listen subscribes to notifications.
func (s *Stream) Listen(m Mask) {
	s.mask |= m
	if m&MaskData != 0 && s.state == Idle {
		s.state = Flowing
	}
	s.checkWatermark()
}

// Ignore unsubscribes from notifications.
func (s *Stream) Ignore(m Mask) {
	s.mask &^= m
	if m&MaskData != 0 && s.state == Flowing {
		s.state = Idle
	}
}

// Pause suppresses DATA until Resume.
func (s *Stream) Pause() { s.state = Paused }

// Resume undoes Pause.
func (s *Stream) Resume() {
	if s.state != Paused {
		return
	}
	s.state = Idle
	if s.mask&MaskData != 0 {
		s.state = Flowing
		s.checkWatermark()
	}
}

// Sync raises DATA again when received bytes have gone unread for
// StarveTicks, since data below the watermark would otherwise never be
// announced.
func (s *Stream) Sync(now uint64) {
	if s.mask&MaskData == 0 || s.state != Flowing || s.rx == nil || s.rx.n == 0 {
		return
	}
	if now-s.lastPush >= s.cfg.StarveTicks {
		s.lastPush = now
		s.notify(event.CodeData)
	}
}

// Close releases both rings.
func (s *Stream) Close() {
	if s.rx != nil {
		s.rx.free(s.heap)
		s.rx = nil
	}
	if s.tx != nil {
		s.tx.free(s.heap)
		s.tx = nil
	}
	s.state = Idle
	s.mask = 0
}
