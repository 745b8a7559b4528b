// Package timer is the tick-driven timeout service and the timer object
// kind built on it.
//
// Timeouts sit in one unsorted list that Sync walks once per tick. Every
// timeout gets exactly one Drop notification before it is freed, whether it
// expired or was cancelled, so handlers can release what they hold.
package timer

import (
	"fmt"

	"ember/ember/alloc"
	"ember/ember/errno"
	"ember/hal"
)

// nodeSize is the heap footprint of one timeout.
const nodeSize = 32

// Mode tells a handler why it is being called.
type Mode uint8

const (
	Fire Mode = iota
	Drop
)

func (m Mode) String() string {
	if m == Fire {
		return "fire"
	}
	return "drop"
}

// Handler is called with Fire on every expiry and with Drop exactly once
// before the timeout is freed.
type Handler func(m Mode, param any)

// Handle names a registered timeout. The zero Handle is never issued.
type Handle uint32

type entry struct {
	next   *entry
	handle Handle
	mem    alloc.Ptr

	h      Handler
	param  any
	wait   uint64
	origin uint64
	repeat bool
	dead   bool

	id    uint16
	flags uint8
}

// Service owns the timeout list.
type Service struct {
	heap *alloc.Heap
	log  hal.Logger

	head    *entry
	serial  Handle
	now     uint64
	syncing bool
	n       int
}

// NewService returns an empty service whose nodes come from h.
func NewService(h *alloc.Heap, log hal.Logger) *Service {
	return &Service{heap: h, log: log}
}

func (s *Service) logf(format string, args ...any) {
	if s.log == nil {
		return
	}
	s.log.WriteLineString("timer: " + fmt.Sprintf(format, args...))
}

// Register adds a timeout that fires wait ticks after the last Sync.
func (s *Service) Register(wait uint64, repeat bool, h Handler, param any) (Handle, error) {
	return s.RegisterFlags(wait, repeat, h, param, 0, 0)
}

// RegisterFlags is Register with a caller id and flags for the bulk clear
// operations.
func (s *Service) RegisterFlags(wait uint64, repeat bool, h Handler, param any, id uint16, flags uint8) (Handle, error) {
	if h == nil || wait == 0 {
		return 0, errno.EINVAL
	}
	mem := s.heap.Alloc(nodeSize)
	if mem == alloc.Nil {
		s.logf("register: %v", errno.ENOMEM)
		return 0, errno.ENOMEM
	}
	s.serial++
	if s.serial == 0 {
		s.serial++
	}
	e := &entry{
		next:   s.head,
		handle: s.serial,
		mem:    mem,
		h:      h,
		param:  param,
		wait:   wait,
		origin: s.now,
		repeat: repeat,
		id:     id,
		flags:  flags,
	}
	s.head = e
	s.n++
	return e.handle, nil
}

func (s *Service) find(h Handle) *entry {
	for e := s.head; e != nil; e = e.next {
		if e.handle == h && !e.dead {
			return e
		}
	}
	return nil
}

// Unregister cancels a timeout. Its handler sees Drop before Unregister
// returns.
func (s *Service) Unregister(h Handle) error {
	e := s.find(h)
	if e == nil {
		return errno.EINVAL
	}
	s.kill(e)
	s.sweep()
	return nil
}

// Reset changes a timeout's interval and restarts it from the last Sync.
func (s *Service) Reset(h Handle, wait uint64) error {
	e := s.find(h)
	if e == nil || wait == 0 {
		return errno.EINVAL
	}
	e.wait = wait
	e.origin = s.now
	return nil
}

// Wait reports a timeout's interval.
func (s *Service) Wait(h Handle) (uint64, bool) {
	e := s.find(h)
	if e == nil {
		return 0, false
	}
	return e.wait, true
}

// kill delivers Drop and marks e for the next sweep.
func (s *Service) kill(e *entry) {
	e.dead = true
	s.n--
	e.h(Drop, e.param)
}

// sweep unlinks and frees dead entries. It waits while Sync is walking the
// list so handlers may unregister freely.
func (s *Service) sweep() {
	if s.syncing {
		return
	}
	p := &s.head
	for *p != nil {
		e := *p
		if e.dead {
			*p = e.next
			s.heap.Free(e.mem)
			e.next = nil
			continue
		}
		p = &e.next
	}
}

// Sync fires every timeout whose wait has elapsed at now. Repeating
// timeouts restart from now; one-shots are dropped and freed.
func (s *Service) Sync(now uint64) {
	s.now = now
	s.syncing = true
	for e := s.head; e != nil; e = e.next {
		if e.dead || now-e.origin < e.wait {
			continue
		}
		e.h(Fire, e.param)
		if e.dead {
			continue
		}
		if e.repeat {
			e.origin = now
		} else {
			s.kill(e)
		}
	}
	s.syncing = false
	s.sweep()
}

func (s *Service) clear(match func(e *entry) bool) int {
	n := 0
	for e := s.head; e != nil; e = e.next {
		if !e.dead && match(e) {
			s.kill(e)
			n++
		}
	}
	s.sweep()
	return n
}

// ClearAll cancels every timeout and reports how many were dropped.
func (s *Service) ClearAll() int {
	return s.clear(func(*entry) bool { return true })
}

// ClearByFlags cancels timeouts registered with any of flags.
func (s *Service) ClearByFlags(flags uint8) int {
	return s.clear(func(e *entry) bool { return e.flags&flags != 0 })
}

// ClearByID cancels timeouts registered with caller id.
func (s *Service) ClearByID(id uint16) int {
	return s.clear(func(e *entry) bool { return e.id == id })
}

// Len reports the number of live timeouts.
func (s *Service) Len() int { return s.n }

// Now returns the tick of the last Sync.
func (s *Service) Now() uint64 { return s.now }
