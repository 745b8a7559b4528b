package event

import "ember/hal"

// Config sizes the queue and sets its overflow policy.
type Config struct {
	// Size is the ring capacity. Zero means 32.
	Size int
	// Reserve slots are kept for Priority types: other types are refused
	// once free slots drop to Reserve.
	Reserve int
	// Priority types may use the reserved slots. Zero means SYSTICK.
	Priority TypeMask
}

// Queue is a bounded FIFO of events. Post may be called from interrupt
// context; Take only from the main loop. Nothing here blocks or allocates
// after NewQueue.
type Queue struct {
	cs       hal.CriticalSection
	head     uint32
	tail     uint32
	slots    []Event
	reserve  uint32
	priority TypeMask
	dropped  [numTypes]uint32
}

// NewQueue returns an empty queue guarded by cs.
func NewQueue(cfg Config, cs hal.CriticalSection) *Queue {
	if cfg.Size <= 0 {
		cfg.Size = 32
	}
	if cfg.Reserve < 0 || cfg.Reserve >= cfg.Size {
		cfg.Reserve = 0
	}
	if cfg.Priority == 0 {
		cfg.Priority = TypeSystick.Mask()
	}
	if cs == nil {
		cs = nopSection{}
	}
	return &Queue{
		cs:       cs,
		slots:    make([]Event, cfg.Size),
		reserve:  uint32(cfg.Reserve),
		priority: cfg.Priority,
	}
}

// Post appends an event. On overflow the event is dropped, counted, and
// Post returns false.
func (q *Queue) Post(t Type, c Code, which uint16) bool {
	q.cs.Lock()
	defer q.cs.Unlock()

	used := q.head - q.tail
	limit := uint32(len(q.slots))
	if q.priority&t.Mask() == 0 {
		limit -= q.reserve
	}
	if used >= limit {
		if t < numTypes {
			q.dropped[t]++
		}
		return false
	}
	q.slots[q.head%uint32(len(q.slots))] = Event{Type: t, Code: c, Which: which}
	q.head++
	return true
}

// Take removes the oldest event.
func (q *Queue) Take() (Event, bool) {
	q.cs.Lock()
	defer q.cs.Unlock()

	if q.tail == q.head {
		return Event{}, false
	}
	ev := q.slots[q.tail%uint32(len(q.slots))]
	q.tail++
	return ev, true
}

// Len reports the number of queued events.
func (q *Queue) Len() int {
	q.cs.Lock()
	defer q.cs.Unlock()
	return int(q.head - q.tail)
}

// Cap reports the ring capacity.
func (q *Queue) Cap() int { return len(q.slots) }

// Dropped reports how many events of type t were refused since start.
func (q *Queue) Dropped(t Type) uint32 {
	if t >= numTypes {
		return 0
	}
	q.cs.Lock()
	defer q.cs.Unlock()
	return q.dropped[t]
}

type nopSection struct{}

func (nopSection) Lock()   {}
func (nopSection) Unlock() {}
