//go:build !tinygo

package hal

import (
	"sync/atomic"
	"time"
)

// hostTime turns wall-clock time into a tick sequence. step is called by
// the runner's pump; whole periods elapsed since the last call become ticks.
type hostTime struct {
	ch     chan uint64
	seq    atomic.Uint64
	period time.Duration

	last time.Time
	acc  time.Duration

	// Ticks lost because the consumer fell a full channel behind.
	dropped atomic.Uint64
}

func newHostTime(period time.Duration) *hostTime {
	if period <= 0 {
		period = time.Millisecond
	}
	return &hostTime{ch: make(chan uint64, 1024), period: period}
}

func (t *hostTime) Ticks() <-chan uint64 { return t.ch }

// now returns the last tick produced, delivered or not.
func (t *hostTime) now() uint64 { return t.seq.Load() }

// perSecond converts a rate to a tick count, at least one.
func (t *hostTime) perSecond(hz int) uint64 {
	return max(uint64(time.Second/t.period)/uint64(hz), 1)
}

func (t *hostTime) step(now time.Time) {
	if t.last.IsZero() {
		t.last = now
		t.stepN(1)
		return
	}
	t.acc += now.Sub(t.last)
	t.last = now
	if n := uint64(t.acc / t.period); n > 0 {
		t.acc %= t.period
		t.stepN(n)
	}
}

func (t *hostTime) stepN(n uint64) {
	for ; n > 0; n-- {
		seq := t.seq.Add(1)
		select {
		case t.ch <- seq:
		default:
			t.dropped.Add(1)
		}
	}
}
