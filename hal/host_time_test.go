//go:build !tinygo

package hal

import (
	"testing"
	"time"
)

func drain(ch <-chan uint64) []uint64 {
	var out []uint64
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}

func TestHostTimeStep(t *testing.T) {
	ht := newHostTime(time.Millisecond)
	t0 := time.Unix(0, 0)

	ht.step(t0)
	if got := drain(ht.Ticks()); len(got) != 1 || got[0] != 1 {
		t.Fatalf("first step ticks = %v, want [1]", got)
	}
	ht.step(t0.Add(3500 * time.Microsecond))
	if got := drain(ht.Ticks()); len(got) != 3 || got[2] != 4 {
		t.Fatalf("after 3.5ms ticks = %v, want [2 3 4]", got)
	}
	ht.step(t0.Add(4 * time.Millisecond))
	if got := drain(ht.Ticks()); len(got) != 1 {
		t.Fatalf("leftover 0.5ms + 0.5ms ticks = %v, want one", got)
	}
}

func TestHostTimeDropsWhenBehind(t *testing.T) {
	ht := newHostTime(0)
	ht.stepN(uint64(cap(ht.ch)) + 6)
	if d := ht.dropped.Load(); d != 6 {
		t.Fatalf("dropped = %d, want 6", d)
	}
}
