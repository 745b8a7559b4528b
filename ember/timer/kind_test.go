package timer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/ember/alloc"
	"ember/ember/errno"
	"ember/ember/event"
	"ember/ember/object"
)

type rig struct {
	reg  *object.Registry
	svc  *Service
	kind *Kind
}

func newRig(t *testing.T) *rig {
	t.Helper()
	h := alloc.New()
	require.NoError(t, h.AddZone(make([]byte, 8*alloc.PageSize)))
	reg := object.NewRegistry(h, event.NewQueue(event.Config{}, nil), object.Config{}, nil)
	svc := NewService(h, nil)
	k, err := NewKind(reg, svc)
	require.NoError(t, err)
	return &rig{reg: reg, svc: svc, kind: k}
}

// run advances ticks and dispatches what they post.
func (r *rig) run(from, to uint64) {
	for tick := from; tick <= to; tick++ {
		r.svc.Sync(tick)
		for {
			ev, ok := r.reg.Queue().Take()
			if !ok {
				break
			}
			r.reg.Dispatch(ev)
		}
	}
}

func TestTimerKeepsInterval(t *testing.T) {
	r := newRig(t)
	var at []uint64
	o, err := r.kind.Start(10, func(o *object.Object, c event.Code, p any) int {
		assert.Equal(t, event.CodeRewind, c)
		assert.Equal(t, "param", p)
		at = append(at, r.svc.Now())
		return 0
	}, "param")
	require.NoError(t, err)
	require.NotEqual(t, object.NoID, o.ID())

	r.run(1, 35)
	assert.Equal(t, []uint64{10, 20, 30}, at)
	assert.Equal(t, uint32(3), r.kind.Fired(o))
}

func TestTimerRewindChangesInterval(t *testing.T) {
	r := newRig(t)
	var at []uint64
	o, err := r.kind.Start(10, func(*object.Object, event.Code, any) int {
		at = append(at, r.svc.Now())
		return 3
	}, nil)
	require.NoError(t, err)

	r.run(1, 20)
	assert.Equal(t, []uint64{10, 13, 16, 19}, at)
	v, err := r.reg.GetIndex(o, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestTimerStop(t *testing.T) {
	r := newRig(t)
	n := 0
	o, err := r.kind.Start(5, func(*object.Object, event.Code, any) int {
		n++
		if n == 2 {
			return Stop
		}
		return 0
	}, nil)
	require.NoError(t, err)

	r.run(1, 50)
	assert.Equal(t, 2, n)
	assert.False(t, r.kind.Running(o))
	assert.True(t, o.Alive())
	assert.Zero(t, r.svc.Len())
}

func TestTimerStoppedByServiceClear(t *testing.T) {
	r := newRig(t)
	n := 0
	o, err := r.kind.Start(5, func(*object.Object, event.Code, any) int {
		n++
		return 0
	}, nil)
	require.NoError(t, err)

	r.run(1, 5)
	assert.Equal(t, 1, r.svc.ClearAll())
	assert.False(t, r.kind.Running(o))
	assert.NoError(t, r.kind.Halt(o))
	assert.ErrorIs(t, r.kind.SetIndex(o, 0, 3), errno.EENABLED)

	r.run(6, 20)
	assert.Equal(t, 1, n)
	assert.NoError(t, o.Err())
}

func TestTimerDestroyCancelsTimeout(t *testing.T) {
	r := newRig(t)
	n := 0
	o, err := r.kind.Start(5, func(*object.Object, event.Code, any) int {
		n++
		return 0
	}, nil)
	require.NoError(t, err)

	r.run(1, 5)
	r.reg.PostDestroy(o)
	r.run(6, 30)
	assert.Equal(t, 1, n)
	assert.Zero(t, r.svc.Len())
	assert.Zero(t, r.reg.Live())
}

func TestTimerSetIndex(t *testing.T) {
	r := newRig(t)
	n := 0
	o, err := r.kind.Start(50, func(*object.Object, event.Code, any) int {
		n++
		return 0
	}, nil)
	require.NoError(t, err)

	require.NoError(t, r.reg.SetIndex(o, 0, 4))
	r.run(1, 8)
	assert.Equal(t, 2, n)
}
