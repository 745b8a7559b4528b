package object

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/ember/alloc"
	"ember/ember/errno"
	"ember/ember/event"
	"ember/ember/stream"
)

type plainKind struct{ name string }

func (k plainKind) Name() string { return k.name }

type recordingKind struct {
	name      string
	events    []event.Code
	errs      []error
	destroyed int
	order     []string
}

func (k *recordingKind) Name() string { return k.name }

func (k *recordingKind) Destroy(o *Object) {
	k.destroyed++
	k.order = append(k.order, "destroy")
}

func (k *recordingKind) HandleEvent(o *Object, code event.Code) {
	k.events = append(k.events, code)
	k.order = append(k.order, "event")
}

func (k *recordingKind) HandleError(o *Object, err error) {
	k.errs = append(k.errs, err)
	k.order = append(k.order, "error")
}

type propKind struct {
	plainKind
	vals map[int]int64
}

func (k *propKind) GetIndex(o *Object, i int) (int64, error) {
	v, ok := k.vals[i]
	if !ok {
		return 0, errno.EINVAL
	}
	return v, nil
}

func (k *propKind) SetIndex(o *Object, i int, v int64) error {
	k.vals[i] = v
	return nil
}

func newRegistry(t *testing.T, cfg Config) *Registry {
	t.Helper()
	h := alloc.New()
	require.NoError(t, h.AddZone(make([]byte, 16*alloc.PageSize)))
	return NewRegistry(h, event.NewQueue(event.Config{Size: 16}, nil), cfg, nil)
}

func drain(r *Registry) {
	for {
		ev, ok := r.Queue().Take()
		if !ok {
			return
		}
		r.Dispatch(ev)
	}
}

func TestRegisterKind(t *testing.T) {
	r := newRegistry(t, Config{MaxKinds: 2})

	a, err := r.RegisterKind(8, plainKind{"a"})
	require.NoError(t, err)
	b, err := r.RegisterKind(8, plainKind{"b"})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Equal(t, "b", r.KindName(b))

	_, err = r.RegisterKind(8, plainKind{"a"})
	assert.ErrorIs(t, err, errno.ENAME)
	_, err = r.RegisterKind(8, plainKind{"c"})
	assert.ErrorIs(t, err, errno.ERESOURCE)
}

func TestIDStability(t *testing.T) {
	r := newRegistry(t, Config{MaxIDs: 4})
	tag, err := r.RegisterKind(0, plainKind{"k"})
	require.NoError(t, err)

	var objs []*Object
	seen := map[ID]bool{}
	for i := 0; i < 4; i++ {
		o, err := r.CreateWithID(tag)
		require.NoError(t, err)
		require.NotEqual(t, NoID, o.ID())
		require.False(t, seen[o.ID()], "id %d handed out twice", o.ID())
		seen[o.ID()] = true
		objs = append(objs, o)
	}

	_, err = r.CreateWithID(tag)
	require.ErrorIs(t, err, errno.ERESOURCE)
	assert.Equal(t, 4, r.Live(), "failed create must not leak")

	freed := objs[2].ID()
	r.Destroy(objs[2])
	assert.Nil(t, r.Lookup(freed, AnyTag))

	o, err := r.CreateWithID(tag)
	require.NoError(t, err)
	assert.Equal(t, freed, o.ID())
	assert.Same(t, o, r.Lookup(freed, tag))
}

func TestLookupChecksTag(t *testing.T) {
	r := newRegistry(t, Config{})
	a, _ := r.RegisterKind(0, plainKind{"a"})
	b, _ := r.RegisterKind(0, plainKind{"b"})

	o, err := r.CreateWithID(a)
	require.NoError(t, err)
	assert.Same(t, o, r.Lookup(o.ID(), a))
	assert.Same(t, o, r.Lookup(o.ID(), AnyTag))
	assert.Nil(t, r.Lookup(o.ID(), b))
	assert.Nil(t, r.Lookup(NoID, AnyTag))
	assert.Nil(t, r.Lookup(1000, AnyTag))
}

func TestObjectMemoryReturned(t *testing.T) {
	r := newRegistry(t, Config{})
	small, _ := r.RegisterKind(24, plainKind{"small"})
	large, _ := r.RegisterKind(3000, plainKind{"large"})
	pages := r.Heap().FreePages()

	o1, err := r.Create(small)
	require.NoError(t, err)
	o2, err := r.CreateWithID(large)
	require.NoError(t, err)
	assert.Less(t, r.Heap().FreePages(), pages)

	r.Destroy(o1)
	r.Destroy(o2)
	r.Destroy(o2)
	assert.Equal(t, pages, r.Heap().FreePages())
	assert.Zero(t, r.Live())
	assert.Zero(t, r.Heap().Stats().BadFrees)
}

func TestCreateOutOfMemory(t *testing.T) {
	r := newRegistry(t, Config{})
	huge, _ := r.RegisterKind(64*alloc.PageSize, plainKind{"huge"})

	_, err := r.CreateWithID(huge)
	require.ErrorIs(t, err, errno.ENOMEM)
	assert.Equal(t, 32, r.FreeIDs(), "id slot rolled back")
}

func TestRefCount(t *testing.T) {
	r := newRegistry(t, Config{})
	k := &recordingKind{name: "rc"}
	tag, _ := r.RegisterKind(0, k)

	o, _ := r.CreateWithID(tag)
	r.Retain(o)
	r.Release(o)
	assert.True(t, o.Alive())
	r.Release(o)
	assert.False(t, o.Alive())
	assert.Equal(t, 1, k.destroyed)
}

func TestDispatchDestroyBypassesHandler(t *testing.T) {
	r := newRegistry(t, Config{})
	k := &recordingKind{name: "d"}
	tag, _ := r.RegisterKind(0, k)
	o, _ := r.CreateWithID(tag)

	require.True(t, r.PostDestroy(o))
	require.True(t, r.Post(o, event.CodeData))
	drain(r)

	assert.Equal(t, 1, k.destroyed)
	assert.Empty(t, k.events, "events for a destroyed id are discarded")
	assert.Nil(t, r.Lookup(o.ID(), AnyTag))
}

func TestFailDeliversErrorBeforeEvent(t *testing.T) {
	r := newRegistry(t, Config{})
	k := &recordingKind{name: "f"}
	tag, _ := r.RegisterKind(0, k)
	o, _ := r.CreateWithID(tag)

	fault := errors.New("bus stuck")
	r.Fail(o, fault)
	assert.Same(t, fault, o.Err(), "error is recorded before dispatch")
	drain(r)

	assert.Equal(t, []string{"error", "event"}, k.order)
	assert.Equal(t, []error{fault}, k.errs)
	assert.Equal(t, []event.Code{event.CodeError}, k.events)
}

func TestPostRequiresID(t *testing.T) {
	r := newRegistry(t, Config{})
	tag, _ := r.RegisterKind(0, plainKind{"p"})
	o, _ := r.Create(tag)
	assert.False(t, r.Post(o, event.CodeData))
	assert.Zero(t, r.Queue().Len())
}

func TestGenericHelpers(t *testing.T) {
	r := newRegistry(t, Config{})
	plain, _ := r.RegisterKind(0, plainKind{"plain"})
	props, _ := r.RegisterKind(0, &propKind{plainKind: plainKind{"props"}, vals: map[int]int64{}})

	p, _ := r.Create(plain)
	buf := make([]byte, 4)
	_, err := r.Read(p, buf)
	assert.ErrorIs(t, err, errno.EIMPLEMENT)
	_, err = r.Write(p, buf)
	assert.ErrorIs(t, err, errno.EIMPLEMENT)
	assert.ErrorIs(t, r.Listen(p, stream.MaskData), errno.EIMPLEMENT)
	assert.ErrorIs(t, r.Ignore(p, stream.MaskData), errno.EIMPLEMENT)
	_, err = r.GetIndex(p, 0)
	assert.ErrorIs(t, err, errno.EIMPLEMENT)
	_, err = r.GetProp(p, "x")
	assert.ErrorIs(t, err, errno.EIMPLEMENT)
	assert.ErrorIs(t, r.SetProp(p, "x", "1"), errno.EIMPLEMENT)

	q, _ := r.Create(props)
	require.NoError(t, r.SetIndex(q, 3, -7))
	v, err := r.GetIndex(q, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(-7), v)

	r.Destroy(q)
	_, err = r.GetIndex(q, 3)
	assert.ErrorIs(t, err, errno.EINVAL)
}
