package object

import (
	"fmt"

	"ember/ember/alloc"
	"ember/ember/errno"
	"ember/ember/event"
	"ember/hal"
)

// headerSize is the heap footprint of an object before its payload.
const headerSize = 16

// Config bounds the registry.
type Config struct {
	// MaxIDs is the size of the id table. Zero means 32.
	MaxIDs int
	// MaxKinds bounds RegisterKind. Zero means 16.
	MaxKinds int
}

type kind struct {
	name string
	size int
	desc Descriptor
}

// Registry owns every object. It runs on the main loop only; interrupt
// context reaches objects through the event queue.
type Registry struct {
	heap     *alloc.Heap
	q        *event.Queue
	log      hal.Logger
	kinds    []kind
	maxKinds int
	ids      []*Object
	live     int
}

// NewRegistry returns an empty registry drawing memory from h and posting
// events to q.
func NewRegistry(h *alloc.Heap, q *event.Queue, cfg Config, log hal.Logger) *Registry {
	if cfg.MaxIDs <= 0 {
		cfg.MaxIDs = 32
	}
	if cfg.MaxIDs > 0xfffe {
		cfg.MaxIDs = 0xfffe
	}
	if cfg.MaxKinds <= 0 {
		cfg.MaxKinds = 16
	}
	if cfg.MaxKinds >= int(AnyTag) {
		cfg.MaxKinds = int(AnyTag) - 1
	}
	return &Registry{
		heap:     h,
		q:        q,
		log:      log,
		maxKinds: cfg.MaxKinds,
		ids:      make([]*Object, cfg.MaxIDs),
	}
}

func (r *Registry) logf(format string, args ...any) {
	if r.log == nil {
		return
	}
	r.log.WriteLineString("object: " + fmt.Sprintf(format, args...))
}

// Queue returns the event queue objects post to.
func (r *Registry) Queue() *event.Queue { return r.q }

// Heap returns the heap objects are allocated from.
func (r *Registry) Heap() *alloc.Heap { return r.heap }

// RegisterKind adds a kind whose objects carry payloadSize bytes of heap
// state. Kind names are unique.
func (r *Registry) RegisterKind(payloadSize int, d Descriptor) (Tag, error) {
	if d == nil || payloadSize < 0 {
		return 0, errno.EINVAL
	}
	for _, k := range r.kinds {
		if k.name == d.Name() {
			return 0, fmt.Errorf("object: kind %q: %w", d.Name(), errno.ENAME)
		}
	}
	if len(r.kinds) >= r.maxKinds {
		return 0, fmt.Errorf("object: kind %q: %w", d.Name(), errno.ERESOURCE)
	}
	r.kinds = append(r.kinds, kind{name: d.Name(), size: payloadSize, desc: d})
	return Tag(len(r.kinds) - 1), nil
}

// KindName returns the name tag was registered with.
func (r *Registry) KindName(tag Tag) string {
	if int(tag) >= len(r.kinds) {
		return ""
	}
	return r.kinds[tag].name
}

func (r *Registry) descriptor(o *Object) Descriptor {
	return r.kinds[o.tag].desc
}

// Create makes an object of kind tag without an id. The returned object
// holds one reference.
func (r *Registry) Create(tag Tag) (*Object, error) {
	if int(tag) >= len(r.kinds) {
		return nil, errno.EINVAL
	}
	k := &r.kinds[tag]
	mem := r.heap.Alloc(headerSize + k.size)
	if mem == alloc.Nil {
		return nil, fmt.Errorf("object: create %s: %w", k.name, errno.ENOMEM)
	}
	r.live++
	return &Object{tag: tag, ref: 1, mem: mem}, nil
}

// CreateWithID makes an object and maps it to the first free id.
func (r *Registry) CreateWithID(tag Tag) (*Object, error) {
	slot := -1
	for i, o := range r.ids {
		if o == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		return nil, fmt.Errorf("object: create %s: id table full: %w", r.KindName(tag), errno.ERESOURCE)
	}
	o, err := r.Create(tag)
	if err != nil {
		return nil, err
	}
	o.id = ID(slot + 1)
	r.ids[slot] = o
	return o, nil
}

// Destroy runs the kind's destroy hook, releases the id and frees the
// object. Destroying a dead object does nothing.
func (r *Registry) Destroy(o *Object) {
	if o == nil || o.dead {
		return
	}
	o.dead = true
	if d, ok := r.descriptor(o).(Destroyer); ok {
		d.Destroy(o)
	}
	if o.id != NoID {
		r.ids[o.id-1] = nil
	}
	r.heap.Free(o.mem)
	o.mem = alloc.Nil
	r.live--
}

// Retain adds a reference.
func (r *Registry) Retain(o *Object) {
	if o != nil && !o.dead {
		o.ref++
	}
}

// Release drops a reference and destroys the object with the last one.
func (r *Registry) Release(o *Object) {
	if o == nil || o.dead {
		return
	}
	o.ref--
	if o.ref <= 0 {
		r.Destroy(o)
	}
}

// Lookup finds a live object by id. AnyTag skips the kind check.
func (r *Registry) Lookup(id ID, tag Tag) *Object {
	if id == NoID || int(id) > len(r.ids) {
		return nil
	}
	o := r.ids[id-1]
	if o == nil || (tag != AnyTag && o.tag != tag) {
		return nil
	}
	return o
}

// Live reports the number of live objects.
func (r *Registry) Live() int { return r.live }

// FreeIDs reports the number of unused id slots.
func (r *Registry) FreeIDs() int {
	n := 0
	for _, o := range r.ids {
		if o == nil {
			n++
		}
	}
	return n
}

// Post queues an event for o. It is safe from interrupt context as long as
// o stays alive.
func (r *Registry) Post(o *Object, code event.Code) bool {
	if o == nil || o.id == NoID {
		return false
	}
	return r.q.Post(event.TypeObject, code, uint16(o.id))
}

// PostDestroy asks the main loop to destroy o.
func (r *Registry) PostDestroy(o *Object) bool {
	return r.Post(o, event.CodeDestroy)
}

// Fail records err on o and queues an ERROR event so the failure reaches
// the consumer on the next dispatch pass.
func (r *Registry) Fail(o *Object, err error) {
	if o == nil || err == nil {
		return
	}
	o.err = err
	r.logf("%s#%d: %v", r.KindName(o.tag), o.id, err)
	if !r.Post(o, event.CodeError) {
		r.logf("%s#%d: error event dropped", r.KindName(o.tag), o.id)
	}
}

// Dispatch delivers an object event. DESTROY always destroys, without
// consulting the kind.
func (r *Registry) Dispatch(ev event.Event) {
	if ev.Type != event.TypeObject {
		return
	}
	o := r.Lookup(ID(ev.Which), AnyTag)
	if o == nil {
		return
	}
	if ev.Code == event.CodeDestroy {
		r.Destroy(o)
		return
	}
	d := r.descriptor(o)
	if ev.Code == event.CodeError {
		if eh, ok := d.(ErrorHandler); ok {
			eh.HandleError(o, o.err)
		}
	}
	if eh, ok := d.(EventHandler); ok {
		eh.HandleEvent(o, ev.Code)
	}
}
