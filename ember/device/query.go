package device

import (
	"fmt"

	"ember/ember/alloc"
	"ember/ember/errno"
	"ember/ember/event"
)

// query is the single outstanding transaction of a device. Both buffers
// live in the heap.
type query struct {
	busy   bool
	done   bool
	req    alloc.Ptr
	reqLen int
	resp   alloc.Ptr
	want   int
	got    int
}

func (q *query) free(h *alloc.Heap) {
	h.Free(q.req)
	h.Free(q.resp)
	*q = query{}
}

// Query starts a transaction: req is copied into a device-owned buffer, a
// response buffer of want bytes is reserved, and the driver is started.
// The callback sees RESPONSE once the driver ends the response. Only one
// query may be outstanding; on any failure nothing is left acquired and
// the device stays enabled.
func (d *Device) Query(req []byte, want int) error {
	if err := d.alive(); err != nil {
		return err
	}
	if want < 0 {
		return errno.EINVAL
	}
	if !d.enabled {
		return fmt.Errorf("device: query %s: %w", d, errno.EENABLED)
	}
	if d.q.busy {
		return fmt.Errorf("device: query %s: %w", d, errno.EBUSY)
	}
	qd, ok := d.entry.drv.(Querier)
	if !ok {
		return fmt.Errorf("device: query %s: %w", d, errno.EIMPLEMENT)
	}

	h := d.fw.heap
	var q query
	if len(req) > 0 {
		if q.req = h.Alloc(len(req)); q.req == alloc.Nil {
			return fmt.Errorf("device: query %s: request buffer: %w", d, errno.ENOMEM)
		}
		copy(h.Bytes(q.req, len(req)), req)
		q.reqLen = len(req)
	}
	if want > 0 {
		if q.resp = h.Alloc(want); q.resp == alloc.Nil {
			q.free(h)
			return fmt.Errorf("device: query %s: response buffer: %w", d, errno.ENOMEM)
		}
		q.want = want
	}
	q.busy = true
	d.q = q

	if err := qd.Query(d.inst, d, want); err != nil {
		d.q.free(h)
		d.fw.pending = remove(d.fw.pending, d)
		return fmt.Errorf("device: query %s: %w", d, err)
	}
	return nil
}

// RequestBytes returns the outstanding request for the driver to consume.
func (d *Device) RequestBytes() []byte {
	if !d.q.busy || d.q.reqLen == 0 {
		return nil
	}
	return d.fw.heap.Bytes(d.q.req, d.q.reqLen)
}

// ResponsePush appends response bytes and returns how many fit.
func (d *Device) ResponsePush(p []byte) int {
	if !d.q.busy || d.q.done {
		return 0
	}
	n := copy(d.fw.heap.Bytes(d.q.resp, d.q.want)[d.q.got:], p)
	d.q.got += n
	return n
}

// ResponseEnd finishes the transaction. Completion is delivered through
// the event queue; if the queue is full it is retried on the next Poll.
func (d *Device) ResponseEnd() {
	if !d.q.busy || d.q.done {
		return
	}
	d.q.done = true
	d.postResponse()
}

func (d *Device) postResponse() {
	if !d.q.busy || !d.q.done {
		return
	}
	if !d.fw.reg.Post(d.obj, event.CodeResponse) {
		d.fw.pending = append(d.fw.pending, d)
	}
}

// Response returns the bytes the driver pushed. It is valid inside the
// RESPONSE callback only.
func (d *Device) Response() []byte {
	if !d.q.busy || d.q.got == 0 {
		return nil
	}
	return d.fw.heap.Bytes(d.q.resp, d.q.got)
}

// complete runs the RESPONSE callback, then frees both buffers and clears
// busy.
func (d *Device) complete() {
	if !d.q.busy || !d.q.done {
		return
	}
	d.callback(event.CodeResponse)
	d.q.free(d.fw.heap)
}
