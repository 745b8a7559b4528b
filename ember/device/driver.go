// Package device is the driver framework: one lifecycle and one
// asynchronous I/O contract for every peripheral.
//
// A driver registers once under a unique name with the number of instances
// it serves. Consumers Request an instance, Enable it, and then talk to it
// through a byte Stream, a one-at-a-time Query transaction, or indexed
// Get/Set properties, depending on which capability interfaces the driver
// implements. Completion and faults come back as events on the device
// object and reach the consumer's callback from the main loop.
package device

import (
	"ember/ember/cfgstruct"
)

// Driver is the part every driver implements.
type Driver interface {
	// Request reserves hardware for inst.
	Request(inst int) error
	// Release undoes Request.
	Release(inst int)
	// Setup brings inst up for d. d.Config() is already populated.
	Setup(inst int, d *Device) error
	// Reset takes inst down again.
	Reset(inst int)
}

// Poller drivers are visited on every main loop pass while enabled.
type Poller interface {
	Poll(inst int, d *Device)
}

// Querier drivers run request/response transactions. Query consumes
// d.RequestBytes(), feeds d.ResponsePush and finishes with d.ResponseEnd,
// now or from a later Poll or interrupt.
type Querier interface {
	Query(inst int, d *Device, want int) error
}

// Reader drivers give the device a receive stream. Read copies what the
// hardware has now; a nil p arms receive notification instead.
type Reader interface {
	Read(inst int, p []byte) (int, error)
}

// Writer drivers give the device a transmit stream. Write sends what the
// hardware accepts now; a nil p arms transmit-ready notification.
type Writer interface {
	Write(inst int, p []byte) (int, error)
}

type Getter interface {
	Get(inst int, index int) (int64, error)
}

type Setter interface {
	Set(inst int, index int, v int64) error
}

// Configurable drivers describe their configuration record.
type Configurable interface {
	Schema() cfgstruct.Schema
}

// StreamSizer overrides the framework's default ring sizes.
type StreamSizer interface {
	StreamSizes() (rx, tx int)
}
