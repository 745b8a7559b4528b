// Package event is the bounded queue that carries work from interrupt
// context to the cooperative main loop.
package event

// Type is the broad class of an event.
type Type uint8

const (
	TypeNone Type = iota
	// TypeSystick is posted once per tick by the tick interrupt.
	TypeSystick
	// TypeObject targets the object whose id is in Which.
	TypeObject
	// TypeUser is free for application use.
	TypeUser

	numTypes
)

// TypeMask is a set of Types.
type TypeMask uint8

// Mask returns the TypeMask holding only t.
func (t Type) Mask() TypeMask { return 1 << t }

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeSystick:
		return "systick"
	case TypeObject:
		return "object"
	case TypeUser:
		return "user"
	default:
		return "unknown"
	}
}

// Code is a kind-specific sub-event.
type Code uint8

const (
	CodeNone Code = iota
	CodeError
	CodeData
	CodeDrain
	CodeDestroy
	CodeResponse
	CodeRewind
	CodePinEdge
	CodeReady
)

func (c Code) String() string {
	switch c {
	case CodeNone:
		return "none"
	case CodeError:
		return "error"
	case CodeData:
		return "data"
	case CodeDrain:
		return "drain"
	case CodeDestroy:
		return "destroy"
	case CodeResponse:
		return "response"
	case CodeRewind:
		return "rewind"
	case CodePinEdge:
		return "pin_edge"
	case CodeReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Event is a fixed-size record passed through the queue by value.
type Event struct {
	Type  Type
	Code  Code
	Which uint16
}
