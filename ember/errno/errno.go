// Package errno defines the runtime's error taxonomy.
//
// Every failure the core reports is a small negative integer. Errno values
// implement error so they travel through ordinary Go error returns and can be
// wrapped with fmt.Errorf and matched with errors.Is.
package errno

import "errors"

// Errno is a negative runtime error code.
type Errno int8

const (
	EINVAL     Errno = -(iota + 1) // invalid argument
	ERESOURCE                      // resource limit reached
	ENOMEM                         // not enough memory
	EIMPLEMENT                     // operation not implemented by the driver or kind
	EBUSY                          // device busy
	EENABLED                       // device not enabled
	EHARDWARE                      // hardware fault
	ETIMEOUT                       // timeout
	ENAME                          // name or registration conflict
)

func (e Errno) Error() string {
	switch e {
	case EINVAL:
		return "invalid argument"
	case ERESOURCE:
		return "resource limit reached"
	case ENOMEM:
		return "not enough memory"
	case EIMPLEMENT:
		return "not implemented"
	case EBUSY:
		return "busy"
	case EENABLED:
		return "not enabled"
	case EHARDWARE:
		return "hardware fault"
	case ETIMEOUT:
		return "timeout"
	case ENAME:
		return "name conflict"
	default:
		return "unknown error"
	}
}

// Code maps err to its negative code. Nil maps to 0 and errors that do not
// wrap an Errno are reported as EHARDWARE, since they come from a driver or
// the platform.
func Code(err error) int {
	if err == nil {
		return 0
	}
	var e Errno
	if errors.As(err, &e) {
		return int(e)
	}
	return int(EHARDWARE)
}
