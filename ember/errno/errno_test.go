package errno

import (
	"errors"
	"fmt"
	"testing"
)

func TestCode(t *testing.T) {
	if got := Code(nil); got != 0 {
		t.Fatalf("Code(nil) = %d, want 0", got)
	}
	if got := Code(EBUSY); got != int(EBUSY) {
		t.Fatalf("Code(EBUSY) = %d, want %d", got, EBUSY)
	}
	wrapped := fmt.Errorf("device uart0: %w", ENOMEM)
	if got := Code(wrapped); got != int(ENOMEM) {
		t.Fatalf("Code(wrapped) = %d, want %d", got, ENOMEM)
	}
	if !errors.Is(wrapped, ENOMEM) {
		t.Fatalf("errors.Is(wrapped, ENOMEM) = false")
	}
	if got := Code(errors.New("nack")); got != int(EHARDWARE) {
		t.Fatalf("Code(foreign) = %d, want %d", got, EHARDWARE)
	}
}

func TestCodesAreNegativeAndDistinct(t *testing.T) {
	all := []Errno{EINVAL, ERESOURCE, ENOMEM, EIMPLEMENT, EBUSY, EENABLED, EHARDWARE, ETIMEOUT, ENAME}
	seen := make(map[Errno]bool)
	for _, e := range all {
		if e >= 0 {
			t.Fatalf("%v = %d, want negative", e, int(e))
		}
		if seen[e] {
			t.Fatalf("duplicate code %d", int(e))
		}
		seen[e] = true
		if e.Error() == "unknown error" {
			t.Fatalf("code %d has no message", int(e))
		}
	}
}
