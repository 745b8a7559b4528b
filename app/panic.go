package app

import (
	"fmt"
	"strings"

	"ember/ember/kernel"
	"ember/hal"
)

// installPanicHandler logs the first handler panic with its stack. The
// kernel stops dispatching afterwards and Run returns the panic as an error.
func installPanicHandler(k *kernel.Kernel, l hal.Logger) {
	if l == nil {
		return
	}
	k.OnPanic(func(info kernel.PanicInfo) {
		l.WriteLineString(fmt.Sprintf("ember panic: tick=%d event=%s/%s which=%d panic=%v",
			info.Tick, info.Event.Type, info.Event.Code, info.Event.Which, info.Value))
		if len(info.Stack) == 0 {
			l.WriteLineString("stack: unavailable")
			return
		}
		for _, line := range strings.Split(string(info.Stack), "\n") {
			if line == "" {
				continue
			}
			l.WriteLineString(line)
		}
	})
}
