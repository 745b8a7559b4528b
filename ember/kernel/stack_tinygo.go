//go:build tinygo

package kernel

// TinyGo has no runtime/debug.Stack.
func captureStack() []byte { return nil }
