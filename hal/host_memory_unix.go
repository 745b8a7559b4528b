//go:build !tinygo && unix

package hal

import "golang.org/x/sys/unix"

// mapRegion backs raw memory with an anonymous private mapping, so the
// allocator works on page-aligned memory outside the Go heap.
func mapRegion(size int) []byte {
	pg := unix.Getpagesize()
	size = (size + pg - 1) / pg * pg
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return make([]byte, size)
	}
	return b
}
