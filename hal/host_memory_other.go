//go:build !tinygo && !unix

package hal

func mapRegion(size int) []byte {
	return make([]byte, size)
}
