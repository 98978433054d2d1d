// Package memzero wipes secret material held in byte slices.
package memzero

// Zero overwrites every buffer with zeros. Nil buffers are skipped.
func Zero(bufs ...[]byte) {
	for _, b := range bufs {
		clear(b)
	}
}
