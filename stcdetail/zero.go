package stcdetail

import (
	"crypto/subtle"
	"runtime"
)

// Zero overwrites b with zeros in a way the compiler cannot elide.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
	runtime.KeepAlive(b)
}

// Zero32 is Zero for a fixed-size seed.
func Zero32(b *[32]byte) {
	Zero(b[:])
}
