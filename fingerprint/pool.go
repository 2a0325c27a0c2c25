package fingerprint

import "sync"

// Pool holds copy buffers for Reader.
var pool sync.Pool

func getBuf() *[]byte {
	const size = 256 * 1024 // 256 KiB
	if b, ok := pool.Get().(*[]byte); ok {
		return b
	}
	b := make([]byte, size)
	return &b
}

func putBuf(b *[]byte) {
	pool.Put(b)
}
