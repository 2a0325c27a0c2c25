package archive

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Package-level pools for the respective objects.
var (
	bufpool  sync.Pool
	copypool sync.Pool
	zstdpool sync.Pool
	gzippool sync.Pool
)

// GetBuf pulls a member buffer from the pool.
func getBuf() *bytes.Buffer {
	if b, ok := bufpool.Get().(*bytes.Buffer); ok {
		return b
	}
	return new(bytes.Buffer)
}

// PutBuf returns a member buffer to the pool.
func putBuf(b *bytes.Buffer) {
	b.Reset()
	bufpool.Put(b)
}

// GetCopyBuf pulls a spool copy buffer from the pool.
func getCopyBuf() *[]byte {
	if b, ok := copypool.Get().(*[]byte); ok {
		return b
	}
	b := make([]byte, 1024*1024)
	return &b
}

// PutCopyBuf returns a spool copy buffer to the pool.
func putCopyBuf(b *[]byte) { copypool.Put(b) }

// GetZstd pulls an initialized decoder from the pool.
func getZstd() *zstd.Decoder {
	if d, ok := zstdpool.Get().(*zstd.Decoder); ok {
		return d
	}
	d, err := zstd.NewReader(nil)
	if err != nil {
		// A nil Reader causes only internal setup allocations.
		panic(fmt.Sprintf("error creating zstd reader: %v", err))
	}
	return d
}

// PutZstd returns a decoder to the pool.
func putZstd(d *zstd.Decoder) { zstdpool.Put(d) }

// GetGzip pulls a reader from the pool.
func getGzip() *gzip.Reader {
	if r, ok := gzippool.Get().(*gzip.Reader); ok {
		return r
	}
	return new(gzip.Reader)
}

// PutGzip returns a reader to the pool.
func putGzip(r *gzip.Reader) { gzippool.Put(r) }
