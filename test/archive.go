package test

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cavaliergopher/cpio"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Entry is one member of a generated archive.
type Entry struct {
	Name string
	Body []byte
}

// E is shorthand for constructing an Entry.
func E(name, body string) Entry {
	return Entry{Name: name, Body: []byte(body)}
}

// Modtime is used for every generated member, so fixtures are reproducible.
var modtime = time.Date(2015, time.November, 6, 0, 0, 0, 0, time.UTC)

// ZipBytes returns a zip archive holding the entries, in order.
func ZipBytes(t testing.TB, es ...Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	z := zip.NewWriter(&buf)
	for _, e := range es {
		w, err := z.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Deflate,
			Modified: modtime,
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(e.Body); err != nil {
			t.Fatal(err)
		}
	}
	if err := z.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// Compression selects the stream compression used by [TarBytes].
type Compression int

const (
	Uncompressed Compression = iota
	Gzip
	Zstd
	Xz
)

// TarBytes returns a tar archive holding the entries, compressed as
// requested. Entries with a trailing slash are written as directories.
func TarBytes(t testing.TB, c Compression, es ...Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	var cw io.WriteCloser
	switch c {
	case Uncompressed:
		cw = nopCloser{&buf}
	case Gzip:
		cw = gzip.NewWriter(&buf)
	case Zstd:
		enc, err := zstd.NewWriter(&buf)
		if err != nil {
			t.Fatal(err)
		}
		cw = enc
	case Xz:
		w, err := xz.NewWriter(&buf)
		if err != nil {
			t.Fatal(err)
		}
		cw = w
	default:
		t.Fatalf("unknown compression: %d", c)
	}
	tw := tar.NewWriter(cw)
	for _, e := range es {
		h := &tar.Header{
			Name:     e.Name,
			Mode:     0o644,
			Size:     int64(len(e.Body)),
			ModTime:  modtime,
			Typeflag: tar.TypeReg,
		}
		if len(e.Name) > 0 && e.Name[len(e.Name)-1] == '/' {
			h.Typeflag = tar.TypeDir
			h.Mode = 0o755
			h.Size = 0
		}
		if err := tw.WriteHeader(h); err != nil {
			t.Fatal(err)
		}
		if h.Typeflag == tar.TypeReg {
			if _, err := tw.Write(e.Body); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := cw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// CpioBytes returns a "newc" cpio stream holding the entries, in the shape
// rpm2cpio produces: member names have a leading "./" and directories are
// listed before their contents.
func CpioBytes(t testing.TB, es ...Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := cpio.NewWriter(&buf)
	for _, e := range es {
		h := &cpio.Header{
			Name:    e.Name,
			Mode:    cpio.TypeReg | 0o644,
			Size:    int64(len(e.Body)),
			ModTime: modtime,
		}
		if len(e.Name) > 0 && e.Name[len(e.Name)-1] == '/' {
			h.Name = e.Name[:len(e.Name)-1]
			h.Mode = cpio.TypeDir | 0o755
			h.Size = 0
		}
		if err := w.WriteHeader(h); err != nil {
			t.Fatal(err)
		}
		if h.Size > 0 {
			if _, err := w.Write(e.Body); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// WriteFile writes "b" to "name" inside "dir", creating any intermediate
// directories, and returns the full path.
func WriteFile(t testing.TB, dir, name string, b []byte) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// FakeConverter writes an executable standing in for rpm2cpio that ignores
// its argument and prints "payload" to stdout.
func FakeConverter(t testing.TB, payload []byte) string {
	t.Helper()
	dir := t.TempDir()
	data := WriteFile(t, dir, "payload.cpio", payload)
	return script(t, dir, "#!/bin/sh\nexec cat '"+data+"'\n")
}

// FailingConverter writes an executable standing in for rpm2cpio that
// complains on stderr and exits non-zero.
func FailingConverter(t testing.TB) string {
	t.Helper()
	return script(t, t.TempDir(), "#!/bin/sh\necho \"error: $1: not an rpm package\" >&2\nexit 1\n")
}

// SlowConverter writes an executable standing in for rpm2cpio that never
// finishes on its own.
func SlowConverter(t testing.TB) string {
	t.Helper()
	return script(t, t.TempDir(), "#!/bin/sh\nsleep 600 &\nwait\n")
}

func script(t testing.TB, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "rpm2cpio")
	if err := os.WriteFile(p, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return p
}
