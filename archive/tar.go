package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/ulikunitz/xz"

	"github.com/victims/victims"
)

// Compression is the stream compression wrapped around a tar.
type compression int

const (
	compNone compression = iota
	compGzip
	compZstd
	compXz
)

// TarArchive indexes a tar stream in one pass and serves members with
// section readers.
//
// Compressed tars are decompressed once into a spool file, which the
// TarArchive owns and removes on Close.
type tarArchive struct {
	path    string
	ra      io.ReaderAt
	names   []string
	entries map[string]tarEntry
	cleanup func() error
}

type tarEntry struct {
	off, sz int64
}

var _ Archive = (*tarArchive)(nil)

// SizedReaderAt is satisfied by [*io.SectionReader] and [*bytes.Reader].
type sizedReaderAt interface {
	io.ReaderAt
	Size() int64
}

func (o *Opener) openTarFile(ctx context.Context, path string, comp compression) (*tarArchive, error) {
	const op = `archive.Open`
	f, err := os.Open(path)
	if err != nil {
		return nil, extractErr(op, path, err)
	}
	if comp != compNone {
		defer f.Close()
		return o.spoolTar(ctx, path, f, comp)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, extractErr(op, path, err)
	}
	a, err := indexTar(ctx, path, io.NewSectionReader(f, 0, fi.Size()))
	if err != nil {
		f.Close()
		return nil, err
	}
	a.cleanup = f.Close
	return a, nil
}

// SpoolTar decompresses "src" into a temporary file and indexes it.
func (o *Opener) spoolTar(ctx context.Context, path string, src io.Reader, comp compression) (*tarArchive, error) {
	const op = `archive.spoolTar`
	var r io.Reader
	switch comp {
	case compGzip:
		z := getGzip()
		if err := z.Reset(src); err != nil {
			putGzip(z)
			return nil, extractErr(op, path, err)
		}
		defer putGzip(z)
		r = z
	case compZstd:
		z := getZstd()
		if err := z.Reset(src); err != nil {
			putZstd(z)
			return nil, extractErr(op, path, err)
		}
		defer func() {
			z.Reset(nil)
			putZstd(z)
		}()
		r = z
	case compXz:
		z, err := xz.NewReader(src)
		if err != nil {
			return nil, extractErr(op, path, err)
		}
		r = z
	default:
		r = src
	}

	f, err := os.CreateTemp(o.tmpdir, "victims.tar.*")
	if err != nil {
		return nil, &victims.Error{
			Op:      op,
			Kind:    victims.ErrIO,
			Message: "unable to create spool",
			Inner:   err,
		}
	}
	cleanup := func() error {
		return errors.Join(f.Close(), os.Remove(f.Name()))
	}
	buf := getCopyBuf()
	defer putCopyBuf(buf)
	n, err := io.CopyBuffer(f, r, *buf)
	if err != nil {
		return nil, errors.Join(extractErr(op, path, err), cleanup())
	}
	slog.DebugContext(ctx, "spooled tar", "path", path, "spool", f.Name(), "size", n)
	a, err := indexTar(ctx, path, io.NewSectionReader(f, 0, n))
	if err != nil {
		return nil, errors.Join(err, cleanup())
	}
	a.cleanup = cleanup
	return a, nil
}

// IndexTar records the data offset of every regular file in "ra".
func indexTar(ctx context.Context, path string, ra sizedReaderAt) (*tarArchive, error) {
	const op = `archive.indexTar`
	a := tarArchive{
		path:    path,
		ra:      ra,
		entries: make(map[string]tarEntry),
	}
	sr := io.NewSectionReader(ra, 0, ra.Size())
	rd := tar.NewReader(sr)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, err := rd.Next()
		switch {
		case errors.Is(err, nil):
		case errors.Is(err, io.EOF):
			return &a, nil
		default:
			return nil, extractErr(op, path, err)
		}
		if h.Typeflag != tar.TypeReg {
			continue
		}
		// The reader never reads ahead of the header, so the current
		// position is the start of the member's data.
		off, err := sr.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, extractErr(op, path, err)
		}
		if off+h.Size > ra.Size() {
			return nil, extractErr(op, path,
				fmt.Errorf("member %q truncated: %w", h.Name, io.ErrUnexpectedEOF))
		}
		n := normName(h.Name)
		if _, ok := a.entries[n]; !ok {
			a.names = append(a.names, n)
		}
		// Later entries replace earlier ones, as when extracting.
		a.entries[n] = tarEntry{off: off, sz: h.Size}
	}
}

func (a *tarArchive) Kind() Kind       { return Tar }
func (a *tarArchive) Handleable() bool { return true }
func (a *tarArchive) Path() string     { return a.path }

func (a *tarArchive) Names(_ context.Context) ([]string, error) {
	return a.names, nil
}

func (a *tarArchive) Open(ctx context.Context, name string) (*Member, error) {
	const op = `archive.tarArchive.Open`
	n := normName(name)
	e, ok := a.entries[n]
	if !ok {
		return nil, &victims.Error{
			Op:      op,
			Kind:    victims.ErrInvalid,
			Message: a.path + "!" + name,
			Inner:   fs.ErrNotExist,
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := readMember(a.path, n, io.NewSectionReader(a.ra, e.off, e.sz), e.sz)
	if err != nil {
		return nil, extractErr(op, a.path+"!"+name, err)
	}
	return m, nil
}

func (a *tarArchive) Close() error {
	a.entries = nil
	a.ra = nil
	if a.cleanup == nil {
		return nil
	}
	err := a.cleanup()
	a.cleanup = nil
	return err
}
