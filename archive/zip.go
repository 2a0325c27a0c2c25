package archive

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/victims/victims"
)

// ZipArchive covers the zip family: zip, jar, war and ear.
type zipArchive struct {
	path  string
	f     *os.File // nil when built over a Member
	names []string
	files map[string]*zip.File
}

var _ Archive = (*zipArchive)(nil)

func openZipFile(ctx context.Context, path string) (*zipArchive, error) {
	const op = `archive.Open`
	f, err := os.Open(path)
	if err != nil {
		return nil, extractErr(op, path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, extractErr(op, path, err)
	}
	z, err := zip.NewReader(f, fi.Size())
	if err != nil {
		f.Close()
		return nil, extractErr(op, path, err)
	}
	a := newZip(ctx, path, z)
	a.f = f
	return a, nil
}

func openZipBytes(ctx context.Context, prov string, b []byte) (*zipArchive, error) {
	z, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, extractErr(`archive.FromMember`, prov, err)
	}
	return newZip(ctx, prov, z), nil
}

func newZip(ctx context.Context, path string, z *zip.Reader) *zipArchive {
	a := zipArchive{
		path:  path,
		files: make(map[string]*zip.File, len(z.File)),
	}
	for _, f := range z.File {
		if strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir() {
			continue
		}
		n := normName(f.Name)
		if _, ok := a.files[n]; ok {
			slog.DebugContext(ctx, "duplicate zip member", "path", path, "member", n)
			continue
		}
		a.files[n] = f
		a.names = append(a.names, n)
	}
	return &a
}

func (a *zipArchive) Kind() Kind       { return Zip }
func (a *zipArchive) Handleable() bool { return true }
func (a *zipArchive) Path() string     { return a.path }

func (a *zipArchive) Names(_ context.Context) ([]string, error) {
	return a.names, nil
}

func (a *zipArchive) Open(ctx context.Context, name string) (*Member, error) {
	const op = `archive.zipArchive.Open`
	f, ok := a.files[normName(name)]
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
	rc, err := f.Open()
	if err != nil {
		return nil, extractErr(op, a.path+"!"+name, err)
	}
	defer rc.Close()
	m, err := readMember(a.path, normName(name), rc, int64(f.UncompressedSize64))
	if err != nil {
		return nil, extractErr(op, a.path+"!"+name, err)
	}
	return m, nil
}

func (a *zipArchive) Close() error {
	a.files = nil
	if a.f == nil {
		return nil
	}
	err := a.f.Close()
	a.f = nil
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
