package archive

import (
	"bytes"
	"errors"
	"io"
	"path"
)

// Member is the content of one archive member, extracted into memory.
//
// Member implements [victims.Content]: it's read once and then closed, which
// releases the buffer.
type Member struct {
	// Name is the full, normalized member name within the archive.
	Name string
	// Parent is the provenance of the enclosing archive.
	Parent string

	data []byte
	buf  *bytes.Buffer // non-nil if data is borrowed from the pool
	r    *bytes.Reader
}

var errClosed = errors.New("archive: member closed")

func newMember(parent, name string, data []byte) *Member {
	return &Member{
		Name:   name,
		Parent: parent,
		data:   data,
		r:      bytes.NewReader(data),
	}
}

// ReadMember copies "r" into a pooled buffer.
func readMember(parent, name string, r io.Reader, hint int64) (*Member, error) {
	const maxHint = 64 * 1024 * 1024 // 64 MiB
	buf := getBuf()
	if hint > 0 && hint <= maxHint {
		buf.Grow(int(hint))
	}
	if _, err := buf.ReadFrom(r); err != nil {
		putBuf(buf)
		return nil, err
	}
	m := newMember(parent, name, buf.Bytes())
	m.buf = buf
	return m, nil
}

// Base reports the last element of the member name.
func (m *Member) Base() string { return path.Base(m.Name) }

// Size reports the length of the extracted content.
func (m *Member) Size() int64 { return int64(len(m.data)) }

// Provenance locates the member: the parent's provenance and the member name
// joined by "!".
func (m *Member) Provenance() string { return m.Parent + "!" + m.Name }

// Read implements [io.Reader].
func (m *Member) Read(p []byte) (int, error) {
	if m.r == nil {
		return 0, errClosed
	}
	return m.r.Read(p)
}

// Close implements [io.Closer]. It's safe to call more than once.
func (m *Member) Close() error {
	if m.buf != nil {
		putBuf(m.buf)
		m.buf = nil
	}
	m.data = nil
	m.r = nil
	return nil
}

// Reader returns an independent reader over the content, leaving the read
// position of the Member untouched.
func (m *Member) reader() *bytes.Reader {
	return bytes.NewReader(m.data)
}
