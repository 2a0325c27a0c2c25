package victims

import (
	"errors"
	"io"
	"os"
	"strings"
)

// Package is one discovered artifact: either a file on disk or a member
// extracted from an enclosing archive.
type Package struct {
	// Name is the base file name of the artifact as seen within its immediate
	// container.
	Name string `json:"name"`
	// Path is the resolved absolute path if the artifact is a real file on
	// disk. It's empty for artifacts extracted from an archive.
	Path string `json:"path,omitempty"`
	// Member is the full member name within Parent.
	Member string `json:"member,omitempty"`
	// Parent is the absolute path of the enclosing archive, or empty for a
	// top-level artifact.
	//
	// For artifacts discovered more than one level deep, Parent is the
	// enclosing archive's provenance string ("outer.war!WEB-INF/lib/x.jar").
	Parent string `json:"parent,omitempty"`
	// Format is the canonical tag of the suffix the artifact matched.
	Format Format `json:"format"`
	// Depth is 0 for top-level artifacts and increases by one for every
	// enclosing archive.
	Depth int `json:"depth,omitempty"`
	// Content is the extracted byte stream for an artifact found inside an
	// archive. It's consumed by a single read and must be closed afterwards.
	Content Content `json:"-"`
}

// Content is an opaque handle on bytes extracted from an enclosing archive.
//
// Close releases the underlying buffer.
type Content interface {
	io.Reader
	io.Closer
}

// ErrConsumed is reported by [Package.Open] for an artifact whose extracted
// content has already been read and released.
var errConsumed = errors.New("extracted content already consumed")

// Internal reports whether the Package was extracted from an enclosing archive.
func (p *Package) Internal() bool {
	return p.Parent != ""
}

// Open returns a reader over the artifact's content.
//
// For internal packages this hands over the extracted content; it can be done
// once. For top-level packages the file is opened anew on every call.
func (p *Package) Open() (io.ReadCloser, error) {
	const op = `victims.Package.Open`
	if p.Content != nil {
		c := p.Content
		p.Content = nil
		return c, nil
	}
	if p.Path == "" {
		return nil, &Error{
			Op:      op,
			Kind:    ErrIO,
			Message: p.String(),
			Inner:   errConsumed,
		}
	}
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, &Error{
			Op:      op,
			Kind:    ErrIO,
			Message: "unable to open artifact",
			Inner:   err,
		}
	}
	return f, nil
}

// Release drops any extracted content that was never consumed.
func (p *Package) Release() error {
	if p.Content == nil {
		return nil
	}
	err := p.Content.Close()
	p.Content = nil
	return err
}

// Provenance returns a string locating the artifact, suitable for use as the
// Parent of anything discovered inside it.
func (p *Package) Provenance() string {
	if !p.Internal() {
		return p.Path
	}
	return p.Parent + "!" + p.Member
}

// String implements fmt.Stringer.
func (p *Package) String() string {
	if !p.Internal() {
		return p.Path
	}
	var b strings.Builder
	b.WriteString(p.Name)
	b.WriteString(" (inside ")
	b.WriteString(p.Parent)
	b.WriteString(")")
	return b.String()
}
