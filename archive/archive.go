// Package archive gives uniform access to the members of the container
// formats the scanner can look inside.
//
// The set of formats is closed: every [Archive] is one of the [Kind] values.
// Files with a suffix that maps to no container format get an Archive that
// reports itself as not [Archive.Handleable], rather than an error, so that
// callers can skip them without special-casing.
package archive

import (
	"context"
	"fmt"
	"path"
	"runtime"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/victims/victims"
)

// Kind is the container family of an Archive.
type Kind int

// Container families.
const (
	Unrecognized Kind = iota
	Zip
	Tar
	RPM
)

func (k Kind) String() string {
	switch k {
	case Unrecognized:
		return "unrecognized"
	case Zip:
		return "zip"
	case Tar:
		return "tar"
	case RPM:
		return "rpm"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Suffixes maps a lower-cased name suffix to the container family and the
// stream compression it implies. Longer suffixes must be checked first.
var suffixes = []struct {
	suffix string
	kind   Kind
	comp   compression
}{
	{".tar.gz", Tar, compGzip},
	{".tar.zst", Tar, compZstd},
	{".tar.xz", Tar, compXz},
	{".tgz", Tar, compGzip},
	{".tar", Tar, compNone},
	{".zip", Zip, compNone},
	{".jar", Zip, compNone},
	{".war", Zip, compNone},
	{".ear", Zip, compNone},
	{".rpm", RPM, compNone},
}

func detect(name string) (Kind, compression) {
	name = strings.ToLower(path.Base(name))
	for _, s := range suffixes {
		if strings.HasSuffix(name, s.suffix) {
			return s.kind, s.comp
		}
	}
	return Unrecognized, compNone
}

// Detect reports the container family for a file name. Matching is on the
// suffix and ignores case.
func Detect(name string) Kind {
	k, _ := detect(name)
	return k
}

// Archive is the capability common to every container format.
type Archive interface {
	// Kind reports the container family.
	Kind() Kind
	// Handleable reports whether the members can be listed and opened. Only
	// Unrecognized archives report false.
	Handleable() bool
	// Path reports the provenance of the archive: a filesystem path, or for an
	// archive built with [FromMember] the "parent!member" string.
	Path() string
	// Names lists the regular-file members, in archive order.
	Names(ctx context.Context) ([]string, error)
	// Open extracts the named member into memory.
	Open(ctx context.Context, name string) (*Member, error)
	// Close releases any resources held by the Archive. Members already
	// returned by Open remain valid.
	Close() error
}

// Option configures an [Opener].
type Option func(*Opener)

// WithConverter sets the executable used to turn an RPM into a cpio stream.
// It's invoked as "<converter> <path>".
func WithConverter(path string) Option {
	return func(o *Opener) {
		if path != "" {
			o.converter = path
		}
	}
}

// WithConcurrency bounds the number of converter processes an Opener runs at
// once. Without this option all Openers share a bound of GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(o *Opener) {
		if n > 0 {
			o.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithTempDir sets the directory for decompression spools. The default is
// [os.TempDir].
func WithTempDir(dir string) Option {
	return func(o *Opener) {
		o.tmpdir = dir
	}
}

// DefaultConverter is the executable used for RPMs unless overridden.
const DefaultConverter = `rpm2cpio`

var defaultSem = semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0)))

// Opener constructs Archives with a fixed configuration.
//
// An Opener is safe for concurrent use.
type Opener struct {
	converter string
	tmpdir    string
	sem       *semaphore.Weighted
}

// NewOpener returns an Opener configured by the provided Options.
func NewOpener(opts ...Option) *Opener {
	o := Opener{
		converter: DefaultConverter,
		sem:       defaultSem,
	}
	for _, f := range opts {
		f(&o)
	}
	return &o
}

// Open is shorthand for NewOpener(opts...).Open(ctx, path).
func Open(ctx context.Context, path string, opts ...Option) (Archive, error) {
	return NewOpener(opts...).Open(ctx, path)
}

// FromMember is shorthand for NewOpener(opts...).FromMember(ctx, m).
func FromMember(ctx context.Context, m *Member, opts ...Option) (Archive, error) {
	return NewOpener(opts...).FromMember(ctx, m)
}

// Open returns an Archive over the file at "path", chosen by its suffix.
//
// An unrecognized suffix yields an Archive that is not handleable and a nil
// error. A recognized suffix whose content can't be introspected yields an
// error of kind [victims.ErrExtract].
func (o *Opener) Open(ctx context.Context, path string) (_ Archive, err error) {
	kind, comp := detect(path)
	ctx, span := tracer.Start(ctx, "Open", trace.WithAttributes(
		attribute.String("kind", kind.String()),
		attribute.String("path", path),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "open failed")
		}
		span.End()
	}()
	openCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind.String()),
		attribute.Bool("nested", false),
	))

	var a Archive
	switch kind {
	case Zip:
		a, err = wrap(openZipFile(ctx, path))
	case Tar:
		a, err = wrap(o.openTarFile(ctx, path, comp))
	case RPM:
		a, err = wrap(o.openRPM(ctx, path, path))
	default:
		a = unrecognized{path: path}
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// FromMember returns an Archive over a member extracted from an enclosing
// archive. This is what allows descending more than one level.
//
// The returned Archive reads the Member's bytes without consuming them; the
// Member must stay open while the Archive is in use.
func (o *Opener) FromMember(ctx context.Context, m *Member) (_ Archive, err error) {
	kind, comp := detect(m.Name)
	prov := m.Provenance()
	ctx, span := tracer.Start(ctx, "FromMember", trace.WithAttributes(
		attribute.String("kind", kind.String()),
		attribute.String("path", prov),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "open failed")
		}
		span.End()
	}()
	openCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind.String()),
		attribute.Bool("nested", true),
	))

	if m.r == nil {
		return nil, &victims.Error{
			Op:      "archive.FromMember",
			Kind:    victims.ErrInvalid,
			Message: prov,
			Inner:   errClosed,
		}
	}
	var a Archive
	switch kind {
	case Zip:
		a, err = wrap(openZipBytes(ctx, prov, m.data))
	case Tar:
		if comp == compNone {
			a, err = wrap(indexTar(ctx, prov, m.reader()))
		} else {
			a, err = wrap(o.spoolTar(ctx, prov, m.reader(), comp))
		}
	case RPM:
		a, err = wrap(o.openRPMBytes(ctx, prov, m.data))
	default:
		a = unrecognized{path: prov}
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Wrap converts a concrete Archive into the interface without letting a nil
// pointer become a non-nil interface value.
func wrap[A Archive](a A, err error) (Archive, error) {
	if err != nil {
		return nil, err
	}
	return a, nil
}

func extractErr(op, path string, err error) error {
	return &victims.Error{
		Op:      op,
		Kind:    victims.ErrExtract,
		Message: path,
		Inner:   err,
	}
}

// NormName removes relative elements and any leading slash. This is needed any
// time a name is pulled from an archive.
func normName(p string) string {
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}
