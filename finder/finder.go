// Package finder discovers packages on a filesystem.
//
// Discovery walks a directory tree for files whose names end with one of the
// recognized suffixes and, when asked, looks inside each one for nested
// packages. By default only one level of nesting is examined.
package finder

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime/trace"
	"slices"
	"strings"

	"github.com/victims/victims"
	"github.com/victims/victims/archive"
)

// DefaultSuffixes are the suffixes recognized when none are configured.
var DefaultSuffixes = []string{"jar", "war", "egg", "zip", "tar.gz", "rpm"}

// Options configures Discover.
//
// The zero value walks for [DefaultSuffixes] without looking inside archives.
type Options struct {
	// Suffixes to recognize. A leading dot is optional and case is ignored.
	Suffixes []string
	// LookInside enables discovery of packages nested inside archives.
	LookInside bool
	// MaxDepth is how many levels of nesting LookInside examines. Values less
	// than 1 mean 1, the default: archives found inside archives are reported
	// but not themselves opened.
	MaxDepth int
	// Archive configures how archives are opened.
	Archive []archive.Option
}

// Result is the outcome of Discover.
type Result struct {
	// Packages in discovery order. Top-level packages are immediately
	// followed by anything found inside them.
	Packages []*victims.Package
	// Formats is the union of the format tags of every package in Packages.
	Formats victims.FormatSet
	// Failures lists artifacts that couldn't be introspected. A non-empty
	// Failures means the Result is incomplete.
	Failures []victims.Failure
}

// Release drops any extracted content still held by the packages.
func (r *Result) Release() {
	for _, p := range r.Packages {
		p.Release()
	}
}

type suffix struct {
	lower  string
	format victims.Format
}

type finder struct {
	suffixes   []suffix
	lookInside bool
	maxDepth   int
	opener     *archive.Opener
	res        Result
}

func newFinder(opts *Options) *finder {
	ss := opts.Suffixes
	if len(ss) == 0 {
		ss = DefaultSuffixes
	}
	f := finder{
		lookInside: opts.LookInside,
		maxDepth:   max(opts.MaxDepth, 1),
		opener:     archive.NewOpener(opts.Archive...),
	}
	seen := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		f.suffixes = append(f.suffixes, suffix{
			lower:  "." + s,
			format: victims.FormatOf(s),
		})
	}
	// Longest first, so the most specific suffix wins.
	slices.SortStableFunc(f.suffixes, func(a, b suffix) int {
		return cmp.Compare(len(b.lower), len(a.lower))
	})
	return &f
}

// Match reports the format of the longest recognized suffix of "name".
func (f *finder) match(name string) (victims.Format, bool) {
	name = strings.ToLower(name)
	for _, s := range f.suffixes {
		if strings.HasSuffix(name, s.lower) {
			return s.format, true
		}
	}
	return "", false
}

// Discover finds packages at "root", which may be a directory or a single
// file.
//
// Per-artifact problems are reported in [Result.Failures] and don't stop the
// walk. An error is returned only if the root can't be used or the Context
// is done.
func Discover(ctx context.Context, root string, opts *Options) (*Result, error) {
	const op = `finder.Discover`
	if opts == nil {
		opts = new(Options)
	}
	defer trace.StartRegion(ctx, "finder.Discover").End()
	log := slog.With("root", root)
	log.DebugContext(ctx, "start")

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &victims.Error{Op: op, Kind: victims.ErrInvalid, Message: root, Inner: err}
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		kind := victims.ErrIO
		if errors.Is(err, fs.ErrNotExist) {
			kind = victims.ErrInvalid
		}
		return nil, &victims.Error{Op: op, Kind: kind, Message: "unable to resolve root", Inner: err}
	}
	fi, err := os.Stat(resolved)
	if err != nil {
		return nil, &victims.Error{Op: op, Kind: victims.ErrIO, Message: "unable to stat root", Inner: err}
	}

	f := newFinder(opts)
	switch {
	case fi.Mode().IsRegular():
		if format, ok := f.match(filepath.Base(abs)); ok {
			err = f.emit(ctx, &victims.Package{
				Name:   filepath.Base(abs),
				Path:   resolved,
				Format: format,
			})
		}
	case fi.IsDir():
		err = filepath.WalkDir(resolved, func(p string, d fs.DirEntry, err error) error {
			return f.visit(ctx, p, d, err)
		})
	default:
		return nil, &victims.Error{
			Op:      op,
			Kind:    victims.ErrInvalid,
			Message: fmt.Sprintf("%s: not a regular file or directory", root),
		}
	}
	if err != nil {
		f.res.Release()
		return nil, err
	}
	log.DebugContext(ctx, "done",
		"packages", len(f.res.Packages),
		"formats", f.res.Formats.String(),
		"failures", len(f.res.Failures))
	return &f.res, nil
}

// Visit is the [fs.WalkDirFunc] for a directory walk.
func (f *finder) visit(ctx context.Context, p string, d fs.DirEntry, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if err != nil {
		if d == nil {
			return err
		}
		// A directory that couldn't be read.
		f.fail(&victims.Package{Name: d.Name(), Path: p}, &victims.Error{
			Op:      `finder.visit`,
			Kind:    victims.ErrIO,
			Message: "unable to read directory",
			Inner:   err,
		})
		return nil
	}
	if d.IsDir() {
		return nil
	}
	format, ok := f.match(d.Name())
	if !ok {
		return nil
	}
	pkg := &victims.Package{Name: d.Name(), Path: p, Format: format}
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		f.fail(pkg, &victims.Error{
			Op:      `finder.visit`,
			Kind:    victims.ErrIO,
			Message: "unable to resolve path",
			Inner:   err,
		})
		return nil
	}
	fi, err := os.Stat(resolved)
	switch {
	case err != nil:
		f.fail(pkg, &victims.Error{
			Op:      `finder.visit`,
			Kind:    victims.ErrIO,
			Message: "unable to stat",
			Inner:   err,
		})
		return nil
	case !fi.Mode().IsRegular():
		// Symlinks to directories aren't followed, and special files are
		// never packages.
		slog.DebugContext(ctx, "skipping non-regular file", "path", p, "mode", fi.Mode().Type())
		return nil
	}
	pkg.Path = resolved
	return f.emit(ctx, pkg)
}

// Emit records a top-level package and, if configured, what's inside it.
func (f *finder) emit(ctx context.Context, pkg *victims.Package) error {
	f.add(pkg)
	if !f.lookInside {
		return nil
	}
	a, err := f.opener.Open(ctx, pkg.Path)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		slog.InfoContext(ctx, "unable to look inside package", "package", pkg, "reason", err)
		f.fail(pkg, err)
		return nil
	}
	return f.inside(ctx, pkg, a, 1)
}

// Inside records the recognized members of "a", and descends into them while
// "depth" is below the configured maximum. It always closes "a".
func (f *finder) inside(ctx context.Context, outer *victims.Package, a archive.Archive, depth int) error {
	defer a.Close()
	if !a.Handleable() {
		return nil
	}
	names, err := a.Names(ctx)
	if err != nil {
		f.fail(outer, err)
		return nil
	}
	for _, n := range names {
		format, ok := f.match(path.Base(n))
		if !ok {
			continue
		}
		pkg := &victims.Package{
			Name:   path.Base(n),
			Member: n,
			Parent: a.Path(),
			Format: format,
			Depth:  depth,
		}
		m, err := a.Open(ctx, n)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			f.fail(pkg, err)
			continue
		}
		pkg.Content = m
		f.add(pkg)
		if depth >= f.maxDepth || archive.Detect(n) == archive.Unrecognized {
			continue
		}
		na, err := f.opener.FromMember(ctx, m)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			f.fail(pkg, err)
			continue
		}
		if err := f.inside(ctx, pkg, na, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (f *finder) add(p *victims.Package) {
	f.res.Packages = append(f.res.Packages, p)
	f.res.Formats.Add(p.Format)
}

func (f *finder) fail(p *victims.Package, err error) {
	f.res.Failures = append(f.res.Failures, victims.Failure{Package: p, Err: err})
}
