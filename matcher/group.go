package matcher

import (
	"context"
	"log/slog"
	"runtime/trace"

	"golang.org/x/sync/errgroup"

	"github.com/victims/victims"
	"github.com/victims/victims/fingerprint"
)

// Group maps fingerprints to the packages that produced them.
//
// Packages under a key are kept in the order they were appended, and keys in
// the order they were first seen. The zero value is ready to use.
type Group struct {
	keys []victims.Fingerprint
	m    map[victims.Fingerprint][]*victims.Package
}

// Append adds "p" under "fp", creating the entry if needed.
func (g *Group) Append(fp victims.Fingerprint, p *victims.Package) {
	if g.m == nil {
		g.m = make(map[victims.Fingerprint][]*victims.Package)
	}
	ps, ok := g.m[fp]
	if !ok {
		g.keys = append(g.keys, fp)
	}
	g.m[fp] = append(ps, p)
}

// Fingerprints returns the distinct fingerprints in order of first sighting.
func (g *Group) Fingerprints() []victims.Fingerprint {
	out := make([]victims.Fingerprint, len(g.keys))
	copy(out, g.keys)
	return out
}

// Packages returns the packages recorded under "fp", or nil.
func (g *Group) Packages(fp victims.Fingerprint) []*victims.Package {
	return g.m[fp]
}

// Len reports the number of distinct fingerprints.
func (g *Group) Len() int { return len(g.keys) }

// Count reports the number of packages across all fingerprints.
func (g *Group) Count() int {
	n := 0
	for _, ps := range g.m {
		n += len(ps)
	}
	return n
}

// Policy controls what NewGroup does when a package can't be hashed.
type Policy uint

const (
	// Partial records the package as a Failure and continues.
	Partial Policy = iota
	// Abort returns the first hashing error.
	Abort
)

// GroupOptions configures NewGroup. A nil pointer is equivalent to the zero
// value.
type GroupOptions struct {
	Policy Policy
	// Workers is the number of packages hashed concurrently. Values less than
	// two hash sequentially.
	Workers int
}

// NewGroup hashes every package and groups them by fingerprint.
//
// A nil Hasher uses the default algorithm. Every package's extracted content
// is released whether or not it was hashed. The returned Group is the same
// regardless of the number of workers used.
//
// Cancelling the Context is always reported as an error.
func NewGroup(ctx context.Context, pkgs []*victims.Package, h *fingerprint.Hasher, opts *GroupOptions) (*Group, []victims.Failure, error) {
	defer trace.StartRegion(ctx, "matcher.NewGroup").End()
	if opts == nil {
		opts = &GroupOptions{}
	}
	if h == nil {
		var err error
		h, err = fingerprint.New(fingerprint.Default)
		if err != nil {
			return nil, nil, err
		}
	}
	log := slog.With("algorithm", string(h.Algorithm()), "packages", len(pkgs))
	log.DebugContext(ctx, "grouping packages", "workers", opts.Workers)

	var (
		res []result
		err error
	)
	if opts.Workers > 1 {
		res, err = hashConcurrent(ctx, pkgs, h, opts)
	} else {
		res, err = hashSequential(ctx, pkgs, h, opts)
	}
	if err != nil {
		return nil, nil, err
	}

	var g Group
	var fails []victims.Failure
	for i, r := range res {
		if r.err != nil {
			fails = append(fails, victims.Failure{Package: pkgs[i], Err: r.err})
			continue
		}
		g.Append(r.fp, pkgs[i])
	}
	hashCounter.WithLabelValues("true").Add(float64(g.Count()))
	hashCounter.WithLabelValues("false").Add(float64(len(fails)))
	log.DebugContext(ctx, "grouped packages", "fingerprints", g.Len(), "failures", len(fails))
	return &g, fails, nil
}

type result struct {
	fp  victims.Fingerprint
	err error
}

func hashSequential(ctx context.Context, pkgs []*victims.Package, h *fingerprint.Hasher, opts *GroupOptions) ([]result, error) {
	res := make([]result, len(pkgs))
	for i, p := range pkgs {
		fp, err := h.Package(ctx, p)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			release(pkgs[i+1:])
			return nil, context.Cause(ctx)
		case opts.Policy == Abort:
			release(pkgs[i+1:])
			return nil, err
		}
		res[i] = result{fp: fp, err: err}
	}
	return res, nil
}

func hashConcurrent(ctx context.Context, pkgs []*victims.Package, h *fingerprint.Hasher, opts *GroupOptions) ([]result, error) {
	res := make([]result, len(pkgs))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.Workers)
	for i, p := range pkgs {
		eg.Go(func() error {
			fp, err := h.Package(gctx, p)
			res[i] = result{fp: fp, err: err}
			if err != nil && opts.Policy == Abort {
				return err
			}
			return nil
		})
	}
	// Packages not hashed because of an early exit have been released by
	// Package, which checks the Context first.
	if err := eg.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, context.Cause(ctx)
	}
	return res, nil
}

func release(pkgs []*victims.Package) {
	for _, p := range pkgs {
		if err := p.Release(); err != nil {
			slog.Debug("release failed", "package", p.String(), "reason", err)
		}
	}
}
