// Package libscan is the library entry point: it discovers packages under a
// set of paths, fingerprints them, and matches them against the corpus.
package libscan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Masterminds/semver"

	"github.com/victims/victims"
	"github.com/victims/victims/datastore"
	"github.com/victims/victims/finder"
	"github.com/victims/victims/fingerprint"
	"github.com/victims/victims/internal/log"
	"github.com/victims/victims/matcher"
)

// Libscan scans paths for vulnerable packages.
type Libscan struct {
	store  datastore.Store
	owned  bool
	hasher *fingerprint.Hasher
	finder *finder.Options
	group  *matcher.GroupOptions
}

// New creates a new instance of Libscan.
//
// If the Options name a database URL rather than a Store, the returned
// Libscan owns the store and Close must be called.
func New(ctx context.Context, opts *Options) (*Libscan, error) {
	ctx = log.With(ctx, "component", "libscan/New")
	if opts == nil {
		opts = new(Options)
	}
	h, err := fingerprint.New(opts.Algorithm)
	if err != nil {
		return nil, err
	}
	l := &Libscan{
		store:  opts.Store,
		hasher: h,
		finder: opts.finderOptions(),
		group: &matcher.GroupOptions{
			Policy:  opts.Policy,
			Workers: opts.Workers,
		},
	}
	if l.store == nil && opts.DatabaseURL != "" {
		l.store, err = OpenStore(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		l.owned = true
	}
	slog.DebugContext(ctx, "libscan initialized",
		"algorithm", string(h.Algorithm()),
		"look_inside", l.finder.LookInside,
		"store", l.store != nil)
	return l, nil
}

// Close releases the store, if it was opened by New.
func (l *Libscan) Close() error {
	if l.owned && l.store != nil {
		return l.store.Close()
	}
	return nil
}

var errNoStore = errors.New("no vulnerability corpus configured")

func (l *Libscan) needStore(op string) error {
	if l.store != nil {
		return nil
	}
	return &victims.Error{
		Op:      op,
		Kind:    victims.ErrInvalid,
		Message: "unable to match",
		Inner:   errNoStore,
	}
}

// Scan discovers and matches the packages under each path.
//
// Each path is matched with a single corpus lookup. Per-artifact problems are
// recorded in the Report's Failures; an error is returned if a path can't be
// walked, the corpus can't be queried, or the Context is done.
func (l *Libscan) Scan(ctx context.Context, paths ...string) (*victims.Report, error) {
	const op = `libscan.Scan`
	if err := l.needStore(op); err != nil {
		return nil, err
	}
	rep := victims.NewReport()
	ctx = log.With(ctx, "component", "libscan/Scan", "scan", rep.ID.String())
	for _, p := range paths {
		r, err := l.scanPath(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		rep.Merge(r)
	}
	slog.InfoContext(ctx, "scan done",
		"scanned", rep.Scanned,
		"matches", len(rep.Matches),
		"failures", len(rep.Failures))
	return rep, nil
}

func (l *Libscan) scanPath(ctx context.Context, p string) (*victims.Report, error) {
	ctx = log.With(ctx, "path", p)
	res, err := finder.Discover(ctx, p, l.finder)
	if err != nil {
		return nil, err
	}
	defer res.Release()
	rep := victims.Report{
		Scanned:  len(res.Packages),
		Formats:  res.Formats,
		Failures: res.Failures,
	}

	g, fails, err := matcher.NewGroup(ctx, res.Packages, l.hasher, l.group)
	if err != nil {
		return nil, err
	}
	rep.Failures = append(rep.Failures, fails...)

	rep.Matches, err = matcher.Match(ctx, g, res.Formats, l.store)
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

// Hashed is a package and its fingerprint, as reported by FindHash.
type Hashed struct {
	Fingerprint victims.Fingerprint
	Package     *victims.Package
}

func (h Hashed) String() string {
	return "- " + string(h.Fingerprint) + " " + h.Package.String()
}

// FindHash fingerprints every package under the paths whose base name
// matches "re". Archives are always looked inside.
//
// FindHash doesn't need a corpus.
func (l *Libscan) FindHash(ctx context.Context, re *regexp.Regexp, paths ...string) ([]Hashed, []victims.Failure, error) {
	ctx = log.With(ctx, "component", "libscan/FindHash", "pattern", re.String())
	opts := *l.finder
	opts.LookInside = true

	var out []Hashed
	var fails []victims.Failure
	for _, p := range paths {
		res, err := finder.Discover(ctx, p, &opts)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", p, err)
		}
		fails = append(fails, res.Failures...)
		var want []*victims.Package
		for _, pkg := range res.Packages {
			if re.MatchString(pkg.Name) {
				want = append(want, pkg)
				continue
			}
			pkg.Release()
		}
		g, fs, err := matcher.NewGroup(ctx, want, l.hasher, l.group)
		if err != nil {
			return nil, nil, err
		}
		fails = append(fails, fs...)
		// Report in discovery order rather than grouped.
		byPkg := make(map[*victims.Package]victims.Fingerprint, g.Count())
		for _, fp := range g.Fingerprints() {
			for _, pkg := range g.Packages(fp) {
				byPkg[pkg] = fp
			}
		}
		for _, pkg := range want {
			if fp, ok := byPkg[pkg]; ok {
				out = append(out, Hashed{Fingerprint: fp, Package: pkg})
			}
		}
	}
	slog.DebugContext(ctx, "hashed packages", "count", len(out))
	return out, fails, nil
}

// VersionCheck returns the corpus records for a package name and version.
//
// The version is first compared exactly. If that finds nothing and the
// version is a constraint such as ">= 1.2, < 2", every record for the name
// whose version satisfies it is returned. RPM records are compared as RPM
// versions; other records must hold semantic versions to satisfy a
// constraint.
func (l *Libscan) VersionCheck(ctx context.Context, name, version string) ([]*victims.Record, error) {
	const op = `libscan.VersionCheck`
	if err := l.needStore(op); err != nil {
		return nil, err
	}
	if name == "" || version == "" {
		return nil, &victims.Error{
			Op:      op,
			Kind:    victims.ErrInvalid,
			Message: "a name and version must be provided",
		}
	}
	ctx = log.With(ctx, "component", "libscan/VersionCheck", "name", name, "version", version)
	rs, err := l.store.ByNameVersion(ctx, name, version)
	if err != nil {
		return nil, err
	}
	if len(rs) != 0 || !isConstraint(version) {
		return rs, nil
	}

	// RPM versions aren't semver: "2.4.6-45.el7" would read as a
	// pre-release. Each record is checked with the rules for its format.
	sc, semErr := semver.NewConstraint(version)
	rc, rpmErr := parseRPMConstraint(version)
	if semErr != nil && rpmErr != nil {
		return nil, badConstraint(op, semErr)
	}
	all, err := l.store.ByName(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, r := range all {
		if r.Format == "RPM" {
			if rpmErr != nil {
				return nil, badConstraint(op, rpmErr)
			}
			if rc.Check(r.Version) {
				rs = append(rs, r)
			}
			continue
		}
		if semErr != nil {
			return nil, badConstraint(op, semErr)
		}
		v, err := semver.NewVersion(r.Version)
		if err != nil {
			slog.DebugContext(ctx, "skipping unparsable version", "record", string(r.Fingerprint), "reason", err)
			continue
		}
		if sc.Check(v) {
			rs = append(rs, r)
		}
	}
	return rs, nil
}

func badConstraint(op string, err error) error {
	return &victims.Error{
		Op:      op,
		Kind:    victims.ErrInvalid,
		Message: "malformed version constraint",
		Inner:   err,
	}
}

func isConstraint(v string) bool {
	return strings.ContainsAny(v, "<>=~^*,|") || strings.Contains(v, " - ")
}
