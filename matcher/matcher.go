// Package matcher groups discovered packages by fingerprint and matches the
// groups against the vulnerability corpus.
package matcher

import (
	"context"
	"log/slog"
	"runtime/trace"
	"strconv"
	"time"

	"github.com/victims/victims"
	"github.com/victims/victims/datastore"
)

// Match pairs every package in "g" with each corpus record sharing its
// fingerprint.
//
// The corpus is consulted with exactly one Lookup call, restricted to the
// formats in "formats". Nothing is looked up if either the group or the
// format set is empty. Records for fingerprints or formats that weren't asked
// for are dropped.
//
// Matches are ordered by the group's fingerprint order, then by the order the
// store returned records, then by package order within the group. A store
// failure is reported as an error with kind [victims.ErrStore] and no matches.
func Match(ctx context.Context, g *Group, formats victims.FormatSet, store datastore.Lookup) ([]victims.Match, error) {
	const op = `matcher.Match`
	defer trace.StartRegion(ctx, "matcher.Match").End()
	if g == nil || g.Len() == 0 || formats.Len() == 0 {
		slog.DebugContext(ctx, "nothing to look up")
		return nil, nil
	}
	fps := g.Fingerprints()
	log := slog.With("fingerprints", len(fps), "formats", formats.String())

	start := time.Now()
	rs, err := store.Lookup(ctx, fps, formats.Slice())
	ok := strconv.FormatBool(err == nil)
	lookupCounter.WithLabelValues(ok).Inc()
	lookupDuration.WithLabelValues(ok).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &victims.Error{
			Op:      op,
			Kind:    victims.ErrStore,
			Message: "corpus lookup failed",
			Inner:   err,
		}
	}

	byFP := make(map[victims.Fingerprint][]*victims.Record, len(rs))
	for _, r := range rs {
		switch {
		case g.Packages(r.Fingerprint) == nil:
			log.WarnContext(ctx, "store returned record for unrequested fingerprint",
				"hash", string(r.Fingerprint), "name", r.Name)
			continue
		case !formats.Has(r.Format):
			log.WarnContext(ctx, "store returned record for unrequested format",
				"hash", string(r.Fingerprint), "format", string(r.Format))
			continue
		}
		byFP[r.Fingerprint] = append(byFP[r.Fingerprint], r)
	}

	var out []victims.Match
	for _, fp := range fps {
		for _, r := range byFP[fp] {
			for _, p := range g.Packages(fp) {
				out = append(out, victims.Match{Package: p, Record: r})
			}
		}
	}
	matchCounter.Add(float64(len(out)))
	log.DebugContext(ctx, "matched", "records", len(rs), "matches", len(out))
	return out, nil
}
