package libscan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/victims/victims"
	"github.com/victims/victims/internal/log"
)

// LoadResult summarizes a call to [Libscan.Load].
type LoadResult struct {
	Removed  int64
	Upserted int64
	// Version is the corpus version after the change.
	Version int
}

// Load applies a batch of corpus changes from a local source: the records
// named in "remove" are deleted, then "add" is upserted.
//
// Fetching records from a remote feed is left to the caller.
func (l *Libscan) Load(ctx context.Context, add []*victims.Record, remove []victims.Fingerprint) (*LoadResult, error) {
	const op = `libscan.Load`
	if err := l.needStore(op); err != nil {
		return nil, err
	}
	for i, r := range add {
		if r == nil || r.Fingerprint == "" {
			return nil, &victims.Error{
				Op:      op,
				Kind:    victims.ErrInvalid,
				Message: fmt.Sprintf("record %d has no fingerprint", i),
			}
		}
	}
	ctx = log.With(ctx, "component", "libscan/Load")
	var res LoadResult
	var err error
	if len(remove) != 0 {
		res.Removed, err = l.store.DeleteRecords(ctx, remove)
		if err != nil {
			return nil, err
		}
	}
	if len(add) != 0 {
		res.Upserted, err = l.store.UpsertRecords(ctx, add)
		if err != nil {
			return nil, err
		}
	}
	res.Version, err = l.store.LatestVersion(ctx)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "corpus updated",
		"removed", res.Removed,
		"upserted", res.Upserted,
		"version", res.Version)
	return &res, nil
}
