// Package datastore defines the interfaces to the vulnerability corpus.
//
// The corpus is a flat table of [victims.Record] values keyed by
// fingerprint. Implementations live in subpackages.
package datastore

import (
	"context"

	"github.com/victims/victims"
)

// Lookup is the interface the matcher uses.
type Lookup interface {
	// Lookup returns every record whose fingerprint is one of "fps" and whose
	// format is one of "formats".
	//
	// The lookup is done as a single logical operation: implementations may
	// split it into several queries but must report an error rather than a
	// partial result.
	Lookup(ctx context.Context, fps []victims.Fingerprint, formats []victims.Format) ([]*victims.Record, error)
}

// Search is used by the version check.
type Search interface {
	// ByNameVersion returns records with exactly the provided name and version.
	ByNameVersion(ctx context.Context, name, version string) ([]*victims.Record, error)
	// ByName returns every record with the provided name, in no particular
	// order.
	ByName(ctx context.Context, name string) ([]*victims.Record, error)
}

// Updater modifies the corpus.
type Updater interface {
	// UpsertRecords inserts the records, replacing any existing record with the
	// same fingerprint. The number of records written is returned.
	UpsertRecords(ctx context.Context, rs []*victims.Record) (int64, error)
	// DeleteRecords removes the records with the provided fingerprints. The
	// number of records removed is returned.
	DeleteRecords(ctx context.Context, fps []victims.Fingerprint) (int64, error)
	// LatestVersion reports the highest DBVersion in the corpus, or 0 if the
	// corpus is empty.
	LatestVersion(ctx context.Context) (int, error)
}

// Store aggregates all interface types.
type Store interface {
	Lookup
	Search
	Updater
	Close() error
}
