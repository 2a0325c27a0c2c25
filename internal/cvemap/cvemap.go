// Package cvemap builds the queries shared by the corpus stores.
//
// Both stores use the same "cvemap" table layout; only the SQL dialect
// differs.
package cvemap

import (
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v8"
	_ "github.com/doug-martin/goqu/v8/dialect/postgres"
	_ "github.com/doug-martin/goqu/v8/dialect/sqlite3"

	"github.com/victims/victims"
)

// Table is the name of the corpus table.
const Table = `cvemap`

// Dialect names understood by [New].
const (
	Postgres = `postgres`
	SQLite   = `sqlite3`
)

// ChunkSize is the maximum number of fingerprints bound in a single
// statement.
const ChunkSize = 500

var columns = []any{"hash", "name", "version", "vendor", "cves", "db_version", "format"}

// Builder constructs prepared statements for one dialect.
type Builder struct {
	dialect string
	d       goqu.DialectWrapper
}

// New returns a Builder for the named dialect.
func New(dialect string) (Builder, error) {
	switch dialect {
	case Postgres, SQLite:
	default:
		return Builder{}, fmt.Errorf("cvemap: unknown dialect %q", dialect)
	}
	return Builder{dialect: dialect, d: goqu.Dialect(dialect)}, nil
}

// Dialect reports the dialect name.
func (b Builder) Dialect() string { return b.dialect }

func (b Builder) sel() *goqu.SelectDataset {
	return b.d.From(Table).Prepared(true).Select(columns...)
}

// Lookup builds the query for one chunk of fingerprints.
//
// An empty "formats" does not constrain the format column. The format column
// is compared case-insensitively, as rows written by other clients may not
// use the canonical case.
func (b Builder) Lookup(fps []victims.Fingerprint, formats []victims.Format) (string, []any, error) {
	hs := make([]string, len(fps))
	for i, fp := range fps {
		hs[i] = string(fp)
	}
	exps := []goqu.Expression{goqu.C("hash").In(hs)}
	if len(formats) != 0 {
		fs := make([]string, len(formats))
		for i, f := range formats {
			fs[i] = string(victims.FormatOf(string(f)))
		}
		exps = append(exps, goqu.Func("UPPER", goqu.C("format")).In(fs))
	}
	return b.sel().Where(exps...).ToSQL()
}

// ByNameVersion builds the exact name and version query.
func (b Builder) ByNameVersion(name, version string) (string, []any, error) {
	return b.sel().
		Where(goqu.Ex{"name": name}, goqu.Ex{"version": version}).
		Order(goqu.C("hash").Asc()).
		ToSQL()
}

// ByName builds the query for every version of a name.
func (b Builder) ByName(name string) (string, []any, error) {
	return b.sel().
		Where(goqu.Ex{"name": name}).
		Order(goqu.C("version").Asc(), goqu.C("hash").Asc()).
		ToSQL()
}

// Delete builds the statement removing one chunk of fingerprints.
func (b Builder) Delete(fps []victims.Fingerprint) (string, []any, error) {
	hs := make([]string, len(fps))
	for i, fp := range fps {
		hs[i] = string(fp)
	}
	return b.d.Delete(Table).Prepared(true).
		Where(goqu.C("hash").In(hs)).
		ToSQL()
}

// Insert builds a plain multi-row insert.
func (b Builder) Insert(rs []*victims.Record) (string, []any, error) {
	return b.d.Insert(Table).Prepared(true).Rows(rows(rs)...).ToSQL()
}

// Upsert builds a multi-row insert that replaces existing rows with the same
// fingerprint.
//
// Only the postgres dialect renders a conflict target; callers using SQLite
// delete and insert inside a transaction instead.
func (b Builder) Upsert(rs []*victims.Record) (string, []any, error) {
	if b.dialect != Postgres {
		return "", nil, fmt.Errorf("cvemap: upsert not supported for dialect %q", b.dialect)
	}
	return b.d.Insert(Table).Prepared(true).
		Rows(rows(rs)...).
		OnConflict(goqu.DoUpdate("hash", goqu.Record{
			"name":       goqu.L(`EXCLUDED.name`),
			"version":    goqu.L(`EXCLUDED.version`),
			"vendor":     goqu.L(`EXCLUDED.vendor`),
			"cves":       goqu.L(`EXCLUDED.cves`),
			"db_version": goqu.L(`EXCLUDED.db_version`),
			"format":     goqu.L(`EXCLUDED.format`),
		})).
		ToSQL()
}

// LatestVersion builds the query for the highest db_version.
func (b Builder) LatestVersion() (string, []any, error) {
	return b.d.From(Table).
		Select(goqu.COALESCE(goqu.MAX("db_version"), 0)).
		ToSQL()
}

func rows(rs []*victims.Record) []any {
	out := make([]any, len(rs))
	for i, r := range rs {
		out[i] = goqu.Record{
			"hash":       string(r.Fingerprint),
			"name":       r.Name,
			"version":    r.Version,
			"vendor":     r.Vendor,
			"cves":       r.CVEs,
			"db_version": r.DBVersion,
			"format":     string(victims.FormatOf(string(r.Format))),
		}
	}
	return out
}

// Scanner is the subset of the row types of database/sql and pgx used here.
type Scanner interface {
	Scan(dest ...any) error
}

// Scan reads one row produced by a select built by this package.
//
// Columns other than the fingerprint may be NULL in corpora written by other
// tools; those read as zero values.
func Scan(s Scanner) (*victims.Record, error) {
	var (
		r                          victims.Record
		name, ver, vendor, cves, f sql.NullString
		dbv                        sql.NullInt64
	)
	if err := s.Scan(&r.Fingerprint, &name, &ver, &vendor, &cves, &dbv, &f); err != nil {
		return nil, err
	}
	r.Name = name.String
	r.Version = ver.String
	r.Vendor = vendor.String
	r.CVEs = cves.String
	r.DBVersion = int(dbv.Int64)
	r.Format = victims.FormatOf(f.String)
	return &r, nil
}

// Dedup collapses records sharing a fingerprint, keeping the last one in the
// position of the first.
func Dedup(rs []*victims.Record) []*victims.Record {
	idx := make(map[victims.Fingerprint]int, len(rs))
	out := make([]*victims.Record, 0, len(rs))
	for _, r := range rs {
		if i, ok := idx[r.Fingerprint]; ok {
			out[i] = r
			continue
		}
		idx[r.Fingerprint] = len(out)
		out = append(out, r)
	}
	return out
}

// Chunk calls "f" with successive slices of at most [ChunkSize] elements.
func Chunk[T any](s []T, f func([]T) error) error {
	for len(s) > 0 {
		n := min(len(s), ChunkSize)
		if err := f(s[:n]); err != nil {
			return err
		}
		s = s[n:]
	}
	return nil
}
