// Package sqlite implements the corpus store on a local SQLite database.
//
// This is the default store. Databases written by earlier victims clients are
// read as-is: the table layout is the same.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed" // embed the schema
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // register the sqlite driver

	"github.com/victims/victims"
	"github.com/victims/victims/datastore"
	"github.com/victims/victims/internal/cvemap"
	"github.com/victims/victims/internal/storemetrics"
)

//go:embed schema.sql
var schema string

var metrics = storemetrics.New("datastore_sqlite")

// Memory is the path that selects a private in-memory database.
const Memory = `:memory:`

var _ datastore.Store = (*Store)(nil)

// Store is a corpus store backed by SQLite.
type Store struct {
	db *sql.DB
	q  cvemap.Builder
}

// Open opens or creates the database at "path" and ensures the corpus table
// exists. The parent directory is created if needed.
//
// An empty path or [Memory] opens an in-memory database that lives until
// Close is called.
func Open(ctx context.Context, path string) (*Store, error) {
	const op = `datastore/sqlite.Open`
	mem := path == "" || path == Memory
	u := url.URL{
		Scheme: `file`,
		Opaque: path,
		RawQuery: url.Values{
			"_pragma": {
				"busy_timeout(5000)",
			},
		}.Encode(),
	}
	if mem {
		u.Opaque = Memory
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, &victims.Error{
				Op:      op,
				Kind:    victims.ErrStore,
				Message: "unable to create database directory",
				Inner:   err,
			}
		}
	}
	db, err := sql.Open(`sqlite`, u.String())
	if err != nil {
		return nil, &victims.Error{
			Op:      op,
			Kind:    victims.ErrStore,
			Message: "unable to open database",
			Inner:   err,
		}
	}
	if mem {
		// Every connection would otherwise see its own database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, &victims.Error{
			Op:      op,
			Kind:    victims.ErrStore,
			Message: "unable to initialize database",
			Inner:   errors.Join(err, db.Close()),
		}
	}
	q, err := cvemap.New(cvemap.SQLite)
	if err != nil {
		db.Close()
		return nil, err
	}
	slog.DebugContext(ctx, "opened corpus", "path", u.Opaque)
	return &Store{db: db, q: q}, nil
}

// Close releases held resources.
func (s *Store) Close() error {
	return s.db.Close()
}

func storeErr(op, msg string, err error) error {
	return &victims.Error{
		Op:      op,
		Kind:    victims.ErrStore,
		Message: msg,
		Inner:   err,
	}
}

func (s *Store) query(ctx context.Context, stmt string, args []any) ([]*victims.Record, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*victims.Record
	for rows.Next() {
		r, err := cvemap.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Lookup implements [datastore.Lookup].
func (s *Store) Lookup(ctx context.Context, fps []victims.Fingerprint, formats []victims.Format) (_ []*victims.Record, err error) {
	const op = `datastore/sqlite.Lookup`
	q := metrics.Query("lookup")
	defer q.Start(&err)()
	var out []*victims.Record
	err = cvemap.Chunk(fps, func(c []victims.Fingerprint) error {
		stmt, args, err := s.q.Lookup(c, formats)
		if err != nil {
			return err
		}
		rs, err := s.query(ctx, stmt, args)
		if err != nil {
			return err
		}
		out = append(out, rs...)
		return nil
	})
	if err != nil {
		return nil, storeErr(op, "lookup failed", err)
	}
	return out, nil
}

// ByNameVersion implements [datastore.Search].
func (s *Store) ByNameVersion(ctx context.Context, name, version string) (_ []*victims.Record, err error) {
	const op = `datastore/sqlite.ByNameVersion`
	q := metrics.Query("by_name_version")
	defer q.Start(&err)()
	stmt, args, err := s.q.ByNameVersion(name, version)
	if err != nil {
		return nil, storeErr(op, "unable to build query", err)
	}
	out, err := s.query(ctx, stmt, args)
	if err != nil {
		return nil, storeErr(op, "search failed", err)
	}
	return out, nil
}

// ByName implements [datastore.Search].
func (s *Store) ByName(ctx context.Context, name string) (_ []*victims.Record, err error) {
	const op = `datastore/sqlite.ByName`
	q := metrics.Query("by_name")
	defer q.Start(&err)()
	stmt, args, err := s.q.ByName(name)
	if err != nil {
		return nil, storeErr(op, "unable to build query", err)
	}
	out, err := s.query(ctx, stmt, args)
	if err != nil {
		return nil, storeErr(op, "search failed", err)
	}
	return out, nil
}

// UpsertRecords implements [datastore.Updater].
//
// SQLite has no conflict target in the query builder's dialect, so existing
// rows are deleted and the records inserted in one transaction.
func (s *Store) UpsertRecords(ctx context.Context, rs []*victims.Record) (n int64, err error) {
	const op = `datastore/sqlite.UpsertRecords`
	q := metrics.Query("upsert")
	defer q.Start(&err)()
	if len(rs) == 0 {
		return 0, nil
	}
	uniq := cvemap.Dedup(rs)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr(op, "unable to begin transaction", err)
	}
	defer tx.Rollback()
	err = cvemap.Chunk(uniq, func(c []*victims.Record) error {
		fps := make([]victims.Fingerprint, len(c))
		for i, r := range c {
			fps[i] = r.Fingerprint
		}
		stmt, args, err := s.q.Delete(fps)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		stmt, args, err = s.q.Insert(c)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		ct, err := res.RowsAffected()
		if err != nil {
			return err
		}
		n += ct
		return nil
	})
	if err != nil {
		return 0, storeErr(op, "unable to write records", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storeErr(op, "unable to commit transaction", err)
	}
	slog.DebugContext(ctx, "wrote records", "count", n)
	return n, nil
}

// DeleteRecords implements [datastore.Updater].
func (s *Store) DeleteRecords(ctx context.Context, fps []victims.Fingerprint) (n int64, err error) {
	const op = `datastore/sqlite.DeleteRecords`
	q := metrics.Query("delete")
	defer q.Start(&err)()
	err = cvemap.Chunk(fps, func(c []victims.Fingerprint) error {
		stmt, args, err := s.q.Delete(c)
		if err != nil {
			return err
		}
		res, err := s.db.ExecContext(ctx, stmt, args...)
		if err != nil {
			return err
		}
		ct, err := res.RowsAffected()
		if err != nil {
			return err
		}
		n += ct
		return nil
	})
	if err != nil {
		return 0, storeErr(op, "unable to delete records", err)
	}
	return n, nil
}

// LatestVersion implements [datastore.Updater].
func (s *Store) LatestVersion(ctx context.Context) (v int, err error) {
	const op = `datastore/sqlite.LatestVersion`
	q := metrics.Query("latest_version")
	defer q.Start(&err)()
	stmt, args, err := s.q.LatestVersion()
	if err != nil {
		return 0, storeErr(op, "unable to build query", err)
	}
	if err := s.db.QueryRowContext(ctx, stmt, args...).Scan(&v); err != nil {
		return 0, storeErr(op, "query failed", err)
	}
	return v, nil
}
