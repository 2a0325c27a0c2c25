// Package postgres implements the corpus store on PostgreSQL.
package postgres

import (
	"context"
	_ "embed" // embed the schema
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/victims/victims"
	"github.com/victims/victims/datastore"
	"github.com/victims/victims/internal/cvemap"
	"github.com/victims/victims/internal/storemetrics"
)

//go:embed schema.sql
var schema string

var metrics = storemetrics.New("datastore_postgres")

var _ datastore.Store = (*Store)(nil)

// Store is a corpus store backed by PostgreSQL.
type Store struct {
	pool  *pgxpool.Pool
	q     cvemap.Builder
	owned bool
	// Pool metrics registered by Open, removed on Close.
	reg       prometheus.Registerer
	collector prometheus.Collector
}

// Open connects to the database named by "connString" and ensures the corpus
// table exists. The returned Store owns the pool.
func Open(ctx context.Context, connString string) (*Store, error) {
	reg := prometheus.DefaultRegisterer
	pool, c, err := connect(ctx, connString, "victims", reg)
	if err != nil {
		return nil, err
	}
	s, err := NewStore(ctx, pool)
	if err != nil {
		if c != nil {
			reg.Unregister(c)
		}
		pool.Close()
		return nil, err
	}
	s.owned = true
	s.reg, s.collector = reg, c
	return s, nil
}

// NewStore returns a Store using the provided pool. The caller retains
// ownership of the pool.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	const op = `datastore/postgres.NewStore`
	q, err := cvemap.New(cvemap.Postgres)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, &victims.Error{
			Op:      op,
			Kind:    victims.ErrStore,
			Message: "unable to initialize database",
			Inner:   err,
		}
	}
	return &Store{pool: pool, q: q}, nil
}

// Close releases the pool if the Store owns it.
func (s *Store) Close() error {
	if s.collector != nil {
		s.reg.Unregister(s.collector)
		s.collector = nil
	}
	if s.owned {
		s.pool.Close()
	}
	return nil
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
	rows, err := s.pool.Query(ctx, stmt, args...)
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
	const op = `datastore/postgres.Lookup`
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
	const op = `datastore/postgres.ByNameVersion`
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
	const op = `datastore/postgres.ByName`
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
func (s *Store) UpsertRecords(ctx context.Context, rs []*victims.Record) (n int64, err error) {
	const op = `datastore/postgres.UpsertRecords`
	q := metrics.Query("upsert")
	defer q.Start(&err)()
	if len(rs) == 0 {
		return 0, nil
	}
	// A single statement may not touch the same row twice.
	uniq := cvemap.Dedup(rs)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, storeErr(op, "unable to begin transaction", err)
	}
	defer tx.Rollback(ctx)
	err = cvemap.Chunk(uniq, func(c []*victims.Record) error {
		stmt, args, err := s.q.Upsert(c)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, stmt, args...)
		if err != nil {
			return err
		}
		n += tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, storeErr(op, "unable to write records", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, storeErr(op, "unable to commit transaction", err)
	}
	slog.DebugContext(ctx, "wrote records", "count", n)
	return n, nil
}

// DeleteRecords implements [datastore.Updater].
func (s *Store) DeleteRecords(ctx context.Context, fps []victims.Fingerprint) (n int64, err error) {
	const op = `datastore/postgres.DeleteRecords`
	q := metrics.Query("delete")
	defer q.Start(&err)()
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return cvemap.Chunk(fps, func(c []victims.Fingerprint) error {
			stmt, args, err := s.q.Delete(c)
			if err != nil {
				return err
			}
			tag, err := tx.Exec(ctx, stmt, args...)
			if err != nil {
				return err
			}
			n += tag.RowsAffected()
			return nil
		})
	})
	if err != nil {
		return 0, storeErr(op, "unable to delete records", err)
	}
	return n, nil
}

// LatestVersion implements [datastore.Updater].
func (s *Store) LatestVersion(ctx context.Context) (v int, err error) {
	const op = `datastore/postgres.LatestVersion`
	q := metrics.Query("latest_version")
	defer q.Start(&err)()
	stmt, args, err := s.q.LatestVersion()
	if err != nil {
		return 0, storeErr(op, "unable to build query", err)
	}
	if err := s.pool.QueryRow(ctx, stmt, args...).Scan(&v); err != nil {
		return 0, storeErr(op, "query failed", err)
	}
	return v, nil
}
