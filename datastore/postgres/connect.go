package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/victims/victims"
)

// Connect initializes a [pgxpool.Pool] based on the connection string.
//
// The pool's statistics are registered with the default prometheus registry
// under the provided application name, replacing the collector of any earlier
// pool.
func Connect(ctx context.Context, connString string, applicationName string) (*pgxpool.Pool, error) {
	pool, _, err := connect(ctx, connString, applicationName, prometheus.DefaultRegisterer)
	return pool, err
}

func connect(ctx context.Context, connString, applicationName string, reg prometheus.Registerer) (*pgxpool.Pool, prometheus.Collector, error) {
	const op = `datastore/postgres.Connect`
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, nil, &victims.Error{
			Op:      op,
			Kind:    victims.ErrInvalid,
			Message: "failed to parse connection string",
			Inner:   err,
		}
	}
	const appnameKey = `application_name`
	params := cfg.ConnConfig.RuntimeParams
	if _, ok := params[appnameKey]; !ok {
		params[appnameKey] = applicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, &victims.Error{
			Op:      op,
			Kind:    victims.ErrStore,
			Message: "failed to create connection pool",
			Inner:   err,
		}
	}

	c := newPoolCollector(pool, applicationName)
	if err := register(reg, c); err != nil {
		slog.WarnContext(ctx, "unable to register pool metrics", "reason", err)
		c = nil
	}
	return pool, c, nil
}

// Register adds "c" to "reg". A collector already registered with the same
// descriptors is replaced: it belongs to an earlier pool, which may be closed.
func register(reg prometheus.Registerer, c prometheus.Collector) error {
	err := reg.Register(c)
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		reg.Unregister(are.ExistingCollector)
		err = reg.Register(c)
	}
	return err
}
