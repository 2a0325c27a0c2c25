package libscan

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/victims/victims"
	"github.com/victims/victims/datastore"
	"github.com/victims/victims/datastore/postgres"
	"github.com/victims/victims/datastore/sqlite"
)

// OpenStore opens the corpus named by a database URL.
//
// The accepted forms are:
//
//	sqlite://                   in-memory database
//	sqlite:///relative/path.db  path relative to the working directory
//	sqlite:////absolute/path.db absolute path
//	postgres://...              PostgreSQL, also "postgresql://"
func OpenStore(ctx context.Context, dsn string) (datastore.Store, error) {
	const op = `libscan.OpenStore`
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, &victims.Error{
			Op:      op,
			Kind:    victims.ErrInvalid,
			Message: "malformed database url",
			Inner:   err,
		}
	}
	switch u.Scheme {
	case "sqlite":
		p := strings.TrimPrefix(dsn, "sqlite://")
		if i := strings.IndexByte(p, '?'); i != -1 {
			p = p[:i]
		}
		// The first slash separates the (empty) host from the path.
		p = strings.TrimPrefix(p, "/")
		if p == "" {
			p = sqlite.Memory
		}
		return sqlite.Open(ctx, p)
	case "postgres", "postgresql":
		return postgres.Open(ctx, dsn)
	default:
		return nil, &victims.Error{
			Op:      op,
			Kind:    victims.ErrInvalid,
			Message: fmt.Sprintf("unsupported database url scheme %q", u.Scheme),
		}
	}
}
