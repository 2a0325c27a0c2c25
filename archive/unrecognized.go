package archive

import (
	"context"

	"github.com/victims/victims"
)

// Unrecognized stands in for any file whose suffix names no container format.
// It has no members.
type unrecognized struct {
	path string
}

var _ Archive = unrecognized{}

func (unrecognized) Kind() Kind       { return Unrecognized }
func (unrecognized) Handleable() bool { return false }
func (u unrecognized) Path() string   { return u.path }

func (unrecognized) Names(_ context.Context) ([]string, error) { return nil, nil }

func (u unrecognized) Open(_ context.Context, name string) (*Member, error) {
	return nil, &victims.Error{
		Op:      `archive.unrecognized.Open`,
		Kind:    victims.ErrInvalid,
		Message: "not a handleable archive: " + u.path,
	}
}

func (unrecognized) Close() error { return nil }
