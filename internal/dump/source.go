// Package dump renders a database as a re-executable SQL statement stream.
package dump

import (
	"context"

	"github.com/dev-tams/sqlbackup/internal/database"
)

// Source is the query surface a dump reads through. *database.Conn
// implements it.
type Source interface {
	QueryRows(ctx context.Context, query string, fn func(database.Row) error) error
	Exec(ctx context.Context, query string) error
}

var _ Source = (*database.Conn)(nil)

type Table struct {
	Name string
}
