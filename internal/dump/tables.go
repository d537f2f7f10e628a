package dump

import (
	"context"
	"fmt"
	"strings"

	"github.com/dev-tams/sqlbackup/internal/backuperr"
	"github.com/dev-tams/sqlbackup/internal/database"
)

const listTablesQuery = "SHOW FULL TABLES"

// ListTables returns the base tables of the current database in the order the
// catalog reports them. Views and other non-base objects are skipped. The
// order is not re-sorted.
func ListTables(ctx context.Context, src Source) ([]Table, error) {
	var tables []Table
	err := src.QueryRows(ctx, listTablesQuery, func(r database.Row) error {
		if len(r.Values) == 0 || r.Values[0].IsNull() {
			return fmt.Errorf("unexpected catalog row with columns %v", r.Columns)
		}
		if len(r.Values) > 1 && !r.Values[1].IsNull() {
			if !strings.EqualFold(string(r.Values[1].Data), "BASE TABLE") {
				return nil
			}
		}
		tables = append(tables, Table{Name: string(r.Values[0].Data)})
		return nil
	})
	if err != nil {
		return nil, backuperr.New(backuperr.ErrSchema, "list tables", err)
	}
	return tables, nil
}
