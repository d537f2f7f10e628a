package dump

import (
	"context"
	"fmt"
	"strings"

	"github.com/dev-tams/sqlbackup/internal/database"
)

type fakeTable struct {
	name    string
	kind    string
	create  string
	columns []string
	rows    [][]database.Value
	// extra holds the SHOW COLUMNS Extra value per column name.
	extra map[string]string

	structureErr error
	// dataErr is returned after failAfter rows have been delivered.
	dataErr   error
	failAfter int
}

type fakeSource struct {
	tables  []*fakeTable
	listErr error
	execErr map[string]error
	queries []string
	execs   []string
}

func text(s string) database.Value { return database.Value{Kind: database.KindText, Data: []byte(s)} }
func num(s string) database.Value { return database.Value{Kind: database.KindNumeric, Data: []byte(s)} }
func null() database.Value { return database.Value{Kind: database.KindNull} }

func (f *fakeSource) table(quoted string) *fakeTable {
	name := strings.ReplaceAll(strings.Trim(quoted, "`"), "``", "`")
	for _, t := range f.tables {
		if t.name == name {
			return t
		}
	}
	return nil
}

func (f *fakeSource) Exec(_ context.Context, query string) error {
	f.execs = append(f.execs, query)
	return f.execErr[query]
}

func (f *fakeSource) QueryRows(_ context.Context, query string, fn func(database.Row) error) error {
	f.queries = append(f.queries, query)

	switch {
	case query == listTablesQuery:
		if f.listErr != nil {
			return f.listErr
		}
		cols := []string{"Tables_in_shop", "Table_type"}
		for _, t := range f.tables {
			kind := t.kind
			if kind == "" {
				kind = "BASE TABLE"
			}
			if err := fn(database.Row{Columns: cols, Values: []database.Value{text(t.name), text(kind)}}); err != nil {
				return err
			}
		}
		return nil

	case strings.HasPrefix(query, "SHOW CREATE TABLE "):
		t := f.table(strings.TrimPrefix(query, "SHOW CREATE TABLE "))
		if t == nil {
			return fmt.Errorf("Table 'shop.%s' doesn't exist", query)
		}
		if t.structureErr != nil {
			return t.structureErr
		}
		return fn(database.Row{
			Columns: []string{"Table", "Create Table"},
			Values:  []database.Value{text(t.name), text(t.create)},
		})

	case strings.HasPrefix(query, "SHOW COLUMNS FROM "):
		t := f.table(strings.TrimPrefix(query, "SHOW COLUMNS FROM "))
		if t == nil {
			return fmt.Errorf("Table 'shop.%s' doesn't exist", query)
		}
		for _, c := range t.columns {
			row := database.Row{
				Columns: []string{"Field", "Type", "Extra"},
				Values:  []database.Value{text(c), text("int"), text(t.extra[c])},
			}
			if err := fn(row); err != nil {
				return err
			}
		}
		return nil

	case strings.HasPrefix(query, "SELECT "):
		list, from, ok := strings.Cut(strings.TrimPrefix(query, "SELECT "), " FROM ")
		t := f.table(from)
		if !ok || t == nil {
			return fmt.Errorf("unknown table in %q", query)
		}
		idx := make([]int, 0, len(t.columns))
		for i := range t.columns {
			idx = append(idx, i)
		}
		if list != "*" {
			idx = idx[:0]
			for _, c := range strings.Split(list, ", ") {
				for i, name := range t.columns {
					if QuoteIdentifier(name) == c {
						idx = append(idx, i)
					}
				}
			}
		}
		for i, r := range t.rows {
			if t.dataErr != nil && i == t.failAfter {
				return t.dataErr
			}
			row := database.Row{}
			for _, j := range idx {
				row.Columns = append(row.Columns, t.columns[j])
				row.Values = append(row.Values, r[j])
			}
			if err := fn(row); err != nil {
				return err
			}
		}
		if t.dataErr != nil && t.failAfter >= len(t.rows) {
			return t.dataErr
		}
		return nil
	}
	return fmt.Errorf("unexpected query %q", query)
}

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }
