package dump

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dev-tams/sqlbackup/internal/backuperr"
	"github.com/dev-tams/sqlbackup/internal/database"
)

const createTableColumn = "Create Table"

// Serializer renders the structure and data blocks of one table.
type Serializer struct {
	// RowsPerStatement batches rows into one extended INSERT. Values below 2
	// emit one INSERT per row.
	RowsPerStatement   int
	NoBackslashEscapes bool
}

// RenderStructure writes a DROP TABLE IF EXISTS guard followed by the
// server's CREATE TABLE definition. Nothing is written if the definition
// cannot be retrieved.
func (s *Serializer) RenderStructure(ctx context.Context, src Source, table string, w io.Writer) error {
	qt := QuoteIdentifier(table)

	var create string
	found := false
	err := src.QueryRows(ctx, "SHOW CREATE TABLE "+qt, func(r database.Row) error {
		v, ok := r.Get(createTableColumn)
		if !ok || v.IsNull() {
			return fmt.Errorf("no %q column in result (columns %v)", createTableColumn, r.Columns)
		}
		create = string(v.Data)
		found = true
		return nil
	})
	if err == nil && !found {
		err = errors.New("empty result")
	}
	if err != nil {
		return backuperr.New(backuperr.ErrStructure, "show create table", err).WithTable(table)
	}

	block := fmt.Sprintf("\n-- Structure for table %s\nDROP TABLE IF EXISTS %s;\n%s;\n\n", qt, qt, create)
	if _, err := io.WriteString(w, block); err != nil {
		return backuperr.New(backuperr.ErrIO, "write structure", err).WithTable(table)
	}
	return nil
}

// RenderData writes one INSERT per row (or per batch) in server row order.
// An empty table produces only the comment marker. Generated columns are
// left out of the column list since the server recomputes them on insert.
func (s *Serializer) RenderData(ctx context.Context, src Source, table string, w io.Writer) error {
	qt := QuoteIdentifier(table)

	query, err := selectRowsQuery(ctx, src, qt)
	if err != nil {
		return backuperr.New(backuperr.ErrData, "show columns", err).WithTable(table)
	}

	if _, err := io.WriteString(w, "-- Data for table "+qt+"\n"); err != nil {
		return backuperr.New(backuperr.ErrIO, "write data", err).WithTable(table)
	}
	if query == "" {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return backuperr.New(backuperr.ErrIO, "write data", err).WithTable(table)
		}
		return nil
	}

	var (
		buf     []byte
		prefix  []byte
		pending int
	)
	batch := s.RowsPerStatement
	if batch < 1 {
		batch = 1
	}

	flush := func() error {
		if pending == 0 {
			return nil
		}
		buf = append(buf, ";\n"...)
		pending = 0
		if _, err := w.Write(buf); err != nil {
			return backuperr.New(backuperr.ErrIO, "write data", err).WithTable(table)
		}
		buf = buf[:0]
		return nil
	}

	err = src.QueryRows(ctx, query, func(r database.Row) error {
		if prefix == nil {
			prefix = insertPrefix(qt, r.Columns)
		}
		if pending == 0 {
			buf = append(buf, prefix...)
		} else {
			buf = append(buf, ", "...)
		}
		buf = append(buf, '(')
		for i, v := range r.Values {
			if i > 0 {
				buf = append(buf, ", "...)
			}
			buf = AppendValue(buf, v, s.NoBackslashEscapes)
		}
		buf = append(buf, ')')
		pending++
		if pending >= batch {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		var be *backuperr.Error
		if errors.As(err, &be) {
			return err
		}
		return backuperr.New(backuperr.ErrData, "select rows", err).WithTable(table)
	}

	if _, err := io.WriteString(w, "\n"); err != nil {
		return backuperr.New(backuperr.ErrIO, "write data", err).WithTable(table)
	}
	return nil
}

// selectRowsQuery returns SELECT * unless the table has generated columns,
// in which case the stored columns are listed in ordinal order. It returns ""
// when no column can be inserted.
func selectRowsQuery(ctx context.Context, src Source, quotedTable string) (string, error) {
	var (
		stored    []string
		generated bool
	)
	err := src.QueryRows(ctx, "SHOW COLUMNS FROM "+quotedTable, func(r database.Row) error {
		field, ok := r.Get("Field")
		if !ok || field.IsNull() {
			return fmt.Errorf("no %q column in result (columns %v)", "Field", r.Columns)
		}
		if extra, ok := r.Get("Extra"); ok && isGeneratedColumn(string(extra.Data)) {
			generated = true
			return nil
		}
		stored = append(stored, string(field.Data))
		return nil
	})
	if err != nil {
		return "", err
	}

	if !generated {
		return "SELECT * FROM " + quotedTable, nil
	}
	if len(stored) == 0 {
		return "", nil
	}

	cols := make([]string, len(stored))
	for i, c := range stored {
		cols[i] = QuoteIdentifier(c)
	}
	return "SELECT " + strings.Join(cols, ", ") + " FROM " + quotedTable, nil
}

// isGeneratedColumn matches VIRTUAL GENERATED and STORED GENERATED but not
// DEFAULT_GENERATED, which marks an expression default and stays insertable.
func isGeneratedColumn(extra string) bool {
	extra = strings.ToUpper(extra)
	return strings.Contains(extra, "VIRTUAL GENERATED") || strings.Contains(extra, "STORED GENERATED")
}

func insertPrefix(quotedTable string, columns []string) []byte {
	b := []byte("INSERT INTO ")
	b = append(b, quotedTable...)
	b = append(b, " ("...)
	for i, c := range columns {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, QuoteIdentifier(c)...)
	}
	return append(b, ") VALUES "...)
}
