package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dev-tams/sqlbackup/internal/config"
	"github.com/dev-tams/sqlbackup/internal/database"
	"github.com/dev-tams/sqlbackup/internal/storage"
)

type memTable struct {
	name    string
	columns []string
	rows    [][]database.Value
	dataErr error
}

type memSource struct {
	tables  []memTable
	queries []string
	closed  bool
}

func text(s string) database.Value { return database.Value{Kind: database.KindText, Data: []byte(s)} }

func (m *memSource) find(quoted string) (memTable, bool) {
	name := strings.Trim(quoted, "`")
	for _, t := range m.tables {
		if t.name == name {
			return t, true
		}
	}
	return memTable{}, false
}

func (m *memSource) Exec(context.Context, string) error { return nil }

func (m *memSource) Close() error {
	m.closed = true
	return nil
}

func (m *memSource) QueryRows(_ context.Context, query string, fn func(database.Row) error) error {
	m.queries = append(m.queries, query)

	switch {
	case query == "SHOW FULL TABLES":
		for _, t := range m.tables {
			row := database.Row{
				Columns: []string{"Tables_in_shop", "Table_type"},
				Values:  []database.Value{text(t.name), text("BASE TABLE")},
			}
			if err := fn(row); err != nil {
				return err
			}
		}
		return nil

	case strings.HasPrefix(query, "SHOW CREATE TABLE "):
		t, ok := m.find(strings.TrimPrefix(query, "SHOW CREATE TABLE "))
		if !ok {
			return errors.New("no such table")
		}
		create := fmt.Sprintf("CREATE TABLE `%s` (`id` int NOT NULL)", t.name)
		return fn(database.Row{
			Columns: []string{"Table", "Create Table"},
			Values:  []database.Value{text(t.name), text(create)},
		})

	case strings.HasPrefix(query, "SHOW COLUMNS FROM "):
		t, ok := m.find(strings.TrimPrefix(query, "SHOW COLUMNS FROM "))
		if !ok {
			return errors.New("no such table")
		}
		for _, c := range t.columns {
			row := database.Row{
				Columns: []string{"Field", "Extra"},
				Values:  []database.Value{text(c), text("")},
			}
			if err := fn(row); err != nil {
				return err
			}
		}
		return nil

	case strings.HasPrefix(query, "SELECT * FROM "):
		t, ok := m.find(strings.TrimPrefix(query, "SELECT * FROM "))
		if !ok {
			return errors.New("no such table")
		}
		if t.dataErr != nil {
			return t.dataErr
		}
		for _, r := range t.rows {
			if err := fn(database.Row{Columns: t.columns, Values: r}); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unexpected query %q", query)
}

func (m *memSource) queried(table string) bool {
	for _, q := range m.queries {
		if strings.Contains(q, "`"+table+"`") {
			return true
		}
	}
	return false
}

type failingSink struct{ err error }

func (s failingSink) Name() string { return "broken" }

func (s failingSink) Upload(context.Context, string, string) error { return s.err }

var runStart = time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)

// withSeams points the run at src and a fixed clock for the test's lifetime.
func withSeams(t *testing.T, src *memSource) {
	t.Helper()
	origOpen, origNow, origSink := openSource, now, newSink
	t.Cleanup(func() {
		openSource, now, newSink = origOpen, origNow, origSink
	})

	openSource = func(context.Context, config.ConnectionConfig) (Source, error) { return src, nil }
	now = func() time.Time { return runStart }
}

func withSink(t *testing.T, sink storage.Sink) {
	t.Helper()
	newSink = func(context.Context, config.StorageConfig) (storage.Sink, error) { return sink, nil }
}

func testConfig(t *testing.T, archiveFormat string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Database = "shop"
	cfg.Backup.Path = t.TempDir()
	cfg.Backup.Archive = archiveFormat
	return cfg
}

func shopTables() []memTable {
	return []memTable{
		{
			name:    "customers",
			columns: []string{"id", "name"},
			rows:    [][]database.Value{{text("1"), text("O'Brien")}},
		},
		{
			name:    "orders",
			columns: []string{"id"},
		},
	}
}
