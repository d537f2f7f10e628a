// Package database opens the single connection a backup run reads through.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/dev-tams/sqlbackup/internal/backuperr"
	"github.com/dev-tams/sqlbackup/internal/config"
)

var sqlOpen = sql.Open

// Conn is one dedicated server session. It is not safe for concurrent use.
type Conn struct {
	db       *sql.DB
	conn     *sql.Conn
	database string
}

// DSN renders cfg as a go-sql-driver/mysql data source name.
func DSN(cfg config.ConnectionConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Database
	if cfg.Charset != "" {
		mc.Params = map[string]string{"charset": cfg.Charset}
	}
	return mc.FormatDSN()
}

// Open dials the server and pins one session. Failures (unreachable host,
// rejected credentials, unknown database) are returned as
// backuperr.ErrConnection. The caller must Close the returned Conn.
func Open(ctx context.Context, cfg config.ConnectionConfig) (*Conn, error) {
	db, err := sqlOpen("mysql", DSN(cfg))
	if err != nil {
		return nil, backuperr.New(backuperr.ErrConnection, "open", err)
	}
	return open(ctx, db, cfg.Database)
}

func open(ctx context.Context, db *sql.DB, database string) (*Conn, error) {
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, backuperr.New(backuperr.ErrConnection, "connect", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, backuperr.New(backuperr.ErrConnection, "ping", err)
	}

	return &Conn{db: db, conn: conn, database: database}, nil
}

func (c *Conn) Database() string { return c.database }

// Exec runs a statement that returns no rows.
func (c *Conn) Exec(ctx context.Context, query string) error {
	_, err := c.conn.ExecContext(ctx, query)
	return err
}

// QueryRows runs query and calls fn for each row in server order. Iteration
// stops at the first error from fn or from the server.
func (c *Conn) QueryRows(ctx context.Context, query string, fn func(Row) error) error {
	rows, err := c.conn.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("columns: %w", err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return fmt.Errorf("column types: %w", err)
	}

	kinds := make([]Kind, len(cols))
	for i := range types {
		kinds[i] = classify(types[i].DatabaseTypeName())
	}

	raw := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range raw {
		dest[i] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		row := Row{Columns: cols, Values: make([]Value, len(cols))}
		for i := range raw {
			row.Values[i] = toValue(raw[i], kinds[i])
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close releases the session and the underlying pool.
func (c *Conn) Close() error {
	if c == nil {
		return nil
	}
	return errors.Join(c.conn.Close(), c.db.Close())
}
