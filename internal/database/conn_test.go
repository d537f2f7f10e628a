package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"

	"github.com/dev-tams/sqlbackup/internal/backuperr"
	"github.com/dev-tams/sqlbackup/internal/config"
)

func newMockConn(t *testing.T) (*Conn, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	c, err := open(context.Background(), db, "shop")
	require.NoError(t, err)
	return c, mock
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.ConnectionConfig{
		Host:     "db.internal",
		Port:     3307,
		Database: "shop",
		User:     "backup",
		Password: "p@ss:word",
		Charset:  "utf8mb4",
	})

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	require.Equal(t, "backup", parsed.User)
	require.Equal(t, "p@ss:word", parsed.Passwd)
	require.Equal(t, "tcp", parsed.Net)
	require.Equal(t, "db.internal:3307", parsed.Addr)
	require.Equal(t, "shop", parsed.DBName)
	require.True(t, strings.Contains(dsn, "charset=utf8mb4"), dsn)
}

func TestOpenReportsConnectionError(t *testing.T) {
	orig := sqlOpen
	defer func() { sqlOpen = orig }()

	sqlOpen = func(string, string) (*sql.DB, error) {
		return nil, errors.New("unknown driver")
	}

	_, err := Open(context.Background(), config.ConnectionConfig{Host: "localhost", Port: 3306, Database: "shop"})
	require.ErrorIs(t, err, backuperr.ErrConnection)
}

func TestOpenPingFailureIsConnectionError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(errors.New("Access denied for user 'root'@'localhost'"))
	mock.ExpectClose()

	_, err = open(context.Background(), db, "shop")
	require.ErrorIs(t, err, backuperr.ErrConnection)
	require.ErrorContains(t, err, "Access denied")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRowsPreservesColumnOrderAndKinds(t *testing.T) {
	c, mock := newMockConn(t)

	rows := mock.NewRowsWithColumnDefinition(
		mock.NewColumn("id").OfType("INT", int64(0)),
		mock.NewColumn("name").OfType("VARCHAR", ""),
		mock.NewColumn("avatar").OfType("BLOB", []byte{}),
		mock.NewColumn("note").OfType("TEXT", ""),
	).
		AddRow([]byte("1"), []byte("O'Brien"), []byte{0x00, 0xff}, nil).
		AddRow([]byte("2"), []byte(""), nil, []byte("x"))
	mock.ExpectQuery("SELECT * FROM `users`").WillReturnRows(rows)
	mock.ExpectClose()

	var got []Row
	err := c.QueryRows(context.Background(), "SELECT * FROM `users`", func(r Row) error {
		got = append(got, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, []string{"id", "name", "avatar", "note"}, got[0].Columns)
	require.Equal(t, Value{Kind: KindNumeric, Data: []byte("1")}, got[0].Values[0])
	require.Equal(t, Value{Kind: KindText, Data: []byte("O'Brien")}, got[0].Values[1])
	require.Equal(t, Value{Kind: KindBinary, Data: []byte{0x00, 0xff}}, got[0].Values[2])
	require.True(t, got[0].Values[3].IsNull())

	// empty string must stay distinct from NULL
	require.Equal(t, KindText, got[1].Values[1].Kind)
	require.NotNil(t, got[1].Values[1].Data)
	require.True(t, got[1].Values[2].IsNull())

	v, ok := got[1].Get("note")
	require.True(t, ok)
	require.Equal(t, "x", string(v.Data))

	require.NoError(t, c.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRowsSurfacesMidStreamError(t *testing.T) {
	c, mock := newMockConn(t)

	rows := mock.NewRowsWithColumnDefinition(mock.NewColumn("id").OfType("INT", int64(0))).
		AddRow([]byte("1")).
		AddRow([]byte("2")).
		RowError(1, errors.New("connection reset"))
	mock.ExpectQuery("SELECT * FROM `orders`").WillReturnRows(rows)

	seen := 0
	err := c.QueryRows(context.Background(), "SELECT * FROM `orders`", func(Row) error {
		seen++
		return nil
	})
	require.ErrorContains(t, err, "connection reset")
	require.Equal(t, 1, seen)
}

func TestQueryRowsStopsOnCallbackError(t *testing.T) {
	c, mock := newMockConn(t)

	rows := mock.NewRowsWithColumnDefinition(mock.NewColumn("id").OfType("INT", int64(0))).
		AddRow([]byte("1")).
		AddRow([]byte("2"))
	mock.ExpectQuery("SELECT 1").WillReturnRows(rows)

	stop := errors.New("stop")
	seen := 0
	err := c.QueryRows(context.Background(), "SELECT 1", func(Row) error {
		seen++
		return stop
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 1, seen)
}

func TestExec(t *testing.T) {
	c, mock := newMockConn(t)
	mock.ExpectExec("START TRANSACTION WITH CONSISTENT SNAPSHOT").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, c.Exec(context.Background(), "START TRANSACTION WITH CONSISTENT SNAPSHOT"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassify(t *testing.T) {
	cases := map[string]Kind{
		"INT":          KindNumeric,
		"UNSIGNED INT": KindNumeric,
		"decimal":      KindNumeric,
		"YEAR":         KindNumeric,
		"VARCHAR":      KindText,
		"DATETIME":     KindText,
		"JSON":         KindText,
		"VARBINARY":    KindBinary,
		"LONGBLOB":     KindBinary,
		"BIT":          KindBinary,
		"":             KindText,
	}
	for name, want := range cases {
		require.Equal(t, want, classify(name), name)
	}
}
