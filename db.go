package prefixdb

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cast"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// DB is the narrow contract a Connection needs from the database client.
// Every method runs against the same underlying session.
type DB interface {
	PrepareContext(ctx context.Context, query string) (Stmt, error)
	LastInsertID(ctx context.Context) (string, error)
	Close() error
}

// Stmt is a prepared statement that can be executed repeatedly.
type Stmt interface {
	QueryContext(ctx context.Context, args ...any) (Rows, error)
	Close() error
}

// Rows is a result cursor. *sqlx.Rows satisfies it.
type Rows interface {
	Next() bool
	Columns() ([]string, error)
	SliceScan() ([]any, error)
	Err() error
	Close() error
}

// sqlxOpen is replaced in tests.
var sqlxOpen = sqlx.Open

// sqlDB pins a single session out of a sqlx pool so that session-scoped state
// such as the last insert id behaves like one connection handle.
type sqlDB struct {
	pool        *sqlx.DB
	conn        *sqlx.Conn
	lastIDQuery string
}

func openDB(ctx context.Context, driverName, dsn, lastIDQuery string) (*sqlDB, error) {
	pool, err := sqlxOpen(driverName, dsn)
	if err != nil {
		return nil, err
	}
	db, err := newSQLDB(ctx, pool, lastIDQuery)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}
	return db, nil
}

// newSQLDB takes one session from pool and verifies it with a ping.
func newSQLDB(ctx context.Context, pool *sqlx.DB, lastIDQuery string) (*sqlDB, error) {
	// One handle per Connection; nothing else borrows from this pool.
	pool.SetMaxOpenConns(1)

	conn, err := pool.Connx(ctx)
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &sqlDB{pool: pool, conn: conn, lastIDQuery: lastIDQuery}, nil
}

func (s *sqlDB) PrepareContext(ctx context.Context, query string) (Stmt, error) {
	stmt, err := s.conn.PreparexContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &sqlStmt{stmt: stmt}, nil
}

func (s *sqlDB) LastInsertID(ctx context.Context) (string, error) {
	var id any
	if err := s.conn.QueryRowxContext(ctx, s.lastIDQuery).Scan(&id); err != nil {
		return "", err
	}
	return cast.ToStringE(id)
}

func (s *sqlDB) Close() error {
	err := s.conn.Close()
	if perr := s.pool.Close(); err == nil {
		err = perr
	}
	return err
}

type sqlStmt struct {
	stmt *sqlx.Stmt
}

func (s *sqlStmt) QueryContext(ctx context.Context, args ...any) (Rows, error) {
	rows, err := s.stmt.QueryxContext(ctx, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *sqlStmt) Close() error {
	return s.stmt.Close()
}
