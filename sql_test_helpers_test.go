package prefixdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"

	"github.com/jmoiron/sqlx"
)

// testConnector is a minimal database/sql driver: every query yields one row
// with a single column holding value.
type testConnector struct {
	pingErr    error
	prepareErr error
	value      driver.Value
	prepared   []string
}

func (c *testConnector) Connect(ctx context.Context) (driver.Conn, error) {
	return &testConn{connector: c}, nil
}

func (c *testConnector) Driver() driver.Driver {
	return testDriver{}
}

type testDriver struct{}

func (testDriver) Open(name string) (driver.Conn, error) {
	return nil, errors.New("use the connector")
}

type testConn struct {
	connector *testConnector
}

func (c *testConn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *testConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if c.connector.prepareErr != nil {
		return nil, c.connector.prepareErr
	}
	c.connector.prepared = append(c.connector.prepared, query)
	return &testStmt{value: c.connector.value}, nil
}

func (c *testConn) Close() error {
	return nil
}

func (c *testConn) Begin() (driver.Tx, error) {
	return nil, errors.New("not supported")
}

func (c *testConn) Ping(ctx context.Context) error {
	return c.connector.pingErr
}

type testStmt struct {
	value  driver.Value
	closed bool
}

func (s *testStmt) Close() error {
	s.closed = true
	return nil
}

func (s *testStmt) NumInput() int {
	return -1
}

func (s *testStmt) Exec(args []driver.Value) (driver.Result, error) {
	return nil, errors.New("not supported")
}

func (s *testStmt) Query(args []driver.Value) (driver.Rows, error) {
	return &testRows{value: s.value}, nil
}

func (s *testStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return &testRows{value: s.value}, nil
}

type testRows struct {
	value driver.Value
	sent  bool
}

func (r *testRows) Columns() []string {
	return []string{"value"}
}

func (r *testRows) Close() error {
	return nil
}

func (r *testRows) Next(dest []driver.Value) error {
	if r.sent {
		return io.EOF
	}
	dest[0] = r.value
	r.sent = true
	return nil
}

func newTestConnector(pingErr, prepareErr error) *testConnector {
	return &testConnector{pingErr: pingErr, prepareErr: prepareErr, value: []byte("ok")}
}

func newTestSQLX(c *testConnector) *sqlx.DB {
	return sqlx.NewDb(sql.OpenDB(c), "mysql")
}
