package prefixdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrMockUnexpectedQuery is returned by MockDB for a query it was not told about.
var ErrMockUnexpectedQuery = errors.New("prefixdb: unexpected query")

// MockRows is an in-memory result cursor.
type MockRows struct {
	columns []string
	data    [][]any
	idx     int
	err     error
	closed  bool
}

// NewMockRows returns rows with the given columns and data.
func NewMockRows(columns []string, data ...[]any) *MockRows {
	return &MockRows{columns: columns, data: data}
}

// WithError makes the cursor report err once the data is exhausted.
func (r *MockRows) WithError(err error) *MockRows {
	r.err = err
	return r
}

// Next advances to the next data row.
func (r *MockRows) Next() bool {
	if r.closed || r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

// Columns returns the column names.
func (r *MockRows) Columns() ([]string, error) { return r.columns, nil }

// SliceScan returns a copy of the current row.
func (r *MockRows) SliceScan() ([]any, error) {
	if r.idx == 0 || r.idx > len(r.data) {
		return nil, errors.New("prefixdb: SliceScan called without a current row")
	}
	return append([]any(nil), r.data[r.idx-1]...), nil
}

// Err returns the error set by WithError.
func (r *MockRows) Err() error { return r.err }

// Close stops iteration.
func (r *MockRows) Close() error {
	r.closed = true
	return nil
}

// MockStmt returns a fresh cursor from Rows on every execution.
type MockStmt struct {
	Rows   func(args ...any) *MockRows
	Err    error // returned by QueryContext
	Closed bool
	Calls  int
	Args   [][]any
}

// QueryContext records args and returns Err or a cursor from Rows.
func (s *MockStmt) QueryContext(ctx context.Context, args ...any) (Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.Calls++
	s.Args = append(s.Args, args)
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Rows == nil {
		return NewMockRows(nil), nil
	}
	return s.Rows(args...), nil
}

// Close marks the statement closed.
func (s *MockStmt) Close() error {
	s.Closed = true
	return nil
}

// MockDB is a DB for tests of code built on Connection. Statements are
// registered by their final query text; Prepares counts PrepareContext calls
// per text.
type MockDB struct {
	mu         sync.Mutex
	Stmts      map[string]*MockStmt
	PrepareErr map[string]error
	Prepares   map[string]int
	LastID     string
	LastIDErr  error
	Closed     bool
}

// NewMockDB returns an empty MockDB.
func NewMockDB() *MockDB {
	return &MockDB{
		Stmts:      make(map[string]*MockStmt),
		PrepareErr: make(map[string]error),
		Prepares:   make(map[string]int),
	}
}

// WithStmt registers stmt for query and returns m.
func (m *MockDB) WithStmt(query string, stmt *MockStmt) *MockDB {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stmts[query] = stmt
	return m
}

// WithRows registers a statement for query that always yields the given rows.
func (m *MockDB) WithRows(query string, columns []string, data ...[]any) *MockStmt {
	stmt := &MockStmt{Rows: func(...any) *MockRows { return NewMockRows(columns, data...) }}
	m.WithStmt(query, stmt)
	return stmt
}

// PrepareCount returns how often query was prepared.
func (m *MockDB) PrepareCount(query string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Prepares[query]
}

// PrepareContext returns the statement registered for query.
func (m *MockDB) PrepareContext(ctx context.Context, query string) (Stmt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return nil, ErrClosed
	}
	m.Prepares[query]++
	if err, ok := m.PrepareErr[query]; ok {
		return nil, err
	}
	stmt, ok := m.Stmts[query]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMockUnexpectedQuery, query)
	}
	return stmt, nil
}

// LastInsertID returns LastID and LastIDErr.
func (m *MockDB) LastInsertID(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastID, m.LastIDErr
}

// Close marks the database closed.
func (m *MockDB) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// NewMockConnection returns a Connection for cfg backed by db.
// cfg is defaulted but not validated.
func NewMockConnection(db DB, cfg Config, opts ...Options) *Connection {
	return newConnection(db, defaultConfig(cfg), mergeOptions(opts...))
}
