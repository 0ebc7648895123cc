// Package prefixdb is a small database access layer. A Connection owns one
// database session, rewrites "{table}" markers into a configured table
// prefix, caches prepared statements by their final query text and offers
// helpers that fetch a row, all rows, a column, a single field or the last
// inserted id. A Factory hands out named connections, creating each one on
// first use.
package prefixdb

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
)

// Options configures optional behaviour shared by connections.
type Options struct {
	Logger    *slog.Logger // Structured logger for lifecycle events (nil disables logging)
	Telemetry bool         // Emit OpenTelemetry spans for executed statements
}

// CacheStats reports prepared statement cache usage.
type CacheStats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

// Connection is a single logical database with prefix rewriting and
// prepared statement reuse.
//
// A Connection owns exactly one session, so statements run one at a time.
// The helpers (GetRow, GetRows, GetCol, GetColumn, GetField, LastID) hold the
// session until their result is consumed and may be called from several
// goroutines. A Result returned by Execute stays open until it is closed or
// until the next statement on the Connection starts, which closes it.
type Connection struct {
	db          DB
	driver      string
	bindType    int
	prefix      string
	replacer    *strings.Replacer
	lastIDQuery string

	session sync.Mutex // serializes statements on the pinned session

	prepare map[string]Stmt // final query text -> prepared statement, nil once closed
	mx      sync.Mutex
	hits    atomic.Uint64
	misses  atomic.Uint64

	activeMu sync.Mutex
	active   *Result // cursor left open by Execute

	logger    *slog.Logger
	telemetry bool
}

// Open validates cfg, applies defaults and opens the database session.
// A missing user, password or dbname yields a *ConfigurationError; a failure
// to reach the server yields a *ConnectionError.
func Open(ctx context.Context, cfg Config, opts ...Options) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = defaultConfig(cfg)

	spec, err := cfg.spec()
	if err != nil {
		return nil, err
	}
	dsn, err := cfg.dsn()
	if err != nil {
		return nil, err
	}

	db, err := openDB(ctx, spec.sqlName, dsn, spec.lastIDQuery)
	if err != nil {
		return nil, &ConnectionError{Driver: cfg.Driver, Err: err}
	}

	c := newConnection(db, cfg, mergeOptions(opts...))
	c.logEvent(ctx, "connection opened",
		slog.String("driver", cfg.Driver),
		slog.String("host", cfg.Host),
		slog.String("dbname", cfg.DBName),
	)
	return c, nil
}

// newConnection wires an open DB to a defaulted config.
func newConnection(db DB, cfg Config, opt Options) *Connection {
	spec := drivers[cfg.Driver]
	return &Connection{
		db:          db,
		driver:      cfg.Driver,
		bindType:    sqlx.BindType(spec.sqlName),
		prefix:      cfg.Prefix,
		replacer:    strings.NewReplacer("{", cfg.Prefix, "}", ""),
		lastIDQuery: spec.lastIDQuery,
		prepare:     make(map[string]Stmt),
		logger:      opt.Logger,
		telemetry:   opt.Telemetry,
	}
}

func mergeOptions(opts ...Options) Options {
	if len(opts) == 0 {
		return Options{}
	}
	return opts[0]
}

// Prefix returns the table prefix this connection substitutes.
func (c *Connection) Prefix() string { return c.prefix }

// Driver returns the configured driver name.
func (c *Connection) Driver() string { return c.driver }

// PrefixQuery replaces every "{" in query with the table prefix and drops
// every "}". It is plain character substitution: markers inside string
// literals are rewritten as well.
func (c *Connection) PrefixQuery(query string) string {
	return c.replacer.Replace(query)
}

// finalQuery is the text handed to the driver and the statement cache key.
// "?" markers are rebound to the driver's placeholder style after prefixing.
func (c *Connection) finalQuery(query string) string {
	return sqlx.Rebind(c.bindType, c.PrefixQuery(query))
}

// getPreparedStatement retrieves a prepared statement from the cache or prepares a new one.
// The lock is held across PrepareContext so each query text is prepared once.
func (c *Connection) getPreparedStatement(ctx context.Context, query string) (Stmt, error) {
	c.mx.Lock()
	defer c.mx.Unlock()

	if c.prepare == nil {
		return nil, ErrClosed
	}
	if stmt, ok := c.prepare[query]; ok {
		c.hits.Add(1)
		return stmt, nil
	}

	stmt, err := c.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	c.prepare[query] = stmt
	c.misses.Add(1)
	c.logEvent(ctx, "statement prepared", slog.String("query", query))
	return stmt, nil
}

// Execute rewrites query, reuses or prepares its statement and runs it with
// the positional args. A Result still open from an earlier Execute is closed
// first. The returned Result should be closed. Failures are returned as
// *QueryError and are never retried.
func (c *Connection) Execute(ctx context.Context, query string, args ...any) (*Result, error) {
	c.session.Lock()
	defer c.session.Unlock()

	res, err := c.execute(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	res.release = c.release
	c.activeMu.Lock()
	c.active = res
	c.activeMu.Unlock()
	return res, nil
}

// execute runs query on the session. c.session must be held.
func (c *Connection) execute(ctx context.Context, query string, args ...any) (*Result, error) {
	c.closeActive()

	final := c.finalQuery(query)
	ctx, span := c.startSpan(ctx, "execute", final)

	stmt, err := c.getPreparedStatement(ctx, final)
	if err != nil {
		err = newQueryError(final, err)
		c.finishSpan(span, err)
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		err = newQueryError(final, err)
		c.finishSpan(span, err)
		return nil, err
	}
	c.finishSpan(span, nil)
	return newResult(final, rows), nil
}

// closeActive closes the Result left open by Execute. Its close error is
// kept on the Result and reported to whoever closes it.
func (c *Connection) closeActive() {
	c.activeMu.Lock()
	res := c.active
	c.active = nil
	c.activeMu.Unlock()

	if res != nil {
		_ = res.Close()
	}
}

// release forgets res once its owner closed it.
func (c *Connection) release(res *Result) {
	c.activeMu.Lock()
	if c.active == res {
		c.active = nil
	}
	c.activeMu.Unlock()
}

// GetRow returns the first row, or nil when the query yields no rows.
func (c *Connection) GetRow(ctx context.Context, query string, args ...any) (row *Row, err error) {
	c.session.Lock()
	defer c.session.Unlock()

	res, err := c.execute(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeResult(res, &err)

	return res.Fetch()
}

// GetRows returns every row in result order. No rows yields an empty slice.
func (c *Connection) GetRows(ctx context.Context, query string, args ...any) (rows []Row, err error) {
	c.session.Lock()
	defer c.session.Unlock()

	res, err := c.execute(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeResult(res, &err)

	return res.FetchAll()
}

// GetCol returns the first column of the result, stopping at the first value
// that is falsy (nil, false, numeric zero, "" or "0") even if more rows
// follow. Existing callers rely on this truncation; use GetColumn to read
// every row.
func (c *Connection) GetCol(ctx context.Context, query string, args ...any) ([]any, error) {
	return c.column(ctx, true, query, args...)
}

// GetColumn returns the first column of every row.
func (c *Connection) GetColumn(ctx context.Context, query string, args ...any) ([]any, error) {
	return c.column(ctx, false, query, args...)
}

func (c *Connection) column(ctx context.Context, stopAtFalsy bool, query string, args ...any) (col []any, err error) {
	c.session.Lock()
	defer c.session.Unlock()

	res, err := c.execute(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeResult(res, &err)

	col = make([]any, 0)
	for {
		val, ok, err := res.FetchColumn()
		if err != nil {
			return nil, err
		}
		if !ok || (stopAtFalsy && isFalsy(val)) {
			return col, nil
		}
		col = append(col, val)
	}
}

// GetField returns the first column of the first row, or nil when there are no rows.
func (c *Connection) GetField(ctx context.Context, query string, args ...any) (field any, err error) {
	c.session.Lock()
	defer c.session.Unlock()

	res, err := c.execute(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeResult(res, &err)

	val, ok, err := res.FetchColumn()
	if err != nil || !ok {
		return nil, err
	}
	return val, nil
}

// LastID returns the id generated by the most recent insert on this connection.
func (c *Connection) LastID(ctx context.Context) (string, error) {
	c.session.Lock()
	defer c.session.Unlock()

	ctx, span := c.startSpan(ctx, "last_id", c.lastIDQuery)
	var id string
	err := ErrClosed
	if !c.isClosed() {
		c.closeActive()
		id, err = c.db.LastInsertID(ctx)
	}
	if err != nil {
		err = newQueryError(c.lastIDQuery, err)
	}
	c.finishSpan(span, err)
	return id, err
}

// CacheStats returns prepared statement cache counters.
func (c *Connection) CacheStats() CacheStats {
	c.mx.Lock()
	size := len(c.prepare)
	c.mx.Unlock()
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   size,
	}
}

func (c *Connection) isClosed() bool {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.prepare == nil
}

// Close closes a Result still open from Execute, every cached statement and
// the database session. It waits for a running helper to finish.
// Calling Close more than once is a no-op.
func (c *Connection) Close() error {
	c.session.Lock()
	defer c.session.Unlock()

	c.mx.Lock()
	stmts := c.prepare
	c.prepare = nil
	c.mx.Unlock()
	if stmts == nil {
		return nil
	}

	c.closeActive()

	var errs []error
	for _, stmt := range stmts {
		if stmt != nil {
			errs = append(errs, stmt.Close())
		}
	}
	if c.db != nil {
		errs = append(errs, c.db.Close())
	}
	c.logEvent(context.Background(), "connection closed", slog.String("driver", c.driver))
	return errors.Join(errs...)
}

// closeResult closes res and reports its error unless an earlier one is set.
func closeResult(res *Result, err *error) {
	if cerr := res.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

// isFalsy reports whether v counts as empty for GetCol: nil, false, numeric
// zero, the empty string or "0".
func isFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == "" || t == "0"
	case []byte:
		return len(t) == 0 || string(t) == "0"
	case int:
		return t == 0
	case int8:
		return t == 0
	case int16:
		return t == 0
	case int32:
		return t == 0
	case int64:
		return t == 0
	case uint:
		return t == 0
	case uint8:
		return t == 0
	case uint16:
		return t == 0
	case uint32:
		return t == 0
	case uint64:
		return t == 0
	case float32:
		return t == 0
	case float64:
		return t == 0
	}
	return false
}
