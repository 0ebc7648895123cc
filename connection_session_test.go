package prefixdb

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitClosed runs closeFn and fails the test when it does not return in time.
func waitClosed(t *testing.T, closeFn func() error) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- closeFn() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatalf("Close still blocked after 3s")
	}
}

func TestSQLite_CloseWithOpenResult(t *testing.T) {
	conn := openSQLite(t, "")
	ctx := context.Background()

	execute(t, conn, "CREATE TABLE t (id INTEGER PRIMARY KEY)")
	execute(t, conn, "INSERT INTO t (id) VALUES (1), (2), (3)")

	res, err := conn.Execute(ctx, "SELECT id FROM t")
	require.NoError(t, err)
	row, err := res.Fetch()
	require.NoError(t, err)
	require.NotNil(t, row)

	waitClosed(t, conn.Close)

	// The Result was closed with the connection.
	next, err := res.Fetch()
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Equal(t, 0, conn.CacheStats().Size)
}

func TestFactory_CloseWithOpenResult(t *testing.T) {
	f := NewFactory(map[string]Config{
		"main": {Driver: DriverSQLite, DBName: ":memory:", User: "u", Password: "p"},
	})
	ctx := context.Background()

	conn, err := f.GetConnection(ctx, "main")
	require.NoError(t, err)
	execute(t, conn, "CREATE TABLE t (id INTEGER PRIMARY KEY)")
	execute(t, conn, "INSERT INTO t (id) VALUES (1), (2)")

	_, err = conn.Execute(ctx, "SELECT id FROM t")
	require.NoError(t, err)

	waitClosed(t, f.Close)
}

func TestSQLite_RepeatedExecuteWithoutClose(t *testing.T) {
	conn := openSQLite(t, "app_")
	ctx := context.Background()

	execute(t, conn, "CREATE TABLE {t} (id INTEGER PRIMARY KEY AUTOINCREMENT, v TEXT)")

	_, err := conn.Execute(ctx, "INSERT INTO {t} (v) VALUES (?)", "a")
	require.NoError(t, err)
	id, err := conn.LastID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", id)

	_, err = conn.Execute(ctx, "INSERT INTO {t} (v) VALUES (?)", "b")
	require.NoError(t, err)
	id, err = conn.LastID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", id)

	count, err := conn.GetField(ctx, "SELECT COUNT(*) FROM {t}")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestConnection_ExecuteClosesPreviousResult(t *testing.T) {
	conn, db := newMockConn(t, "")
	db.WithRows("SELECT id FROM users", []string{"id"}, []any{int64(1)}, []any{int64(2)})
	ctx := context.Background()

	first, err := conn.Execute(ctx, "SELECT id FROM users")
	require.NoError(t, err)
	second, err := conn.Execute(ctx, "SELECT id FROM users")
	require.NoError(t, err)
	defer second.Close()

	row, err := first.Fetch()
	require.NoError(t, err)
	assert.Nil(t, row, "a superseded result reports no more rows")
	assert.NoError(t, first.Close())

	rows, err := second.FetchAll()
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

// cursorStmt counts the cursors open at the same time.
type cursorStmt struct {
	open atomic.Int32
	max  atomic.Int32
}

func (s *cursorStmt) QueryContext(ctx context.Context, args ...any) (Rows, error) {
	n := s.open.Add(1)
	for {
		prev := s.max.Load()
		if n <= prev || s.max.CompareAndSwap(prev, n) {
			break
		}
	}
	time.Sleep(100 * time.Microsecond)
	return &cursorRows{
		MockRows: NewMockRows([]string{"id"}, []any{int64(1)}, []any{int64(2)}),
		open:     &s.open,
	}, nil
}

func (s *cursorStmt) Close() error { return nil }

type cursorRows struct {
	*MockRows
	open *atomic.Int32
	once sync.Once
}

func (r *cursorRows) Close() error {
	r.once.Do(func() { r.open.Add(-1) })
	return r.MockRows.Close()
}

func TestConnection_StatementsDoNotOverlap(t *testing.T) {
	stmt := &cursorStmt{}
	conn := NewMockConnection(&stubDB{stmt: stmt}, Config{})
	ctx := context.Background()

	const goroutines = 20
	var wg sync.WaitGroup
	wg.Add(goroutines)
	errs := make(chan error, goroutines*15)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for ii := 0; ii < 5; ii++ {
				if _, err := conn.GetRows(ctx, "SELECT id FROM t"); err != nil {
					errs <- err
				}
				if _, err := conn.GetColumn(ctx, "SELECT id FROM t"); err != nil {
					errs <- err
				}
				res, err := conn.Execute(ctx, "SELECT id FROM t")
				if err != nil {
					errs <- err
					continue
				}
				_, _ = res.FetchAll()
				_ = res.Close()
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := stmt.max.Load(); n != 1 {
		t.Fatalf("expected at most one open cursor, got %d", n)
	}
	require.NoError(t, conn.Close())
	assert.Equal(t, int32(0), stmt.open.Load())
}
