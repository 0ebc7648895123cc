package prefixdb

import "sync"

// Result is an executed statement. Rows are fetched one at a time with
// Fetch or FetchColumn, or all at once with FetchAll. Once closed, fetches
// report no more rows.
type Result struct {
	mu       sync.Mutex
	rows     Rows
	query    string
	columns  []string
	closed   bool
	closeErr error
	release  func(*Result) // set by Connection.Execute
}

func newResult(query string, rows Rows) *Result {
	return &Result{rows: rows, query: query}
}

// Columns returns the result column names in select order.
func (r *Result) Columns() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.columnNames()
}

func (r *Result) columnNames() ([]string, error) {
	if r.columns == nil {
		cols, err := r.rows.Columns()
		if err != nil {
			return nil, newQueryError(r.query, err)
		}
		r.columns = cols
	}
	return r.columns, nil
}

// next advances the cursor and returns the row values.
// ok is false once the rows are exhausted.
func (r *Result) next() (values []any, ok bool, err error) {
	if r.closed {
		return nil, false, nil
	}
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return nil, false, newQueryError(r.query, err)
		}
		return nil, false, nil
	}
	values, err = r.rows.SliceScan()
	if err != nil {
		return nil, false, newQueryError(r.query, err)
	}
	for i, v := range values {
		// Text columns come back as bytes; callers get strings.
		if b, isBytes := v.([]byte); isBytes {
			values[i] = string(b)
		}
	}
	return values, true, nil
}

// Fetch returns the next row, or nil when no rows remain.
func (r *Result) Fetch() (*Row, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, nil
	}

	cols, err := r.columnNames()
	if err != nil {
		return nil, err
	}
	values, ok, err := r.next()
	if err != nil || !ok {
		return nil, err
	}
	row := newRow(cols, values)
	return &row, nil
}

// FetchAll returns the remaining rows in result order.
func (r *Result) FetchAll() ([]Row, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return make([]Row, 0), nil
	}

	cols, err := r.columnNames()
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0)
	for {
		values, ok, err := r.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return rows, nil
		}
		rows = append(rows, newRow(cols, values))
	}
}

// FetchColumn returns the first column of the next row.
// ok is false when no rows remain.
func (r *Result) FetchColumn() (value any, ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	values, ok, err := r.next()
	if err != nil || !ok {
		return nil, false, err
	}
	if len(values) == 0 {
		return nil, true, nil
	}
	return values[0], true, nil
}

// Close releases the cursor. The prepared statement stays cached.
// Later calls return the error of the first one.
func (r *Result) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return r.closeErr
	}
	r.closed = true
	if err := r.rows.Close(); err != nil {
		r.closeErr = newQueryError(r.query, err)
	}
	err, release := r.closeErr, r.release
	r.mu.Unlock()

	if release != nil {
		release(r)
	}
	return err
}
