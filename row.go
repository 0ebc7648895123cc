package prefixdb

import (
	jsoniter "github.com/json-iterator/go"
)

// Row is one result row: column names paired with values in select order.
type Row struct {
	columns []string
	values  []any
}

func newRow(columns []string, values []any) Row {
	return Row{columns: columns, values: values}
}

// Columns returns the column names in select order.
func (r Row) Columns() []string {
	return append([]string(nil), r.columns...)
}

// Values returns the values in select order.
func (r Row) Values() []any {
	return append([]any(nil), r.values...)
}

// Len returns the number of columns.
func (r Row) Len() int { return len(r.columns) }

// Get returns the value of the named column. When a name repeats, the last
// column with that name wins, as with an associative fetch.
func (r Row) Get(name string) (any, bool) {
	for i := len(r.columns) - 1; i >= 0; i-- {
		if r.columns[i] == name {
			return r.values[i], true
		}
	}
	return nil, false
}

// Map returns the row as an unordered name -> value map.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.columns))
	for i, col := range r.columns {
		m[col] = r.values[i]
	}
	return m
}

// MarshalJSON encodes the row as a JSON object whose keys keep select order.
func (r Row) MarshalJSON() ([]byte, error) {
	last := make(map[string]int, len(r.columns))
	for i, col := range r.columns {
		last[col] = i
	}

	stream := jsoniter.ConfigCompatibleWithStandardLibrary.BorrowStream(nil)
	defer jsoniter.ConfigCompatibleWithStandardLibrary.ReturnStream(stream)

	stream.WriteObjectStart()
	first := true
	for i, col := range r.columns {
		if last[col] != i {
			continue
		}
		if !first {
			stream.WriteMore()
		}
		first = false
		stream.WriteObjectField(col)
		stream.WriteVal(r.values[i])
	}
	stream.WriteObjectEnd()

	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}
