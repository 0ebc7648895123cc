package prefixdb

import (
	"encoding/json"
	"testing"
)

func TestRow_Accessors(t *testing.T) {
	row := newRow([]string{"id", "name", "id"}, []any{int64(1), "alice", int64(2)})

	if row.Len() != 3 {
		t.Fatalf("expected 3 columns, got %d", row.Len())
	}
	if v, ok := row.Get("id"); !ok || v != int64(2) {
		t.Fatalf("expected the last duplicate column to win, got %v", v)
	}
	if _, ok := row.Get("email"); ok {
		t.Fatalf("expected missing column to report false")
	}

	m := row.Map()
	if len(m) != 2 || m["name"] != "alice" || m["id"] != int64(2) {
		t.Fatalf("unexpected map: %v", m)
	}

	cols := row.Columns()
	cols[0] = "changed"
	if row.Columns()[0] != "id" {
		t.Fatalf("expected Columns to return a copy")
	}
}

func TestRow_MarshalJSONKeepsColumnOrder(t *testing.T) {
	row := newRow([]string{"zeta", "alpha", "mid"}, []any{"z", int64(1), nil})

	got, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if want := `{"zeta":"z","alpha":1,"mid":null}`; string(got) != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestRow_MarshalJSONDuplicateColumns(t *testing.T) {
	row := newRow([]string{"id", "name", "id"}, []any{int64(1), "alice", int64(2)})

	got, err := row.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}
	if want := `{"name":"alice","id":2}`; string(got) != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestRow_MarshalJSONEmpty(t *testing.T) {
	got, err := Row{}.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}
	if string(got) != "{}" {
		t.Fatalf("expected {}, got %s", got)
	}
}
