//go:build !sqlite_fts5

package store

import (
	"reflect"
	"testing"
)

func TestTermTables_Exist(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"search_docs", "search_terms"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestStems(t *testing.T) {
	got := stems("Meetings RUNNING cats")
	want := []string{"meet", "run", "cat"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("stems = %v, want %v", got, want)
	}
}

func TestTermFrequencies(t *testing.T) {
	db := testDB(t)
	id := indexed(t, db, "cats and a cat")
	var tf int
	if err := db.conn.QueryRow(`SELECT tf FROM search_terms WHERE entry_id = ? AND term = 'cat'`, id).Scan(&tf); err != nil {
		t.Fatalf("term row: %v", err)
	}
	if tf != 2 {
		t.Errorf("tf = %d, want 2", tf)
	}
}
