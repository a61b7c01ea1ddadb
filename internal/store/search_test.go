package store

import (
	"context"
	"reflect"
	"testing"
)

func indexed(t *testing.T, db *DB, content string) int64 {
	t.Helper()
	e := mustCreate(t, db, content, "2025-01-01")
	if err := (SearchIndex{}).Index(context.Background(), db.conn, e.ID, content); err != nil {
		t.Fatalf("Index: %v", err)
	}
	return e.ID
}

func hitIDs(hits []Hit) []int64 {
	out := make([]int64, len(hits))
	for i, h := range hits {
		out[i] = h.EntryID
	}
	return out
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Met @Alice about %Launch-Plan #urgent, 2x!")
	want := []string{"met", "alice", "about", "launch", "plan", "urgent", "2x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
}

func TestTokenize_FoldsDiacritics(t *testing.T) {
	got := Tokenize("Crème Brûlée at Café Noël")
	want := []string{"creme", "brulee", "at", "cafe", "noel"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
}

func TestSearch_DiacriticsFolded(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	id := indexed(t, db, "café au lait with Zoë")

	for _, q := range []string{"cafe", "café", "CAFÉ", "zoe"} {
		hits, err := SearchIndex{}.Search(ctx, db.conn, q, 10)
		if err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}
		if len(hits) != 1 || hits[0].EntryID != id {
			t.Errorf("Search(%q) = %v, want [%d]", q, hitIDs(hits), id)
		}
	}
}

func TestMatching_SameEntriesAsSearch(t *testing.T) {
	db := testDB(t)
	hit := indexed(t, db, "planning the café launch")
	indexed(t, db, "planning only")

	set := SearchIndex{}.Matching("cafe planning")
	if ids := filterIDs(t, db, EntryQuery{Within: []IDSet{set}}); !reflect.DeepEqual(ids, []int64{hit}) {
		t.Errorf("Matching = %v, want [%d]", ids, hit)
	}
	if set := (SearchIndex{}).Matching("!!"); !reflect.DeepEqual(set, NoEntries) {
		t.Errorf("Matching without tokens = %+v, want NoEntries", set)
	}
}

func TestSearch_RoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	id := indexed(t, db, "Met @Alice about %Launch #urgent")

	for _, q := range []string{"urgent", "Alice", "LAUNCH", "met alice"} {
		hits, err := SearchIndex{}.Search(ctx, db.conn, q, 10)
		if err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}
		if !reflect.DeepEqual(hitIDs(hits), []int64{id}) {
			t.Errorf("Search(%q) = %v, want [%d]", q, hitIDs(hits), id)
		}
	}

	hits, err := SearchIndex{}.Search(ctx, db.conn, "absent", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("absent token matched %v", hitIDs(hits))
	}
}

func TestSearch_Stemming(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	id := indexed(t, db, "Long meetings with the running club")

	for _, q := range []string{"meeting", "meetings", "run", "runs"} {
		hits, err := SearchIndex{}.Search(ctx, db.conn, q, 10)
		if err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}
		if len(hits) != 1 || hits[0].EntryID != id {
			t.Errorf("Search(%q) = %v, want [%d]", q, hitIDs(hits), id)
		}
	}
}

func TestSearch_AllTermsRequired(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	both := indexed(t, db, "budget review with finance")
	indexed(t, db, "budget only")

	hits, err := SearchIndex{}.Search(ctx, db.conn, "budget finance", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !reflect.DeepEqual(hitIDs(hits), []int64{both}) {
		t.Errorf("hits = %v, want [%d]", hitIDs(hits), both)
	}
}

func TestSearch_RankedByFrequency(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	once := indexed(t, db, "deploy went fine, nothing else to report today at all")
	thrice := indexed(t, db, "deploy deploy deploy")

	hits, err := SearchIndex{}.Search(ctx, db.conn, "deploy", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !reflect.DeepEqual(hitIDs(hits), []int64{thrice, once}) {
		t.Errorf("hits = %v, want [%d %d]", hitIDs(hits), thrice, once)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	db := testDB(t)
	indexed(t, db, "anything at all")
	for _, q := range []string{"", "   ", "!!! ,,"} {
		hits, err := SearchIndex{}.Search(context.Background(), db.conn, q, 10)
		if err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}
		if len(hits) != 0 {
			t.Errorf("Search(%q) = %v, want none", q, hitIDs(hits))
		}
	}
}

func TestSearch_OperatorsAreLiteral(t *testing.T) {
	db := testDB(t)
	indexed(t, db, "alpha beta")
	if _, err := (SearchIndex{}).Search(context.Background(), db.conn, `alpha OR "beta* NEAR(`, 10); err != nil {
		t.Fatalf("query syntax leaked into the match: %v", err)
	}
}

func TestIndex_ReplaceAndRemove(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	id := indexed(t, db, "original text")
	idx := SearchIndex{}

	if err := idx.Index(ctx, db.conn, id, "replacement text"); err != nil {
		t.Fatalf("re-Index: %v", err)
	}
	if hits, _ := idx.Search(ctx, db.conn, "original", 10); len(hits) != 0 {
		t.Error("old content should be gone")
	}
	if hits, _ := idx.Search(ctx, db.conn, "replacement", 10); len(hits) != 1 {
		t.Error("new content should be indexed")
	}

	c, _ := db.Counts(ctx)
	if c.Indexed != 1 {
		t.Errorf("indexed = %d, want exactly one record", c.Indexed)
	}

	if err := idx.Remove(ctx, db.conn, id); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	ok, err := idx.Has(ctx, db.conn, id)
	if err != nil || ok {
		t.Errorf("Has after Remove = %v, %v", ok, err)
	}
}

func TestIndex_PunctuationOnlyStillRecorded(t *testing.T) {
	db := testDB(t)
	id := indexed(t, db, "?!")
	ok, err := SearchIndex{}.Has(context.Background(), db.conn, id)
	if err != nil || !ok {
		t.Errorf("Has = %v, %v; want a record even without tokens", ok, err)
	}
}
