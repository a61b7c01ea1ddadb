package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/starford/dia/internal/apperr"
	"github.com/starford/dia/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "dia-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() {
		os.Remove(f.Name())
		os.Remove(f.Name() + "-wal")
		os.Remove(f.Name() + "-shm")
	})

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func fixedClock(ts string) func() time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", ts, time.Local)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

func mustCreate(t *testing.T, db *DB, content, date string) models.Entry {
	t.Helper()
	e, err := Entries{}.Create(context.Background(), db.conn, content, date)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return e
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"entries", "people", "projects", "tags", "entry_people", "entry_projects", "entry_tags"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestOpen_Reopen(t *testing.T) {
	db := testDB(t)
	mustCreate(t, db, "persisted", "2025-01-02")
	path := db.Path()
	db.Close()

	again, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()
	c, err := again.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if c.Entries != 1 {
		t.Errorf("entries = %d, want 1", c.Entries)
	}
}

func TestEntries_CreateAndGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	entries := Entries{Now: fixedClock("2025-03-01 09:30")}

	e, err := entries.Create(ctx, db.conn, "hello journal", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if e.ID == 0 {
		t.Fatal("expected an id")
	}
	if e.Date != "2025-03-01" {
		t.Errorf("date = %q, want today's date 2025-03-01", e.Date)
	}

	got, err := entries.Get(ctx, db.conn, e.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Content != "hello journal" || got.Date != "2025-03-01" {
		t.Errorf("got %+v", got)
	}
	if !got.CreatedAt.Equal(e.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, e.CreatedAt)
	}
}

func TestEntries_CreateRejectsEmpty(t *testing.T) {
	db := testDB(t)
	_, err := Entries{}.Create(context.Background(), db.conn, "   \n", "")
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEntries_CreateRejectsBadDate(t *testing.T) {
	db := testDB(t)
	_, err := Entries{}.Create(context.Background(), db.conn, "text", "2025-13-40")
	if !apperr.HasCode(err, apperr.CodeValidationInvalidDate) {
		t.Fatalf("expected invalid date error, got %v", err)
	}
}

func TestEntries_GetNotFound(t *testing.T) {
	db := testDB(t)
	_, err := Entries{}.Get(context.Background(), db.conn, 42)
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEntries_FilterOrderAndRange(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	a := mustCreate(t, db, "a", "2025-01-01")
	b := mustCreate(t, db, "b", "2025-02-01")
	c := mustCreate(t, db, "c", "2025-02-01")
	d := mustCreate(t, db, "d", "2025-03-01")

	var ids []int64
	for e, err := range (Entries{}).Filter(ctx, db.conn, EntryQuery{}) {
		if err != nil {
			t.Fatalf("Filter: %v", err)
		}
		ids = append(ids, e.ID)
	}
	want := []int64{d.ID, c.ID, b.ID, a.ID}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}

	ids = ids[:0]
	for e, err := range (Entries{}).Filter(ctx, db.conn, EntryQuery{From: "2025-02-01", To: "2025-02-28"}) {
		if err != nil {
			t.Fatalf("Filter: %v", err)
		}
		ids = append(ids, e.ID)
	}
	if len(ids) != 2 || ids[0] != c.ID || ids[1] != b.ID {
		t.Errorf("range ids = %v, want [%d %d]", ids, c.ID, b.ID)
	}
}

// filterIDs collects the ids Entries.Filter yields for q, newest first.
func filterIDs(t *testing.T, db *DB, q EntryQuery) []int64 {
	t.Helper()
	var ids []int64
	for e, err := range (Entries{}).Filter(context.Background(), db.conn, q) {
		if err != nil {
			t.Fatalf("Filter: %v", err)
		}
		ids = append(ids, e.ID)
	}
	return ids
}

func TestEntries_FilterWithin(t *testing.T) {
	db := testDB(t)
	a := mustCreate(t, db, "a", "2025-01-01")
	b := mustCreate(t, db, "b", "2025-01-02")

	only := IDSet{SQL: "SELECT ?", Args: []any{a.ID}}
	if ids := filterIDs(t, db, EntryQuery{Within: []IDSet{only}}); len(ids) != 1 || ids[0] != a.ID {
		t.Errorf("within one set = %v, want [%d]", ids, a.ID)
	}

	both := IDSet{SQL: "SELECT ? UNION SELECT ?", Args: []any{a.ID, b.ID}}
	if ids := filterIDs(t, db, EntryQuery{Within: []IDSet{both, only}}); len(ids) != 1 || ids[0] != a.ID {
		t.Errorf("intersection = %v, want [%d]", ids, a.ID)
	}

	if ids := filterIDs(t, db, EntryQuery{Within: []IDSet{NoEntries}}); len(ids) != 0 {
		t.Errorf("empty set matched %v", ids)
	}
}

func TestEntries_FilterManyLinkedEntries(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	tid, err := Registry{}.Upsert(ctx, db.conn, models.Tag, "work")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// More links than SQLite allows bound variables in one statement.
	const n = 33000
	tx, err := db.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	for i := 0; i < n; i++ {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO entries (content, date, created_at) VALUES ('bulk #work', '2025-01-01', ?)`,
			time.Now().UTC())
		if err != nil {
			t.Fatalf("insert entry: %v", err)
		}
		id, _ := res.LastInsertId()
		if _, err := tx.ExecContext(ctx, `INSERT INTO entry_tags (entry_id, tag_id) VALUES (?, ?)`, id, tid); err != nil {
			t.Fatalf("insert link: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	set, err := Links{}.EntriesFor(ctx, db.conn, models.EntityRef{Namespace: models.Tag, ID: tid})
	if err != nil {
		t.Fatalf("EntriesFor: %v", err)
	}
	if len(set.Args) != 1 {
		t.Errorf("set binds %d args, want 1", len(set.Args))
	}
	if ids := filterIDs(t, db, EntryQuery{Within: []IDSet{set}, Limit: 5}); len(ids) != 5 {
		t.Errorf("got %d entries, want 5", len(ids))
	}
}

func TestEntries_FilterRestartable(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustCreate(t, db, "first", "2025-01-01")

	seq := Entries{}.Filter(ctx, db.conn, EntryQuery{})
	count := func() int {
		n := 0
		for _, err := range seq {
			if err != nil {
				t.Fatalf("Filter: %v", err)
			}
			n++
		}
		return n
	}
	if got := count(); got != 1 {
		t.Fatalf("first pass = %d, want 1", got)
	}
	mustCreate(t, db, "second", "2025-01-02")
	if got := count(); got != 2 {
		t.Errorf("second pass = %d, want 2 (sequence must re-query)", got)
	}
}

func TestRegistry_UpsertIdempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	r := Registry{}

	id1, err := r.Upsert(ctx, db.conn, models.Person, "Alice")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	id2, err := r.Upsert(ctx, db.conn, models.Person, "Alice")
	if err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	if id1 != id2 {
		t.Errorf("ids differ: %d vs %d", id1, id2)
	}

	var n int
	_ = db.conn.QueryRow(`SELECT count(*) FROM people WHERE name = 'Alice'`).Scan(&n)
	if n != 1 {
		t.Errorf("people rows = %d, want 1", n)
	}
}

func TestRegistry_UpsertInsideTx(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	tx, err := db.BeginTx(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	r := Registry{}
	a, _ := r.Upsert(ctx, tx, models.Tag, "urgent")
	b, err := r.Upsert(ctx, tx, models.Tag, "urgent")
	if err != nil {
		t.Fatalf("second upsert in tx: %v", err)
	}
	if a != b {
		t.Errorf("ids differ inside tx: %d vs %d", a, b)
	}
}

func TestRegistry_NamespacesIndependent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	r := Registry{}
	if _, err := r.Upsert(ctx, db.conn, models.Person, "Launch"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Upsert(ctx, db.conn, models.Project, "Launch"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Lookup(ctx, db.conn, models.Tag, "Launch"); !apperr.IsNotFound(err) {
		t.Errorf("tag Launch should not exist, got %v", err)
	}
}

func TestRegistry_CaseSensitive(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	r := Registry{}
	a, _ := r.Upsert(ctx, db.conn, models.Person, "alice")
	b, _ := r.Upsert(ctx, db.conn, models.Person, "Alice")
	if a == b {
		t.Error("names differing in case must be distinct entities")
	}
}

func TestRegistry_UpsertRejectsInvalidName(t *testing.T) {
	db := testDB(t)
	_, err := Registry{}.Upsert(context.Background(), db.conn, models.Tag, "two words")
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = Registry{}.Upsert(context.Background(), db.conn, models.Namespace("place"), "x")
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for unknown namespace, got %v", err)
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	r := Registry{}
	for _, n := range []string{"zeta", "alpha", "mid"} {
		if _, err := r.Upsert(ctx, db.conn, models.Project, n); err != nil {
			t.Fatal(err)
		}
	}
	names, err := r.List(ctx, db.conn, models.Project)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 3 || names[0] != "alpha" || names[1] != "mid" || names[2] != "zeta" {
		t.Errorf("names = %v", names)
	}
}

func TestRegistry_ListPrefix(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	r := Registry{}
	for _, n := range []string{"Alice", "Alan", "Bob", "al_x", "alpha"} {
		if _, err := r.Upsert(ctx, db.conn, models.Person, n); err != nil {
			t.Fatal(err)
		}
	}
	names, err := r.ListPrefix(ctx, db.conn, models.Person, "Al", 10)
	if err != nil {
		t.Fatalf("ListPrefix: %v", err)
	}
	// LIKE ignores ASCII case; "al_x" matches because the prefix is "Al".
	if len(names) != 4 {
		t.Errorf("names = %v, want 4 matches", names)
	}

	names, _ = r.ListPrefix(ctx, db.conn, models.Person, "al_", 10)
	if len(names) != 1 || names[0] != "al_x" {
		t.Errorf("underscore must match literally, got %v", names)
	}

	names, _ = r.ListPrefix(ctx, db.conn, models.Person, "", 2)
	if len(names) != 2 {
		t.Errorf("limit not applied: %v", names)
	}
}

func TestLinks_IdempotentAndLookups(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	e := mustCreate(t, db, "Met @Alice", "2025-01-01")
	pid, _ := Registry{}.Upsert(ctx, db.conn, models.Person, "Alice")
	ref := models.EntityRef{Namespace: models.Person, ID: pid}

	l := Links{}
	if err := l.Link(ctx, db.conn, e.ID, ref); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if err := l.Link(ctx, db.conn, e.ID, ref); err != nil {
		t.Fatalf("second Link should be a no-op: %v", err)
	}

	var n int
	_ = db.conn.QueryRow(`SELECT count(*) FROM entry_people`).Scan(&n)
	if n != 1 {
		t.Errorf("link rows = %d, want 1", n)
	}

	names, err := l.EntitiesFor(ctx, db.conn, e.ID, models.Person)
	if err != nil || len(names) != 1 || names[0] != "Alice" {
		t.Errorf("EntitiesFor = %v, %v", names, err)
	}
	set, err := l.EntriesFor(ctx, db.conn, ref)
	if err != nil {
		t.Fatalf("EntriesFor: %v", err)
	}
	if ids := filterIDs(t, db, EntryQuery{Within: []IDSet{set}}); len(ids) != 1 || ids[0] != e.ID {
		t.Errorf("EntriesFor = %v, want [%d]", ids, e.ID)
	}

	tags, err := l.EntitiesFor(ctx, db.conn, e.ID, models.Tag)
	if err != nil || len(tags) != 0 {
		t.Errorf("tags = %v, %v; want empty", tags, err)
	}
}

func TestLinks_NotFound(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if _, err := (Links{}).EntitiesFor(ctx, db.conn, 99, models.Tag); !apperr.IsNotFound(err) {
		t.Errorf("EntitiesFor missing entry: %v", err)
	}
	if _, err := (Links{}).EntriesFor(ctx, db.conn, models.EntityRef{Namespace: models.Tag, ID: 99}); !apperr.IsNotFound(err) {
		t.Errorf("EntriesFor missing entity: %v", err)
	}
}

func TestLinks_ForeignKeysEnforced(t *testing.T) {
	db := testDB(t)
	err := Links{}.Link(context.Background(), db.conn, 12345, models.EntityRef{Namespace: models.Tag, ID: 1})
	if !apperr.IsStorage(err) {
		t.Fatalf("expected storage error for dangling link, got %v", err)
	}
}

func TestCounts(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	e := mustCreate(t, db, "one", "2025-01-01")
	id, _ := Registry{}.Upsert(ctx, db.conn, models.Tag, "x")
	_ = Links{}.Link(ctx, db.conn, e.ID, models.EntityRef{Namespace: models.Tag, ID: id})
	_ = SearchIndex{}.Index(ctx, db.conn, e.ID, e.Content)

	c, err := db.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if c.Entries != 1 || c.Entities[models.Tag] != 1 || c.Links[models.Tag] != 1 || c.Indexed != 1 {
		t.Errorf("counts = %+v", c)
	}
	if c.Entities[models.Person] != 0 {
		t.Errorf("people = %d, want 0", c.Entities[models.Person])
	}
}
