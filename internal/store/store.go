package store

import (
	"context"
	"iter"

	"github.com/starford/dia/internal/apperr"
	"github.com/starford/dia/internal/models"
)

// EntryStore creates and reads entries.
type EntryStore interface {
	Create(ctx context.Context, q Querier, content, date string) (models.Entry, error)
	Get(ctx context.Context, q Querier, id int64) (models.Entry, error)
	Filter(ctx context.Context, q Querier, eq EntryQuery) iter.Seq2[models.Entry, error]
}

// EntityRegistry upserts and lists named entities.
type EntityRegistry interface {
	Upsert(ctx context.Context, q Querier, ns models.Namespace, name string) (int64, error)
	Lookup(ctx context.Context, q Querier, ns models.Namespace, name string) (int64, error)
	List(ctx context.Context, q Querier, ns models.Namespace) ([]string, error)
	ListPrefix(ctx context.Context, q Querier, ns models.Namespace, prefix string, limit int) ([]string, error)
}

// LinkTable records and queries entry/entity associations.
type LinkTable interface {
	Link(ctx context.Context, q Querier, entryID int64, ref models.EntityRef) error
	EntitiesFor(ctx context.Context, q Querier, entryID int64, ns models.Namespace) ([]string, error)
	EntriesFor(ctx context.Context, q Querier, ref models.EntityRef) (IDSet, error)
}

// Index maintains the full-text index over entry content.
type Index interface {
	Index(ctx context.Context, q Querier, entryID int64, content string) error
	Search(ctx context.Context, q Querier, query string, limit int) ([]Hit, error)
	Matching(query string) IDSet
	Remove(ctx context.Context, q Querier, entryID int64) error
	Has(ctx context.Context, q Querier, entryID int64) (bool, error)
}

// IDSet is a set of entry ids held as a subquery selecting one id column.
// Filters combine sets inside SQL, so no statement binds one parameter per
// matching entry.
type IDSet struct {
	SQL  string
	Args []any
}

// NoEntries is the empty set.
var NoEntries = IDSet{SQL: "SELECT NULL WHERE 0"}

// Verify the concrete components satisfy their interfaces at compile time.
var (
	_ EntryStore     = Entries{}
	_ EntityRegistry = Registry{}
	_ LinkTable      = Links{}
	_ Index          = SearchIndex{}
)

// Counts summarises the journal's row counts.
type Counts struct {
	Entries  int                      `json:"entries"`
	Entities map[models.Namespace]int `json:"entities"`
	Links    map[models.Namespace]int `json:"links"`
	Indexed  int                      `json:"indexed"`
}

// Counts returns row counts for entries, entities, links and index records.
func (db *DB) Counts(ctx context.Context) (Counts, error) {
	c := Counts{
		Entities: make(map[models.Namespace]int, len(models.Namespaces)),
		Links:    make(map[models.Namespace]int, len(models.Namespaces)),
	}
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM entries`).Scan(&c.Entries); err != nil {
		return Counts{}, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: count entries")
	}
	for _, ns := range models.Namespaces {
		t := namespaceTables[ns]
		var n, l int
		if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM `+t.entity).Scan(&n); err != nil {
			return Counts{}, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: count entities")
		}
		if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM `+t.link).Scan(&l); err != nil {
			return Counts{}, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: count links")
		}
		c.Entities[ns] = n
		c.Links[ns] = l
	}
	n, err := countIndexed(ctx, db.conn)
	if err != nil {
		return Counts{}, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: count index")
	}
	c.Indexed = n
	return c, nil
}
