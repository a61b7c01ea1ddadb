//go:build sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/starford/dia/internal/apperr"
)

func initSearch(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
			content,
			tokenize = 'porter unicode61'
		);
	`)
	return err
}

// matchExpr quotes each query token so FTS5 never sees operators; adjacent
// quoted strings are an implicit AND.
func matchExpr(query string) string {
	tokens := uniq(Tokenize(query))
	for i, t := range tokens {
		tokens[i] = `"` + t + `"`
	}
	return strings.Join(tokens, " ")
}

// Index stores or replaces the index record of an entry. The FTS rowid is
// the entry id.
func (SearchIndex) Index(ctx context.Context, q Querier, entryID int64, content string) error {
	if err := (SearchIndex{}).Remove(ctx, q, entryID); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO entries_fts (rowid, content) VALUES (?, ?)`, entryID, content); err != nil {
		return apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: upsert fts",
			apperr.Field("entry_id", entryID))
	}
	return nil
}

// Search runs an FTS5 match, best bm25 rank first. A query without tokens
// matches nothing.
func (SearchIndex) Search(ctx context.Context, q Querier, query string, limit int) ([]Hit, error) {
	expr := matchExpr(query)
	if expr == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := q.QueryContext(ctx, `
		SELECT rowid, rank
		FROM entries_fts
		WHERE entries_fts MATCH ?
		ORDER BY rank, rowid DESC
		LIMIT ?
	`, expr, limit)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: search")
	}
	defer rows.Close()

	var out []Hit
	for rows.Next() {
		var (
			h    Hit
			rank float64
		)
		if err := rows.Scan(&h.EntryID, &rank); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: scan hit")
		}
		h.Score = -rank
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: search")
	}
	return out, nil
}

// Matching returns the set of entries the FTS5 match selects.
func (SearchIndex) Matching(query string) IDSet {
	expr := matchExpr(query)
	if expr == "" {
		return NoEntries
	}
	return IDSet{SQL: `SELECT rowid FROM entries_fts WHERE entries_fts MATCH ?`, Args: []any{expr}}
}

// Remove deletes the index record of an entry, if any.
func (SearchIndex) Remove(ctx context.Context, q Querier, entryID int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM entries_fts WHERE rowid = ?`, entryID); err != nil {
		return apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: delete fts")
	}
	return nil
}

// Has reports whether the entry has an index record.
func (SearchIndex) Has(ctx context.Context, q Querier, entryID int64) (bool, error) {
	var ok bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM entries_fts WHERE rowid = ?)`, entryID).Scan(&ok)
	if err != nil {
		return false, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: index lookup")
	}
	return ok, nil
}

func countIndexed(ctx context.Context, q Querier) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT count(*) FROM entries_fts`).Scan(&n)
	return n, err
}
