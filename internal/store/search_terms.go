//go:build !sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"sort"

	"github.com/kljensen/snowball/english"

	"github.com/starford/dia/internal/apperr"
)

const searchSchemaSQL = `
CREATE TABLE IF NOT EXISTS search_docs (
	entry_id INTEGER PRIMARY KEY REFERENCES entries(id) ON DELETE CASCADE,
	content  TEXT NOT NULL,
	length   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS search_terms (
	entry_id INTEGER NOT NULL REFERENCES search_docs(entry_id) ON DELETE CASCADE,
	term     TEXT NOT NULL,
	tf       INTEGER NOT NULL,
	PRIMARY KEY (entry_id, term)
);

CREATE INDEX IF NOT EXISTS idx_search_terms_term ON search_terms(term);
`

func initSearch(conn *sql.DB) error {
	_, err := conn.Exec(searchSchemaSQL)
	return err
}

// stems tokenizes text and reduces each token to its English stem.
func stems(text string) []string {
	tokens := Tokenize(text)
	for i, t := range tokens {
		tokens[i] = english.Stem(t, false)
	}
	return tokens
}

// Index stores or replaces the index record of an entry.
func (SearchIndex) Index(ctx context.Context, q Querier, entryID int64, content string) error {
	if err := (SearchIndex{}).Remove(ctx, q, entryID); err != nil {
		return err
	}

	terms := stems(content)
	if _, err := q.ExecContext(ctx,
		`INSERT INTO search_docs (entry_id, content, length) VALUES (?, ?, ?)`,
		entryID, content, len(terms)); err != nil {
		return apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: insert search doc",
			apperr.Field("entry_id", entryID))
	}

	tf := make(map[string]int, len(terms))
	for _, t := range terms {
		tf[t]++
	}
	keys := make([]string, 0, len(tf))
	for t := range tf {
		keys = append(keys, t)
	}
	sort.Strings(keys)
	for _, t := range keys {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO search_terms (entry_id, term, tf) VALUES (?, ?, ?)`,
			entryID, t, tf[t]); err != nil {
			return apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: insert search term",
				apperr.Field("entry_id", entryID))
		}
	}
	return nil
}

// Search returns entries containing every stemmed query term, ranked by
// summed term frequency. A query without tokens matches nothing.
func (SearchIndex) Search(ctx context.Context, q Querier, query string, limit int) ([]Hit, error) {
	terms := uniq(stems(query))
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = -1
	}

	args := make([]any, 0, len(terms)+2)
	for _, t := range terms {
		args = append(args, t)
	}
	args = append(args, len(terms), limit)

	rows, err := q.QueryContext(ctx, `
		SELECT entry_id, SUM(tf) AS score
		FROM search_terms
		WHERE term IN (`+placeholders(len(terms))+`)
		GROUP BY entry_id
		HAVING COUNT(*) = ?
		ORDER BY score DESC, entry_id DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: search")
	}
	defer rows.Close()

	var out []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.EntryID, &h.Score); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: scan hit")
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: search")
	}
	return out, nil
}

// Matching returns the set of entries containing every stemmed query term.
func (SearchIndex) Matching(query string) IDSet {
	terms := uniq(stems(query))
	if len(terms) == 0 {
		return NoEntries
	}
	args := make([]any, 0, len(terms)+1)
	for _, t := range terms {
		args = append(args, t)
	}
	args = append(args, len(terms))
	return IDSet{
		SQL: `SELECT entry_id FROM search_terms WHERE term IN (` + placeholders(len(terms)) +
			`) GROUP BY entry_id HAVING COUNT(*) = ?`,
		Args: args,
	}
}

// Remove deletes the index record of an entry, if any.
func (SearchIndex) Remove(ctx context.Context, q Querier, entryID int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM search_terms WHERE entry_id = ?`, entryID); err != nil {
		return apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: delete search terms")
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM search_docs WHERE entry_id = ?`, entryID); err != nil {
		return apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: delete search doc")
	}
	return nil
}

// Has reports whether the entry has an index record.
func (SearchIndex) Has(ctx context.Context, q Querier, entryID int64) (bool, error) {
	var ok bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM search_docs WHERE entry_id = ?)`, entryID).Scan(&ok)
	if err != nil {
		return false, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: index lookup")
	}
	return ok, nil
}

func countIndexed(ctx context.Context, q Querier) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT count(*) FROM search_docs`).Scan(&n)
	return n, err
}
