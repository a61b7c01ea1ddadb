package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/starford/dia/internal/apperr"
	"github.com/starford/dia/internal/models"
	"github.com/starford/dia/internal/parser"
)

// nsTables names the entity table, link table and link foreign-key column of
// one namespace. Table names are never taken from user input.
type nsTables struct {
	entity string
	link   string
	fk     string
}

var namespaceTables = map[models.Namespace]nsTables{
	models.Person:  {entity: "people", link: "entry_people", fk: "person_id"},
	models.Project: {entity: "projects", link: "entry_projects", fk: "project_id"},
	models.Tag:     {entity: "tags", link: "entry_tags", fk: "tag_id"},
}

func tablesFor(ns models.Namespace) (nsTables, error) {
	t, ok := namespaceTables[ns]
	if !ns.Valid() || !ok {
		return nsTables{}, apperr.New(apperr.CodeValidationInvalidInput, "unknown namespace",
			apperr.Field("namespace", string(ns)))
	}
	return t, nil
}

// Registry owns the people, projects and tags tables.
type Registry struct {
	// Now returns the current time; nil means time.Now.
	Now func() time.Time
}

// Upsert returns the id of (ns, name), inserting the row first if absent.
// Calling it repeatedly for the same name inside one transaction is safe.
func (r Registry) Upsert(ctx context.Context, q Querier, ns models.Namespace, name string) (int64, error) {
	t, err := tablesFor(ns)
	if err != nil {
		return 0, err
	}
	if !parser.ValidName(name) {
		return 0, apperr.New(apperr.CodeValidationInvalidInput, "invalid entity name",
			apperr.Field("namespace", string(ns)), apperr.Field("name", name))
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO `+t.entity+` (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, now().UTC()); err != nil {
		return 0, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: insert entity",
			apperr.Field("namespace", string(ns)), apperr.Field("name", name))
	}

	var id int64
	if err := q.QueryRowContext(ctx, `SELECT id FROM `+t.entity+` WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: fetch entity id",
			apperr.Field("namespace", string(ns)), apperr.Field("name", name))
	}
	return id, nil
}

// Lookup returns the id of (ns, name) without creating it.
func (r Registry) Lookup(ctx context.Context, q Querier, ns models.Namespace, name string) (int64, error) {
	t, err := tablesFor(ns)
	if err != nil {
		return 0, err
	}
	var id int64
	err = q.QueryRowContext(ctx, `SELECT id FROM `+t.entity+` WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.New(apperr.CodeEntityNotFound, "entity not found",
			apperr.Field("namespace", string(ns)), apperr.Field("name", name))
	}
	if err != nil {
		return 0, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: lookup entity")
	}
	return id, nil
}

// List returns every name in ns, sorted.
func (r Registry) List(ctx context.Context, q Querier, ns models.Namespace) ([]string, error) {
	t, err := tablesFor(ns)
	if err != nil {
		return nil, err
	}
	return queryNames(ctx, q, `SELECT name FROM `+t.entity+` ORDER BY name`)
}

// ListPrefix returns up to limit names in ns starting with prefix, sorted.
// Matching follows SQLite LIKE, which ignores ASCII case.
func (r Registry) ListPrefix(ctx context.Context, q Querier, ns models.Namespace, prefix string, limit int) ([]string, error) {
	t, err := tablesFor(ns)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	return queryNames(ctx, q,
		`SELECT name FROM `+t.entity+` WHERE name LIKE ? ESCAPE '\' ORDER BY name LIMIT ?`,
		escapeLike(prefix)+"%", limit)
}

func queryNames(ctx context.Context, q Querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: list names")
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: scan name")
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: list names")
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
