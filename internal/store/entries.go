package store

import (
	"context"
	"database/sql"
	"errors"
	"iter"
	"strings"
	"time"

	"github.com/starford/dia/internal/apperr"
	"github.com/starford/dia/internal/models"
)

// EntryQuery restricts Entries.Filter. Zero values impose no restriction;
// an entry must belong to every set in Within.
type EntryQuery struct {
	From   string // inclusive lower date bound, YYYY-MM-DD
	To     string // inclusive upper date bound, YYYY-MM-DD
	Within []IDSet
	Limit  int
}

// Entries owns the entries table.
type Entries struct {
	// Now returns the current time; nil means time.Now.
	Now func() time.Time
}

func (e Entries) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// NormalizeDate validates a YYYY-MM-DD date, or returns the local calendar
// date of now when date is empty.
func NormalizeDate(date string, now time.Time) (string, error) {
	if date == "" {
		return now.Local().Format(models.DateLayout), nil
	}
	t, err := time.ParseInLocation(models.DateLayout, date, time.Local)
	if err != nil {
		return "", apperr.Wrap(err, apperr.CodeValidationInvalidDate,
			"date must be YYYY-MM-DD", apperr.Field("date", date))
	}
	return t.Format(models.DateLayout), nil
}

// Create inserts one entry and returns it with its assigned id.
func (e Entries) Create(ctx context.Context, q Querier, content, date string) (models.Entry, error) {
	if strings.TrimSpace(content) == "" {
		return models.Entry{}, apperr.New(apperr.CodeValidationInvalidInput, "entry content is empty")
	}
	now := e.now()
	day, err := NormalizeDate(date, now)
	if err != nil {
		return models.Entry{}, err
	}
	created := now.UTC()

	res, err := q.ExecContext(ctx,
		`INSERT INTO entries (content, date, created_at) VALUES (?, ?, ?)`,
		content, day, created)
	if err != nil {
		return models.Entry{}, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: insert entry")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Entry{}, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: entry id")
	}
	return models.Entry{ID: id, Content: content, Date: day, CreatedAt: created}, nil
}

// Get returns the entry with the given id.
func (e Entries) Get(ctx context.Context, q Querier, id int64) (models.Entry, error) {
	var out models.Entry
	err := q.QueryRowContext(ctx,
		`SELECT id, content, date, created_at FROM entries WHERE id = ?`, id,
	).Scan(&out.ID, &out.Content, &out.Date, &out.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Entry{}, apperr.New(apperr.CodeEntryNotFound, "entry not found", apperr.Field("entry_id", id))
	}
	if err != nil {
		return models.Entry{}, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: get entry")
	}
	return out, nil
}

// Exists reports whether an entry with the given id exists.
func (e Entries) Exists(ctx context.Context, q Querier, id int64) (bool, error) {
	var ok bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM entries WHERE id = ?)`, id).Scan(&ok)
	if err != nil {
		return false, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: entry exists")
	}
	return ok, nil
}

// Filter returns the entries matching eq, newest date first, then highest id.
// Every range over the returned sequence runs the query again.
func (e Entries) Filter(ctx context.Context, q Querier, eq EntryQuery) iter.Seq2[models.Entry, error] {
	return func(yield func(models.Entry, error) bool) {
		var (
			where []string
			args  []any
		)
		if eq.From != "" {
			where = append(where, "date >= ?")
			args = append(args, eq.From)
		}
		if eq.To != "" {
			where = append(where, "date <= ?")
			args = append(args, eq.To)
		}
		for _, set := range eq.Within {
			where = append(where, "id IN ("+set.SQL+")")
			args = append(args, set.Args...)
		}

		query := `SELECT id, content, date, created_at FROM entries`
		if len(where) > 0 {
			query += " WHERE " + strings.Join(where, " AND ")
		}
		query += " ORDER BY date DESC, id DESC"
		if eq.Limit > 0 {
			query += " LIMIT ?"
			args = append(args, eq.Limit)
		}

		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			yield(models.Entry{}, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: filter entries"))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var en models.Entry
			if err := rows.Scan(&en.ID, &en.Content, &en.Date, &en.CreatedAt); err != nil {
				yield(models.Entry{}, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: scan entry"))
				return
			}
			if !yield(en, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(models.Entry{}, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: filter entries"))
		}
	}
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
