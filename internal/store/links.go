package store

import (
	"context"

	"github.com/starford/dia/internal/apperr"
	"github.com/starford/dia/internal/models"
)

// Links owns the entry_people, entry_projects and entry_tags tables.
type Links struct{}

// Link associates an entry with an entity. Linking an existing pair is a no-op.
func (Links) Link(ctx context.Context, q Querier, entryID int64, ref models.EntityRef) error {
	t, err := tablesFor(ref.Namespace)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT OR IGNORE INTO `+t.link+` (entry_id, `+t.fk+`) VALUES (?, ?)`,
		entryID, ref.ID)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: insert link",
			apperr.Field("entry_id", entryID),
			apperr.Field("namespace", string(ref.Namespace)),
			apperr.Field("entity_id", ref.ID))
	}
	return nil
}

// EntitiesFor returns the sorted names in ns linked to the entry.
func (Links) EntitiesFor(ctx context.Context, q Querier, entryID int64, ns models.Namespace) ([]string, error) {
	t, err := tablesFor(ns)
	if err != nil {
		return nil, err
	}
	ok, err := Entries{}.Exists(ctx, q, entryID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.CodeEntryNotFound, "entry not found", apperr.Field("entry_id", entryID))
	}
	return queryNames(ctx, q, `
		SELECT e.name
		FROM `+t.link+` l
		JOIN `+t.entity+` e ON e.id = l.`+t.fk+`
		WHERE l.entry_id = ?
		ORDER BY e.name`, entryID)
}

// EntriesFor returns the set of entries linked to the entity. It fails with
// NotFound when the entity does not exist.
func (Links) EntriesFor(ctx context.Context, q Querier, ref models.EntityRef) (IDSet, error) {
	t, err := tablesFor(ref.Namespace)
	if err != nil {
		return IDSet{}, err
	}
	var exists bool
	if err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM `+t.entity+` WHERE id = ?)`, ref.ID).Scan(&exists); err != nil {
		return IDSet{}, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "store: entity exists")
	}
	if !exists {
		return IDSet{}, apperr.New(apperr.CodeEntityNotFound, "entity not found",
			apperr.Field("namespace", string(ref.Namespace)), apperr.Field("entity_id", ref.ID))
	}
	return IDSet{
		SQL:  `SELECT entry_id FROM ` + t.link + ` WHERE ` + t.fk + ` = ?`,
		Args: []any{ref.ID},
	}, nil
}
