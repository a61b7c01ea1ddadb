package journal

import (
	"context"
	"iter"
	"strings"
	"time"

	"github.com/starford/dia/internal/apperr"
	"github.com/starford/dia/internal/models"
	"github.com/starford/dia/internal/store"
)

// EntryDetail is an entry with the names it references.
type EntryDetail struct {
	models.Entry
	People   []string `json:"people"`
	Projects []string `json:"projects"`
	Tags     []string `json:"tags"`
}

// Names returns the names linked in ns.
func (d EntryDetail) Names(ns models.Namespace) []string {
	switch ns {
	case models.Person:
		return d.People
	case models.Project:
		return d.Projects
	case models.Tag:
		return d.Tags
	}
	return nil
}

// SearchHit is one ranked search result.
type SearchHit struct {
	Entry models.Entry `json:"entry"`
	Score float64      `json:"score"`
}

// Filter selects entries. Empty fields impose no restriction; all set fields
// must match.
type Filter struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Text    string `json:"text,omitempty"`
	Person  string `json:"person,omitempty"`
	Project string `json:"project,omitempty"`
	Tag     string `json:"tag,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

type entityClause struct {
	ns   models.Namespace
	name string
}

func (f Filter) entities() []entityClause {
	var out []entityClause
	for _, ns := range models.Namespaces {
		var name string
		switch ns {
		case models.Person:
			name = f.Person
		case models.Project:
			name = f.Project
		case models.Tag:
			name = f.Tag
		}
		if name = strings.TrimPrefix(name, ns.Sigil()); name != "" {
			out = append(out, entityClause{ns: ns, name: name})
		}
	}
	return out
}

// ParseDateRange accepts "D" or "D..D" (either side may be empty in the
// range form) and returns inclusive bounds.
func ParseDateRange(s string) (from, to string, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", nil
	}
	from, to, isRange := strings.Cut(s, "..")
	if !isRange {
		to = from
	}
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := store.NormalizeDate(d, time.Time{}); err != nil {
			return "", "", err
		}
	}
	if from != "" && to != "" && from > to {
		return "", "", apperr.New(apperr.CodeValidationInvalidDate, "date range is reversed",
			apperr.Field("from", from), apperr.Field("to", to))
	}
	return from, to, nil
}

// Service is the read side of the journal plus a handle on the pipeline.
type Service struct {
	db       *store.DB
	pipeline *Pipeline
	entries  store.EntryStore
	registry store.EntityRegistry
	links    store.LinkTable
	index    store.Index
}

// NewService creates a service reading from db and ingesting through p.
func NewService(db *store.DB, p *Pipeline) *Service {
	return &Service{
		db:       db,
		pipeline: p,
		entries:  p.entries,
		registry: p.registry,
		links:    p.links,
		index:    p.index,
	}
}

// Ingest stores a new entry. See Pipeline.Ingest.
func (s *Service) Ingest(ctx context.Context, content, date string) (models.Entry, error) {
	return s.pipeline.Ingest(ctx, content, date)
}

// Get returns one entry with its linked names.
func (s *Service) Get(ctx context.Context, id int64) (*EntryDetail, error) {
	q := s.db.Reader()
	e, err := s.entries.Get(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, q, e)
}

func (s *Service) detail(ctx context.Context, q store.Querier, e models.Entry) (*EntryDetail, error) {
	d := &EntryDetail{Entry: e}
	for _, ns := range models.Namespaces {
		names, err := s.links.EntitiesFor(ctx, q, e.ID, ns)
		if err != nil {
			return nil, err
		}
		switch ns {
		case models.Person:
			d.People = names
		case models.Project:
			d.Projects = names
		case models.Tag:
			d.Tags = names
		}
	}
	return d, nil
}

// Filter returns the entries matching f, newest first. Text is a full-text
// query; an entity that does not exist matches nothing.
func (s *Service) Filter(ctx context.Context, f Filter) iter.Seq2[models.Entry, error] {
	return func(yield func(models.Entry, error) bool) {
		q := s.db.Reader()
		sets, err := s.within(ctx, q, f)
		if err != nil {
			yield(models.Entry{}, err)
			return
		}
		eq := store.EntryQuery{From: f.From, To: f.To, Within: sets, Limit: f.Limit}
		for e, err := range s.entries.Filter(ctx, q, eq) {
			if !yield(e, err) {
				return
			}
		}
	}
}

// FilterDetails is Filter with linked names attached to every entry.
func (s *Service) FilterDetails(ctx context.Context, f Filter) ([]EntryDetail, error) {
	q := s.db.Reader()
	out := []EntryDetail{}
	for e, err := range s.Filter(ctx, f) {
		if err != nil {
			return nil, err
		}
		d, err := s.detail(ctx, q, e)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

// within returns one id set per text or entity clause of f. Each set stays a
// subquery, so the filter never binds one parameter per linked entry.
func (s *Service) within(ctx context.Context, q store.Querier, f Filter) ([]store.IDSet, error) {
	var sets []store.IDSet
	if text := strings.TrimSpace(f.Text); text != "" {
		sets = append(sets, s.index.Matching(text))
	}
	for _, c := range f.entities() {
		id, err := s.registry.Lookup(ctx, q, c.ns, c.name)
		if apperr.HasCode(err, apperr.CodeEntityNotFound) {
			return []store.IDSet{store.NoEntries}, nil
		}
		if err != nil {
			return nil, err
		}
		set, err := s.links.EntriesFor(ctx, q, models.EntityRef{Namespace: c.ns, ID: id})
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return sets, nil
}

// Search runs a ranked full-text query. limit <= 0 means no limit.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	q := s.db.Reader()
	hits, err := s.index.Search(ctx, q, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]SearchHit, 0, len(hits))
	for _, h := range hits {
		e, err := s.entries.Get(ctx, q, h.EntryID)
		if err != nil {
			return nil, err
		}
		out = append(out, SearchHit{Entry: e, Score: h.Score})
	}
	return out, nil
}

// Entities lists every name in ns, sorted.
func (s *Service) Entities(ctx context.Context, ns models.Namespace) ([]string, error) {
	return s.registry.List(ctx, s.db.Reader(), ns)
}

// EntitiesWithPrefix lists up to limit names in ns starting with prefix.
func (s *Service) EntitiesWithPrefix(ctx context.Context, ns models.Namespace, prefix string, limit int) ([]string, error) {
	return s.registry.ListPrefix(ctx, s.db.Reader(), ns, prefix, limit)
}

// Counts returns journal row counts.
func (s *Service) Counts(ctx context.Context) (store.Counts, error) {
	return s.db.Counts(ctx)
}
