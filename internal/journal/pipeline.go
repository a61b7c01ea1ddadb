// Package journal ingests entries atomically and serves the read side
// (lookup, filtering, search, entity listing, completion) on top of the store.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dia/internal/apperr"
	"github.com/starford/dia/internal/models"
	"github.com/starford/dia/internal/parser"
	"github.com/starford/dia/internal/store"
)

// Stage is a state of one ingestion.
type Stage int

const (
	StageStart Stage = iota
	StageEntryInserted
	StageEntitiesResolved
	StageLinksWritten
	StageIndexWritten
	StageCommitted
	StageAborted
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageEntryInserted:
		return "entry_inserted"
	case StageEntitiesResolved:
		return "entities_resolved"
	case StageLinksWritten:
		return "links_written"
	case StageIndexWritten:
		return "index_written"
	case StageCommitted:
		return "committed"
	case StageAborted:
		return "aborted"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// IngestError is returned for every failed ingestion. Stage is the stage the
// pipeline was trying to reach; the transaction has been rolled back.
type IngestError struct {
	Stage Stage
	Err   error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest: %s: %v", e.Stage, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

// IngestRequest is the caller-supplied input of one ingestion.
type IngestRequest struct {
	Content string `json:"content"`
	Date    string `json:"date"`
}

// Validate checks the request before any transaction is opened.
func (r IngestRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.Required, validation.By(notBlank)),
		validation.Field(&r.Date, validation.Date(models.DateLayout)),
	)
	if err == nil {
		return nil
	}
	code := apperr.CodeValidationInvalidInput
	if errs, ok := err.(validation.Errors); ok {
		if _, bad := errs["date"]; bad {
			code = apperr.CodeValidationInvalidDate
		}
	}
	return apperr.Wrap(err, code, "invalid entry")
}

func notBlank(v any) error {
	if s, _ := v.(string); strings.TrimSpace(s) == "" {
		return validation.NewError("validation_blank", "cannot be blank")
	}
	return nil
}

// TxBeginner opens write transactions.
type TxBeginner interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
}

// Pipeline runs ingestions: one write transaction per call that inserts the
// entry, upserts every referenced entity, links them, indexes the content
// and commits. Calls are serialized.
type Pipeline struct {
	db       TxBeginner
	entries  store.EntryStore
	registry store.EntityRegistry
	links    store.LinkTable
	index    store.Index
	logger   *slog.Logger
	now      func() time.Time
	onStage  func(Stage)
	onCommit []func(models.Entry)

	mu sync.Mutex
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock sets the time source used for entry dates and timestamps.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// WithEntryStore replaces the entry store.
func WithEntryStore(s store.EntryStore) PipelineOption {
	return func(p *Pipeline) { p.entries = s }
}

// WithRegistry replaces the entity registry.
func WithRegistry(r store.EntityRegistry) PipelineOption {
	return func(p *Pipeline) { p.registry = r }
}

// WithLinkTable replaces the link table manager.
func WithLinkTable(l store.LinkTable) PipelineOption {
	return func(p *Pipeline) { p.links = l }
}

// WithIndex replaces the search index.
func WithIndex(i store.Index) PipelineOption {
	return func(p *Pipeline) { p.index = i }
}

// WithStageHook registers fn to observe every stage transition, including
// StageAborted.
func WithStageHook(fn func(Stage)) PipelineOption {
	return func(p *Pipeline) { p.onStage = fn }
}

// OnCommit registers fn to run after each successful commit.
func OnCommit(fn func(models.Entry)) PipelineOption {
	return func(p *Pipeline) { p.onCommit = append(p.onCommit, fn) }
}

// NewPipeline creates a pipeline writing through db.
func NewPipeline(db TxBeginner, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{db: db}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.entries == nil {
		p.entries = store.Entries{Now: p.now}
	}
	if p.registry == nil {
		p.registry = store.Registry{Now: p.now}
	}
	if p.links == nil {
		p.links = store.Links{}
	}
	if p.index == nil {
		p.index = store.SearchIndex{}
	}
	return p
}

// Ingest stores content as a new entry dated date (YYYY-MM-DD, empty for
// today) together with its entities, links and index record. On any failure
// nothing is persisted and the error is an *IngestError.
func (p *Pipeline) Ingest(ctx context.Context, content, date string) (models.Entry, error) {
	p.stage(StageStart)
	if err := (IngestRequest{Content: content, Date: date}).Validate(); err != nil {
		p.stage(StageAborted)
		return models.Entry{}, &IngestError{Stage: StageEntryInserted, Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.db.BeginTx(ctx)
	if err != nil {
		p.stage(StageAborted)
		return models.Entry{}, &IngestError{Stage: StageEntryInserted,
			Err: apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "begin transaction")}
	}

	abort := func(target Stage, err error) (models.Entry, error) {
		_ = tx.Rollback()
		p.logger.Warn("ingest: aborted",
			slog.String("stage", target.String()),
			slog.String("error", err.Error()))
		p.stage(StageAborted)
		return models.Entry{}, &IngestError{Stage: target, Err: err}
	}

	entry, err := p.entries.Create(ctx, tx, content, date)
	if err != nil {
		return abort(StageEntryInserted, err)
	}
	p.stage(StageEntryInserted)

	refs := parser.Extract(content).All()
	resolved := make([]models.EntityRef, 0, len(refs))
	for _, ref := range refs {
		id, err := p.registry.Upsert(ctx, tx, ref.Namespace, ref.Name)
		if err != nil {
			return abort(StageEntitiesResolved, err)
		}
		resolved = append(resolved, models.EntityRef{Namespace: ref.Namespace, ID: id})
	}
	p.stage(StageEntitiesResolved)

	for _, ref := range resolved {
		if err := p.links.Link(ctx, tx, entry.ID, ref); err != nil {
			return abort(StageLinksWritten, err)
		}
	}
	p.stage(StageLinksWritten)

	if err := p.index.Index(ctx, tx, entry.ID, entry.Content); err != nil {
		return abort(StageIndexWritten, err)
	}
	p.stage(StageIndexWritten)

	if err := tx.Commit(); err != nil {
		return abort(StageCommitted, apperr.Wrap(err, apperr.CodeStorageCommitFailure, "commit"))
	}
	p.stage(StageCommitted)

	p.logger.Debug("ingest: committed",
		slog.Int64("entry_id", entry.ID),
		slog.String("date", entry.Date),
		slog.Int("refs", len(refs)))

	for _, fn := range p.onCommit {
		fn(entry)
	}
	return entry, nil
}

func (p *Pipeline) stage(s Stage) {
	p.logger.Debug("ingest: stage", slog.String("stage", s.String()))
	if p.onStage != nil {
		p.onStage(s)
	}
}
