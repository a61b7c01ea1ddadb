package inbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/dia/internal/apperr"
	"github.com/starford/dia/internal/models"
	"github.com/starford/dia/internal/parser"
)

// Ingester commits one entry. journal.Service satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, content, date string) (models.Entry, error)
}

// Callback is called after a file has been committed as an entry.
type Callback func(path string, entry models.Entry)

// Inbox turns files in a Dir into entries.
type Inbox struct {
	dir    *Dir
	ing    Ingester
	logger *slog.Logger
	cb     Callback

	mu sync.Mutex
	// done holds checksums of committed files that could not be removed, so
	// the same content is not logged twice.
	done map[string]struct{}
}

// New creates an Inbox. cb may be nil.
func New(dir *Dir, ing Ingester, logger *slog.Logger, cb Callback) *Inbox {
	return &Inbox{
		dir:    dir,
		ing:    ing,
		logger: logger,
		cb:     cb,
		done:   make(map[string]struct{}),
	}
}

// Drain ingests every file already waiting in the inbox and returns how many
// entries were committed. Files that fail for storage reasons stay put and
// are retried on the next drain.
func (in *Inbox) Drain(ctx context.Context) (int, error) {
	items, err := in.dir.List()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		ok, err := in.Process(ctx, it.Path)
		if err != nil {
			in.logger.Warn("inbox: ingest failed", slog.String("path", it.Path), slog.String("error", err.Error()))
			continue
		}
		if ok {
			n++
		}
	}
	in.logger.Debug("inbox: drained", slog.Int("files", len(items)), slog.Int("ingested", n))
	return n, nil
}

// Process ingests one inbox file. It reports whether an entry was committed.
// Rejected content is quarantined and reported as (false, nil); a storage
// failure is returned and the file is left for a later attempt. Empty files
// are skipped while their writer is still filling them.
func (in *Inbox) Process(ctx context.Context, path string) (bool, error) {
	data, err := in.dir.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}

	sum := checksum(data)
	in.mu.Lock()
	_, seen := in.done[sum]
	in.mu.Unlock()
	if seen {
		return false, nil
	}

	meta, body := parser.SplitFrontmatter(data)
	date, err := frontmatterDate(meta)
	if err == nil {
		var entry models.Entry
		entry, err = in.ing.Ingest(ctx, body, date)
		if err == nil {
			in.committed(path, sum, entry)
			return true, nil
		}
	}

	if !apperr.IsValidation(err) {
		return false, err
	}
	in.logger.Warn("inbox: rejected", slog.String("path", path), slog.String("error", err.Error()))
	if qerr := in.dir.Quarantine(path, err.Error()); qerr != nil {
		return false, qerr
	}
	return false, nil
}

func (in *Inbox) committed(path, sum string, entry models.Entry) {
	if err := in.dir.Remove(path); err != nil {
		in.logger.Warn("inbox: remove failed", slog.String("path", path), slog.String("error", err.Error()))
		in.mu.Lock()
		in.done[sum] = struct{}{}
		in.mu.Unlock()
	}
	in.logger.Info("inbox: ingested", slog.String("path", path), slog.Int64("id", entry.ID))
	if in.cb != nil {
		in.cb(path, entry)
	}
}

// frontmatterDate reads an optional "date" key. YAML may hand back either a
// string or a timestamp depending on quoting.
func frontmatterDate(meta map[string]any) (string, error) {
	raw, ok := meta["date"]
	if !ok || raw == nil {
		return "", nil
	}
	switch v := raw.(type) {
	case string:
		return v, nil
	case time.Time:
		return v.Format(models.DateLayout), nil
	default:
		return "", apperr.New(apperr.CodeValidationInvalidDate,
			fmt.Sprintf("frontmatter date must be YYYY-MM-DD, got %v", v),
			apperr.Field("date", v))
	}
}
