// Package inbox ingests text files dropped into a directory. Each file
// becomes one entry; it is removed once committed, or moved aside when its
// content can never be ingested.
package inbox

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// FailedDir holds files that were rejected, each with a .err note beside it.
const FailedDir = ".failed"

// Item describes one pending inbox file.
type Item struct {
	Path     string // relative to the inbox root
	Checksum string
	ModTime  time.Time
}

// Dir is an inbox directory on the local file system.
type Dir struct {
	root string // absolute path
	exts []string
}

// NewDir opens the inbox at root, creating it if needed. Only files with one
// of exts (e.g. ".txt") are picked up.
func NewDir(root string, exts []string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("inbox: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("inbox: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("inbox: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("inbox: root is not a directory: %s", abs)
	}
	return &Dir{root: abs, exts: exts}, nil
}

// Root returns the absolute inbox path.
func (d *Dir) Root() string {
	return d.root
}

// Accepts reports whether a file name has an accepted extension and is not
// hidden. Editors' swap and temp files start with a dot.
func (d *Dir) Accepts(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return slices.Contains(d.exts, strings.ToLower(filepath.Ext(base)))
}

// safePath resolves a relative path against the inbox root and rejects
// any result that escapes it (directory traversal).
func (d *Dir) safePath(rel string) (string, error) {
	if rel == "" {
		return d.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("inbox: absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(d.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("inbox: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, d.root+string(os.PathSeparator)) && abs != d.root {
		return "", fmt.Errorf("inbox: path escapes inbox root: %s", rel)
	}
	return abs, nil
}

// Rel converts an absolute path under the root into an inbox-relative one.
func (d *Dir) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(d.root, abs)
	if err != nil {
		return "", err
	}
	if _, err := d.safePath(rel); err != nil {
		return "", err
	}
	return rel, nil
}

// List walks the inbox and returns every accepted file, oldest first.
// Hidden directories (including FailedDir) are skipped.
func (d *Dir) List() ([]Item, error) {
	var out []Item
	err := filepath.WalkDir(d.root, func(p string, e fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if e.IsDir() {
			if p != d.root && strings.HasPrefix(e.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Accepts(e.Name()) {
			return nil
		}
		info, err := e.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(d.root, p)
		out = append(out, Item{Path: rel, Checksum: checksum(data), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("inbox: list: %w", err)
	}
	slices.SortStableFunc(out, func(a, b Item) int {
		if c := a.ModTime.Compare(b.ModTime); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
	return out, nil
}

// Read returns the raw bytes of an inbox file.
func (d *Dir) Read(path string) ([]byte, error) {
	abs, err := d.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("inbox: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (d *Dir) Write(path string, content []byte) error {
	abs, err := d.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("inbox: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".dia-tmp-*")
	if err != nil {
		return fmt.Errorf("inbox: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("inbox: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("inbox: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("inbox: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("inbox: rename: %w", err)
	}
	success = true
	return nil
}

// Remove deletes an inbox file.
func (d *Dir) Remove(path string) error {
	abs, err := d.safePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("inbox: remove %s: %w", path, err)
	}
	return nil
}

// Quarantine moves path into FailedDir and records reason next to it.
func (d *Dir) Quarantine(path, reason string) error {
	absOld, err := d.safePath(path)
	if err != nil {
		return err
	}
	target := filepath.Join(FailedDir, path)
	absNew, err := d.safePath(target)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(absNew), 0o755); err != nil {
		return fmt.Errorf("inbox: mkdir for quarantine: %w", err)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("inbox: quarantine: %w", err)
	}
	return d.Write(target+".err", []byte(reason+"\n"))
}

func checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
