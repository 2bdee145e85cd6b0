// Package store persists normalized records as one JSON file per record under
// <root>/<source>/<id>.json.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/DeafMist/media-aggregator/internal/models"
)

const fileExt = ".json"

// Store is the disk-backed content store.
type Store struct {
	root string
	log  *slog.Logger
}

// Skipped describes a stored file that could not be loaded.
type Skipped struct {
	Path string
	Err  error
}

// LoadResult is the outcome of LoadAll: every file either lands in Records or Skipped.
type LoadResult struct {
	Records []models.Record
	Skipped []Skipped
}

// New returns a store rooted at root.
func New(root string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{root: root, log: logger}
}

// Root returns the data root the store writes under.
func (s *Store) Root() string { return s.root }

// Dir returns the directory holding files for source.
func (s *Store) Dir(source string) string {
	return filepath.Join(s.root, source)
}

// Save writes rec to <root>/<source>/<id>.json and returns the path. An existing
// file for the same id is replaced.
func (s *Store) Save(rec models.Record, source string) (string, error) {
	id, err := rec.StoreID()
	if err != nil {
		return "", fmt.Errorf("save %s record: %w", rec.Kind(), err)
	}
	if post, ok := rec.(models.SocialPost); ok {
		if err := post.Validate(); err != nil {
			return "", fmt.Errorf("save post %s: %w", id, err)
		}
	}

	dir := s.Dir(source)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create source dir: %w", err)
	}

	payload, err := encode(rec)
	if err != nil {
		return "", fmt.Errorf("marshal record %s: %w", id, err)
	}

	path := filepath.Join(dir, id+fileExt)
	if err := writeFile(dir, path, payload); err != nil {
		return "", err
	}

	s.log.Debug("saved record", slog.String("source", source), slog.String("path", path))
	return path, nil
}

// List returns every *.json file of source sorted by file name. A source that
// was never written has no files.
func (s *Store) List(source string) ([]string, error) {
	entries, err := os.ReadDir(s.Dir(source))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list source %s: %w", source, err)
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		paths = append(paths, filepath.Join(s.Dir(source), entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Sources returns the names of the source directories under the root, sorted.
func (s *Store) Sources() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list sources: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// LoadAll decodes every file of source as kind. Files that cannot be read or
// parsed are logged and reported in Skipped; they never abort the load.
func (s *Store) LoadAll(source string, kind models.Kind) (LoadResult, error) {
	paths, err := s.List(source)
	if err != nil {
		return LoadResult{}, err
	}

	result := LoadResult{Records: make([]models.Record, 0, len(paths))}
	for _, path := range paths {
		rec, err := loadFile(path, kind)
		if err != nil {
			s.log.Warn("failed to load stored record", slog.String("path", path), slog.Any("err", err))
			result.Skipped = append(result.Skipped, Skipped{Path: path, Err: err})
			continue
		}
		result.Records = append(result.Records, rec)
	}

	return result, nil
}

func loadFile(path string, kind models.Kind) (models.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	rec, err := models.Decode(kind, data)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return rec, nil
}

func encode(rec models.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFile replaces path through a temp file in the same directory so readers
// never observe a partially written record.
func writeFile(dir, path string, payload []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
