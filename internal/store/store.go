// Package store loads and persists the sessionizer document.
//
// The document is read and written whole. Writes go to a temp file in the
// same directory which is then renamed over the original, so a crash never
// leaves a half-written document. Update additionally holds an exclusive
// lock on "<path>.lock" across the read-modify-write.
//
// A multiplexer action that succeeds right before a failed save leaves the
// live server ahead of the document; "sessions sync" reconciles the two.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/timvw/sessionizer/internal/model"
)

const (
	fileMode = 0o600
	dirMode  = 0o700
)

var (
	// ErrNotInitialized is returned when the document does not exist yet.
	ErrNotInitialized = errors.New("configuration not initialized")
	// ErrExists is returned by Init when the document already exists.
	ErrExists = errors.New("configuration already exists")
)

// Format is a document serialization.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

// FormatFor picks the serialization from the file extension. Anything that
// is not .toml is YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Store reads and writes one document file.
type Store struct {
	path   string
	format Format
}

// Open returns a store for the document at path. The file is not touched.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("document path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve document path: %w", err)
	}
	return &Store{path: abs, format: FormatFor(abs)}, nil
}

// Path returns the absolute document path.
func (s *Store) Path() string {
	return s.path
}

// Load reads and validates the document.
func (s *Store) Load(ctx context.Context) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist (run 'sessionizer config init')", ErrNotInitialized, s.path)
		}
		return nil, fmt.Errorf("read document: %w", err)
	}

	doc, err := s.decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse document %s: %w", s.path, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid document %s: %w", s.path, err)
	}
	return doc, nil
}

// Save validates and atomically replaces the document.
func (s *Store) Save(ctx context.Context, doc *model.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid document: %w", err)
	}
	data, err := s.encode(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return s.write(data)
}

// Init writes an empty document. An existing document is only replaced
// when force is set.
func (s *Store) Init(ctx context.Context, force bool) error {
	if _, err := os.Stat(s.path); err == nil && !force {
		return fmt.Errorf("%w: %s (use --force to overwrite)", ErrExists, s.path)
	}
	return s.Save(ctx, &model.Document{Directories: []model.Root{}, Sessions: []string{}})
}

// Update loads the document under an exclusive lock, applies fn, and saves
// the result when fn reports a change. Nothing is written when fn fails.
func (s *Store) Update(ctx context.Context, fn func(doc *model.Document) (bool, error)) error {
	if err := os.MkdirAll(filepath.Dir(s.path), dirMode); err != nil {
		return fmt.Errorf("create document directory: %w", err)
	}
	lock, err := newFileLock(s.path).Lock()
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	doc, err := s.Load(ctx)
	if err != nil {
		return err
	}
	changed, err := fn(doc)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return s.Save(ctx, doc)
}

func (s *Store) decode(data []byte) (*model.Document, error) {
	var doc model.Document
	switch s.format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	}
	return &doc, nil
}

func (s *Store) encode(doc *model.Document) ([]byte, error) {
	switch s.format {
	case FormatTOML:
		return toml.Marshal(doc)
	default:
		return yaml.Marshal(doc)
	}
}

func (s *Store) write(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("create document directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp document: %w", err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp document: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	cleanup = false
	return nil
}
