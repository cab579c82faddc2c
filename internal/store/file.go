package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"portalapi/internal/logging"
	"portalapi/internal/model"
)

const filePerms = 0o644

// FileStore keeps the document in one JSON file. Saves go through a
// temporary file and a rename, so a crash leaves either the previous or the
// new document on disk.
type FileStore struct {
	path string
	log  logging.Logger
}

// NewFileStore returns a store backed by the file at path. The parent
// directory is created when missing.
func NewFileStore(path string, log logging.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("document path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create document directory: %w", err)
		}
	}
	return &FileStore{path: path, log: log.With("component", "store", "path", path)}, nil
}

var _ Store = (*FileStore)(nil)

// Load reads the document. A missing file is created empty; a file that
// fails to parse is logged and overwritten with an empty document, trading
// the unreadable contents for availability.
func (s *FileStore) Load(ctx context.Context) (model.Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Info(ctx, "document file missing, creating empty document")
		return s.reset(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	doc, err := Decode(data)
	if err != nil {
		s.log.Error(ctx, "document file corrupt, resetting to empty document", "error", err)
		return s.reset(ctx)
	}
	return doc, nil
}

// Save overwrites the document file.
func (s *FileStore) Save(_ context.Context, doc model.Document) error {
	data, err := Encode(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	// atomic.WriteFile leaves the temp file's 0600 mode on new files.
	if err := os.Chmod(s.path, filePerms); err != nil {
		return fmt.Errorf("chmod document: %w", err)
	}
	return nil
}

// Ping checks that the directory holding the document is accessible.
func (s *FileStore) Ping(_ context.Context) error {
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}

func (s *FileStore) reset(ctx context.Context) (model.Document, error) {
	doc := model.NewDocument()
	if err := s.Save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}
