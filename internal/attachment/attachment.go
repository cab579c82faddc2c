// Package attachment ties uploaded files to records. It names files so they
// never collide and hands back the previously referenced file when a
// record's attachment is replaced or cleared, for the caller to discard
// once the record change is saved.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"portalapi/internal/logging"
	"portalapi/internal/model"
	"portalapi/internal/storage"
)

// ErrEmptyUpload is returned by Store when there is no content to store.
var ErrEmptyUpload = errors.New("empty upload")

// maxNameAttempts bounds the retries when a generated name is already taken,
// which only happens after the clock stepped back across a restart.
const maxNameAttempts = 8

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	// Size is the content length, or -1 when unknown.
	Size   int64
	Reader io.Reader
}

// Manager stores attachment bytes and keeps record references in step with
// them.
type Manager struct {
	storage storage.Storage
	log     logging.Logger
	names   *model.IDGenerator
	expiry  time.Duration
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock sets the time source used for generated names.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.names = model.NewIDGenerator(now) }
}

// WithLinkExpiry sets how long URLs returned by URLFor stay valid.
func WithLinkExpiry(d time.Duration) Option {
	return func(m *Manager) { m.expiry = d }
}

// NewManager returns a Manager over s.
func NewManager(s storage.Storage, log logging.Logger, opts ...Option) *Manager {
	m := &Manager{
		storage: s,
		log:     log.With("component", "attachment"),
		names:   model.NewIDGenerator(time.Now),
		expiry:  15 * time.Minute,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store writes the upload under a new name built from a microsecond
// timestamp and the original extension, and returns that name. Existing
// objects are never overwritten; a taken name moves on to the next id.
func (m *Manager) Store(ctx context.Context, up Upload) (string, error) {
	if up.Reader == nil || up.Size == 0 {
		return "", ErrEmptyUpload
	}
	ext := extension(up.Filename)
	opts := storage.PutObjectOptions{
		Size:        up.Size,
		ContentType: up.ContentType,
		Metadata:    map[string]string{"original-name": filepath.Base(up.Filename)},
		NoOverwrite: true,
	}

	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := fmt.Sprintf("%d%s", m.names.Next(), ext)
		_, err := m.storage.Put(ctx, name, up.Reader, opts)
		if err == nil {
			m.log.Debug(ctx, "attachment stored", "name", name, "size", up.Size)
			return name, nil
		}
		if !errors.Is(err, storage.ErrObjectExists) {
			return "", fmt.Errorf("store attachment: %w", err)
		}
		m.log.Warn(ctx, "attachment name taken, retrying", "name", name)
		if err := rewind(up.Reader); err != nil {
			return "", fmt.Errorf("store attachment: %w", err)
		}
	}
	return "", fmt.Errorf("store attachment: no free name after %d attempts", maxNameAttempts)
}

// rewind restarts r for another upload attempt.
func rewind(r io.Reader) error {
	s, ok := r.(io.Seeker)
	if !ok {
		return errors.New("upload cannot be retried: reader is not seekable")
	}
	_, err := s.Seek(0, io.SeekStart)
	return err
}

// Replace points rec[field] at name and returns the file referenced before,
// or "" when there was none. The caller discards it after saving rec.
func (m *Manager) Replace(rec model.Record, field, name string) string {
	old := rec.String(field)
	rec[field] = name
	if old == name {
		return ""
	}
	return old
}

// Clear sets rec[field] to null and returns the file it referenced. It
// reports false when the field held no file.
func (m *Manager) Clear(rec model.Record, field string) (string, bool) {
	old := rec.String(field)
	if old == "" {
		return "", false
	}
	rec[field] = nil
	return old, true
}

// Discard deletes a stored file, logging instead of failing. An empty name
// is ignored.
func (m *Manager) Discard(ctx context.Context, name string) {
	if name == "" {
		return
	}
	if err := m.storage.Delete(ctx, name); err != nil {
		m.log.Warn(ctx, "failed to delete attachment", "name", name, "error", err)
	}
}

// Open streams a stored file by name.
func (m *Manager) Open(ctx context.Context, name string) (io.ReadCloser, storage.ObjectInfo, error) {
	if !storage.ValidKey(name) {
		return nil, storage.ObjectInfo{}, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, name)
	}
	return m.storage.Get(ctx, name)
}

// URLFor returns a download link for a stored file.
func (m *Manager) URLFor(ctx context.Context, name string) (string, error) {
	if !storage.ValidKey(name) {
		return "", fmt.Errorf("%w: %s", storage.ErrObjectNotFound, name)
	}
	return m.storage.PresignGet(ctx, name, m.expiry)
}

// extension returns the lowercased extension of filename, or "" when it
// contains anything but letters and digits.
func extension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 16 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
