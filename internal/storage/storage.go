// Package storage holds the byte storage behind record attachments. Every
// backend addresses objects by a flat key, which is the generated file name
// kept in the record.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrObjectNotFound is returned by Get when no object exists under the key.
	ErrObjectNotFound = errors.New("object not found")
	// ErrObjectExists is returned by Put with NoOverwrite when the key is taken.
	ErrObjectExists = errors.New("object already exists")
)

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known, or -1 when unknown.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
	// NoOverwrite makes Put fail with ErrObjectExists instead of replacing
	// an existing object.
	NoOverwrite bool
}

// ObjectInfo contains basic information about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the attachment byte store. Implementations are safe for
// concurrent use.
type Storage interface {
	// Put uploads an object under the given key.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get opens an object for streaming. It returns ErrObjectNotFound for unknown keys.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// PresignGet returns a URL callers can use to download the object
	// without credentials.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// ValidKey rejects keys that could escape a flat namespace.
func ValidKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	for _, r := range key {
		if r == '/' || r == '\\' || r == 0 {
			return false
		}
	}
	return true
}
