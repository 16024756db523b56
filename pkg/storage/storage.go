// Package storage keeps uploaded documents and extracted images behind a
// small interface with local-disk and S3-compatible backends.
package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Storage interface {
	// Save writes data under a generated key and returns that key.
	Save(ctx context.Context, data []byte, filename, contentType string) (string, error)
	Retrieve(ctx context.Context, key string) ([]byte, error)
	// Delete reports whether something was removed.
	Delete(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	URL(key string) string
	// LocalPath returns a filesystem path holding the object's bytes. The
	// release func removes any temporary copy.
	LocalPath(ctx context.Context, key string) (string, func(), error)
}

// NewKey lays objects out as yyyy/mm/<uuid><ext>, keeping the original
// extension so parsers can sniff the format.
func NewKey(filename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return path.Join(fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", int(now.Month())), uuid.NewString()+ext)
}

// cleanKey rejects keys that would escape the storage root.
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.ReplaceAll(key, `\`, "/"))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." || strings.HasPrefix(k, "..") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return k, nil
}
