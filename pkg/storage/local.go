package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docflash-be/internal/pkg/apperr"
)

type LocalStorage struct {
	root    string
	baseURL string
	now     func() time.Time
}

func NewLocalStorage(root, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &apperr.StorageError{Op: "init", Path: root, Err: err}
	}
	return &LocalStorage{root: root, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}, nil
}

func (s *LocalStorage) path(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", &apperr.StorageError{Op: "resolve", Path: key, Err: err}
	}
	return filepath.Join(s.root, filepath.FromSlash(k)), nil
}

func (s *LocalStorage) Save(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	key := NewKey(filename, s.now())
	full, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", &apperr.StorageError{Op: "save", Path: key, Err: err}
	}

	// write to a temp file first so readers never see a partial object
	tmp := full + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", &apperr.StorageError{Op: "save", Path: key, Err: err}
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return "", &apperr.StorageError{Op: "save", Path: key, Err: err}
	}
	return key, nil
}

func (s *LocalStorage) Retrieve(ctx context.Context, key string) ([]byte, error) {
	full, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, &apperr.StorageError{Op: "retrieve", Path: key, Err: err}
	}
	return data, nil
}

func (s *LocalStorage) Delete(ctx context.Context, key string) (bool, error) {
	full, err := s.path(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, &apperr.StorageError{Op: "delete", Path: key, Err: err}
	}
	return true, nil
}

func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	full, err := s.path(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, &apperr.StorageError{Op: "stat", Path: key, Err: err}
	}
	return true, nil
}

func (s *LocalStorage) URL(key string) string {
	return s.baseURL + "/" + strings.TrimPrefix(key, "/")
}

func (s *LocalStorage) LocalPath(ctx context.Context, key string) (string, func(), error) {
	full, err := s.path(key)
	if err != nil {
		return "", func() {}, err
	}
	return full, func() {}, nil
}
