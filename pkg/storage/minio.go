package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"docflash-be/internal/pkg/apperr"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type MinioStorage struct {
	client *minio.Client
	bucket string
	scheme string
	host   string
	now    func() time.Time
}

// NewMinioStorage connects and creates the bucket when it does not exist yet.
func NewMinioStorage(ctx context.Context, cfg MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, &apperr.StorageError{Op: "init", Path: cfg.Endpoint, Err: err}
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, &apperr.StorageError{Op: "init", Path: cfg.Bucket, Err: err}
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, &apperr.StorageError{Op: "init", Path: cfg.Bucket, Err: err}
		}
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return &MinioStorage{client: client, bucket: cfg.Bucket, scheme: scheme, host: cfg.Endpoint, now: time.Now}, nil
}

func (s *MinioStorage) Save(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	key := NewKey(filename, s.now())
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", &apperr.StorageError{Op: "save", Path: key, Err: err}
	}
	return key, nil
}

func (s *MinioStorage) Retrieve(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &apperr.StorageError{Op: "retrieve", Path: key, Err: err}
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, &apperr.StorageError{Op: "retrieve", Path: key, Err: err}
	}
	return data, nil
}

func (s *MinioStorage) Delete(ctx context.Context, key string) (bool, error) {
	exists, err := s.Exists(ctx, key)
	if err != nil || !exists {
		return false, err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return false, &apperr.StorageError{Op: "delete", Path: key, Err: err}
	}
	return true, nil
}

func (s *MinioStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, &apperr.StorageError{Op: "stat", Path: key, Err: err}
	}
	return true, nil
}

func (s *MinioStorage) URL(key string) string {
	return fmt.Sprintf("%s://%s/%s", s.scheme, s.host, path.Join(s.bucket, key))
}

// LocalPath downloads the object into a temp file that keeps its extension.
func (s *MinioStorage) LocalPath(ctx context.Context, key string) (string, func(), error) {
	tmp, err := os.CreateTemp("", "docflash-*"+strings.ToLower(path.Ext(key)))
	if err != nil {
		return "", func() {}, &apperr.StorageError{Op: "download", Path: key, Err: err}
	}
	release := func() { _ = os.Remove(tmp.Name()) }

	if err := s.client.FGetObject(ctx, s.bucket, key, tmp.Name(), minio.GetObjectOptions{}); err != nil {
		tmp.Close()
		release()
		return "", func() {}, &apperr.StorageError{Op: "download", Path: key, Err: err}
	}
	tmp.Close()
	return tmp.Name(), release, nil
}
