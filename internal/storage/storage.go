// Package storage provides the object stores a day's outputs are published to.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/arkilian/weblog/internal/config"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStorage is the publishing target of a run.
type ObjectStorage interface {
	// Upload copies the local file to key, replacing any existing object.
	Upload(ctx context.Context, localPath, key string) error

	// Download copies key to the local file.
	Download(ctx context.Context, key, localPath string) error

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// ListObjects returns the sorted keys under prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

// ObjectKey returns <prefix>/<layer>/<day>/<file>.
func ObjectKey(prefix, layer, day, file string) string {
	return path.Join(prefix, layer, day, file)
}

// ContentType maps an output file name to the MIME type it is published with.
func ContentType(name string) string {
	switch filepath.Ext(name) {
	case ".parquet":
		return "application/vnd.apache.parquet"
	case ".sqlite":
		return "application/vnd.sqlite3"
	case ".json":
		return "application/json"
	case ".md":
		return "text/markdown; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// New returns the store configured by cfg, or nil when publishing is disabled.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "local":
		return NewLocalStorage(cfg.Path)
	case "s3":
		return NewS3Storage(ctx, cfg.S3.Bucket, S3Config{
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("storage: unknown type %q", cfg.Type)
	}
}

// writeAtomic copies r to dst through a temp file renamed into place.
func writeAtomic(r io.Reader, dst string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
