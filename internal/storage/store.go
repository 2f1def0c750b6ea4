// Package storage provides the S3-compatible object store adapter the
// pipelines use for raw downloads and processed artifact uploads.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pixelharbor/mediaworker/internal/config"
)

// Store is a minio-backed object store scoped to a single bucket.
type Store struct {
	client  *minio.Client
	bucket  string
	baseURL string
	logger  *slog.Logger
}

// New creates a Store and ensures the configured bucket exists.
func New(ctx context.Context, cfg config.ObjectStoreConfig, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object store client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket %q: %w", cfg.Bucket, err)
		}
		log.Info("bucket created", slog.String("bucket", cfg.Bucket))
	}

	return &Store{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: publicBaseURL(cfg),
		logger:  log.With(slog.String("component", "storage")),
	}, nil
}

// publicBaseURL derives the prefix artifact URLs are built from. A CDN or
// reverse-proxy base takes priority; otherwise URLs point straight at the
// endpoint and bucket.
func publicBaseURL(cfg config.ObjectStoreConfig) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
}

// URLFor returns the public URL for an object key.
func (s *Store) URLFor(key string) string {
	return s.baseURL + "/" + key
}

// Download fetches an object into a local file.
func (s *Store) Download(ctx context.Context, key, destPath string) error {
	if err := s.client.FGetObject(ctx, s.bucket, key, destPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("downloading %q: %w", key, err)
	}
	return nil
}

// Upload stores a local file under the given key and returns its public URL.
func (s *Store) Upload(ctx context.Context, key, filePath, contentType string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("opening %q for upload: %w", filePath, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %q: %w", filePath, err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, file, stat.Size(), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("uploading %q: %w", key, err)
	}
	return s.URLFor(key), nil
}

// UploadBytes stores an in-memory payload under the given key and returns
// its public URL. Used for small artifacts like waveform JSON.
func (s *Store) UploadBytes(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("uploading %q: %w", key, err)
	}
	return s.URLFor(key), nil
}

// Delete removes an object. Deleting a missing object is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}
