package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ragmcp/ragmcp/pkg/config"
)

// MinioStore talks to any S3-compatible endpoint.
type MinioStore struct {
	client *minio.Client
	cfg    config.ObjectStoreConfig
}

func NewMinioStore(cfg config.ObjectStoreConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}
	return &MinioStore{client: client, cfg: cfg}, nil
}

func (s *MinioStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	objects := s.client.ListObjects(ctx, s.cfg.Bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objects {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects under %s: %w", prefix, object.Err)
		}
		keys = append(keys, object.Key)
	}
	return keys, nil
}

func (s *MinioStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	slog.Debug("Uploaded object", "key", key, "bytes", len(data))
	return nil
}

func (s *MinioStore) Get(ctx context.Context, key string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

func (s *MinioStore) DeleteBatch(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	objects := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objects <- minio.ObjectInfo{Key: key}
	}
	close(objects)

	for result := range s.client.RemoveObjects(ctx, s.cfg.Bucket, objects, minio.RemoveObjectsOptions{}) {
		if result.Err != nil {
			return fmt.Errorf("failed to delete object %s: %w", result.ObjectName, result.Err)
		}
	}

	slog.Debug("Deleted objects", "count", len(keys))
	return nil
}

func (s *MinioStore) WaitExists(ctx context.Context, key string) error {
	return s.waitFor(ctx, key, true)
}

func (s *MinioStore) WaitAbsent(ctx context.Context, key string) error {
	return s.waitFor(ctx, key, false)
}

func (s *MinioStore) waitFor(ctx context.Context, key string, wantExists bool) error {
	interval := time.Duration(s.cfg.WaitInterval) * time.Second

	for attempt := 0; attempt < s.cfg.WaitAttempts; attempt++ {
		_, err := s.client.StatObject(ctx, s.cfg.Bucket, key, minio.StatObjectOptions{})
		exists := err == nil
		if !exists {
			resp := minio.ToErrorResponse(err)
			if resp.Code != "NoSuchKey" && resp.Code != "NotFound" {
				return fmt.Errorf("failed to stat object %s: %w", key, err)
			}
		}
		if exists == wantExists {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}

	state := "exist"
	if !wantExists {
		state = "be deleted"
	}
	return fmt.Errorf("timed out waiting for object %s to %s", key, state)
}
