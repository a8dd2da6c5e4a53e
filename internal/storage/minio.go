package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStorage stores user media in a MinIO (or S3-compatible) bucket.
type MinIOStorage struct {
	client     *minio.Client
	bucket     string
	prefix     string
	publicURL  string
	presignTTL time.Duration
}

// NewMinIOStorage creates a new MinIO storage client and ensures the bucket exists.
func NewMinIOStorage(ctx context.Context, cfg *MinIOConfig) (*MinIOStorage, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	s := &MinIOStorage{
		client:     mc,
		bucket:     cfg.Bucket,
		prefix:     cfg.Prefix,
		publicURL:  strings.TrimRight(cfg.PublicURL, "/"),
		presignTTL: cfg.PresignTTL,
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		// ignore "already exists" style errors
		exist, xerr := mc.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return s, nil
}

// Store uploads the file under a fresh key and returns its URL. With no
// public base URL configured the URL is presigned.
func (s *MinIOStorage) Store(ctx context.Context, up Upload) (*Asset, error) {
	key := objectKey(s.prefix, up.Filename)
	size := up.Size
	if size <= 0 {
		size = -1
	}
	if _, err := s.client.PutObject(ctx, s.bucket, key, up.Body, size, minio.PutObjectOptions{ContentType: up.ContentType}); err != nil {
		return nil, fmt.Errorf("minio put %s: %w", key, err)
	}
	u, err := s.url(ctx, key)
	if err != nil {
		return nil, err
	}
	return &Asset{URL: u, ReferenceID: key}, nil
}

// Remove deletes the object; removing a missing key is not an error.
func (s *MinIOStorage) Remove(ctx context.Context, referenceID string) error {
	if referenceID == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, referenceID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio remove %s: %w", referenceID, err)
	}
	return nil
}

func (s *MinIOStorage) url(ctx context.Context, key string) (string, error) {
	if s.publicURL != "" {
		return s.publicURL + "/" + s.bucket + "/" + key, nil
	}
	ttl := s.presignTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("minio presign %s: %w", key, err)
	}
	return presigned.String(), nil
}

// Ping checks that the bucket is reachable.
func (s *MinIOStorage) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %q missing", s.bucket)
	}
	return nil
}
