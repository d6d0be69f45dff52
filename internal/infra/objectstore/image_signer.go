// Package objectstore serves question images from S3-compatible storage.
package objectstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	URLTTL    time.Duration
}

const defaultURLTTL = time.Hour

// ImageSigner turns stored image references into presigned GET URLs.
//
// Accepted references:
//   - http(s)://...        returned unchanged
//   - s3://bucket/key      object in an explicit bucket
//   - {bucket}/key         object in the configured bucket
//   - key                  object in the configured bucket
type ImageSigner struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

func NewImageSigner(cfg Config) (*ImageSigner, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		// a fixed region keeps presigning offline
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = defaultURLTTL
	}
	return &ImageSigner{client: client, bucket: cfg.Bucket, ttl: ttl}, nil
}

func (s *ImageSigner) ResolveImage(ctx context.Context, ref string) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}
	bucket, key, err := s.locate(ref)
	if err != nil {
		return "", err
	}
	u, err := s.client.PresignedGetObject(ctx, bucket, key, s.ttl, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s/%s: %w", bucket, key, err)
	}
	return u.String(), nil
}

func (s *ImageSigner) locate(ref string) (bucket, key string, err error) {
	ref = strings.TrimSpace(ref)
	switch {
	case strings.HasPrefix(ref, "s3://"):
		rest := strings.TrimPrefix(ref, "s3://")
		bucket, key, _ = strings.Cut(rest, "/")
	case s.bucket != "" && strings.HasPrefix(ref, s.bucket+"/"):
		bucket, key = s.bucket, strings.TrimPrefix(ref, s.bucket+"/")
	default:
		bucket, key = s.bucket, strings.TrimPrefix(ref, "/")
	}
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid image reference %q", ref)
	}
	return bucket, key, nil
}
