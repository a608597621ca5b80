// Package storage uploads item photos to a temporary, publicly
// reachable location so the reverse image search provider can fetch
// them. Objects live for the duration of one scan and are removed by
// the orchestrator once the search attempt settles.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

const (
	objectPrefix = "scans"

	// Presigned URLs only need to outlive the 15 second search call;
	// the slack covers clock skew between us and the storage backend.
	urlExpiry = 15 * time.Minute
)

// Blob is one temporary upload.
type Blob struct {
	Key string
	URL string
}

// Store puts images in an S3-compatible bucket and hands out presigned
// GET URLs, so the bucket itself never needs a public read policy.
type Store struct {
	client *minio.Client
	bucket string
}

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// New connects to the storage backend and ensures the bucket exists.
func New(ctx context.Context, opts Options) (*Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %q: %w", opts.Bucket, err)
		}
	}

	return &Store{client: client, bucket: opts.Bucket}, nil
}

// Store uploads the image under a fresh unique key and returns a
// presigned GET URL for it. Keys never collide across concurrent
// scans.
func (s *Store) Store(ctx context.Context, data []byte, mediaType string) (Blob, error) {
	key := fmt.Sprintf("%s/%s%s", objectPrefix, uuid.NewString(), ExtensionFor(mediaType))

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: mediaType,
	})
	if err != nil {
		return Blob{}, fmt.Errorf("failed to upload image: %w", err)
	}

	signed, err := s.client.PresignedGetObject(ctx, s.bucket, key, urlExpiry, url.Values{})
	if err != nil {
		return Blob{}, fmt.Errorf("failed to presign image URL: %w", err)
	}

	log.Debug().Str("key", key).Msg("stored temporary image")
	return Blob{Key: key, URL: signed.String()}, nil
}

// Discard removes the uploaded object. Removing an object that is
// already gone succeeds, so Discard is safe to call more than once.
func (s *Store) Discard(ctx context.Context, blob Blob) error {
	if err := s.client.RemoveObject(ctx, s.bucket, blob.Key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove temporary image: %w", err)
	}
	return nil
}

// ExtensionFor maps a media type to its canonical file extension.
// Unknown types fall back to .jpg, matching the jpeg default applied
// to scan requests.
func ExtensionFor(mediaType string) string {
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
