// AngelaMos | 2026
// storage.go

package core

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/planejarpatrimonio/backend/internal/config"
)

// File is an upload on its way to the object store.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

// Storage is the path-addressed blob store behind documents, contracts
// and personal user documents.
type Storage struct {
	client    *minio.Client
	region    string
	publicURL string
	buckets   []string
}

func NewStorage(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		publicURL = strings.TrimRight(client.EndpointURL().String(), "/")
	}

	s := &Storage{
		client:    client,
		region:    cfg.Region,
		publicURL: publicURL,
		buckets: []string{
			cfg.DocumentsBucket,
			cfg.ContractsBucket,
			cfg.UserDocumentsBucket,
		},
	}

	if err := s.EnsureBuckets(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range s.buckets {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if exists {
			continue
		}

		err = s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{
			Region: s.region,
		})
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	return nil
}

// Put uploads r under bucket/path and returns the public URL of the object.
func (s *Storage) Put(
	ctx context.Context,
	bucket, path string,
	r io.Reader,
	size int64,
	contentType string,
) (string, error) {
	_, err := s.client.PutObject(ctx, bucket, path, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s/%s: %w", bucket, path, err)
	}

	return s.PublicURL(bucket, path), nil
}

func (s *Storage) Remove(ctx context.Context, bucket, path string) error {
	err := s.client.RemoveObject(ctx, bucket, path, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("remove object %s/%s: %w", bucket, path, err)
	}
	return nil
}

func (s *Storage) PublicURL(bucket, path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.publicURL + "/" + bucket + "/" + strings.Join(segments, "/")
}

func (s *Storage) Ping(ctx context.Context) error {
	if len(s.buckets) == 0 {
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.client.BucketExists(pingCtx, s.buckets[0]); err != nil {
		return fmt.Errorf("storage ping failed: %w", err)
	}

	return nil
}
