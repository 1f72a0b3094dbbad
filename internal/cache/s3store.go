package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Norgate-AV/gqlpipe/internal/config"
)

// S3Store keeps records in an S3 compatible bucket so several machines can
// share one cache. Objects are <prefix>/<key>/{inputs,outputs}.json.
type S3Store struct {
	client     *minio.Client
	bucketName string
	region     string
	prefix     string
	initOnce   sync.Once
	initErr    error
}

// NewS3Store connects to the bucket described by cfg
func NewS3Store(cfg config.S3Config) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}

	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}

	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Store{
		client:     client,
		bucketName: bucket,
		region:     region,
		prefix:     strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
	}, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}

		if exists {
			return
		}

		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})

	return s.initErr
}

func (s *S3Store) objectKey(ns Namespace, name string) string {
	return s.root() + ns.Key() + "/" + name
}

func (s *S3Store) root() string {
	if s.prefix == "" {
		return ""
	}

	return s.prefix + "/"
}

// Load implements Store
func (s *S3Store) Load(ctx context.Context, ns Namespace) (*Record, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	inputs, err := s.get(ctx, s.objectKey(ns, inputsFile))
	if err != nil {
		return nil, err
	}

	outputs, err := s.get(ctx, s.objectKey(ns, outputsFile))
	if err != nil {
		return nil, err
	}

	rec, err := decodeArtifacts(inputs, outputs)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", ns, err)
	}

	return rec, nil
}

// Save implements Store
func (s *S3Store) Save(ctx context.Context, ns Namespace, rec *Record) error {
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	inputs, outputs, err := encodeArtifacts(rec)
	if err != nil {
		return err
	}

	if err := s.put(ctx, s.objectKey(ns, outputsFile), outputs); err != nil {
		return err
	}

	return s.put(ctx, s.objectKey(ns, inputsFile), inputs)
}

// Delete implements Store
func (s *S3Store) Delete(ctx context.Context, ns Namespace) error {
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	for _, name := range []string{inputsFile, outputsFile} {
		key := s.objectKey(ns, name)
		if err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{}); err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to remove %s: %w", key, err)
		}
	}

	return nil
}

// Clear implements Store
func (s *S3Store) Clear(ctx context.Context) error {
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	return s.walk(ctx, func(obj minio.ObjectInfo) error {
		if err := s.client.RemoveObject(ctx, s.bucketName, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("failed to remove %s: %w", obj.Key, err)
		}

		return nil
	})
}

// Stats implements Store
func (s *S3Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := s.ensureBucket(ctx); err != nil {
		return stats, fmt.Errorf("ensure bucket: %w", err)
	}

	err := s.walk(ctx, func(obj minio.ObjectInfo) error {
		if strings.HasSuffix(obj.Key, "/"+inputsFile) {
			stats.Entries++
		}

		stats.Size += obj.Size
		return nil
	})

	return stats, err
}

// Close implements Store
func (s *S3Store) Close() error {
	return nil
}

// walk calls fn for every object under the store prefix and stops at the
// first error. The listing is canceled and drained before returning, since
// minio's listing goroutine only exits once its channel is closed.
func (s *S3Store) walk(ctx context.Context, fn func(obj minio.ObjectInfo) error) error {
	listCtx, cancel := context.WithCancel(ctx)
	objects := s.client.ListObjects(listCtx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    s.root(),
		Recursive: true,
	})

	defer func() {
		cancel()
		for range objects {
		}
	}()

	for obj := range objects {
		if obj.Err != nil {
			return obj.Err
		}

		if err := fn(obj); err != nil {
			return err
		}
	}

	return nil
}

func (s *S3Store) put(ctx context.Context, key string, content []byte) error {
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return nil
}

// get returns nil for a missing object
func (s *S3Store) get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}

		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}

	return data, nil
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}
