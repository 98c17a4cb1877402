package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Source reads one JSON object per term from a bucket prefix, in key
// order.
type S3Source struct {
	Client *minio.Client
	Bucket string
	Prefix string
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

func NewS3Source(cfg S3Config, bucket, prefix string) (*S3Source, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &S3Source{Client: client, Bucket: bucket, Prefix: prefix}, nil
}

func (s *S3Source) Records(ctx context.Context, yield YieldFunc) error {
	// Cancelling stops the listing goroutine when yield bails out early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objects := s.Client.ListObjects(ctx, s.Bucket, minio.ListObjectsOptions{
		Prefix:    s.Prefix,
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return fmt.Errorf("list %s/%s: %w", s.Bucket, s.Prefix, obj.Err)
		}
		if !strings.HasSuffix(strings.ToLower(obj.Key), ".json") {
			continue
		}
		rec, recErr := s.readObject(ctx, obj.Key)
		if err := yield(obj.Key, rec, recErr); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (s *S3Source) readObject(ctx context.Context, key string) (Record, error) {
	obj, err := s.Client.GetObject(ctx, s.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return Record{}, fmt.Errorf("get %s: %w", key, err)
	}
	defer obj.Close()
	return DecodeRecord(obj)
}
