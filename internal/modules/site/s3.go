package site

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/forumhub/core/internal/config"
)

// ObjectStore receives site backups.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

// S3Store writes objects to an S3 compatible bucket under a key prefix.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Store(cfg config.BackupRuntimeConfig) (*S3Store, error) {
	if cfg.Bucket == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("incomplete s3 config: bucket/access_key_id/secret_access_key are required")
	}
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		UsePathStyle: cfg.PathStyle,
	}
	if endpoint := strings.TrimRight(cfg.Endpoint, "/"); endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		opts.BaseEndpoint = aws.String(endpoint)
	}
	return &S3Store{
		client: s3.New(opts),
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (s *S3Store) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	if s.prefix != "" {
		key = path.Join(s.prefix, key)
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

// BackupKey is the object key of a site's export taken at t.
func BackupKey(siteID int64, t time.Time) string {
	return fmt.Sprintf("site-%d/%s.json", siteID, t.UTC().Format("20060102T150405Z"))
}

// BackupAll exports every site to store and returns how many were written.
// It stops at the first failure.
func (s *Service) BackupAll(ctx context.Context, store ObjectStore, now time.Time) (int, error) {
	sites, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, st := range sites {
		data, err := s.Export(ctx, st.ID)
		if err != nil {
			return n, fmt.Errorf("export site %d: %w", st.ID, err)
		}
		payload, err := json.Marshal(data)
		if err != nil {
			return n, err
		}
		if err := store.PutObject(ctx, BackupKey(st.ID, now), payload, "application/json"); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
