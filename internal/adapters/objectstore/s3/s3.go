// Package s3 implements adapters.ObjectStore on AWS S3, generalizing the
// teacher's dormant S3BlobConfig scaffolding into a concrete production
// object store.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithy "github.com/aws/smithy-go"

	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
)

// Store is an adapters.ObjectStore backed by a single S3 bucket.
type Store struct {
	client *s3.Client
	bucket string
}

// New loads the default AWS credential chain for region and returns a Store
// targeting bucket.
func New(ctx context.Context, region, bucket string) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, orcherrors.StorageError(fmt.Errorf("load aws config: %w", err))
	}
	return &Store{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

func (s *Store) Put(ctx context.Context, key string, r io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return orcherrors.StorageError(fmt.Errorf("put object %s: %w", key, err))
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, &orcherrors.NotFound{ID: key}
		}
		return nil, orcherrors.StorageError(fmt.Errorf("get object %s: %w", key, err))
	}
	return out.Body, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, orcherrors.StorageError(fmt.Errorf("head object %s: %w", key, err))
	}
	return true, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return orcherrors.StorageError(fmt.Errorf("delete object %s: %w", key, err))
	}
	return nil
}

func isNoSuchKey(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code := apiErr.ErrorCode()
	return code == "NoSuchKey" || code == "NotFound"
}
