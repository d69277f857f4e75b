package evidence

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appaws "github.com/pulseras/pulseras-go/libs/aws"
	"github.com/pulseras/pulseras-go/libs/logging"
)

// S3Store keeps proofs as objects in a bucket.
type S3Store struct {
	client appaws.S3ObjectAPI
	bucket string
	now    func() time.Time
}

// NewS3Store creates a store writing into bucket.
func NewS3Store(client appaws.S3ObjectAPI, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket, now: time.Now}
}

// InitS3Store builds a store from the aws configuration found in ctx.
func InitS3Store(ctx context.Context, bucket string) (*S3Store, error) {
	logger := logging.Logger(ctx, "evidence.InitS3Store")

	cfg, err := appaws.BaseAWSConfig(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws configuration: %w", err)
	}

	return NewS3Store(appaws.NewS3Client(cfg), bucket), nil
}

// Put uploads p and returns its object key.
func (s *S3Store) Put(ctx context.Context, p *Proof) (string, error) {
	key := newKey(s.now(), p)

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(p.Data),
		ContentType:   aws.String(p.ContentType),
		ContentLength: aws.Int64(int64(len(p.Data))),
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload proof to %s: %w", s.bucket, err)
	}

	return key, nil
}

// Delete removes the object stored under ref.
func (s *S3Store) Delete(ctx context.Context, ref string) error {
	input := &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	}

	if _, err := s.client.DeleteObject(ctx, input); err != nil {
		return fmt.Errorf("failed to delete proof %s from %s: %w", ref, s.bucket, err)
	}

	return nil
}
