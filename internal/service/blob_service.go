package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"app/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// BlobService stores asset artifacts as base64 text objects, keyed by
// user ID, in buckets partitioned by asset kind and role.
type BlobService interface {
	Download(ctx context.Context, bucket, key string) (string, error)
	Upload(ctx context.Context, bucket, key, data string) error
}

type s3BlobService struct {
	client *s3.Client
	logger zerolog.Logger
}

func NewS3BlobService(client *s3.Client, logger zerolog.Logger) BlobService {
	return &s3BlobService{
		client: client,
		logger: logger.With().Str("service", "S3BlobService").Logger(),
	}
}

// Download returns the stored artifact, or "" with a nil error when the
// object does not exist. Callers treat the empty string as a miss.
func (s *s3BlobService) Download(ctx context.Context, bucket, key string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return "", nil
		}
		s.logger.Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("Failed to download object")
		return "", fmt.Errorf("failed to download s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read object body: %w", err)
	}
	return string(data), nil
}

func (s *s3BlobService) Upload(ctx context.Context, bucket, key, data string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader([]byte(data)),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("Failed to upload object")
		return fmt.Errorf("failed to upload s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// Buckets derives the bucket names for each asset kind and storage role
// from a single configured prefix.
type Buckets struct {
	Prefix string
}

func kindSlug(kind model.AssetKind) string {
	if kind == model.AssetKindProfileImage {
		return "profile-image"
	}
	return strings.ToLower(string(kind))
}

// Original holds the user's pre-automation asset captured on stream-up.
func (b Buckets) Original(kind model.AssetKind) string {
	return fmt.Sprintf("%s-%s-original", b.Prefix, kindSlug(kind))
}

// Backup holds the asset captured once at feature-enable time.
func (b Buckets) Backup(kind model.AssetKind) string {
	return fmt.Sprintf("%s-%s-backup", b.Prefix, kindSlug(kind))
}

// Cache holds rendered artifacts.
func (b Buckets) Cache(kind model.AssetKind) string {
	return fmt.Sprintf("%s-%s-cache", b.Prefix, kindSlug(kind))
}
