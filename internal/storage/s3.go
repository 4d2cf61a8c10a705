package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/AtoyanMikhail/deviceauth/internal/config"
	"github.com/AtoyanMikhail/deviceauth/internal/logger"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"
)

type s3Storage struct {
	client     s3iface.S3API
	bucket     string
	presignTTL time.Duration
	logger     logger.Logger
	newKey     func(folder, ext string) string
}

// NewS3Storage creates an S3 client from config. Endpoint and path-style addressing are
// only needed for S3-compatible servers such as MinIO.
func NewS3Storage(cfg config.StorageConfig, l logger.Logger) (Storage, error) {
	awsCfg := &aws.Config{
		Region:      aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.ForcePathStyle {
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 session: %w", err)
	}

	l.Info("S3 storage configured",
		logger.String("bucket", cfg.Bucket),
		logger.String("region", cfg.Region),
		logger.String("endpoint", cfg.Endpoint))

	return newS3Storage(s3.New(sess), cfg.Bucket, cfg.PresignTTL.Std(), l), nil
}

func newS3Storage(client s3iface.S3API, bucket string, presignTTL time.Duration, l logger.Logger) *s3Storage {
	return &s3Storage{
		client:     client,
		bucket:     bucket,
		presignTTL: presignTTL,
		logger:     l,
		newKey: func(folder, ext string) string {
			return fmt.Sprintf("%s/%s.%s", folder, uuid.NewString(), ext)
		},
	}
}

func (s *s3Storage) Upload(ctx context.Context, obj Object, folder string) (string, error) {
	key := s.newKey(folder, extension(obj))

	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(obj.Data),
		ContentType: aws.String(obj.ContentType),
	})
	if err != nil {
		s.logger.Error("Failed to upload object", logger.String("key", key), logger.Error(err))
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	s.logger.Info("Object uploaded", logger.String("key", key), logger.Int("size", len(obj.Data)))
	return key, nil
}

func (s *s3Storage) PresignURL(ctx context.Context, key string) (string, error) {
	req, _ := s.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	req.SetContext(ctx)

	url, err := req.Presign(s.presignTTL)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return url, nil
}
