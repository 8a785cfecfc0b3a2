// Package storage gives case documents short-lived download links from an
// S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/sincere-abayo/advocate-management-system/internal/config"
)

// ErrNotConfigured is returned when no bucket credentials were provided.
var ErrNotConfigured = errors.New("object storage is not configured")

// Object is what the bucket knows about a stored file.
type Object struct {
	Size        int64
	ContentType string
}

// Presigner signs download links and inspects stored objects.
type Presigner interface {
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Stat(ctx context.Context, key string) (*Object, error)
}

// S3 implements Presigner on aws-sdk-go-v2. A nil *S3 is valid and
// reports ErrNotConfigured.
type S3 struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
}

// NewS3 builds the client, or returns nil when the bucket settings are empty.
func NewS3(ctx context.Context, cfg *config.Config) (*S3, error) {
	if cfg.S3Bucket == "" || cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "" {
		return nil, nil
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(creds),
		awsconfig.WithRegion(cfg.S3Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3{client: client, presigner: s3.NewPresignClient(client), bucket: cfg.S3Bucket}, nil
}

// SignedURL presigns a GET for key.
func (s *S3) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if s == nil {
		return "", ErrNotConfigured
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

// Stat confirms the object exists and returns its size and content type.
func (s *S3) Stat(ctx context.Context, key string) (*Object, error) {
	if s == nil {
		return nil, ErrNotConfigured
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("head %s: %w", key, err)
	}
	return &Object{Size: aws.ToInt64(out.ContentLength), ContentType: aws.ToString(out.ContentType)}, nil
}

// ObjectKey is the per-case location of a file: cases/<caseID>/<filename>.
func ObjectKey(caseID uuid.UUID, filename string) string {
	return path.Join("cases", caseID.String(), path.Base(filename))
}

// BelongsTo reports whether key is the case's object for its own base name.
func BelongsTo(key string, caseID uuid.UUID) bool {
	return key == ObjectKey(caseID, key)
}
