package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/markdave123-py/Contexta/internal/config"
)

// S3Client implements Client against an S3-compatible endpoint, grounded on
// the teacher's internal/core/object-client/client_object_storage.go.
type S3Client struct {
	client   *s3.Client
	presign  *s3.PresignClient
	bucket   string
	logger   *slog.Logger
}

// NewS3Client builds an S3-backed Client from process configuration.
func NewS3Client(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*S3Client, error) {
	if cfg.ObjectStoreAccessKey == "" || cfg.ObjectStoreSecretKey == "" {
		return nil, fmt.Errorf("objectstore: credentials not set")
	}
	if cfg.ObjectStoreBucket == "" {
		return nil, fmt.Errorf("objectstore: bucket name not set")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.ObjectStoreRegion),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.ObjectStoreAccessKey, cfg.ObjectStoreSecretKey, ""),
		),
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objectstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.ObjectStoreEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.ObjectStoreEndpoint)
		}
	})

	return &S3Client{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.ObjectStoreBucket,
		logger:  logger,
	}, nil
}

func (c *S3Client) GenerateKey(tenant, document string, version int) string {
	return GenerateKey(tenant, document, version)
}

func (c *S3Client) GetUploadURL(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	req, err := c.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", classify("presign_put", err)
	}
	return req.URL, nil
}

func (c *S3Client) GetDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", classify("presign_get", err)
	}
	return req.URL, nil
}

func (c *S3Client) Download(ctx context.Context, key string) ([]byte, error) {
	rc, err := c.DownloadReader(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, classify("read_body", err)
	}
	return body, nil
}

func (c *S3Client) DownloadReader(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify("get_object", err)
	}
	return resp.Body, nil
}

func (c *S3Client) Delete(ctx context.Context, key string) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classify("delete_object", err)
	}
	return nil
}

// UploadBytes is a direct (non-presigned) PUT, used by test fixtures and by
// any component that already holds the bytes in-process.
func (c *S3Client) UploadBytes(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return classify("put_object", err)
	}
	return nil
}

func classify(op string, err error) *Error {
	var apiErr smithy.APIError
	kind := ErrKindTransient
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			kind = ErrKindNotFound
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			kind = ErrKindAuth
		}
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

var _ Client = (*S3Client)(nil)
