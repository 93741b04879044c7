package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Config struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	PresignTTL      time.Duration
}

// S3Uploader stores exports in an S3-compatible bucket (AWS, R2, MinIO)
// and hands back presigned download links.
type S3Uploader struct {
	bucket    string
	ttl       time.Duration
	client    *s3.Client
	presigner *s3.PresignClient
}

func NewS3Uploader(ctx context.Context, c S3Config) (*S3Uploader, error) {
	if c.Bucket == "" {
		return nil, errors.New("export bucket is not configured")
	}
	region := c.Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})
	ttl := c.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &S3Uploader{
		bucket:    c.Bucket,
		ttl:       ttl,
		client:    client,
		presigner: s3.NewPresignClient(client),
	}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	presigned, err := u.presigner.PresignGetObject(ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(u.bucket),
			Key:    aws.String(key),
		},
		func(po *s3.PresignOptions) {
			po.Expires = u.ttl
		},
	)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return presigned.URL, nil
}
