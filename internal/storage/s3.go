package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// S3Publisher uploads the embeddable widget assets to an S3-compatible
// bucket so websites can load them from a public URL.
type S3Publisher struct {
	logger zerolog.Logger
	client *s3.Client
	bucket string
}

// NewS3Publisher creates a publisher for the given endpoint and bucket.
// An empty endpoint uses the default AWS resolution.
func NewS3Publisher(logger zerolog.Logger, endpoint, region, accessKeyID, secretAccessKey, bucket string) *S3Publisher {
	opts := s3.Options{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
	}
	if endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	return &S3Publisher{
		logger: logger.With().Str("component", "widget-publisher").Logger(),
		client: s3.New(opts),
		bucket: bucket,
	}
}

// PublishWidget uploads one widget asset under the given key with public
// read access.
func (p *S3Publisher) PublishWidget(ctx context.Context, key string, body []byte, contentType string) error {
	p.logger.Info().Str("bucket", p.bucket).Str("key", key).Int("bytes", len(body)).Msg("publishing widget asset")

	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(p.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=3600"),
		ACL:          s3types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return fmt.Errorf("put widget asset %s: %w", key, err)
	}
	return nil
}

// EnsureBucket creates the widget bucket if it does not already exist.
func (p *S3Publisher) EnsureBucket(ctx context.Context) error {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)})
	if err == nil {
		return nil
	}

	_, err = p.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(p.bucket)})
	if err != nil {
		return fmt.Errorf("create widget bucket %s: %w", p.bucket, err)
	}
	p.logger.Info().Str("bucket", p.bucket).Msg("created widget bucket")
	return nil
}
