package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/local/qrprint/internal/config"
)

type uploadAPI interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type headAPI interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Publisher copies finished print artifacts to S3.
type Publisher struct {
	uploader uploadAPI
	head     headAPI
	bucket   string
	prefix   string
}

// NewPublisher builds a publisher from the S3 settings. Static keys are used
// when both are set, otherwise the default AWS credential chain applies.
func NewPublisher(ctx context.Context, cfg config.S3Config) (*Publisher, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("s3 publishing disabled: no bucket configured")
	}
	var opts []func(*awscfg.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awscfg.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsConf, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cli := s3.NewFromConfig(awsConf)
	return &Publisher{
		uploader: manager.NewUploader(cli),
		head:     cli,
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
	}, nil
}

// Ping checks that the bucket exists and is reachable with the configured credentials.
func (p *Publisher) Ping(ctx context.Context) error {
	_, err := p.head.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)})
	return err
}

// Key is the object key of localPath for a job: <prefix>/<job>/<file name>.
func (p *Publisher) Key(job, localPath string) string {
	parts := []string{}
	if p.prefix != "" {
		parts = append(parts, p.prefix)
	}
	if job = strings.Trim(job, "/"); job != "" {
		parts = append(parts, job)
	}
	parts = append(parts, filepath.Base(localPath))
	return path.Join(parts...)
}

// Publish uploads localPath and returns its s3:// location.
func (p *Publisher) Publish(ctx context.Context, job, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(localPath); err == nil {
		contentType = mt.String()
	}

	key := p.Key(job, localPath)
	out, err := p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
		Metadata:    map[string]string{"job": job},
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("artifact upload failed")
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Info().Str("key", key).Str("location", out.Location).Str("content_type", contentType).Msg("artifact published")
	return fmt.Sprintf("s3://%s/%s", p.bucket, key), nil
}
