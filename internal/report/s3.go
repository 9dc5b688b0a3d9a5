package report

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config - настройки архива отчетов в S3 совместимом хранилище
type S3Config struct {
	Endpoint        string // MinIO, DigitalOcean Spaces и т.п.
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// Enabled сообщает, задан ли бакет
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// S3Archiver загружает отчеты в бакет
type S3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Archiver создает клиента S3
func NewS3Archiver(ctx context.Context, cfg S3Config) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("S3 region is required")
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = "reports"
	}

	return &S3Archiver{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

// Archive загружает отчет и возвращает ключ объекта: reports/YYYY/MM/tour-scan-YYYY-MM-DD.md
func (a *S3Archiver) Archive(ctx context.Context, s Summary, content string) (string, error) {
	key := path.Join(a.prefix, s.StartedAt.Format("2006"), s.StartedAt.Format("01"), FileName(s.StartedAt))

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/markdown; charset=utf-8"),
		Metadata:    map[string]string{"run-id": s.RunID},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload report to S3: %w", err)
	}

	return key, nil
}
