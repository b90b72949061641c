package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	appconfig "activation-backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Archiver keeps a copy of every uploaded source file
type Archiver interface {
	Archive(ctx context.Context, runID uuid.UUID, fileName string, data []byte) (string, error)
}

// Nop discards files when archiving is disabled
type Nop struct{}

func (Nop) Archive(ctx context.Context, runID uuid.UUID, fileName string, data []byte) (string, error) {
	return "", nil
}

type S3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Archiver builds a client for any S3 compatible endpoint (R2, MinIO)
func NewS3Archiver(ctx context.Context, cfg *appconfig.Config) (*S3Archiver, error) {
	a := cfg.Archive
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			a.AccessKey,
			a.SecretKey,
			"",
		)),
		awsconfig.WithRegion(a.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("configure archive client: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if a.Endpoint != "" {
			o.BaseEndpoint = aws.String(a.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Archiver{client: client, bucket: a.Bucket, prefix: a.Prefix}, nil
}

func (s *S3Archiver) Archive(ctx context.Context, runID uuid.UUID, fileName string, data []byte) (string, error) {
	key := ArchiveKey(s.prefix, runID, fileName)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(fileName)),
		Metadata:    map[string]string{"run-id": runID.String()},
	})
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", key, err)
	}
	return key, nil
}

// ArchiveKey is <prefix>/imports/<run-id>/<file name>
func ArchiveKey(prefix string, runID uuid.UUID, fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	return path.Join(strings.Trim(prefix, "/"), "imports", runID.String(), name)
}

func contentType(fileName string) string {
	switch strings.ToLower(path.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".csv":
		return "text/csv"
	}
	return "application/octet-stream"
}
