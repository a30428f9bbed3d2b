// Package storage checks attachment references against the external file store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/spec-kit/issue-service/internal/domain"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

// HeadObjectAPI is the slice of the S3 client the catalog needs.
type HeadObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Config selects the bucket holding uploaded files.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
}

// S3Catalog reports whether a file reference names an uploaded object.
type S3Catalog struct {
	client HeadObjectAPI
	bucket string
}

// NewS3Client builds an S3 client; a custom endpoint switches to path-style
// addressing for MinIO and LocalStack.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewS3Catalog wraps client for bucket.
func NewS3Catalog(client HeadObjectAPI, bucket string) *S3Catalog {
	return &S3Catalog{client: client, bucket: bucket}
}

// Exists issues HeadObject for the reference. Missing objects report false;
// other failures surface as StoreUnavailable.
func (c *S3Catalog) Exists(ctx context.Context, id domain.FileID) (bool, error) {
	key := strings.TrimPrefix(string(id), "/")
	if key == "" {
		return false, nil
	}
	_, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return false, nil
	}
	return false, apperrors.NewStoreUnavailable(fmt.Errorf("head object %s: %w", key, err))
}

// DisabledCatalog rejects every reference; used when no bucket is configured.
type DisabledCatalog struct{}

func (DisabledCatalog) Exists(context.Context, domain.FileID) (bool, error) {
	return false, nil
}
