package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by Archive.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Archive keeps original uploads in S3. With no bucket every call is a no-op.
type Archive struct {
	bucket string
	client S3API
}

func NewArchive(client S3API, bucket string) *Archive {
	return &Archive{bucket: bucket, client: client}
}

// NewS3Archive builds an Archive from the default AWS credential chain.
func NewS3Archive(ctx context.Context, bucket, region string) (*Archive, error) {
	if bucket == "" {
		return NewArchive(nil, ""), nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewArchive(s3.NewFromConfig(cfg), bucket), nil
}

func (a *Archive) Enabled() bool {
	return a != nil && a.bucket != "" && a.client != nil
}

// Key is the object key of a photo's original.
func Key(patientID, photoID, contentType string) string {
	return path.Join("originals", patientID, photoID+extension(contentType))
}

func extension(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	case "image/heif":
		return ".heif"
	}
	return ""
}

func (a *Archive) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	if !a.Enabled() {
		return nil
	}
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", key, err)
	}
	return nil
}

// Delete removes an archived original. S3 reports success for missing keys.
func (a *Archive) Delete(ctx context.Context, key string) error {
	if !a.Enabled() || key == "" {
		return nil
	}
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 delete %s: %w", key, err)
	}
	return nil
}
