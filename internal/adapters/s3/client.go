package s3

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"phishguard/internal/adapters/config"
	"phishguard/pkg/errors"
	"phishguard/pkg/logger"
)

// ObjectAPI is the subset of *s3.Client used here
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Client wraps the S3 API for whole-object uploads and downloads
type Client struct {
	api ObjectAPI
	log *logger.Logger
}

// NewClient builds a client from the default AWS credential chain. Endpoint and
// path-style addressing support S3-compatible stores such as MinIO.
func NewClient(ctx context.Context, cfg config.S3Config) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load aws config")
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewFromAPI(api), nil
}

// NewFromAPI wraps an existing S3 API implementation
func NewFromAPI(api ObjectAPI) *Client {
	return &Client{
		api: api,
		log: logger.Get().With("component", "s3"),
	}
}

// Upload writes body to bucket/key
func (c *Client) Upload(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return errors.Wrapf(err, "put s3://%s/%s", bucket, key)
	}
	c.log.Debugw("Uploaded object", "bucket", bucket, "key", key, "bytes", len(body))
	return nil
}

// UploadFile uploads the file at path to bucket/key
func (c *Client) UploadFile(ctx context.Context, bucket, key, path, contentType string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	return c.Upload(ctx, bucket, key, body, contentType)
}

// Download copies bucket/key into dest. The file is written next to dest and
// renamed into place, so a failed download never leaves a partial artifact.
func (c *Client) Download(ctx context.Context, bucket, key, dest string) (int64, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, errors.Wrapf(err, "get s3://%s/%s", bucket, key)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, errors.Wrap(err, "create destination directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, out.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, errors.Wrapf(err, "write %s", dest)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, errors.Wrapf(err, "rename into %s", dest)
	}

	c.log.Infow("Downloaded object", "bucket", bucket, "key", key, "dest", dest, "bytes", n)
	return n, nil
}
