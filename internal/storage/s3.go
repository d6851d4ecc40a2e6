package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minitru/bunnyAI/pkg/cache"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// NewS3ClientParams configures an S3 or S3 compatible (MinIO) bucket.
type NewS3ClientParams struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

// Client reads and writes objects of a single bucket.
type Client struct {
	s3     *s3.Client
	bucket string
}

func NewS3Client(ctx context.Context, p NewS3ClientParams) (*Client, error) {
	if p.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(p.Region)}
	if p.Endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(p.Endpoint))
	}
	if p.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			p.AccessKey,
			p.SecretKey,
			"",
		)))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return &Client{s3: client, bucket: p.Bucket}, nil
}

// GetFile returns the object body. A missing object yields cache.ErrNotFound.
func (c *Client) GetFile(ctx context.Context, key string) ([]byte, error) {
	result, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, cache.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get file from S3: %w", err)
	}
	defer result.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, result.Body); err != nil {
		return nil, fmt.Errorf("failed to read file contents: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Client) PutFile(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload file to S3: %w", err)
	}
	return nil
}

func (c *Client) DeleteFile(ctx context.Context, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

func (c *Client) ListFilesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	listInput := &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	}

	for {
		listOutput, err := c.s3.ListObjectsV2(ctx, listInput)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects with prefix %s: %w", prefix, err)
		}

		for _, obj := range listOutput.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}

		if listOutput.IsTruncated != nil && *listOutput.IsTruncated {
			listInput.ContinuationToken = listOutput.NextContinuationToken
		} else {
			break
		}
	}

	return keys, nil
}

// CacheBackend stores cache envelopes as JSON objects below a key prefix.
type CacheBackend struct {
	client *Client
	prefix string
}

func NewCacheBackend(client *Client, prefix string) *CacheBackend {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &CacheBackend{client: client, prefix: prefix}
}

func (b *CacheBackend) objectKey(key string) string {
	return b.prefix + key + ".json"
}

func (b *CacheBackend) Read(ctx context.Context, key string) ([]byte, error) {
	return b.client.GetFile(ctx, b.objectKey(key))
}

func (b *CacheBackend) Write(ctx context.Context, key string, data []byte) error {
	return b.client.PutFile(ctx, b.objectKey(key), data, "application/json")
}

func (b *CacheBackend) Delete(ctx context.Context, key string) error {
	return b.client.DeleteFile(ctx, b.objectKey(key))
}

func (b *CacheBackend) List(ctx context.Context, prefix string) ([]string, error) {
	objects, err := b.client.ListFilesWithPrefix(ctx, b.prefix+prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(objects))
	for _, o := range objects {
		if !strings.HasSuffix(o, ".json") {
			continue
		}
		keys = append(keys, b.keyOf(o))
	}
	return keys, nil
}

func (b *CacheBackend) keyOf(object string) string {
	return strings.TrimSuffix(strings.TrimPrefix(object, b.prefix), ".json")
}
