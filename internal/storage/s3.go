// Package storage adapts an S3-compatible object store to the few calls the
// bot needs: put, get, and public-URL construction.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// ErrNotFound reports an absent key. Callers distinguish it from transport
// failures; an empty store is not an error condition.
var ErrNotFound = errors.New("storage: object not found")

// API is the slice of the S3 client the bucket uses, narrow enough to fake
// in tests.
type API interface {
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
}

// Bucket wraps one bucket of an S3-compatible store.
type Bucket struct {
	api      API
	name     string
	endpoint string // host only, e.g. "storage.example.net"
}

// BucketOpts holds parameters for creating a Bucket. Credentials come from
// AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY.
type BucketOpts struct {
	Endpoint string // storage host, with or without scheme
	Region   string
	Bucket   string
	API      API // optional; overrides the real client (tests)
}

// NewBucket creates a Bucket.
func NewBucket(opts BucketOpts) (*Bucket, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("storage: bucket name is required")
	}
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("storage: endpoint is required")
	}
	host := strings.TrimPrefix(strings.TrimPrefix(opts.Endpoint, "https://"), "http://")

	api := opts.API
	if api == nil {
		creds := credentials.NewStaticCredentials(
			os.Getenv("AWS_ACCESS_KEY_ID"),
			os.Getenv("AWS_SECRET_ACCESS_KEY"),
			"")
		sess, err := session.NewSession(&aws.Config{
			Region:           aws.String(opts.Region),
			Endpoint:         aws.String("https://" + host),
			Credentials:      creds,
			S3ForcePathStyle: aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("storage: create session: %w", err)
		}
		api = s3.New(sess)
	}

	return &Bucket{api: api, name: opts.Bucket, endpoint: host}, nil
}

// Put uploads data under key.
func (b *Bucket) Put(ctx aws.Context, key string, data []byte) error {
	_, err := b.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("storage: put %s: %w", key, err)
	}
	return nil
}

// PutFile uploads a local file under key.
func (b *Bucket) PutFile(ctx aws.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("storage: put %s: open %s: %w", key, path, err)
	}
	defer f.Close()
	_, err = b.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("storage: put %s: %w", key, err)
	}
	return nil
}

// Get downloads the object at key. An absent key yields ErrNotFound.
func (b *Bucket) Get(ctx aws.Context, key string) ([]byte, error) {
	out, err := b.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, fmt.Errorf("storage: get %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("storage: get %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: read body: %w", key, err)
	}
	return data, nil
}

// PublicURL returns the public address of the object at key.
func (b *Bucket) PublicURL(key string) string {
	return fmt.Sprintf("https://%s/%s/%s", b.endpoint, b.name, key)
}
