package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client the backend needs, narrowed so
// tests can supply a fake without pulling in the real SDK's transport.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Backend is the object-storage Backend, keying blobs by name within a
// single configured bucket.
type S3Backend struct {
	client S3API
	bucket string
}

// NewS3Backend builds a Backend over an existing S3 client and bucket.
// The core never resolves credentials or endpoints itself; callers build
// client via the AWS SDK's own config loading.
func NewS3Backend(client S3API, bucket string) *S3Backend {
	return &S3Backend{client: client, bucket: bucket}
}

func (b *S3Backend) Put(ctx context.Context, key string, value []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(value),
	})
	return err
}

func (b *S3Backend) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (b *S3Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	return err
}

func (b *S3Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List pages through ListObjectsV2 lazily: each Next() call may trigger
// another network round trip once the current page is exhausted.
func (b *S3Backend) List(ctx context.Context, prefix string) Iterator {
	return &s3Iterator{ctx: ctx, client: b.client, bucket: b.bucket, prefix: prefix}
}

type s3Iterator struct {
	ctx        context.Context
	client     S3API
	bucket     string
	prefix     string
	token      *string
	page       []string
	pos        int
	done       bool
	err        error
	fetchedOne bool
}

func (it *s3Iterator) Next() (string, bool) {
	for it.pos >= len(it.page) {
		if it.done || it.err != nil {
			return "", false
		}
		it.fetch()
		if it.err != nil {
			return "", false
		}
	}
	k := it.page[it.pos]
	it.pos++
	return k, true
}

func (it *s3Iterator) fetch() {
	out, err := it.client.ListObjectsV2(it.ctx, &s3.ListObjectsV2Input{
		Bucket:            aws.String(it.bucket),
		Prefix:            aws.String(it.prefix),
		ContinuationToken: it.token,
	})
	if err != nil {
		it.err = err
		return
	}
	it.page = it.page[:0]
	it.pos = 0
	for _, obj := range out.Contents {
		if obj.Key != nil && strings.HasPrefix(*obj.Key, it.prefix) {
			it.page = append(it.page, *obj.Key)
		}
	}
	truncated := out.IsTruncated != nil && *out.IsTruncated
	if truncated && out.NextContinuationToken == nil && it.fetchedOne {
		// A malformed response claims more pages exist but gives us no
		// way to ask for the next one — stop instead of re-fetching the
		// same page forever.
		it.done = true
		return
	}
	it.fetchedOne = true
	if truncated {
		it.token = out.NextContinuationToken
	} else {
		it.done = true
	}
}

func (it *s3Iterator) Err() error { return it.err }
