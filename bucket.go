package s3keys

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// s3Bucket is the Bucket implementation for an S3 bucket.
type s3Bucket struct {
	name      string
	cli       S3API
	chunkSize int
	logger    *slog.Logger
}

// Name returns the bucket's name
func (b *s3Bucket) Name() string {
	return b.name
}

// List returns the keys of the objects with the given prefix.
//
// Only the first page of results is returned.
func (b *s3Bucket) List(ctx context.Context, prefix string) ([]string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: &b.name,
	}

	if prefix != "" {
		input.Prefix = &prefix
	}

	res, err := b.cli.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(res.Contents))
	for _, obj := range res.Contents {
		keys = append(keys, aws.ToString(obj.Key))
	}

	b.logger.DebugContext(ctx, "listed objects", slog.String("bucket", b.name), slog.Int("count", len(keys)))

	return keys, nil
}

// Entry returns a handle to the object with the given key
func (b *s3Bucket) Entry(key string) Entry {
	return &s3Entry{
		bucket:    b.name,
		key:       key,
		cli:       b.cli,
		chunkSize: b.chunkSize,
		logger:    b.logger,
	}
}

// GetEntry returns the object with the given key if it exists
func (b *s3Bucket) GetEntry(ctx context.Context, key string) (Entry, error) {
	entry := b.Entry(key)

	exists, err := entry.Exists(ctx)
	if err != nil {
		return nil, err
	}

	if !exists {
		return nil, fmt.Errorf("%w: entry '%s' in bucket '%s'", ErrNotFound, key, b.name)
	}

	return entry, nil
}

// Delete deletes the given object keys.
//
// Keys are sent in one DeleteObjects call, or several when there are more than
// S3 accepts at once. Per key failures reported by S3 are not inspected.
func (b *s3Bucket) Delete(ctx context.Context, keys ...string) error {
	var err error

	for len(keys) > 0 {
		length := min(len(keys), deleteLimit)

		objs := make([]types.ObjectIdentifier, length)
		for i, key := range keys[:length] {
			objs[i] = types.ObjectIdentifier{
				Key: aws.String(key),
			}
		}

		_, derr := b.cli.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: &b.name,
			Delete: &types.Delete{
				Objects: objs,
			},
		})

		b.logger.DebugContext(ctx, "deleted objects", slog.String("bucket", b.name), slog.Int("count", length))

		err = errors.Join(err, derr)
		keys = keys[length:]
	}

	return err
}

// s3Entry is the Entry implementation for an S3 object.
type s3Entry struct {
	bucket    string
	key       string
	cli       S3API
	chunkSize int
	logger    *slog.Logger
}

// Key returns the object key
func (e *s3Entry) Key() string {
	return e.key
}

// Exists returns a a boolean indicating whether the object exists.
func (e *s3Entry) Exists(ctx context.Context) (bool, error) {
	input := &s3.HeadObjectInput{
		Bucket: &e.bucket,
		Key:    &e.key,
	}

	if _, err := e.cli.HeadObject(ctx, input); err != nil {
		if isNotFound(err) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// SetContent replaces the object's body with content.
func (e *s3Entry) SetContent(ctx context.Context, content []byte) error {
	wr, err := NewEntryWriter(ctx, e.cli, e.bucket, e.key,
		WithWriterChunkSize(e.chunkSize),
		WithWriterLogger(e.logger),
	)
	if err != nil {
		return err
	}

	if _, err := wr.Write(content); err != nil {
		_ = wr.Close()
		return err
	}

	return wr.Close()
}

// Content reads the object's full body.
func (e *s3Entry) Content(ctx context.Context) ([]byte, error) {
	rd := NewEntryReader(ctx, e.cli, e.bucket, e.key,
		WithReaderChunkSize(e.chunkSize),
		WithReaderLogger(e.logger),
	)
	defer rd.Close()

	return io.ReadAll(rd)
}

// isNotFound reports whether err is the service telling a bucket or object
// doesn't exist.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}

	var (
		notFound     *types.NotFound
		noSuchKey    *types.NoSuchKey
		noSuchBucket *types.NoSuchBucket
	)
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) || errors.As(err, &noSuchBucket) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch strings.ToLower(apiErr.ErrorCode()) {
		case "notfound", "nosuchkey", "nosuchbucket", "404":
			return true
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return true
	}

	return false
}
