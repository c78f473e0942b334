package s3keys

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectReaderAPI is the part of the s3 client an EntryReader uses.
type ObjectReaderAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// EntryReader is an io.ReadCloser for the body of an S3 object.
//
// The body is fetched in ranged chunks, one after the other.
type EntryReader struct {
	ctx       context.Context
	cli       ObjectReaderAPI
	bucket    string
	key       string
	logger    *slog.Logger
	chunkSize int64

	opened bool
	closed bool
	offset int64
	size   int64
	body   io.ReadCloser
}

// EntryReaderOption is an option for the given read operation
type EntryReaderOption func(*EntryReader)

// EntryReaderOptions is a collection of EntryReaderOption's
func EntryReaderOptions(opts ...EntryReaderOption) EntryReaderOption {
	return func(r *EntryReader) {
		for _, op := range opts {
			op(r)
		}
	}
}

// NewEntryReader returns a new EntryReader to do io.Reader opperations on your s3 object
func NewEntryReader(ctx context.Context, cli ObjectReaderAPI, bucket, key string, opts ...EntryReaderOption) *EntryReader {
	rd := &EntryReader{
		ctx:       ctx,
		cli:       cli,
		bucket:    bucket,
		key:       key,
		chunkSize: DefaultChunkSize,
		logger:    slog.New(slog.DiscardHandler),
	}

	EntryReaderOptions(opts...)(rd)

	return rd
}

// Read is the io.Reader implementation for the EntryReader.
//
// It returns an ErrNotFound if the object doesn't exist in the given bucket.
// And returns an io.EOF when all bytes are read.
func (r *EntryReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, fs.ErrClosed
	}

	if !r.opened {
		if err := r.open(); err != nil {
			return 0, err
		}
	}

	for {
		if r.body != nil {
			n, err := r.body.Read(p)
			if err == io.EOF {
				_ = r.body.Close()
				r.body = nil

				if n > 0 {
					return n, nil
				}

				continue
			}

			return n, err
		}

		if r.offset >= r.size {
			return 0, io.EOF
		}

		if err := r.nextChunk(); err != nil {
			return 0, err
		}
	}
}

// Close releases the chunk currently being read.
func (r *EntryReader) Close() error {
	if r.closed {
		return nil
	}

	r.closed = true

	if r.body != nil {
		return r.body.Close()
	}

	return nil
}

func (r *EntryReader) open() error {
	res, err := r.cli.HeadObject(r.ctx, &s3.HeadObjectInput{
		Bucket: &r.bucket,
		Key:    &r.key,
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: entry '%s' in bucket '%s'", ErrNotFound, r.key, r.bucket)
		}

		return err
	}

	r.opened = true
	r.size = aws.ToInt64(res.ContentLength)

	r.logger.DebugContext(r.ctx, "pre read", slog.Int64("content-length", r.size))

	return nil
}

func (r *EntryReader) nextChunk() error {
	start := r.offset
	end := min(start+r.chunkSize, r.size) - 1

	r.logger.DebugContext(r.ctx, "getting chunk", slog.Group("chunk", slog.Int64("start", start), slog.Int64("end", end)))

	byteRange := fmt.Sprintf("bytes=%d-%d", start, end)
	res, err := r.cli.GetObject(r.ctx, &s3.GetObjectInput{
		Bucket: &r.bucket,
		Key:    &r.key,
		Range:  &byteRange,
	})
	if err != nil {
		return err
	}

	r.body = res.Body
	r.offset = end + 1

	return nil
}

/*
 * Options
 */

// WithReaderLogger sets the logger for this reader
func WithReaderLogger(logger *slog.Logger) EntryReaderOption {
	return func(r *EntryReader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithReaderChunkSize sets the chunksize for this reader
func WithReaderChunkSize(size int) EntryReaderOption {
	return func(r *EntryReader) {
		if size > 0 {
			r.chunkSize = int64(size)
		}
	}
}
