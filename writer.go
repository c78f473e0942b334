package s3keys

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ObjectWriterAPI is the part of the s3 client an EntryWriter uses.
type ObjectWriterAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// EntryWriter is an io.WriteCloser that replaces the full body of an S3 object.
//
// Bodies up to the chunk size are stored with a single PutObject, larger
// bodies with a multipart upload. Note the writer MUST be closed to store the
// object.
type EntryWriter struct {
	ctx       context.Context
	cli       ObjectWriterAPI
	bucket    string
	key       string
	logger    *slog.Logger
	chunkSize int
	acl       types.ObjectCannedACL

	buf      bytes.Buffer
	uploadID *string
	partNr   int32
	parts    []types.CompletedPart
	err      error
	closed   bool
}

// EntryWriterOption is an option for the given write operation
type EntryWriterOption func(*EntryWriter) error

// EntryWriterOptions is a collection of EntryWriterOption's
func EntryWriterOptions(opts ...EntryWriterOption) EntryWriterOption {
	return func(w *EntryWriter) error {
		for _, op := range opts {
			if err := op(w); err != nil {
				return err
			}
		}

		return nil
	}
}

// NewEntryWriter returns a new EntryWriter to do io.Writer opperations on your s3 object
func NewEntryWriter(ctx context.Context, cli ObjectWriterAPI, bucket, key string, opts ...EntryWriterOption) (*EntryWriter, error) {
	wr := &EntryWriter{
		ctx:       ctx,
		cli:       cli,
		bucket:    bucket,
		key:       key,
		chunkSize: DefaultChunkSize,
		logger:    slog.New(slog.DiscardHandler),
	}

	if err := EntryWriterOptions(opts...)(wr); err != nil {
		return nil, err
	}

	return wr, nil
}

// Write is the io.Writer implementation of the EntryWriter
func (w *EntryWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fs.ErrClosed
	}

	if w.err != nil {
		return 0, w.err
	}

	w.buf.Write(p)

	// the last part is kept for Close so it's never empty
	for w.buf.Len() > w.chunkSize {
		if err := w.uploadPart(bytes.Clone(w.buf.Next(w.chunkSize))); err != nil {
			w.fail(err)
			return 0, err
		}
	}

	return len(p), nil
}

// Close stores the remaining bytes and finishes the upload.
func (w *EntryWriter) Close() error {
	if w.closed {
		return w.err
	}

	w.closed = true

	if w.err != nil {
		return w.err
	}

	if w.uploadID == nil {
		w.err = w.putObject(w.buf.Bytes())
		return w.err
	}

	if err := w.uploadPart(bytes.Clone(w.buf.Next(w.buf.Len()))); err != nil {
		w.fail(err)
		return w.err
	}

	if err := w.completeUpload(); err != nil {
		w.fail(err)
	}

	return w.err
}

func (w *EntryWriter) fail(err error) {
	w.logger.DebugContext(w.ctx, "error uploading", slog.Any("error", err))

	if w.uploadID != nil {
		err = errors.Join(err, w.abortUpload())
	}

	w.err = err
}

func (w *EntryWriter) putObject(by []byte) error {
	w.logger.DebugContext(w.ctx, "upload small file", slog.Int("size", len(by)))

	_, err := w.cli.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket:        &w.bucket,
		Key:           &w.key,
		ACL:           w.acl,
		Body:          bytes.NewReader(by),
		ContentLength: aws.Int64(int64(len(by))),
	})

	return err
}

func (w *EntryWriter) createMultipartUpload() error {
	w.logger.DebugContext(w.ctx, "starting multipart upload")

	res, err := w.cli.CreateMultipartUpload(w.ctx, &s3.CreateMultipartUploadInput{
		Bucket: &w.bucket,
		Key:    &w.key,
		ACL:    w.acl,
	})
	if err != nil {
		return err
	}

	w.uploadID = res.UploadId

	return nil
}

func (w *EntryWriter) uploadPart(by []byte) error {
	if w.uploadID == nil {
		if err := w.createMultipartUpload(); err != nil {
			return err
		}
	}

	w.partNr++
	partNr := w.partNr

	w.logger.DebugContext(
		w.ctx,
		"upload part",
		slog.String("upload_id", aws.ToString(w.uploadID)),
		slog.Int("part_nr", int(partNr)),
		slog.Int("size", len(by)),
	)

	res, err := w.cli.UploadPart(w.ctx, &s3.UploadPartInput{
		Bucket:     &w.bucket,
		Key:        &w.key,
		UploadId:   w.uploadID,
		PartNumber: &partNr,
		Body:       bytes.NewReader(by),
	})
	if err != nil {
		return err
	}

	w.parts = append(w.parts, types.CompletedPart{
		ChecksumCRC32:  res.ChecksumCRC32,
		ChecksumCRC32C: res.ChecksumCRC32C,
		ChecksumSHA1:   res.ChecksumSHA1,
		ChecksumSHA256: res.ChecksumSHA256,
		ETag:           res.ETag,
		PartNumber:     aws.Int32(partNr),
	})

	return nil
}

func (w *EntryWriter) abortUpload() error {
	w.logger.DebugContext(w.ctx, "abort upload", slog.String("upload_id", aws.ToString(w.uploadID)))

	_, err := w.cli.AbortMultipartUpload(w.ctx, &s3.AbortMultipartUploadInput{
		Bucket:   &w.bucket,
		Key:      &w.key,
		UploadId: w.uploadID,
	})

	return err
}

func (w *EntryWriter) completeUpload() error {
	w.logger.DebugContext(w.ctx, "complete upload", slog.String("upload_id", aws.ToString(w.uploadID)), slog.Int("parts", len(w.parts)))

	_, err := w.cli.CompleteMultipartUpload(w.ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   &w.bucket,
		Key:      &w.key,
		UploadId: w.uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: w.parts,
		},
	})

	return err
}

/*
 * Options
 */

// WithWriterLogger adds a logger for this writer
func WithWriterLogger(logger *slog.Logger) EntryWriterOption {
	return func(w *EntryWriter) error {
		if logger != nil {
			w.logger = logger
		}

		return nil
	}
}

// WithWriterChunkSize sets the chunksize for this writer
func WithWriterChunkSize(size int) EntryWriterOption {
	return func(w *EntryWriter) error {
		if size < MinChunkSize {
			return ErrMinChunkSize
		}

		w.chunkSize = size

		return nil
	}
}

// WithWriterACL sets the ACL for the object thats written
func WithWriterACL(acl types.ObjectCannedACL) EntryWriterOption {
	return func(w *EntryWriter) error {
		w.acl = acl

		return nil
	}
}
