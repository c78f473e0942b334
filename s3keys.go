package s3keys

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

const (
	// Name is the default name of a Manager, used as metrics namespace.
	Name = "s3keys"

	// DefaultRegion is the region a Manager connects to when none is given.
	DefaultRegion = "us-east-1"

	MinChunkSize     = 1024 * 1024 * 5
	DefaultChunkSize = 1024 * 1024 * 5

	// deleteLimit is the maximum amount of keys S3 accepts in one DeleteObjects call.
	deleteLimit = 1000
)

var (
	// ErrConfiguration is returned when a Manager or Connector is set up with
	// missing or invalid collaborators.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrAlreadyExists is returned when creating an entry that is already present.
	ErrAlreadyExists = errors.New("entry already exists")

	// ErrNotFound is returned when an entry or bucket does not exist.
	// It matches fs.ErrNotExist.
	ErrNotFound = fmt.Errorf("not found: %w", fs.ErrNotExist)

	ErrMinChunkSize = errors.New("given value is less than minimum chunksize of 5mb")
)

// Connector opens a connection to the storage service for a region.
type Connector interface {
	Connect(ctx context.Context, region string) (Connection, error)
}

// Connection is an open, region scoped connection to the storage service.
type Connection interface {
	// Bucket returns a handle to the named bucket.
	// Returns ErrNotFound if the bucket does not exist.
	Bucket(ctx context.Context, name string) (Bucket, error)
}

// Bucket is a handle to a single bucket.
type Bucket interface {
	// Name returns the bucket's name.
	Name() string

	// List returns the keys of the entries starting with prefix, in the order
	// the service returns them. An empty prefix lists every entry.
	List(ctx context.Context, prefix string) ([]string, error)

	// Entry returns a handle to the entry with the given key without checking
	// whether it exists.
	Entry(key string) Entry

	// GetEntry returns the entry with the given key.
	// Returns ErrNotFound if it does not exist.
	GetEntry(ctx context.Context, key string) (Entry, error)

	// Delete removes the given keys in a single batch.
	Delete(ctx context.Context, keys ...string) error
}

// Entry is a named blob in a bucket.
type Entry interface {
	// Key returns the entry's key.
	Key() string

	// Exists reports whether the entry is present in its bucket.
	Exists(ctx context.Context) (bool, error)

	// SetContent replaces the full body of the entry.
	SetContent(ctx context.Context, content []byte) error

	// Content returns the full body of the entry.
	// Returns ErrNotFound if it does not exist.
	Content(ctx context.Context) ([]byte, error)
}
