package s3keys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobstoit/s3keys/lazy"
	"github.com/prometheus/client_golang/prometheus"
)

// Manager handles the entries of the buckets in a single region.
//
// The connection is established on the first operation and every bucket
// handle is fetched on the first operation on that bucket. Both are kept for
// the lifetime of the Manager.
type Manager struct {
	name      string
	region    string
	connector Connector
	logger    *slog.Logger
	metrics   *Metrics

	conn    *lazy.Value[Connection]
	buckets *lazy.Map[Bucket]
}

// Option configures a Manager.
type Option func(*Manager)

// Options bundles manager options
func Options(opts ...Option) Option {
	return func(m *Manager) {
		for _, op := range opts {
			op(m)
		}
	}
}

// New returns a Manager that connects through the given connector.
func New(connector Connector, opts ...Option) (*Manager, error) {
	if connector == nil {
		return nil, fmt.Errorf("%w: connector is required", ErrConfiguration)
	}

	m := &Manager{
		name:      Name,
		region:    DefaultRegion,
		connector: connector,
		logger:    slog.New(slog.DiscardHandler),
	}

	Options(opts...)(m)

	if m.region == "" {
		return nil, fmt.Errorf("%w: region is required", ErrConfiguration)
	}

	if m.metrics == nil {
		m.metrics = NewMetrics(m.name, prometheus.NewRegistry())
	}

	m.conn = lazy.NewValue(m.connect)
	m.buckets = lazy.NewMap(m.openBucket)

	return m, nil
}

// Region returns the region the manager connects to.
func (m *Manager) Region() string {
	return m.region
}

// ListEntries returns the keys in the given bucket starting with prefix.
// An empty prefix lists every key.
func (m *Manager) ListEntries(ctx context.Context, bucketName, prefix string) (keys []string, err error) {
	start := time.Now()
	defer func() { m.metrics.observe(opList, start, err) }()

	bucket, err := m.bucket(ctx, bucketName)
	if err != nil {
		return nil, err
	}

	keys, err = bucket.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "found entries",
		slog.String("bucket", bucketName),
		slog.String("prefix", prefix),
		slog.Any("keys", keys),
	)

	return keys, nil
}

// CreateEntry stores content under key in the given bucket.
//
// Returns ErrAlreadyExists if the key is taken. The check and the write are
// separate calls, so a concurrent writer may still slip in between.
func (m *Manager) CreateEntry(ctx context.Context, bucketName, key string, content []byte) (entry Entry, err error) {
	start := time.Now()
	defer func() { m.metrics.observe(opCreate, start, err) }()

	bucket, err := m.bucket(ctx, bucketName)
	if err != nil {
		return nil, err
	}

	entry = bucket.Entry(key)

	exists, err := entry.Exists(ctx)
	if err != nil {
		return nil, err
	}

	if exists {
		return nil, fmt.Errorf("%w: entry '%s' in bucket '%s', delete it first", ErrAlreadyExists, key, bucketName)
	}

	if err := entry.SetContent(ctx, content); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "created entry",
		slog.String("bucket", bucketName),
		slog.String("key", key),
		slog.Int("size", len(content)),
	)

	return entry, nil
}

// UpdateEntry replaces the content of the existing key in the given bucket.
//
// Returns ErrNotFound if there is no entry with that key.
func (m *Manager) UpdateEntry(ctx context.Context, bucketName, key string, content []byte) (entry Entry, err error) {
	start := time.Now()
	defer func() { m.metrics.observe(opUpdate, start, err) }()

	bucket, err := m.bucket(ctx, bucketName)
	if err != nil {
		return nil, err
	}

	entry, err = bucket.GetEntry(ctx, key)
	if errors.Is(err, ErrNotFound) || (err == nil && entry == nil) {
		return nil, fmt.Errorf("%w: no entry with name '%s' in bucket '%s'", ErrNotFound, key, bucketName)
	}

	if err != nil {
		return nil, err
	}

	if err := entry.SetContent(ctx, content); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "updated entry",
		slog.String("bucket", bucketName),
		slog.String("key", key),
		slog.Int("size", len(content)),
	)

	return entry, nil
}

// ReadEntry returns the content of the key in the given bucket.
//
// Returns ErrNotFound if there is no entry with that key.
func (m *Manager) ReadEntry(ctx context.Context, bucketName, key string) (content []byte, err error) {
	start := time.Now()
	defer func() { m.metrics.observe(opRead, start, err) }()

	bucket, err := m.bucket(ctx, bucketName)
	if err != nil {
		return nil, err
	}

	content, err = bucket.Entry(key).Content(ctx)
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "read entry",
		slog.String("bucket", bucketName),
		slog.String("key", key),
		slog.Int("size", len(content)),
	)

	return content, nil
}

// DeleteEntries removes the given keys from the bucket in one batch.
func (m *Manager) DeleteEntries(ctx context.Context, bucketName string, keys []string) (err error) {
	start := time.Now()
	defer func() { m.metrics.observe(opDelete, start, err) }()

	bucket, err := m.bucket(ctx, bucketName)
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "deleting entries",
		slog.String("bucket", bucketName),
		slog.Any("keys", keys),
	)

	return bucket.Delete(ctx, keys...)
}

func (m *Manager) connection(ctx context.Context) (Connection, error) {
	conn, err := m.conn.Get(ctx)
	if err != nil {
		return nil, err
	}

	// a nil connection stays cached, see lazy.Value
	if conn == nil {
		return nil, fmt.Errorf("%w: connector returned no connection for region '%s'", ErrConfiguration, m.region)
	}

	return conn, nil
}

func (m *Manager) bucket(ctx context.Context, name string) (Bucket, error) {
	bucket, err := m.buckets.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	if bucket == nil {
		return nil, fmt.Errorf("%w: bucket '%s'", ErrNotFound, name)
	}

	return bucket, nil
}

func (m *Manager) connect(ctx context.Context) (Connection, error) {
	m.logger.DebugContext(ctx, "connecting", slog.String("region", m.region))

	conn, err := m.connector.Connect(ctx, m.region)
	if err != nil {
		return nil, err
	}

	m.metrics.Connections.Inc()

	return conn, nil
}

func (m *Manager) openBucket(ctx context.Context, name string) (Bucket, error) {
	conn, err := m.connection(ctx)
	if err != nil {
		return nil, err
	}

	bucket, err := conn.Bucket(ctx, name)
	if err != nil {
		return nil, err
	}

	if bucket != nil {
		m.metrics.BucketsOpened.Inc()
	}

	return bucket, nil
}

/*
 * Options
 */

// WithRegion sets the region the manager connects to.
func WithRegion(region string) Option {
	return func(m *Manager) {
		m.region = region
	}
}

// WithName sets the name of the manager, used as the default metrics namespace.
func WithName(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.name = name
		}
	}
}

// WithLogger sets the logger for the manager.
// Every operation logs a line at info level.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger == nil {
			logger = slog.New(slog.DiscardHandler)
		}

		m.logger = logger
	}
}

// WithMetrics sets the metrics the manager records to.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}
