package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/jobstoit/s3keys"
	"github.com/jobstoit/s3keys/internal/config"
)

func TestCommands(t *testing.T) {
	t.Parallel()

	store := newStoreConnector("bucket")

	run := func(stdin string, args ...string) (string, error) {
		var out, errOut bytes.Buffer

		root := NewRootCommand(strings.NewReader(stdin), &out, &errOut, store.connect)
		root.SetArgs(append(args, "--access-key", "access", "--secret-key", "secret", "--log-level", "error"))

		err := root.ExecuteContext(t.Context())
		return out.String(), err
	}

	if _, err := run("", "create", "bucket", "a", "first"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := run("from stdin", "create", "bucket", "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := run("", "create", "bucket", "a", "again"); !errors.Is(err, s3keys.ErrAlreadyExists) {
		t.Fatalf("expected %v, got %v", s3keys.ErrAlreadyExists, err)
	}

	if _, err := run("", "update", "bucket", "missing", "x"); !errors.Is(err, s3keys.ErrNotFound) {
		t.Fatalf("expected %v, got %v", s3keys.ErrNotFound, err)
	}

	if _, err := run("", "update", "bucket", "a", "second"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := run("", "get", "bucket", "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if e, a := "second", out; e != a {
		t.Errorf("expected %q, got %q", e, a)
	}

	out, err = run("", "get", "bucket", "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if e, a := "from stdin", out; e != a {
		t.Errorf("expected %q, got %q", e, a)
	}

	out, err = run("", "list", "bucket")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	keys := strings.Fields(out)
	slices.Sort(keys)
	if e, a := []string{"a", "b"}, keys; !slices.Equal(e, a) {
		t.Errorf("expected %v, got %v", e, a)
	}

	if _, err := run("", "delete", "bucket", "a", "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if e, a := [][]string{{"a", "b"}}, store.deletes; !reflect.DeepEqual(e, a) {
		t.Errorf("expected delete batches %v, got %v", e, a)
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	t.Parallel()

	var got config.Config
	connect := func(cfg config.Config, _ *slog.Logger) s3keys.Connector {
		got = cfg
		return newStoreConnector("bucket")
	}

	root := NewRootCommand(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{}, connect)
	root.SetArgs([]string{
		"list", "bucket",
		"--region", "eu-north-1",
		"--endpoint", "http://localhost:9000",
		"--access-key", "access",
		"--secret-key", "secret",
		"--path-style",
		"--create-bucket",
		"--log-level", "warn",
	})

	if err := root.ExecuteContext(t.Context()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Region != "eu-north-1" || got.Endpoint != "http://localhost:9000" {
		t.Errorf("expected region and endpoint from flags, got %+v", got)
	}

	if got.AccessKey != "access" || got.SecretKey != "secret" {
		t.Errorf("expected credentials from flags, got %+v", got)
	}

	if !got.PathStyle || !got.CreateBucket || got.LogLevel != slog.LevelWarn {
		t.Errorf("expected boolean flags and level to be set, got %+v", got)
	}
}

func TestMissingSecretWithoutTerminal(t *testing.T) {
	t.Parallel()

	root := NewRootCommand(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{}, newStoreConnector().connect)
	root.SetArgs([]string{"list", "bucket", "--access-key", "access", "--secret-key", ""})

	if err := root.ExecuteContext(t.Context()); !errors.Is(err, s3keys.ErrConfiguration) {
		t.Errorf("expected %v, got %v", s3keys.ErrConfiguration, err)
	}
}

// storeConnector keeps the entries of its buckets in memory.
type storeConnector struct {
	mux     sync.Mutex
	buckets map[string]map[string][]byte
	deletes [][]string
}

func newStoreConnector(buckets ...string) *storeConnector {
	s := &storeConnector{buckets: map[string]map[string][]byte{}}
	for _, b := range buckets {
		s.buckets[b] = map[string][]byte{}
	}

	return s
}

func (s *storeConnector) connect(config.Config, *slog.Logger) s3keys.Connector {
	return s
}

func (s *storeConnector) Connect(context.Context, string) (s3keys.Connection, error) {
	return s, nil
}

func (s *storeConnector) Bucket(_ context.Context, name string) (s3keys.Bucket, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	if _, ok := s.buckets[name]; !ok {
		return nil, s3keys.ErrNotFound
	}

	return &storeBucket{store: s, name: name}, nil
}

type storeBucket struct {
	store *storeConnector
	name  string
}

func (b *storeBucket) Name() string { return b.name }

func (b *storeBucket) List(_ context.Context, prefix string) ([]string, error) {
	b.store.mux.Lock()
	defer b.store.mux.Unlock()

	var keys []string
	for key := range b.store.buckets[b.name] {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	return keys, nil
}

func (b *storeBucket) Entry(key string) s3keys.Entry {
	return &storeEntry{bucket: b, key: key}
}

func (b *storeBucket) GetEntry(ctx context.Context, key string) (s3keys.Entry, error) {
	entry := b.Entry(key)

	exists, _ := entry.Exists(ctx)
	if !exists {
		return nil, s3keys.ErrNotFound
	}

	return entry, nil
}

func (b *storeBucket) Delete(_ context.Context, keys ...string) error {
	b.store.mux.Lock()
	defer b.store.mux.Unlock()

	b.store.deletes = append(b.store.deletes, keys)
	for _, key := range keys {
		delete(b.store.buckets[b.name], key)
	}

	return nil
}

type storeEntry struct {
	bucket *storeBucket
	key    string
}

func (e *storeEntry) Key() string { return e.key }

func (e *storeEntry) Exists(context.Context) (bool, error) {
	e.bucket.store.mux.Lock()
	defer e.bucket.store.mux.Unlock()

	_, ok := e.bucket.store.buckets[e.bucket.name][e.key]
	return ok, nil
}

func (e *storeEntry) SetContent(_ context.Context, content []byte) error {
	e.bucket.store.mux.Lock()
	defer e.bucket.store.mux.Unlock()

	e.bucket.store.buckets[e.bucket.name][e.key] = bytes.Clone(content)
	return nil
}

func (e *storeEntry) Content(context.Context) ([]byte, error) {
	e.bucket.store.mux.Lock()
	defer e.bucket.store.mux.Unlock()

	content, ok := e.bucket.store.buckets[e.bucket.name][e.key]
	if !ok {
		return nil, s3keys.ErrNotFound
	}

	return bytes.Clone(content), nil
}
