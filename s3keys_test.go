package s3keys_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/jobstoit/s3keys"
)

var (
	buf12MB    = make([]byte, 1024*1024*12)
	buf2MB     = make([]byte, 1024*1024*2)
	noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// TestIntegration runs the manager against a real S3 compatible endpoint.
// It is skipped unless AWS_S3_ENDPOINT is set.
func TestIntegration(t *testing.T) {
	endpoint := os.Getenv("AWS_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("AWS_S3_ENDPOINT not set; skipping integration test")
	}

	ctx := t.Context()

	manager, bucketName, err := getTestManager(endpoint)
	if err != nil {
		t.Fatalf("unable to get test manager: %v", err)
	}

	prefix := fmt.Sprintf("s3keys-test-%d/", time.Now().UnixNano())
	small := prefix + "small.txt"
	large := prefix + "large.bin"

	t.Cleanup(func() {
		_ = manager.DeleteEntries(context.Background(), bucketName, []string{small, large})
	})

	success := t.Run("create", func(t *testing.T) {
		if _, err := manager.CreateEntry(ctx, bucketName, small, []byte("v1")); err != nil {
			t.Fatalf("error creating entry: %v", err)
		}

		if _, err := manager.CreateEntry(ctx, bucketName, small, []byte("v2")); !errors.Is(err, s3keys.ErrAlreadyExists) {
			t.Fatalf("expected %v, got %v", s3keys.ErrAlreadyExists, err)
		}
	})

	if !success {
		t.FailNow()
	}

	t.Run("update", func(t *testing.T) {
		if _, err := manager.UpdateEntry(ctx, bucketName, small, []byte("v3")); err != nil {
			t.Fatalf("error updating entry: %v", err)
		}

		content, err := manager.ReadEntry(ctx, bucketName, small)
		if err != nil {
			t.Fatalf("error reading entry: %v", err)
		}

		if e, a := "v3", string(content); e != a {
			t.Errorf("expected %q, got %q", e, a)
		}

		if _, err := manager.UpdateEntry(ctx, bucketName, prefix+"missing", []byte("v")); !errors.Is(err, s3keys.ErrNotFound) {
			t.Errorf("expected %v, got %v", s3keys.ErrNotFound, err)
		}
	})

	t.Run("large entry", func(t *testing.T) {
		data := make([]byte, 1024*1024*12+291)
		if _, err := io.ReadFull(rand.Reader, data); err != nil {
			t.Fatalf("error generating data: %v", err)
		}

		if _, err := manager.CreateEntry(ctx, bucketName, large, data); err != nil {
			t.Fatalf("error creating entry: %v", err)
		}

		content, err := manager.ReadEntry(ctx, bucketName, large)
		if err != nil {
			t.Fatalf("error reading entry: %v", err)
		}

		if !bytes.Equal(data, content) {
			t.Errorf("read and write are not equal, wrote %d bytes, read %d", len(data), len(content))
		}
	})

	t.Run("list and delete", func(t *testing.T) {
		keys, err := manager.ListEntries(ctx, bucketName, prefix)
		if err != nil {
			t.Fatalf("error listing entries: %v", err)
		}

		slices.Sort(keys)
		if e, a := []string{large, small}, keys; !slices.Equal(e, a) {
			t.Errorf("expected %v, got %v", e, a)
		}

		if err := manager.DeleteEntries(ctx, bucketName, keys); err != nil {
			t.Fatalf("error deleting entries: %v", err)
		}

		keys, err = manager.ListEntries(ctx, bucketName, prefix)
		if err != nil {
			t.Fatalf("error listing entries: %v", err)
		}

		if len(keys) != 0 {
			t.Errorf("expected no keys after delete, got %v", keys)
		}
	})
}

func getTestManager(endpoint string) (*s3keys.Manager, string, error) {
	region := envOrDefault("AWS_REGION", "local")
	bucketName := envOrDefault("AWS_BUCKET_NAME", "s3keys-testing")
	accessKey := envOrDefault("AWS_ACCESS_KEY_ID", "access_key")
	secretKey := envOrDefault("AWS_SECRET_ACCESS_KEY", "secret_key")

	logger := noopLogger
	if withDebug := os.Getenv("DEBUG_LOG"); withDebug != "" {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			AddSource: true,
			Level:     slog.LevelDebug,
		}))
	}

	connector := s3keys.NewS3Connector(
		s3keys.WithHost(endpoint, true),
		s3keys.WithCredentials(accessKey, secretKey, ""),
		s3keys.WithRetries(3),
		s3keys.WithCreateIfNotExists(),
		s3keys.WithConnectorLogger(logger),
	)

	manager, err := s3keys.New(connector,
		s3keys.WithRegion(region),
		s3keys.WithLogger(logger),
	)

	return manager, bucketName, err
}

func envOrDefault(varname, defaultVal string) string {
	if val := os.Getenv(varname); val != "" {
		defaultVal = val
	}

	return defaultVal
}
