package s3keys

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the part of the s3 client the connector uses. *s3.Client implements it.
type S3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)

	ObjectReaderAPI
	ObjectWriterAPI
}

var _ S3API = (*s3.Client)(nil)

// S3Connector is the Connector for S3 and S3 compatible services.
type S3Connector struct {
	cli              S3API
	createIfNotExist bool
	retries          int
	chunkSize        int
	logger           *slog.Logger

	// client options
	cliOpts []func(*config.LoadOptions) error
	s3Opts  []func(*s3.Options)
}

var _ Connector = (*S3Connector)(nil)

// ConnectorOption configures an S3Connector.
type ConnectorOption func(*S3Connector)

// ConnectorOptions bundles connector options
func ConnectorOptions(opts ...ConnectorOption) ConnectorOption {
	return func(c *S3Connector) {
		for _, op := range opts {
			op(c)
		}
	}
}

// NewS3Connector returns a connector configured with the given options.
func NewS3Connector(opts ...ConnectorOption) *S3Connector {
	c := &S3Connector{
		chunkSize: DefaultChunkSize,
		logger:    slog.New(slog.DiscardHandler),
	}

	ConnectorOptions(opts...)(c)

	return c
}

// Connect returns a connection to the given region.
//
// The aws config is loaded from the environment and the given loader options
// unless a client was provided with WithClient.
func (c *S3Connector) Connect(ctx context.Context, region string) (Connection, error) {
	cli := c.cli
	if cli == nil {
		if region == "" {
			return nil, fmt.Errorf("%w: region is required", ErrConfiguration)
		}

		cfg, err := config.LoadDefaultConfig(ctx, append(slices.Clone(c.cliOpts), config.WithRegion(region))...)
		if err != nil {
			return nil, fmt.Errorf("loading aws config: %w", err)
		}

		s3Opts := slices.Clone(c.s3Opts)
		if c.retries > 0 {
			s3Opts = append(s3Opts, withS3Retries(c.retries))
		}

		cli = s3.NewFromConfig(cfg, s3Opts...)
	}

	c.logger.DebugContext(ctx, "connected", slog.String("region", region))

	return &s3Connection{
		cli:              cli,
		region:           region,
		createIfNotExist: c.createIfNotExist,
		chunkSize:        c.chunkSize,
		logger:           c.logger,
	}, nil
}

type s3Connection struct {
	cli              S3API
	region           string
	createIfNotExist bool
	chunkSize        int
	logger           *slog.Logger
}

// Bucket validates that the bucket exists, creating it if the connector was
// configured to, and returns a handle to it.
func (c *s3Connection) Bucket(ctx context.Context, name string) (Bucket, error) {
	exists, err := bucketExists(ctx, c.cli, name)
	if err != nil {
		return nil, fmt.Errorf("checking bucket '%s': %w", name, err)
	}

	if !exists {
		if !c.createIfNotExist {
			return nil, fmt.Errorf("%w: bucket '%s'", ErrNotFound, name)
		}

		input := &s3.CreateBucketInput{
			Bucket: &name,
		}

		if c.region != "" && c.region != DefaultRegion {
			input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
				LocationConstraint: types.BucketLocationConstraint(c.region),
			}
		}

		if _, err := c.cli.CreateBucket(ctx, input); err != nil {
			return nil, fmt.Errorf("creating missing bucket '%s': %w", name, err)
		}

		c.logger.DebugContext(ctx, "created bucket", slog.String("bucket", name))
	}

	return &s3Bucket{
		name:      name,
		cli:       c.cli,
		chunkSize: c.chunkSize,
		logger:    c.logger,
	}, nil
}

func bucketExists(ctx context.Context, cli S3API, name string) (bool, error) {
	_, err := cli.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: &name,
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func withS3Retries(n int) func(*s3.Options) {
	return func(o *s3.Options) {
		o.RetryMaxAttempts = n
	}
}

// WithClient directly sets the s3 client for the connector.
func WithClient(cli S3API) ConnectorOption {
	return func(c *S3Connector) {
		c.cli = cli
	}
}

// WithConfigLoaderOptions sets the config.LoaderOptions for the aws config.
// Only works if the client is not already provided.
func WithConfigLoaderOptions(opts ...func(*config.LoadOptions) error) ConnectorOption {
	return func(c *S3Connector) {
		c.cliOpts = append(c.cliOpts, opts...)
	}
}

// WithS3Options sets the s3 options for the s3 client.
// Only works if the client is not already provided.
func WithS3Options(opts ...func(*s3.Options)) ConnectorOption {
	return func(c *S3Connector) {
		c.s3Opts = append(c.s3Opts, opts...)
	}
}

// WithHost sets the endpoint and whether the client uses path style addressing.
// Only works if the client is not already provided.
func WithHost(url string, usePathStyle bool) ConnectorOption {
	return func(c *S3Connector) {
		c.cliOpts = append(c.cliOpts, config.WithBaseEndpoint(url))

		c.s3Opts = append(c.s3Opts, func(o *s3.Options) {
			o.UsePathStyle = usePathStyle
		})
	}
}

// WithCredentials sets static credentials for the client. The session token
// may be empty.
// Only works if the client is not already provided.
func WithCredentials(accessKey, secretKey, sessionToken string) ConnectorOption {
	return func(c *S3Connector) {
		c.cliOpts = append(c.cliOpts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, sessionToken)),
		)
	}
}

// WithCreateIfNotExists will create buckets that don't exist yet.
func WithCreateIfNotExists() ConnectorOption {
	return func(c *S3Connector) {
		c.createIfNotExist = true
	}
}

// WithChunkSize sets the part size for writing and reading entry content.
// Values below MinChunkSize are raised to it.
func WithChunkSize(size int) ConnectorOption {
	return func(c *S3Connector) {
		if size < MinChunkSize {
			size = MinChunkSize
		}

		c.chunkSize = size
	}
}

// WithRetries sets the maximum attempts of the sdk's retryer.
// Only works if the client is not already provided.
func WithRetries(i int) ConnectorOption {
	return func(c *S3Connector) {
		if i < 1 {
			i = 1
		}

		c.retries = i
	}
}

// WithConnectorLogger sets the logger for sdk level operations.
// Setting the logger provides debug logs.
func WithConnectorLogger(logger *slog.Logger) ConnectorOption {
	return func(c *S3Connector) {
		if logger == nil {
			logger = slog.New(slog.DiscardHandler)
		}

		c.logger = logger
	}
}
