// Package config reads the command line configuration from the environment
// and an optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gnitoahc/go-dotenv"
	"github.com/jobstoit/s3keys"
)

// Environment variables read by Load.
const (
	EnvRegion       = "AWS_REGION"
	EnvAccessKey    = "AWS_ACCESS_KEY_ID"
	EnvSecretKey    = "AWS_SECRET_ACCESS_KEY"
	EnvSessionToken = "AWS_SESSION_TOKEN"
	EnvEndpoint     = "AWS_S3_ENDPOINT"
	EnvPathStyle    = "AWS_S3_FORCE_PATH_STYLE"
	EnvLogLevel     = "LOG_LEVEL"
)

// Config holds everything needed to build a Manager.
type Config struct {
	Region       string
	AccessKey    string
	SecretKey    string
	SessionToken string
	Endpoint     string
	PathStyle    bool
	CreateBucket bool
	LogLevel     slog.Level
}

// Getter returns the value of key or def when it's not set.
type Getter func(key, def string) string

// Load reads envFile, if given, into the environment and parses the result.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		dotenv.Load(envFile)
	}

	return Parse(func(key, def string) string {
		return dotenv.Get(key, def)
	})
}

// Parse builds a Config from the values returned by get.
func Parse(get Getter) (Config, error) {
	cfg := Config{
		Region:       get(EnvRegion, s3keys.DefaultRegion),
		AccessKey:    get(EnvAccessKey, ""),
		SecretKey:    get(EnvSecretKey, ""),
		SessionToken: get(EnvSessionToken, ""),
		Endpoint:     get(EnvEndpoint, ""),
	}

	pathStyle, err := strconv.ParseBool(get(EnvPathStyle, "false"))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", s3keys.ErrConfiguration, EnvPathStyle, err)
	}

	cfg.PathStyle = pathStyle

	if err := cfg.LogLevel.UnmarshalText([]byte(get(EnvLogLevel, "info"))); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", s3keys.ErrConfiguration, EnvLogLevel, err)
	}

	return cfg, nil
}

// ConnectorOptions returns the S3 connector options described by the config.
func (c Config) ConnectorOptions(logger *slog.Logger) []s3keys.ConnectorOption {
	opts := []s3keys.ConnectorOption{
		s3keys.WithConnectorLogger(logger),
	}

	if c.AccessKey != "" || c.SecretKey != "" {
		opts = append(opts, s3keys.WithCredentials(c.AccessKey, c.SecretKey, c.SessionToken))
	}

	if c.Endpoint != "" {
		opts = append(opts, s3keys.WithHost(c.Endpoint, c.PathStyle))
	}

	if c.CreateBucket {
		opts = append(opts, s3keys.WithCreateIfNotExists())
	}

	return opts
}
