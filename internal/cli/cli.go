// Package cli implements the s3keys command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jobstoit/s3keys"
	"github.com/jobstoit/s3keys/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// ConnectorFunc builds the connector for a loaded configuration.
type ConnectorFunc func(cfg config.Config, logger *slog.Logger) s3keys.Connector

// S3Connector is the ConnectorFunc used by the s3keys binary.
func S3Connector(cfg config.Config, logger *slog.Logger) s3keys.Connector {
	return s3keys.NewS3Connector(cfg.ConnectorOptions(logger)...)
}

// Flags are the persistent flags of the root command. Set flags override
// the environment.
type Flags struct {
	EnvFile      string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	PathStyle    bool
	CreateBucket bool
	LogLevel     string
	File         string
}

type app struct {
	flags   Flags
	out     io.Writer
	errOut  io.Writer
	in      io.Reader
	connect ConnectorFunc
}

// NewRootCommand returns the s3keys root command writing results to out and
// logs to errOut.
func NewRootCommand(in io.Reader, out, errOut io.Writer, connect ConnectorFunc) *cobra.Command {
	a := &app{
		in:      in,
		out:     out,
		errOut:  errOut,
		connect: connect,
	}

	root := &cobra.Command{
		Use:           "s3keys",
		Short:         "Manage keyed entries in S3 buckets.",
		Long:          `Manage keyed entries in S3 buckets. Entries are named blobs which can be listed, created, updated, read and deleted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	// ===========
	// root flags
	// ===========
	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.EnvFile, "env-file", ".env", "Path of the .env file to load")
	pf.StringVarP(&a.flags.Region, "region", "r", "", "Region of the buckets, overrides "+config.EnvRegion)
	pf.StringVar(&a.flags.Endpoint, "endpoint", "", "S3 compatible endpoint, overrides "+config.EnvEndpoint)
	pf.StringVar(&a.flags.AccessKey, "access-key", "", "Access key, overrides "+config.EnvAccessKey)
	pf.StringVar(&a.flags.SecretKey, "secret-key", "", "Secret key, overrides "+config.EnvSecretKey+". Prompted for when missing")
	pf.BoolVar(&a.flags.PathStyle, "path-style", false, "Use path style addressing, overrides "+config.EnvPathStyle)
	pf.BoolVar(&a.flags.CreateBucket, "create-bucket", false, "Create the bucket when it doesn't exist")
	pf.StringVar(&a.flags.LogLevel, "log-level", "", "Log level (debug, info, warn, error), overrides "+config.EnvLogLevel)

	root.AddCommand(
		a.listCommand(),
		a.createCommand(),
		a.updateCommand(),
		a.getCommand(),
		a.deleteCommand(),
	)

	return root
}

func (a *app) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [bucket] [prefix]",
		Short: "List the entries of a bucket.",
		Long:  `List the entries of a bucket. Only keys starting with prefix are listed when it's given.`,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager(cmd)
			if err != nil {
				return err
			}

			var prefix string
			if len(args) > 1 {
				prefix = args[1]
			}

			keys, err := m.ListEntries(cmd.Context(), args[0], prefix)
			if err != nil {
				return err
			}

			for _, key := range keys {
				fmt.Fprintln(a.out, key)
			}

			return nil
		},
	}
}

func (a *app) createCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [bucket] [key] [content]",
		Short: "Create a new entry.",
		Long:  `Create a new entry. Fails if the key is already taken. Content is read from --file or stdin when not given as argument.`,
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager(cmd)
			if err != nil {
				return err
			}

			content, err := a.content(args[2:])
			if err != nil {
				return err
			}

			_, err = m.CreateEntry(cmd.Context(), args[0], args[1], content)
			return err
		},
	}

	cmd.Flags().StringVarP(&a.flags.File, "file", "f", "", "Read the content from this file")

	return cmd
}

func (a *app) updateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [bucket] [key] [content]",
		Short: "Replace the content of an entry.",
		Long:  `Replace the content of an entry. Fails if there is no entry with the key. Content is read from --file or stdin when not given as argument.`,
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager(cmd)
			if err != nil {
				return err
			}

			content, err := a.content(args[2:])
			if err != nil {
				return err
			}

			_, err = m.UpdateEntry(cmd.Context(), args[0], args[1], content)
			return err
		},
	}

	cmd.Flags().StringVarP(&a.flags.File, "file", "f", "", "Read the content from this file")

	return cmd
}

func (a *app) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get [bucket] [key]",
		Short: "Print the content of an entry.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager(cmd)
			if err != nil {
				return err
			}

			content, err := m.ReadEntry(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			_, err = a.out.Write(content)
			return err
		},
	}
}

func (a *app) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [bucket] [key1] [key2] ...",
		Short: "Delete entries.",
		Long:  `Delete entries. All keys are removed in a single batch.`,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager(cmd)
			if err != nil {
				return err
			}

			return m.DeleteEntries(cmd.Context(), args[0], args[1:])
		},
	}
}

// content returns the first argument, the --file contents or stdin.
func (a *app) content(args []string) ([]byte, error) {
	if len(args) > 0 {
		return []byte(args[0]), nil
	}

	if a.flags.File != "" {
		return os.ReadFile(a.flags.File)
	}

	return io.ReadAll(a.in)
}

func (a *app) manager(cmd *cobra.Command) (*s3keys.Manager, error) {
	cfg, err := a.config(cmd)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: cfg.LogLevel}))

	return s3keys.New(a.connect(cfg, logger),
		s3keys.WithRegion(cfg.Region),
		s3keys.WithLogger(logger),
	)
}

func (a *app) config(cmd *cobra.Command) (config.Config, error) {
	envFile := a.flags.EnvFile
	if _, err := os.Stat(envFile); err != nil && !cmd.Flags().Changed("env-file") {
		envFile = ""
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()

	if flags.Changed("region") {
		cfg.Region = a.flags.Region
	}

	if flags.Changed("endpoint") {
		cfg.Endpoint = a.flags.Endpoint
	}

	if flags.Changed("access-key") {
		cfg.AccessKey = a.flags.AccessKey
	}

	if flags.Changed("secret-key") {
		cfg.SecretKey = a.flags.SecretKey
	}

	if flags.Changed("path-style") {
		cfg.PathStyle = a.flags.PathStyle
	}

	if flags.Changed("log-level") {
		if err := cfg.LogLevel.UnmarshalText([]byte(a.flags.LogLevel)); err != nil {
			return cfg, fmt.Errorf("%w: --log-level: %v", s3keys.ErrConfiguration, err)
		}
	}

	cfg.CreateBucket = a.flags.CreateBucket

	if cfg.AccessKey != "" && cfg.SecretKey == "" {
		secret, err := a.promptSecret()
		if err != nil {
			return cfg, err
		}

		cfg.SecretKey = secret
	}

	return cfg, nil
}

// promptSecret asks for the secret key when stdin is a terminal.
func (a *app) promptSecret() (string, error) {
	f, ok := a.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return "", fmt.Errorf("%w: %s is required with an access key", s3keys.ErrConfiguration, config.EnvSecretKey)
	}

	fmt.Fprint(a.errOut, "Secret key: ")

	secret, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(a.errOut) // move to next line after input
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(secret)), nil
}
