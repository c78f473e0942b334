package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/jobstoit/s3keys/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := cli.NewRootCommand(os.Stdin, os.Stdout, os.Stderr, cli.S3Connector)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
