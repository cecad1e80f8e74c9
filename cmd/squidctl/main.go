// Command squidctl is a command line client for the simtool result cache.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/AsemElenawy/simtool-Nanohub/cmd/squidctl/commands"
	"github.com/AsemElenawy/simtool-Nanohub/internal/client"
	"github.com/AsemElenawy/simtool-Nanohub/internal/config"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, newClient))
}

// newClient 以环境变量为基础，叠加命令行覆盖项。
func newClient(overrides config.ClientOverrides, logger *logrus.Logger) (commands.CacheClient, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	return client.New(cfg.Merge(overrides), client.WithLogger(logger))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, factory commands.Factory) int {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cli := commands.New(factory)
	cli.SetArgs(args)
	cli.SetOutput(stdout, stderr)

	if err := cli.Execute(ctx); err != nil {
		_, _ = fmt.Fprintln(stderr, "Error: "+err.Error())
		if errors.Is(err, context.Canceled) {
			return 130
		}
		return 1
	}
	return 0
}
