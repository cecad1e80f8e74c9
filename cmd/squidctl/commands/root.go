// Package commands implements the squidctl command tree.
package commands

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/AsemElenawy/simtool-Nanohub/internal/client"
	"github.com/AsemElenawy/simtool-Nanohub/internal/config"
	"github.com/AsemElenawy/simtool-Nanohub/internal/logging"
	"github.com/AsemElenawy/simtool-Nanohub/internal/version"
)

// CacheClient is the subset of the transfer client used by the commands.
type CacheClient interface {
	GetIdentifier(ctx context.Context, toolName, toolRevision string, inputs any) (string, error)
	CheckExists(ctx context.Context, id string) (bool, error)
	ListFiles(ctx context.Context, id string) ([]client.RemoteFile, error)
	StoreResult(ctx context.Context, id, sourceRoot string, paths []string) (*client.UploadResult, error)
	GetArchivedResult(ctx context.Context, id, destRoot string) (bool, error)
	Run(ctx context.Context, toolName, toolRevision string, inputs any) (*client.RunResult, error)
	Health(ctx context.Context) (string, error)
}

// Factory builds a client from flag overrides; environment values fill the rest.
type Factory func(overrides config.ClientOverrides, logger *logrus.Logger) (CacheClient, error)

// CLI represents the squidctl command line interface.
type CLI struct {
	factory Factory
	rootCmd *cobra.Command

	serverURL string
	token     string
	retries    int
	retryDelay time.Duration
	timeout    time.Duration
	logLevel  string
}

// New creates the command tree. Commands build their client lazily so that
// `version` and `id --local` work without a reachable server.
func New(factory Factory) *CLI {
	rootCmd := &cobra.Command{
		Use:           "squidctl",
		Short:         "Query and populate the simtool result cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Version,
	}
	rootCmd.SetVersionTemplate("{{.Name}} version {{.Version}}\n")

	c := &CLI{factory: factory, rootCmd: rootCmd}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.serverURL, "server", "", "cache server URL (default $SIM2L_CACHE_SERVER_URL or "+config.DefaultServerURL+")")
	flags.StringVar(&c.token, "token", "", "bearer token (default $SIM2L_CACHE_AUTH_TOKEN)")
	flags.IntVar(&c.retries, "retries", 0, "retries after the first attempt, 0 disables retrying (default $SIM2L_CACHE_MAX_RETRIES or 3)")
	flags.DurationVar(&c.retryDelay, "retry-delay", 0, "wait between attempts (default $SIM2L_CACHE_RETRY_DELAY or 1s)")
	flags.DurationVar(&c.timeout, "timeout", 0, "per-request timeout (default $SIM2L_CACHE_TIMEOUT or 30s)")
	flags.StringVar(&c.logLevel, "log-level", "warning", "log level for progress messages")

	rootCmd.AddCommand(
		c.newIDCmd(),
		c.newExistsCmd(),
		c.newListCmd(),
		c.newStoreCmd(),
		c.newFetchCmd(),
		c.newRunCmd(),
		c.newHealthCmd(),
		c.newVersionCmd(),
	)
	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

func (c *CLI) client(cmd *cobra.Command) (CacheClient, error) {
	logger, err := logging.NewCLILogger(c.logLevel, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	return c.factory(c.overrides(cmd), logger)
}

// overrides 只收集用户实际给出的 flag，未给出的字段交给环境变量。
func (c *CLI) overrides(cmd *cobra.Command) config.ClientOverrides {
	var o config.ClientOverrides
	if flagChanged(cmd, "server") {
		o.ServerURL = &c.serverURL
	}
	if flagChanged(cmd, "token") {
		o.AuthToken = &c.token
	}
	if flagChanged(cmd, "retries") {
		o.MaxRetries = &c.retries
	}
	if flagChanged(cmd, "retry-delay") {
		delay := config.Duration(c.retryDelay)
		o.RetryDelay = &delay
	}
	if flagChanged(cmd, "timeout") {
		timeout := config.Duration(c.timeout)
		o.Timeout = &timeout
	}
	return o
}

func flagChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flag(name)
	return f != nil && f.Changed
}
