package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AsemElenawy/simtool-Nanohub/internal/version"
)

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the application version",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "squidctl %s\n", version.Full())
		},
	}
}
