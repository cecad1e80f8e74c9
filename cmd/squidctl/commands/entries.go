package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AsemElenawy/simtool-Nanohub/internal/catalog"
)

func (c *CLI) newExistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists SQUID_ID",
		Short: "Report whether an entry is cached",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := c.client(cmd)
			if err != nil {
				return err
			}
			exists, err := cc.CheckExists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), exists)
			return nil
		},
	}
}

func (c *CLI) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list SQUID_ID",
		Short: "List the files stored under an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := c.client(cmd)
			if err != nil {
				return err
			}
			files, err := cc.ListFiles(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("%s: %w", args[0], errNotCached)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "PATH\tSIZE\tHANDLE")
			for _, file := range files {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", file.Path, catalog.FormatSize(file.Size), file.ID)
			}
			return w.Flush()
		},
	}
}

func (c *CLI) newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the cache server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := c.client(cmd)
			if err != nil {
				return err
			}
			status, err := cc.Health(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}
}
