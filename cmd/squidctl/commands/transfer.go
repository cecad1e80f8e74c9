package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newStoreCmd() *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "store SQUID_ID PATH...",
		Short: "Upload result files (directories are walked recursively)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := c.client(cmd)
			if err != nil {
				return err
			}
			result, err := cc.StoreResult(cmd.Context(), args[0], root, args[1:])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "stored %d files under %s\n", result.Count, args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&root, "root", "C", ".", "directory the stored paths are relative to")
	return cmd
}

func (c *CLI) newFetchCmd() *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "fetch SQUID_ID",
		Short: "Download every file of an entry, restoring nested paths",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := c.client(cmd)
			if err != nil {
				return err
			}
			ok, err := cc.GetArchivedResult(cmd.Context(), args[0], dest)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s: %w", args[0], errNotCached)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "restored %s into %s\n", args[0], dest)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dest, "dest", "d", ".", "destination directory")
	return cmd
}
