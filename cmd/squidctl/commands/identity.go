package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AsemElenawy/simtool-Nanohub/internal/squid"
)

// errNotCached 表示条目在服务端不存在或为空。
var errNotCached = errors.New("entry not cached")

func (c *CLI) newIDCmd() *cobra.Command {
	var (
		inputsPath    string
		local         bool
		showCanonical bool
	)
	cmd := &cobra.Command{
		Use:   "id TOOL REVISION",
		Short: "Compute the cache identifier for a tool run",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := loadInputs(inputsPath)
			if err != nil {
				return err
			}

			if showCanonical {
				text, err := squid.CanonicalJSON(inputs)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), string(text))
			}

			var id string
			if local {
				id, err = squid.Identify(args[0], args[1], inputs)
			} else {
				var cc CacheClient
				if cc, err = c.client(cmd); err != nil {
					return err
				}
				id, err = cc.GetIdentifier(cmd.Context(), args[0], args[1], inputs)
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputsPath, "inputs", "i", "", "YAML or JSON inputs file ('-' for stdin)")
	cmd.Flags().BoolVar(&local, "local", false, "compute the identifier without contacting the server")
	cmd.Flags().BoolVar(&showCanonical, "show-canonical", false, "print the canonical inputs text to stderr")
	return cmd
}

func (c *CLI) newRunCmd() *cobra.Command {
	var inputsPath string
	cmd := &cobra.Command{
		Use:   "run TOOL REVISION",
		Short: "Submit a run request and print its identifier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := loadInputs(inputsPath)
			if err != nil {
				return err
			}
			cc, err := c.client(cmd)
			if err != nil {
				return err
			}
			result, err := cc.Run(cmd.Context(), args[0], args[1], inputs)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), result.SquidID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputsPath, "inputs", "i", "", "YAML or JSON inputs file ('-' for stdin)")
	return cmd
}
