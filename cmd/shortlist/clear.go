package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newClearCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <pool>",
		Short: "Delete every record of a pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.ingest.Clear(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("clear pool: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Pool %s cleared\n", args[0])
			return nil
		},
	}
}
