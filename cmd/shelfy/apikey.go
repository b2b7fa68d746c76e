package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAPIKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apikey",
		Short: "Print the account api key, creating it when missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.ensureSession(ctx); err != nil {
				return fmt.Errorf("failed to start session: %w", err)
			}

			apiKey, err := a.api().GetOrCreateAPIKey(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), apiKey)
			return nil
		},
	}
}
