package main

import (
	"context"
	"encoding/json"
	"fmt"

	"shelfy/internal/vitesy"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// Maintenance items that can be reset
const (
	itemFilter = "filter"
	itemFridge = "fridge"
)

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "reset <device-id> <filter|fridge>",
		Short:     "Mark a maintenance item as done",
		Long:      `Tell the Vitesy cloud that the filter or the fridge of a device was washed.`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{itemFilter, itemFridge},
		RunE: func(cmd *cobra.Command, args []string) error {
			deviceID, item := args[0], args[1]
			ctx := cmd.Context()

			reset, err := resetFunc(item)
			if err != nil {
				return err
			}

			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.ensureSession(ctx); err != nil {
				return fmt.Errorf("failed to start session: %w", err)
			}

			result, err := reset(a.api(), ctx, deviceID)
			if err != nil {
				return fmt.Errorf("failed to reset %s: %w", item, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s reset for %s\n", text.FgGreen.Sprint("✓"), item, deviceID)
			if body := formatResetResult(result); body != "" {
				fmt.Fprintln(cmd.OutOrStdout(), body)
			}
			return nil
		},
	}
}

type resetCall func(api vitesy.API, ctx context.Context, deviceID string) (*vitesy.ResetResult, error)

func resetFunc(item string) (resetCall, error) {
	switch item {
	case itemFilter:
		return vitesy.API.ResetFilter, nil
	case itemFridge:
		return vitesy.API.ResetFridge, nil
	default:
		return nil, fmt.Errorf("unknown maintenance item %q: use %s or %s", item, itemFilter, itemFridge)
	}
}

func formatResetResult(result *vitesy.ResetResult) string {
	if result == nil {
		return ""
	}
	if result.Data != nil {
		data, err := json.MarshalIndent(result.Data, "", "  ")
		if err == nil {
			return string(data)
		}
	}
	return result.Text
}
