package main

import (
	"fmt"
	"time"

	"shelfy/internal/entities"
	"shelfy/internal/poller"

	"github.com/spf13/cobra"
)

func newDevicesCmd() *cobra.Command {
	var showEntities bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List the devices of the account",
		Long: `Run one poll and list the devices of the account. With --entities
the sensors and buttons of every device are listed with their values.`,
		Args: cobra.NoArgs,
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

			devicePoller := poller.NewPoller(a.api(), 0, a.logger)
			if err := devicePoller.Refresh(ctx); err != nil {
				return fmt.Errorf("failed to fetch devices: %w", err)
			}

			snapshot := devicePoller.Snapshot()
			registry := entities.NewRegistry()
			registry.Sync(snapshot.Devices)

			out := cmd.OutOrStdout()
			renderDevices(out, snapshot.Devices, registry)
			if showEntities {
				renderStates(out, registry, snapshot.Devices, time.Now())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showEntities, "entities", false, "Also list sensors and buttons with their values")
	return cmd
}
