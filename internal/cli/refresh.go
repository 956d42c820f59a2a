package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"splitsmart/internal/log"
	"splitsmart/internal/services"
	"splitsmart/internal/worker"
)

// NewRefreshCommand creates the refresh command.
func NewRefreshCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Recompute every group's settlement plan once",
		Long: `Recompute and cache the settlement plan of every group, exporting each
to Google Sheets when GOOGLE_SPREADSHEET_ID is set. Uses the same
environment as the API and worker.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			LoadEnvFile()
			cfg := LoadAndValidateConfig()
			logger := log.New(log.Config{
				Level:     cfg.SlogLevel(),
				Format:    cfg.LogFormat,
				Component: log.ComponentCLI,
				Output:    cmd.ErrOrStderr(),
			})

			infra, err := OpenInfrastructure(ctx, cfg, logger, false)
			if err != nil {
				return err
			}
			defer infra.Close()

			exporter, err := NewExporter(ctx, cfg, logger)
			if err != nil {
				return err
			}

			settlements := services.NewSettlementService(infra.Store, infra.Plans.Cache, logger)
			w := worker.NewSettlementWorker(infra.Store, settlements, exporter, cfg.WorkerConcurrency, logger)
			if err := w.RefreshAll(ctx); err != nil {
				return err
			}

			ids, err := infra.Store.ListGroupIDs(ctx)
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]int{"groups": len(ids)})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refreshed %d group(s)\n", len(ids))
			return nil
		},
	}
	return cmd
}
