package cli

import (
	"context"
	"errors"
	"fmt"

	"splitsmart/internal/backend"
	"splitsmart/internal/config"
	"splitsmart/internal/log"
	"splitsmart/internal/services"
	"splitsmart/internal/sheets"
	"splitsmart/internal/sheets/google"
	"splitsmart/internal/storage"
)

// Infrastructure is the storage, plan cache and event publisher shared by
// the binaries. Publisher is nil when no broker is configured.
type Infrastructure struct {
	Store     storage.Store
	Plans     *backend.PlanCacheResult
	Publisher backend.Publisher

	cleanups []backend.CleanupFunc
}

// OpenInfrastructure creates every backend component named by cfg. With
// requirePublisher unset a broker that cannot be reached is logged and skipped.
func OpenInfrastructure(ctx context.Context, cfg *config.Config, logger *log.Logger, requirePublisher bool) (*Infrastructure, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	factory := backend.NewFactory(logger)
	infra := &Infrastructure{}

	store, err := factory.CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}
	infra.Store = store.Store
	infra.cleanups = append(infra.cleanups, store.Cleanup)

	plans, err := factory.CreatePlanCache(ctx, bcfg)
	if err != nil {
		infra.Close()
		return nil, err
	}
	infra.Plans = plans
	infra.cleanups = append(infra.cleanups, plans.Cleanup)

	pub, err := factory.CreatePublisher(bcfg)
	switch {
	case err != nil && requirePublisher:
		infra.Close()
		return nil, err
	case err != nil:
		logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
	case pub != nil:
		infra.Publisher = pub
		infra.cleanups = append(infra.cleanups, pub.Close)
	}
	return infra, nil
}

// EventPublisher returns the publisher as a services.EventPublisher, or a
// nil interface when events are disabled.
func (i *Infrastructure) EventPublisher() services.EventPublisher {
	if i.Publisher == nil {
		return nil
	}
	return i.Publisher
}

// Close releases components in reverse creation order.
func (i *Infrastructure) Close() error {
	var errs []error
	for j := len(i.cleanups) - 1; j >= 0; j-- {
		if err := i.cleanups[j](); err != nil {
			errs = append(errs, err)
		}
	}
	i.cleanups = nil
	return errors.Join(errs...)
}

// NewExporter returns the Google Sheets exporter when a spreadsheet is
// configured and a nil exporter otherwise.
func NewExporter(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.PlanExporter, error) {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
		return nil, nil
	}
	client, err := google.New(ctx, google.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize Google Sheets client: %w", err)
	}
	logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	return client, nil
}
