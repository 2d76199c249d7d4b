// Package cli holds the dogao command tree: the HTTP server and the operator
// maintenance commands that share its configuration.
package cli

import (
	"context"
	"fmt"

	"dogao/order-service/internal/catalog"
	"dogao/order-service/internal/config"
	"dogao/order-service/internal/notify"
	"dogao/order-service/internal/service"
	"dogao/order-service/internal/store"
	"dogao/order-service/internal/store/postgres"
	"dogao/order-service/internal/store/sqlite"

	"github.com/spf13/cobra"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

type RootOptions struct {
	EnvFile string
	cfg     config.Config
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "dogao",
		Short:         "Dogão order service",
		Long:          "Voucher, ticket and order management for the church hot dog fundraiser.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(opts.EnvFile); err != nil {
				return fmt.Errorf("load env file: %w", err)
			}
			opts.cfg = config.Load()
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "optional KEY=VALUE file loaded before the environment is read")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewEditionsCommand(opts))
	cmd.AddCommand(NewTicketsCommand(opts))
	cmd.AddCommand(NewJobsCommand(opts))
	cmd.AddCommand(NewHashPasswordCommand())

	return cmd
}

// openStore connects the configured backend. Postgres schemas are migrated
// on connect; the SQLite backend applies its schema when opened.
func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DB_DSN is required for the postgres store")
		}
		st, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return st, nil
	case config.DriverSQLite:
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

func loadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogPath == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(cfg.CatalogPath)
}

func newNotifier(cfg config.Config) notify.Notifier {
	provider := notify.New(notify.Config{
		Provider: cfg.NotifyProvider,
		Evolution: notify.EvolutionConfig{
			BaseURL:  cfg.EvolutionBaseURL,
			Token:    cfg.EvolutionToken,
			Instance: cfg.EvolutionInstance,
			Timeout:  cfg.NotifyTimeout,
		},
	})
	return notify.Traced(provider, cfg.NotifyTimeout)
}

// newService builds the domain service over st. events may be nil.
func newService(cfg config.Config, st store.Store, events service.OrderEvents) (*service.Service, error) {
	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return service.New(st, service.Options{
		Notifier:          newNotifier(cfg),
		Catalog:           cat,
		Events:            events,
		LowStockThreshold: cfg.LowStockThreshold,
		ReminderLead:      cfg.ReminderLead,
		Location:          cfg.Location(),
	}), nil
}
