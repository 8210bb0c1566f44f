package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/pario-ai/narrator/pkg/audit"
	"github.com/pario-ai/narrator/pkg/config"
	"github.com/pario-ai/narrator/pkg/gateway"
	"github.com/pario-ai/narrator/pkg/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the narration HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pool, _, cleanup, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			pool.Start(ctx)

			log.Printf("starting narrator with config: %s (endpoints: %v)", configPath, pool.Names())
			return server.New(pool).ListenAndServe(ctx, cfg.Listen)
		},
	}

	configFlag(cmd, &configPath)
	return cmd
}

// openPool builds the endpoint pool with the configured cache store and
// audit journal. The returned cleanup closes the pool before the resources
// it writes to. The audit logger is nil when auditing is disabled.
func openPool(ctx context.Context, cfg *config.Config) (*gateway.Pool, *audit.Logger, func(), error) {
	var opts []gateway.Option
	var closers []func() error

	store, err := gateway.OpenStore(ctx, cfg.Cache.Store)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open cache store: %w", err)
	}
	if store != nil {
		opts = append(opts, gateway.WithStore(store))
		closers = append(closers, store.Close)
	}

	var auditLog *audit.Logger
	if cfg.Audit.Enabled {
		auditLog, err = audit.New(cfg.Audit)
		if err != nil {
			closeAll(closers)
			return nil, nil, nil, fmt.Errorf("init audit: %w", err)
		}
		opts = append(opts, gateway.WithAuditor(auditLog))
		closers = append(closers, auditLog.Close)
	}

	pool, err := gateway.NewPool(cfg, opts...)
	if err != nil {
		closeAll(closers)
		return nil, nil, nil, err
	}

	cleanup := func() {
		if err := pool.Close(); err != nil {
			log.Printf("close pool: %v", err)
		}
		closeAll(closers)
	}
	return pool, auditLog, cleanup, nil
}

func closeAll(closers []func() error) {
	for _, c := range closers {
		if err := c(); err != nil {
			log.Printf("close: %v", err)
		}
	}
}
