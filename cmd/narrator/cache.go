package main

import (
	"context"
	"fmt"

	"github.com/pario-ai/narrator/pkg/config"
	"github.com/pario-ai/narrator/pkg/gateway"
	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the persistent response cache store",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			store, err := gateway.OpenStore(ctx, cfg.Cache.Store)
			if err != nil {
				return err
			}
			if store == nil {
				fmt.Println("No persistent cache store configured (memory only).")
				return nil
			}
			defer func() { _ = store.Close() }()

			n, err := store.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Store:    %s\nEntries:  %d\nTTL:      %s\nCapacity: %d (memory tier)\n",
				describeStore(cfg.Cache.Store), n, cfg.Cache.TTL, cfg.Cache.Capacity)
			return nil
		},
	}

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache store entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			store, err := gateway.OpenStore(ctx, cfg.Cache.Store)
			if err != nil {
				return err
			}
			if store == nil {
				fmt.Println("No persistent cache store configured (memory only).")
				return nil
			}
			defer func() { _ = store.Close() }()

			if err := store.Clear(ctx, expiredOnly); err != nil {
				return err
			}
			if expiredOnly {
				fmt.Println("Expired cache entries cleared.")
			} else {
				fmt.Println("All cache entries cleared.")
			}
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only clear expired entries")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}

func describeStore(s config.StoreConfig) string {
	switch s.Type {
	case config.StoreSQLite:
		return "sqlite " + s.DBPath
	case config.StoreRedis:
		return "redis " + s.RedisAddr
	default:
		return s.Type
	}
}
