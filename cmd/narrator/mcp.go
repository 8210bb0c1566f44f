package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pario-ai/narrator/pkg/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start Narrator as an MCP server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pool, auditLog, cleanup, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			pool.Start(ctx)

			var searcher mcp.AuditSearcher
			if auditLog != nil {
				searcher = auditLog
			}
			return mcp.New(pool, searcher, version).Run(ctx, os.Stdin, os.Stdout)
		},
	}

	configFlag(cmd, &configPath)
	return cmd
}
