package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pario-ai/narrator/pkg/audit"
	"github.com/pario-ai/narrator/pkg/mcp"
	"github.com/pario-ai/narrator/pkg/models"
	"github.com/spf13/cobra"
)

func newAuditCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the response audit journal",
	}

	var (
		endpoint string
		source   string
		session  string
		since    string
		limit    int
	)
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Search audit journal entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := models.AuditQueryOpts{
				Endpoint:  endpoint,
				Source:    models.Source(source),
				SessionID: session,
				Limit:     limit,
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			entries, err := l.Query(context.Background(), opts)
			if err != nil {
				return err
			}
			fmt.Println(mcp.FormatAuditEntries(entries))
			return nil
		},
	}
	searchCmd.Flags().StringVar(&endpoint, "endpoint", "", "filter by endpoint")
	searchCmd.Flags().StringVar(&source, "source", "", "filter by source (live, cached, fallback)")
	searchCmd.Flags().StringVar(&session, "session", "", "filter by session ID")
	searchCmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	searchCmd.Flags().IntVar(&limit, "limit", 50, "max entries to return")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show audit journal counts by source and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := l.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Print(formatAuditStats(stats))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.AddCommand(searchCmd, statsCmd)
	return cmd
}

func openAuditLogger(configPath string) (*audit.Logger, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	l, err := audit.New(cfg.Audit)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit db: %w", err)
	}
	return l, func() { _ = l.Close() }, nil
}

func formatAuditStats(stats []models.AuditStat) string {
	if len(stats) == 0 {
		return "No audit stats found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s %-12s %8s\n", "SOURCE", "DAY", "COUNT")
	b.WriteString(strings.Repeat("-", 32) + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-10s %-12s %8d\n", s.Source, s.Day, s.Count)
	}
	return b.String()
}
