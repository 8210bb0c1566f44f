package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pario-ai/narrator/pkg/models"
	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var (
		configPath  string
		contextPath string
		endpoint    string
		session     string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "ask [input...]",
		Short: "Send one player input through the gateway and print the narration",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			var raw models.RawContext
			if contextPath != "" {
				data, err := os.ReadFile(contextPath)
				if err != nil {
					return fmt.Errorf("read context: %w", err)
				}
				if err := json.Unmarshal(data, &raw); err != nil {
					return fmt.Errorf("parse context: %w", err)
				}
			}
			if session == "" {
				session = raw.SessionID
			}

			ctx := context.Background()
			pool, _, cleanup, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			client, err := pool.Resolve(endpoint)
			if err != nil {
				return err
			}
			env := client.Respond(ctx, raw, strings.Join(args, " "), session)

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(env)
			}
			fmt.Println(env.Text)
			fmt.Fprintf(os.Stderr, "source=%s", env.Source)
			if env.Reason != "" {
				fmt.Fprintf(os.Stderr, " reason=%s", env.Reason)
			}
			fmt.Fprintf(os.Stderr, " attempts=%d latency=%dms\n", env.Attempts, env.LatencyMs())
			return nil
		},
	}

	configFlag(cmd, &configPath)
	cmd.Flags().StringVar(&contextPath, "context", "", "path to a game context JSON file")
	cmd.Flags().StringVarP(&endpoint, "endpoint", "e", "", "endpoint name (default: first configured)")
	cmd.Flags().StringVar(&session, "session", "", "session ID")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full envelope as JSON")
	return cmd
}
