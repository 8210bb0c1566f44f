package main

import (
	"fmt"
	"os"

	"github.com/pario-ai/narrator/pkg/config"
	"github.com/pario-ai/narrator/pkg/executor"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration and worst-case latency",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			out := redact(cfg)
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			if err := enc.Encode(out); err != nil {
				return err
			}
			if err := enc.Close(); err != nil {
				return err
			}

			p := executor.PolicyFromConfig(cfg.Request)
			fmt.Printf("\n# retry delays: %v\n", p.Delays())
			fmt.Printf("# worst-case latency per request: %s\n", p.WorstCaseLatency())
			return nil
		},
	}

	configFlag(cmd, &configPath)
	return cmd
}

// redact returns a copy of cfg with credentials masked.
func redact(cfg *config.Config) config.Config {
	out := *cfg
	out.Endpoints = make([]config.EndpointConfig, len(cfg.Endpoints))
	for i, e := range cfg.Endpoints {
		if e.APIKey != "" {
			e.APIKey = "***"
		}
		out.Endpoints[i] = e
	}
	if out.Cache.Store.RedisPassword != "" {
		out.Cache.Store.RedisPassword = "***"
	}
	return out
}
