package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/pario-ai/narrator/pkg/config"
	"github.com/spf13/cobra"
)

var version = "dev"

const defaultConfigPath = "narrator.yaml"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("warning: .env: %v", err)
	}

	root := &cobra.Command{
		Use:          "narrator",
		Short:        "Narrator: resilient AI narration gateway for games",
		Version:      version,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newMCPCmd(),
		newAskCmd(),
		newCheckCmd(),
		newConfigCmd(),
		newCacheCmd(),
		newAuditCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func configFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", defaultConfigPath, "path to config file")
}
