package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe every configured endpoint once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, _, cleanup, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			fmt.Printf("%-16s %-10s %s\n", "ENDPOINT", "HEALTH", "PROBE")
			fmt.Println(strings.Repeat("-", 60))
			var down int
			for _, name := range pool.Names() {
				client, _ := pool.Resolve(name)
				st := client.Check(ctx)
				result := "ok"
				if st.LastError != "" {
					result = st.LastError
					down++
				}
				fmt.Printf("%-16s %-10s %s\n", name, st.Status, result)
			}
			if down > 0 {
				return fmt.Errorf("%d endpoint(s) failed the health probe", down)
			}
			return nil
		},
	}

	configFlag(cmd, &configPath)
	return cmd
}
