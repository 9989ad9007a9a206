package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func vendorsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "vendors",
		Short: "List configured vendors",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ids := make([]string, 0, len(cfg.Vendors))
			for id := range cfg.Vendors {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			for _, id := range ids {
				vc := cfg.Vendors[id]
				state := "disabled"
				if vc.Enabled {
					state = "enabled"
				}
				fmt.Printf("%-10s %-12s %-9s %s\n", id, vc.Name, state, vc.BaseURL)
			}
			return nil
		},
	}
}
