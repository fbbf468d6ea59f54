package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	cachepkg "github.com/giraffeguru/paperchat/pkg/cache/sqlite"
	"github.com/giraffeguru/paperchat/pkg/config"
)

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the extraction cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			c, err := cachepkg.New(cfg.CachePath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stats, err := c.Stats()
			if err != nil {
				return err
			}
			fmt.Printf("Entries: %d\nBytes:   %d\n", stats.Entries, stats.Bytes)
			return nil
		},
	}

	var olderThan time.Duration
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			c, err := cachepkg.New(cfg.CachePath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err := c.Clear(olderThan); err != nil {
				return err
			}
			if olderThan > 0 {
				fmt.Printf("Cache entries older than %s cleared.\n", olderThan)
			} else {
				fmt.Println("All cache entries cleared.")
			}
			return nil
		},
	}
	clearCmd.Flags().DurationVar(&olderThan, "older-than", 0, "only clear entries older than this duration")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "paperchat.yaml", "path to config file")
	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}
