package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	cachepkg "github.com/giraffeguru/paperchat/pkg/cache/sqlite"
	"github.com/giraffeguru/paperchat/pkg/chat"
	"github.com/giraffeguru/paperchat/pkg/config"
	"github.com/giraffeguru/paperchat/pkg/extract"
	"github.com/giraffeguru/paperchat/pkg/genai"
	"github.com/giraffeguru/paperchat/pkg/ingest"
	"github.com/giraffeguru/paperchat/pkg/search"
	"github.com/giraffeguru/paperchat/pkg/server"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the paperchat API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			cache, err := cachepkg.New(cfg.CachePath)
			if err != nil {
				return fmt.Errorf("init cache: %w", err)
			}
			defer func() { _ = cache.Close() }()

			var opts []genai.Option
			if cfg.Gemini.BaseURL != "" {
				opts = append(opts, genai.WithBaseURL(cfg.Gemini.BaseURL))
			}
			client := genai.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model, opts...)

			ing := ingest.New(client, nil, cfg.MaxPDFBytes(), cfg.Download.UserAgent)
			srv := server.New(cfg,
				chat.NewService(ing, client),
				ing,
				cache,
				search.New(extract.New(cache, client), client, cfg.Search.APISpecFile),
			)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Printf("starting paperchat with config: %s", configPath)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "paperchat.yaml", "path to config file")
	return cmd
}
