package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marketforge/marketforge/internal/config"
	"github.com/marketforge/marketforge/internal/gateway"
	"github.com/marketforge/marketforge/internal/web"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the forge API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := config.Load()
			if addr == "" {
				addr = cfg.Server.Addr
			}

			store, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("failed to open document store: %w", err)
			}
			defer store.Close()

			var fallback gateway.AvatarBackend
			if cfg.Gateway.FallbackModel != "" {
				fallback = gateway.NewImageClient(cfg.Gateway.ImageAPIKey, cfg.Gateway.ImageBaseURL, cfg.Gateway.FallbackModel)
			}

			server := web.NewServer(web.Deps{
				Docs:         store,
				Suggest:      gateway.NewSuggestClient(cfg.Gateway.TextAPIKey, cfg.Gateway.TextBaseURL),
				Primary:      gateway.NewImageClient(cfg.Gateway.ImageAPIKey, cfg.Gateway.ImageBaseURL, cfg.Gateway.ImageModel),
				Fallback:     fallback,
				Writer:       gateway.NewTextClient(cfg.Gateway.TextAPIKey, cfg.Gateway.TextBaseURL),
				StageTimeout: 15 * time.Second,
			})

			fmt.Printf("Starting forge API server on %s\n", addr)
			return server.Run(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "server address (overrides config)")

	return cmd
}
