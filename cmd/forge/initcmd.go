package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/marketforge/marketforge/internal/config"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the default global configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.GlobalConfigPath()
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config already exists: %s", path)
			}

			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return err
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Printf("Wrote default configuration to %s\n", path)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and storage status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := config.Load()

			fmt.Println("Forge Status")
			fmt.Println("============")
			fmt.Printf("project:  %s\n", cfg.Project.Name)
			fmt.Printf("storage:  %s\n", cfg.Storage.Backend)
			fmt.Printf("server:   %s\n", cfg.Server.Addr)
			fmt.Printf("snapshot: %s\n", cfg.Autosave.SnapshotPath)

			if cfg.Gateway.ImageAPIKey == "" {
				fmt.Println("image API key: NOT SET (set FORGE_IMAGE_API_KEY)")
			} else {
				fmt.Println("image API key: set")
			}
			if cfg.Gateway.TextAPIKey == "" {
				fmt.Println("text API key:  NOT SET (set FORGE_TEXT_API_KEY)")
			} else {
				fmt.Println("text API key:  set")
			}
			return nil
		},
	}
}
