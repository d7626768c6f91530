package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "forge",
		Short:   "Forge - customer profile and marketing content engine",
		Version: Version,
	}

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(interviewCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
