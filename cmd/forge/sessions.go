package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/marketforge/marketforge/internal/config"
	"github.com/marketforge/marketforge/internal/session"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect interview sessions",
	}

	cmd.AddCommand(sessionsListCmd())
	cmd.AddCommand(sessionsShowCmd())
	cmd.AddCommand(sessionsDeleteCmd())

	return cmd
}

func sessionsListCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := config.Load()
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.ListSessions(context.Background(), userID)
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSER\tANSWERED\tCOMPLETED\tCREATED")
			for _, doc := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%d/%d\t%v\t%s\n",
					doc.ID, doc.UserName, answered(doc.Answers), session.QuestionCount,
					doc.Completed, doc.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user ID")
	cmd.MarkFlagRequired("user")

	return cmd
}

func sessionsShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show a session and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := config.Load()
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			doc, err := store.GetSession(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to load session: %w", err)
			}
			artifacts, err := store.ListArtifacts(ctx, doc.ID)
			if err != nil {
				return fmt.Errorf("failed to load artifacts: %w", err)
			}

			if asJSON {
				out, _ := json.MarshalIndent(map[string]any{
					"session":   doc,
					"artifacts": artifacts,
				}, "", "  ")
				fmt.Println(string(out))
				return nil
			}

			fmt.Printf("Session %s (%s)\n", doc.ID, doc.UserName)
			fmt.Printf("  answered:  %d/%d\n", answered(doc.Answers), session.QuestionCount)
			fmt.Printf("  completed: %v\n", doc.Completed)
			if doc.CoreDesire != nil {
				fmt.Printf("  core desire: %s\n", *doc.CoreDesire)
			}
			if doc.SixS != nil {
				fmt.Printf("  six s: %s\n", *doc.SixS)
			}
			fmt.Printf("  artifacts: %d\n", len(artifacts))
			for _, a := range artifacts {
				fmt.Printf("    - %s (%s)\n", a.Kind, a.ID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")

	return cmd
}

func sessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Soft-delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := config.Load()
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			deleted, err := store.SoftDeleteSession(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to delete session: %w", err)
			}
			if !deleted {
				return fmt.Errorf("session not found: %s", args[0])
			}
			fmt.Printf("Deleted session %s\n", args[0])
			return nil
		},
	}
}

func answered(answers []string) int {
	n := 0
	for _, a := range answers {
		if strings.TrimSpace(a) != "" {
			n++
		}
	}
	return n
}
