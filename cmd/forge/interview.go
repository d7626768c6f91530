package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marketforge/marketforge/internal/config"
	"github.com/marketforge/marketforge/internal/gateway"
	"github.com/marketforge/marketforge/internal/lifecycle"
	"github.com/marketforge/marketforge/internal/persist"
	"github.com/marketforge/marketforge/internal/session"
)

// questions is the fixed interview set. Indexes are load-bearing: answer
// slots, snapshots and remote documents all key off them.
var questions = [session.QuestionCount]string{
	"What product or service do you sell?",
	"What is the main result your customers get from it?",
	"Who is your target audience?",
	"What is their biggest frustration right now?",
	"What have they already tried that didn't work?",
	"What does their typical day look like?",
	"What do they secretly wish someone would tell them?",
	"What objection stops them from buying?",
	"What transformation do they want in 90 days?",
	"How do they describe the problem in their own words?",
	"Where do they currently look for advice?",
	"What would make them trust a new offer?",
	"What happens if they change nothing?",
	"Why are you the right person to help them?",
}

func interviewCmd() *cobra.Command {
	var userID, userName string
	var fresh bool

	cmd := &cobra.Command{
		Use:   "interview",
		Short: "Run the customer interview in the terminal",
		Long: "Runs the 14-question interview interactively. Answers autosave to a local\n" +
			"snapshot while you type and sync to the document store in the background,\n" +
			"so an interrupted interview resumes where it left off.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := config.Load()
			ctx := context.Background()

			docs, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("failed to open document store: %w", err)
			}
			defer docs.Close()

			store := session.NewStore()
			local := persist.NewFileStore(cfg.Autosave.SnapshotPath)
			syncer := persist.NewSynchronizer(local, docs,
				persist.WithDebounce(time.Duration(cfg.Autosave.DebounceSeconds)*time.Second),
				persist.WithRemoteTimeout(time.Duration(cfg.Autosave.TimeoutSeconds)*time.Second),
			)
			defer syncer.Close()

			if fresh {
				local.Clear()
			} else if err := restoreSnapshot(store, local, userID); err != nil {
				return err
			}

			// Subscribe after restore so hydration doesn't immediately
			// rewrite the snapshot it came from.
			store.Subscribe(syncer)
			store.SetIdentity(userID, userName)

			ctrl := lifecycle.NewController(store, docs)
			if store.State().ID == "" {
				if err := ctrl.Recover(ctx); err != nil {
					return err
				}
			}

			if err := runInterview(cmd, store); err != nil {
				return err
			}

			if err := ctrl.Complete(ctx); err != nil {
				return err
			}
			syncer.Flush()

			state := store.State()
			fmt.Printf("\nInterview complete. Session %s saved.\n", state.ID)
			fmt.Printf("Run `forge serve` and POST /api/sessions/%s/generate to build avatars and statements.\n", state.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user ID")
	cmd.Flags().StringVarP(&userName, "name", "n", "", "user display name")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "discard any saved snapshot and start over")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("name")

	return cmd
}

// restoreSnapshot resumes a previous interview from the local snapshot, if one
// exists and belongs to the same user.
func restoreSnapshot(store *session.Store, local *persist.FileStore, userID string) error {
	saved, err := local.Load()
	if err != nil {
		return err
	}
	if saved == nil || saved.UserID != userID {
		return nil
	}

	store.Hydrate(&saved.Session)
	if len(saved.Avatars) > 0 {
		store.SetAvatars(saved.Avatars)
	}
	if saved.Statements != nil {
		store.SetStatements(saved.Statements)
	}
	fmt.Printf("Resuming interview at question %d/%d.\n\n", saved.CurrentQuestion+1, session.QuestionCount)
	return nil
}

func runInterview(cmd *cobra.Command, store *session.Store) error {
	reader := bufio.NewReader(cmd.InOrStdin())

	for i := store.State().CurrentQuestion; i < session.QuestionCount; i++ {
		fmt.Printf("[%d/%d] %s\n", i+1, session.QuestionCount, questions[i])
		for _, suggestion := range gateway.Fallback(i) {
			fmt.Printf("  - %s\n", suggestion)
		}
		if existing := store.State().Answers[i]; existing != "" {
			fmt.Printf("  (current: %s)\n", existing)
		}
		fmt.Print("> ")

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("interview aborted: %w", err)
		}
		answer := strings.TrimSpace(line)

		// Empty input keeps the existing answer when resuming.
		if answer != "" {
			if err := store.SetAnswer(i, answer); err != nil {
				return err
			}
		} else if store.State().Answers[i] == "" {
			fmt.Fprintln(os.Stderr, "An answer is required.")
			i--
			continue
		}
		store.SetCurrentQuestion(i + 1)
		fmt.Println()
	}
	return nil
}
