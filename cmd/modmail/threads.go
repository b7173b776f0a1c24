package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Jochem-W/modmail/db"
	"github.com/Jochem-W/modmail/internal/clifmt"
	"github.com/spf13/cobra"
)

func newThreadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threads",
		Short: "Inspect threads and manage blocked users in the local store",
	}
	cmd.AddCommand(newThreadsListCmd())
	cmd.AddCommand(newBlockCmd("block", true))
	cmd.AddCommand(newBlockCmd("unblock", false))
	cmd.AddCommand(newBlocksListCmd())
	return cmd
}

func newThreadsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List threads, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			openOnly, _ := cmd.Flags().GetBool("open")
			store, gdb, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(gdb) }()

			threads, err := store.ListThreads(cmd.Context(), openOnly)
			if err != nil {
				return err
			}
			title := "Threads"
			if openOnly {
				title = "Open threads"
			}
			clifmt.PrintTable(cmd.OutOrStdout(), threadTable(title, threads))
			return nil
		},
	}
	cmd.Flags().Bool("open", false, "Only list open threads.")
	return cmd
}

func threadTable(title string, threads []db.Thread) clifmt.TableOptions {
	rows := make([][]string, 0, len(threads))
	for _, t := range threads {
		status := "closed"
		if t.IsOpen() {
			status = "open"
		}
		rows = append(rows, []string{
			t.ID,
			status,
			t.UserID,
			t.CreatedAt.UTC().Format(time.RFC3339),
			t.Last,
		})
	}
	return clifmt.TableOptions{
		Title:     title,
		Headers:   []string{"THREAD", "STATUS", "USER", "CREATED", "LAST MESSAGE"},
		Rows:      rows,
		EmptyText: "No threads.",
		Highlight: func(row []string) (bool, bool) {
			return len(row) > 1 && row[1] == "open", true
		},
	}
}

// newBlockCmd builds block or unblock. Both are idempotent; the store only
// offers a toggle, so the current state is checked first.
func newBlockCmd(use string, block bool) *cobra.Command {
	short := "Block a user from opening threads"
	if !block {
		short = "Allow a blocked user to open threads again"
	}
	return &cobra.Command{
		Use:   use + " <user-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := strings.TrimSpace(args[0])
			if userID == "" {
				return fmt.Errorf("missing user id")
			}
			store, gdb, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(gdb) }()

			changed, err := setBlocked(cmd.Context(), store, userID, block)
			if err != nil {
				return err
			}
			state := "unblocked"
			if block {
				state = "blocked"
			}
			if !changed {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), clifmt.Warn(fmt.Sprintf("%s was already %s", userID, state)))
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), clifmt.Success(fmt.Sprintf("%s %s", userID, state)))
			return nil
		},
	}
}

type blockToggler interface {
	IsBlocked(ctx context.Context, userID string) (bool, error)
	ToggleBlock(ctx context.Context, userID string) (bool, error)
}

func setBlocked(ctx context.Context, store blockToggler, userID string, block bool) (bool, error) {
	current, err := store.IsBlocked(ctx, userID)
	if err != nil {
		return false, err
	}
	if current == block {
		return false, nil
	}
	if _, err := store.ToggleBlock(ctx, userID); err != nil {
		return false, err
	}
	return true, nil
}

func newBlocksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "blocked",
		Short: "List blocked users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, gdb, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(gdb) }()

			users, err := store.Blocks(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(users))
			for _, u := range users {
				rows = append(rows, []string{u})
			}
			clifmt.PrintTable(cmd.OutOrStdout(), clifmt.TableOptions{
				Title:     "Blocked users",
				Headers:   []string{"USER"},
				Rows:      rows,
				EmptyText: "No blocked users.",
			})
			return nil
		},
	}
}
