// Package recovery replays whatever was missed while the bot was offline.
package recovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Jochem-W/modmail/db"
	"github.com/Jochem-W/modmail/internal/report"
	"github.com/Jochem-W/modmail/internal/transport"
)

type Store interface {
	OpenThreads(ctx context.Context) ([]db.Thread, error)
}

type History interface {
	Messages(ctx context.Context, channelID string, cursor transport.Cursor) (transport.Page, error)
	UserChannel(ctx context.Context, userID string) (*transport.Channel, error)
}

type Queue interface {
	Replay(msgs ...transport.Message) int
	Start()
}

type Options struct {
	Store    Store
	History  History
	Queue    Queue
	Reporter *report.Reporter
	Logger   *slog.Logger
}

type Result struct {
	Threads  int
	Enqueued int
	Failed   int
}

// Run enqueues every message newer than the cursor of each open thread,
// from both the thread and the user's private channel, then starts the
// queue. A thread that cannot be scanned is reported and skipped. The queue
// is started even when listing threads fails, so live traffic still flows.
func Run(ctx context.Context, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defer opts.Queue.Start()

	threads, err := opts.Store.OpenThreads(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list open threads: %w", err)
	}
	res := Result{Threads: len(threads)}
	for _, t := range threads {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		n, err := scanThread(ctx, opts, t)
		res.Enqueued += n
		if err != nil {
			res.Failed++
			opts.Reporter.Report(ctx, "recovery_thread_error", err, "thread_id", t.ID, "user_id", t.UserID)
			continue
		}
		logger.Debug("recovery_thread_scanned", "thread_id", t.ID, "enqueued", n)
	}
	logger.Info("recovery_done", "threads", res.Threads, "enqueued", res.Enqueued, "failed", res.Failed)
	return res, nil
}

func scanThread(ctx context.Context, opts Options, t db.Thread) (int, error) {
	n, err := drain(ctx, opts, t.ID, t.Last)
	if err != nil {
		return n, fmt.Errorf("scan thread channel: %w", err)
	}
	dm, err := opts.History.UserChannel(ctx, t.UserID)
	if err != nil {
		return n, fmt.Errorf("open private channel: %w", err)
	}
	m, err := drain(ctx, opts, dm.ID, t.Last)
	n += m
	if err != nil {
		return n, fmt.Errorf("scan private channel: %w", err)
	}
	return n, nil
}

// drain pages forward from after and replays every page as it arrives.
func drain(ctx context.Context, opts Options, channelID, after string) (int, error) {
	total := 0
	cursor := after
	for {
		page, err := opts.History.Messages(ctx, channelID, transport.Cursor{After: cursor, Limit: transport.MaxPageSize})
		if err != nil {
			return total, err
		}
		total += opts.Queue.Replay(page.Messages...)
		if !page.More || len(page.Messages) == 0 {
			return total, nil
		}
		cursor = page.Messages[len(page.Messages)-1].ID
	}
}
