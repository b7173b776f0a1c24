package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/Jochem-W/modmail/db"
	"github.com/Jochem-W/modmail/internal/format"
	"github.com/Jochem-W/modmail/internal/snowflake"
	"github.com/Jochem-W/modmail/internal/tags"
	"github.com/Jochem-W/modmail/internal/transport"
)

// walkStart marks a thread whose backfill walked the whole private history.
const walkStart = "0"

// Open starts a thread for requester. The store decides races: when a
// concurrent Open wins, the channel created here is deleted and the
// outcome is ReasonAlreadyOpen.
func (c *Controller) Open(ctx context.Context, requester transport.User) (Outcome, error) {
	userID := requester.ID
	blocked, err := c.store.IsBlocked(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("check block of %s: %w", userID, err)
	}
	if blocked {
		return rejected(ReasonBlocked), nil
	}
	if out, ok, err := c.alreadyOpen(ctx, userID); err != nil || ok {
		return out, err
	}

	history, err := c.History(ctx, userID, "")
	if err != nil {
		return Outcome{}, err
	}
	ch, err := c.transport.CreateForumThread(ctx, c.forumID, transport.ThreadCreate{
		Name:    threadName(requester),
		Tags:    c.tags.IDs(tags.Open, tags.AwaitingStaff),
		Message: format.Intro(requester, history, c.now()),
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("create forum thread for %s: %w", userID, err)
	}

	dmID := ""
	if dm, err := c.transport.UserChannel(ctx, userID); err != nil {
		c.logger.Warn("lifecycle_user_channel_error", "user_id", userID, "error", err.Error())
	} else {
		dmID = dm.ID
	}
	backlog, last := c.backfill(ctx, userID, dmID, ch.ID)

	if _, err := c.store.CreateThread(ctx, ch.ID, userID, last); err != nil {
		if delErr := ignoreNotFound(c.transport.DeleteChannel(ctx, ch.ID)); delErr != nil {
			c.logger.Warn("lifecycle_discard_channel_error", "thread_id", ch.ID, "error", delErr.Error())
		}
		if errors.Is(err, db.ErrThreadExists) {
			c.logger.Info("lifecycle_open_race_lost", "user_id", userID, "thread_id", ch.ID)
			if out, ok, lookupErr := c.alreadyOpen(ctx, userID); lookupErr != nil || ok {
				return out, lookupErr
			}
			return rejected(ReasonAlreadyOpen), nil
		}
		return Outcome{}, fmt.Errorf("persist thread %s: %w", ch.ID, err)
	}
	c.logger.Info("lifecycle_thread_opened", "user_id", userID, "thread_id", ch.ID, "backfill", len(backlog))

	c.addPings(ctx, ch.ID)
	if dmID != "" {
		if _, err := c.transport.SendMessage(ctx, dmID, format.ThreadOpenedNotice(c.branding)); err != nil {
			c.logger.Warn("lifecycle_open_notice_error", "user_id", userID, "error", err.Error())
		}
	}
	if c.queue != nil && len(backlog) > 0 {
		c.queue.Replay(backlog...)
	}
	if ref, ok := c.prompts.Forget(userID); ok {
		if err := ignoreNotFound(c.transport.DeleteMessage(ctx, ref.ChannelID, ref.MessageID)); err != nil {
			c.logger.Warn("lifecycle_prompt_delete_error", "user_id", userID, "error", err.Error())
		}
	}

	out := success(VerbOpened, ch.ID)
	out.History = history
	return out, nil
}

func (c *Controller) alreadyOpen(ctx context.Context, userID string) (Outcome, bool, error) {
	existing, err := c.store.OpenThreadByUser(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return Outcome{}, false, nil
	}
	if err != nil {
		return Outcome{}, false, fmt.Errorf("load open thread of %s: %w", userID, err)
	}
	history, err := c.History(ctx, userID, existing.ID)
	if err != nil {
		return Outcome{}, false, err
	}
	out := rejected(ReasonAlreadyOpen)
	out.ThreadID = existing.ID
	out.History = history
	return out, true, nil
}

// addPings adds every subscribed staff member who may still moderate the
// guild, and drops the subscriptions of those who may not.
func (c *Controller) addPings(ctx context.Context, threadID string) {
	ids, err := c.store.Pings(ctx)
	if err != nil {
		c.logger.Warn("lifecycle_pings_error", "error", err.Error())
		return
	}
	for _, id := range ids {
		allowed, err := c.transport.CanModerate(ctx, c.guildID, id)
		if err != nil && !errors.Is(err, transport.ErrNotFound) {
			c.logger.Warn("lifecycle_ping_check_error", "user_id", id, "error", err.Error())
			continue
		}
		if !allowed {
			if err := c.store.RemovePing(ctx, id); err != nil {
				c.logger.Warn("lifecycle_ping_prune_error", "user_id", id, "error", err.Error())
			}
			continue
		}
		if err := c.transport.AddThreadMember(ctx, threadID, id); err != nil {
			c.logger.Warn("lifecycle_ping_add_error", "thread_id", threadID, "user_id", id, "error", err.Error())
		}
	}
}

// backfill collects the private messages a new thread should start with
// and returns the cursor the thread starts from. Every collected message
// is after that cursor.
func (c *Controller) backfill(ctx context.Context, userID, dmID, threadID string) ([]transport.Message, string) {
	if dmID == "" {
		return nil, threadID
	}
	prior, err := c.store.LatestClosedThread(ctx, userID)
	var msgs []transport.Message
	var last string
	switch {
	case err == nil:
		last = snowflake.Max(prior.Last, snowflake.FromTime(c.now().Add(-c.window)))
		msgs, err = c.collectAfter(ctx, dmID, last)
	case errors.Is(err, db.ErrNotFound):
		msgs, last, err = c.collectSinceBoundary(ctx, dmID, threadID)
	}
	if err != nil {
		c.logger.Warn("lifecycle_backfill_error", "user_id", userID, "thread_id", threadID, "error", err.Error())
		return nil, threadID
	}
	return msgs, last
}

// collectAfter pages forward through the private channel.
func (c *Controller) collectAfter(ctx context.Context, dmID, after string) ([]transport.Message, error) {
	var out []transport.Message
	cursor := after
	for {
		page, err := c.transport.Messages(ctx, dmID, transport.Cursor{After: cursor, Limit: transport.MaxPageSize})
		if err != nil {
			return nil, fmt.Errorf("page private history of %s: %w", dmID, err)
		}
		for _, m := range page.Messages {
			if !m.Author.Bot {
				out = append(out, m)
			}
		}
		if !page.More || len(page.Messages) == 0 {
			return out, nil
		}
		cursor = page.Messages[len(page.Messages)-1].ID
	}
}

// collectSinceBoundary walks the private channel backwards from before
// until a bot message that is not a reply, which marks the end of the
// previous conversation. Replies from the bot (prompts, confirmations) do
// not stop the walk.
func (c *Controller) collectSinceBoundary(ctx context.Context, dmID, before string) ([]transport.Message, string, error) {
	var newestFirst []transport.Message
	boundary := walkStart
	cursor := before
walk:
	for {
		page, err := c.transport.Messages(ctx, dmID, transport.Cursor{Before: cursor, Limit: transport.MaxPageSize})
		if err != nil {
			return nil, "", fmt.Errorf("walk private history of %s: %w", dmID, err)
		}
		for i := len(page.Messages) - 1; i >= 0; i-- {
			m := page.Messages[i]
			if m.Author.Bot {
				if m.ReferenceID == "" {
					boundary = m.ID
					break walk
				}
				continue
			}
			newestFirst = append(newestFirst, m)
		}
		if !page.More || len(page.Messages) == 0 {
			break
		}
		cursor = page.Messages[0].ID
	}

	out := make([]transport.Message, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		out = append(out, newestFirst[i])
	}
	return out, boundary, nil
}
