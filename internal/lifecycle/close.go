package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/Jochem-W/modmail/db"
	"github.com/Jochem-W/modmail/internal/format"
	"github.com/Jochem-W/modmail/internal/relay"
	"github.com/Jochem-W/modmail/internal/tags"
	"github.com/Jochem-W/modmail/internal/transport"
)

// Close ends a thread on behalf of actor. Only one of several concurrent
// closes succeeds. Once the record is closed the remaining steps are
// attempted even if some fail; their errors are joined and returned with
// a successful outcome.
func (c *Controller) Close(ctx context.Context, threadID string, actor transport.User) (Outcome, error) {
	thread, err := c.store.Thread(ctx, threadID)
	if errors.Is(err, db.ErrNotFound) {
		return rejected(ReasonNotOpen), nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	if !thread.IsOpen() {
		return rejected(ReasonNotOpen), nil
	}
	closed, err := c.store.CloseThread(ctx, threadID)
	if err != nil {
		return Outcome{}, err
	}
	if !closed {
		return rejected(ReasonNotOpen), nil
	}
	c.logger.Info("lifecycle_thread_closed", "thread_id", threadID, "user_id", thread.UserID, "actor_id", actor.ID)

	var errs []error
	if err := relay.DisableClose(ctx, c.transport, threadID, thread.LastClose); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.transport.SendMessage(ctx, threadID, format.ClosedNotice(actor)); err != nil {
		errs = append(errs, fmt.Errorf("post closure notice in %s: %w", threadID, err))
	}
	if err := relay.UpdatePreview(ctx, c.transport, threadID, format.ClosedPreview(actor.Name())); err != nil {
		errs = append(errs, err)
	}
	if err := c.notifyClosed(ctx, thread.UserID); err != nil {
		errs = append(errs, err)
	}
	if err := c.archive(ctx, threadID); err != nil {
		errs = append(errs, err)
	}
	return success(VerbClosed, threadID), errors.Join(errs...)
}

func (c *Controller) notifyClosed(ctx context.Context, userID string) error {
	dm, err := c.transport.UserChannel(ctx, userID)
	if err == nil {
		_, err = c.transport.SendMessage(ctx, dm.ID, format.ClosedUserNotice(c.branding))
	}
	if err == nil || transport.IsUnreachable(err) {
		return nil
	}
	return fmt.Errorf("notify %s of closure: %w", userID, err)
}

// archive renames, retags, archives and locks the thread in one edit.
func (c *Controller) archive(ctx context.Context, threadID string) error {
	ch, err := c.transport.Channel(ctx, threadID)
	if err != nil {
		return ignoreNotFound(fmt.Errorf("fetch thread %s: %w", threadID, err))
	}
	name := closedName(ch.Name)
	applied := c.tags.IDs(tags.Closed)
	yes := true
	_, err = c.transport.EditChannel(ctx, threadID, transport.ChannelEdit{
		Name:        &name,
		AppliedTags: &applied,
		Archived:    &yes,
		Locked:      &yes,
	})
	if err != nil {
		return ignoreNotFound(fmt.Errorf("archive thread %s: %w", threadID, err))
	}
	return nil
}
