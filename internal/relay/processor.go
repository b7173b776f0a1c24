package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Jochem-W/modmail/db"
	"github.com/Jochem-W/modmail/internal/format"
	"github.com/Jochem-W/modmail/internal/snowflake"
	"github.com/Jochem-W/modmail/internal/tags"
	"github.com/Jochem-W/modmail/internal/transport"
)

type Store interface {
	Thread(ctx context.Context, id string) (*db.Thread, error)
	OpenThreadByUser(ctx context.Context, userID string) (*db.Thread, error)
	IsBlocked(ctx context.Context, userID string) (bool, error)
	Advance(ctx context.Context, id, last string, lastClose *string) error
}

type ProcessorOptions struct {
	Transport transport.Transport
	Store     Store
	Tags      tags.Registry
	Prompts   *Prompts
	Trigger   Trigger
	ForumID   string
	// Branding is shown on messages delivered to users.
	Branding *format.Branding
	Logger   *slog.Logger
}

// Processor relays a single message to the other side of its thread.
type Processor struct {
	transport transport.Transport
	store     Store
	tags      tags.Registry
	prompts   *Prompts
	trigger   Trigger
	forumID   string
	branding  *format.Branding
	logger    *slog.Logger
}

func NewProcessor(opts ProcessorOptions) *Processor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prompts := opts.Prompts
	if prompts == nil {
		prompts = NewPrompts()
	}
	return &Processor{
		transport: opts.Transport,
		store:     opts.Store,
		tags:      opts.Tags,
		prompts:   prompts,
		trigger:   opts.Trigger,
		forumID:   strings.TrimSpace(opts.ForumID),
		branding:  opts.Branding,
		logger:    logger,
	}
}

// Handle is the queue handler.
func (p *Processor) Handle(ctx context.Context, job Job) error {
	return p.process(ctx, job.Message, job.Replay)
}

// Process relays a message received live. The gateway may deliver events
// slightly out of order, so a live message is relayed even when the thread
// cursor is already past it.
func (p *Processor) Process(ctx context.Context, msg transport.Message) error {
	return p.process(ctx, msg, false)
}

// Replay relays a message fetched from history, skipping it when the thread
// cursor shows it was already handled.
func (p *Processor) Replay(ctx context.Context, msg transport.Message) error {
	return p.process(ctx, msg, true)
}

func (p *Processor) process(ctx context.Context, msg transport.Message, replay bool) error {
	if msg.Author.Bot || msg.Empty() {
		return nil
	}
	if msg.IsDirect() {
		return p.fromUser(ctx, msg, replay)
	}
	return p.fromStaff(ctx, msg, replay)
}

// covered reports whether the thread cursor already accounts for msg. Only
// replayed messages are skipped on that basis.
func (p *Processor) covered(thread *db.Thread, msg transport.Message, replay bool) bool {
	if snowflake.After(msg.ID, thread.Last) {
		return false
	}
	if replay {
		p.logger.Debug("relay_replay_skipped", "thread_id", thread.ID, "message_id", msg.ID, "last", thread.Last)
		return true
	}
	p.logger.Info("relay_out_of_order", "thread_id", thread.ID, "message_id", msg.ID, "last", thread.Last)
	return false
}

func (p *Processor) fromStaff(ctx context.Context, msg transport.Message, replay bool) error {
	body, ok := p.trigger.Strip(msg.Content)
	if !ok || (body == "" && len(msg.Attachments) == 0) {
		return nil
	}

	ch, err := p.transport.Channel(ctx, msg.ChannelID)
	if err != nil {
		if errors.Is(err, transport.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("fetch channel %s: %w", msg.ChannelID, err)
	}
	if ch.Kind != transport.ChannelKindThread || ch.ParentID != p.forumID {
		return nil
	}
	thread, err := p.store.Thread(ctx, ch.ID)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load thread %s: %w", ch.ID, err)
	}
	if !thread.IsOpen() || p.covered(thread, msg, replay) {
		return nil
	}

	if err := DisableClose(ctx, p.transport, thread.ID, thread.LastClose); err != nil {
		return err
	}

	relayed := msg
	relayed.Content = body
	unit := format.Message(ctx, p.transport, relayed, format.Received, p.branding)

	delivered, err := p.deliver(ctx, thread.UserID, unit.Outbound())
	var unreachable *transport.UnreachableError
	switch {
	case err == nil:
	case errors.As(err, &unreachable):
		p.logger.Info("relay_user_unreachable",
			"thread_id", thread.ID,
			"user_id", thread.UserID,
			"reason", string(unreachable.Reason),
		)
	default:
		return fmt.Errorf("deliver to user %s: %w", thread.UserID, err)
	}

	var control *transport.Message
	if delivered {
		if err := UpdatePreview(ctx, p.transport, thread.ID, format.StaffPreview(body, len(msg.Attachments))); err != nil {
			p.logger.Warn("relay_preview_error", "thread_id", thread.ID, "error", err.Error())
		}
		if err := p.transport.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil && !errors.Is(err, transport.ErrNotFound) {
			p.logger.Warn("relay_delete_raw_error", "message_id", msg.ID, "error", err.Error())
		}
		out := unit.Outbound()
		out.Buttons = []transport.Button{format.CloseButton()}
		control, err = p.transport.SendMessage(ctx, thread.ID, out)
		if err != nil {
			return fmt.Errorf("post relayed copy in %s: %w", thread.ID, err)
		}
	} else {
		notice := format.DeliveryFailure(unreachable.Reason)
		notice.ReplyTo = msg.ID
		notice.Buttons = []transport.Button{format.CloseButton()}
		control, err = p.transport.SendMessage(ctx, thread.ID, notice)
		if err != nil {
			return fmt.Errorf("post delivery failure in %s: %w", thread.ID, err)
		}
	}

	if err := p.store.Advance(ctx, thread.ID, msg.ID, &control.ID); err != nil {
		return err
	}
	if delivered {
		if err := tags.Apply(ctx, p.transport, p.tags, thread.ID, tags.Open, tags.AwaitingUser); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) deliver(ctx context.Context, userID string, out transport.OutboundMessage) (bool, error) {
	dm, err := p.transport.UserChannel(ctx, userID)
	if err != nil {
		return false, err
	}
	if _, err := p.transport.SendMessage(ctx, dm.ID, out); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Processor) fromUser(ctx context.Context, msg transport.Message, replay bool) error {
	userID := msg.Author.ID
	thread, err := p.store.OpenThreadByUser(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		if replay {
			return nil
		}
		return p.prompt(ctx, msg)
	}
	if err != nil {
		return fmt.Errorf("load open thread of %s: %w", userID, err)
	}
	if p.covered(thread, msg, replay) {
		return nil
	}

	if err := DisableClose(ctx, p.transport, thread.ID, thread.LastClose); err != nil {
		return err
	}

	unit := format.Message(ctx, p.transport, msg, format.Sent, nil)
	out := unit.Outbound()
	out.Buttons = []transport.Button{format.CloseButton()}
	control, err := p.transport.SendMessage(ctx, thread.ID, out)
	if err != nil {
		return fmt.Errorf("post user message in %s: %w", thread.ID, err)
	}

	confirmation := unit.Outbound()
	confirmation.ReplyTo = msg.ID
	if _, err := p.transport.SendMessage(ctx, msg.ChannelID, confirmation); err != nil {
		p.logger.Warn("relay_confirmation_error", "user_id", userID, "error", err.Error())
	}
	if err := UpdatePreview(ctx, p.transport, thread.ID, format.UserPreview(msg.Content, len(msg.Attachments))); err != nil {
		p.logger.Warn("relay_preview_error", "thread_id", thread.ID, "error", err.Error())
	}

	if err := p.store.Advance(ctx, thread.ID, msg.ID, &control.ID); err != nil {
		return err
	}
	return tags.Apply(ctx, p.transport, p.tags, thread.ID, tags.Open, tags.AwaitingStaff)
}

func (p *Processor) prompt(ctx context.Context, msg transport.Message) error {
	blocked, err := p.store.IsBlocked(ctx, msg.Author.ID)
	if err != nil {
		return fmt.Errorf("check block of %s: %w", msg.Author.ID, err)
	}
	if blocked {
		notice := format.BlockedNotice()
		notice.ReplyTo = msg.ID
		if _, err := p.transport.SendMessage(ctx, msg.ChannelID, notice); err != nil && !transport.IsUnreachable(err) {
			return fmt.Errorf("send blocked notice: %w", err)
		}
		return nil
	}

	out := format.Prompt()
	out.ReplyTo = msg.ID
	sent, err := p.transport.SendMessage(ctx, msg.ChannelID, out)
	if err != nil {
		if transport.IsUnreachable(err) {
			return nil
		}
		return fmt.Errorf("send creation prompt: %w", err)
	}
	prev, ok := p.prompts.Swap(msg.Author.ID, PromptRef{ChannelID: msg.ChannelID, MessageID: sent.ID})
	if !ok {
		return nil
	}
	if err := p.transport.DeleteMessage(ctx, prev.ChannelID, prev.MessageID); err != nil && !errors.Is(err, transport.ErrNotFound) {
		p.logger.Warn("relay_prompt_delete_error", "user_id", msg.Author.ID, "error", err.Error())
	}
	return nil
}
