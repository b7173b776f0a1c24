// Package lifecycle opens and closes threads and manages block and ping
// membership.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Jochem-W/modmail/db"
	"github.com/Jochem-W/modmail/internal/format"
	"github.com/Jochem-W/modmail/internal/outputfmt"
	"github.com/Jochem-W/modmail/internal/relay"
	"github.com/Jochem-W/modmail/internal/tags"
	"github.com/Jochem-W/modmail/internal/transport"
)

const (
	DefaultBackfillWindow = time.Hour

	closedPrefix = "[closed] "
	maxNameRunes = 100
)

type Store interface {
	Thread(ctx context.Context, id string) (*db.Thread, error)
	OpenThreadByUser(ctx context.Context, userID string) (*db.Thread, error)
	ThreadsByUser(ctx context.Context, userID string) ([]db.Thread, error)
	LatestClosedThread(ctx context.Context, userID string) (*db.Thread, error)
	CreateThread(ctx context.Context, id, userID, last string) (*db.Thread, error)
	CloseThread(ctx context.Context, id string) (bool, error)
	IsBlocked(ctx context.Context, userID string) (bool, error)
	ToggleBlock(ctx context.Context, userID string) (bool, error)
	TogglePing(ctx context.Context, userID string) (bool, error)
	Pings(ctx context.Context) ([]string, error)
	RemovePing(ctx context.Context, userID string) error
}

// Replayer schedules backfilled history for relay.
type Replayer interface {
	Replay(msgs ...transport.Message) int
}

type Options struct {
	Transport transport.Transport
	Store     Store
	Queue     Replayer
	Tags      tags.Registry
	Prompts   *relay.Prompts
	GuildID   string
	ForumID   string
	Branding  *format.Branding
	// BackfillWindow bounds how far back messages sent after a previous
	// thread are carried into a new one.
	BackfillWindow time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
}

type Controller struct {
	transport transport.Transport
	store     Store
	queue     Replayer
	tags      tags.Registry
	prompts   *relay.Prompts
	guildID   string
	forumID   string
	branding  *format.Branding
	window    time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func New(opts Options) *Controller {
	c := &Controller{
		transport: opts.Transport,
		store:     opts.Store,
		queue:     opts.Queue,
		tags:      opts.Tags,
		prompts:   opts.Prompts,
		guildID:   strings.TrimSpace(opts.GuildID),
		forumID:   strings.TrimSpace(opts.ForumID),
		branding:  opts.Branding,
		window:    opts.BackfillWindow,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if c.window <= 0 {
		c.window = DefaultBackfillWindow
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.prompts == nil {
		c.prompts = relay.NewPrompts()
	}
	return c
}

// History lists a user's threads, newest first, leaving out skipID.
func (c *Controller) History(ctx context.Context, userID, skipID string) (format.History, error) {
	threads, err := c.store.ThreadsByUser(ctx, userID)
	if err != nil {
		return format.History{}, fmt.Errorf("list threads of %s: %w", userID, err)
	}
	ids := make([]string, 0, len(threads))
	for _, t := range threads {
		if t.ID != skipID {
			ids = append(ids, t.ID)
		}
	}
	return format.NewHistory(ids), nil
}

// ToggleBlock flips whether a user may open threads.
func (c *Controller) ToggleBlock(ctx context.Context, userID string) (Outcome, error) {
	blocked, err := c.store.ToggleBlock(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("toggle block of %s: %w", userID, err)
	}
	c.logger.Info("lifecycle_block_toggled", "user_id", userID, "blocked", blocked)
	if blocked {
		return success(VerbBlocked, ""), nil
	}
	return success(VerbUnblocked, ""), nil
}

// TogglePing flips whether a staff member is added to new threads.
func (c *Controller) TogglePing(ctx context.Context, userID string) (Outcome, error) {
	subscribed, err := c.store.TogglePing(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("toggle ping of %s: %w", userID, err)
	}
	if subscribed {
		return success(VerbSubscribed, ""), nil
	}
	return success(VerbUnsubscribed, ""), nil
}

func threadName(u transport.User) string {
	name := u.Name()
	if name == "" {
		name = u.ID
	}
	return outputfmt.Truncate(name, maxNameRunes)
}

func closedName(name string) string {
	if strings.HasPrefix(name, closedPrefix) {
		return name
	}
	return outputfmt.Truncate(closedPrefix+name, maxNameRunes)
}

func ignoreNotFound(err error) error {
	if errors.Is(err, transport.ErrNotFound) {
		return nil
	}
	return err
}
