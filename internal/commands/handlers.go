package commands

import (
	"context"
	"strings"

	"github.com/Jochem-W/modmail/internal/format"
	"github.com/Jochem-W/modmail/internal/lifecycle"
	"github.com/Jochem-W/modmail/internal/transport"
)

const (
	CommandClose   = "close"
	CommandBlock   = "block"
	CommandPing    = "ping"
	CommandThreads = "threads"

	optionUser = "user"
)

type Lifecycle interface {
	Open(ctx context.Context, requester transport.User) (lifecycle.Outcome, error)
	Close(ctx context.Context, threadID string, actor transport.User) (lifecycle.Outcome, error)
	ToggleBlock(ctx context.Context, userID string) (lifecycle.Outcome, error)
	TogglePing(ctx context.Context, userID string) (lifecycle.Outcome, error)
	History(ctx context.Context, userID, skipID string) (format.History, error)
}

// Handlers builds the handler table for every command and control.
func Handlers(lc Lifecycle) map[string]Handler {
	closeThread := func(ctx context.Context, in transport.Interaction) (transport.Reply, error) {
		if in.GuildID == "" {
			return transport.Reply{}, invalid("Threads can only be closed from the server.")
		}
		out, err := lc.Close(ctx, in.ChannelID, in.User)
		if err != nil && !out.OK {
			return transport.Reply{}, err
		}
		// The thread is closed even if a follow-up step failed.
		return Render(out, ""), err
	}

	return map[string]Handler{
		CommandClose: {
			Kind:      transport.InteractionCommand,
			Ephemeral: true,
			Spec: &transport.CommandSpec{
				Name:        CommandClose,
				Description: "Close this thread",
				StaffOnly:   true,
			},
			Run: closeThread,
		},
		CommandBlock: {
			Kind:      transport.InteractionCommand,
			Ephemeral: true,
			Spec: &transport.CommandSpec{
				Name:        CommandBlock,
				Description: "Block or unblock a user from opening threads",
				StaffOnly:   true,
				Options: []transport.CommandOption{
					{Name: optionUser, Description: "The user to block or unblock", Kind: transport.OptionUser, Required: true},
				},
			},
			Run: func(ctx context.Context, in transport.Interaction) (transport.Reply, error) {
				target, err := userOption(in)
				if err != nil {
					return transport.Reply{}, err
				}
				out, err := lc.ToggleBlock(ctx, target)
				if err != nil {
					return transport.Reply{}, err
				}
				return Render(out, target), nil
			},
		},
		CommandPing: {
			Kind:      transport.InteractionCommand,
			Ephemeral: true,
			Spec: &transport.CommandSpec{
				Name:        CommandPing,
				Description: "Toggle being added to every new thread",
				StaffOnly:   true,
			},
			Run: func(ctx context.Context, in transport.Interaction) (transport.Reply, error) {
				out, err := lc.TogglePing(ctx, in.User.ID)
				if err != nil {
					return transport.Reply{}, err
				}
				return Render(out, in.User.ID), nil
			},
		},
		CommandThreads: {
			Kind:      transport.InteractionCommand,
			Ephemeral: true,
			Spec: &transport.CommandSpec{
				Name:        CommandThreads,
				Description: "List the threads of a user",
				StaffOnly:   true,
				Options: []transport.CommandOption{
					{Name: optionUser, Description: "The user whose threads to list", Kind: transport.OptionUser, Required: true},
				},
			},
			Run: func(ctx context.Context, in transport.Interaction) (transport.Reply, error) {
				target, err := userOption(in)
				if err != nil {
					return transport.Reply{}, err
				}
				history, err := lc.History(ctx, target, "")
				if err != nil {
					return transport.Reply{}, err
				}
				return RenderHistory(target, history), nil
			},
		},
		format.CreateThreadID: {
			Kind:      transport.InteractionComponent,
			Ephemeral: true,
			Run: func(ctx context.Context, in transport.Interaction) (transport.Reply, error) {
				if in.GuildID != "" {
					return transport.Reply{}, invalid("Threads can only be opened from direct messages.")
				}
				out, err := lc.Open(ctx, in.User)
				if err != nil {
					return transport.Reply{}, err
				}
				return Render(out, ""), nil
			},
		},
		format.CloseThreadID: {
			Kind:      transport.InteractionComponent,
			Ephemeral: true,
			Run:       closeThread,
		},
	}
}

func userOption(in transport.Interaction) (string, error) {
	id := strings.TrimSpace(in.Options[optionUser])
	if id == "" {
		return "", invalid("Please pick a user.")
	}
	return id, nil
}
