// Package commands routes slash commands and button presses to their
// handlers and renders the results.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"

	"github.com/Jochem-W/modmail/internal/report"
	"github.com/Jochem-W/modmail/internal/transport"
)

const genericFailure = "Something went wrong. The error has been reported."

var (
	ErrUnknownHandler = errors.New("no handler registered")
	ErrKindMismatch   = errors.New("handler registered for another interaction kind")
)

// ValidationError is shown to the actor as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

type Handler struct {
	Kind transport.InteractionKind
	// Spec is registered with the chat service for commands.
	Spec      *transport.CommandSpec
	Ephemeral bool
	Run       func(ctx context.Context, in transport.Interaction) (transport.Reply, error)
}

// Router dispatches interactions. Its handler table is fixed at
// construction.
type Router struct {
	handlers map[string]Handler
	reporter *report.Reporter
	logger   *slog.Logger
}

func NewRouter(handlers map[string]Handler, reporter *report.Reporter, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if reporter == nil {
		reporter = report.New(logger, nil, "")
	}
	table := make(map[string]Handler, len(handlers))
	for key, h := range handlers {
		table[key] = h
	}
	return &Router{handlers: table, reporter: reporter, logger: logger}
}

// Specs lists the commands to register, sorted by name.
func (r *Router) Specs() []transport.CommandSpec {
	var out []transport.CommandSpec
	for _, h := range r.handlers {
		if h.Kind == transport.InteractionCommand && h.Spec != nil {
			out = append(out, *h.Spec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dispatch runs the handler for in and answers through resp. It never
// panics; failures are reported and answered with a generic message.
func (r *Router) Dispatch(ctx context.Context, in transport.Interaction, resp transport.Responder) {
	key := in.Key()
	h, ok := r.handlers[key]
	ephemeral := !ok || h.Ephemeral
	if err := resp.Acknowledge(ctx, ephemeral); err != nil {
		r.reporter.Report(ctx, "interaction_ack_error", err, "interaction", key)
		return
	}

	reply, err := r.run(ctx, h, ok, in)
	var invalidErr *ValidationError
	switch {
	case err == nil:
	case errors.As(err, &invalidErr):
		reply = transport.Reply{Content: invalidErr.Message, Ephemeral: true}
	default:
		id := r.reporter.Report(ctx, "interaction_error", err,
			"interaction", key,
			"kind", in.Kind.String(),
			"user_id", in.User.ID,
			"channel_id", in.ChannelID,
		)
		// A handler may fail after its main effect and still have a
		// reply to show.
		if reply.Content == "" && len(reply.Embeds) == 0 {
			reply = transport.Reply{Content: genericFailure, Ephemeral: true}
			if id != "" {
				reply.Content += " Reference: `" + id + "`"
			}
		}
	}
	if err := resp.Respond(ctx, reply); err != nil {
		r.logger.Warn("interaction_respond_error", "interaction", key, "error", err.Error())
	}
}

func (r *Router) run(ctx context.Context, h Handler, found bool, in transport.Interaction) (reply transport.Reply, err error) {
	if !found {
		return transport.Reply{}, fmt.Errorf("%s %q: %w", in.Kind, in.Key(), ErrUnknownHandler)
	}
	if h.Kind != in.Kind {
		return transport.Reply{}, fmt.Errorf("%s %q: %w", in.Kind, in.Key(), ErrKindMismatch)
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler %q panicked: %v\n%s", in.Key(), rec, debug.Stack())
		}
	}()
	return h.Run(ctx, in)
}
