// Package report logs failures and mirrors them to the operator log
// channel.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Jochem-W/modmail/internal/format"
	"github.com/Jochem-W/modmail/internal/outputfmt"
	"github.com/Jochem-W/modmail/internal/transport"
	"github.com/google/uuid"
)

const (
	sendTimeout     = 10 * time.Second
	maxErrorRunes   = 3500
	maxContextRunes = 1000
)

type Sender interface {
	SendMessage(ctx context.Context, channelID string, msg transport.OutboundMessage) (*transport.Message, error)
}

// Reporter is nil-safe; a nil Reporter drops reports.
type Reporter struct {
	logger    *slog.Logger
	sender    Sender
	channelID string
}

// New returns a reporter. An empty channelID only logs.
func New(logger *slog.Logger, sender Sender, channelID string) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{logger: logger, sender: sender, channelID: strings.TrimSpace(channelID)}
}

// Report logs err under event and posts a sanitized copy to the log
// channel. It returns the correlation id shared by both.
func (r *Reporter) Report(ctx context.Context, event string, err error, attrs ...any) string {
	if r == nil || err == nil {
		return ""
	}
	id := uuid.NewString()
	args := append([]any{"report_id", id, "error", err.Error()}, attrs...)
	r.logger.Error(event, args...)

	if r.sender == nil || r.channelID == "" {
		return id
	}
	if ctx == nil {
		ctx = context.Background()
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()
	if _, sendErr := r.sender.SendMessage(sendCtx, r.channelID, Message(id, event, err, attrs...)); sendErr != nil {
		r.logger.Warn("report_send_error", "report_id", id, "error", sendErr.Error())
	}
	return id
}

// Message builds the log channel embed for a failure.
func Message(id, event string, err error, attrs ...any) transport.OutboundMessage {
	embed := transport.Embed{
		Title:       event,
		Description: "```\n" + outputfmt.Truncate(outputfmt.ErrorText(err), maxErrorRunes) + "\n```",
		Color:       format.ColorFailure,
		Timestamp:   time.Now(),
		Footer:      &transport.EmbedFooter{Text: id},
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		key := fmt.Sprint(attrs[i])
		value := outputfmt.Sanitize(fmt.Sprint(attrs[i+1]))
		if value == "" {
			continue
		}
		embed.Fields = append(embed.Fields, transport.EmbedField{
			Name:   key,
			Value:  outputfmt.Truncate(value, maxContextRunes),
			Inline: true,
		})
	}
	return transport.OutboundMessage{Embeds: []transport.Embed{embed}}
}
