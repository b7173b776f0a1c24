package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/Jochem-W/modmail/internal/transport"
)

const (
	CreateThreadID = "thread:create"
	CloseThreadID  = "thread:close"

	// HistoryLimit caps how many earlier threads are listed.
	HistoryLimit = 5
)

// History is a capped list of thread references plus how many were left
// out.
type History struct {
	ThreadIDs []string
	Remaining int
}

func NewHistory(ids []string) History {
	if len(ids) <= HistoryLimit {
		return History{ThreadIDs: append([]string(nil), ids...)}
	}
	return History{
		ThreadIDs: append([]string(nil), ids[:HistoryLimit]...),
		Remaining: len(ids) - HistoryLimit,
	}
}

func (h History) String() string {
	if len(h.ThreadIDs) == 0 {
		return "None"
	}
	lines := make([]string, 0, len(h.ThreadIDs)+1)
	for _, id := range h.ThreadIDs {
		lines = append(lines, "<#"+id+">")
	}
	if h.Remaining > 0 {
		lines = append(lines, fmt.Sprintf("and %d more", h.Remaining))
	}
	return strings.Join(lines, "\n")
}

func CloseButton() transport.Button {
	return transport.Button{CustomID: CloseThreadID, Label: "Close thread", Style: transport.ButtonDanger}
}

func CreateButton() transport.Button {
	return transport.Button{CustomID: CreateThreadID, Label: "Open a thread", Style: transport.ButtonPrimary}
}

// Intro is the first message of a new thread.
func Intro(requester transport.User, history History, now time.Time) transport.OutboundMessage {
	created := requester.CreatedAt
	createdText := "Unknown"
	if !created.IsZero() {
		createdText = fmt.Sprintf("<t:%d:R>", created.Unix())
	}
	embed := transport.Embed{
		Title:     "Thread with " + requester.Name(),
		Color:     ColorNeutral,
		Timestamp: now,
		Author:    &transport.EmbedAuthor{Name: requester.Name(), IconURL: requester.AvatarURL},
		Fields: []transport.EmbedField{
			{Name: "User", Value: requester.Mention() + " (" + requester.ID + ")", Inline: true},
			{Name: "Account created", Value: createdText, Inline: true},
			{Name: "Previous threads", Value: history.String()},
			{Name: PreviewFieldName, Value: "—"},
		},
	}
	return transport.OutboundMessage{Embeds: []transport.Embed{embed}}
}

func Prompt() transport.OutboundMessage {
	return transport.OutboundMessage{
		Embeds: []transport.Embed{{
			Title:       "Contact the staff team?",
			Description: "There is no open thread for you yet. Press the button below to open one; your recent messages will be forwarded to the staff team.",
			Color:       ColorNeutral,
		}},
		Buttons: []transport.Button{CreateButton()},
	}
}

func BlockedNotice() transport.OutboundMessage {
	return notice("Unable to open a thread", "You have been blocked from opening threads.", ColorFailure)
}

func DeliveryFailure(reason transport.UnreachableReason) transport.OutboundMessage {
	var text string
	switch reason {
	case transport.UnreachableUnknownUser:
		text = "The message could not be delivered because the user's account no longer exists."
	case transport.UnreachableDMsDisabled:
		text = "The message could not be delivered because the user has disabled direct messages or blocked the bot."
	default:
		text = "The message could not be delivered to the user."
	}
	return notice("Delivery failed", text, ColorFailure)
}

func ThreadOpenedNotice(brand *Branding) transport.OutboundMessage {
	out := notice("Thread opened", "The staff team has been notified. Replies will appear here.", ColorReceived)
	if brand != nil && strings.TrimSpace(brand.Name) != "" {
		out.Embeds[0].Footer = &transport.EmbedFooter{Text: brand.Name, IconURL: brand.IconURL}
	}
	return out
}

func ClosedNotice(actor transport.User) transport.OutboundMessage {
	return notice("Thread closed", "Closed by "+actor.Mention()+".", ColorNeutral)
}

func ClosedUserNotice(brand *Branding) transport.OutboundMessage {
	out := notice("Thread closed", "Your thread has been closed. Send another message to contact the staff team again.", ColorNeutral)
	if brand != nil && strings.TrimSpace(brand.Name) != "" {
		out.Embeds[0].Footer = &transport.EmbedFooter{Text: brand.Name, IconURL: brand.IconURL}
	}
	return out
}

func notice(title, text string, color int) transport.OutboundMessage {
	return transport.OutboundMessage{
		Embeds: []transport.Embed{{Title: title, Description: text, Color: color}},
	}
}
