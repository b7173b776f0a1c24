package commands

import (
	"github.com/Jochem-W/modmail/internal/format"
	"github.com/Jochem-W/modmail/internal/lifecycle"
	"github.com/Jochem-W/modmail/internal/transport"
)

// Render turns an outcome into the reply shown to the actor. target is the
// user the operation was about, when there is one.
func Render(out lifecycle.Outcome, target string) transport.Reply {
	if !out.OK {
		return renderRejection(out)
	}
	mention := "<@" + target + ">"
	switch out.Verb {
	case lifecycle.VerbOpened:
		return transport.Reply{Content: "Your thread has been opened. The staff team will reply here.", Ephemeral: true}
	case lifecycle.VerbClosed:
		return transport.Reply{Content: "Thread closed.", Ephemeral: true}
	case lifecycle.VerbBlocked:
		return transport.Reply{Content: mention + " can no longer open threads.", Ephemeral: true}
	case lifecycle.VerbUnblocked:
		return transport.Reply{Content: mention + " can open threads again.", Ephemeral: true}
	case lifecycle.VerbSubscribed:
		return transport.Reply{Content: "You will be added to every new thread.", Ephemeral: true}
	case lifecycle.VerbUnsubscribed:
		return transport.Reply{Content: "You will no longer be added to new threads.", Ephemeral: true}
	}
	return transport.Reply{Content: "Done.", Ephemeral: true}
}

func renderRejection(out lifecycle.Outcome) transport.Reply {
	switch out.Reason {
	case lifecycle.ReasonBlocked:
		return transport.Reply{Content: "You have been blocked from opening threads.", Ephemeral: true}
	case lifecycle.ReasonAlreadyOpen:
		embed := transport.Embed{
			Title:       "A thread is already open",
			Description: "Messages you send here are forwarded to the staff team.",
			Color:       format.ColorWarning,
		}
		if out.ThreadID != "" {
			embed.Fields = append(embed.Fields,
				transport.EmbedField{Name: "Open thread", Value: "<#" + out.ThreadID + ">"},
				transport.EmbedField{Name: "Previous threads", Value: out.History.String()},
			)
		}
		return transport.Reply{Embeds: []transport.Embed{embed}, Ephemeral: true}
	case lifecycle.ReasonNotOpen:
		return transport.Reply{Content: "This channel is not an open thread.", Ephemeral: true}
	}
	return transport.Reply{Content: genericFailure, Ephemeral: true}
}

// RenderHistory lists a user's threads.
func RenderHistory(userID string, history format.History) transport.Reply {
	return transport.Reply{
		Embeds: []transport.Embed{{
			Title:       "Threads",
			Description: "<@" + userID + ">",
			Color:       format.ColorNeutral,
			Fields:      []transport.EmbedField{{Name: "Threads", Value: history.String()}},
		}},
		Ephemeral: true,
	}
}
