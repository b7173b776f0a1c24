package discord

import (
	"context"
	"fmt"

	"github.com/Jochem-W/modmail/internal/transport"
	"github.com/bwmarrin/discordgo"
)

// Intents are the gateway intents the relay needs.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// OnMessage calls fn for every message created, including the bot's own.
// It returns a function that removes the handler.
func (a *Adapter) OnMessage(fn func(transport.Message)) func() {
	return a.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m == nil || m.Message == nil {
			return
		}
		fn(toMessage(m.Message))
	})
}

// OnInteraction calls fn for every slash command and button press.
func (a *Adapter) OnInteraction(fn func(transport.Interaction, transport.Responder)) func() {
	return a.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic == nil || ic.Interaction == nil {
			return
		}
		in, ok := toInteraction(ic.Interaction)
		if !ok {
			return
		}
		fn(in, &responder{session: s, interaction: ic.Interaction})
	})
}

// RegisterCommands replaces the guild's commands with specs.
func (a *Adapter) RegisterCommands(ctx context.Context, applicationID, guildID string, specs []transport.CommandSpec) error {
	cmds := make([]*discordgo.ApplicationCommand, 0, len(specs))
	for _, spec := range specs {
		cmds = append(cmds, toCommand(spec))
	}
	if _, err := a.session.ApplicationCommandBulkOverwrite(applicationID, guildID, cmds, discordgo.WithContext(ctx)); err != nil {
		return wrap(fmt.Sprintf("register %d commands", len(cmds)), err)
	}
	return nil
}

type responder struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
}

func (r *responder) Acknowledge(ctx context.Context, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	}, discordgo.WithContext(ctx))
	return wrap("acknowledge interaction", err)
}

func (r *responder) Respond(ctx context.Context, reply transport.Reply) error {
	content := reply.Content
	embeds := fromEmbeds(reply.Embeds)
	_, err := r.session.InteractionResponseEdit(r.interaction, &discordgo.WebhookEdit{
		Content:         &content,
		Embeds:          &embeds,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}, discordgo.WithContext(ctx))
	return wrap("respond to interaction", err)
}
