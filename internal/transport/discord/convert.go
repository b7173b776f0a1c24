package discord

import (
	"bytes"
	"time"

	"github.com/Jochem-W/modmail/internal/transport"
	"github.com/bwmarrin/discordgo"
)

const avatarSize = "256"

func toUser(u *discordgo.User) transport.User {
	if u == nil {
		return transport.User{}
	}
	out := transport.User{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.GlobalName,
		AvatarURL:   u.AvatarURL(avatarSize),
		Bot:         u.Bot,
	}
	if created, err := discordgo.SnowflakeTimestamp(u.ID); err == nil {
		out.CreatedAt = created
	}
	return out
}

func toMessage(m *discordgo.Message) transport.Message {
	if m == nil {
		return transport.Message{}
	}
	out := transport.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Author:    toUser(m.Author),
		Content:   m.Content,
		CreatedAt: m.Timestamp,
	}
	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		out.Attachments = append(out.Attachments, transport.Attachment{
			ID:          a.ID,
			Filename:    a.Filename,
			URL:         a.URL,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}
	for _, e := range m.Embeds {
		if e != nil {
			out.Embeds = append(out.Embeds, toEmbed(e))
		}
	}
	if m.MessageReference != nil {
		out.ReferenceID = m.MessageReference.MessageID
	}
	return out
}

func toChannel(c *discordgo.Channel) transport.Channel {
	out := transport.Channel{
		ID:          c.ID,
		GuildID:     c.GuildID,
		ParentID:    c.ParentID,
		Name:        c.Name,
		AppliedTags: append([]string(nil), c.AppliedTags...),
	}
	switch c.Type {
	case discordgo.ChannelTypeDM, discordgo.ChannelTypeGroupDM:
		out.Kind = transport.ChannelKindDM
	case discordgo.ChannelTypeGuildForum:
		out.Kind = transport.ChannelKindForum
	case discordgo.ChannelTypeGuildPublicThread, discordgo.ChannelTypeGuildPrivateThread, discordgo.ChannelTypeGuildNewsThread:
		out.Kind = transport.ChannelKindThread
	default:
		out.Kind = transport.ChannelKindText
	}
	for _, tag := range c.AvailableTags {
		out.AvailableTags = append(out.AvailableTags, transport.Tag{
			ID:        tag.ID,
			Name:      tag.Name,
			Emoji:     tag.EmojiName,
			Moderated: tag.Moderated,
		})
	}
	if c.ThreadMetadata != nil {
		out.Archived = c.ThreadMetadata.Archived
		out.Locked = c.ThreadMetadata.Locked
	}
	return out
}

func fromTags(tags []transport.Tag) []discordgo.ForumTag {
	out := make([]discordgo.ForumTag, 0, len(tags))
	for _, t := range tags {
		out = append(out, discordgo.ForumTag{
			ID:        t.ID,
			Name:      t.Name,
			EmojiName: t.Emoji,
			Moderated: t.Moderated,
		})
	}
	return out
}

func toEmbed(e *discordgo.MessageEmbed) transport.Embed {
	out := transport.Embed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if ts, err := time.Parse(time.RFC3339, e.Timestamp); err == nil {
		out.Timestamp = ts
	}
	if e.Author != nil {
		out.Author = &transport.EmbedAuthor{Name: e.Author.Name, IconURL: e.Author.IconURL}
	}
	if e.Footer != nil {
		out.Footer = &transport.EmbedFooter{Text: e.Footer.Text, IconURL: e.Footer.IconURL}
	}
	if e.Image != nil {
		out.Image = e.Image.URL
	}
	for _, f := range e.Fields {
		if f != nil {
			out.Fields = append(out.Fields, transport.EmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
	}
	return out
}

func fromEmbeds(embeds []transport.Embed) []*discordgo.MessageEmbed {
	out := make([]*discordgo.MessageEmbed, 0, len(embeds))
	for _, e := range embeds {
		me := &discordgo.MessageEmbed{
			Title:       e.Title,
			Description: e.Description,
			Color:       e.Color,
		}
		if !e.Timestamp.IsZero() {
			me.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
		}
		if e.Author != nil {
			me.Author = &discordgo.MessageEmbedAuthor{Name: e.Author.Name, IconURL: e.Author.IconURL}
		}
		if e.Footer != nil {
			me.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer.Text, IconURL: e.Footer.IconURL}
		}
		if e.Image != "" {
			me.Image = &discordgo.MessageEmbedImage{URL: e.Image}
		}
		for _, f := range e.Fields {
			me.Fields = append(me.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		out = append(out, me)
	}
	return out
}

// fromButtons lays buttons out in a single action row. No buttons means no
// rows, which clears the controls of an edited message.
func fromButtons(buttons []transport.Button) []discordgo.MessageComponent {
	if len(buttons) == 0 {
		return []discordgo.MessageComponent{}
	}
	row := discordgo.ActionsRow{}
	for _, b := range buttons {
		row.Components = append(row.Components, discordgo.Button{
			CustomID: b.CustomID,
			Label:    b.Label,
			Style:    buttonStyle(b.Style),
			Disabled: b.Disabled,
		})
	}
	return []discordgo.MessageComponent{row}
}

func buttonStyle(s transport.ButtonStyle) discordgo.ButtonStyle {
	switch s {
	case transport.ButtonSecondary:
		return discordgo.SecondaryButton
	case transport.ButtonSuccess:
		return discordgo.SuccessButton
	case transport.ButtonDanger:
		return discordgo.DangerButton
	default:
		return discordgo.PrimaryButton
	}
}

func fromFiles(files []transport.File) []*discordgo.File {
	out := make([]*discordgo.File, 0, len(files))
	for _, f := range files {
		out = append(out, &discordgo.File{
			Name:        f.Name,
			ContentType: f.ContentType,
			Reader:      bytes.NewReader(f.Data),
		})
	}
	return out
}

func toMessageSend(channelID string, msg transport.OutboundMessage) *discordgo.MessageSend {
	send := &discordgo.MessageSend{
		Content: msg.Content,
		Embeds:  fromEmbeds(msg.Embeds),
		Files:   fromFiles(msg.Files),
		// Relayed text never pings anyone.
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
	if len(msg.Buttons) > 0 {
		send.Components = fromButtons(msg.Buttons)
	}
	if msg.ReplyTo != "" {
		send.Reference = &discordgo.MessageReference{MessageID: msg.ReplyTo, ChannelID: channelID}
	}
	return send
}

func toInteraction(i *discordgo.Interaction) (transport.Interaction, bool) {
	out := transport.Interaction{
		ID:        i.ID,
		ChannelID: i.ChannelID,
		GuildID:   i.GuildID,
	}
	switch {
	case i.Member != nil && i.Member.User != nil:
		out.User = toUser(i.Member.User)
	case i.User != nil:
		out.User = toUser(i.User)
	}
	if i.Message != nil {
		out.MessageID = i.Message.ID
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		out.Kind = transport.InteractionCommand
		out.Name = data.Name
		out.Options = map[string]string{}
		for _, opt := range data.Options {
			if opt == nil || opt.Value == nil {
				continue
			}
			if s, ok := opt.Value.(string); ok {
				out.Options[opt.Name] = s
			}
		}
	case discordgo.InteractionMessageComponent:
		out.Kind = transport.InteractionComponent
		out.CustomID = i.MessageComponentData().CustomID
	default:
		return transport.Interaction{}, false
	}
	return out, true
}

func toCommand(spec transport.CommandSpec) *discordgo.ApplicationCommand {
	cmd := &discordgo.ApplicationCommand{
		Name:        spec.Name,
		Description: spec.Description,
	}
	if spec.StaffOnly {
		perms := int64(discordgo.PermissionManageThreads)
		cmd.DefaultMemberPermissions = &perms
	}
	dm := spec.DirectMessages
	cmd.DMPermission = &dm
	for _, opt := range spec.Options {
		kind := discordgo.ApplicationCommandOptionString
		if opt.Kind == transport.OptionUser {
			kind = discordgo.ApplicationCommandOptionUser
		}
		cmd.Options = append(cmd.Options, &discordgo.ApplicationCommandOption{
			Type:        kind,
			Name:        opt.Name,
			Description: opt.Description,
			Required:    opt.Required,
		})
	}
	return cmd
}
