// Package discord implements the transport on top of discordgo.
package discord

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/Jochem-W/modmail/internal/snowflake"
	"github.com/Jochem-W/modmail/internal/transport"
	"github.com/bwmarrin/discordgo"
)

const (
	maxAttachmentBytes = 25 << 20
	// threadArchiveMinutes is the longest auto-archive duration allowed.
	threadArchiveMinutes = 10080

	moderationPermissions = discordgo.PermissionAdministrator |
		discordgo.PermissionModerateMembers |
		discordgo.PermissionManageThreads
)

type Adapter struct {
	session *discordgo.Session
	client  *http.Client
}

func New(session *discordgo.Session) *Adapter {
	client := session.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &Adapter{session: session, client: client}
}

func (a *Adapter) Channel(ctx context.Context, channelID string) (*transport.Channel, error) {
	c, err := a.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("fetch channel "+channelID, err)
	}
	out := toChannel(c)
	return &out, nil
}

func (a *Adapter) CreateForumThread(ctx context.Context, forumID string, create transport.ThreadCreate) (*transport.Channel, error) {
	c, err := a.session.ForumThreadStartComplex(forumID, &discordgo.ThreadStart{
		Name:                create.Name,
		AutoArchiveDuration: threadArchiveMinutes,
		AppliedTags:         create.Tags,
	}, toMessageSend("", create.Message), discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("start forum thread", err)
	}
	out := toChannel(c)
	return &out, nil
}

func (a *Adapter) EditChannel(ctx context.Context, channelID string, edit transport.ChannelEdit) (*transport.Channel, error) {
	data := &discordgo.ChannelEdit{
		Archived:    edit.Archived,
		Locked:      edit.Locked,
		AppliedTags: edit.AppliedTags,
	}
	if edit.Name != nil {
		data.Name = *edit.Name
	}
	if edit.AvailableTags != nil {
		tags := fromTags(*edit.AvailableTags)
		data.AvailableTags = &tags
	}
	c, err := a.session.ChannelEditComplex(channelID, data, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("edit channel "+channelID, err)
	}
	out := toChannel(c)
	return &out, nil
}

func (a *Adapter) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := a.session.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return wrap("delete channel "+channelID, err)
}

func (a *Adapter) SendMessage(ctx context.Context, channelID string, msg transport.OutboundMessage) (*transport.Message, error) {
	m, err := a.session.ChannelMessageSendComplex(channelID, toMessageSend(channelID, msg), discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("send message to "+channelID, err)
	}
	out := toMessage(m)
	return &out, nil
}

func (a *Adapter) EditMessage(ctx context.Context, channelID, messageID string, edit transport.MessageEdit) (*transport.Message, error) {
	data := &discordgo.MessageEdit{
		ID:      messageID,
		Channel: channelID,
		Content: edit.Content,
	}
	if edit.Embeds != nil {
		embeds := fromEmbeds(*edit.Embeds)
		data.Embeds = &embeds
	}
	if edit.Buttons != nil {
		components := fromButtons(*edit.Buttons)
		data.Components = &components
	}
	m, err := a.session.ChannelMessageEditComplex(data, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("edit message "+messageID, err)
	}
	out := toMessage(m)
	return &out, nil
}

func (a *Adapter) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return wrap("delete message "+messageID, a.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
}

func (a *Adapter) Message(ctx context.Context, channelID, messageID string) (*transport.Message, error) {
	m, err := a.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("fetch message "+messageID, err)
	}
	out := toMessage(m)
	if out.GuildID == "" {
		if out.GuildID, err = a.guildOf(ctx, channelID); err != nil {
			return nil, err
		}
	}
	return &out, nil
}

// Messages fetches one page of history. Fetched messages carry no guild
// id, so it is filled in from the channel.
func (a *Adapter) Messages(ctx context.Context, channelID string, cursor transport.Cursor) (transport.Page, error) {
	limit := cursor.Limit
	if limit <= 0 || limit > transport.MaxPageSize {
		limit = transport.MaxPageSize
	}
	guildID, err := a.guildOf(ctx, channelID)
	if err != nil {
		return transport.Page{}, err
	}
	raw, err := a.session.ChannelMessages(channelID, limit, cursor.Before, cursor.After, "", discordgo.WithContext(ctx))
	if err != nil {
		return transport.Page{}, wrap("fetch history of "+channelID, err)
	}
	msgs := make([]transport.Message, 0, len(raw))
	for _, m := range raw {
		msg := toMessage(m)
		if msg.GuildID == "" {
			msg.GuildID = guildID
		}
		msgs = append(msgs, msg)
	}
	sort.Slice(msgs, func(i, j int) bool { return snowflake.After(msgs[j].ID, msgs[i].ID) })
	return transport.Page{Messages: msgs, More: len(raw) == limit}, nil
}

func (a *Adapter) guildOf(ctx context.Context, channelID string) (string, error) {
	if a.session.State != nil {
		if c, err := a.session.State.Channel(channelID); err == nil {
			return c.GuildID, nil
		}
	}
	c, err := a.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return "", wrap("fetch channel "+channelID, err)
	}
	return c.GuildID, nil
}

func (a *Adapter) User(ctx context.Context, userID string) (*transport.User, error) {
	u, err := a.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("fetch user "+userID, err)
	}
	out := toUser(u)
	return &out, nil
}

func (a *Adapter) UserChannel(ctx context.Context, userID string) (*transport.Channel, error) {
	c, err := a.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("open private channel with "+userID, err)
	}
	out := toChannel(c)
	return &out, nil
}

func (a *Adapter) AddThreadMember(ctx context.Context, threadID, userID string) error {
	return wrap("add "+userID+" to "+threadID, a.session.ThreadMemberAdd(threadID, userID, discordgo.WithContext(ctx)))
}

// CanModerate reports whether a member's roles grant any moderation
// permission. The guild owner always can.
func (a *Adapter) CanModerate(ctx context.Context, guildID, userID string) (bool, error) {
	member, err := a.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return false, wrap("fetch member "+userID, err)
	}
	guild, err := a.session.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return false, wrap("fetch guild "+guildID, err)
	}
	if guild.OwnerID == userID {
		return true, nil
	}
	roles, err := a.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return false, wrap("fetch roles of "+guildID, err)
	}
	return permissionsOf(member, roles, guildID)&moderationPermissions != 0, nil
}

func permissionsOf(member *discordgo.Member, roles []*discordgo.Role, guildID string) int64 {
	held := map[string]bool{guildID: true}
	for _, id := range member.Roles {
		held[id] = true
	}
	var perms int64
	for _, r := range roles {
		if held[r.ID] {
			perms |= r.Permissions
		}
	}
	return perms
}

func (a *Adapter) Guild(ctx context.Context, guildID string) (*transport.Guild, error) {
	g, err := a.session.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("fetch guild "+guildID, err)
	}
	return &transport.Guild{ID: g.ID, Name: g.Name, IconURL: g.IconURL(avatarSize)}, nil
}

func (a *Adapter) FetchAttachment(ctx context.Context, url string) ([]byte, error) {
	url = strings.TrimSpace(url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch attachment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("fetch attachment: %w", transport.ErrNotFound)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("fetch attachment: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	if len(data) > maxAttachmentBytes {
		return nil, fmt.Errorf("attachment exceeds %d bytes", maxAttachmentBytes)
	}
	return data, nil
}

var _ transport.Transport = (*Adapter)(nil)
