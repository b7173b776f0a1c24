// Package transporttest provides an in-memory Transport for tests.
package transporttest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Jochem-W/modmail/internal/snowflake"
	"github.com/Jochem-W/modmail/internal/transport"
)

type SentMessage struct {
	ChannelID string
	ID        string
	Message   transport.OutboundMessage
}

type MessageEditRecord struct {
	ChannelID string
	MessageID string
	Edit      transport.MessageEdit
}

type ChannelEditRecord struct {
	ChannelID string
	Edit      transport.ChannelEdit
}

type channel struct {
	info     transport.Channel
	messages []transport.Message
}

// Fake is a concurrency-safe in-memory chat service. Message ids are
// snowflakes minted from a clock that advances one second per message, so
// id order and timestamp order agree.
type Fake struct {
	mu sync.Mutex

	Bot transport.User

	clock      time.Time
	seq        int64
	channels   map[string]*channel
	users      map[string]transport.User
	dms        map[string]string
	guilds     map[string]transport.Guild
	moderators map[string]bool
	members    map[string][]string
	files      map[string][]byte
	buttons    map[string][]transport.Button

	// Unreachable makes sends to a user's private channel fail.
	Unreachable map[string]transport.UnreachableReason
	// SendErrors makes every send to a channel fail.
	SendErrors map[string]error

	Sent            []SentMessage
	MessageEdits    []MessageEditRecord
	DeletedMessages []string
	ChannelEdits    []ChannelEditRecord
	DeletedChannels []string
}

func New(start time.Time) *Fake {
	return &Fake{
		Bot:         transport.User{ID: "1", Username: "modmail", Bot: true},
		clock:       start,
		channels:    map[string]*channel{},
		users:       map[string]transport.User{},
		dms:         map[string]string{},
		guilds:      map[string]transport.Guild{},
		moderators:  map[string]bool{},
		members:     map[string][]string{},
		files:       map[string][]byte{},
		buttons:     map[string][]transport.Button{},
		Unreachable: map[string]transport.UnreachableReason{},
		SendErrors:  map[string]error{},
	}
}

// Now returns the time the next minted id will carry.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clock.Add(time.Duration(f.seq+1) * time.Second)
}

// Advance moves the clock forward.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = f.clock.Add(d)
}

func (f *Fake) mintLocked() (string, time.Time) {
	f.seq++
	at := f.clock.Add(time.Duration(f.seq) * time.Second)
	return snowflake.FromTime(at), at
}

func (f *Fake) AddGuild(g transport.Guild) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.guilds[g.ID] = g
}

func (f *Fake) AddForum(id, guildID string, available ...transport.Tag) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[id] = &channel{info: transport.Channel{
		ID:            id,
		GuildID:       guildID,
		Name:          "modmail",
		Kind:          transport.ChannelKindForum,
		AvailableTags: append([]transport.Tag(nil), available...),
	}}
}

func (f *Fake) AddChannel(info transport.Channel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[info.ID] = &channel{info: info}
}

func (f *Fake) AddUser(u transport.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
}

func (f *Fake) SetModerator(userID string, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moderators[userID] = ok
}

func (f *Fake) SetAttachment(url string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[url] = data
}

// Post stores an inbound message in a channel, minting its id and time
// when unset, and returns it as the service would deliver it.
func (f *Fake) Post(channelID string, msg transport.Message) transport.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := f.channels[channelID]
	if ch == nil {
		panic(fmt.Sprintf("transporttest: unknown channel %s", channelID))
	}
	if msg.ID == "" {
		msg.ID, msg.CreatedAt = f.mintLocked()
	}
	msg.ChannelID = channelID
	msg.GuildID = ch.info.GuildID
	f.insertLocked(ch, msg)
	return msg
}

// DMChannel returns the private channel of a user, creating it.
func (f *Fake) DMChannel(userID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dmLocked(userID)
}

func (f *Fake) dmLocked(userID string) string {
	if id, ok := f.dms[userID]; ok {
		return id
	}
	id := "dm-" + userID
	f.dms[userID] = id
	f.channels[id] = &channel{info: transport.Channel{ID: id, Kind: transport.ChannelKindDM}}
	return id
}

func (f *Fake) MessagesIn(channelID string) []transport.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := f.channels[channelID]
	if ch == nil {
		return nil
	}
	return append([]transport.Message(nil), ch.messages...)
}

func (f *Fake) SentTo(channelID string) []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []SentMessage
	for _, s := range f.Sent {
		if s.ChannelID == channelID {
			out = append(out, s)
		}
	}
	return out
}

func (f *Fake) Buttons(channelID, messageID string) []transport.Button {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.Button(nil), f.buttons[channelID+"/"+messageID]...)
}

func (f *Fake) ChannelInfo(channelID string) (transport.Channel, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := f.channels[channelID]
	if ch == nil {
		return transport.Channel{}, false
	}
	return ch.info, true
}

func (f *Fake) Members(threadID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.members[threadID]...)
}

func (f *Fake) Threads(forumID string) []transport.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []transport.Channel
	for _, ch := range f.channels {
		if ch.info.Kind == transport.ChannelKindThread && ch.info.ParentID == forumID {
			out = append(out, ch.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return snowflake.After(out[j].ID, out[i].ID) })
	return out
}

func (f *Fake) insertLocked(ch *channel, msg transport.Message) {
	ch.messages = append(ch.messages, msg)
	sort.SliceStable(ch.messages, func(i, j int) bool {
		return snowflake.After(ch.messages[j].ID, ch.messages[i].ID)
	})
}

func (f *Fake) Channel(_ context.Context, channelID string) (*transport.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := f.channels[channelID]
	if ch == nil {
		return nil, fmt.Errorf("channel %s: %w", channelID, transport.ErrNotFound)
	}
	info := ch.info
	return &info, nil
}

func (f *Fake) CreateForumThread(_ context.Context, forumID string, create transport.ThreadCreate) (*transport.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	forum := f.channels[forumID]
	if forum == nil || forum.info.Kind != transport.ChannelKindForum {
		return nil, fmt.Errorf("forum %s: %w", forumID, transport.ErrNotFound)
	}
	id, at := f.mintLocked()
	ch := &channel{info: transport.Channel{
		ID:          id,
		GuildID:     forum.info.GuildID,
		ParentID:    forumID,
		Name:        create.Name,
		Kind:        transport.ChannelKindThread,
		AppliedTags: append([]string(nil), create.Tags...),
	}}
	f.channels[id] = ch
	starter := f.messageFromOutboundLocked(ch, id, at, create.Message)
	f.insertLocked(ch, starter)
	f.Sent = append(f.Sent, SentMessage{ChannelID: id, ID: id, Message: create.Message})
	info := ch.info
	return &info, nil
}

func (f *Fake) EditChannel(_ context.Context, channelID string, edit transport.ChannelEdit) (*transport.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := f.channels[channelID]
	if ch == nil {
		return nil, fmt.Errorf("channel %s: %w", channelID, transport.ErrNotFound)
	}
	if edit.Name != nil {
		ch.info.Name = *edit.Name
	}
	if edit.AppliedTags != nil {
		ch.info.AppliedTags = append([]string(nil), (*edit.AppliedTags)...)
	}
	if edit.AvailableTags != nil {
		tags := append([]transport.Tag(nil), (*edit.AvailableTags)...)
		for i := range tags {
			if tags[i].ID == "" {
				tags[i].ID, _ = f.mintLocked()
			}
		}
		ch.info.AvailableTags = tags
	}
	if edit.Archived != nil {
		ch.info.Archived = *edit.Archived
	}
	if edit.Locked != nil {
		ch.info.Locked = *edit.Locked
	}
	f.ChannelEdits = append(f.ChannelEdits, ChannelEditRecord{ChannelID: channelID, Edit: edit})
	info := ch.info
	return &info, nil
}

func (f *Fake) DeleteChannel(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.channels[channelID] == nil {
		return fmt.Errorf("channel %s: %w", channelID, transport.ErrNotFound)
	}
	delete(f.channels, channelID)
	f.DeletedChannels = append(f.DeletedChannels, channelID)
	return nil
}

func (f *Fake) SendMessage(_ context.Context, channelID string, out transport.OutboundMessage) (*transport.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := f.channels[channelID]
	if ch == nil {
		return nil, fmt.Errorf("channel %s: %w", channelID, transport.ErrNotFound)
	}
	if err := f.SendErrors[channelID]; err != nil {
		return nil, err
	}
	for userID, dmID := range f.dms {
		if dmID != channelID {
			continue
		}
		if reason, ok := f.Unreachable[userID]; ok {
			return nil, &transport.UnreachableError{Reason: reason, Err: errors.New("cannot send messages to this user")}
		}
	}
	id, at := f.mintLocked()
	msg := f.messageFromOutboundLocked(ch, id, at, out)
	f.insertLocked(ch, msg)
	f.Sent = append(f.Sent, SentMessage{ChannelID: channelID, ID: id, Message: out})
	return &msg, nil
}

func (f *Fake) messageFromOutboundLocked(ch *channel, id string, at time.Time, out transport.OutboundMessage) transport.Message {
	if len(out.Buttons) > 0 {
		f.buttons[ch.info.ID+"/"+id] = append([]transport.Button(nil), out.Buttons...)
	}
	return transport.Message{
		ID:          id,
		ChannelID:   ch.info.ID,
		GuildID:     ch.info.GuildID,
		Author:      f.Bot,
		Content:     out.Content,
		Embeds:      append([]transport.Embed(nil), out.Embeds...),
		ReferenceID: out.ReplyTo,
		CreatedAt:   at,
	}
}

func (f *Fake) EditMessage(_ context.Context, channelID, messageID string, edit transport.MessageEdit) (*transport.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := f.channels[channelID]
	if ch == nil {
		return nil, fmt.Errorf("channel %s: %w", channelID, transport.ErrNotFound)
	}
	for i := range ch.messages {
		if ch.messages[i].ID != messageID {
			continue
		}
		if edit.Content != nil {
			ch.messages[i].Content = *edit.Content
		}
		if edit.Embeds != nil {
			ch.messages[i].Embeds = append([]transport.Embed(nil), (*edit.Embeds)...)
		}
		if edit.Buttons != nil {
			f.buttons[channelID+"/"+messageID] = append([]transport.Button(nil), (*edit.Buttons)...)
		}
		f.MessageEdits = append(f.MessageEdits, MessageEditRecord{ChannelID: channelID, MessageID: messageID, Edit: edit})
		msg := ch.messages[i]
		return &msg, nil
	}
	return nil, fmt.Errorf("message %s: %w", messageID, transport.ErrNotFound)
}

func (f *Fake) DeleteMessage(_ context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := f.channels[channelID]
	if ch == nil {
		return fmt.Errorf("channel %s: %w", channelID, transport.ErrNotFound)
	}
	for i := range ch.messages {
		if ch.messages[i].ID == messageID {
			ch.messages = append(ch.messages[:i], ch.messages[i+1:]...)
			f.DeletedMessages = append(f.DeletedMessages, messageID)
			return nil
		}
	}
	return fmt.Errorf("message %s: %w", messageID, transport.ErrNotFound)
}

func (f *Fake) Message(_ context.Context, channelID, messageID string) (*transport.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := f.channels[channelID]
	if ch == nil {
		return nil, fmt.Errorf("channel %s: %w", channelID, transport.ErrNotFound)
	}
	for _, m := range ch.messages {
		if m.ID == messageID {
			msg := m
			return &msg, nil
		}
	}
	return nil, fmt.Errorf("message %s: %w", messageID, transport.ErrNotFound)
}

func (f *Fake) Messages(_ context.Context, channelID string, cursor transport.Cursor) (transport.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := f.channels[channelID]
	if ch == nil {
		return transport.Page{}, fmt.Errorf("channel %s: %w", channelID, transport.ErrNotFound)
	}
	limit := cursor.Limit
	if limit <= 0 || limit > transport.MaxPageSize {
		limit = transport.MaxPageSize
	}

	if cursor.Before != "" {
		var older []transport.Message
		for _, m := range ch.messages {
			if snowflake.After(cursor.Before, m.ID) {
				older = append(older, m)
			}
		}
		more := len(older) > limit
		if more {
			older = older[len(older)-limit:]
		}
		return transport.Page{Messages: older, More: more}, nil
	}

	var newer []transport.Message
	for _, m := range ch.messages {
		if cursor.After == "" || snowflake.After(m.ID, cursor.After) {
			newer = append(newer, m)
		}
	}
	more := len(newer) > limit
	if more {
		newer = newer[:limit]
	}
	return transport.Page{Messages: newer, More: more}, nil
}

func (f *Fake) User(_ context.Context, userID string) (*transport.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, transport.ErrNotFound)
	}
	return &u, nil
}

func (f *Fake) UserChannel(_ context.Context, userID string) (*transport.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[userID]; !ok {
		return nil, &transport.UnreachableError{Reason: transport.UnreachableUnknownUser, Err: errors.New("unknown user")}
	}
	info := f.channels[f.dmLocked(userID)].info
	return &info, nil
}

func (f *Fake) AddThreadMember(_ context.Context, threadID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.channels[threadID] == nil {
		return fmt.Errorf("channel %s: %w", threadID, transport.ErrNotFound)
	}
	f.members[threadID] = append(f.members[threadID], userID)
	return nil
}

func (f *Fake) CanModerate(_ context.Context, _ string, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ok, known := f.moderators[userID]
	if !known {
		return false, fmt.Errorf("member %s: %w", userID, transport.ErrNotFound)
	}
	return ok, nil
}

func (f *Fake) Guild(_ context.Context, guildID string) (*transport.Guild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.guilds[guildID]
	if !ok {
		return nil, fmt.Errorf("guild %s: %w", guildID, transport.ErrNotFound)
	}
	return &g, nil
}

func (f *Fake) FetchAttachment(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[url]
	if !ok {
		return nil, fmt.Errorf("attachment %s: %w", url, transport.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

var _ transport.Transport = (*Fake)(nil)
