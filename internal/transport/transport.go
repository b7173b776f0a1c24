// Package transport describes the chat service the relay talks to. Types are
// service-neutral; the discord subpackage maps them onto the Discord API.
package transport

import (
	"context"
	"strings"
	"time"
)

// MaxPageSize is the largest page Messages will return.
const MaxPageSize = 100

type User struct {
	ID          string
	Username    string
	DisplayName string
	AvatarURL   string
	Bot         bool
	CreatedAt   time.Time
}

func (u User) Name() string {
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}
	return strings.TrimSpace(u.Username)
}

func (u User) Mention() string {
	return "<@" + u.ID + ">"
}

type Attachment struct {
	ID          string
	Filename    string
	URL         string
	ContentType string
	Size        int
}

type Message struct {
	ID          string
	ChannelID   string
	GuildID     string
	Author      User
	Content     string
	Attachments []Attachment
	Embeds      []Embed
	// ReferenceID is the id of the message this one replies to.
	ReferenceID string
	CreatedAt   time.Time
}

// IsDirect reports whether the message was sent in a private channel.
func (m Message) IsDirect() bool {
	return strings.TrimSpace(m.GuildID) == ""
}

// Empty reports whether the message carries neither text nor attachments.
func (m Message) Empty() bool {
	return strings.TrimSpace(m.Content) == "" && len(m.Attachments) == 0
}

type ChannelKind int

const (
	ChannelKindText ChannelKind = iota
	ChannelKindDM
	ChannelKindForum
	ChannelKindThread
)

type Channel struct {
	ID            string
	GuildID       string
	ParentID      string
	Name          string
	Kind          ChannelKind
	AppliedTags   []string
	AvailableTags []Tag
	Archived      bool
	Locked        bool
}

type Tag struct {
	ID        string
	Name      string
	Emoji     string
	Moderated bool
}

type Guild struct {
	ID      string
	Name    string
	IconURL string
}

type Embed struct {
	Title       string
	Description string
	Color       int
	Timestamp   time.Time
	Author      *EmbedAuthor
	Footer      *EmbedFooter
	// Image is a URL, or attachment://<name> for an uploaded file.
	Image  string
	Fields []EmbedField
}

type EmbedAuthor struct {
	Name    string
	IconURL string
}

type EmbedFooter struct {
	Text    string
	IconURL string
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota
	ButtonSecondary
	ButtonSuccess
	ButtonDanger
)

type Button struct {
	CustomID string
	Label    string
	Style    ButtonStyle
	Disabled bool
}

type OutboundMessage struct {
	Content string
	Embeds  []Embed
	Files   []File
	Buttons []Button
	// ReplyTo is the id of a message in the same channel to reply to.
	ReplyTo string
}

// MessageEdit replaces the non-nil parts of a message. A non-nil empty
// Buttons slice removes every control.
type MessageEdit struct {
	Content *string
	Embeds  *[]Embed
	Buttons *[]Button
}

// Cursor selects a page of history. Exactly one of After and Before should
// be set; Limit is clamped to MaxPageSize.
type Cursor struct {
	After  string
	Before string
	Limit  int
}

// Page holds messages oldest first. More reports that further pages may
// exist in the direction of the cursor.
type Page struct {
	Messages []Message
	More     bool
}

type ThreadCreate struct {
	Name    string
	Tags    []string
	Message OutboundMessage
}

type ChannelEdit struct {
	Name          *string
	AppliedTags   *[]string
	AvailableTags *[]Tag
	Archived      *bool
	Locked        *bool
}

// Transport is every call the relay core makes against the chat service.
// All methods return errors from the taxonomy in errors.go where the
// failure is recognised.
type Transport interface {
	Channel(ctx context.Context, channelID string) (*Channel, error)
	CreateForumThread(ctx context.Context, forumID string, create ThreadCreate) (*Channel, error)
	EditChannel(ctx context.Context, channelID string, edit ChannelEdit) (*Channel, error)
	DeleteChannel(ctx context.Context, channelID string) error

	SendMessage(ctx context.Context, channelID string, msg OutboundMessage) (*Message, error)
	EditMessage(ctx context.Context, channelID, messageID string, edit MessageEdit) (*Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	Message(ctx context.Context, channelID, messageID string) (*Message, error)
	Messages(ctx context.Context, channelID string, cursor Cursor) (Page, error)

	User(ctx context.Context, userID string) (*User, error)
	UserChannel(ctx context.Context, userID string) (*Channel, error)
	AddThreadMember(ctx context.Context, threadID, userID string) error
	CanModerate(ctx context.Context, guildID, userID string) (bool, error)
	Guild(ctx context.Context, guildID string) (*Guild, error)

	FetchAttachment(ctx context.Context, url string) ([]byte, error)
}
