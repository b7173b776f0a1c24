// Package format turns relayed messages into the embeds shown on the other
// side of a thread, plus the notices and controls the relay posts.
package format

import (
	"context"
	"strings"
	"time"

	"github.com/Jochem-W/modmail/internal/transport"
)

type Direction string

const (
	// Sent marks a message written by the user.
	Sent Direction = "sent"
	// Received marks a message the user receives from staff.
	Received Direction = "received"
)

const (
	ColorSent     = 0x5865F2
	ColorReceived = 0x57F287
	ColorFailure  = 0xED4245
	ColorNeutral  = 0x99AAB5
	ColorWarning  = 0xFEE75C
)

// Branding is shown in the footer of messages delivered to users.
type Branding struct {
	Name    string
	IconURL string
}

type Fetcher interface {
	FetchAttachment(ctx context.Context, url string) ([]byte, error)
}

// Unit is the display form of one relayed message.
type Unit struct {
	// Body is nil when the message has no text.
	Body       *string
	AuthorName string
	AuthorIcon string
	Color      int
	Timestamp  time.Time
	Footer     *transport.EmbedFooter
	Files      []transport.File
	// Images lists the names of Files shown inline.
	Images []string
}

// Message formats msg for the opposite side of the thread. Attachments are
// re-uploaded as <attachment id>_<filename>; the ones that cannot be
// fetched are dropped.
func Message(ctx context.Context, fetcher Fetcher, msg transport.Message, dir Direction, brand *Branding) Unit {
	u := Unit{
		AuthorName: msg.Author.Name(),
		AuthorIcon: msg.Author.AvatarURL,
		Color:      ColorSent,
		Timestamp:  msg.CreatedAt,
	}
	if dir == Received {
		u.Color = ColorReceived
		if brand != nil && strings.TrimSpace(brand.Name) != "" {
			u.Footer = &transport.EmbedFooter{Text: brand.Name, IconURL: brand.IconURL}
		}
	}
	if body := strings.TrimSpace(msg.Content); body != "" {
		u.Body = &body
	}

	for _, att := range msg.Attachments {
		if fetcher == nil || strings.TrimSpace(att.URL) == "" {
			continue
		}
		data, err := fetcher.FetchAttachment(ctx, att.URL)
		if err != nil {
			continue
		}
		name := att.ID + "_" + att.Filename
		u.Files = append(u.Files, transport.File{
			Name:        name,
			ContentType: att.ContentType,
			Data:        data,
		})
		if isImage(att.ContentType) {
			u.Images = append(u.Images, name)
		}
	}
	return u
}

// Outbound renders the unit as a message: one embed carrying the text and
// the first image, and one extra embed per further image.
func (u Unit) Outbound() transport.OutboundMessage {
	main := transport.Embed{
		Color:     u.Color,
		Timestamp: u.Timestamp,
		Footer:    u.Footer,
	}
	if u.Body != nil {
		main.Description = *u.Body
	}
	if u.AuthorName != "" {
		main.Author = &transport.EmbedAuthor{Name: u.AuthorName, IconURL: u.AuthorIcon}
	}
	embeds := []transport.Embed{main}
	for i, name := range u.Images {
		if i == 0 {
			embeds[0].Image = "attachment://" + name
			continue
		}
		embeds = append(embeds, transport.Embed{Color: u.Color, Image: "attachment://" + name})
	}

	files := make([]transport.File, len(u.Files))
	copy(files, u.Files)
	return transport.OutboundMessage{Embeds: embeds, Files: files}
}

func isImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}
