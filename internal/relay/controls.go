package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/Jochem-W/modmail/internal/format"
	"github.com/Jochem-W/modmail/internal/transport"
)

// Editor is the part of the transport needed to maintain thread controls.
type Editor interface {
	Message(ctx context.Context, channelID, messageID string) (*transport.Message, error)
	EditMessage(ctx context.Context, channelID, messageID string, edit transport.MessageEdit) (*transport.Message, error)
}

// DisableClose greys out a close control. A deleted control is ignored.
func DisableClose(ctx context.Context, e Editor, channelID string, messageID *string) error {
	if messageID == nil || *messageID == "" {
		return nil
	}
	button := format.CloseButton()
	button.Disabled = true
	buttons := []transport.Button{button}
	_, err := e.EditMessage(ctx, channelID, *messageID, transport.MessageEdit{Buttons: &buttons})
	if err != nil && !errors.Is(err, transport.ErrNotFound) {
		return fmt.Errorf("disable close control %s: %w", *messageID, err)
	}
	return nil
}

// UpdatePreview rewrites the last-message line of a thread's starter
// message, whose id equals the thread id.
func UpdatePreview(ctx context.Context, e Editor, threadID, line string) error {
	starter, err := e.Message(ctx, threadID, threadID)
	if errors.Is(err, transport.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch starter message of %s: %w", threadID, err)
	}
	embeds := format.WithPreview(starter.Embeds, line)
	if _, err := e.EditMessage(ctx, threadID, threadID, transport.MessageEdit{Embeds: &embeds}); err != nil && !errors.Is(err, transport.ErrNotFound) {
		return fmt.Errorf("update preview of %s: %w", threadID, err)
	}
	return nil
}
