package format

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Jochem-W/modmail/internal/transport"
)

const (
	previewMaxRunes  = 100
	PreviewFieldName = "Last message"
)

// Preview returns a one-line summary of a message for the thread's
// introduction.
func Preview(text string, attachments int) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		if attachments == 1 {
			return "📎 1 attachment"
		}
		if attachments > 1 {
			return fmt.Sprintf("📎 %d attachments", attachments)
		}
		return "—"
	}
	return truncate(text, previewMaxRunes)
}

func StaffPreview(text string, attachments int) string {
	return "📤 Staff: " + Preview(text, attachments)
}

func UserPreview(text string, attachments int) string {
	return "📥 User: " + Preview(text, attachments)
}

func ClosedPreview(actor string) string {
	return "🔒 Closed by " + actor
}

// WithPreview returns a copy of embeds whose first embed shows line in the
// preview field.
func WithPreview(embeds []transport.Embed, line string) []transport.Embed {
	out := make([]transport.Embed, len(embeds))
	copy(out, embeds)
	if len(out) == 0 {
		out = append(out, transport.Embed{Color: ColorNeutral})
	}
	first := out[0]
	fields := make([]transport.EmbedField, 0, len(first.Fields)+1)
	replaced := false
	for _, f := range first.Fields {
		if f.Name == PreviewFieldName {
			f.Value = line
			replaced = true
		}
		fields = append(fields, f)
	}
	if !replaced {
		fields = append(fields, transport.EmbedField{Name: PreviewFieldName, Value: line})
	}
	first.Fields = fields
	out[0] = first
	return out
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}
