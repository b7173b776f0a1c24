package outputfmt

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeRemovesHostAndRedactsQuery(t *testing.T) {
	in := `GET "https://cdn.discordapp.com/attachments/1/2/a.png?ex=65&hm=abc&signature=xyz": context deadline exceeded`

	out := Sanitize(in)
	if strings.Contains(out, "cdn.discordapp.com") {
		t.Fatalf("host should be removed, got %q", out)
	}
	if strings.Contains(out, "xyz") {
		t.Fatalf("signature should be redacted, got %q", out)
	}
	if !strings.Contains(out, `GET "/attachments/1/2/a.png?`) {
		t.Fatalf("path should be kept, got %q", out)
	}
	if !strings.Contains(out, "hm=abc") {
		t.Fatalf("non-sensitive query should be kept, got %q", out)
	}
}

func TestSanitizeRedactsInteractionAndWebhookTokens(t *testing.T) {
	cases := []struct {
		name string
		in   string
		keep string
	}{
		{
			name: "webhook",
			in:   `PATCH https://discord.com/api/v10/webhooks/1234567890/aW50ZXJhY3Rpb246MTIzNDU2Nzg5MDphYmNkZWY/messages/@original: 404`,
			keep: "/api/v10/webhooks/1234567890/[redacted]/messages/@original",
		},
		{
			name: "interaction",
			in:   `POST https://discord.com/api/v10/interactions/99887766/aW50ZXJhY3Rpb246OTk4ODc3NjY6c2VjcmV0/callback failed`,
			keep: "/api/v10/interactions/99887766/[redacted]/callback",
		},
		{
			name: "bot header",
			in:   `request with Authorization: Bot MTIzNDU2Nzg5MDEyMzQ1Njc4.GaBcDe.abcdefghijklmnop rejected`,
			keep: "Bot [redacted] rejected",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := Sanitize(tc.in)
			if !strings.Contains(out, tc.keep) {
				t.Fatalf("Sanitize() = %q, want it to contain %q", out, tc.keep)
			}
		})
	}
}

func TestErrorText(t *testing.T) {
	if got := ErrorText(nil); got != "" {
		t.Fatalf("nil error should format as empty string, got %q", got)
	}
	got := ErrorText(errors.New(`Post "https://example.com/api?apikey=123": bad gateway`))
	if strings.Contains(got, "example.com") || strings.Contains(got, "123") {
		t.Fatalf("ErrorText() = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("héllo", 10); got != "héllo" {
		t.Fatalf("Truncate() = %q", got)
	}
	if got := Truncate("héllo world", 5); got != "héll…" {
		t.Fatalf("Truncate() = %q", got)
	}
}
