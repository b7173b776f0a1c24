package report

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Jochem-W/modmail/internal/transport"
	"github.com/Jochem-W/modmail/internal/transport/transporttest"
)

func TestReportLogsAndPostsSanitizedEmbed(t *testing.T) {
	fake := transporttest.New(time.Now())
	fake.AddChannel(transport.Channel{ID: "log", Kind: transport.ChannelKindText})
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	r := New(logger, fake, "log")
	err := errors.New(`Get "https://cdn.example.com/a.png?token=abc": timeout`)
	id := r.Report(context.Background(), "relay_job_error", err, "message_id", "42")
	if id == "" {
		t.Fatalf("Report() returned an empty id")
	}

	if !strings.Contains(buf.String(), "relay_job_error") || !strings.Contains(buf.String(), id) {
		t.Fatalf("log output = %q", buf.String())
	}
	sent := fake.SentTo("log")
	if len(sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(sent))
	}
	embed := sent[0].Message.Embeds[0]
	if strings.Contains(embed.Description, "cdn.example.com") || strings.Contains(embed.Description, "abc") {
		t.Fatalf("description not sanitized: %q", embed.Description)
	}
	if embed.Footer == nil || embed.Footer.Text != id {
		t.Fatalf("footer = %+v, want correlation id", embed.Footer)
	}
	if len(embed.Fields) != 1 || embed.Fields[0].Name != "message_id" || embed.Fields[0].Value != "42" {
		t.Fatalf("fields = %+v", embed.Fields)
	}
}

func TestReportSurvivesSendFailure(t *testing.T) {
	fake := transporttest.New(time.Now())
	var buf bytes.Buffer
	r := New(slog.New(slog.NewTextHandler(&buf, nil)), fake, "missing")

	if id := r.Report(context.Background(), "x", errors.New("boom")); id == "" {
		t.Fatalf("Report() returned an empty id")
	}
	if !strings.Contains(buf.String(), "report_send_error") {
		t.Fatalf("send failure not logged: %q", buf.String())
	}
}

func TestNilReporter(t *testing.T) {
	var r *Reporter
	if id := r.Report(context.Background(), "x", errors.New("boom")); id != "" {
		t.Fatalf("nil reporter returned %q", id)
	}
	if id := New(nil, nil, "").Report(context.Background(), "x", nil); id != "" {
		t.Fatalf("nil error returned %q", id)
	}
}
