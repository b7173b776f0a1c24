package tags

import (
	"context"
	"testing"
	"time"

	"github.com/Jochem-W/modmail/internal/transport"
	"github.com/Jochem-W/modmail/internal/transport/transporttest"
)

func TestSyncCreatesMissingTagsInOneEdit(t *testing.T) {
	fake := transporttest.New(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	fake.AddForum("forum", "guild",
		transport.Tag{ID: "t-open", Name: "open", Emoji: "🟢"},
		transport.Tag{ID: "t-other", Name: "Bug", Emoji: "🐛"},
	)

	reg, err := Sync(context.Background(), fake, "forum")
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if len(fake.ChannelEdits) != 1 {
		t.Fatalf("channel edits = %d, want 1", len(fake.ChannelEdits))
	}
	if id, _ := reg.ID(Open); id != "t-open" {
		t.Fatalf("open id = %q, want existing tag reused", id)
	}
	for _, def := range Canonical {
		if id, ok := reg.ID(def.Status); !ok || id == "" {
			t.Fatalf("status %s has no tag id", def.Status)
		}
	}

	forum, _ := fake.ChannelInfo("forum")
	if len(forum.AvailableTags) != 5 {
		t.Fatalf("available tags = %d, want 5 (unrelated tags kept)", len(forum.AvailableTags))
	}
}

func TestSyncNoEditWhenComplete(t *testing.T) {
	fake := transporttest.New(time.Now())
	var existing []transport.Tag
	for i, def := range Canonical {
		existing = append(existing, transport.Tag{ID: string(rune('a' + i)), Name: def.Name, Emoji: def.Emoji})
	}
	fake.AddForum("forum", "guild", existing...)

	reg, err := Sync(context.Background(), fake, "forum")
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if len(fake.ChannelEdits) != 0 {
		t.Fatalf("channel edits = %d, want 0", len(fake.ChannelEdits))
	}
	if got := reg.IDs(AwaitingUser, Closed); len(got) != 2 || got[0] != "c" || got[1] != "d" {
		t.Fatalf("IDs() = %v", got)
	}
}

func TestSyncRequiresEmojiMatch(t *testing.T) {
	fake := transporttest.New(time.Now())
	fake.AddForum("forum", "guild", transport.Tag{ID: "x", Name: "Open", Emoji: "✅"})

	reg, err := Sync(context.Background(), fake, "forum")
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if id, _ := reg.ID(Open); id == "x" {
		t.Fatalf("tag with a different emoji was reused")
	}
}

func TestSyncRejectsNonForum(t *testing.T) {
	fake := transporttest.New(time.Now())
	fake.AddChannel(transport.Channel{ID: "text", Kind: transport.ChannelKindText})

	if _, err := Sync(context.Background(), fake, "text"); err == nil {
		t.Fatalf("Sync() on a text channel should fail")
	}
	if _, err := Sync(context.Background(), fake, "missing"); err == nil {
		t.Fatalf("Sync() on a missing channel should fail")
	}
}

func TestApplyReplacesThreadTags(t *testing.T) {
	fake := transporttest.New(time.Now())
	fake.AddForum("forum", "guild")
	thread, err := fake.CreateForumThread(context.Background(), "forum", transport.ThreadCreate{Name: "x", Tags: []string{"old"}})
	if err != nil {
		t.Fatalf("CreateForumThread() error = %v", err)
	}
	reg := NewRegistry(map[Status]string{Open: "1", AwaitingUser: "3"})

	if err := Apply(context.Background(), fake, reg, thread.ID, Open, AwaitingUser, Closed); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	got, _ := fake.ChannelInfo(thread.ID)
	if len(got.AppliedTags) != 2 || got.AppliedTags[0] != "1" || got.AppliedTags[1] != "3" {
		t.Fatalf("applied tags = %v", got.AppliedTags)
	}
}
