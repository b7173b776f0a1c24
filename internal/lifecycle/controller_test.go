package lifecycle

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Jochem-W/modmail/db"
	"github.com/Jochem-W/modmail/internal/format"
	"github.com/Jochem-W/modmail/internal/relay"
	"github.com/Jochem-W/modmail/internal/snowflake"
	"github.com/Jochem-W/modmail/internal/tags"
	"github.com/Jochem-W/modmail/internal/transport"
	"github.com/Jochem-W/modmail/internal/transport/transporttest"
)

var (
	base      = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	requester = transport.User{ID: "42", Username: "alice", DisplayName: "Alice"}
	moderator = transport.User{ID: "7", Username: "mod"}
)

type recordingQueue struct {
	mu   sync.Mutex
	msgs []transport.Message
}

func (q *recordingQueue) Replay(msgs ...transport.Message) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msgs...)
	return len(msgs)
}

func (q *recordingQueue) contents() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.msgs))
	for _, m := range q.msgs {
		out = append(out, m.Content)
	}
	return out
}

type fixture struct {
	fake    *transporttest.Fake
	store   *db.Store
	reg     tags.Registry
	queue   *recordingQueue
	prompts *relay.Prompts
	ctrl    *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := transporttest.New(base)
	fake.AddForum("forum", "guild")
	fake.AddUser(requester)
	fake.AddUser(moderator)

	cfg := db.DefaultConfig()
	cfg.DSN = filepath.Join(t.TempDir(), "modmail.sqlite")
	gdb, err := db.Open(cfg, "")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })

	reg, err := tags.Sync(context.Background(), fake, "forum")
	if err != nil {
		t.Fatalf("sync tags: %v", err)
	}
	f := &fixture{
		fake:    fake,
		store:   db.NewStore(gdb),
		reg:     reg,
		queue:   &recordingQueue{},
		prompts: relay.NewPrompts(),
	}
	f.ctrl = New(Options{
		Transport: fake,
		Store:     f.store,
		Queue:     f.queue,
		Tags:      reg,
		Prompts:   f.prompts,
		GuildID:   "guild",
		ForumID:   "forum",
		Branding:  &format.Branding{Name: "Test Guild"},
		Now:       fake.Now,
	})
	return f
}

func (f *fixture) open(t *testing.T) Outcome {
	t.Helper()
	out, err := f.ctrl.Open(context.Background(), requester)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !out.OK {
		t.Fatalf("Open() outcome = %+v", out)
	}
	return out
}

func TestOpenCreatesThread(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fake.SetModerator(moderator.ID, true)
	f.fake.SetModerator("8", false)
	for _, id := range []string{moderator.ID, "8", "9"} {
		if _, err := f.store.TogglePing(ctx, id); err != nil {
			t.Fatalf("toggle ping: %v", err)
		}
	}
	dmID := f.fake.DMChannel(requester.ID)
	prompt, err := f.fake.SendMessage(ctx, dmID, format.Prompt())
	if err != nil {
		t.Fatalf("send prompt: %v", err)
	}
	f.prompts.Swap(requester.ID, relay.PromptRef{ChannelID: dmID, MessageID: prompt.ID})

	out := f.open(t)
	if out.Verb != VerbOpened || out.ThreadID == "" {
		t.Fatalf("outcome = %+v", out)
	}

	ch, ok := f.fake.ChannelInfo(out.ThreadID)
	if !ok || ch.ParentID != "forum" || ch.Name != "Alice" {
		t.Fatalf("thread channel = %+v", ch)
	}
	if want := f.reg.IDs(tags.Open, tags.AwaitingStaff); len(ch.AppliedTags) != 2 || ch.AppliedTags[0] != want[0] || ch.AppliedTags[1] != want[1] {
		t.Fatalf("tags = %v, want %v", ch.AppliedTags, want)
	}
	stored, err := f.store.OpenThreadByUser(ctx, requester.ID)
	if err != nil || stored.ID != out.ThreadID {
		t.Fatalf("stored thread = %+v, %v", stored, err)
	}
	if members := f.fake.Members(out.ThreadID); len(members) != 1 || members[0] != moderator.ID {
		t.Fatalf("members = %v, want only the moderator", members)
	}
	if pings, _ := f.store.Pings(ctx); len(pings) != 1 || pings[0] != moderator.ID {
		t.Fatalf("pings after prune = %v", pings)
	}

	sent := f.fake.SentTo(dmID)
	if last := sent[len(sent)-1]; last.Message.Embeds[0].Title != "Thread opened" {
		t.Fatalf("confirmation = %+v", last.Message.Embeds[0])
	}
	if len(f.fake.DeletedMessages) != 1 || f.fake.DeletedMessages[0] != prompt.ID {
		t.Fatalf("pending prompt not deleted: %v", f.fake.DeletedMessages)
	}
	if _, ok := f.prompts.Forget(requester.ID); ok {
		t.Fatalf("prompt still pending")
	}
}

func TestOpenRejectsBlockedUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.ctrl.ToggleBlock(ctx, requester.ID); err != nil {
		t.Fatalf("ToggleBlock() error = %v", err)
	}

	out, err := f.ctrl.Open(ctx, requester)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if out.OK || out.Reason != ReasonBlocked {
		t.Fatalf("outcome = %+v, want blocked", out)
	}
	if threads := f.fake.Threads("forum"); len(threads) != 0 {
		t.Fatalf("threads created for blocked user: %v", threads)
	}
}

func TestOpenRejectsSecondThreadWithHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.open(t)
	if _, err := f.ctrl.Close(ctx, first.ThreadID, moderator); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	second := f.open(t)
	if second.History.ThreadIDs[0] != first.ThreadID {
		t.Fatalf("intro history = %+v, want %s", second.History, first.ThreadID)
	}

	out, err := f.ctrl.Open(ctx, requester)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if out.OK || out.Reason != ReasonAlreadyOpen || out.ThreadID != second.ThreadID {
		t.Fatalf("outcome = %+v", out)
	}
	if len(out.History.ThreadIDs) != 1 || out.History.ThreadIDs[0] != first.ThreadID {
		t.Fatalf("history = %+v, want only the closed thread", out.History)
	}
}

func TestConcurrentOpensYieldOneThread(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const n = 5
	outcomes := make([]Outcome, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = f.ctrl.Open(ctx, requester)
		}(i)
	}
	wg.Wait()

	opened := 0
	for i := range outcomes {
		if errs[i] != nil {
			t.Fatalf("Open() error = %v", errs[i])
		}
		switch {
		case outcomes[i].OK:
			opened++
		case outcomes[i].Reason != ReasonAlreadyOpen:
			t.Fatalf("outcome = %+v", outcomes[i])
		}
	}
	if opened != 1 {
		t.Fatalf("opened = %d, want 1", opened)
	}
	threads, err := f.store.ThreadsByUser(ctx, requester.ID)
	if err != nil || len(threads) != 1 {
		t.Fatalf("stored threads = %d, %v", len(threads), err)
	}
	if got := len(f.fake.Threads("forum")); got != 1 {
		t.Fatalf("surviving channels = %d, want 1 (losers deleted)", got)
	}
}

func TestOpenBackfillWalksToLastBotNotice(t *testing.T) {
	f := newFixture(t)
	dmID := f.fake.DMChannel(requester.ID)
	bot := f.fake.Bot

	f.fake.Post(dmID, transport.Message{Author: requester, Content: "ancient"})
	f.fake.Post(dmID, transport.Message{Author: bot, Content: "thread closed"})
	a := f.fake.Post(dmID, transport.Message{Author: requester, Content: "first"})
	f.fake.Post(dmID, transport.Message{Author: bot, Content: "prompt", ReferenceID: a.ID})
	f.fake.Post(dmID, transport.Message{Author: requester, Content: "second"})

	out := f.open(t)

	got := f.queue.contents()
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("backfill = %v, want [first second]", got)
	}
	stored, _ := f.store.Thread(context.Background(), out.ThreadID)
	if !snowflake.After(a.ID, stored.Last) {
		t.Fatalf("cursor %s would skip backfilled message %s", stored.Last, a.ID)
	}
}

func TestOpenBackfillWalksWholeHistoryWithoutBoundary(t *testing.T) {
	f := newFixture(t)
	dmID := f.fake.DMChannel(requester.ID)
	for i := 0; i < transport.MaxPageSize+5; i++ {
		f.fake.Post(dmID, transport.Message{Author: requester, Content: "m"})
	}

	out := f.open(t)
	if got := len(f.queue.contents()); got != transport.MaxPageSize+5 {
		t.Fatalf("backfill = %d messages, want %d", got, transport.MaxPageSize+5)
	}
	stored, _ := f.store.Thread(context.Background(), out.ThreadID)
	if stored.Last != walkStart {
		t.Fatalf("cursor = %s, want %s", stored.Last, walkStart)
	}
}

func TestOpenBackfillAfterPriorThreadIsWindowed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	dmID := f.fake.DMChannel(requester.ID)

	priorLast := snowflake.FromTime(base.Add(-3 * time.Hour))
	if _, err := f.store.CreateThread(ctx, "100", requester.ID, priorLast); err != nil {
		t.Fatalf("create prior thread: %v", err)
	}
	if _, err := f.store.CloseThread(ctx, "100"); err != nil {
		t.Fatalf("close prior thread: %v", err)
	}
	stale := base.Add(-2 * time.Hour)
	f.fake.Post(dmID, transport.Message{ID: snowflake.FromTime(stale), CreatedAt: stale, Author: requester, Content: "stale"})
	f.fake.Post(dmID, transport.Message{Author: requester, Content: "fresh"})
	f.fake.Post(dmID, transport.Message{Author: f.fake.Bot, Content: "prompt"})

	f.open(t)
	if got := f.queue.contents(); len(got) != 1 || got[0] != "fresh" {
		t.Fatalf("backfill = %v, want [fresh]", got)
	}
}

func TestCloseThread(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	opened := f.open(t)
	dmID := f.fake.DMChannel(requester.ID)

	out, err := f.ctrl.Close(ctx, opened.ThreadID, moderator)
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !out.OK || out.Verb != VerbClosed {
		t.Fatalf("outcome = %+v", out)
	}

	stored, _ := f.store.Thread(ctx, opened.ThreadID)
	if stored.IsOpen() {
		t.Fatalf("thread still open")
	}
	ch, _ := f.fake.ChannelInfo(opened.ThreadID)
	if ch.Name != "[closed] Alice" || !ch.Archived || !ch.Locked {
		t.Fatalf("channel after close = %+v", ch)
	}
	if closed, _ := f.reg.ID(tags.Closed); len(ch.AppliedTags) != 1 || ch.AppliedTags[0] != closed {
		t.Fatalf("tags = %v, want only closed", ch.AppliedTags)
	}
	sent := f.fake.SentTo(opened.ThreadID)
	if notice := sent[len(sent)-1].Message.Embeds[0]; !strings.Contains(notice.Description, moderator.Mention()) {
		t.Fatalf("closure notice = %+v", notice)
	}
	dm := f.fake.SentTo(dmID)
	if last := dm[len(dm)-1].Message.Embeds[0]; last.Title != "Thread closed" {
		t.Fatalf("user notice = %+v", last)
	}
	starter, _ := f.fake.Message(ctx, opened.ThreadID, opened.ThreadID)
	if got := starter.Embeds[0].Fields[len(starter.Embeds[0].Fields)-1].Value; got != "🔒 Closed by mod" {
		t.Fatalf("preview = %q", got)
	}

	again, err := f.ctrl.Close(ctx, opened.ThreadID, moderator)
	if err != nil || again.OK || again.Reason != ReasonNotOpen {
		t.Fatalf("second Close() = %+v, %v", again, err)
	}
}

func TestCloseSwallowsUnreachableUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	opened := f.open(t)
	f.fake.Unreachable[requester.ID] = transport.UnreachableUnknownUser

	out, err := f.ctrl.Close(ctx, opened.ThreadID, moderator)
	if err != nil || !out.OK {
		t.Fatalf("Close() = %+v, %v", out, err)
	}
}

func TestConcurrentClosesHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	opened := f.open(t)

	const n = 4
	var mu sync.Mutex
	wins := 0
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := f.ctrl.Close(ctx, opened.ThreadID, moderator)
			if err != nil {
				t.Errorf("Close() error = %v", err)
				return
			}
			if out.OK {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("wins = %d, want 1", wins)
	}
}

func TestCloseUnknownThread(t *testing.T) {
	f := newFixture(t)
	out, err := f.ctrl.Close(context.Background(), "nope", moderator)
	if err != nil || out.Reason != ReasonNotOpen {
		t.Fatalf("Close() = %+v, %v", out, err)
	}
}

func TestToggles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	steps := []struct {
		run  func() (Outcome, error)
		verb string
	}{
		{func() (Outcome, error) { return f.ctrl.ToggleBlock(ctx, "5") }, VerbBlocked},
		{func() (Outcome, error) { return f.ctrl.ToggleBlock(ctx, "5") }, VerbUnblocked},
		{func() (Outcome, error) { return f.ctrl.TogglePing(ctx, "6") }, VerbSubscribed},
		{func() (Outcome, error) { return f.ctrl.TogglePing(ctx, "6") }, VerbUnsubscribed},
	}
	for i, step := range steps {
		out, err := step.run()
		if err != nil {
			t.Fatalf("step %d error = %v", i, err)
		}
		if !out.OK || out.Verb != step.verb {
			t.Fatalf("step %d outcome = %+v, want %s", i, out, step.verb)
		}
	}
}

func TestClosedName(t *testing.T) {
	if got := closedName("[closed] x"); got != "[closed] x" {
		t.Fatalf("closedName() = %q", got)
	}
	long := strings.Repeat("a", maxNameRunes)
	if got := closedName(long); len([]rune(got)) != maxNameRunes || !strings.HasPrefix(got, closedPrefix) {
		t.Fatalf("closedName() = %q", got)
	}
}
