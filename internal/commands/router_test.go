package commands

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/Jochem-W/modmail/internal/format"
	"github.com/Jochem-W/modmail/internal/lifecycle"
	"github.com/Jochem-W/modmail/internal/report"
	"github.com/Jochem-W/modmail/internal/transport"
)

type recordingResponder struct {
	acked     bool
	ephemeral bool
	replies   []transport.Reply
	ackErr    error
}

func (r *recordingResponder) Acknowledge(_ context.Context, ephemeral bool) error {
	r.acked = true
	r.ephemeral = ephemeral
	return r.ackErr
}

func (r *recordingResponder) Respond(_ context.Context, reply transport.Reply) error {
	r.replies = append(r.replies, reply)
	return nil
}

func (r *recordingResponder) only(t *testing.T) transport.Reply {
	t.Helper()
	if len(r.replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(r.replies))
	}
	return r.replies[0]
}

type stubLifecycle struct {
	outcome  lifecycle.Outcome
	err      error
	calls    []string
	history  format.History
	panicked bool
}

func (s *stubLifecycle) record(call string) (lifecycle.Outcome, error) {
	s.calls = append(s.calls, call)
	if s.panicked {
		panic("lifecycle exploded")
	}
	return s.outcome, s.err
}

func (s *stubLifecycle) Open(_ context.Context, u transport.User) (lifecycle.Outcome, error) {
	return s.record("open " + u.ID)
}

func (s *stubLifecycle) Close(_ context.Context, threadID string, actor transport.User) (lifecycle.Outcome, error) {
	return s.record("close " + threadID + " by " + actor.ID)
}

func (s *stubLifecycle) ToggleBlock(_ context.Context, userID string) (lifecycle.Outcome, error) {
	return s.record("block " + userID)
}

func (s *stubLifecycle) TogglePing(_ context.Context, userID string) (lifecycle.Outcome, error) {
	return s.record("ping " + userID)
}

func (s *stubLifecycle) History(_ context.Context, userID, _ string) (format.History, error) {
	s.calls = append(s.calls, "history "+userID)
	return s.history, s.err
}

func newRouter(lc Lifecycle) (*Router, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return NewRouter(Handlers(lc), report.New(logger, nil, ""), logger), &buf
}

var staffUser = transport.User{ID: "7", Username: "mod"}

func TestDispatchCloseCommand(t *testing.T) {
	lc := &stubLifecycle{outcome: lifecycle.Outcome{OK: true, Verb: lifecycle.VerbClosed, ThreadID: "100"}}
	router, _ := newRouter(lc)
	resp := &recordingResponder{}

	router.Dispatch(context.Background(), transport.Interaction{
		Kind: transport.InteractionCommand, Name: CommandClose, ChannelID: "100", GuildID: "guild", User: staffUser,
	}, resp)

	if !resp.acked {
		t.Fatalf("interaction not acknowledged")
	}
	if len(lc.calls) != 1 || lc.calls[0] != "close 100 by 7" {
		t.Fatalf("calls = %v", lc.calls)
	}
	if got := resp.only(t); got.Content != "Thread closed." {
		t.Fatalf("reply = %+v", got)
	}
}

func TestDispatchCloseKeepsReplyOnPartialFailure(t *testing.T) {
	lc := &stubLifecycle{
		outcome: lifecycle.Outcome{OK: true, Verb: lifecycle.VerbClosed},
		err:     errors.New("archive thread: rate limited"),
	}
	router, logs := newRouter(lc)
	resp := &recordingResponder{}

	router.Dispatch(context.Background(), transport.Interaction{
		Kind: transport.InteractionComponent, CustomID: format.CloseThreadID, ChannelID: "100", GuildID: "guild", User: staffUser,
	}, resp)

	if got := resp.only(t); got.Content != "Thread closed." {
		t.Fatalf("reply = %+v", got)
	}
	if !strings.Contains(logs.String(), "interaction_error") {
		t.Fatalf("partial failure not reported: %s", logs.String())
	}
}

func TestDispatchValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		in   transport.Interaction
		want string
	}{
		{
			name: "block without user",
			in:   transport.Interaction{Kind: transport.InteractionCommand, Name: CommandBlock, GuildID: "guild", User: staffUser},
			want: "Please pick a user.",
		},
		{
			name: "create from guild",
			in:   transport.Interaction{Kind: transport.InteractionComponent, CustomID: format.CreateThreadID, GuildID: "guild", User: staffUser},
			want: "Threads can only be opened from direct messages.",
		},
		{
			name: "close from direct messages",
			in:   transport.Interaction{Kind: transport.InteractionCommand, Name: CommandClose, User: staffUser},
			want: "Threads can only be closed from the server.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lc := &stubLifecycle{}
			router, logs := newRouter(lc)
			resp := &recordingResponder{}
			router.Dispatch(context.Background(), tc.in, resp)

			got := resp.only(t)
			if got.Content != tc.want || !got.Ephemeral {
				t.Fatalf("reply = %+v, want ephemeral %q", got, tc.want)
			}
			if len(lc.calls) != 0 {
				t.Fatalf("lifecycle called: %v", lc.calls)
			}
			if strings.Contains(logs.String(), "interaction_error") {
				t.Fatalf("validation error was reported: %s", logs.String())
			}
		})
	}
}

func TestDispatchUnknownAndMismatchedHandlers(t *testing.T) {
	cases := []transport.Interaction{
		{Kind: transport.InteractionCommand, Name: "nope", User: staffUser},
		{Kind: transport.InteractionComponent, CustomID: CommandPing, User: staffUser},
	}
	for _, in := range cases {
		lc := &stubLifecycle{}
		router, logs := newRouter(lc)
		resp := &recordingResponder{}
		router.Dispatch(context.Background(), in, resp)

		got := resp.only(t)
		if !strings.HasPrefix(got.Content, genericFailure) || !got.Ephemeral {
			t.Fatalf("reply = %+v", got)
		}
		if !resp.ephemeral && in.Kind == transport.InteractionCommand {
			t.Fatalf("unknown handler should be acknowledged ephemerally")
		}
		if !strings.Contains(logs.String(), "interaction_error") {
			t.Fatalf("not reported: %s", logs.String())
		}
		if len(lc.calls) != 0 {
			t.Fatalf("lifecycle called: %v", lc.calls)
		}
	}
}

func TestDispatchRecoversPanics(t *testing.T) {
	lc := &stubLifecycle{panicked: true}
	router, logs := newRouter(lc)
	resp := &recordingResponder{}

	router.Dispatch(context.Background(), transport.Interaction{
		Kind: transport.InteractionCommand, Name: CommandPing, GuildID: "guild", User: staffUser,
	}, resp)

	if got := resp.only(t); !strings.HasPrefix(got.Content, genericFailure) {
		t.Fatalf("reply = %+v", got)
	}
	if !strings.Contains(logs.String(), "panicked") {
		t.Fatalf("panic not reported: %s", logs.String())
	}
}

func TestDispatchStopsWhenAcknowledgeFails(t *testing.T) {
	lc := &stubLifecycle{}
	router, _ := newRouter(lc)
	resp := &recordingResponder{ackErr: errors.New("unknown interaction")}

	router.Dispatch(context.Background(), transport.Interaction{
		Kind: transport.InteractionCommand, Name: CommandPing, GuildID: "guild", User: staffUser,
	}, resp)
	if len(resp.replies) != 0 || len(lc.calls) != 0 {
		t.Fatalf("handler ran after failed acknowledge")
	}
}

func TestDispatchThreadsHistory(t *testing.T) {
	lc := &stubLifecycle{history: format.NewHistory([]string{"1", "2", "3", "4", "5", "6", "7"})}
	router, _ := newRouter(lc)
	resp := &recordingResponder{}

	router.Dispatch(context.Background(), transport.Interaction{
		Kind: transport.InteractionCommand, Name: CommandThreads, GuildID: "guild", User: staffUser,
		Options: map[string]string{"user": "42"},
	}, resp)

	got := resp.only(t)
	if len(got.Embeds) != 1 || !strings.Contains(got.Embeds[0].Fields[0].Value, "and 2 more") {
		t.Fatalf("reply = %+v", got)
	}
	if lc.calls[0] != "history 42" {
		t.Fatalf("calls = %v", lc.calls)
	}
}

func TestSpecsListCommandsOnly(t *testing.T) {
	router, _ := newRouter(&stubLifecycle{})
	specs := router.Specs()
	var names []string
	for _, s := range specs {
		names = append(names, s.Name)
	}
	if strings.Join(names, ",") != "block,close,ping,threads" {
		t.Fatalf("specs = %v", names)
	}
}

func TestRenderRejections(t *testing.T) {
	out := lifecycle.Outcome{Reason: lifecycle.ReasonAlreadyOpen, ThreadID: "100", History: format.NewHistory([]string{"50"})}
	reply := Render(out, "")
	if len(reply.Embeds) != 1 || reply.Embeds[0].Fields[0].Value != "<#100>" || reply.Embeds[0].Fields[1].Value != "<#50>" {
		t.Fatalf("already open = %+v", reply)
	}
	if got := Render(lifecycle.Outcome{Reason: lifecycle.ReasonBlocked}, ""); !strings.Contains(got.Content, "blocked") {
		t.Fatalf("blocked = %+v", got)
	}
	if got := Render(lifecycle.Outcome{OK: true, Verb: lifecycle.VerbBlocked}, "42"); got.Content != "<@42> can no longer open threads." {
		t.Fatalf("blocked verb = %+v", got)
	}
}
