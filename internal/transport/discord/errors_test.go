package discord

import (
	"errors"
	"net/http"
	"testing"

	"github.com/Jochem-W/modmail/internal/transport"
	"github.com/bwmarrin/discordgo"
)

func restError(status, code int) error {
	return &discordgo.RESTError{
		Response:     &http.Response{StatusCode: status, Status: http.StatusText(status)},
		ResponseBody: []byte(`{"message":"x"}`),
		Message:      &discordgo.APIErrorMessage{Code: code, Message: "x"},
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		target error
		reason transport.UnreachableReason
	}{
		{name: "unknown user", err: restError(404, codeUnknownUser), reason: transport.UnreachableUnknownUser},
		{name: "dms closed", err: restError(403, codeCannotMessageUser), reason: transport.UnreachableDMsDisabled},
		{name: "no mutual guilds", err: restError(403, codeNoMutualGuilds), reason: transport.UnreachableOther},
		{name: "unknown message", err: restError(404, codeUnknownMessage), target: transport.ErrNotFound},
		{name: "unknown member", err: restError(404, codeUnknownMember), target: transport.ErrNotFound},
		{name: "missing permissions", err: restError(403, codeMissingPermissions), target: transport.ErrForbidden},
		{name: "archived thread", err: restError(400, codeThreadArchived), target: transport.ErrConflict},
		{name: "plain 404", err: restError(404, 0), target: transport.ErrNotFound},
		{name: "plain 429", err: restError(429, 0), target: transport.ErrRateLimited},
		{name: "plain 409", err: restError(409, 0), target: transport.ErrConflict},
		{name: "rate limit", err: &discordgo.RateLimitError{RateLimit: &discordgo.RateLimit{TooManyRequests: &discordgo.TooManyRequests{}}}, target: transport.ErrRateLimited},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := wrap("op", tc.err)
			if tc.reason != "" {
				u, ok := transport.AsUnreachable(got)
				if !ok || u.Reason != tc.reason {
					t.Fatalf("wrap() = %v, want unreachable %s", got, tc.reason)
				}
				return
			}
			if !errors.Is(got, tc.target) {
				t.Fatalf("wrap() = %v, want %v", got, tc.target)
			}
		})
	}
}

func TestClassifyLeavesOtherErrors(t *testing.T) {
	plain := errors.New("connection reset")
	if got := classify(plain); got != plain {
		t.Fatalf("classify() = %v", got)
	}
	got := classify(restError(500, 0))
	for _, target := range []error{transport.ErrNotFound, transport.ErrForbidden, transport.ErrRateLimited, transport.ErrConflict} {
		if errors.Is(got, target) {
			t.Fatalf("500 classified as %v", target)
		}
	}
	if wrap("op", nil) != nil {
		t.Fatalf("wrap(nil) != nil")
	}
}
