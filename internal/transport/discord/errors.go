package discord

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Jochem-W/modmail/internal/transport"
	"github.com/bwmarrin/discordgo"
)

// JSON error codes returned by the API.
const (
	codeUnknownChannel       = 10003
	codeUnknownGuild         = 10004
	codeUnknownMember        = 10007
	codeUnknownMessage       = 10008
	codeUnknownUser          = 10013
	codeUnknownInteraction   = 10062
	codeMissingAccess        = 50001
	codeCannotMessageUser    = 50007
	codeMissingPermissions   = 50013
	codeThreadArchived       = 50083
	codeNoMutualGuilds       = 50278
	codeMaxActiveThreads     = 160006
	codeThreadLockedOrClosed = 160005
)

// classify maps an API error onto the transport taxonomy, keeping the
// original error text.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var rateErr *discordgo.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%w: %v", transport.ErrRateLimited, err)
	}
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return err
	}
	if restErr.Message != nil {
		switch restErr.Message.Code {
		case codeUnknownUser:
			return &transport.UnreachableError{Reason: transport.UnreachableUnknownUser, Err: err}
		case codeCannotMessageUser:
			return &transport.UnreachableError{Reason: transport.UnreachableDMsDisabled, Err: err}
		case codeNoMutualGuilds:
			return &transport.UnreachableError{Reason: transport.UnreachableOther, Err: err}
		case codeUnknownChannel, codeUnknownGuild, codeUnknownMember, codeUnknownMessage, codeUnknownInteraction:
			return fmt.Errorf("%w: %v", transport.ErrNotFound, err)
		case codeMissingAccess, codeMissingPermissions:
			return fmt.Errorf("%w: %v", transport.ErrForbidden, err)
		case codeThreadArchived, codeThreadLockedOrClosed, codeMaxActiveThreads:
			return fmt.Errorf("%w: %v", transport.ErrConflict, err)
		}
	}
	if restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", transport.ErrNotFound, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", transport.ErrForbidden, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", transport.ErrRateLimited, err)
		case http.StatusConflict:
			return fmt.Errorf("%w: %v", transport.ErrConflict, err)
		}
	}
	return err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	classified := classify(err)
	var unreachable *transport.UnreachableError
	if errors.As(classified, &unreachable) {
		return classified
	}
	return fmt.Errorf("%s: %w", op, classified)
}
