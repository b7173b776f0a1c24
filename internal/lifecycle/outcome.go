package lifecycle

import "github.com/Jochem-W/modmail/internal/format"

// Reason names why an operation was rejected.
type Reason string

const (
	ReasonBlocked     Reason = "blocked"
	ReasonAlreadyOpen Reason = "already_open"
	ReasonNotOpen     Reason = "not_open"
)

const (
	VerbOpened       = "opened"
	VerbClosed       = "closed"
	VerbBlocked      = "blocked"
	VerbUnblocked    = "unblocked"
	VerbSubscribed   = "subscribed"
	VerbUnsubscribed = "unsubscribed"
)

// Outcome describes the result of a lifecycle operation. Presentation is
// left to the caller.
type Outcome struct {
	OK     bool
	Verb   string
	Reason Reason
	// ThreadID is the affected thread, or the existing one for
	// ReasonAlreadyOpen.
	ThreadID string
	History  format.History
}

func success(verb, threadID string) Outcome {
	return Outcome{OK: true, Verb: verb, ThreadID: threadID}
}

func rejected(reason Reason) Outcome {
	return Outcome{Reason: reason}
}
