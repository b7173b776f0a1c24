package transport

import "context"

type InteractionKind int

const (
	InteractionCommand InteractionKind = iota + 1
	InteractionComponent
)

func (k InteractionKind) String() string {
	switch k {
	case InteractionCommand:
		return "command"
	case InteractionComponent:
		return "component"
	default:
		return "unknown"
	}
}

// Interaction is a slash command invocation or a button press.
type Interaction struct {
	ID   string
	Kind InteractionKind
	// Name is the command name; CustomID the pressed component.
	Name      string
	CustomID  string
	ChannelID string
	GuildID   string
	// MessageID is the message carrying the pressed component.
	MessageID string
	User      User
	// Options holds option values by name; user options hold user ids.
	Options map[string]string
}

// Key is what handlers are registered under.
func (i Interaction) Key() string {
	if i.Kind == InteractionComponent {
		return i.CustomID
	}
	return i.Name
}

type Reply struct {
	Content   string
	Embeds    []Embed
	Ephemeral bool
}

// Responder answers one interaction. Acknowledge must be called before
// the interaction token's first deadline; Respond may follow at any time
// within its lifetime.
type Responder interface {
	Acknowledge(ctx context.Context, ephemeral bool) error
	Respond(ctx context.Context, reply Reply) error
}

type OptionKind int

const (
	OptionString OptionKind = iota + 1
	OptionUser
)

type CommandOption struct {
	Name        string
	Description string
	Kind        OptionKind
	Required    bool
}

// CommandSpec describes a slash command to register.
type CommandSpec struct {
	Name        string
	Description string
	Options     []CommandOption
	// StaffOnly hides the command from members without moderation rights.
	StaffOnly bool
	// DirectMessages allows the command outside the guild.
	DirectMessages bool
}
