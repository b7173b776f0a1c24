// Package tags keeps the forum's status tags in sync with the statuses a
// thread can be in.
package tags

import (
	"context"
	"fmt"
	"strings"

	"github.com/Jochem-W/modmail/internal/transport"
)

type Status string

const (
	Open          Status = "open"
	AwaitingStaff Status = "awaiting-staff"
	AwaitingUser  Status = "awaiting-user"
	Closed        Status = "closed"
)

type Definition struct {
	Status Status
	Name   string
	Emoji  string
}

// Canonical lists the tags every forum must carry. They are matched by
// name and emoji, so a tag renamed on the forum is recreated on the next
// sync.
var Canonical = []Definition{
	{Status: Open, Name: "Open", Emoji: "🟢"},
	{Status: AwaitingStaff, Name: "Awaiting staff", Emoji: "🟠"},
	{Status: AwaitingUser, Name: "Awaiting user", Emoji: "🔵"},
	{Status: Closed, Name: "Closed", Emoji: "🔒"},
}

// Registry maps statuses to forum tag ids. It is built once by Sync and
// never modified.
type Registry struct {
	ids map[Status]string
}

func NewRegistry(ids map[Status]string) Registry {
	cp := make(map[Status]string, len(ids))
	for k, v := range ids {
		cp[k] = v
	}
	return Registry{ids: cp}
}

func (r Registry) ID(s Status) (string, bool) {
	id, ok := r.ids[s]
	return id, ok
}

// IDs returns the tag ids of statuses, skipping unknown ones.
func (r Registry) IDs(statuses ...Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		if id, ok := r.ids[s]; ok {
			out = append(out, id)
		}
	}
	return out
}

type Client interface {
	Channel(ctx context.Context, channelID string) (*transport.Channel, error)
	EditChannel(ctx context.Context, channelID string, edit transport.ChannelEdit) (*transport.Channel, error)
}

// Sync makes sure every canonical tag exists on the forum, creating the
// missing ones, and returns their ids.
func Sync(ctx context.Context, c Client, forumID string) (Registry, error) {
	forum, err := c.Channel(ctx, forumID)
	if err != nil {
		return Registry{}, fmt.Errorf("fetch forum %s: %w", forumID, err)
	}
	if forum.Kind != transport.ChannelKindForum {
		return Registry{}, fmt.Errorf("channel %s is not a forum", forumID)
	}

	ids, missing := match(forum.AvailableTags)
	if len(missing) == 0 {
		return NewRegistry(ids), nil
	}

	all := append([]transport.Tag(nil), forum.AvailableTags...)
	for _, def := range missing {
		all = append(all, transport.Tag{Name: def.Name, Emoji: def.Emoji})
	}
	updated, err := c.EditChannel(ctx, forumID, transport.ChannelEdit{AvailableTags: &all})
	if err != nil {
		return Registry{}, fmt.Errorf("create forum tags: %w", err)
	}
	ids, missing = match(updated.AvailableTags)
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, def := range missing {
			names = append(names, def.Name)
		}
		return Registry{}, fmt.Errorf("forum tags still missing after update: %s", strings.Join(names, ", "))
	}
	return NewRegistry(ids), nil
}

// Apply replaces the tags of a thread with the given statuses.
func Apply(ctx context.Context, c Client, reg Registry, threadID string, statuses ...Status) error {
	ids := reg.IDs(statuses...)
	if _, err := c.EditChannel(ctx, threadID, transport.ChannelEdit{AppliedTags: &ids}); err != nil {
		return fmt.Errorf("apply tags to %s: %w", threadID, err)
	}
	return nil
}

func match(available []transport.Tag) (map[Status]string, []Definition) {
	ids := make(map[Status]string, len(Canonical))
	var missing []Definition
	for _, def := range Canonical {
		found := false
		for _, tag := range available {
			if strings.EqualFold(strings.TrimSpace(tag.Name), def.Name) && tag.Emoji == def.Emoji {
				ids[def.Status] = tag.ID
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, def)
		}
	}
	return ids, missing
}
