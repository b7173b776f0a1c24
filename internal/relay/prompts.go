package relay

import "sync"

// PromptRef points at a creation prompt sent to a user.
type PromptRef struct {
	ChannelID string
	MessageID string
}

// Prompts remembers the last unanswered creation prompt per user.
type Prompts struct {
	mu      sync.Mutex
	pending map[string]PromptRef
}

func NewPrompts() *Prompts {
	return &Prompts{pending: map[string]PromptRef{}}
}

// Swap records next as the user's prompt and returns the one it replaces.
func (p *Prompts) Swap(userID string, next PromptRef) (PromptRef, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev, ok := p.pending[userID]
	p.pending[userID] = next
	return prev, ok
}

// Forget drops and returns the user's prompt.
func (p *Prompts) Forget(userID string) (PromptRef, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev, ok := p.pending[userID]
	delete(p.pending, userID)
	return prev, ok
}
