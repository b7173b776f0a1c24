package discord

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"
)

type SessionOptions struct {
	// RequestTimeout bounds each REST call.
	RequestTimeout   time.Duration
	HandshakeTimeout time.Duration
}

// NewSession prepares a bot session with the relay's intents. The gateway
// connection is not opened.
func NewSession(token string, opts SessionOptions) (*discordgo.Session, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bot "))
	if token == "" {
		return nil, fmt.Errorf("missing bot token")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = Intents
	session.StateEnabled = true

	dialer := *websocket.DefaultDialer
	dialer.Proxy = http.ProxyFromEnvironment
	if opts.HandshakeTimeout > 0 {
		dialer.HandshakeTimeout = opts.HandshakeTimeout
	}
	session.Dialer = &dialer

	if opts.RequestTimeout > 0 {
		session.Client = &http.Client{Timeout: opts.RequestTimeout}
	}
	return session, nil
}
