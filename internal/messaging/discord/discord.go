// Package discord implements the messaging Messenger for a Discord ops
// channel.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/isoko-app/isoko/internal/messaging"
	"github.com/isoko-app/isoko/internal/models"
)

// discordSession abstracts the discordgo methods we use, enabling test mocks.
type discordSession interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Messenger posts negotiation notifications to a Discord channel.
type Messenger struct {
	session   discordSession
	channelID string
}

// Opts holds parameters for creating a Discord Messenger.
type Opts struct {
	Token     string // bot token
	ChannelID string // channel to post to
	// For testing: inject a mock session instead of the real Discord API.
	Session discordSession
}

// New creates a Discord Messenger.
func New(opts Opts) (*Messenger, error) {
	if opts.Session == nil && opts.Token == "" {
		return nil, fmt.Errorf("discord: token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel id is required")
	}
	session := opts.Session
	if session == nil {
		s, err := discordgo.New("Bot " + opts.Token)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		session = s
	}
	return &Messenger{session: session, channelID: opts.ChannelID}, nil
}

func (m *Messenger) SendQuoteRequest(_ context.Context, req messaging.QuoteRequest) error {
	content := fmt.Sprintf("**Quote request — session %s**\n%s\nVendor: %s (%s)",
		req.SessionID, messaging.RenderQuoteRequest(req), req.Vendor.Name, req.Vendor.Phone)
	if _, err := m.session.ChannelMessageSend(m.channelID, content); err != nil {
		return fmt.Errorf("discord: send quote request for %s: %w", req.SessionID, err)
	}
	return nil
}

func (m *Messenger) SendExpiringSoonPrompt(_ context.Context, s *models.Session) error {
	content := fmt.Sprintf("**Deadline approaching — session %s**\n%s", s.ID, messaging.RenderExpiringSoon(s))
	if _, err := m.session.ChannelMessageSend(m.channelID, content); err != nil {
		return fmt.Errorf("discord: send expiring-soon for %s: %w", s.ID, err)
	}
	return nil
}

var _ messaging.Messenger = (*Messenger)(nil)
