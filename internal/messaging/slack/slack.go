// Package slack implements the messaging Messenger for a Slack ops channel.
// Operators watching the channel coordinate vendor outreach and deadline
// extensions from there.
package slack

import (
	"context"
	"fmt"

	"github.com/isoko-app/isoko/internal/messaging"
	"github.com/isoko-app/isoko/internal/models"
	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Messenger posts negotiation notifications to a Slack channel.
type Messenger struct {
	client    slackClient
	channelID string
}

// Opts holds parameters for creating a Slack Messenger.
type Opts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string // channel to post to
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// New creates a Slack Messenger.
func New(opts Opts) (*Messenger, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel id is required")
	}
	client := opts.Client
	if client == nil {
		client = slackapi.New(opts.BotToken)
	}
	return &Messenger{client: client, channelID: opts.ChannelID}, nil
}

func (m *Messenger) SendQuoteRequest(ctx context.Context, req messaging.QuoteRequest) error {
	attachment := slackapi.Attachment{
		Color: "#2eb886",
		Title: fmt.Sprintf("Quote request — session %s", req.SessionID),
		Text:  messaging.RenderQuoteRequest(req),
		Fields: []slackapi.AttachmentField{
			{Title: "Vendor", Value: req.Vendor.Name, Short: true},
			{Title: "Phone", Value: req.Vendor.Phone, Short: true},
			{Title: "Flow", Value: req.FlowType, Short: true},
		},
	}
	_, _, err := m.client.PostMessageContext(ctx, m.channelID, slackapi.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("slack: post quote request for %s: %w", req.SessionID, err)
	}
	return nil
}

func (m *Messenger) SendExpiringSoonPrompt(ctx context.Context, s *models.Session) error {
	attachment := slackapi.Attachment{
		Color: "#e8a317",
		Title: fmt.Sprintf("Deadline approaching — session %s", s.ID),
		Text:  messaging.RenderExpiringSoon(s),
	}
	_, _, err := m.client.PostMessageContext(ctx, m.channelID, slackapi.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("slack: post expiring-soon for %s: %w", s.ID, err)
	}
	return nil
}

var _ messaging.Messenger = (*Messenger)(nil)
