package slack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/isoko-app/isoko/internal/directory"
	"github.com/isoko-app/isoko/internal/messaging"
	"github.com/isoko-app/isoko/internal/models"
	slackapi "github.com/slack-go/slack"
)

type mockClient struct {
	channels []string
	options  [][]slackapi.MsgOption
	err      error
}

func (m *mockClient) PostMessageContext(_ context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	if m.err != nil {
		return "", "", m.err
	}
	m.channels = append(m.channels, channelID)
	m.options = append(m.options, options)
	return channelID, "1234.5678", nil
}

func testRequest() messaging.QuoteRequest {
	return messaging.QuoteRequest{
		SessionID: "ng-abc12",
		FlowType:  "find_driver",
		Vendor: directory.VendorContact{
			ID:    "vd-aaa01",
			Name:  "Moto Eric",
			Phone: "+250788000001",
		},
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{ChannelID: "C123"}); err == nil {
		t.Error("New() without token expected error")
	}
	if _, err := New(Opts{BotToken: "xoxb-test"}); err == nil {
		t.Error("New() without channel expected error")
	}
	if _, err := New(Opts{Client: &mockClient{}, ChannelID: "C123"}); err != nil {
		t.Errorf("New() with injected client: %v", err)
	}
}

func TestSendQuoteRequest(t *testing.T) {
	client := &mockClient{}
	m, err := New(Opts{Client: client, ChannelID: "C123"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := m.SendQuoteRequest(context.Background(), testRequest()); err != nil {
		t.Fatalf("SendQuoteRequest() error: %v", err)
	}
	if len(client.channels) != 1 || client.channels[0] != "C123" {
		t.Errorf("channels = %v, want [C123]", client.channels)
	}
}

func TestSendQuoteRequest_Error(t *testing.T) {
	client := &mockClient{err: errors.New("channel_not_found")}
	m, err := New(Opts{Client: client, ChannelID: "C123"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := m.SendQuoteRequest(context.Background(), testRequest()); err == nil {
		t.Error("SendQuoteRequest() expected error")
	}
}

func TestSendExpiringSoonPrompt(t *testing.T) {
	client := &mockClient{}
	m, err := New(Opts{Client: client, ChannelID: "C123"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	s := &models.Session{
		ID:         "ng-abc12",
		FlowType:   "find_driver",
		Status:     models.SessionNegotiating,
		DeadlineAt: time.Now().Add(30 * time.Second),
	}
	if err := m.SendExpiringSoonPrompt(context.Background(), s); err != nil {
		t.Fatalf("SendExpiringSoonPrompt() error: %v", err)
	}
	if len(client.channels) != 1 {
		t.Errorf("posts = %d, want 1", len(client.channels))
	}
}
