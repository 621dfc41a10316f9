// Package messaging hands fire-and-forget notifications to vendors and
// requesters. Delivery transports live behind the Messenger interface; the
// core never waits on a reply.
package messaging

import (
	"context"
	"fmt"
	"log"

	"github.com/isoko-app/isoko/internal/directory"
	"github.com/isoko-app/isoko/internal/models"
)

// QuoteRequest describes one vendor contact attempt for a session.
type QuoteRequest struct {
	SessionID string
	FlowType  string
	Vendor    directory.VendorContact
	Details   models.JSONMap
}

// Messenger is the transport contract for outbound notifications.
type Messenger interface {
	// SendQuoteRequest asks a vendor for a quote. Fire-and-forget: the
	// reply arrives later through the quote-ingress path, if at all.
	SendQuoteRequest(ctx context.Context, req QuoteRequest) error

	// SendExpiringSoonPrompt warns the requester that the session's
	// deadline is close.
	SendExpiringSoonPrompt(ctx context.Context, s *models.Session) error
}

// Log is a Messenger that only writes log lines. Used in development and as
// the fallback when no transport is configured.
type Log struct{}

// NewLog creates a log-only Messenger.
func NewLog() *Log {
	return &Log{}
}

func (l *Log) SendQuoteRequest(_ context.Context, req QuoteRequest) error {
	log.Printf("messaging: quote request for session %s -> %s (%s)",
		req.SessionID, req.Vendor.Name, req.Vendor.Phone)
	return nil
}

func (l *Log) SendExpiringSoonPrompt(_ context.Context, s *models.Session) error {
	log.Printf("messaging: expiring-soon prompt for session %s [deadline=%s]",
		s.ID, s.DeadlineAt.Format("15:04:05"))
	return nil
}

// Fanout delivers each notification through every configured Messenger.
// Individual transport failures are logged and do not fail the send: one
// broken notifier must not block the others.
type Fanout struct {
	messengers []Messenger
}

// NewFanout creates a Fanout over the given messengers.
func NewFanout(messengers ...Messenger) *Fanout {
	return &Fanout{messengers: messengers}
}

func (f *Fanout) SendQuoteRequest(ctx context.Context, req QuoteRequest) error {
	for _, m := range f.messengers {
		if err := m.SendQuoteRequest(ctx, req); err != nil {
			log.Printf("messaging: quote request via %T failed: %v", m, err)
		}
	}
	return nil
}

func (f *Fanout) SendExpiringSoonPrompt(ctx context.Context, s *models.Session) error {
	for _, m := range f.messengers {
		if err := m.SendExpiringSoonPrompt(ctx, s); err != nil {
			log.Printf("messaging: expiring-soon prompt via %T failed: %v", m, err)
		}
	}
	return nil
}

// RenderQuoteRequest builds the human-readable body for a vendor quote
// request.
func RenderQuoteRequest(req QuoteRequest) string {
	return fmt.Sprintf("Quote request %s [%s] for %s: please reply with your price and ETA.",
		req.SessionID, req.FlowType, req.Vendor.Name)
}

// RenderExpiringSoon builds the human-readable body for a deadline warning.
func RenderExpiringSoon(s *models.Session) string {
	return fmt.Sprintf("Negotiation %s [%s] is running out of time (deadline %s). Extend or pick a quote.",
		s.ID, s.FlowType, s.DeadlineAt.Format("15:04"))
}
