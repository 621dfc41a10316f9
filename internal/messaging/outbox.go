package messaging

import (
	"context"
	"fmt"

	"github.com/isoko-app/isoko/internal/models"
	"gorm.io/gorm"
)

// Outbox is a Messenger that records every notification as a Dispatch row
// before handing it to the next transport. The row is the audit trail for
// fire-and-forget sends; transport failures downstream are logged by the
// wrapped Messenger, not here.
type Outbox struct {
	db   *gorm.DB
	next Messenger
}

// NewOutbox creates an Outbox in front of next. A nil next degrades to
// record-only.
func NewOutbox(db *gorm.DB, next Messenger) (*Outbox, error) {
	if db == nil {
		return nil, fmt.Errorf("messaging: outbox: db is required")
	}
	return &Outbox{db: db, next: next}, nil
}

func (o *Outbox) SendQuoteRequest(ctx context.Context, req QuoteRequest) error {
	d := models.Dispatch{
		Kind:        models.DispatchQuoteRequest,
		SessionID:   req.SessionID,
		VendorID:    req.Vendor.ID,
		VendorName:  req.Vendor.Name,
		VendorPhone: req.Vendor.Phone,
		Body:        RenderQuoteRequest(req),
		Status:      "sent",
	}
	if err := o.db.WithContext(ctx).Create(&d).Error; err != nil {
		return fmt.Errorf("messaging: record quote request dispatch: %w", err)
	}
	if o.next == nil {
		return nil
	}
	return o.next.SendQuoteRequest(ctx, req)
}

func (o *Outbox) SendExpiringSoonPrompt(ctx context.Context, s *models.Session) error {
	d := models.Dispatch{
		Kind:      models.DispatchExpiringSoon,
		SessionID: s.ID,
		Body:      RenderExpiringSoon(s),
		Status:    "sent",
	}
	if err := o.db.WithContext(ctx).Create(&d).Error; err != nil {
		return fmt.Errorf("messaging: record expiring-soon dispatch: %w", err)
	}
	if o.next == nil {
		return nil
	}
	return o.next.SendExpiringSoonPrompt(ctx, s)
}

// ListDispatches returns the dispatch history for a session, oldest first.
func ListDispatches(db *gorm.DB, sessionID string) ([]models.Dispatch, error) {
	var dispatches []models.Dispatch
	if err := db.Where("session_id = ?", sessionID).
		Order("created_at ASC").Find(&dispatches).Error; err != nil {
		return nil, fmt.Errorf("messaging: list dispatches for %s: %w", sessionID, err)
	}
	return dispatches, nil
}

var _ Messenger = (*Outbox)(nil)
var _ Messenger = (*Fanout)(nil)
var _ Messenger = (*Log)(nil)
