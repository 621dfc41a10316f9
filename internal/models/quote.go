package models

import "time"

// QuoteStatus is the closed set of quote states. Transitions are written only
// by the quote package.
type QuoteStatus string

const (
	QuotePending   QuoteStatus = "pending"
	QuoteReceived  QuoteStatus = "received"
	QuoteAccepted  QuoteStatus = "accepted"
	QuoteRejected  QuoteStatus = "rejected"
	QuoteExpired   QuoteStatus = "expired"
	QuoteWithdrawn QuoteStatus = "withdrawn"
)

// Terminal reports whether the quote can no longer change state. An expired
// quote is not terminal: a sweep races with accept/reject and loses.
func (s QuoteStatus) Terminal() bool {
	switch s {
	case QuoteAccepted, QuoteRejected, QuoteWithdrawn:
		return true
	}
	return false
}

// Quote is one vendor's offer against a session. Normalized price/time fields
// are optional: a vendor reply that could not be parsed still gets recorded
// and presented.
type Quote struct {
	ID                   string      `gorm:"primaryKey;size:32"`
	SessionID            string      `gorm:"size:32;not null;index"`
	VendorID             string      `gorm:"size:64"`
	VendorType           string      `gorm:"size:32"`
	VendorName           string      `gorm:"size:128"`
	VendorPhone          string      `gorm:"size:32"`
	OfferData            JSONMap     `gorm:"type:json"`
	PriceAmount          *float64
	PriceCurrency        string      `gorm:"size:8;default:RWF"`
	EstimatedTimeMinutes *int
	Status               QuoteStatus `gorm:"size:16;default:received;index"`
	ReceivedAt           time.Time   `gorm:"not null;index"`
	ExpiresAt            *time.Time  `gorm:"index"`
	CreatedAt            time.Time
	UpdatedAt            time.Time

	Session Session `gorm:"foreignKey:SessionID"`
}
