package models

import "time"

// Dispatch kinds.
const (
	DispatchQuoteRequest = "quote_request"
	DispatchExpiringSoon = "expiring_soon"
)

// Dispatch is an outbox record of a fire-and-forget notification handed to
// the messaging layer. Delivery is best-effort; the row is the audit trail.
type Dispatch struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Kind        string `gorm:"size:16;not null;index"`
	SessionID   string `gorm:"size:32;index"`
	VendorID    string `gorm:"size:64"`
	VendorName  string `gorm:"size:128"`
	VendorPhone string `gorm:"size:32"`
	Body        string `gorm:"type:text"`
	Status      string `gorm:"size:16;default:sent"`
	CreatedAt   time.Time
}
