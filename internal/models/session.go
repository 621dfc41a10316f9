package models

import "time"

// SessionStatus is the closed set of negotiation session states. Transitions
// are written only by the session package; everything else reads.
type SessionStatus string

const (
	SessionSearching   SessionStatus = "searching"
	SessionNegotiating SessionStatus = "negotiating"
	SessionPresenting  SessionStatus = "presenting"
	SessionCompleted   SessionStatus = "completed"
	SessionTimeout     SessionStatus = "timeout"
	SessionCancelled   SessionStatus = "cancelled"
	SessionError       SessionStatus = "error"
)

// ActiveSessionStatuses are the states eligible for the expiring-soon and
// timeout sweeps.
var ActiveSessionStatuses = []SessionStatus{
	SessionSearching,
	SessionNegotiating,
	SessionPresenting,
}

// Active reports whether the session is still collecting or presenting quotes.
func (s SessionStatus) Active() bool {
	switch s {
	case SessionSearching, SessionNegotiating, SessionPresenting:
		return true
	}
	return false
}

// Terminal reports whether the session has reached a final state.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionCompleted, SessionTimeout, SessionCancelled, SessionError:
		return true
	}
	return false
}

// Session is one time-boxed negotiation run on behalf of a requester.
// The deadline is a soft timestamp: it only takes effect when the timeout
// sweep observes it has passed.
type Session struct {
	ID              string        `gorm:"primaryKey;size:32"`
	RequesterID     string        `gorm:"size:64;not null;index"`
	FlowType        string        `gorm:"size:32;not null;index"`
	Status          SessionStatus `gorm:"size:16;default:searching;index"`
	RequestData     JSONMap       `gorm:"type:json"`
	ResultData      JSONMap       `gorm:"type:json"`
	StartedAt       time.Time     `gorm:"not null"`
	DeadlineAt      time.Time     `gorm:"not null;index"`
	CompletedAt     *time.Time
	SelectedQuoteID *string `gorm:"size:32"`
	ExtensionCount  int     `gorm:"default:0"`
	CancelReason    string  `gorm:"type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Quotes []Quote `gorm:"foreignKey:SessionID"`
}
