// Package session provides negotiation session lifecycle operations.
// All status writes for models.Session live here.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/isoko-app/isoko/internal/fault"
	"github.com/isoko-app/isoko/internal/models"
	"gorm.io/gorm"
)

// DefaultWindowMinutes is the negotiation window applied when the caller
// does not specify one.
const DefaultWindowMinutes = 5

// CreateOpts holds parameters for opening a new session.
type CreateOpts struct {
	RequesterID   string
	FlowType      string
	RequestData   models.JSONMap
	WindowMinutes int
}

// GenerateID creates a unique session ID in ng-xxxxx format (5-char hex).
func GenerateID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: generate ID: %w", err)
	}
	return "ng-" + hex.EncodeToString(b)[:5], nil
}

// Create opens a new session in the searching state with a hard deadline of
// now + window. The requester identifier is masked in the audit log line.
func Create(db *gorm.DB, opts CreateOpts) (*models.Session, error) {
	if opts.RequesterID == "" {
		return nil, fault.Validation("session: requester id is required")
	}
	if opts.FlowType == "" {
		return nil, fault.Validation("session: flow type is required")
	}
	window := opts.WindowMinutes
	if window <= 0 {
		window = DefaultWindowMinutes
	}

	id, err := GenerateID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s := models.Session{
		ID:          id,
		RequesterID: opts.RequesterID,
		FlowType:    opts.FlowType,
		Status:      models.SessionSearching,
		RequestData: opts.RequestData,
		StartedAt:   now,
		DeadlineAt:  now.Add(time.Duration(window) * time.Minute),
	}
	if err := db.Create(&s).Error; err != nil {
		return nil, fmt.Errorf("session: create: %w", err)
	}

	log.Printf("session: %s opened for requester %s [flow=%s window=%dm]",
		s.ID, MaskID(opts.RequesterID), opts.FlowType, window)
	return &s, nil
}

// Get fetches a session by ID.
func Get(db *gorm.DB, id string) (*models.Session, error) {
	var s models.Session
	if err := db.Where("id = ?", id).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fault.NotFound("session", id)
		}
		return nil, fmt.Errorf("session: get %s: %w", id, err)
	}
	return &s, nil
}

// UpdateStatus writes a new status and optional result data. Transition
// legality is not enforced beyond the completed-at invariant: any terminal
// status also persists CompletedAt.
func UpdateStatus(db *gorm.DB, id string, status models.SessionStatus, resultData models.JSONMap) error {
	updates := map[string]interface{}{"status": status}
	if resultData != nil {
		updates["result_data"] = resultData
	}
	if status.Terminal() {
		updates["completed_at"] = time.Now()
	}

	result := db.Model(&models.Session{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("session: update status %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fault.NotFound("session", id)
	}
	return nil
}

// Complete marks the session completed with the winning quote. This is the
// only writer of SelectedQuoteID.
func Complete(db *gorm.DB, id, quoteID string, resultData models.JSONMap) error {
	updates := map[string]interface{}{
		"status":            models.SessionCompleted,
		"selected_quote_id": quoteID,
		"completed_at":      time.Now(),
	}
	if resultData != nil {
		updates["result_data"] = resultData
	}

	result := db.Model(&models.Session{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("session: complete %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fault.NotFound("session", id)
	}
	log.Printf("session: %s completed [quote=%s]", id, quoteID)
	return nil
}

// IsExpired reports whether the session's deadline has passed as of now.
// Fail-safe: an unknown or unreadable session counts as expired.
func IsExpired(db *gorm.DB, id string, now time.Time) bool {
	s, err := Get(db, id)
	if err != nil {
		return true
	}
	return now.After(s.DeadlineAt)
}

// ListExpiringSoon returns active sessions whose deadline falls within the
// threshold from now. Already-passed deadlines are the timeout sweep's job
// and are excluded.
func ListExpiringSoon(db *gorm.DB, now time.Time, threshold time.Duration) ([]models.Session, error) {
	var sessions []models.Session
	if err := db.Where("status IN ? AND deadline_at > ? AND deadline_at <= ?",
		models.ActiveSessionStatuses, now, now.Add(threshold)).
		Order("deadline_at ASC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("session: list expiring soon: %w", err)
	}
	return sessions, nil
}

// ListDeadlinePassed returns active sessions whose deadline is behind now.
func ListDeadlinePassed(db *gorm.DB, now time.Time) ([]models.Session, error) {
	var sessions []models.Session
	if err := db.Where("status IN ? AND deadline_at < ?", models.ActiveSessionStatuses, now).
		Order("deadline_at ASC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("session: list deadline passed: %w", err)
	}
	return sessions, nil
}

// ListActiveForRequester returns the requester's active sessions, newest first.
func ListActiveForRequester(db *gorm.DB, requesterID string) ([]models.Session, error) {
	if requesterID == "" {
		return nil, fault.Validation("session: requester id is required")
	}
	var sessions []models.Session
	if err := db.Where("requester_id = ? AND status IN ?", requesterID, models.ActiveSessionStatuses).
		Order("started_at DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("session: list active for %s: %w", MaskID(requesterID), err)
	}
	return sessions, nil
}

// Cancel marks an active session cancelled and records the reason. A session
// already in a terminal state is left untouched (sweeps and callers race).
func Cancel(db *gorm.DB, id, reason string) error {
	result := db.Model(&models.Session{}).
		Where("id = ? AND status IN ?", id, models.ActiveSessionStatuses).
		Updates(map[string]interface{}{
			"status":        models.SessionCancelled,
			"completed_at":  time.Now(),
			"cancel_reason": reason,
		})
	if result.Error != nil {
		return fmt.Errorf("session: cancel %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		// Either missing or already terminal; only the former is an error.
		if _, err := Get(db, id); err != nil {
			return err
		}
		return nil
	}
	log.Printf("session: %s cancelled [reason=%q]", id, reason)
	return nil
}

// Timeout marks an active session timed out as of now. Idempotent: a second
// call on an already-terminal session is a no-op, so overlapping sweeps are
// harmless.
func Timeout(db *gorm.DB, id string, now time.Time) error {
	result := db.Model(&models.Session{}).
		Where("id = ? AND status IN ?", id, models.ActiveSessionStatuses).
		Updates(map[string]interface{}{
			"status":       models.SessionTimeout,
			"completed_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("session: timeout %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := Get(db, id); err != nil {
			return err
		}
		return nil
	}
	log.Printf("session: %s timed out", id)
	return nil
}

// Extend pushes the deadline out by the given number of minutes and bumps the
// extension counter so the history stays inspectable. Terminal sessions
// cannot be extended. The write is guarded on the deadline it read: a
// concurrent extend makes the guard miss and the caller gets a race error
// instead of a lost increment.
func Extend(db *gorm.DB, id string, minutes int) (*models.Session, error) {
	if minutes <= 0 {
		return nil, fault.Validation("session: extension minutes must be positive")
	}
	s, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	if s.Status.Terminal() {
		return nil, fault.Validation("session: %s is %s and cannot be extended", id, s.Status)
	}

	newDeadline := s.DeadlineAt.Add(time.Duration(minutes) * time.Minute)
	result := db.Model(&models.Session{}).
		Where("id = ? AND deadline_at = ?", id, s.DeadlineAt).
		Updates(map[string]interface{}{
			"deadline_at":     newDeadline,
			"extension_count": gorm.Expr("extension_count + ?", 1),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("session: extend %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fault.Race("session: extend", "session %s deadline moved concurrently", id)
	}

	s.DeadlineAt = newDeadline
	s.ExtensionCount++
	log.Printf("session: %s extended by %dm [deadline=%s extensions=%d]",
		id, minutes, newDeadline.Format(time.RFC3339), s.ExtensionCount)
	return s, nil
}

// MaskID obscures an identifier for audit logging, keeping just enough of
// the edges to correlate log lines.
func MaskID(id string) string {
	if len(id) <= 4 {
		return "****"
	}
	return id[:2] + "****" + id[len(id)-2:]
}
