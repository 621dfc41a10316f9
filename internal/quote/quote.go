// Package quote provides quote lifecycle operations: ingestion, ranking,
// accept-one/reject-rest, and the periodic expiry sweep. All status writes
// for models.Quote live here.
package quote

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/isoko-app/isoko/internal/fault"
	"github.com/isoko-app/isoko/internal/models"
	"gorm.io/gorm"
)

const (
	// DefaultExpiryMinutes is how long a quote stays usable when the vendor
	// does not state a validity period.
	DefaultExpiryMinutes = 10

	// DefaultCurrency is applied when a vendor offer carries no currency.
	DefaultCurrency = "RWF"

	// DefaultBestLimit caps GetBest when the caller passes no limit.
	DefaultBestLimit = 3
)

// AddOpts holds parameters for recording a vendor's offer.
type AddOpts struct {
	SessionID            string
	VendorID             string
	VendorType           string
	VendorName           string
	VendorPhone          string
	OfferData            models.JSONMap
	PriceAmount          *float64
	PriceCurrency        string
	EstimatedTimeMinutes *int
	ExpiresInMinutes     int
}

// Stats is a point-in-time aggregate over a session's quotes.
type Stats struct {
	Total          int
	Received       int
	Pending        int
	Expired        int
	AvgPrice       *float64
	AvgTimeMinutes *float64
}

// GenerateID creates a unique quote ID in qt-xxxxx format (5-char hex).
func GenerateID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("quote: generate ID: %w", err)
	}
	return "qt-" + hex.EncodeToString(b)[:5], nil
}

// Add records a vendor offer against a session. The quote lands in the
// received state: the waiting-for-reply period belongs to the messaging
// layer, not to this table. ExpiresInMinutes of zero applies the default;
// negative values produce an already-expired quote.
func Add(db *gorm.DB, opts AddOpts) (*models.Quote, error) {
	if opts.SessionID == "" {
		return nil, fault.Validation("quote: session id is required")
	}

	var s models.Session
	if err := db.Where("id = ?", opts.SessionID).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fault.NotFound("session", opts.SessionID)
		}
		return nil, fmt.Errorf("quote: check session %s: %w", opts.SessionID, err)
	}

	id, err := GenerateID()
	if err != nil {
		return nil, err
	}

	expiresIn := opts.ExpiresInMinutes
	if expiresIn == 0 {
		expiresIn = DefaultExpiryMinutes
	}
	currency := opts.PriceCurrency
	if currency == "" {
		currency = DefaultCurrency
	}

	now := time.Now()
	expiresAt := now.Add(time.Duration(expiresIn) * time.Minute)
	q := models.Quote{
		ID:                   id,
		SessionID:            opts.SessionID,
		VendorID:             opts.VendorID,
		VendorType:           opts.VendorType,
		VendorName:           opts.VendorName,
		VendorPhone:          opts.VendorPhone,
		OfferData:            opts.OfferData,
		PriceAmount:          opts.PriceAmount,
		PriceCurrency:        currency,
		EstimatedTimeMinutes: opts.EstimatedTimeMinutes,
		Status:               models.QuoteReceived,
		ReceivedAt:           now,
		ExpiresAt:            &expiresAt,
	}
	if err := db.Create(&q).Error; err != nil {
		return nil, fmt.Errorf("quote: add to session %s: %w", opts.SessionID, err)
	}

	log.Printf("quote: %s recorded for session %s [vendor=%s]", q.ID, q.SessionID, q.VendorName)
	return &q, nil
}

// Get fetches a quote by ID.
func Get(db *gorm.DB, id string) (*models.Quote, error) {
	var q models.Quote
	if err := db.Where("id = ?", id).First(&q).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fault.NotFound("quote", id)
		}
		return nil, fmt.Errorf("quote: get %s: %w", id, err)
	}
	return &q, nil
}

// ListForSession returns all quotes for a session, oldest first.
func ListForSession(db *gorm.DB, sessionID string) ([]models.Quote, error) {
	var quotes []models.Quote
	if err := db.Where("session_id = ?", sessionID).
		Order("received_at ASC").Find(&quotes).Error; err != nil {
		return nil, fmt.Errorf("quote: list for session %s: %w", sessionID, err)
	}
	return quotes, nil
}

// Best returns the top-ranked usable quotes for a session as of now: received
// status, not past expiry, ordered by price ascending with estimated time as
// the tie-break. Quotes missing a normalized field keep their received-order
// position rather than being penalized. The result is a snapshot; ranking is
// recomputed on every call.
func Best(db *gorm.DB, sessionID string, limit int, now time.Time) ([]models.Quote, error) {
	if limit <= 0 {
		limit = DefaultBestLimit
	}

	var quotes []models.Quote
	if err := db.Where("session_id = ? AND status = ? AND (expires_at IS NULL OR expires_at > ?)",
		sessionID, models.QuoteReceived, now).
		Order("received_at ASC").Find(&quotes).Error; err != nil {
		return nil, fmt.Errorf("quote: best for session %s: %w", sessionID, err)
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		return rankLess(&quotes[i], &quotes[j])
	})

	if len(quotes) > limit {
		quotes = quotes[:limit]
	}
	return quotes, nil
}

// rankLess orders two quotes: price first, estimated time as tie-break or
// fallback when either side has no price. Quotes comparable on neither field
// keep their received order (the sort is stable).
func rankLess(a, b *models.Quote) bool {
	if a.PriceAmount != nil && b.PriceAmount != nil && *a.PriceAmount != *b.PriceAmount {
		return *a.PriceAmount < *b.PriceAmount
	}
	if a.EstimatedTimeMinutes != nil && b.EstimatedTimeMinutes != nil {
		return *a.EstimatedTimeMinutes < *b.EstimatedTimeMinutes
	}
	return false
}

// UpdateStatus writes a new status on a quote.
func UpdateStatus(db *gorm.DB, id string, status models.QuoteStatus) error {
	result := db.Model(&models.Quote{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("quote: update status %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fault.NotFound("quote", id)
	}
	return nil
}

// Accept marks the named quote accepted and rejects every sibling still in
// the received state. The whole sequence runs in one transaction and the
// sibling rejection is a single set-based conditional update, so a
// concurrently added quote is either rejected here or still received
// afterwards — never left alongside a second accepted quote.
func Accept(db *gorm.DB, quoteID, sessionID string) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		var q models.Quote
		if err := tx.Where("id = ? AND session_id = ?", quoteID, sessionID).First(&q).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fault.NotFound("quote", quoteID)
			}
			return fmt.Errorf("fetch quote: %w", err)
		}

		var accepted int64
		if err := tx.Model(&models.Quote{}).
			Where("session_id = ? AND status = ? AND id <> ?", sessionID, models.QuoteAccepted, quoteID).
			Count(&accepted).Error; err != nil {
			return fmt.Errorf("check accepted siblings: %w", err)
		}
		if accepted > 0 {
			return fault.Race("quote: accept", "session %s already has an accepted quote", sessionID)
		}

		if err := tx.Model(&models.Quote{}).Where("id = ?", quoteID).
			Update("status", models.QuoteAccepted).Error; err != nil {
			return fmt.Errorf("accept quote: %w", err)
		}

		if err := tx.Model(&models.Quote{}).
			Where("session_id = ? AND status = ? AND id <> ?", sessionID, models.QuoteReceived, quoteID).
			Update("status", models.QuoteRejected).Error; err != nil {
			return fmt.Errorf("reject siblings: %w", err)
		}
		return nil
	})
	if err != nil {
		if fault.IsNotFound(err) || fault.IsRace(err) {
			return err
		}
		return fmt.Errorf("quote: accept %s in session %s: %w", quoteID, sessionID, err)
	}

	log.Printf("quote: %s accepted for session %s, siblings rejected", quoteID, sessionID)
	return nil
}

// ExpireOld bulk-transitions non-terminal quotes whose expiry is behind now
// to expired, and returns how many rows changed. Safe to run concurrently
// with itself: a second sweep finding nothing left is a zero, not an error.
func ExpireOld(db *gorm.DB, now time.Time) (int64, error) {
	result := db.Model(&models.Quote{}).
		Where("status IN ? AND expires_at IS NOT NULL AND expires_at < ?",
			[]models.QuoteStatus{models.QuotePending, models.QuoteReceived}, now).
		Update("status", models.QuoteExpired)
	if result.Error != nil {
		return 0, fmt.Errorf("quote: expire old: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		log.Printf("quote: expired %d stale quotes", result.RowsAffected)
	}
	return result.RowsAffected, nil
}

// GetStats computes a simple aggregate over a session's quotes. Averages
// cover only quotes that carry the corresponding normalized field.
func GetStats(db *gorm.DB, sessionID string) (*Stats, error) {
	quotes, err := ListForSession(db, sessionID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Total: len(quotes)}
	var priceSum float64
	var priceCount int
	var timeSum int
	var timeCount int
	for _, q := range quotes {
		switch q.Status {
		case models.QuoteReceived:
			stats.Received++
		case models.QuotePending:
			stats.Pending++
		case models.QuoteExpired:
			stats.Expired++
		}
		if q.PriceAmount != nil {
			priceSum += *q.PriceAmount
			priceCount++
		}
		if q.EstimatedTimeMinutes != nil {
			timeSum += *q.EstimatedTimeMinutes
			timeCount++
		}
	}
	if priceCount > 0 {
		avg := priceSum / float64(priceCount)
		stats.AvgPrice = &avg
	}
	if timeCount > 0 {
		avg := float64(timeSum) / float64(timeCount)
		stats.AvgTimeMinutes = &avg
	}
	return stats, nil
}
