package quote

import (
	"strings"
	"testing"
	"time"

	"github.com/isoko-app/isoko/internal/fault"
	"github.com/isoko-app/isoko/internal/models"
	"github.com/isoko-app/isoko/internal/session"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Session{}, &models.Quote{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newSession(t *testing.T, db *gorm.DB) *models.Session {
	t.Helper()
	s, err := session.Create(db, session.CreateOpts{
		RequesterID: "user-1",
		FlowType:    "pharmacy_quotes",
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return s
}

func addQuote(t *testing.T, db *gorm.DB, sessionID string, price float64, etaMinutes int) *models.Quote {
	t.Helper()
	q, err := Add(db, AddOpts{
		SessionID:            sessionID,
		VendorName:           "vendor",
		PriceAmount:          &price,
		EstimatedTimeMinutes: &etaMinutes,
	})
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	return q
}

func TestGenerateID_Format(t *testing.T) {
	id, err := GenerateID()
	if err != nil {
		t.Fatalf("GenerateID() error: %v", err)
	}
	if !strings.HasPrefix(id, "qt-") {
		t.Errorf("ID %q missing qt- prefix", id)
	}
	if len(id) != 8 {
		t.Errorf("ID length = %d, want 8; id = %q", len(id), id)
	}
}

func TestAdd_Defaults(t *testing.T) {
	db := openTestDB(t)
	s := newSession(t, db)

	q, err := Add(db, AddOpts{
		SessionID:  s.ID,
		VendorName: "Kimironko Pharmacy",
		OfferData:  models.JSONMap{"raw": "2000 RWF, ready in 15"},
	})
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	if q.Status != models.QuoteReceived {
		t.Errorf("status = %s, want received", q.Status)
	}
	if q.PriceCurrency != DefaultCurrency {
		t.Errorf("currency = %s, want %s", q.PriceCurrency, DefaultCurrency)
	}
	if q.ExpiresAt == nil {
		t.Fatal("expires_at must be set")
	}
	want := q.ReceivedAt.Add(DefaultExpiryMinutes * time.Minute)
	if !q.ExpiresAt.Equal(want) {
		t.Errorf("expires_at = %s, want received+%dm", q.ExpiresAt, DefaultExpiryMinutes)
	}
	if q.PriceAmount != nil {
		t.Error("unparsed offer must keep price absent")
	}
}

func TestAdd_CustomExpiry(t *testing.T) {
	db := openTestDB(t)
	s := newSession(t, db)

	q, err := Add(db, AddOpts{SessionID: s.ID, ExpiresInMinutes: 30})
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	want := q.ReceivedAt.Add(30 * time.Minute)
	if !q.ExpiresAt.Equal(want) {
		t.Errorf("expires_at = %s, want received+30m", q.ExpiresAt)
	}
}

func TestAdd_SessionRequired(t *testing.T) {
	db := openTestDB(t)
	if _, err := Add(db, AddOpts{}); !fault.IsValidation(err) {
		t.Errorf("Add() without session error = %v, want validation", err)
	}
	if _, err := Add(db, AddOpts{SessionID: "ng-nope1"}); !fault.IsNotFound(err) {
		t.Errorf("Add() for missing session error = %v, want not-found", err)
	}
}

func TestListForSession_ReceivedOrder(t *testing.T) {
	db := openTestDB(t)
	s := newSession(t, db)

	first := addQuote(t, db, s.ID, 1000, 10)
	db.Model(first).Update("received_at", time.Now().Add(-time.Minute))
	second := addQuote(t, db, s.ID, 2000, 5)

	got, err := ListForSession(db, s.ID)
	if err != nil {
		t.Fatalf("ListForSession() error: %v", err)
	}
	if len(got) != 2 || got[0].ID != first.ID || got[1].ID != second.ID {
		t.Errorf("order wrong: got %d quotes", len(got))
	}
}

// Scenario: three priced quotes rank by price ascending, regardless of ETA.
func TestBest_RanksByPrice(t *testing.T) {
	db := openTestDB(t)
	s := newSession(t, db)

	q1200 := addQuote(t, db, s.ID, 1200, 10)
	q900 := addQuote(t, db, s.ID, 900, 15)
	addQuote(t, db, s.ID, 1500, 8)

	got, err := Best(db, s.ID, 2, time.Now())
	if err != nil {
		t.Fatalf("Best() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != q900.ID {
		t.Errorf("best = %s (price %v), want the 900 quote", got[0].ID, got[0].PriceAmount)
	}
	if got[1].ID != q1200.ID {
		t.Errorf("second = %s, want the 1200 quote", got[1].ID)
	}
}

func TestBest_TieBreaksOnTime(t *testing.T) {
	db := openTestDB(t)
	s := newSession(t, db)

	slow := addQuote(t, db, s.ID, 1000, 20)
	fast := addQuote(t, db, s.ID, 1000, 5)

	got, err := Best(db, s.ID, 3, time.Now())
	if err != nil {
		t.Fatalf("Best() error: %v", err)
	}
	if got[0].ID != fast.ID || got[1].ID != slow.ID {
		t.Errorf("tie-break order = [%s %s], want fast first", got[0].ID, got[1].ID)
	}
}

func TestBest_MissingFieldsKeepReceivedOrder(t *testing.T) {
	db := openTestDB(t)
	s := newSession(t, db)

	bare1, err := Add(db, AddOpts{SessionID: s.ID, VendorName: "first"})
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	db.Model(bare1).Update("received_at", time.Now().Add(-time.Minute))
	bare2, err := Add(db, AddOpts{SessionID: s.ID, VendorName: "second"})
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	got, err := Best(db, s.ID, 3, time.Now())
	if err != nil {
		t.Fatalf("Best() error: %v", err)
	}
	if len(got) != 2 || got[0].ID != bare1.ID || got[1].ID != bare2.ID {
		t.Errorf("quotes without price or time must keep received order")
	}
}

func TestBest_TimeFallbackWhenPriceAbsent(t *testing.T) {
	db := openTestDB(t)
	s := newSession(t, db)

	eta20 := 20
	priced, err := Add(db, AddOpts{SessionID: s.ID, PriceAmount: f64(800), EstimatedTimeMinutes: &eta20})
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	eta5 := 5
	unpriced, err := Add(db, AddOpts{SessionID: s.ID, EstimatedTimeMinutes: &eta5})
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	got, err := Best(db, s.ID, 3, time.Now())
	if err != nil {
		t.Fatalf("Best() error: %v", err)
	}
	// With a price on only one side, the comparison falls back to time.
	if got[0].ID != unpriced.ID || got[1].ID != priced.ID {
		t.Errorf("order = [%s %s], want the 5-minute quote first", got[0].ID, got[1].ID)
	}
}

func TestBest_FiltersExpiredAndNonReceived(t *testing.T) {
	db := openTestDB(t)
	s := newSession(t, db)

	usable := addQuote(t, db, s.ID, 1000, 10)

	stale := addQuote(t, db, s.ID, 500, 5)
	db.Model(stale).Update("expires_at", time.Now().Add(-time.Minute))

	rejected := addQuote(t, db, s.ID, 600, 5)
	if err := UpdateStatus(db, rejected.ID, models.QuoteRejected); err != nil {
		t.Fatalf("UpdateStatus() error: %v", err)
	}

	got, err := Best(db, s.ID, 3, time.Now())
	if err != nil {
		t.Fatalf("Best() error: %v", err)
	}
	if len(got) != 1 || got[0].ID != usable.ID {
		t.Errorf("usable quotes = %d, want just %s", len(got), usable.ID)
	}
}

// Ranking is a pure function of the quote set: two calls with no writes in
// between return identical ordering.
func TestBest_Deterministic(t *testing.T) {
	db := openTestDB(t)
	s := newSession(t, db)

	addQuote(t, db, s.ID, 1200, 10)
	addQuote(t, db, s.ID, 900, 15)
	addQuote(t, db, s.ID, 900, 15)
	addQuote(t, db, s.ID, 1500, 8)

	first, err := Best(db, s.ID, 4, time.Now())
	if err != nil {
		t.Fatalf("Best() error: %v", err)
	}
	second, err := Best(db, s.ID, 4, time.Now())
	if err != nil {
		t.Fatalf("Best() error: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("position %d differs: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	db := openTestDB(t)
	if err := UpdateStatus(db, "qt-nope1", models.QuoteWithdrawn); !fault.IsNotFound(err) {
		t.Errorf("error = %v, want not-found", err)
	}
}

func TestAccept_RejectsSiblings(t *testing.T) {
	db := openTestDB(t)
	s := newSession(t, db)

	winner := addQuote(t, db, s.ID, 900, 15)
	loser1 := addQuote(t, db, s.ID, 1200, 10)
	loser2 := addQuote(t, db, s.ID, 1500, 8)

	withdrawn := addQuote(t, db, s.ID, 700, 5)
	if err := UpdateStatus(db, withdrawn.ID, models.QuoteWithdrawn); err != nil {
		t.Fatalf("UpdateStatus() error: %v", err)
	}

	if err := Accept(db, winner.ID, s.ID); err != nil {
		t.Fatalf("Accept() error: %v", err)
	}

	check := func(id string, want models.QuoteStatus) {
		t.Helper()
		q, err := Get(db, id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if q.Status != want {
			t.Errorf("quote %s status = %s, want %s", id, q.Status, want)
		}
	}
	check(winner.ID, models.QuoteAccepted)
	check(loser1.ID, models.QuoteRejected)
	check(loser2.ID, models.QuoteRejected)
	// Terminal siblings are left alone.
	check(withdrawn.ID, models.QuoteWithdrawn)
}

// Single-winner invariant: a second accept on the same session is refused.
func TestAccept_SecondAcceptIsRace(t *testing.T) {
	db := openTestDB(t)
	s := newSession(t, db)

	first := addQuote(t, db, s.ID, 900, 15)
	second := addQuote(t, db, s.ID, 1200, 10)

	if err := Accept(db, first.ID, s.ID); err != nil {
		t.Fatalf("Accept() error: %v", err)
	}
	err := Accept(db, second.ID, s.ID)
	if !fault.IsRace(err) {
		t.Fatalf("second Accept() error = %v, want race condition", err)
	}

	var accepted int64
	db.Model(&models.Quote{}).Where("session_id = ? AND status = ?", s.ID, models.QuoteAccepted).Count(&accepted)
	if accepted != 1 {
		t.Errorf("accepted quotes = %d, want exactly 1", accepted)
	}
}

func TestAccept_NotFound(t *testing.T) {
	db := openTestDB(t)
	s := newSession(t, db)
	if err := Accept(db, "qt-nope1", s.ID); !fault.IsNotFound(err) {
		t.Errorf("error = %v, want not-found", err)
	}
}

// A quote added after the accept keeps its received status; it is never left
// next to a second accepted quote.
func TestAccept_LateQuoteStaysReceived(t *testing.T) {
	db := openTestDB(t)
	s := newSession(t, db)

	winner := addQuote(t, db, s.ID, 900, 15)
	if err := Accept(db, winner.ID, s.ID); err != nil {
		t.Fatalf("Accept() error: %v", err)
	}

	late := addQuote(t, db, s.ID, 800, 5)
	got, err := Get(db, late.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Status != models.QuoteReceived {
		t.Errorf("late quote status = %s, want received", got.Status)
	}
}

func TestExpireOld(t *testing.T) {
	db := openTestDB(t)
	s := newSession(t, db)

	// Already-expired quote forced to pending (test setup for the sweep).
	stale, err := Add(db, AddOpts{SessionID: s.ID, ExpiresInMinutes: -1})
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	db.Model(stale).Update("status", models.QuotePending)

	fresh := addQuote(t, db, s.ID, 1000, 10)

	count, err := ExpireOld(db, time.Now())
	if err != nil {
		t.Fatalf("ExpireOld() error: %v", err)
	}
	if count != 1 {
		t.Errorf("expired count = %d, want 1", count)
	}

	got, _ := Get(db, stale.ID)
	if got.Status != models.QuoteExpired {
		t.Errorf("stale quote status = %s, want expired", got.Status)
	}
	got, _ = Get(db, fresh.ID)
	if got.Status != models.QuoteReceived {
		t.Errorf("fresh quote status = %s, want received", got.Status)
	}

	// Second sweep finds nothing; that is a zero, not an error.
	count, err = ExpireOld(db, time.Now())
	if err != nil {
		t.Fatalf("second ExpireOld() error: %v", err)
	}
	if count != 0 {
		t.Errorf("second sweep count = %d, want 0", count)
	}
}

// A received quote past its expiry must not stay received forever: the sweep
// moves it to expired, not just out of the ranking.
func TestExpireOld_ReceivedPastExpiry(t *testing.T) {
	db := openTestDB(t)
	s := newSession(t, db)

	stale, err := Add(db, AddOpts{SessionID: s.ID, ExpiresInMinutes: -1})
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if stale.Status != models.QuoteReceived {
		t.Fatalf("status = %s, want received", stale.Status)
	}

	accepted := addQuote(t, db, s.ID, 900, 10)
	if err := Accept(db, accepted.ID, s.ID); err != nil {
		t.Fatalf("Accept() error: %v", err)
	}
	db.Model(accepted).Update("expires_at", time.Now().Add(-time.Minute))

	count, err := ExpireOld(db, time.Now())
	if err != nil {
		t.Fatalf("ExpireOld() error: %v", err)
	}
	if count != 1 {
		t.Errorf("expired count = %d, want 1", count)
	}

	got, _ := Get(db, stale.ID)
	if got.Status != models.QuoteExpired {
		t.Errorf("stale quote status = %s, want expired", got.Status)
	}
	// Terminal quotes are out of the sweep's reach even past expiry.
	got, _ = Get(db, accepted.ID)
	if got.Status != models.QuoteAccepted {
		t.Errorf("accepted quote status = %s, want accepted", got.Status)
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	s := newSession(t, db)

	addQuote(t, db, s.ID, 1000, 10)
	addQuote(t, db, s.ID, 2000, 20)

	pending, err := Add(db, AddOpts{SessionID: s.ID})
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	db.Model(pending).Update("status", models.QuotePending)

	stats, err := GetStats(db, s.ID)
	if err != nil {
		t.Fatalf("GetStats() error: %v", err)
	}
	if stats.Total != 3 || stats.Received != 2 || stats.Pending != 1 || stats.Expired != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.AvgPrice == nil || *stats.AvgPrice != 1500 {
		t.Errorf("avg price = %v, want 1500", stats.AvgPrice)
	}
	if stats.AvgTimeMinutes == nil || *stats.AvgTimeMinutes != 15 {
		t.Errorf("avg time = %v, want 15", stats.AvgTimeMinutes)
	}
}

func TestGetStats_Empty(t *testing.T) {
	db := openTestDB(t)
	s := newSession(t, db)

	stats, err := GetStats(db, s.ID)
	if err != nil {
		t.Fatalf("GetStats() error: %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("total = %d, want 0", stats.Total)
	}
	if stats.AvgPrice != nil || stats.AvgTimeMinutes != nil {
		t.Error("averages must be absent with no quotes")
	}
}

func f64(v float64) *float64 {
	return &v
}
