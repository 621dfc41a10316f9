// Package negotiation implements the orchestrator that drives a time-boxed,
// multi-vendor quote-collection run: open a session, fan out to candidate
// vendors, collect and rank concurrently arriving quotes, and close the
// session by acceptance, cancellation, or timeout.
package negotiation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/isoko-app/isoko/internal/directory"
	"github.com/isoko-app/isoko/internal/messaging"
	"github.com/isoko-app/isoko/internal/models"
	"github.com/isoko-app/isoko/internal/quote"
	"github.com/isoko-app/isoko/internal/session"
	"gorm.io/gorm"
)

// DefaultExpiringSoonWindow is how far ahead of the deadline the monitor
// sweep warns the requester.
const DefaultExpiringSoonWindow = time.Minute

// Orchestrator is the façade over the session and quote lifecycles. It holds
// no in-memory session state: the database is the only shared resource, so
// any number of orchestrators can run against the same store.
type Orchestrator struct {
	db                 *gorm.DB
	directory          directory.Directory
	messenger          messaging.Messenger
	windowMinutes      int
	quoteExpiryMinutes int
	bestLimit          int
	expiringSoonWindow time.Duration
}

// Opts holds parameters for creating an Orchestrator.
type Opts struct {
	DB        *gorm.DB
	Directory directory.Directory
	Messenger messaging.Messenger // defaults to the log-only messenger

	DefaultWindowMinutes int           // defaults to session.DefaultWindowMinutes
	QuoteExpiryMinutes   int           // defaults to quote.DefaultExpiryMinutes
	BestLimit            int           // defaults to quote.DefaultBestLimit
	ExpiringSoonWindow   time.Duration // defaults to DefaultExpiringSoonWindow
}

// New creates an Orchestrator.
func New(opts Opts) (*Orchestrator, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("negotiation: db is required")
	}
	if opts.Directory == nil {
		return nil, fmt.Errorf("negotiation: directory is required")
	}
	messenger := opts.Messenger
	if messenger == nil {
		messenger = messaging.NewLog()
	}
	windowMinutes := opts.DefaultWindowMinutes
	if windowMinutes <= 0 {
		windowMinutes = session.DefaultWindowMinutes
	}
	quoteExpiry := opts.QuoteExpiryMinutes
	if quoteExpiry <= 0 {
		quoteExpiry = quote.DefaultExpiryMinutes
	}
	bestLimit := opts.BestLimit
	if bestLimit <= 0 {
		bestLimit = quote.DefaultBestLimit
	}
	expiringSoon := opts.ExpiringSoonWindow
	if expiringSoon <= 0 {
		expiringSoon = DefaultExpiringSoonWindow
	}
	return &Orchestrator{
		db:                 opts.DB,
		directory:          opts.Directory,
		messenger:          messenger,
		windowMinutes:      windowMinutes,
		quoteExpiryMinutes: quoteExpiry,
		bestLimit:          bestLimit,
		expiringSoonWindow: expiringSoon,
	}, nil
}

// DB exposes the underlying store for collaborators layered on top of the
// orchestrator (HTTP handlers, CLI).
func (o *Orchestrator) DB() *gorm.DB {
	return o.db
}

// StartOpts holds parameters for starting a negotiation.
type StartOpts struct {
	RequesterID   string
	FlowType      string
	RequestData   models.JSONMap
	WindowMinutes int // 0 applies the orchestrator default
}

// Result is a snapshot of a negotiation's progress.
type Result struct {
	SessionID        string
	Status           models.SessionStatus
	QuotesReceived   int
	Quotes           []models.Quote
	Best             *models.Quote
	VendorsContacted int
	TimeElapsed      time.Duration
	TimedOut         bool
}

// Start opens a session, discovers candidate vendors, and hands each one a
// quote request without waiting for replies. Zero candidates is a legitimate
// outcome: the session stays open and quotes may still arrive through the
// ingress path. A discovery failure marks the session errored and propagates.
func (o *Orchestrator) Start(ctx context.Context, opts StartOpts) (*Result, error) {
	window := opts.WindowMinutes
	if window <= 0 {
		window = o.windowMinutes
	}
	s, err := session.Create(o.db, session.CreateOpts{
		RequesterID:   opts.RequesterID,
		FlowType:      opts.FlowType,
		RequestData:   opts.RequestData,
		WindowMinutes: window,
	})
	if err != nil {
		return nil, err
	}

	vendors, err := o.directory.FindVendors(ctx, opts.FlowType, opts.RequestData)
	if err != nil {
		if uerr := session.UpdateStatus(o.db, s.ID, models.SessionError, models.JSONMap{
			"error": err.Error(),
		}); uerr != nil {
			log.Printf("negotiation: mark session %s errored: %v", s.ID, uerr)
		}
		return nil, fmt.Errorf("negotiation: discover vendors for %s: %w", s.ID, err)
	}

	for _, v := range vendors {
		req := messaging.QuoteRequest{
			SessionID: s.ID,
			FlowType:  opts.FlowType,
			Vendor:    v,
			Details:   opts.RequestData,
		}
		// Fire-and-forget: a failed contact attempt must not fail the start.
		if err := o.messenger.SendQuoteRequest(ctx, req); err != nil {
			log.Printf("negotiation: contact vendor %s for session %s: %v", v.Name, s.ID, err)
		}
	}

	log.Printf("negotiation: %s started, %d vendors contacted [flow=%s]",
		s.ID, len(vendors), opts.FlowType)
	return &Result{
		SessionID:        s.ID,
		Status:           s.Status,
		Quotes:           []models.Quote{},
		VendorsContacted: len(vendors),
	}, nil
}

// GetResult reports the current state of a negotiation: elapsed time, all
// quotes in arrival order, and the top-ranked usable quote if any.
func (o *Orchestrator) GetResult(sessionID string) (*Result, error) {
	s, err := session.Get(o.db, sessionID)
	if err != nil {
		return nil, err
	}
	quotes, err := quote.ListForSession(o.db, sessionID)
	if err != nil {
		return nil, err
	}
	best, err := quote.Best(o.db, sessionID, 1, time.Now())
	if err != nil {
		return nil, err
	}

	result := &Result{
		SessionID:      s.ID,
		Status:         s.Status,
		QuotesReceived: len(quotes),
		Quotes:         quotes,
		TimeElapsed:    time.Since(s.StartedAt),
		TimedOut:       s.Status == models.SessionTimeout,
	}
	if len(best) > 0 {
		result.Best = &best[0]
	}
	return result, nil
}

// BestQuotes returns the top-ranked usable quotes for a session.
func (o *Orchestrator) BestQuotes(sessionID string, limit int) ([]models.Quote, error) {
	if limit <= 0 {
		limit = o.bestLimit
	}
	if _, err := session.Get(o.db, sessionID); err != nil {
		return nil, err
	}
	return quote.Best(o.db, sessionID, limit, time.Now())
}

// AddQuote records a vendor reply arriving through the ingress path. A reply
// that states no validity period gets the orchestrator's configured expiry.
func (o *Orchestrator) AddQuote(opts quote.AddOpts) (*models.Quote, error) {
	if opts.ExpiresInMinutes == 0 {
		opts.ExpiresInMinutes = o.quoteExpiryMinutes
	}
	return quote.Add(o.db, opts)
}

// Complete accepts the named quote, rejects its siblings, and closes the
// session as completed with the winner recorded. This is the only path that
// sets SelectedQuoteID. A completion racing the timeout sweep follows
// last-write-wins; the windows are minutes-scale and the trade-off is
// deliberate.
func (o *Orchestrator) Complete(sessionID, quoteID string) error {
	if err := quote.Accept(o.db, quoteID, sessionID); err != nil {
		return err
	}
	return session.Complete(o.db, sessionID, quoteID, models.JSONMap{
		"selected_quote_id": quoteID,
	})
}

// Cancel closes the session as cancelled with an auditable reason.
func (o *Orchestrator) Cancel(sessionID, reason string) error {
	return session.Cancel(o.db, sessionID, reason)
}

// Extend pushes the session deadline out by the given number of minutes.
func (o *Orchestrator) Extend(sessionID string, minutes int) (*models.Session, error) {
	return session.Extend(o.db, sessionID, minutes)
}

// Stats returns the quote aggregate for a session.
func (o *Orchestrator) Stats(sessionID string) (*quote.Stats, error) {
	if _, err := session.Get(o.db, sessionID); err != nil {
		return nil, err
	}
	return quote.GetStats(o.db, sessionID)
}

// ActiveForRequester lists the requester's in-flight sessions, newest first.
func (o *Orchestrator) ActiveForRequester(requesterID string) ([]models.Session, error) {
	return session.ListActiveForRequester(o.db, requesterID)
}

// MonitorExpiringSessions is the expiring-soon sweep: for each active session
// whose deadline falls within the warning window of now, forward a prompt to
// the messaging layer. Per-session failures are logged and do not abort the
// batch. Returns how many prompts were dispatched.
func (o *Orchestrator) MonitorExpiringSessions(ctx context.Context, now time.Time) (int, error) {
	sessions, err := session.ListExpiringSoon(o.db, now, o.expiringSoonWindow)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range sessions {
		if err := o.messenger.SendExpiringSoonPrompt(ctx, &sessions[i]); err != nil {
			log.Printf("negotiation: expiring-soon prompt for %s: %v", sessions[i].ID, err)
			continue
		}
		sent++
	}
	return sent, nil
}

// TimeoutExpiredSessions is the hard-deadline sweep: every active session
// whose deadline is behind now is marked timed out. Overlapping runs are
// safe because Timeout is idempotent; per-session failures are logged and do
// not abort the batch. Returns how many sessions were transitioned.
func (o *Orchestrator) TimeoutExpiredSessions(now time.Time) (int, error) {
	sessions, err := session.ListDeadlinePassed(o.db, now)
	if err != nil {
		return 0, err
	}

	timedOut := 0
	for _, s := range sessions {
		if err := session.Timeout(o.db, s.ID, now); err != nil {
			log.Printf("negotiation: timeout session %s: %v", s.ID, err)
			continue
		}
		timedOut++
	}
	return timedOut, nil
}

// ExpireQuotes is the quote-expiry sweep, delegated to the quote package.
func (o *Orchestrator) ExpireQuotes(now time.Time) (int64, error) {
	return quote.ExpireOld(o.db, now)
}
