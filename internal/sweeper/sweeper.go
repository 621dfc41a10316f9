// Package sweeper drives the periodic background passes: hard-deadline
// timeouts, expiring-soon prompts, and quote expiry. The sweep functions
// themselves take an explicit "now", so any external scheduler can run them;
// Run wires them into a cron scheduler for deployments that want one
// in-process.
package sweeper

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/isoko-app/isoko/internal/negotiation"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule is the reference cadence from the design: once per minute.
const DefaultSchedule = "@every 1m"

// Opts holds parameters for running the sweeper.
type Opts struct {
	Orchestrator *negotiation.Orchestrator
	Schedule     string    // cron spec, defaults to DefaultSchedule
	Out          io.Writer // optional progress output
}

// RunOnce executes all three sweeps against the given instant. Each sweep's
// failure is logged without blocking the others: one bad batch must not
// starve the rest.
func RunOnce(ctx context.Context, orch *negotiation.Orchestrator, now time.Time, out io.Writer) {
	if out == nil {
		out = io.Discard
	}

	timedOut, err := orch.TimeoutExpiredSessions(now)
	if err != nil {
		log.Printf("sweeper: timeout sweep: %v", err)
	} else if timedOut > 0 {
		fmt.Fprintf(out, "Timed out %d sessions\n", timedOut)
	}

	warned, err := orch.MonitorExpiringSessions(ctx, now)
	if err != nil {
		log.Printf("sweeper: expiring-soon sweep: %v", err)
	} else if warned > 0 {
		fmt.Fprintf(out, "Sent %d expiring-soon prompts\n", warned)
	}

	expired, err := orch.ExpireQuotes(now)
	if err != nil {
		log.Printf("sweeper: quote expiry sweep: %v", err)
	} else if expired > 0 {
		fmt.Fprintf(out, "Expired %d quotes\n", expired)
	}
}

// Run schedules RunOnce on the configured cadence and blocks until ctx is
// cancelled.
func Run(ctx context.Context, opts Opts) error {
	if opts.Orchestrator == nil {
		return fmt.Errorf("sweeper: orchestrator is required")
	}
	schedule := opts.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		RunOnce(ctx, opts.Orchestrator, time.Now(), opts.Out)
	})
	if err != nil {
		return fmt.Errorf("sweeper: schedule %q: %w", schedule, err)
	}

	c.Start()
	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Sweeper running (%s)\n", schedule)
	}
	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}
