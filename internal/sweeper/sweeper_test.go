package sweeper

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/isoko-app/isoko/internal/config"
	"github.com/isoko-app/isoko/internal/db"
	"github.com/isoko-app/isoko/internal/directory"
	"github.com/isoko-app/isoko/internal/models"
	"github.com/isoko-app/isoko/internal/negotiation"
	"gorm.io/gorm"
)

type emptyDirectory struct{}

func (emptyDirectory) FindVendors(context.Context, string, models.JSONMap) ([]directory.VendorContact, error) {
	return nil, nil
}

func newTestOrchestrator(t *testing.T) (*negotiation.Orchestrator, *gorm.DB) {
	t.Helper()
	conn, err := db.Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	orch, err := negotiation.New(negotiation.Opts{DB: conn, Directory: emptyDirectory{}})
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	return orch, conn
}

func TestRunOnce_TimesOutExpiredSessions(t *testing.T) {
	orch, conn := newTestOrchestrator(t)

	result, err := orch.Start(context.Background(), negotiation.StartOpts{
		RequesterID: "usr-123456",
		FlowType:    "find_driver",
	})
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	// Pull the deadline into the past so the sweep picks the session up.
	past := time.Now().Add(-2 * time.Minute)
	if err := conn.Model(&models.Session{}).Where("id = ?", result.SessionID).
		Update("deadline_at", past).Error; err != nil {
		t.Fatalf("backdate deadline: %v", err)
	}

	var out bytes.Buffer
	RunOnce(context.Background(), orch, time.Now(), &out)

	got, err := orch.GetResult(result.SessionID)
	if err != nil {
		t.Fatalf("GetResult() error: %v", err)
	}
	if got.Status != models.SessionTimeout {
		t.Errorf("status = %s, want timeout", got.Status)
	}
	if !strings.Contains(out.String(), "Timed out 1 sessions") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunOnce_QuietWhenNothingToDo(t *testing.T) {
	orch, _ := newTestOrchestrator(t)

	var out bytes.Buffer
	RunOnce(context.Background(), orch, time.Now(), &out)
	if out.Len() != 0 {
		t.Errorf("output = %q, want empty", out.String())
	}
}

func TestRunOnce_NilWriter(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	RunOnce(context.Background(), orch, time.Now(), nil)
}

func TestRun_RequiresOrchestrator(t *testing.T) {
	if err := Run(context.Background(), Opts{}); err == nil {
		t.Error("Run() without orchestrator expected error")
	}
}

func TestRun_InvalidSchedule(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	err := Run(context.Background(), Opts{Orchestrator: orch, Schedule: "every minute or so"})
	if err == nil {
		t.Error("Run() with invalid schedule expected error")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Opts{Orchestrator: orch, Schedule: "@every 1h"})
	}()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}
