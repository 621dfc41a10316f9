package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidation(t *testing.T) {
	err := Validation("requester id is required")
	if !IsValidation(err) {
		t.Error("IsValidation() = false")
	}
	if IsNotFound(err) || IsRace(err) {
		t.Error("validation error matched the wrong kind")
	}
	if err.Error() != "requester id is required" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestNotFound(t *testing.T) {
	err := NotFound("session", "ng-abc12")
	if !IsNotFound(err) {
		t.Error("IsNotFound() = false")
	}
	if err.Error() != "session not found: ng-abc12" {
		t.Errorf("Error() = %q", err.Error())
	}

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatal("errors.As failed")
	}
	if nf.Entity != "session" || nf.ID != "ng-abc12" {
		t.Errorf("entity/id = %s/%s", nf.Entity, nf.ID)
	}
}

func TestRace(t *testing.T) {
	err := Race("quote: accept", "session %s already has an accepted quote", "ng-abc12")
	if !IsRace(err) {
		t.Error("IsRace() = false")
	}
}

// Kinds must survive %w wrapping: the core wraps at every layer boundary.
func TestKindsSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("negotiation: complete: %w", NotFound("quote", "qt-abc12"))
	if !IsNotFound(wrapped) {
		t.Error("IsNotFound() = false through a wrap")
	}

	double := fmt.Errorf("api: %w", fmt.Errorf("session: %w", Validation("bad input")))
	if !IsValidation(double) {
		t.Error("IsValidation() = false through two wraps")
	}
}

func TestPlainErrorsMatchNothing(t *testing.T) {
	err := errors.New("disk on fire")
	if IsValidation(err) || IsNotFound(err) || IsRace(err) {
		t.Error("plain error matched a fault kind")
	}
}
