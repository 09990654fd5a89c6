package domain_test

import (
	"testing"
	"time"

	"github.com/ardelhq/ebics-sync/internal/domain"
)

func TestConnectionStateDerivation(t *testing.T) {
	conn := &domain.Connection{ID: "conn-1"}

	if got := conn.State(); got != domain.StateNew {
		t.Errorf("Expected state NEW, got %s", got)
	}

	conn.Flags.KeysCreated = true
	if got := conn.State(); got != domain.StateKeysCreated {
		t.Errorf("Expected state KEYS_CREATED, got %s", got)
	}

	conn.Flags.INISent = true
	if got := conn.State(); got != domain.StateINISent {
		t.Errorf("Expected state INI_SENT, got %s", got)
	}

	conn.Flags.HIASent = true
	if got := conn.State(); got != domain.StateHIASent {
		t.Errorf("Expected state HIA_SENT, got %s", got)
	}

	conn.Flags.LetterCreated = true
	if got := conn.State(); got != domain.StateAwaitingActivation {
		t.Errorf("Expected state AWAITING_BANK_ACTIVATION, got %s", got)
	}

	conn.Flags.BankActivationConfirmed = true
	if got := conn.State(); got != domain.StateLetterCreated {
		t.Errorf("Expected state LETTER_CREATED, got %s", got)
	}

	conn.Flags.HPBDownloaded = true
	if got := conn.State(); got != domain.StateHPBDownloaded {
		t.Errorf("Expected state HPB_DOWNLOADED, got %s", got)
	}

	conn.Flags.Activated = true
	if got := conn.State(); got != domain.StateActivated {
		t.Errorf("Expected state ACTIVATED, got %s", got)
	}
}

func TestAdvanceSyncedUntilIsMonotonic(t *testing.T) {
	conn := &domain.Connection{ID: "conn-1"}

	day1, _ := time.Parse("2006-01-02", "2024-01-05")
	day2, _ := time.Parse("2006-01-02", "2024-01-07")

	if err := conn.AdvanceSyncedUntil(day1); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := conn.AdvanceSyncedUntil(day2); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !conn.SyncedUntil.Equal(day2) {
		t.Errorf("Expected watermark %v, got %v", day2, conn.SyncedUntil)
	}

	// Moving backward must be rejected and leave the watermark untouched
	if err := conn.AdvanceSyncedUntil(day1); err == nil {
		t.Error("Expected error when moving watermark backward, got nil")
	}
	if !conn.SyncedUntil.Equal(day2) {
		t.Errorf("Expected watermark to stay at %v, got %v", day2, conn.SyncedUntil)
	}

	// Re-advancing to the same day is allowed
	if err := conn.AdvanceSyncedUntil(day2); err != nil {
		t.Errorf("Unexpected error re-advancing to same day: %v", err)
	}
}

func TestResetWorkflowClearsEverything(t *testing.T) {
	day, _ := time.Parse("2006-01-02", "2024-03-01")
	conn := &domain.Connection{
		ID: "conn-1",
		Flags: domain.WorkflowFlags{
			KeysCreated:             true,
			INISent:                 true,
			HIASent:                 true,
			LetterCreated:           true,
			BankActivationConfirmed: true,
			HPBDownloaded:           true,
			Activated:               true,
		},
		SyncedUntil: day,
	}

	conn.ResetWorkflow()

	if conn.Flags != (domain.WorkflowFlags{}) {
		t.Errorf("Expected all flags cleared, got %+v", conn.Flags)
	}
	if !conn.SyncedUntil.IsZero() {
		t.Errorf("Expected watermark cleared, got %v", conn.SyncedUntil)
	}
	if got := conn.State(); got != domain.StateNew {
		t.Errorf("Expected state NEW after reset, got %s", got)
	}
}
