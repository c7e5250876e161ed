package domain

import (
	"testing"
	"time"
)

func TestInstallmentStatusConstants(t *testing.T) {
	tests := []struct {
		name     string
		status   InstallmentStatus
		expected string
	}{
		{"pending status", InstallmentStatusPending, "pending"},
		{"paid status", InstallmentStatusPaid, "paid"},
		{"overdue status", InstallmentStatusOverdue, "overdue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.status) != tt.expected {
				t.Errorf("InstallmentStatus constant %s = %s, want %s", tt.name, tt.status, tt.expected)
			}
		})
	}
}

func TestStatusAt_PendingBeforeDueDate(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	inst := &Installment{
		DueDate: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		Status:  InstallmentStatusPending,
	}

	if got := inst.StatusAt(now); got != InstallmentStatusPending {
		t.Errorf("Expected pending, got %s", got)
	}
}

func TestStatusAt_DueTodayStillPending(t *testing.T) {
	// Overdue starts the day after the due date, not at midnight of it
	now := time.Date(2024, 6, 15, 23, 59, 0, 0, time.UTC)
	inst := &Installment{
		DueDate: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		Status:  InstallmentStatusPending,
	}

	if got := inst.StatusAt(now); got != InstallmentStatusPending {
		t.Errorf("Expected pending on due date, got %s", got)
	}
}

func TestStatusAt_OverdueAfterDueDate(t *testing.T) {
	now := time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC)
	inst := &Installment{
		DueDate: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		Status:  InstallmentStatusPending,
	}

	if got := inst.StatusAt(now); got != InstallmentStatusOverdue {
		t.Errorf("Expected overdue, got %s", got)
	}
}

func TestStatusAt_PaidNeverOverdue(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	inst := &Installment{
		DueDate: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		Status:  InstallmentStatusPaid,
	}

	if got := inst.StatusAt(now); got != InstallmentStatusPaid {
		t.Errorf("Expected paid, got %s", got)
	}
}

func TestStatusAt_EditingDueDateClearsOverdue(t *testing.T) {
	// Overdue is derived, not stored: pushing the due date into the
	// future takes the installment back to plain pending.
	now := time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC)
	inst := &Installment{
		DueDate: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		Status:  InstallmentStatusPending,
	}

	if got := inst.StatusAt(now); got != InstallmentStatusOverdue {
		t.Fatalf("Expected overdue before the edit, got %s", got)
	}

	inst.DueDate = time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)
	if got := inst.StatusAt(now); got != InstallmentStatusPending {
		t.Errorf("Expected pending after the edit, got %s", got)
	}
}

func TestFormatLabel(t *testing.T) {
	inst := &Installment{Number: 3}
	if got := inst.FormatLabel(12); got != "3/12" {
		t.Errorf("Expected label 3/12, got %s", got)
	}
}
