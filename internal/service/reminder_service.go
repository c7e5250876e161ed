package service

import (
	"time"

	"github.com/monetaapp/moneta-backend/internal/domain"
)

// DefaultReminderHorizonDays is used when no horizon is configured
const DefaultReminderHorizonDays = 7

// ReminderService surfaces installments coming due so a notification
// component can turn them into reminders. It only reads; delivery is
// somebody else's job.
type ReminderService struct {
	installmentRepo domain.InstallmentRepository
	horizonDays     int
	now             func() time.Time
}

// NewReminderService creates a new ReminderService
func NewReminderService(installmentRepo domain.InstallmentRepository, horizonDays int) *ReminderService {
	if horizonDays < 1 {
		horizonDays = DefaultReminderHorizonDays
	}
	return &ReminderService{
		installmentRepo: installmentRepo,
		horizonDays:     horizonDays,
		now:             time.Now,
	}
}

// SetClock overrides the clock, for tests
func (s *ReminderService) SetClock(now func() time.Time) {
	s.now = now
}

// UpcomingInstallments returns pending installments due within the given
// horizon, already-overdue ones included. A non-positive days argument
// falls back to the configured horizon.
func (s *ReminderService) UpcomingInstallments(days int) ([]*domain.UpcomingInstallment, error) {
	if days < 1 {
		days = s.horizonDays
	}
	until := s.now().AddDate(0, 0, days)
	return s.installmentRepo.ListDueWithin(until)
}
