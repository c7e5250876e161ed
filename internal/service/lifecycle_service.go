package service

import (
	"context"
	"time"

	"github.com/monetaapp/moneta-backend/internal/domain"
	"github.com/monetaapp/moneta-backend/internal/websocket"
	"github.com/shopspring/decimal"
)

// LifecycleService recomputes a loan's aggregate fields from its current
// installment set and persists them in one write. Synchronization always
// runs with the loan row locked, so two concurrent mutations of the same
// loan cannot lose an aggregate update.
type LifecycleService struct {
	txRunner        domain.TxRunner
	loanRepo        domain.LoanRepository
	installmentRepo domain.InstallmentRepository
	eventPublisher  websocket.EventPublisher
	now             func() time.Time
}

// NewLifecycleService creates a new LifecycleService
func NewLifecycleService(txRunner domain.TxRunner, loanRepo domain.LoanRepository, installmentRepo domain.InstallmentRepository) *LifecycleService {
	return &LifecycleService{
		txRunner:        txRunner,
		loanRepo:        loanRepo,
		installmentRepo: installmentRepo,
		now:             time.Now,
	}
}

// SetEventPublisher sets the publisher for real-time loan updates
func (s *LifecycleService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// SetClock overrides the clock, for tests
func (s *LifecycleService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *LifecycleService) publishEvent(event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(event)
	}
}

// ComputeAggregate derives the loan aggregate from the installment set.
//
// Remaining debt sums the total payment of every unpaid installment, so
// it includes interest not yet accrued. That matches the numbers users
// have always seen; see DESIGN.md before changing it.
func ComputeAggregate(installments []*domain.Installment, now time.Time) domain.LoanAggregate {
	agg := domain.LoanAggregate{
		RemainingDebt: decimal.Zero,
		Status:        domain.LoanStatusActive,
	}

	total := len(installments)
	paid := 0
	anyOverdue := false

	for _, inst := range installments {
		if inst.IsPaid() {
			paid++
			continue
		}
		agg.RemainingInstallments++
		agg.RemainingDebt = agg.RemainingDebt.Add(inst.TotalPayment)
		if inst.StatusAt(now) == domain.InstallmentStatusOverdue {
			anyOverdue = true
		}
	}

	if total > 0 {
		agg.PaymentProgress = float64(paid) / float64(total) * 100
	}

	switch {
	case agg.RemainingInstallments == 0:
		agg.Status = domain.LoanStatusClosed
	case anyOverdue:
		agg.Status = domain.LoanStatusOverdue
	}

	return agg
}

// SynchronizeLoan recomputes and persists the aggregate for a loan.
// Calling it again with no intervening mutation yields identical values.
func (s *LifecycleService) SynchronizeLoan(ctx context.Context, loanID int32) (*domain.Loan, error) {
	var loan *domain.Loan
	err := s.txRunner.WithinTx(ctx, func(tx interface{}) error {
		var err error
		loan, err = s.synchronizeTx(tx, loanID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(websocket.LoanSynced(loan))
	return loan, nil
}

// synchronizeTx runs the read-compute-write cycle inside an existing
// transaction. The caller must already hold, or acquire here, the loan
// row lock; services that mutated installments earlier in the same
// transaction have it already and the re-acquisition is a no-op.
func (s *LifecycleService) synchronizeTx(tx interface{}, loanID int32) (*domain.Loan, error) {
	if _, err := s.loanRepo.GetByIDForUpdateTx(tx, loanID); err != nil {
		return nil, err
	}

	installments, err := s.installmentRepo.GetByLoanIDTx(tx, loanID)
	if err != nil {
		return nil, err
	}

	agg := ComputeAggregate(installments, s.now())
	return s.loanRepo.UpdateAggregateTx(tx, loanID, agg)
}
