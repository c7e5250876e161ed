package service

import (
	"context"
	"strings"
	"time"

	"github.com/monetaapp/moneta-backend/internal/domain"
	"github.com/monetaapp/moneta-backend/internal/websocket"
	"github.com/shopspring/decimal"
)

// LoanService handles loan creation and installment-set mutations. Every
// mutation that can change an installment's status or due date ends with
// a lifecycle resynchronization inside the same transaction.
type LoanService struct {
	txRunner        domain.TxRunner
	loanRepo        domain.LoanRepository
	installmentRepo domain.InstallmentRepository
	paymentRepo     domain.PaymentRepository
	lifecycle       *LifecycleService
	eventPublisher  websocket.EventPublisher
	now             func() time.Time
}

// NewLoanService creates a new LoanService
func NewLoanService(txRunner domain.TxRunner, loanRepo domain.LoanRepository, installmentRepo domain.InstallmentRepository, paymentRepo domain.PaymentRepository, lifecycle *LifecycleService) *LoanService {
	return &LoanService{
		txRunner:        txRunner,
		loanRepo:        loanRepo,
		installmentRepo: installmentRepo,
		paymentRepo:     paymentRepo,
		lifecycle:       lifecycle,
		now:             time.Now,
	}
}

// SetEventPublisher sets the publisher for real-time loan updates
func (s *LoanService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// SetClock overrides the clock, for tests
func (s *LoanService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *LoanService) publishEvent(event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(event)
	}
}

// CreateLoanInput contains input for creating a loan
type CreateLoanInput struct {
	Name            string
	Principal       decimal.Decimal
	PeriodicRate    decimal.Decimal
	PeriodicPayment decimal.Decimal
	TermCount       int32
	StartDate       time.Time
	Period          domain.PeriodUnit
}

// CreateLoanResult is the created loan with its generated schedule
type CreateLoanResult struct {
	Loan         *domain.Loan
	Installments []*domain.Installment
	// NegativeAmortization warns that the periodic payment does not
	// cover first-period interest; the loan was created anyway.
	NegativeAmortization bool
}

// CreateLoan validates the terms, generates the installment schedule and
// persists loan plus schedule in one transaction. On any failure nothing
// is written: no loan without its schedule, no orphaned installments.
func (s *LoanService) CreateLoan(ctx context.Context, input CreateLoanInput) (*CreateLoanResult, error) {
	period := input.Period
	if period == "" {
		period = domain.PeriodMonth
	}

	loan := &domain.Loan{
		Name:            strings.TrimSpace(input.Name),
		Principal:       input.Principal,
		PeriodicRate:    input.PeriodicRate,
		PeriodicPayment: input.PeriodicPayment,
		TermCount:       input.TermCount,
		StartDate:       input.StartDate,
		Period:          period,
	}
	if err := loan.Validate(); err != nil {
		return nil, err
	}

	schedule, err := GenerateSchedule(ScheduleTerms{
		Principal:       input.Principal,
		PeriodicRate:    input.PeriodicRate,
		PeriodicPayment: input.PeriodicPayment,
		TermCount:       input.TermCount,
		StartDate:       input.StartDate,
		Period:          period,
	})
	if err != nil {
		return nil, err
	}

	agg := ComputeAggregate(schedule.Installments, s.now())
	loan.RemainingDebt = agg.RemainingDebt
	loan.RemainingInstallments = agg.RemainingInstallments
	loan.PaymentProgress = agg.PaymentProgress
	loan.Status = agg.Status

	err = s.txRunner.WithinTx(ctx, func(tx interface{}) error {
		created, err := s.loanRepo.CreateTx(tx, loan)
		if err != nil {
			return err
		}
		loan = created

		for _, inst := range schedule.Installments {
			inst.LoanID = created.ID
		}
		return s.installmentRepo.CreateBatchTx(tx, schedule.Installments)
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(websocket.LoanCreated(loan))

	return &CreateLoanResult{
		Loan:                 loan,
		Installments:         schedule.Installments,
		NegativeAmortization: schedule.NegativeAmortization,
	}, nil
}

// GetLoans retrieves all loans
func (s *LoanService) GetLoans() ([]*domain.Loan, error) {
	return s.loanRepo.GetAll()
}

// GetLoanByID retrieves a loan by ID
func (s *LoanService) GetLoanByID(id int32) (*domain.Loan, error) {
	return s.loanRepo.GetByID(id)
}

// GetInstallmentsByLoan retrieves the full installment set of a loan
func (s *LoanService) GetInstallmentsByLoan(loanID int32) ([]*domain.Installment, error) {
	if _, err := s.loanRepo.GetByID(loanID); err != nil {
		return nil, err
	}
	return s.installmentRepo.GetByLoanID(loanID)
}

// UpdateInstallmentDueDate moves the due date of a pending installment
// and resynchronizes the loan aggregate in the same transaction.
func (s *LoanService) UpdateInstallmentDueDate(ctx context.Context, loanID, number int32, dueDate time.Time) (*domain.Installment, error) {
	if dueDate.IsZero() {
		return nil, domain.ErrDueDateInvalid
	}

	var updated *domain.Installment
	err := s.txRunner.WithinTx(ctx, func(tx interface{}) error {
		if _, err := s.loanRepo.GetByIDForUpdateTx(tx, loanID); err != nil {
			return err
		}

		inst, err := s.installmentRepo.GetByLoanAndNumberTx(tx, loanID, number)
		if err != nil {
			return err
		}
		if inst.IsPaid() {
			return domain.ErrInstallmentNotPending
		}

		updated, err = s.installmentRepo.UpdateDueDateTx(tx, inst.ID, dueDate)
		if err != nil {
			return err
		}

		_, err = s.lifecycle.synchronizeTx(tx, loanID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(websocket.InstallmentUpdated(updated))
	return updated, nil
}

// DeleteInstallment removes a pending installment from the schedule and
// resynchronizes the loan aggregate. Paid installments are history and
// cannot be deleted.
func (s *LoanService) DeleteInstallment(ctx context.Context, loanID, number int32) error {
	var deleted *domain.Installment
	err := s.txRunner.WithinTx(ctx, func(tx interface{}) error {
		if _, err := s.loanRepo.GetByIDForUpdateTx(tx, loanID); err != nil {
			return err
		}

		inst, err := s.installmentRepo.GetByLoanAndNumberTx(tx, loanID, number)
		if err != nil {
			return err
		}
		if inst.IsPaid() {
			return domain.ErrInstallmentNotPending
		}
		deleted = inst

		if err := s.installmentRepo.DeleteTx(tx, inst.ID); err != nil {
			return err
		}

		_, err = s.lifecycle.synchronizeTx(tx, loanID)
		return err
	})
	if err != nil {
		return err
	}

	s.publishEvent(websocket.InstallmentDeleted(deleted))
	return nil
}

// RegenerateSchedule rebuilds the installment set from the loan's stored
// terms, replacing the current one, then resynchronizes. Rejected once
// any installment has been paid.
func (s *LoanService) RegenerateSchedule(ctx context.Context, loanID int32) ([]*domain.Installment, error) {
	var installments []*domain.Installment
	err := s.txRunner.WithinTx(ctx, func(tx interface{}) error {
		loan, err := s.loanRepo.GetByIDForUpdateTx(tx, loanID)
		if err != nil {
			return err
		}

		existing, err := s.installmentRepo.GetByLoanIDTx(tx, loanID)
		if err != nil {
			return err
		}
		for _, inst := range existing {
			if inst.IsPaid() {
				return domain.ErrLoanHasPaidInstallments
			}
		}

		schedule, err := GenerateSchedule(ScheduleTerms{
			Principal:       loan.Principal,
			PeriodicRate:    loan.PeriodicRate,
			PeriodicPayment: loan.PeriodicPayment,
			TermCount:       loan.TermCount,
			StartDate:       loan.StartDate,
			Period:          loan.Period,
		})
		if err != nil {
			return err
		}

		if err := s.installmentRepo.DeleteByLoanTx(tx, loanID); err != nil {
			return err
		}
		for _, inst := range schedule.Installments {
			inst.LoanID = loanID
		}
		if err := s.installmentRepo.CreateBatchTx(tx, schedule.Installments); err != nil {
			return err
		}
		installments = schedule.Installments

		_, err = s.lifecycle.synchronizeTx(tx, loanID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(websocket.ScheduleRegenerated(map[string]interface{}{
		"loanId": loanID,
		"count":  len(installments),
	}))
	return installments, nil
}

// DeleteLoan removes a loan together with its installments and payment
// history. The loan owns both; nothing survives it.
func (s *LoanService) DeleteLoan(ctx context.Context, loanID int32) error {
	err := s.txRunner.WithinTx(ctx, func(tx interface{}) error {
		if _, err := s.loanRepo.GetByIDForUpdateTx(tx, loanID); err != nil {
			return err
		}
		if err := s.paymentRepo.DeleteByLoanTx(tx, loanID); err != nil {
			return err
		}
		if err := s.installmentRepo.DeleteByLoanTx(tx, loanID); err != nil {
			return err
		}
		return s.loanRepo.DeleteTx(tx, loanID)
	})
	if err != nil {
		return err
	}

	s.publishEvent(websocket.LoanDeleted(map[string]interface{}{"loanId": loanID}))
	return nil
}
