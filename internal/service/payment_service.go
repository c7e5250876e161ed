package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/monetaapp/moneta-backend/internal/domain"
	"github.com/monetaapp/moneta-backend/internal/websocket"
	"github.com/shopspring/decimal"
)

// PaymentService applies payments to installments. It is the only
// mutation entry point that changes an installment's status after
// creation: pending (or effectively overdue) to paid, exactly once.
type PaymentService struct {
	txRunner        domain.TxRunner
	loanRepo        domain.LoanRepository
	installmentRepo domain.InstallmentRepository
	paymentRepo     domain.PaymentRepository
	lifecycle       *LifecycleService
	eventPublisher  websocket.EventPublisher
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(txRunner domain.TxRunner, loanRepo domain.LoanRepository, installmentRepo domain.InstallmentRepository, paymentRepo domain.PaymentRepository, lifecycle *LifecycleService) *PaymentService {
	return &PaymentService{
		txRunner:        txRunner,
		loanRepo:        loanRepo,
		installmentRepo: installmentRepo,
		paymentRepo:     paymentRepo,
		lifecycle:       lifecycle,
	}
}

// SetEventPublisher sets the publisher for real-time payment updates
func (s *PaymentService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *PaymentService) publishEvent(event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(event)
	}
}

// RecordPaymentInput contains input for recording a payment
type RecordPaymentInput struct {
	InstallmentID int32
	Amount        decimal.Decimal
	PaymentDate   time.Time
	Channel       string
}

// RecordPaymentResult is the settled installment, the appended history
// entry and the loan with its freshly synchronized aggregate.
type RecordPaymentResult struct {
	Installment *domain.Installment
	Payment     *domain.Payment
	Loan        *domain.Loan
}

// RecordPayment marks an installment paid, appends a history record and
// resynchronizes the owning loan, all inside one transaction holding the
// loan row lock. Re-paying an already-paid installment is rejected and
// leaves history untouched. The amount is stored as given; it is not
// checked against the installment's total payment, so partial and
// overpayments pass through unchanged.
func (s *PaymentService) RecordPayment(ctx context.Context, input RecordPaymentInput) (*RecordPaymentResult, error) {
	paymentDate := input.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now()
	}

	payment := &domain.Payment{
		ID:          uuid.New(),
		Amount:      input.Amount,
		PaymentDate: paymentDate,
		Channel:     input.Channel,
		Status:      domain.PaymentStatusRecorded,
	}
	if err := payment.Validate(); err != nil {
		return nil, err
	}

	result := &RecordPaymentResult{}
	err := s.txRunner.WithinTx(ctx, func(tx interface{}) error {
		inst, err := s.installmentRepo.GetByIDTx(tx, input.InstallmentID)
		if err != nil {
			return err
		}

		// Lock the owning loan before touching its installment set.
		if _, err := s.loanRepo.GetByIDForUpdateTx(tx, inst.LoanID); err != nil {
			return err
		}

		// Re-read under the lock: a payment committed while this
		// transaction waited on the row must be visible to the
		// already-paid check.
		inst, err = s.installmentRepo.GetByIDTx(tx, inst.ID)
		if err != nil {
			return err
		}
		if inst.IsPaid() {
			return domain.ErrInstallmentAlreadyPaid
		}

		paid, err := s.installmentRepo.MarkPaidTx(tx, inst.ID, paymentDate, input.Channel)
		if err != nil {
			return err
		}
		result.Installment = paid

		payment.LoanID = inst.LoanID
		payment.InstallmentID = inst.ID
		created, err := s.paymentRepo.CreateTx(tx, payment)
		if err != nil {
			return err
		}
		result.Payment = created

		loan, err := s.lifecycle.synchronizeTx(tx, inst.LoanID)
		if err != nil {
			return err
		}
		result.Loan = loan
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(websocket.InstallmentPaid(result.Installment))
	s.publishEvent(websocket.LoanSynced(result.Loan))

	return result, nil
}

// GetHistoryByInstallment retrieves the payment history of an installment
func (s *PaymentService) GetHistoryByInstallment(installmentID int32) ([]*domain.Payment, error) {
	if _, err := s.installmentRepo.GetByID(installmentID); err != nil {
		return nil, err
	}
	return s.paymentRepo.GetByInstallmentID(installmentID)
}

// GetHistoryByLoan retrieves all payment history entries of a loan
func (s *PaymentService) GetHistoryByLoan(loanID int32) ([]*domain.Payment, error) {
	if _, err := s.loanRepo.GetByID(loanID); err != nil {
		return nil, err
	}
	return s.paymentRepo.GetByLoanID(loanID)
}
