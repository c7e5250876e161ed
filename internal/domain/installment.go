package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInstallmentNotFound    = errors.New("installment not found")
	ErrInstallmentAlreadyPaid = errors.New("installment is already paid")
	ErrInstallmentNotPending  = errors.New("installment is not pending")
	ErrDueDateInvalid         = errors.New("due date is required")
)

// InstallmentStatus classifies an installment. Only pending and paid are
// stored; overdue is derived from the due date at read time.
type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "pending"
	InstallmentStatusPaid    InstallmentStatus = "paid"
	InstallmentStatusOverdue InstallmentStatus = "overdue"
)

// Installment is one scheduled payment obligation of a loan. A loan
// exclusively owns its installments: they are addressed by loan id plus
// number and never outlive the loan.
type Installment struct {
	ID     int32 `json:"id"`
	LoanID int32 `json:"loanId"`
	Number int32 `json:"number"` // 1..TermCount, repayment order

	DueDate            time.Time       `json:"dueDate"`
	PrincipalAmount    decimal.Decimal `json:"principalAmount"`
	InterestAmount     decimal.Decimal `json:"interestAmount"`
	TotalPayment       decimal.Decimal `json:"totalPayment"`
	RemainingDebtAfter decimal.Decimal `json:"remainingDebtAfter"`

	Status         InstallmentStatus `json:"status"`
	PaymentDate    *time.Time        `json:"paymentDate,omitempty"`
	PaymentChannel *string           `json:"paymentChannel,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StatusAt returns the effective status at the given instant: a pending
// installment whose due date has passed reads as overdue. This never
// mutates stored state, so a late installment goes back to plain pending
// if its due date is edited into the future.
func (i *Installment) StatusAt(now time.Time) InstallmentStatus {
	if i.Status == InstallmentStatusPaid {
		return InstallmentStatusPaid
	}
	if i.DueDate.Before(truncateToDay(now)) {
		return InstallmentStatusOverdue
	}
	return InstallmentStatusPending
}

// IsPaid reports whether the installment has been settled.
func (i *Installment) IsPaid() bool {
	return i.Status == InstallmentStatusPaid
}

// FormatLabel returns a label like "3/12" for installment 3 of 12
func (i *Installment) FormatLabel(totalInstallments int32) string {
	return fmt.Sprintf("%d/%d", i.Number, totalInstallments)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// UpcomingInstallment is an installment due within the reminder horizon,
// carrying its loan name for the notification consumer.
type UpcomingInstallment struct {
	Installment
	LoanName          string `json:"loanName"`
	TotalInstallments int32  `json:"totalInstallments"`
}

type InstallmentRepository interface {
	CreateBatchTx(tx interface{}, installments []*Installment) error
	GetByID(id int32) (*Installment, error)
	GetByIDTx(tx interface{}, id int32) (*Installment, error)
	GetByLoanID(loanID int32) ([]*Installment, error)
	GetByLoanIDTx(tx interface{}, loanID int32) ([]*Installment, error)
	GetByLoanAndNumberTx(tx interface{}, loanID, number int32) (*Installment, error)
	MarkPaidTx(tx interface{}, id int32, paymentDate time.Time, channel string) (*Installment, error)
	UpdateDueDateTx(tx interface{}, id int32, dueDate time.Time) (*Installment, error)
	DeleteTx(tx interface{}, id int32) error
	DeleteByLoanTx(tx interface{}, loanID int32) error
	// ListDueWithin returns pending installments with a due date up to
	// the given instant, for reminder generation.
	ListDueWithin(until time.Time) ([]*UpcomingInstallment, error)
}
