package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrPaymentAmountInvalid  = errors.New("payment amount must be positive")
	ErrPaymentChannelEmpty   = errors.New("payment channel is required")
	ErrPaymentDateInvalid    = errors.New("payment date is required")
	ErrPaymentHistoryMissing = errors.New("payment history entry not found")
)

// PaymentStatus marks the state of a history record. History rows are
// append-only, so recorded is currently the only value written.
type PaymentStatus string

const (
	PaymentStatusRecorded PaymentStatus = "recorded"
)

// Payment is an immutable history record of money applied to an
// installment. The amount is stored exactly as received; it is not
// reconciled against the installment's total payment.
type Payment struct {
	ID            uuid.UUID       `json:"id"`
	LoanID        int32           `json:"loanId"`
	InstallmentID int32           `json:"installmentId"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   time.Time       `json:"paymentDate"`
	Channel       string          `json:"channel"`
	Status        PaymentStatus   `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func (p *Payment) Validate() error {
	if p.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrPaymentAmountInvalid
	}
	if p.Channel == "" {
		return ErrPaymentChannelEmpty
	}
	if p.PaymentDate.IsZero() {
		return ErrPaymentDateInvalid
	}
	return nil
}

type PaymentRepository interface {
	CreateTx(tx interface{}, payment *Payment) (*Payment, error)
	GetByInstallmentID(installmentID int32) ([]*Payment, error)
	GetByLoanID(loanID int32) ([]*Payment, error)
	DeleteByLoanTx(tx interface{}, loanID int32) error
}
