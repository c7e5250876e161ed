package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrLoanNotFound            = errors.New("loan not found")
	ErrLoanNameEmpty           = errors.New("loan name is required")
	ErrLoanNameTooLong         = errors.New("loan name must be 200 characters or less")
	ErrLoanPrincipalInvalid    = errors.New("principal must be positive")
	ErrLoanPaymentInvalid      = errors.New("periodic payment must be positive")
	ErrLoanTermInvalid         = errors.New("term count must be at least 1")
	ErrLoanRateInvalid         = errors.New("periodic rate must not be negative")
	ErrLoanStartDateInvalid    = errors.New("start date is required")
	ErrLoanPeriodInvalid       = errors.New("period unit must be month or week")
	ErrLoanHasPaidInstallments = errors.New("loan already has paid installments")
)

// LoanStatus is the derived lifecycle status of a loan
type LoanStatus string

const (
	LoanStatusActive  LoanStatus = "active"
	LoanStatusClosed  LoanStatus = "closed"
	LoanStatusOverdue LoanStatus = "overdue"
)

// PeriodUnit is the granularity of one installment period
type PeriodUnit string

const (
	PeriodMonth PeriodUnit = "month"
	PeriodWeek  PeriodUnit = "week"
)

// Loan holds immutable terms plus aggregate fields derived from its
// installment set. The aggregate fields are written only by lifecycle
// synchronization; they are never edited independently.
type Loan struct {
	ID   int32  `json:"id"`
	Name string `json:"name"`

	// Terms, locked after creation
	Principal       decimal.Decimal `json:"principal"`
	PeriodicRate    decimal.Decimal `json:"periodicRate"` // fraction per period, e.g. 0.02
	PeriodicPayment decimal.Decimal `json:"periodicPayment"`
	TermCount       int32           `json:"termCount"`
	StartDate       time.Time       `json:"startDate"`
	Period          PeriodUnit      `json:"period"`

	// Derived aggregate
	RemainingDebt         decimal.Decimal `json:"remainingDebt"`
	RemainingInstallments int32           `json:"remainingInstallments"`
	PaymentProgress       float64         `json:"paymentProgress"`
	Status                LoanStatus      `json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (l *Loan) Validate() error {
	if l.Name == "" {
		return ErrLoanNameEmpty
	}
	if len(l.Name) > MaxLoanNameLength {
		return ErrLoanNameTooLong
	}
	if l.Principal.LessThanOrEqual(decimal.Zero) {
		return ErrLoanPrincipalInvalid
	}
	if l.PeriodicPayment.LessThanOrEqual(decimal.Zero) {
		return ErrLoanPaymentInvalid
	}
	if l.TermCount < 1 {
		return ErrLoanTermInvalid
	}
	if l.PeriodicRate.IsNegative() {
		return ErrLoanRateInvalid
	}
	if l.StartDate.IsZero() {
		return ErrLoanStartDateInvalid
	}
	if l.Period != PeriodMonth && l.Period != PeriodWeek {
		return ErrLoanPeriodInvalid
	}
	return nil
}

// LoanAggregate is the set of derived fields owned by lifecycle
// synchronization, persisted onto the loan row in one write.
type LoanAggregate struct {
	RemainingDebt         decimal.Decimal
	RemainingInstallments int32
	PaymentProgress       float64
	Status                LoanStatus
}

type LoanRepository interface {
	CreateTx(tx interface{}, loan *Loan) (*Loan, error)
	GetByID(id int32) (*Loan, error)
	// GetByIDForUpdateTx locks the loan row for the duration of the
	// transaction; every mutate-then-synchronize path goes through it.
	GetByIDForUpdateTx(tx interface{}, id int32) (*Loan, error)
	GetAll() ([]*Loan, error)
	UpdateAggregateTx(tx interface{}, id int32, agg LoanAggregate) (*Loan, error)
	DeleteTx(tx interface{}, id int32) error
}
