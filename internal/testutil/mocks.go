package testutil

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/monetaapp/moneta-backend/internal/domain"
)

// MockTxRunner is a mock implementation of domain.TxRunner. It runs the
// function immediately with a nil transaction handle; the mock
// repositories ignore the handle.
type MockTxRunner struct {
	// Calls counts how many transactions were started
	Calls int
	// FailWith, when set, is returned without running the function
	FailWith error
}

// NewMockTxRunner creates a new MockTxRunner
func NewMockTxRunner() *MockTxRunner {
	return &MockTxRunner{}
}

// WithinTx runs fn with a nil transaction handle
func (m *MockTxRunner) WithinTx(ctx context.Context, fn func(tx interface{}) error) error {
	m.Calls++
	if m.FailWith != nil {
		return m.FailWith
	}
	return fn(nil)
}

// MockLoanRepository is a mock implementation of domain.LoanRepository
type MockLoanRepository struct {
	Loans  map[int32]*domain.Loan
	NextID int32
	// ForUpdateCalls counts row-lock acquisitions
	ForUpdateCalls int
	// OnForUpdate, when set, runs before the lock read returns. Tests
	// use it to mutate state as a competing transaction committing
	// while this one waits on the row lock would.
	OnForUpdate func(id int32)
}

// NewMockLoanRepository creates a new MockLoanRepository
func NewMockLoanRepository() *MockLoanRepository {
	return &MockLoanRepository{
		Loans:  make(map[int32]*domain.Loan),
		NextID: 1,
	}
}

// CreateTx creates a new loan
func (m *MockLoanRepository) CreateTx(tx interface{}, loan *domain.Loan) (*domain.Loan, error) {
	created := *loan
	created.ID = m.NextID
	m.NextID++
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	m.Loans[created.ID] = &created
	return &created, nil
}

// GetByID retrieves a loan by ID
func (m *MockLoanRepository) GetByID(id int32) (*domain.Loan, error) {
	if loan, ok := m.Loans[id]; ok {
		copied := *loan
		return &copied, nil
	}
	return nil, domain.ErrLoanNotFound
}

// GetByIDForUpdateTx retrieves a loan by ID, recording the lock attempt
func (m *MockLoanRepository) GetByIDForUpdateTx(tx interface{}, id int32) (*domain.Loan, error) {
	m.ForUpdateCalls++
	if m.OnForUpdate != nil {
		m.OnForUpdate(id)
	}
	return m.GetByID(id)
}

// GetAll retrieves all loans
func (m *MockLoanRepository) GetAll() ([]*domain.Loan, error) {
	loans := make([]*domain.Loan, 0, len(m.Loans))
	for _, loan := range m.Loans {
		copied := *loan
		loans = append(loans, &copied)
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i].ID < loans[j].ID })
	return loans, nil
}

// UpdateAggregateTx persists the derived aggregate fields
func (m *MockLoanRepository) UpdateAggregateTx(tx interface{}, id int32, agg domain.LoanAggregate) (*domain.Loan, error) {
	loan, ok := m.Loans[id]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	loan.RemainingDebt = agg.RemainingDebt
	loan.RemainingInstallments = agg.RemainingInstallments
	loan.PaymentProgress = agg.PaymentProgress
	loan.Status = agg.Status
	loan.UpdatedAt = time.Now()
	copied := *loan
	return &copied, nil
}

// DeleteTx removes a loan
func (m *MockLoanRepository) DeleteTx(tx interface{}, id int32) error {
	if _, ok := m.Loans[id]; !ok {
		return domain.ErrLoanNotFound
	}
	delete(m.Loans, id)
	return nil
}

// AddLoan adds a loan to the mock repository (helper for tests)
func (m *MockLoanRepository) AddLoan(loan *domain.Loan) {
	m.Loans[loan.ID] = loan
	if loan.ID >= m.NextID {
		m.NextID = loan.ID + 1
	}
}

// MockInstallmentRepository is a mock implementation of
// domain.InstallmentRepository
type MockInstallmentRepository struct {
	Installments map[int32]*domain.Installment
	NextID       int32
	// LoanNames backs ListDueWithin's loan name join
	LoanNames map[int32]string
	// LoanTermCounts backs ListDueWithin's total installment count
	LoanTermCounts map[int32]int32
}

// NewMockInstallmentRepository creates a new MockInstallmentRepository
func NewMockInstallmentRepository() *MockInstallmentRepository {
	return &MockInstallmentRepository{
		Installments:   make(map[int32]*domain.Installment),
		NextID:         1,
		LoanNames:      make(map[int32]string),
		LoanTermCounts: make(map[int32]int32),
	}
}

// CreateBatchTx inserts a full installment set
func (m *MockInstallmentRepository) CreateBatchTx(tx interface{}, installments []*domain.Installment) error {
	for _, inst := range installments {
		inst.ID = m.NextID
		m.NextID++
		inst.CreatedAt = time.Now()
		inst.UpdatedAt = inst.CreatedAt
		copied := *inst
		m.Installments[inst.ID] = &copied
	}
	return nil
}

// GetByID retrieves an installment by ID
func (m *MockInstallmentRepository) GetByID(id int32) (*domain.Installment, error) {
	if inst, ok := m.Installments[id]; ok {
		copied := *inst
		return &copied, nil
	}
	return nil, domain.ErrInstallmentNotFound
}

// GetByIDTx retrieves an installment by ID
func (m *MockInstallmentRepository) GetByIDTx(tx interface{}, id int32) (*domain.Installment, error) {
	return m.GetByID(id)
}

// GetByLoanID retrieves all installments of a loan ordered by number
func (m *MockInstallmentRepository) GetByLoanID(loanID int32) ([]*domain.Installment, error) {
	var installments []*domain.Installment
	for _, inst := range m.Installments {
		if inst.LoanID == loanID {
			copied := *inst
			installments = append(installments, &copied)
		}
	}
	sort.Slice(installments, func(i, j int) bool { return installments[i].Number < installments[j].Number })
	return installments, nil
}

// GetByLoanIDTx retrieves all installments of a loan
func (m *MockInstallmentRepository) GetByLoanIDTx(tx interface{}, loanID int32) ([]*domain.Installment, error) {
	return m.GetByLoanID(loanID)
}

// GetByLoanAndNumberTx retrieves one installment by loan id and number
func (m *MockInstallmentRepository) GetByLoanAndNumberTx(tx interface{}, loanID, number int32) (*domain.Installment, error) {
	for _, inst := range m.Installments {
		if inst.LoanID == loanID && inst.Number == number {
			copied := *inst
			return &copied, nil
		}
	}
	return nil, domain.ErrInstallmentNotFound
}

// MarkPaidTx flips an installment to paid
func (m *MockInstallmentRepository) MarkPaidTx(tx interface{}, id int32, paymentDate time.Time, channel string) (*domain.Installment, error) {
	inst, ok := m.Installments[id]
	if !ok {
		return nil, domain.ErrInstallmentNotFound
	}
	inst.Status = domain.InstallmentStatusPaid
	inst.PaymentDate = &paymentDate
	inst.PaymentChannel = &channel
	inst.UpdatedAt = time.Now()
	copied := *inst
	return &copied, nil
}

// UpdateDueDateTx moves an installment's due date
func (m *MockInstallmentRepository) UpdateDueDateTx(tx interface{}, id int32, dueDate time.Time) (*domain.Installment, error) {
	inst, ok := m.Installments[id]
	if !ok {
		return nil, domain.ErrInstallmentNotFound
	}
	inst.DueDate = dueDate
	inst.UpdatedAt = time.Now()
	copied := *inst
	return &copied, nil
}

// DeleteTx removes one installment
func (m *MockInstallmentRepository) DeleteTx(tx interface{}, id int32) error {
	if _, ok := m.Installments[id]; !ok {
		return domain.ErrInstallmentNotFound
	}
	delete(m.Installments, id)
	return nil
}

// DeleteByLoanTx removes all installments of a loan
func (m *MockInstallmentRepository) DeleteByLoanTx(tx interface{}, loanID int32) error {
	for id, inst := range m.Installments {
		if inst.LoanID == loanID {
			delete(m.Installments, id)
		}
	}
	return nil
}

// ListDueWithin returns pending installments due up to the given date
func (m *MockInstallmentRepository) ListDueWithin(until time.Time) ([]*domain.UpcomingInstallment, error) {
	var upcoming []*domain.UpcomingInstallment
	for _, inst := range m.Installments {
		if inst.Status != domain.InstallmentStatusPending || inst.DueDate.After(until) {
			continue
		}
		copied := *inst
		upcoming = append(upcoming, &domain.UpcomingInstallment{
			Installment:       copied,
			LoanName:          m.LoanNames[inst.LoanID],
			TotalInstallments: m.LoanTermCounts[inst.LoanID],
		})
	}
	sort.Slice(upcoming, func(i, j int) bool {
		if !upcoming[i].DueDate.Equal(upcoming[j].DueDate) {
			return upcoming[i].DueDate.Before(upcoming[j].DueDate)
		}
		return upcoming[i].Number < upcoming[j].Number
	})
	return upcoming, nil
}

// AddInstallment adds an installment to the mock repository (helper for tests)
func (m *MockInstallmentRepository) AddInstallment(inst *domain.Installment) {
	m.Installments[inst.ID] = inst
	if inst.ID >= m.NextID {
		m.NextID = inst.ID + 1
	}
}

// MockPaymentRepository is a mock implementation of
// domain.PaymentRepository
type MockPaymentRepository struct {
	Payments map[uuid.UUID]*domain.Payment
}

// NewMockPaymentRepository creates a new MockPaymentRepository
func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		Payments: make(map[uuid.UUID]*domain.Payment),
	}
}

// CreateTx appends a payment history record
func (m *MockPaymentRepository) CreateTx(tx interface{}, payment *domain.Payment) (*domain.Payment, error) {
	created := *payment
	created.CreatedAt = time.Now()
	m.Payments[created.ID] = &created
	copied := created
	return &copied, nil
}

// GetByInstallmentID retrieves history entries for one installment
func (m *MockPaymentRepository) GetByInstallmentID(installmentID int32) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	for _, payment := range m.Payments {
		if payment.InstallmentID == installmentID {
			copied := *payment
			payments = append(payments, &copied)
		}
	}
	sortPayments(payments)
	return payments, nil
}

// GetByLoanID retrieves all history entries of a loan
func (m *MockPaymentRepository) GetByLoanID(loanID int32) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	for _, payment := range m.Payments {
		if payment.LoanID == loanID {
			copied := *payment
			payments = append(payments, &copied)
		}
	}
	sortPayments(payments)
	return payments, nil
}

// DeleteByLoanTx removes the history of a loan
func (m *MockPaymentRepository) DeleteByLoanTx(tx interface{}, loanID int32) error {
	for id, payment := range m.Payments {
		if payment.LoanID == loanID {
			delete(m.Payments, id)
		}
	}
	return nil
}

func sortPayments(payments []*domain.Payment) {
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].CreatedAt.Before(payments[j].CreatedAt)
	})
}

// Interface conformance checks
var (
	_ domain.TxRunner              = (*MockTxRunner)(nil)
	_ domain.LoanRepository        = (*MockLoanRepository)(nil)
	_ domain.InstallmentRepository = (*MockInstallmentRepository)(nil)
	_ domain.PaymentRepository     = (*MockPaymentRepository)(nil)
)
