package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/monetaapp/moneta-backend/internal/domain"
)

// PaymentRepository implements domain.PaymentRepository using
// PostgreSQL. History rows are append-only; there is no update path.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

const paymentColumns = `
	id, loan_id, installment_id, amount, payment_date, channel, status, created_at
`

const insertPaymentQuery = `
	INSERT INTO payment_history (
		id, loan_id, installment_id, amount, payment_date, channel, status
	)
	VALUES ($1::uuid, $2, $3, $4::numeric, $5::date, $6, $7)
	RETURNING` + paymentColumns

const listPaymentsByInstallmentQuery = `
	SELECT` + paymentColumns + `FROM payment_history
	WHERE installment_id = $1
	ORDER BY created_at
`

const listPaymentsByLoanQuery = `
	SELECT` + paymentColumns + `FROM payment_history
	WHERE loan_id = $1
	ORDER BY created_at
`

const deletePaymentsByLoanQuery = `
	DELETE FROM payment_history WHERE loan_id = $1
`

// CreateTx appends a payment history record within a transaction
func (r *PaymentRepository) CreateTx(tx interface{}, payment *domain.Payment) (*domain.Payment, error) {
	pgxTx, err := txFrom(tx)
	if err != nil {
		return nil, err
	}

	amount, err := decimalToPgNumeric(payment.Amount)
	if err != nil {
		return nil, err
	}

	row := pgxTx.QueryRow(context.Background(), insertPaymentQuery,
		payment.ID, payment.LoanID, payment.InstallmentID, amount,
		pgtype.Date{Time: payment.PaymentDate, Valid: true},
		payment.Channel, string(payment.Status),
	)
	return scanPayment(row)
}

// GetByInstallmentID retrieves history entries for one installment
func (r *PaymentRepository) GetByInstallmentID(installmentID int32) ([]*domain.Payment, error) {
	return r.list(listPaymentsByInstallmentQuery, installmentID)
}

// GetByLoanID retrieves all history entries of a loan
func (r *PaymentRepository) GetByLoanID(loanID int32) ([]*domain.Payment, error) {
	return r.list(listPaymentsByLoanQuery, loanID)
}

func (r *PaymentRepository) list(query string, id int32) ([]*domain.Payment, error) {
	rows, err := r.pool.Query(context.Background(), query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

// DeleteByLoanTx removes the history of a loan, used only when the loan
// itself is deleted
func (r *PaymentRepository) DeleteByLoanTx(tx interface{}, loanID int32) error {
	pgxTx, err := txFrom(tx)
	if err != nil {
		return err
	}
	_, err = pgxTx.Exec(context.Background(), deletePaymentsByLoanQuery, loanID)
	return err
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		payment   domain.Payment
		amount    pgtype.Numeric
		payDate   pgtype.Date
		status    string
		createdAt pgtype.Timestamptz
	)

	err := row.Scan(
		&payment.ID, &payment.LoanID, &payment.InstallmentID, &amount,
		&payDate, &payment.Channel, &status, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	payment.Amount = pgNumericToDecimal(amount)
	payment.PaymentDate = payDate.Time
	payment.Status = domain.PaymentStatus(status)
	payment.CreatedAt = createdAt.Time

	return &payment, nil
}
