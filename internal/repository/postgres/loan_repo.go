package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/monetaapp/moneta-backend/internal/domain"
)

// LoanRepository implements domain.LoanRepository using PostgreSQL
type LoanRepository struct {
	pool *pgxpool.Pool
}

// NewLoanRepository creates a new LoanRepository
func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{pool: pool}
}

const loanColumns = `
	id, name, principal, periodic_rate, periodic_payment, term_count,
	start_date, period, remaining_debt, remaining_installments,
	payment_progress, status, created_at, updated_at
`

const insertLoanQuery = `
	INSERT INTO loans (
		name, principal, periodic_rate, periodic_payment, term_count,
		start_date, period, remaining_debt, remaining_installments,
		payment_progress, status
	)
	VALUES (
		$1, $2::numeric, $3::numeric, $4::numeric, $5,
		$6::date, $7, $8::numeric, $9,
		$10, $11
	)
	RETURNING` + loanColumns

const getLoanByIDQuery = `
	SELECT` + loanColumns + `FROM loans WHERE id = $1
`

const getLoanByIDForUpdateQuery = `
	SELECT` + loanColumns + `FROM loans WHERE id = $1 FOR UPDATE
`

const listLoansQuery = `
	SELECT` + loanColumns + `FROM loans ORDER BY created_at DESC, id DESC
`

const updateLoanAggregateQuery = `
	UPDATE loans
	SET remaining_debt = $2::numeric,
	    remaining_installments = $3,
	    payment_progress = $4,
	    status = $5,
	    updated_at = NOW()
	WHERE id = $1
	RETURNING` + loanColumns

const deleteLoanQuery = `
	DELETE FROM loans WHERE id = $1
`

// CreateTx inserts a new loan within a transaction
func (r *LoanRepository) CreateTx(tx interface{}, loan *domain.Loan) (*domain.Loan, error) {
	pgxTx, err := txFrom(tx)
	if err != nil {
		return nil, err
	}

	principal, err := decimalToPgNumeric(loan.Principal)
	if err != nil {
		return nil, err
	}
	rate, err := decimalToPgNumeric(loan.PeriodicRate)
	if err != nil {
		return nil, err
	}
	payment, err := decimalToPgNumeric(loan.PeriodicPayment)
	if err != nil {
		return nil, err
	}
	remainingDebt, err := decimalToPgNumeric(loan.RemainingDebt)
	if err != nil {
		return nil, err
	}

	row := pgxTx.QueryRow(context.Background(), insertLoanQuery,
		loan.Name, principal, rate, payment, loan.TermCount,
		pgtype.Date{Time: loan.StartDate, Valid: true}, string(loan.Period),
		remainingDebt, loan.RemainingInstallments,
		loan.PaymentProgress, string(loan.Status),
	)
	return scanLoan(row)
}

// GetByID retrieves a loan by its ID
func (r *LoanRepository) GetByID(id int32) (*domain.Loan, error) {
	return r.getByID(r.pool, id, false)
}

// GetByIDForUpdateTx retrieves a loan by ID and locks its row until the
// transaction ends. This is the per-loan serialization point for every
// mutate-then-synchronize path.
func (r *LoanRepository) GetByIDForUpdateTx(tx interface{}, id int32) (*domain.Loan, error) {
	pgxTx, err := txFrom(tx)
	if err != nil {
		return nil, err
	}
	return r.getByID(pgxTx, id, true)
}

func (r *LoanRepository) getByID(db dbtx, id int32, forUpdate bool) (*domain.Loan, error) {
	query := getLoanByIDQuery
	if forUpdate {
		query = getLoanByIDForUpdateQuery
	}

	loan, err := scanLoan(db.QueryRow(context.Background(), query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	return loan, nil
}

// GetAll retrieves all loans, newest first
func (r *LoanRepository) GetAll() ([]*domain.Loan, error) {
	rows, err := r.pool.Query(context.Background(), listLoansQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []*domain.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

// UpdateAggregateTx persists the derived aggregate fields in one write
func (r *LoanRepository) UpdateAggregateTx(tx interface{}, id int32, agg domain.LoanAggregate) (*domain.Loan, error) {
	pgxTx, err := txFrom(tx)
	if err != nil {
		return nil, err
	}

	remainingDebt, err := decimalToPgNumeric(agg.RemainingDebt)
	if err != nil {
		return nil, err
	}

	row := pgxTx.QueryRow(context.Background(), updateLoanAggregateQuery,
		id, remainingDebt, agg.RemainingInstallments,
		agg.PaymentProgress, string(agg.Status),
	)
	loan, err := scanLoan(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	return loan, nil
}

// DeleteTx removes a loan within a transaction
func (r *LoanRepository) DeleteTx(tx interface{}, id int32) error {
	pgxTx, err := txFrom(tx)
	if err != nil {
		return err
	}
	tag, err := pgxTx.Exec(context.Background(), deleteLoanQuery, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLoanNotFound
	}
	return nil
}

func scanLoan(row pgx.Row) (*domain.Loan, error) {
	var (
		loan      domain.Loan
		principal pgtype.Numeric
		rate      pgtype.Numeric
		payment   pgtype.Numeric
		remaining pgtype.Numeric
		startDate pgtype.Date
		period    string
		status    string
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)

	err := row.Scan(
		&loan.ID, &loan.Name, &principal, &rate, &payment, &loan.TermCount,
		&startDate, &period, &remaining, &loan.RemainingInstallments,
		&loan.PaymentProgress, &status, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	loan.Principal = pgNumericToDecimal(principal)
	loan.PeriodicRate = pgNumericToDecimal(rate)
	loan.PeriodicPayment = pgNumericToDecimal(payment)
	loan.RemainingDebt = pgNumericToDecimal(remaining)
	loan.Period = domain.PeriodUnit(period)
	loan.Status = domain.LoanStatus(status)
	loan.CreatedAt = createdAt.Time
	loan.UpdatedAt = updatedAt.Time
	if startDate.Valid {
		loan.StartDate = startDate.Time
	} else {
		loan.StartDate = time.Time{}
	}

	return &loan, nil
}
