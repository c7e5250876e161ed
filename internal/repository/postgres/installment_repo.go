package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/monetaapp/moneta-backend/internal/domain"
)

// InstallmentRepository implements domain.InstallmentRepository using
// PostgreSQL. Installments are addressed by loan id plus number; the
// loan row owns them.
type InstallmentRepository struct {
	pool *pgxpool.Pool
}

// NewInstallmentRepository creates a new InstallmentRepository
func NewInstallmentRepository(pool *pgxpool.Pool) *InstallmentRepository {
	return &InstallmentRepository{pool: pool}
}

const installmentColumns = `
	id, loan_id, number, due_date, principal_amount, interest_amount,
	total_payment, remaining_debt_after, status, payment_date,
	payment_channel, created_at, updated_at
`

const insertInstallmentQuery = `
	INSERT INTO installments (
		loan_id, number, due_date, principal_amount, interest_amount,
		total_payment, remaining_debt_after, status
	)
	VALUES (
		$1, $2, $3::date, $4::numeric, $5::numeric,
		$6::numeric, $7::numeric, $8
	)
	RETURNING` + installmentColumns

const getInstallmentByIDQuery = `
	SELECT` + installmentColumns + `FROM installments WHERE id = $1
`

const getInstallmentByLoanAndNumberQuery = `
	SELECT` + installmentColumns + `FROM installments
	WHERE loan_id = $1 AND number = $2
`

const listInstallmentsByLoanQuery = `
	SELECT` + installmentColumns + `FROM installments
	WHERE loan_id = $1
	ORDER BY number
`

const markInstallmentPaidQuery = `
	UPDATE installments
	SET status = 'paid',
	    payment_date = $2::date,
	    payment_channel = $3,
	    updated_at = NOW()
	WHERE id = $1
	RETURNING` + installmentColumns

const updateInstallmentDueDateQuery = `
	UPDATE installments
	SET due_date = $2::date,
	    updated_at = NOW()
	WHERE id = $1
	RETURNING` + installmentColumns

const deleteInstallmentQuery = `
	DELETE FROM installments WHERE id = $1
`

const deleteInstallmentsByLoanQuery = `
	DELETE FROM installments WHERE loan_id = $1
`

const listDueWithinQuery = `
	SELECT i.id, i.loan_id, i.number, i.due_date, i.principal_amount,
	       i.interest_amount, i.total_payment, i.remaining_debt_after,
	       i.status, i.payment_date, i.payment_channel, i.created_at,
	       i.updated_at, l.name, l.term_count
	FROM installments i
	JOIN loans l ON l.id = i.loan_id
	WHERE i.status = 'pending' AND i.due_date <= $1::date
	ORDER BY i.due_date, i.loan_id, i.number
`

// CreateBatchTx inserts a full installment set within a transaction
func (r *InstallmentRepository) CreateBatchTx(tx interface{}, installments []*domain.Installment) error {
	pgxTx, err := txFrom(tx)
	if err != nil {
		return err
	}
	if len(installments) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, inst := range installments {
		principal, err := decimalToPgNumeric(inst.PrincipalAmount)
		if err != nil {
			return err
		}
		interest, err := decimalToPgNumeric(inst.InterestAmount)
		if err != nil {
			return err
		}
		total, err := decimalToPgNumeric(inst.TotalPayment)
		if err != nil {
			return err
		}
		remaining, err := decimalToPgNumeric(inst.RemainingDebtAfter)
		if err != nil {
			return err
		}

		batch.Queue(insertInstallmentQuery,
			inst.LoanID, inst.Number,
			pgtype.Date{Time: inst.DueDate, Valid: true},
			principal, interest, total, remaining,
			string(inst.Status),
		)
	}

	br := pgxTx.SendBatch(context.Background(), batch)
	defer br.Close()

	for i := range installments {
		created, err := scanInstallment(br.QueryRow())
		if err != nil {
			return err
		}
		*installments[i] = *created
	}
	return nil
}

// GetByID retrieves an installment by its ID
func (r *InstallmentRepository) GetByID(id int32) (*domain.Installment, error) {
	return r.getByID(r.pool, id)
}

// GetByIDTx retrieves an installment by ID within a transaction
func (r *InstallmentRepository) GetByIDTx(tx interface{}, id int32) (*domain.Installment, error) {
	pgxTx, err := txFrom(tx)
	if err != nil {
		return nil, err
	}
	return r.getByID(pgxTx, id)
}

func (r *InstallmentRepository) getByID(db dbtx, id int32) (*domain.Installment, error) {
	inst, err := scanInstallment(db.QueryRow(context.Background(), getInstallmentByIDQuery, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrInstallmentNotFound
		}
		return nil, err
	}
	return inst, nil
}

// GetByLoanID retrieves all installments of a loan ordered by number
func (r *InstallmentRepository) GetByLoanID(loanID int32) ([]*domain.Installment, error) {
	return r.getByLoanID(r.pool, loanID)
}

// GetByLoanIDTx retrieves all installments of a loan within a transaction
func (r *InstallmentRepository) GetByLoanIDTx(tx interface{}, loanID int32) ([]*domain.Installment, error) {
	pgxTx, err := txFrom(tx)
	if err != nil {
		return nil, err
	}
	return r.getByLoanID(pgxTx, loanID)
}

func (r *InstallmentRepository) getByLoanID(db dbtx, loanID int32) ([]*domain.Installment, error) {
	rows, err := db.Query(context.Background(), listInstallmentsByLoanQuery, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var installments []*domain.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		installments = append(installments, inst)
	}
	return installments, rows.Err()
}

// GetByLoanAndNumberTx retrieves one installment by loan id and number
func (r *InstallmentRepository) GetByLoanAndNumberTx(tx interface{}, loanID, number int32) (*domain.Installment, error) {
	pgxTx, err := txFrom(tx)
	if err != nil {
		return nil, err
	}

	inst, err := scanInstallment(pgxTx.QueryRow(context.Background(), getInstallmentByLoanAndNumberQuery, loanID, number))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrInstallmentNotFound
		}
		return nil, err
	}
	return inst, nil
}

// MarkPaidTx flips an installment to paid with its payment date and
// channel. The economic columns are never touched.
func (r *InstallmentRepository) MarkPaidTx(tx interface{}, id int32, paymentDate time.Time, channel string) (*domain.Installment, error) {
	pgxTx, err := txFrom(tx)
	if err != nil {
		return nil, err
	}

	row := pgxTx.QueryRow(context.Background(), markInstallmentPaidQuery,
		id, pgtype.Date{Time: paymentDate, Valid: true}, channel)
	inst, err := scanInstallment(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrInstallmentNotFound
		}
		return nil, err
	}
	return inst, nil
}

// UpdateDueDateTx moves an installment's due date
func (r *InstallmentRepository) UpdateDueDateTx(tx interface{}, id int32, dueDate time.Time) (*domain.Installment, error) {
	pgxTx, err := txFrom(tx)
	if err != nil {
		return nil, err
	}

	row := pgxTx.QueryRow(context.Background(), updateInstallmentDueDateQuery,
		id, pgtype.Date{Time: dueDate, Valid: true})
	inst, err := scanInstallment(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrInstallmentNotFound
		}
		return nil, err
	}
	return inst, nil
}

// DeleteTx removes one installment within a transaction
func (r *InstallmentRepository) DeleteTx(tx interface{}, id int32) error {
	pgxTx, err := txFrom(tx)
	if err != nil {
		return err
	}
	tag, err := pgxTx.Exec(context.Background(), deleteInstallmentQuery, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInstallmentNotFound
	}
	return nil
}

// DeleteByLoanTx removes all installments of a loan within a transaction
func (r *InstallmentRepository) DeleteByLoanTx(tx interface{}, loanID int32) error {
	pgxTx, err := txFrom(tx)
	if err != nil {
		return err
	}
	_, err = pgxTx.Exec(context.Background(), deleteInstallmentsByLoanQuery, loanID)
	return err
}

// ListDueWithin returns pending installments due up to the given date,
// joined with their loan's name for reminder generation
func (r *InstallmentRepository) ListDueWithin(until time.Time) ([]*domain.UpcomingInstallment, error) {
	rows, err := r.pool.Query(context.Background(), listDueWithinQuery,
		pgtype.Date{Time: until, Valid: true})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var upcoming []*domain.UpcomingInstallment
	for rows.Next() {
		var (
			u         domain.UpcomingInstallment
			principal pgtype.Numeric
			interest  pgtype.Numeric
			total     pgtype.Numeric
			remaining pgtype.Numeric
			dueDate   pgtype.Date
			status    string
			payDate   pgtype.Date
			channel   pgtype.Text
			createdAt pgtype.Timestamptz
			updatedAt pgtype.Timestamptz
		)
		err := rows.Scan(
			&u.ID, &u.LoanID, &u.Number, &dueDate, &principal, &interest,
			&total, &remaining, &status, &payDate, &channel,
			&createdAt, &updatedAt, &u.LoanName, &u.TotalInstallments,
		)
		if err != nil {
			return nil, err
		}

		u.DueDate = dueDate.Time
		u.PrincipalAmount = pgNumericToDecimal(principal)
		u.InterestAmount = pgNumericToDecimal(interest)
		u.TotalPayment = pgNumericToDecimal(total)
		u.RemainingDebtAfter = pgNumericToDecimal(remaining)
		u.Status = domain.InstallmentStatus(status)
		u.CreatedAt = createdAt.Time
		u.UpdatedAt = updatedAt.Time
		if payDate.Valid {
			u.PaymentDate = &payDate.Time
		}
		if channel.Valid {
			u.PaymentChannel = &channel.String
		}

		upcoming = append(upcoming, &u)
	}
	return upcoming, rows.Err()
}

func scanInstallment(row pgx.Row) (*domain.Installment, error) {
	var (
		inst      domain.Installment
		dueDate   pgtype.Date
		principal pgtype.Numeric
		interest  pgtype.Numeric
		total     pgtype.Numeric
		remaining pgtype.Numeric
		status    string
		payDate   pgtype.Date
		channel   pgtype.Text
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)

	err := row.Scan(
		&inst.ID, &inst.LoanID, &inst.Number, &dueDate, &principal,
		&interest, &total, &remaining, &status, &payDate, &channel,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	inst.DueDate = dueDate.Time
	inst.PrincipalAmount = pgNumericToDecimal(principal)
	inst.InterestAmount = pgNumericToDecimal(interest)
	inst.TotalPayment = pgNumericToDecimal(total)
	inst.RemainingDebtAfter = pgNumericToDecimal(remaining)
	inst.Status = domain.InstallmentStatus(status)
	inst.CreatedAt = createdAt.Time
	inst.UpdatedAt = updatedAt.Time
	if payDate.Valid {
		inst.PaymentDate = &payDate.Time
	}
	if channel.Valid {
		inst.PaymentChannel = &channel.String
	}

	return &inst, nil
}
