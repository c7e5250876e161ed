package service

import (
	"time"

	"github.com/monetaapp/moneta-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// ScheduleTerms are the loan terms a schedule is derived from.
type ScheduleTerms struct {
	Principal       decimal.Decimal
	PeriodicRate    decimal.Decimal // fraction per period, e.g. 0.02 for 2% monthly
	PeriodicPayment decimal.Decimal
	TermCount       int32
	StartDate       time.Time
	Period          domain.PeriodUnit
}

// ScheduleResult is the generated installment set plus any non-fatal
// warning about the terms.
type ScheduleResult struct {
	Installments []*domain.Installment
	// NegativeAmortization is set when interest on the first installment
	// meets or exceeds the periodic payment: the schedule is still
	// produced, but the debt never shrinks and callers should warn.
	NegativeAmortization bool
}

// GenerateSchedule derives the full installment schedule from the loan
// terms. It is deterministic and performs no I/O; due dates are pure
// arithmetic from the supplied start date.
//
// Per installment, interest accrues on the debt remaining before it and
// the principal portion is the periodic payment minus that interest,
// floored at zero and capped at the remaining balance, so the principal
// portions across the schedule sum to exactly the borrowed amount. The
// final installment absorbs whatever balance is
// left, rounding residue included, so the remaining debt after the last
// installment is exactly zero.
func GenerateSchedule(terms ScheduleTerms) (*ScheduleResult, error) {
	if terms.Principal.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrLoanPrincipalInvalid
	}
	if terms.PeriodicPayment.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrLoanPaymentInvalid
	}
	if terms.TermCount < 1 {
		return nil, domain.ErrLoanTermInvalid
	}
	if terms.PeriodicRate.IsNegative() {
		return nil, domain.ErrLoanRateInvalid
	}
	if terms.StartDate.IsZero() {
		return nil, domain.ErrLoanStartDateInvalid
	}
	if terms.Period != domain.PeriodMonth && terms.Period != domain.PeriodWeek {
		return nil, domain.ErrLoanPeriodInvalid
	}

	result := &ScheduleResult{
		Installments: make([]*domain.Installment, 0, terms.TermCount),
	}

	debtRemaining := terms.Principal
	for i := int32(1); i <= terms.TermCount; i++ {
		interest := debtRemaining.Mul(terms.PeriodicRate).Round(2)
		if i == 1 && interest.GreaterThanOrEqual(terms.PeriodicPayment) {
			result.NegativeAmortization = true
		}

		principal := terms.PeriodicPayment.Sub(interest)
		if principal.IsNegative() {
			// Payment smaller than the interest due: zero principal
			// reduction this period, left uncorrected.
			principal = decimal.Zero
		}

		total := terms.PeriodicPayment
		if principal.GreaterThan(debtRemaining) {
			// Payoff period: only the remaining balance is owed. Without
			// the cap the principal portions would sum past the borrowed
			// amount.
			principal = debtRemaining
			total = principal.Add(interest)
		}

		debtRemaining = debtRemaining.Sub(principal)

		if i == terms.TermCount {
			// Last installment absorbs the residual balance.
			principal = principal.Add(debtRemaining)
			debtRemaining = decimal.Zero
			total = principal.Add(interest)
		}

		result.Installments = append(result.Installments, &domain.Installment{
			Number:             i,
			DueDate:            dueDateFor(terms.StartDate, terms.Period, i),
			PrincipalAmount:    principal,
			InterestAmount:     interest,
			TotalPayment:       total,
			RemainingDebtAfter: debtRemaining,
			Status:             domain.InstallmentStatusPending,
		})
	}

	return result, nil
}

// dueDateFor advances the start date by (number - 1) periods
func dueDateFor(start time.Time, period domain.PeriodUnit, number int32) time.Time {
	offset := int(number - 1)
	if period == domain.PeriodWeek {
		return start.AddDate(0, 0, 7*offset)
	}
	return start.AddDate(0, offset, 0)
}
