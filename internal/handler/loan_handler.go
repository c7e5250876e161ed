package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/monetaapp/moneta-backend/internal/domain"
	"github.com/monetaapp/moneta-backend/internal/service"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// LoanHandler handles loan-related HTTP requests
type LoanHandler struct {
	loanService      *service.LoanService
	lifecycleService *service.LifecycleService
}

// NewLoanHandler creates a new LoanHandler
func NewLoanHandler(loanService *service.LoanService, lifecycleService *service.LifecycleService) *LoanHandler {
	return &LoanHandler{loanService: loanService, lifecycleService: lifecycleService}
}

// CreateLoanRequest represents the create loan request body
type CreateLoanRequest struct {
	Name            string `json:"name"`
	Principal       string `json:"principal"`
	PeriodicRate    string `json:"periodicRate"`
	PeriodicPayment string `json:"periodicPayment"`
	TermCount       int32  `json:"termCount"`
	StartDate       string `json:"startDate"`
	Period          string `json:"period,omitempty"` // "month" (default) or "week"
}

// UpdateDueDateRequest represents the due date change request body
type UpdateDueDateRequest struct {
	DueDate string `json:"dueDate"`
}

// LoanResponse represents a loan in API responses
type LoanResponse struct {
	ID                    int32   `json:"id"`
	Name                  string  `json:"name"`
	Principal             string  `json:"principal"`
	PeriodicRate          string  `json:"periodicRate"`
	PeriodicPayment       string  `json:"periodicPayment"`
	TermCount             int32   `json:"termCount"`
	StartDate             string  `json:"startDate"`
	Period                string  `json:"period"`
	RemainingDebt         string  `json:"remainingDebt"`
	RemainingInstallments int32   `json:"remainingInstallments"`
	PaymentProgress       float64 `json:"paymentProgress"`
	Status                string  `json:"status"`
	CreatedAt             string  `json:"createdAt"`
	UpdatedAt             string  `json:"updatedAt"`
}

// InstallmentResponse represents an installment in API responses. The
// status field carries the effective status, so a pending installment
// past its due date reads as overdue.
type InstallmentResponse struct {
	ID                 int32   `json:"id"`
	LoanID             int32   `json:"loanId"`
	Number             int32   `json:"number"`
	Label              string  `json:"label"`
	DueDate            string  `json:"dueDate"`
	PrincipalAmount    string  `json:"principalAmount"`
	InterestAmount     string  `json:"interestAmount"`
	TotalPayment       string  `json:"totalPayment"`
	RemainingDebtAfter string  `json:"remainingDebtAfter"`
	Status             string  `json:"status"`
	PaymentDate        *string `json:"paymentDate,omitempty"`
	PaymentChannel     *string `json:"paymentChannel,omitempty"`
}

// CreateLoanResponse is the created loan with its generated schedule
type CreateLoanResponse struct {
	Loan         LoanResponse          `json:"loan"`
	Installments []InstallmentResponse `json:"installments"`
	Warnings     []string              `json:"warnings,omitempty"`
}

func toLoanResponse(loan *domain.Loan) LoanResponse {
	return LoanResponse{
		ID:                    loan.ID,
		Name:                  loan.Name,
		Principal:             loan.Principal.StringFixed(2),
		PeriodicRate:          loan.PeriodicRate.String(),
		PeriodicPayment:       loan.PeriodicPayment.StringFixed(2),
		TermCount:             loan.TermCount,
		StartDate:             loan.StartDate.Format("2006-01-02"),
		Period:                string(loan.Period),
		RemainingDebt:         loan.RemainingDebt.StringFixed(2),
		RemainingInstallments: loan.RemainingInstallments,
		PaymentProgress:       loan.PaymentProgress,
		Status:                string(loan.Status),
		CreatedAt:             loan.CreatedAt.Format(time.RFC3339),
		UpdatedAt:             loan.UpdatedAt.Format(time.RFC3339),
	}
}

func toInstallmentResponse(inst *domain.Installment, totalInstallments int32, now time.Time) InstallmentResponse {
	resp := InstallmentResponse{
		ID:                 inst.ID,
		LoanID:             inst.LoanID,
		Number:             inst.Number,
		Label:              inst.FormatLabel(totalInstallments),
		DueDate:            inst.DueDate.Format("2006-01-02"),
		PrincipalAmount:    inst.PrincipalAmount.StringFixed(2),
		InterestAmount:     inst.InterestAmount.StringFixed(2),
		TotalPayment:       inst.TotalPayment.StringFixed(2),
		RemainingDebtAfter: inst.RemainingDebtAfter.StringFixed(2),
		Status:             string(inst.StatusAt(now)),
		PaymentChannel:     inst.PaymentChannel,
	}
	if inst.PaymentDate != nil {
		formatted := inst.PaymentDate.Format("2006-01-02")
		resp.PaymentDate = &formatted
	}
	return resp
}

func toInstallmentResponses(installments []*domain.Installment, totalInstallments int32, now time.Time) []InstallmentResponse {
	responses := make([]InstallmentResponse, len(installments))
	for i, inst := range installments {
		responses[i] = toInstallmentResponse(inst, totalInstallments, now)
	}
	return responses
}

// CreateLoan handles POST /api/v1/loans
func (h *LoanHandler) CreateLoan(c echo.Context) error {
	var req CreateLoanRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	principal, err := decimal.NewFromString(req.Principal)
	if err != nil {
		return NewValidationError(c, "Invalid principal", []ValidationError{
			{Field: "principal", Message: "Must be a valid decimal number"},
		})
	}

	rate, err := decimal.NewFromString(req.PeriodicRate)
	if err != nil {
		return NewValidationError(c, "Invalid periodic rate", []ValidationError{
			{Field: "periodicRate", Message: "Must be a valid decimal number"},
		})
	}

	payment, err := decimal.NewFromString(req.PeriodicPayment)
	if err != nil {
		return NewValidationError(c, "Invalid periodic payment", []ValidationError{
			{Field: "periodicPayment", Message: "Must be a valid decimal number"},
		})
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return NewValidationError(c, "Invalid start date", []ValidationError{
			{Field: "startDate", Message: "Must be in YYYY-MM-DD format"},
		})
	}

	result, err := h.loanService.CreateLoan(c.Request().Context(), service.CreateLoanInput{
		Name:            req.Name,
		Principal:       principal,
		PeriodicRate:    rate,
		PeriodicPayment: payment,
		TermCount:       req.TermCount,
		StartDate:       startDate,
		Period:          domain.PeriodUnit(req.Period),
	})
	if err != nil {
		if validationErr := mapLoanValidationError(c, err); validationErr != nil {
			return validationErr
		}
		log.Error().Err(err).Msg("Failed to create loan")
		return NewInternalError(c, "Failed to create loan")
	}

	resp := CreateLoanResponse{
		Loan:         toLoanResponse(result.Loan),
		Installments: toInstallmentResponses(result.Installments, result.Loan.TermCount, time.Now()),
	}
	if result.NegativeAmortization {
		resp.Warnings = append(resp.Warnings,
			"periodic payment does not cover first-period interest; the debt will not decrease")
	}

	return c.JSON(http.StatusCreated, resp)
}

func mapLoanValidationError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrLoanNameEmpty):
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "name", Message: "Loan name is required"},
		})
	case errors.Is(err, domain.ErrLoanNameTooLong):
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "name", Message: "Loan name must be 200 characters or less"},
		})
	case errors.Is(err, domain.ErrLoanPrincipalInvalid):
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "principal", Message: "Principal must be positive"},
		})
	case errors.Is(err, domain.ErrLoanPaymentInvalid):
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "periodicPayment", Message: "Periodic payment must be positive"},
		})
	case errors.Is(err, domain.ErrLoanTermInvalid):
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "termCount", Message: "Term count must be at least 1"},
		})
	case errors.Is(err, domain.ErrLoanRateInvalid):
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "periodicRate", Message: "Periodic rate must not be negative"},
		})
	case errors.Is(err, domain.ErrLoanStartDateInvalid):
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "startDate", Message: "Start date is required"},
		})
	case errors.Is(err, domain.ErrLoanPeriodInvalid):
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "period", Message: "Period must be month or week"},
		})
	}
	return nil
}

// GetLoans handles GET /api/v1/loans
func (h *LoanHandler) GetLoans(c echo.Context) error {
	loans, err := h.loanService.GetLoans()
	if err != nil {
		log.Error().Err(err).Msg("Failed to get loans")
		return NewInternalError(c, "Failed to get loans")
	}

	responses := make([]LoanResponse, len(loans))
	for i, loan := range loans {
		responses[i] = toLoanResponse(loan)
	}
	return c.JSON(http.StatusOK, responses)
}

// GetLoan handles GET /api/v1/loans/:id
func (h *LoanHandler) GetLoan(c echo.Context) error {
	loanID, err := parseIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	loan, err := h.loanService.GetLoanByID(loanID)
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return NewNotFoundError(c, "Loan not found")
		}
		log.Error().Err(err).Int32("loan_id", loanID).Msg("Failed to get loan")
		return NewInternalError(c, "Failed to get loan")
	}

	return c.JSON(http.StatusOK, toLoanResponse(loan))
}

// GetInstallments handles GET /api/v1/loans/:id/installments
func (h *LoanHandler) GetInstallments(c echo.Context) error {
	loanID, err := parseIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	installments, err := h.loanService.GetInstallmentsByLoan(loanID)
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return NewNotFoundError(c, "Loan not found")
		}
		log.Error().Err(err).Int32("loan_id", loanID).Msg("Failed to get installments")
		return NewInternalError(c, "Failed to get installments")
	}

	return c.JSON(http.StatusOK, toInstallmentResponses(installments, int32(len(installments)), time.Now()))
}

// SyncLoan handles POST /api/v1/loans/:id/sync
func (h *LoanHandler) SyncLoan(c echo.Context) error {
	loanID, err := parseIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	loan, err := h.lifecycleService.SynchronizeLoan(c.Request().Context(), loanID)
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return NewNotFoundError(c, "Loan not found")
		}
		log.Error().Err(err).Int32("loan_id", loanID).Msg("Failed to synchronize loan")
		return NewInternalError(c, "Failed to synchronize loan")
	}

	return c.JSON(http.StatusOK, toLoanResponse(loan))
}

// RegenerateSchedule handles POST /api/v1/loans/:id/regenerate
func (h *LoanHandler) RegenerateSchedule(c echo.Context) error {
	loanID, err := parseIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	installments, err := h.loanService.RegenerateSchedule(c.Request().Context(), loanID)
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return NewNotFoundError(c, "Loan not found")
		}
		if errors.Is(err, domain.ErrLoanHasPaidInstallments) {
			return NewConflictError(c, "Cannot regenerate: loan already has paid installments")
		}
		log.Error().Err(err).Int32("loan_id", loanID).Msg("Failed to regenerate schedule")
		return NewInternalError(c, "Failed to regenerate schedule")
	}

	return c.JSON(http.StatusOK, toInstallmentResponses(installments, int32(len(installments)), time.Now()))
}

// UpdateInstallmentDueDate handles PATCH /api/v1/loans/:id/installments/:number
func (h *LoanHandler) UpdateInstallmentDueDate(c echo.Context) error {
	loanID, err := parseIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}
	number, err := parseIDParam(c, "number")
	if err != nil {
		return NewValidationError(c, "Invalid installment number", nil)
	}

	var req UpdateDueDateRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		return NewValidationError(c, "Invalid due date", []ValidationError{
			{Field: "dueDate", Message: "Must be in YYYY-MM-DD format"},
		})
	}

	inst, err := h.loanService.UpdateInstallmentDueDate(c.Request().Context(), loanID, number, dueDate)
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return NewNotFoundError(c, "Loan not found")
		}
		if errors.Is(err, domain.ErrInstallmentNotFound) {
			return NewNotFoundError(c, "Installment not found")
		}
		if errors.Is(err, domain.ErrInstallmentNotPending) {
			return NewConflictError(c, "Paid installments cannot be edited")
		}
		log.Error().Err(err).
			Int32("loan_id", loanID).
			Int32("number", number).
			Msg("Failed to update installment due date")
		return NewInternalError(c, "Failed to update installment")
	}

	loan, err := h.loanService.GetLoanByID(loanID)
	if err != nil {
		log.Error().Err(err).Int32("loan_id", loanID).Msg("Failed to reload loan")
		return NewInternalError(c, "Failed to update installment")
	}

	return c.JSON(http.StatusOK, toInstallmentResponse(inst, loan.TermCount, time.Now()))
}

// DeleteInstallment handles DELETE /api/v1/loans/:id/installments/:number
func (h *LoanHandler) DeleteInstallment(c echo.Context) error {
	loanID, err := parseIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}
	number, err := parseIDParam(c, "number")
	if err != nil {
		return NewValidationError(c, "Invalid installment number", nil)
	}

	err = h.loanService.DeleteInstallment(c.Request().Context(), loanID, number)
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return NewNotFoundError(c, "Loan not found")
		}
		if errors.Is(err, domain.ErrInstallmentNotFound) {
			return NewNotFoundError(c, "Installment not found")
		}
		if errors.Is(err, domain.ErrInstallmentNotPending) {
			return NewConflictError(c, "Paid installments cannot be deleted")
		}
		log.Error().Err(err).
			Int32("loan_id", loanID).
			Int32("number", number).
			Msg("Failed to delete installment")
		return NewInternalError(c, "Failed to delete installment")
	}

	return c.NoContent(http.StatusNoContent)
}

// DeleteLoan handles DELETE /api/v1/loans/:id
func (h *LoanHandler) DeleteLoan(c echo.Context) error {
	loanID, err := parseIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	if err := h.loanService.DeleteLoan(c.Request().Context(), loanID); err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return NewNotFoundError(c, "Loan not found")
		}
		log.Error().Err(err).Int32("loan_id", loanID).Msg("Failed to delete loan")
		return NewInternalError(c, "Failed to delete loan")
	}

	return c.NoContent(http.StatusNoContent)
}

func parseIDParam(c echo.Context, name string) (int32, error) {
	value, err := strconv.ParseInt(c.Param(name), 10, 32)
	if err != nil || value < 1 {
		return 0, domain.ErrInvalidInput
	}
	return int32(value), nil
}
