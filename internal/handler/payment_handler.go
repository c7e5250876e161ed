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

// PaymentHandler handles payment recording and history requests
type PaymentHandler struct {
	paymentService  *service.PaymentService
	reminderService *service.ReminderService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *service.PaymentService, reminderService *service.ReminderService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, reminderService: reminderService}
}

// RecordPaymentRequest represents the record payment request body
type RecordPaymentRequest struct {
	Amount      string `json:"amount"`
	PaymentDate string `json:"paymentDate,omitempty"` // defaults to today
	Channel     string `json:"channel"`
}

// PaymentResponse represents a payment history entry in API responses
type PaymentResponse struct {
	ID            string `json:"id"`
	LoanID        int32  `json:"loanId"`
	InstallmentID int32  `json:"installmentId"`
	Amount        string `json:"amount"`
	PaymentDate   string `json:"paymentDate"`
	Channel       string `json:"channel"`
	Status        string `json:"status"`
	CreatedAt     string `json:"createdAt"`
}

// RecordPaymentResponse is the settled installment with the appended
// history entry and the resynchronized loan
type RecordPaymentResponse struct {
	Installment InstallmentResponse `json:"installment"`
	Payment     PaymentResponse     `json:"payment"`
	Loan        LoanResponse        `json:"loan"`
}

// UpcomingInstallmentResponse represents an installment due within the
// reminder horizon
type UpcomingInstallmentResponse struct {
	InstallmentResponse
	LoanName string `json:"loanName"`
}

func toPaymentResponse(payment *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            payment.ID.String(),
		LoanID:        payment.LoanID,
		InstallmentID: payment.InstallmentID,
		Amount:        payment.Amount.StringFixed(2),
		PaymentDate:   payment.PaymentDate.Format("2006-01-02"),
		Channel:       payment.Channel,
		Status:        string(payment.Status),
		CreatedAt:     payment.CreatedAt.Format(time.RFC3339),
	}
}

func toPaymentResponses(payments []*domain.Payment) []PaymentResponse {
	responses := make([]PaymentResponse, len(payments))
	for i, payment := range payments {
		responses[i] = toPaymentResponse(payment)
	}
	return responses
}

// RecordPayment handles POST /api/v1/installments/:id/payments
func (h *PaymentHandler) RecordPayment(c echo.Context) error {
	installmentID, err := parseIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid installment ID", nil)
	}

	var req RecordPaymentRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return NewValidationError(c, "Invalid amount", []ValidationError{
			{Field: "amount", Message: "Must be a valid decimal number"},
		})
	}

	var paymentDate time.Time
	if req.PaymentDate != "" {
		paymentDate, err = time.Parse("2006-01-02", req.PaymentDate)
		if err != nil {
			return NewValidationError(c, "Invalid payment date", []ValidationError{
				{Field: "paymentDate", Message: "Must be in YYYY-MM-DD format"},
			})
		}
	}

	result, err := h.paymentService.RecordPayment(c.Request().Context(), service.RecordPaymentInput{
		InstallmentID: installmentID,
		Amount:        amount,
		PaymentDate:   paymentDate,
		Channel:       req.Channel,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInstallmentNotFound) {
			return NewNotFoundError(c, "Installment not found")
		}
		if errors.Is(err, domain.ErrInstallmentAlreadyPaid) {
			return NewConflictError(c, "Installment is already paid")
		}
		if errors.Is(err, domain.ErrPaymentAmountInvalid) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "amount", Message: "Amount must be positive"},
			})
		}
		if errors.Is(err, domain.ErrPaymentChannelEmpty) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "channel", Message: "Payment channel is required"},
			})
		}
		log.Error().Err(err).
			Int32("installment_id", installmentID).
			Msg("Failed to record payment")
		return NewInternalError(c, "Failed to record payment")
	}

	return c.JSON(http.StatusCreated, RecordPaymentResponse{
		Installment: toInstallmentResponse(result.Installment, result.Loan.TermCount, time.Now()),
		Payment:     toPaymentResponse(result.Payment),
		Loan:        toLoanResponse(result.Loan),
	})
}

// GetInstallmentPayments handles GET /api/v1/installments/:id/payments
func (h *PaymentHandler) GetInstallmentPayments(c echo.Context) error {
	installmentID, err := parseIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid installment ID", nil)
	}

	payments, err := h.paymentService.GetHistoryByInstallment(installmentID)
	if err != nil {
		if errors.Is(err, domain.ErrInstallmentNotFound) {
			return NewNotFoundError(c, "Installment not found")
		}
		log.Error().Err(err).
			Int32("installment_id", installmentID).
			Msg("Failed to get payment history")
		return NewInternalError(c, "Failed to get payment history")
	}

	return c.JSON(http.StatusOK, toPaymentResponses(payments))
}

// GetLoanPayments handles GET /api/v1/loans/:id/payments
func (h *PaymentHandler) GetLoanPayments(c echo.Context) error {
	loanID, err := parseIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	payments, err := h.paymentService.GetHistoryByLoan(loanID)
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return NewNotFoundError(c, "Loan not found")
		}
		log.Error().Err(err).Int32("loan_id", loanID).Msg("Failed to get payment history")
		return NewInternalError(c, "Failed to get payment history")
	}

	return c.JSON(http.StatusOK, toPaymentResponses(payments))
}

// GetUpcomingInstallments handles GET /api/v1/installments/upcoming?days=N
func (h *PaymentHandler) GetUpcomingInstallments(c echo.Context) error {
	days := 0
	if raw := c.QueryParam("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return NewValidationError(c, "Invalid days parameter", []ValidationError{
				{Field: "days", Message: "Must be a positive integer"},
			})
		}
		days = parsed
	}

	upcoming, err := h.reminderService.UpcomingInstallments(days)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get upcoming installments")
		return NewInternalError(c, "Failed to get upcoming installments")
	}

	now := time.Now()
	responses := make([]UpcomingInstallmentResponse, len(upcoming))
	for i, u := range upcoming {
		responses[i] = UpcomingInstallmentResponse{
			InstallmentResponse: toInstallmentResponse(&u.Installment, u.TotalInstallments, now),
			LoanName:            u.LoanName,
		}
	}
	return c.JSON(http.StatusOK, responses)
}
