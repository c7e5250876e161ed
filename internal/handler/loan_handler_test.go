package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/monetaapp/moneta-backend/internal/service"
	"github.com/monetaapp/moneta-backend/internal/testutil"
	"github.com/shopspring/decimal"
)

type handlerFixture struct {
	loanHandler     *LoanHandler
	paymentHandler  *PaymentHandler
	loanService     *service.LoanService
	paymentService  *service.PaymentService
	loanRepo        *testutil.MockLoanRepository
	installmentRepo *testutil.MockInstallmentRepository
}

func newHandlerFixture() *handlerFixture {
	txRunner := testutil.NewMockTxRunner()
	loanRepo := testutil.NewMockLoanRepository()
	installmentRepo := testutil.NewMockInstallmentRepository()
	paymentRepo := testutil.NewMockPaymentRepository()

	lifecycleService := service.NewLifecycleService(txRunner, loanRepo, installmentRepo)
	loanService := service.NewLoanService(txRunner, loanRepo, installmentRepo, paymentRepo, lifecycleService)
	paymentService := service.NewPaymentService(txRunner, loanRepo, installmentRepo, paymentRepo, lifecycleService)
	reminderService := service.NewReminderService(installmentRepo, 7)

	return &handlerFixture{
		loanHandler:     NewLoanHandler(loanService, lifecycleService),
		paymentHandler:  NewPaymentHandler(paymentService, reminderService),
		loanService:     loanService,
		paymentService:  paymentService,
		loanRepo:        loanRepo,
		installmentRepo: installmentRepo,
	}
}

func (f *handlerFixture) createLoan(t *testing.T) *service.CreateLoanResult {
	t.Helper()
	result, err := f.loanService.CreateLoan(context.Background(), service.CreateLoanInput{
		Name:            "Car loan",
		Principal:       decimal.RequireFromString("12000"),
		PeriodicRate:    decimal.RequireFromString("0.02"),
		PeriodicPayment: decimal.RequireFromString("1200"),
		TermCount:       12,
		StartDate:       time.Now().AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("Failed to seed loan: %v", err)
	}
	return result
}

func TestCreateLoanHTTP_Success(t *testing.T) {
	e := echo.New()
	f := newHandlerFixture()

	reqBody := `{
		"name": "Car loan",
		"principal": "12000",
		"periodicRate": "0.02",
		"periodicPayment": "1200",
		"termCount": 12,
		"startDate": "2024-01-01"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := f.loanHandler.CreateLoan(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", rec.Code)
	}

	var response CreateLoanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if response.Loan.Name != "Car loan" {
		t.Errorf("Expected name 'Car loan', got %s", response.Loan.Name)
	}
	if response.Loan.Period != "month" {
		t.Errorf("Expected period 'month', got %s", response.Loan.Period)
	}
	if len(response.Installments) != 12 {
		t.Fatalf("Expected 12 installments, got %d", len(response.Installments))
	}
	if response.Installments[0].InterestAmount != "240.00" {
		t.Errorf("Expected first interest '240.00', got %s", response.Installments[0].InterestAmount)
	}
	if response.Installments[0].PrincipalAmount != "960.00" {
		t.Errorf("Expected first principal '960.00', got %s", response.Installments[0].PrincipalAmount)
	}
	if response.Installments[0].Label != "1/12" {
		t.Errorf("Expected label '1/12', got %s", response.Installments[0].Label)
	}
	if len(response.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", response.Warnings)
	}
}

func TestCreateLoanHTTP_NegativeAmortizationWarning(t *testing.T) {
	e := echo.New()
	f := newHandlerFixture()

	reqBody := `{
		"name": "Underwater loan",
		"principal": "10000",
		"periodicRate": "0.02",
		"periodicPayment": "150",
		"termCount": 6,
		"startDate": "2024-01-01"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := f.loanHandler.CreateLoan(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", rec.Code)
	}

	var response CreateLoanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(response.Warnings) != 1 {
		t.Errorf("Expected 1 warning, got %d", len(response.Warnings))
	}
}

func TestCreateLoanHTTP_InvalidPrincipal(t *testing.T) {
	e := echo.New()
	f := newHandlerFixture()

	reqBody := `{
		"name": "Bad loan",
		"principal": "not-a-number",
		"periodicRate": "0.02",
		"periodicPayment": "1200",
		"termCount": 12,
		"startDate": "2024-01-01"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := f.loanHandler.CreateLoan(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}

	var problem ProblemDetails
	if err := json.Unmarshal(rec.Body.Bytes(), &problem); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if problem.Type != ErrorTypeValidation {
		t.Errorf("Expected validation problem type, got %s", problem.Type)
	}
}

func TestCreateLoanHTTP_ZeroPrincipal(t *testing.T) {
	e := echo.New()
	f := newHandlerFixture()

	reqBody := `{
		"name": "Bad loan",
		"principal": "0",
		"periodicRate": "0.02",
		"periodicPayment": "1200",
		"termCount": 12,
		"startDate": "2024-01-01"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := f.loanHandler.CreateLoan(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestGetLoanHTTP_NotFound(t *testing.T) {
	e := echo.New()
	f := newHandlerFixture()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/loans/99", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("99")

	if err := f.loanHandler.GetLoan(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestGetLoansHTTP_ListsAll(t *testing.T) {
	e := echo.New()
	f := newHandlerFixture()
	f.createLoan(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/loans", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := f.loanHandler.GetLoans(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	var response []LoanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(response) != 1 {
		t.Fatalf("Expected 1 loan, got %d", len(response))
	}
	if response[0].RemainingInstallments != 12 {
		t.Errorf("Expected 12 remaining installments, got %d", response[0].RemainingInstallments)
	}
}

func TestRegenerateScheduleHTTP_ConflictWhenPaid(t *testing.T) {
	e := echo.New()
	f := newHandlerFixture()
	created := f.createLoan(t)

	if _, err := f.installmentRepo.MarkPaidTx(nil, created.Installments[0].ID, time.Now(), "cash"); err != nil {
		t.Fatalf("Failed to mark installment paid: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans/1/regenerate", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	if err := f.loanHandler.RegenerateSchedule(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", rec.Code)
	}
}

func TestUpdateInstallmentDueDateHTTP_Success(t *testing.T) {
	e := echo.New()
	f := newHandlerFixture()
	f.createLoan(t)

	reqBody := `{"dueDate": "2024-12-24"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/loans/1/installments/2", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id", "number")
	c.SetParamValues("1", "2")

	if err := f.loanHandler.UpdateInstallmentDueDate(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	var response InstallmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.DueDate != "2024-12-24" {
		t.Errorf("Expected due date '2024-12-24', got %s", response.DueDate)
	}
}

func TestDeleteLoanHTTP_NoContent(t *testing.T) {
	e := echo.New()
	f := newHandlerFixture()
	f.createLoan(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/loans/1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	if err := f.loanHandler.DeleteLoan(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rec.Code)
	}
}
