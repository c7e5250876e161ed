package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRecordPaymentHTTP_Success(t *testing.T) {
	e := echo.New()
	f := newHandlerFixture()
	created := f.createLoan(t)
	installmentID := created.Installments[0].ID

	reqBody := `{"amount": "1200", "paymentDate": "2024-07-01", "channel": "bank_transfer"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/installments/1/payments", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprintf("%d", installmentID))

	if err := f.paymentHandler.RecordPayment(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", rec.Code)
	}

	var response RecordPaymentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if response.Installment.Status != "paid" {
		t.Errorf("Expected installment status 'paid', got %s", response.Installment.Status)
	}
	if response.Payment.Amount != "1200.00" {
		t.Errorf("Expected payment amount '1200.00', got %s", response.Payment.Amount)
	}
	if response.Payment.Channel != "bank_transfer" {
		t.Errorf("Expected channel 'bank_transfer', got %s", response.Payment.Channel)
	}
	if response.Loan.RemainingInstallments != 11 {
		t.Errorf("Expected 11 remaining installments, got %d", response.Loan.RemainingInstallments)
	}
}

func TestRecordPaymentHTTP_DoublePaymentConflict(t *testing.T) {
	e := echo.New()
	f := newHandlerFixture()
	created := f.createLoan(t)
	installmentID := created.Installments[0].ID

	reqBody := `{"amount": "1200", "channel": "bank_transfer"}`

	for attempt, wantStatus := range []int{http.StatusCreated, http.StatusConflict} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/installments/1/payments", strings.NewReader(reqBody))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues(fmt.Sprintf("%d", installmentID))

		if err := f.paymentHandler.RecordPayment(c); err != nil {
			t.Fatalf("Attempt %d: expected no error, got %v", attempt+1, err)
		}
		if rec.Code != wantStatus {
			t.Errorf("Attempt %d: expected status %d, got %d", attempt+1, wantStatus, rec.Code)
		}
	}
}

func TestRecordPaymentHTTP_InstallmentNotFound(t *testing.T) {
	e := echo.New()
	f := newHandlerFixture()

	reqBody := `{"amount": "1200", "channel": "cash"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/installments/99/payments", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("99")

	if err := f.paymentHandler.RecordPayment(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestRecordPaymentHTTP_MissingChannel(t *testing.T) {
	e := echo.New()
	f := newHandlerFixture()
	created := f.createLoan(t)

	reqBody := `{"amount": "1200"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/installments/1/payments", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprintf("%d", created.Installments[0].ID))

	if err := f.paymentHandler.RecordPayment(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestGetInstallmentPaymentsHTTP_History(t *testing.T) {
	e := echo.New()
	f := newHandlerFixture()
	created := f.createLoan(t)
	installmentID := created.Installments[0].ID

	reqBody := `{"amount": "1200", "channel": "cash"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/installments/1/payments", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprintf("%d", installmentID))
	if err := f.paymentHandler.RecordPayment(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/installments/1/payments", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprintf("%d", installmentID))

	if err := f.paymentHandler.GetInstallmentPayments(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	var response []PaymentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(response) != 1 {
		t.Fatalf("Expected 1 history entry, got %d", len(response))
	}
	if response[0].Status != "recorded" {
		t.Errorf("Expected status 'recorded', got %s", response[0].Status)
	}
}

func TestGetUpcomingInstallmentsHTTP(t *testing.T) {
	e := echo.New()
	f := newHandlerFixture()
	f.installmentRepo.LoanNames[1] = "Car loan"
	f.installmentRepo.LoanTermCounts[1] = 12
	f.createLoan(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/installments/upcoming?days=60", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := f.paymentHandler.GetUpcomingInstallments(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	var response []UpcomingInstallmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	// The loan starts next month; one installment falls inside 60 days
	if len(response) < 1 {
		t.Fatalf("Expected at least 1 upcoming installment, got %d", len(response))
	}
	if response[0].LoanName != "Car loan" {
		t.Errorf("Expected loan name 'Car loan', got %s", response[0].LoanName)
	}
}

func TestGetUpcomingInstallmentsHTTP_InvalidDays(t *testing.T) {
	e := echo.New()
	f := newHandlerFixture()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/installments/upcoming?days=-1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := f.paymentHandler.GetUpcomingInstallments(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}
