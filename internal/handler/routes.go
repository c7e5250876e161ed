package handler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(e *echo.Echo, loanHandler *LoanHandler, paymentHandler *PaymentHandler, wsHandler *WebSocketHandler) {
	// API version 1
	api := e.Group("/api/v1")

	// Loan routes
	loans := api.Group("/loans")
	loans.POST("", loanHandler.CreateLoan)
	loans.GET("", loanHandler.GetLoans)
	loans.GET("/:id", loanHandler.GetLoan)
	loans.DELETE("/:id", loanHandler.DeleteLoan)
	loans.POST("/:id/sync", loanHandler.SyncLoan)
	loans.POST("/:id/regenerate", loanHandler.RegenerateSchedule)
	loans.GET("/:id/installments", loanHandler.GetInstallments)
	loans.PATCH("/:id/installments/:number", loanHandler.UpdateInstallmentDueDate)
	loans.DELETE("/:id/installments/:number", loanHandler.DeleteInstallment)
	loans.GET("/:id/payments", paymentHandler.GetLoanPayments)

	// Installment routes
	installments := api.Group("/installments")
	installments.GET("/upcoming", paymentHandler.GetUpcomingInstallments)
	installments.POST("/:id/payments", paymentHandler.RecordPayment)
	installments.GET("/:id/payments", paymentHandler.GetInstallmentPayments)

	// WebSocket endpoint
	e.GET("/ws", wsHandler.HandleWS)
}
