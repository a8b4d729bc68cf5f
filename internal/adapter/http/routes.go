package http

import "github.com/labstack/echo/v4"

// Register mounts the ledger routes. mutating wraps every POST route,
// typically with the idempotency middleware.
func Register(e *echo.Echo, h *Handler, lh *LedgerHandler, mutating ...echo.MiddlewareFunc) {
	e.GET("/health", h.Health)

	g := e.Group("/groups/:group_id")
	g.GET("/totals", lh.GroupTotals)
	g.GET("/members/:user_id/eligibility", lh.Eligibility)
	g.GET("/members/:user_id/snapshot", lh.Snapshot)
	g.GET("/members/:user_id/penalties/outstanding", lh.OutstandingPenalties)
	g.GET("/loans/:loan_id/schedule", lh.LoanSchedule)

	g.POST("/members/:user_id/penalties", lh.ApplyPenalty, mutating...)
	g.POST("/members/:user_id/contributions/online", lh.RecordOnlinePayment, mutating...)
	g.POST("/members/:user_id/cash-payments", lh.RecordCashPayment, mutating...)
	g.POST("/members/:user_id/loans", lh.RequestLoan, mutating...)
	g.POST("/contributions/:contribution_id/confirm", lh.ConfirmContribution, mutating...)
	g.POST("/contributions/:contribution_id/reject", lh.RejectContribution, mutating...)
	g.POST("/loans/:loan_id/decision", lh.DecideLoan, mutating...)
	g.POST("/loans/:loan_id/disburse", lh.DisburseLoan, mutating...)
	g.POST("/loans/:loan_id/repayments", lh.RecordRepayment, mutating...)
}
