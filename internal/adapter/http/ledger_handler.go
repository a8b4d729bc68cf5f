package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	contribDomain "village-banking/internal/domain/contribution"
	loanDomain "village-banking/internal/domain/loan"
	"village-banking/internal/domain/member"
	penaltyDomain "village-banking/internal/domain/penalty"
	"village-banking/internal/usecase/aggregate"
	contributionuc "village-banking/internal/usecase/contribution"
	loanuc "village-banking/internal/usecase/loan"
)

// Ledger is the command/query surface the handlers drive.
type Ledger interface {
	ApplyPenalty(ctx context.Context, groupID, userID string, t penaltyDomain.Type, actor member.Actor) (*penaltyDomain.Penalty, error)
	RecordOnlinePayment(ctx context.Context, groupID, userID string, in contributionuc.OnlinePaymentInput) (*contribDomain.Contribution, bool, error)
	ConfirmContribution(ctx context.Context, groupID, contributionID string, actor member.Actor) (*contribDomain.Contribution, error)
	RejectContribution(ctx context.Context, groupID, contributionID string, failed bool, actor member.Actor) (*contribDomain.Contribution, error)
	RecordCashPayment(ctx context.Context, groupID, userID string, in contributionuc.CashPaymentInput, actor member.Actor) (*contributionuc.CashAllocationResult, error)
	RequestLoan(ctx context.Context, groupID, userID string, in loanuc.RequestInput) (*loanDomain.Loan, error)
	DecideLoan(ctx context.Context, groupID, loanID string, in loanuc.DecideInput, actor member.Actor) (*loanDomain.Loan, error)
	DisburseLoan(ctx context.Context, groupID, loanID string, actor member.Actor) (*loanDomain.Loan, error)
	RecordRepayment(ctx context.Context, groupID, loanID string, amount decimal.Decimal, actor member.Actor) (*loanuc.RepaymentResult, error)

	CheckEligibility(ctx context.Context, groupID, userID string) (*loanuc.Eligibility, error)
	MemberSnapshot(ctx context.Context, groupID, userID string) (*aggregate.MemberSnapshot, error)
	OutstandingPenalties(ctx context.Context, groupID, userID string) (decimal.Decimal, error)
	GroupTotals(ctx context.Context, groupID string) (*aggregate.GroupTotals, error)
	LoanSchedule(ctx context.Context, groupID, loanID string) (*loanuc.Schedule, error)
}

type LedgerHandler struct{ ledger Ledger }

func NewLedgerHandler(l Ledger) *LedgerHandler { return &LedgerHandler{ledger: l} }

type applyPenaltyReq struct {
	Type string `json:"type" validate:"required,oneof=LATE_MEETING MISSED_MEETING LATE_CONTRIBUTION GENERAL"`
}

type onlinePaymentReq struct {
	Amount         json.Number `json:"amount"          validate:"required,money"`
	Month          int         `json:"month"           validate:"required,gte=1,lte=12"`
	Year           int         `json:"year"            validate:"required,gte=2000,lte=9999"`
	PaymentMethod  string      `json:"payment_method"  validate:"required,oneof=MOBILE_MONEY BANK_TRANSFER CARD"`
	TransactionRef string      `json:"transaction_ref" validate:"omitempty,max=128"`
	TopUp          bool        `json:"top_up"`
}

type rejectContributionReq struct {
	Failed bool `json:"failed"`
}

type cashPaymentReq struct {
	Amount json.Number `json:"amount" validate:"required,money"`
	Month  int         `json:"month"  validate:"required,gte=1,lte=12"`
	Year   int         `json:"year"   validate:"required,gte=2000,lte=9999"`
}

type requestLoanReq struct {
	Amount                json.Number `json:"amount"                  validate:"required,money"`
	RepaymentPeriodMonths int         `json:"repayment_period_months" validate:"required,gte=1"`
	Purpose               string      `json:"purpose"                 validate:"max=500"`
}

type decideLoanReq struct {
	Decision       string      `json:"decision"        validate:"required,oneof=APPROVE REJECT"`
	ApprovedAmount json.Number `json:"approved_amount" validate:"omitempty,money"`
}

type repaymentReq struct {
	Amount json.Number `json:"amount" validate:"required,money"`
}

type outstandingResp struct {
	GroupID              string          `json:"group_id"`
	UserID               string          `json:"user_id"`
	OutstandingPenalties decimal.Decimal `json:"outstanding_penalties"`
}

// bindValid binds and validates req, writing the 400/422 response itself.
func bindValid(c echo.Context, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, badBody(c)
	}
	if err := c.Validate(req); err != nil {
		return false, validationFailed(c, err)
	}
	return true, nil
}

// amount is only called on values the money validator accepted.
func amount(n json.Number) decimal.Decimal { return decimal.RequireFromString(n.String()) }

func (h *LedgerHandler) ApplyPenalty(c echo.Context) error {
	actor, r := actorFrom(c)
	if r != nil {
		return r.write(c)
	}
	ids, r := pathIDs(c, "group_id", "user_id")
	if r != nil {
		return r.write(c)
	}
	var req applyPenaltyReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	p, err := h.ledger.ApplyPenalty(c.Request().Context(), ids[0], ids[1], penaltyDomain.Type(req.Type), actor)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *LedgerHandler) RecordOnlinePayment(c echo.Context) error {
	actor, r := actorFrom(c)
	if r != nil {
		return r.write(c)
	}
	ids, r := pathIDs(c, "group_id", "user_id")
	if r != nil {
		return r.write(c)
	}
	if r := selfOrManager(actor, ids[1]); r != nil {
		return r.write(c)
	}
	var req onlinePaymentReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	in := contributionuc.OnlinePaymentInput{
		Amount: amount(req.Amount),
		Month:  req.Month,
		Year:   req.Year,
		Method: req.PaymentMethod,
		Ref:    req.TransactionRef,
		TopUp:  req.TopUp,
	}
	cb, created, err := h.ledger.RecordOnlinePayment(c.Request().Context(), ids[0], ids[1], in)
	if err != nil {
		return writeError(c, err)
	}
	if !created {
		return c.JSON(http.StatusOK, cb)
	}
	return c.JSON(http.StatusCreated, cb)
}

func (h *LedgerHandler) ConfirmContribution(c echo.Context) error {
	actor, r := actorFrom(c)
	if r != nil {
		return r.write(c)
	}
	ids, r := pathIDs(c, "group_id", "contribution_id")
	if r != nil {
		return r.write(c)
	}
	cb, err := h.ledger.ConfirmContribution(c.Request().Context(), ids[0], ids[1], actor)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, cb)
}

func (h *LedgerHandler) RejectContribution(c echo.Context) error {
	actor, r := actorFrom(c)
	if r != nil {
		return r.write(c)
	}
	ids, r := pathIDs(c, "group_id", "contribution_id")
	if r != nil {
		return r.write(c)
	}
	var req rejectContributionReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	cb, err := h.ledger.RejectContribution(c.Request().Context(), ids[0], ids[1], req.Failed, actor)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, cb)
}

func (h *LedgerHandler) RecordCashPayment(c echo.Context) error {
	actor, r := actorFrom(c)
	if r != nil {
		return r.write(c)
	}
	ids, r := pathIDs(c, "group_id", "user_id")
	if r != nil {
		return r.write(c)
	}
	var req cashPaymentReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	in := contributionuc.CashPaymentInput{Amount: amount(req.Amount), Month: req.Month, Year: req.Year}
	res, err := h.ledger.RecordCashPayment(c.Request().Context(), ids[0], ids[1], in, actor)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *LedgerHandler) RequestLoan(c echo.Context) error {
	actor, r := actorFrom(c)
	if r != nil {
		return r.write(c)
	}
	ids, r := pathIDs(c, "group_id", "user_id")
	if r != nil {
		return r.write(c)
	}
	if r := selfOrManager(actor, ids[1]); r != nil {
		return r.write(c)
	}
	var req requestLoanReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	in := loanuc.RequestInput{Amount: amount(req.Amount), Months: req.RepaymentPeriodMonths, Purpose: req.Purpose}
	l, err := h.ledger.RequestLoan(c.Request().Context(), ids[0], ids[1], in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *LedgerHandler) DecideLoan(c echo.Context) error {
	actor, r := actorFrom(c)
	if r != nil {
		return r.write(c)
	}
	ids, r := pathIDs(c, "group_id", "loan_id")
	if r != nil {
		return r.write(c)
	}
	var req decideLoanReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	in := loanuc.DecideInput{Decision: loanuc.Decision(req.Decision)}
	if req.ApprovedAmount != "" {
		a := amount(req.ApprovedAmount)
		in.ApprovedAmount = &a
	}
	l, err := h.ledger.DecideLoan(c.Request().Context(), ids[0], ids[1], in, actor)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *LedgerHandler) DisburseLoan(c echo.Context) error {
	actor, r := actorFrom(c)
	if r != nil {
		return r.write(c)
	}
	ids, r := pathIDs(c, "group_id", "loan_id")
	if r != nil {
		return r.write(c)
	}
	l, err := h.ledger.DisburseLoan(c.Request().Context(), ids[0], ids[1], actor)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *LedgerHandler) RecordRepayment(c echo.Context) error {
	actor, r := actorFrom(c)
	if r != nil {
		return r.write(c)
	}
	ids, r := pathIDs(c, "group_id", "loan_id")
	if r != nil {
		return r.write(c)
	}
	var req repaymentReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	res, err := h.ledger.RecordRepayment(c.Request().Context(), ids[0], ids[1], amount(req.Amount), actor)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// memberQuery runs a self-or-manager read for /groups/:group_id/members/:user_id/...
func (h *LedgerHandler) memberQuery(c echo.Context, q func(ctx context.Context, groupID, userID string) (any, error)) error {
	actor, r := actorFrom(c)
	if r != nil {
		return r.write(c)
	}
	ids, r := pathIDs(c, "group_id", "user_id")
	if r != nil {
		return r.write(c)
	}
	if r := selfOrManager(actor, ids[1]); r != nil {
		return r.write(c)
	}
	out, err := q(c.Request().Context(), ids[0], ids[1])
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *LedgerHandler) Eligibility(c echo.Context) error {
	return h.memberQuery(c, func(ctx context.Context, groupID, userID string) (any, error) {
		return h.ledger.CheckEligibility(ctx, groupID, userID)
	})
}

func (h *LedgerHandler) Snapshot(c echo.Context) error {
	return h.memberQuery(c, func(ctx context.Context, groupID, userID string) (any, error) {
		return h.ledger.MemberSnapshot(ctx, groupID, userID)
	})
}

func (h *LedgerHandler) OutstandingPenalties(c echo.Context) error {
	return h.memberQuery(c, func(ctx context.Context, groupID, userID string) (any, error) {
		total, err := h.ledger.OutstandingPenalties(ctx, groupID, userID)
		if err != nil {
			return nil, err
		}
		return outstandingResp{GroupID: groupID, UserID: userID, OutstandingPenalties: total}, nil
	})
}

func (h *LedgerHandler) GroupTotals(c echo.Context) error {
	if _, r := actorFrom(c); r != nil {
		return r.write(c)
	}
	ids, r := pathIDs(c, "group_id")
	if r != nil {
		return r.write(c)
	}
	t, err := h.ledger.GroupTotals(c.Request().Context(), ids[0])
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *LedgerHandler) LoanSchedule(c echo.Context) error {
	if _, r := actorFrom(c); r != nil {
		return r.write(c)
	}
	ids, r := pathIDs(c, "group_id", "loan_id")
	if r != nil {
		return r.write(c)
	}
	s, err := h.ledger.LoanSchedule(c.Request().Context(), ids[0], ids[1])
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}
