package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"village-banking/internal/domain/errs"
)

type errorKind struct {
	kind   error
	status int
	code   string
}

// Order matters: refinements first so the narrower code wins.
var errorKinds = []errorKind{
	{errs.ErrInvalidAmount, http.StatusUnprocessableEntity, "INVALID_AMOUNT"},
	{errs.ErrInvalidPeriod, http.StatusUnprocessableEntity, "INVALID_PERIOD"},
	{errs.ErrLoanNotActive, http.StatusConflict, "LOAN_NOT_ACTIVE"},
	{errs.ErrValidation, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	{errs.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
	{errs.ErrNotEligible, http.StatusUnprocessableEntity, "NOT_ELIGIBLE"},
	{errs.ErrAmountExceedsLimit, http.StatusUnprocessableEntity, "AMOUNT_EXCEEDS_LIMIT"},
	{errs.ErrInvalidMember, http.StatusUnprocessableEntity, "INVALID_MEMBER"},
	{errs.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{errs.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{errs.ErrConcurrencyConflict, http.StatusConflict, "CONCURRENCY_CONFLICT"},
	{errs.ErrPersistence, http.StatusServiceUnavailable, "PERSISTENCE_FAILURE"},
}

// writeError maps a ledger error onto a status and a stable code.
func writeError(c echo.Context, err error) error {
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			msg := errs.Reason(err)
			if k.status >= http.StatusInternalServerError {
				log.Printf("http: %s %s: %v", c.Request().Method, c.Path(), err)
				msg = "ledger store unavailable, retry later"
			}
			return c.JSON(k.status, ErrorResponse{Error: msg, Code: k.code})
		}
	}
	log.Printf("http: %s %s: unclassified error: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "INTERNAL"})
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
}

func validationFailed(c echo.Context, err error) error {
	return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "validation failed",
		Code:    "VALIDATION_ERROR",
		Details: ToFieldErrors(err),
	})
}
