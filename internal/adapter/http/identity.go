package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"village-banking/internal/domain/member"
)

const (
	HeaderUserID = "Ax-User-Id"
	HeaderRole   = "Ax-Role"
)

// refusal is a response decided before any ledger call.
type refusal struct {
	status int
	body   ErrorResponse
}

func (r *refusal) write(c echo.Context) error { return c.JSON(r.status, r.body) }

// actorFrom reads the caller identity set by the upstream identity provider.
func actorFrom(c echo.Context) (member.Actor, *refusal) {
	a := member.Actor{
		UserID: strings.TrimSpace(c.Request().Header.Get(HeaderUserID)),
		Role:   member.Role(strings.ToUpper(strings.TrimSpace(c.Request().Header.Get(HeaderRole)))),
	}
	if a.UserID == "" {
		return a, &refusal{http.StatusUnauthorized, ErrorResponse{Error: "missing " + HeaderUserID, Code: "UNAUTHENTICATED"}}
	}
	if !reIdent.MatchString(a.UserID) {
		return a, &refusal{http.StatusBadRequest, ErrorResponse{Error: "invalid " + HeaderUserID}}
	}
	if a.Role == "" {
		a.Role = member.RoleMember
	}
	if !a.Role.Valid() {
		return a, &refusal{http.StatusBadRequest, ErrorResponse{Error: "invalid " + HeaderRole}}
	}
	return a, nil
}

// selfOrManager lets members act on their own account and managers on anyone's.
func selfOrManager(a member.Actor, userID string) *refusal {
	if a.UserID == userID || a.Role.IsManager() {
		return nil
	}
	return &refusal{http.StatusForbidden, ErrorResponse{Error: "members may only act on their own account", Code: "FORBIDDEN"}}
}

// pathIDs reads and checks the named path params.
func pathIDs(c echo.Context, names ...string) ([]string, *refusal) {
	out := make([]string, len(names))
	for i, n := range names {
		v := c.Param(n)
		if !reIdent.MatchString(v) {
			return nil, &refusal{http.StatusBadRequest, ErrorResponse{Error: "invalid " + n + " path param"}}
		}
		out[i] = v
	}
	return out, nil
}
