package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

const (
	HeaderRequestID = "Ax-Request-Id"
	HeaderRequestAt = "Ax-Request-At"
	HeaderUserID    = "Ax-User-Id"
	// HeaderReplayed marks a response served from the idempotency store.
	HeaderReplayed = "Ax-Idempotent-Replay"
)

type IdempotencyConfig struct {
	// TTL is how long a finished response is replayed.
	TTL time.Duration
	// InProgressTTL bounds how long a crashed request blocks its key.
	InProgressTTL time.Duration
	// MaxClockSkew is the allowed distance between Ax-Request-At and now.
	MaxClockSkew time.Duration
}

func (c IdempotencyConfig) withDefaults() IdempotencyConfig {
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
	if c.InProgressTTL <= 0 {
		c.InProgressTTL = 60 * time.Second
	}
	if c.MaxClockSkew <= 0 {
		c.MaxClockSkew = 10 * time.Minute
	}
	return c
}

// ---- Data types ----
type idempEntry struct {
	InProgress  bool      `json:"in_progress"`
	Code        int       `json:"code"`
	Body        []byte    `json:"body"`
	BodySHA256  string    `json:"body_sha256"`
	RequestID   string    `json:"request_id"`
	RequestAtMS int64     `json:"request_at_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

type respRecorder struct {
	w    http.ResponseWriter
	buf  *bytes.Buffer
	code int
}

func (r *respRecorder) Header() http.Header { return r.w.Header() }
func (r *respRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.w.Write(b)
}
func (r *respRecorder) WriteHeader(statusCode int) { r.code = statusCode; r.w.WriteHeader(statusCode) }

func fail(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, map[string]string{"error": msg, "code": code})
}

// Idempotency replays the stored response for a repeated
// (method, path, Ax-User-Id, Ax-Request-Id). Server errors are not stored,
// so the client may retry them under the same id.
func Idempotency(rdb redis.UniversalClient, cfg IdempotencyConfig) echo.MiddlewareFunc {
	cfg = cfg.withDefaults()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			method := req.Method

			switch method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			reqID := strings.TrimSpace(req.Header.Get(HeaderRequestID))
			if reqID == "" {
				return fail(c, http.StatusBadRequest, "IDEMPOTENCY_HEADER", "missing "+HeaderRequestID)
			}
			if !validReqID(reqID) {
				return fail(c, http.StatusBadRequest, "IDEMPOTENCY_HEADER", "invalid "+HeaderRequestID+" format")
			}

			reqAt, err := parseAxRequestAt(req.Header.Get(HeaderRequestAt))
			if err != nil {
				return fail(c, http.StatusBadRequest, "IDEMPOTENCY_HEADER", err.Error())
			}
			now := nowUTC()
			if reqAt.Before(now.Add(-cfg.MaxClockSkew)) || reqAt.After(now.Add(cfg.MaxClockSkew)) {
				return fail(c, http.StatusBadRequest, "IDEMPOTENCY_HEADER", HeaderRequestAt+" too skewed")
			}

			// Identity is checked again by the handlers; here it only scopes the key.
			userID := strings.TrimSpace(req.Header.Get(HeaderUserID))
			if userID == "" {
				return fail(c, http.StatusUnauthorized, "UNAUTHENTICATED", "missing "+HeaderUserID)
			}
			if !reIdent.MatchString(userID) {
				return fail(c, http.StatusBadRequest, "IDEMPOTENCY_HEADER", "invalid "+HeaderUserID)
			}

			var body []byte
			if req.Body != nil {
				if body, err = io.ReadAll(req.Body); err != nil {
					return fail(c, http.StatusBadRequest, "", "unreadable body")
				}
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
			bhash := bodyHash(body)

			key := buildKey(method, req.URL.Path, userID, reqID)
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()

			entry := idempEntry{
				InProgress:  true,
				BodySHA256:  bhash,
				RequestID:   reqID,
				RequestAtMS: reqAt.UnixMilli(),
				CreatedAt:   now,
			}
			ok, err := provisionalSet(ctx, rdb, key, entry, cfg.InProgressTTL)
			if err != nil {
				log.Printf("idempotency: reserve %s: %v", key, err)
				return fail(c, http.StatusServiceUnavailable, "IDEMPOTENCY_STORE", "idempotency store unavailable")
			}
			if !ok {
				cur, err := loadEntry(ctx, rdb, key)
				switch {
				case errors.Is(err, redis.Nil):
					return fail(c, http.StatusConflict, "IDEMPOTENCY_IN_PROGRESS", "request is already in progress")
				case err != nil:
					log.Printf("idempotency: load %s: %v", key, err)
					return fail(c, http.StatusServiceUnavailable, "IDEMPOTENCY_STORE", "idempotency store unavailable")
				}
				if cur.BodySHA256 != bhash {
					return fail(c, http.StatusConflict, "IDEMPOTENCY_KEY_REUSED", HeaderRequestID+" reused with different body")
				}
				if !cur.InProgress && cur.Code != 0 {
					c.Response().Header().Set(HeaderReplayed, "true")
					return c.Blob(cur.Code, echo.MIMEApplicationJSON, cur.Body)
				}
				return fail(c, http.StatusConflict, "IDEMPOTENCY_IN_PROGRESS", "request is already in progress")
			}

			rec := &respRecorder{w: c.Response().Writer, buf: &bytes.Buffer{}, code: http.StatusOK}
			c.Response().Writer = rec
			if err := next(c); err != nil {
				c.Error(err)
			}

			store, cancelStore := context.WithTimeout(context.WithoutCancel(req.Context()), 2*time.Second)
			defer cancelStore()
			if rec.code >= http.StatusInternalServerError {
				if err := rdb.Del(store, key).Err(); err != nil {
					log.Printf("idempotency: release %s: %v", key, err)
				}
				return nil
			}
			final := idempEntry{
				Code:        rec.code,
				Body:        rec.buf.Bytes(),
				BodySHA256:  bhash,
				RequestID:   reqID,
				RequestAtMS: reqAt.UnixMilli(),
				CreatedAt:   nowUTC(),
			}
			if err := saveFinal(store, rdb, key, final, cfg.TTL); err != nil {
				log.Printf("idempotency: store %s: %v", key, err)
			}
			return nil
		}
	}
}
