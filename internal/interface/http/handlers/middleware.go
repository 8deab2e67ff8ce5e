package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskquest/taskquest-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// TokenAuth checks a bearer token against a bcrypt hash.
type TokenAuth struct {
	hash []byte
}

// NewTokenAuth creates a token authenticator. An empty hash rejects every request.
func NewTokenAuth(hash string) *TokenAuth {
	return &TokenAuth{hash: []byte(hash)}
}

// IsValid reports whether token matches the configured hash.
func (a *TokenAuth) IsValid(token string) bool {
	if len(a.hash) == 0 || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.hash, []byte(token)) == nil
}

// Middleware rejects requests without a valid "Authorization: Bearer" token.
func (a *TokenAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.hash) == 0 {
			writeError(w, http.StatusForbidden, "admin_disabled", "admin token is not configured")
			return
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token", "bearer token is required")
			return
		}
		if !a.IsValid(token) {
			writeError(w, http.StatusUnauthorized, "invalid_token", "invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HashToken returns the bcrypt hash to put into ADMIN_TOKEN_HASH.
func HashToken(token string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"success":false,"error":{"code":"` + code + `","message":"` + message + `"}}` + "\n"))
}

// ══════════════════════════════════════════════════════════════════════════════
// LOGGING MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// StructuredLogger logs every request with the chi request id; 5xx at
// error level, 4xx at warn.
func StructuredLogger(log *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()

			reqLog := log.With(slog.String("request_id", chimiddleware.GetReqID(r.Context())))
			ctx := logger.WithContext(r.Context(), reqLog)

			defer func() {
				level := slog.LevelInfo
				switch {
				case ww.Status() >= 500:
					level = slog.LevelError
				case ww.Status() >= 400:
					level = slog.LevelWarn
				}
				reqLog.LogAttrs(context.WithoutCancel(ctx), level, "http request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Int("bytes_out", ww.BytesWritten()),
					logger.Latency(time.Since(started)),
				)
			}()

			next.ServeHTTP(ww, r.WithContext(ctx))
		})
	}
}
