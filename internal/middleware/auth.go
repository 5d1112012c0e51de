package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	apperrors "github.com/Vast-Academy/account-android-app-backend/internal/errors"
	"github.com/Vast-Academy/account-android-app-backend/internal/metrics"
	"github.com/Vast-Academy/account-android-app-backend/internal/tracing"
	"github.com/Vast-Academy/account-android-app-backend/pkg/identity"
)

type contextKey string

const accountIDKey contextKey = "account_id"

// AccountID returns the authenticated account ID stashed by BearerAuth.
func AccountID(ctx context.Context) string {
	if id, ok := ctx.Value(accountIDKey).(string); ok {
		return id
	}
	return ""
}

// WithAccountID is used by handler tests to simulate an authenticated request.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountIDKey, accountID)
}

// BearerAuth verifies the Authorization bearer token against the identity
// provider and stashes the resolved account ID in the request context.
func BearerAuth(verifier identity.Verifier, logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w, r, "missing bearer token")
				return
			}

			accountID, err := verifier.Verify(r.Context(), token)
			if err != nil {
				metrics.IncrementCounter("auth_failures_total", nil, "Bearer token verifications that failed")
				logger.WithError(err).WithField("path", r.URL.Path).Warn("Token verification failed")
				unauthorized(w, r, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), accountIDKey, accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func unauthorized(w http.ResponseWriter, r *http.Request, reason string) {
	resp := apperrors.ToHTTPResponse(apperrors.NewAuthError(reason), tracing.RequestID(r.Context()))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(resp)
}
