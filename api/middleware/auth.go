package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/andresvelez/shortreel-backend/api/responses"
	pkgAuth "github.com/andresvelez/shortreel-backend/pkg/auth"
	"github.com/andresvelez/shortreel-backend/pkg/config"
	pkgerrors "github.com/andresvelez/shortreel-backend/pkg/errors"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
)

type contextKey string

const ctxOperator contextKey = "operator"

// OperatorFromContext returns the authenticated operator subject, if any.
func OperatorFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(ctxOperator).(string)
	return subject
}

// AdminAuth validates an operator bearer token and seeds the request context
// with the operator subject.
func AdminAuth(cfg config.AdminConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAdminToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxOperator, claims.Subject)
			if logg != nil {
				ctx = logg.WithField(ctx, "operator", claims.Subject)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
