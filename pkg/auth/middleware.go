package auth

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/chainsafe/canton-token-flows/pkg/app/errors"
	apphttp "github.com/chainsafe/canton-token-flows/pkg/app/http"
)

// Middleware rejects requests without a valid bearer token and stores
// the token subject in the request context.
func Middleware(v *JWTValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			token, found := strings.CutPrefix(raw, "Bearer ")
			if !found {
				token = ""
			}

			claims, err := v.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				logger.Debug("Rejected API request",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "unauthorized"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), claims.Subject)))
		})
	}
}
