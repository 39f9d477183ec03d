package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/odyssey-provision/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-provision/internal/shared"
)

const bearerPrefix = "bearer "

// Middleware attaches the bearer token's principal to the request context.
// Requests without an Authorization header pass through anonymously; the
// operations decide whether a caller is required.
func Middleware(tokens *TokenService, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			raw, err := extractBearerToken(header)
			if err != nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
				return
			}
			principal, err := tokens.Verify(raw)
			if err != nil {
				if !errors.Is(err, shared.ErrInvalidToken) && !errors.Is(err, shared.ErrMissingToken) {
					logger.Error("verify token", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", shared.ErrInvalidToken.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

func extractBearerToken(header string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(header), bearerPrefix) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", shared.ErrMissingToken
	}
	return token, nil
}
