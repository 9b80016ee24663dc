package middleware

import (
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/auth"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
)

// RequireCompany rejects tokens that are not bound to a company. Every
// admin resource is scoped to the caller's company.
func RequireCompany(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || claims.CompanyID == "" {
			response.HandleError(w, auth.ErrCompanyScope)
			return
		}

		next.ServeHTTP(w, r)
	})
}
