package middleware

import (
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/auth"
	"github.com/sobat-hris/sobat-backend-go/internal/handler/http/response"
)

// AuthRequired lets through only verified access tokens. Refresh and SSE
// tokens are signed with the same key and must be turned away here.
func AuthRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			response.Unauthorized(w, err.Error())
			return
		}

		if token == nil {
			response.HandleError(w, auth.ErrInvalidToken)
			return
		}

		tokenType, ok := claims["type"].(string)
		if !ok || tokenType != "access" {
			response.HandleError(w, auth.ErrInvalidToken)
			return
		}
		if userID, ok := claims["user_id"].(string); !ok || userID == "" {
			response.HandleError(w, auth.ErrInvalidToken)
			return
		}

		next.ServeHTTP(w, r)
	})
}
