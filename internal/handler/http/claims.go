package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/jwtauth/v5"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/auth"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/request"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/user"
)

// callerFromRequest builds the acting identity from the verified access token.
// company_id and employee_id are null for accounts without them.
func callerFromRequest(r *http.Request) (request.Caller, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return request.Caller{}, auth.ErrInvalidToken
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return request.Caller{}, auth.ErrInvalidToken
	}
	role, _ := claims["role"].(string)
	companyID, _ := claims["company_id"].(string)
	employeeID, _ := claims["employee_id"].(string)

	return request.Caller{
		UserID:     userID,
		CompanyID:  companyID,
		EmployeeID: employeeID,
		Role:       user.Role(role),
	}, nil
}

func queryString(r *http.Request, key string) *string {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	return &v
}

// getIntQueryParam gets an int query parameter with a default value
func getIntQueryParam(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return intVal
}

// getBoolQueryParam gets a bool query parameter with a default value
func getBoolQueryParam(r *http.Request, key string, defaultVal bool) bool {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val == "true" || val == "1"
}
