package handler

import (
	"errors"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-otp-auth/internal/domain"
)

const internalErrorMessage = "Internal server error"

// errorMapping ties a domain sentinel to the status and message one endpoint
// reports for it.
type errorMapping struct {
	target  error
	status  int
	message string
}

var (
	sendOTPErrors = []errorMapping{
		{domain.ErrMissingField, http.StatusBadRequest, "Email is required"},
		{domain.ErrConflict, http.StatusConflict, "User already exists"},
	}
	checkUserErrors = []errorMapping{
		{domain.ErrNotFound, http.StatusBadRequest, "OTP expired or not found"},
		{domain.ErrMismatch, http.StatusBadRequest, "Incorrect OTP"},
	}
	registerErrors = []errorMapping{
		{domain.ErrMissingField, http.StatusBadRequest, "All fields are required."},
		{domain.ErrConflict, http.StatusConflict, "User already exists with this email."},
	}
	loginErrors = []errorMapping{
		{domain.ErrNotFound, http.StatusNotFound, "User does not exist"},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized, "Password does not match"},
	}
	changePasswordErrors = []errorMapping{
		{domain.ErrNotFound, http.StatusNotFound, "User does not exist"},
		{domain.ErrSecurityMismatch, http.StatusBadRequest, "Given details do not match"},
		{domain.ErrMissingField, http.StatusBadRequest, "Password is required"},
	}
	getUserErrors = []errorMapping{
		{domain.ErrNotFound, http.StatusNotFound, "No User Found"},
	}
	listUsersErrors = []errorMapping{
		{domain.ErrNotFound, http.StatusNotFound, "Database is empty"},
	}
	deleteUserErrors = []errorMapping{
		{domain.ErrNotFound, http.StatusNotFound, "User does not exist"},
	}
)

// writeServiceError answers with the first mapping err matches. Anything
// else is logged and reported as a 500 without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, mappings []errorMapping) {
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			writeError(w, m.status, m.message)
			return
		}
	}
	slog.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", chimiddleware.GetReqID(r.Context()),
		"err", err,
	)
	writeError(w, http.StatusInternalServerError, internalErrorMessage)
}
