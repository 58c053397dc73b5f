package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"iamcore/internal/domain"
)

// API error codes. Clients switch on these, not on messages.
const (
	CodeNoSuchEntity        = "NoSuchEntity"
	CodeEntityAlreadyExists = "EntityAlreadyExists"
	CodeDeleteConflict      = "DeleteConflict"
	CodeLimitExceeded       = "LimitExceeded"
	CodeMalformedPolicy     = "MalformedPolicyDocument"
	CodeValidationError     = "ValidationError"
	CodeAccessDenied        = "AccessDenied"
	CodeInvalidClientToken  = "InvalidClientTokenId"
	CodeExpiredToken        = "ExpiredToken"
	CodeServiceFailure      = "ServiceFailure"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classify maps a domain error to its HTTP status and API code.
func classify(err error) (int, string) {
	var notFound *domain.NotFoundError
	var conflict *domain.ConflictError
	var validation *domain.ValidationError
	var limit *domain.LimitExceededError
	var denied *domain.AccessDeniedError
	var token *domain.TokenError

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, CodeNoSuchEntity
	case errors.As(err, &conflict):
		if conflict.InUse {
			return http.StatusConflict, CodeDeleteConflict
		}
		return http.StatusConflict, CodeEntityAlreadyExists
	case errors.As(err, &limit):
		return http.StatusConflict, CodeLimitExceeded
	case errors.As(err, &validation):
		if validation.Malformed {
			return http.StatusBadRequest, CodeMalformedPolicy
		}
		return http.StatusBadRequest, CodeValidationError
	case errors.As(err, &denied):
		return http.StatusForbidden, CodeAccessDenied
	case errors.As(err, &token):
		if token.Expired {
			return http.StatusForbidden, CodeExpiredToken
		}
		return http.StatusForbidden, CodeInvalidClientToken
	default:
		return http.StatusInternalServerError, CodeServiceFailure
	}
}

// WriteError renders a domain error as the API error body. Backend failures
// are reported without their internal detail.
func WriteError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal service failure"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Code: code, Message: message}})
}
