// Package domain defines core types, interfaces, and errors for the IAM service.
package domain

import (
	"errors"
	"fmt"
)

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// AccessDeniedError indicates the policy evaluator returned a Deny verdict
// or the caller could not be authenticated.
type AccessDeniedError struct {
	Message string
}

func (e *AccessDeniedError) Error() string { return e.Message }

// ValidationError indicates invalid input (malformed name, path, or policy document).
// Malformed marks policy-document syntax failures, which the API reports
// under a dedicated code.
type ValidationError struct {
	Message   string
	Malformed bool
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (duplicate name, version limit reached,
// illegal default-version deletion). InUse marks deletes refused because
// dependent resources still reference the entity.
type ConflictError struct {
	Message string
	InUse   bool
}

func (e *ConflictError) Error() string { return e.Message }

// LimitExceededError indicates a quota check failed. Not retryable.
type LimitExceededError struct {
	Message string
}

func (e *LimitExceededError) Error() string { return e.Message }

// TokenError indicates a session token could not be validated.
// Expired distinguishes a well-formed but stale token from garbage.
type TokenError struct {
	Message string
	Expired bool
}

func (e *TokenError) Error() string { return e.Message }

// StorageError indicates a backend failure unrelated to the request's semantics.
type StorageError struct {
	Message string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *StorageError) Unwrap() error { return e.Err }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrAccessDenied creates an AccessDeniedError with a formatted message.
func ErrAccessDenied(format string, args ...interface{}) *AccessDeniedError {
	return &AccessDeniedError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrMalformedPolicy creates a ValidationError for a policy document that
// failed syntax or grammar validation.
func ErrMalformedPolicy(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...), Malformed: true}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrDeleteConflict creates a ConflictError for a delete refused while
// dependent resources still exist.
func ErrDeleteConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...), InUse: true}
}

// ErrLimitExceeded creates a LimitExceededError with a formatted message.
func ErrLimitExceeded(format string, args ...interface{}) *LimitExceededError {
	return &LimitExceededError{Message: fmt.Sprintf(format, args...)}
}

// ErrTokenInvalid creates a TokenError for a token that failed parsing or decryption.
func ErrTokenInvalid(format string, args ...interface{}) *TokenError {
	return &TokenError{Message: fmt.Sprintf(format, args...)}
}

// ErrTokenExpired creates a TokenError for a well-formed token past its expiration.
func ErrTokenExpired(format string, args ...interface{}) *TokenError {
	return &TokenError{Message: fmt.Sprintf(format, args...), Expired: true}
}

// ErrStorage wraps a backend error with context.
func ErrStorage(err error, format string, args ...interface{}) *StorageError {
	return &StorageError{Message: fmt.Sprintf(format, args...), Err: err}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
