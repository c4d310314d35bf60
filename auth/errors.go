package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

const (
	TextCodeInvalidCreds     = "INVALID_CREDENTIALS"
	TextCodeUnauthenticated  = "UNAUTHENTICATED"
	TextCodeAccountInactive  = "ACCOUNT_INACTIVE"
	TextCodeForbidden        = "FORBIDDEN"
	TextCodeNotFound         = "NOT_FOUND"
	TextCodeTokenMalformed   = "TOKEN_MALFORMED"
	TextCodeTokenExpired     = "TOKEN_EXPIRED"
	TextCodePasswordMismatch = "PASSWORD_MISMATCH"
	TextCodeEmptyPassword    = "EMPTY_PASSWORD"
	TextCodeConflict         = "CONFLICT"
	TextCodeValidation       = "VALIDATION_FAILED"
	TextCodeInternal         = "INTERNAL_ERROR"
)

var (
	// ErrInvalidCredentials is the single outcome of any failed login lookup or password check
	ErrInvalidCredentials = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
				WithTextCode(TextCodeInvalidCreds).
				WithCode(goerrors.CodeUnauthorized)

	// ErrUnauthenticated covers missing, invalid or expired tokens and tokens of deleted accounts
	ErrUnauthenticated = goerrors.New("could not validate credentials", goerrors.CategoryAuth).
				WithTextCode(TextCodeUnauthenticated).
				WithCode(goerrors.CodeUnauthorized)

	ErrAccountInactive = goerrors.New("account is inactive", goerrors.CategoryAuthz).
				WithTextCode(TextCodeAccountInactive).
				WithCode(goerrors.CodeForbidden)

	ErrForbidden = goerrors.New("not enough permissions", goerrors.CategoryAuthz).
			WithTextCode(TextCodeForbidden).
			WithCode(goerrors.CodeForbidden)

	ErrNotFound = goerrors.New("resource not found", goerrors.CategoryNotFound).
			WithTextCode(TextCodeNotFound).
			WithCode(goerrors.CodeNotFound)

	ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
				WithTextCode(TextCodeTokenMalformed).
				WithCode(goerrors.CodeUnauthorized)

	ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
			WithTextCode(TextCodeTokenExpired).
			WithCode(goerrors.CodeUnauthorized)

	ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
					WithTextCode(TextCodePasswordMismatch).
					WithCode(goerrors.CodeUnauthorized)

	ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
				WithTextCode(TextCodeEmptyPassword).
				WithCode(goerrors.CodeBadRequest)

	ErrConflict = goerrors.New("resource already exists", goerrors.CategoryConflict).
			WithTextCode(TextCodeConflict).
			WithCode(goerrors.CodeConflict)

	ErrValidation = goerrors.New("invalid input", goerrors.CategoryValidation).
			WithTextCode(TextCodeValidation).
			WithCode(http.StatusUnprocessableEntity)

	ErrInternal = goerrors.New("internal error", goerrors.CategoryInternal).
			WithTextCode(TextCodeInternal).
			WithCode(goerrors.CodeInternal)
)

// Derive returns a copy of base that wraps it, so errors.Is still matches
// the sentinel and the sentinel itself is never mutated by WithMetadata.
func Derive(base *goerrors.Error) *goerrors.Error {
	c := base.Clone()
	c.Source = base
	c.Timestamp = time.Now()
	return c
}

// Derivef is Derive with a custom message
func Derivef(base *goerrors.Error, format string, args ...any) *goerrors.Error {
	c := Derive(base)
	c.Message = fmt.Sprintf(format, args...)
	return c
}

// WithCause derives from base and also wraps cause
func WithCause(base *goerrors.Error, cause error) *goerrors.Error {
	c := Derive(base)
	if cause != nil {
		c.Source = errors.Join(base, cause)
	}
	return c
}

// NotFound returns ErrNotFound with a resource specific message
func NotFound(resource string) *goerrors.Error {
	return Derivef(ErrNotFound, "%s not found", resource)
}

// Conflict returns ErrConflict with a custom message
func Conflict(format string, args ...any) *goerrors.Error {
	return Derivef(ErrConflict, format, args...)
}

// Internal wraps an unexpected error
func Internal(err error, message string) *goerrors.Error {
	return WithCause(Derivef(ErrInternal, "%s", message), err)
}

// IsRecordNotFound reports whether err comes from a lookup with no rows
func IsRecordNotFound(err error) bool {
	if err == nil {
		return false
	}
	return repository.IsRecordNotFound(err) ||
		errors.Is(err, sql.ErrNoRows) ||
		goerrors.HasCategory(err, goerrors.CategoryNotFound)
}

// IsUniqueViolation checks driver errors for unique constraint failures.
// SQLite and Postgres report them differently, so this matches on text.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}
