package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials      = "INVALID_CREDENTIALS"
	TextCodeAlreadyExists           = "ALREADY_EXISTS"
	TextCodeNotApproved             = "SUPPLIER_NOT_APPROVED"
	TextCodeInvalidOrExpiredCode    = "INVALID_OR_EXPIRED_CODE"
	TextCodeDuplicatePendingRequest = "DUPLICATE_PENDING_REQUEST"
	TextCodeNotFound                = "NOT_FOUND"
	TextCodeUnauthorized            = "UNAUTHORIZED"
	TextCodeInvalidTransition       = "INVALID_SUPPLIER_STATE_TRANSITION"
	TextCodeOrphanedToken           = "ORPHANED_TOKEN"
	TextCodeTokenExpired            = "TOKEN_EXPIRED"
	TextCodeTokenMalformed          = "TOKEN_MALFORMED"
	TextCodeMissingSigningKey       = "MISSING_SIGNING_KEY"
	TextCodeInvalidMonths           = "INVALID_MONTHS"
	TextCodeConcurrentUpdate        = "CONCURRENT_UPDATE"
	TextCodeEmptyString             = "EMPTY_STRING"
)

// ErrInvalidCredentials is returned for unknown accounts, federated-only
// accounts, and secret mismatches alike.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrAlreadyExists is returned when an actor of the same role already uses the email
var ErrAlreadyExists = goerrors.New("account already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeAlreadyExists).
	WithCode(goerrors.CodeConflict)

// ErrNotApproved is returned when a supplier with a correct secret is not approved
var ErrNotApproved = goerrors.New("supplier account is not approved", goerrors.CategoryAuthz).
	WithTextCode(TextCodeNotApproved).
	WithCode(goerrors.CodeForbidden)

// ErrInvalidOrExpiredCode is returned for wrong, consumed, or expired one-time codes
var ErrInvalidOrExpiredCode = goerrors.New("invalid or expired code", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidOrExpiredCode).
	WithCode(goerrors.CodeBadRequest)

// ErrDuplicatePendingRequest is returned when a supplier already has an open extension request
var ErrDuplicatePendingRequest = goerrors.New("a pending extension request already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicatePendingRequest).
	WithCode(goerrors.CodeConflict)

// ErrNotFound is returned when a referenced record does not exist
var ErrNotFound = goerrors.New("record not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrUnauthorized is returned when no valid credential resolved
var ErrUnauthorized = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidTransition is returned when a requested status change is not allowed
var ErrInvalidTransition = goerrors.New("invalid supplier state transition", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrOrphanedToken is returned when a token verifies but its actor is gone
var ErrOrphanedToken = goerrors.New("token references a missing actor", goerrors.CategoryAuth).
	WithTextCode(TextCodeOrphanedToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for tokens past their expiry
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for unparsable or foreign tokens
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrMissingSigningKey is returned when no signing key is configured
var ErrMissingSigningKey = goerrors.New("signing key is required", goerrors.CategoryInternal).
	WithTextCode(TextCodeMissingSigningKey).
	WithCode(goerrors.CodeInternal)

// ErrInvalidMonths is returned for month counts outside the allowed range
var ErrInvalidMonths = goerrors.New("months out of range", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidMonths).
	WithCode(goerrors.CodeBadRequest)

// ErrConcurrentUpdate is returned when a record kept changing under a write
var ErrConcurrentUpdate = goerrors.New("record was modified concurrently", goerrors.CategoryConflict).
	WithTextCode(TextCodeConcurrentUpdate).
	WithCode(goerrors.CodeConflict)

// ErrNoEmptyString is returned when hashing an empty secret
var ErrNoEmptyString = goerrors.New("secret must not be empty", goerrors.CategoryBadInput).
	WithTextCode(TextCodeEmptyString).
	WithCode(goerrors.CodeBadRequest)

// HasTextCode reports whether err, or any error it wraps, is a go-errors
// error carrying the given text code.
func HasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	for richErr != nil {
		if richErr.TextCode == code {
			return true
		}
		var next *goerrors.Error
		if !goerrors.As(richErr.Unwrap(), &next) {
			return false
		}
		richErr = next
	}
	return false
}

// withMeta returns a copy of the sentinel carrying metadata
func withMeta(sentinel *goerrors.Error, meta map[string]any) *goerrors.Error {
	return sentinel.Clone().WithMetadata(meta)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if HasTextCode(err, TextCodeTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for malformed tokens
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if HasTextCode(err, TextCodeTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed")
}
