// Package ledgererrors defines the program error taxonomy. Every failed
// transition maps to exactly one code so callers can act on the failure
// without parsing messages.
package ledgererrors

import (
	"errors"
	"net/http"
)

// Code identifies why a transition was refused.
type Code string

const (
	// CodeUnauthorized: signer does not hold the required role or ownership.
	CodeUnauthorized Code = "unauthorized"
	// CodeAddressAlreadyInUse: a record already exists at the derived address
	// (duplicate natural key).
	CodeAddressAlreadyInUse Code = "address_already_in_use"
	// CodeAddressMismatch: re-derivation of the claimed natural key did not
	// produce the supplied address. Treated as a forged-account attempt.
	CodeAddressMismatch Code = "address_mismatch"
	// CodeInvalidVin, CodeInvalidPrice, CodeInvalidInput: field validation.
	CodeInvalidVin    Code = "invalid_vin"
	CodeInvalidPrice  Code = "invalid_price"
	CodeInvalidInput  Code = "invalid_input"
	// CodeAlreadyFinalized: state-machine precondition violated; the record
	// already left the state the transition requires.
	CodeAlreadyFinalized Code = "already_finalized"
	// CodeCarNotForSale: buy request against a car that is not listed.
	CodeCarNotForSale Code = "car_not_for_sale"
	// CodeNotFound: referenced record does not exist.
	CodeNotFound Code = "not_found"
	// CodeInternal: infrastructure failure, not a protocol outcome.
	CodeInternal Code = "internal"
)

// LedgerError carries a taxonomy code plus a human-readable message.
type LedgerError struct {
	Code    Code
	Message string
	wrapped error
}

// New builds a LedgerError with the given code and message.
func New(code Code, message string) *LedgerError {
	return &LedgerError{Code: code, Message: message}
}

// Wrap attaches an underlying cause while keeping the taxonomy code.
func Wrap(code Code, message string, err error) *LedgerError {
	return &LedgerError{Code: code, Message: message, wrapped: err}
}

func (e *LedgerError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

func (e *LedgerError) Unwrap() error { return e.wrapped }

// Is matches two LedgerErrors by code, so tests and handlers can use
// errors.Is(err, ledgererrors.New(CodeUnauthorized, "")).
func (e *LedgerError) Is(target error) bool {
	var other *LedgerError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// CodeOf extracts the taxonomy code, defaulting to CodeInternal for errors
// that did not originate in the state machine.
func CodeOf(err error) Code {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given taxonomy code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// ToHTTPStatus maps taxonomy codes onto the RPC surface.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeAddressAlreadyInUse, CodeAlreadyFinalized:
		return http.StatusConflict
	case CodeAddressMismatch, CodeInvalidVin, CodeInvalidPrice, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeCarNotForSale:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
