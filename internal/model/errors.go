package model

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes model-construction errors.
type ErrorCode string

const (
	// ErrCodeAmbiguousBond indicates a bond id not shared by exactly two
	// sites within one complex pattern.
	ErrCodeAmbiguousBond ErrorCode = "AMBIGUOUS_BOND"

	// ErrCodeDomainMismatch indicates a state label outside the site's
	// declared state domain.
	ErrCodeDomainMismatch ErrorCode = "DOMAIN_MISMATCH"

	// ErrCodeUnknownSite indicates a pattern referencing a site the
	// monomer type does not declare.
	ErrCodeUnknownSite ErrorCode = "UNKNOWN_SITE"

	// ErrCodeDuplicateName indicates a monomer, parameter, rule, or
	// observable name declared twice.
	ErrCodeDuplicateName ErrorCode = "DUPLICATE_NAME"

	// ErrCodeNotConcrete indicates a pattern used where a fully resolved
	// species is required (initial conditions).
	ErrCodeNotConcrete ErrorCode = "NOT_CONCRETE"
)

// Error is a structured model-construction error. These are always fatal:
// they are reported at declaration time, before any simulation starts.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Entity names the offending monomer, rule, or parameter.
	Entity string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%s: %s (in %s)", e.Code, e.Message, e.Entity)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCode reports whether err is a model Error with the given code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code ErrorCode) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Code == code
	}
	return false
}

func newError(code ErrorCode, entity, format string, args ...any) *Error {
	return &Error{Code: code, Entity: entity, Message: fmt.Sprintf(format, args...)}
}
