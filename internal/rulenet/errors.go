package rulenet

import (
	"errors"
	"fmt"
)

// ExpandErrorCode categorizes network-expansion errors.
type ExpandErrorCode string

const (
	// ErrCodeNetworkUnbounded indicates expansion exceeded the species or
	// round cap without reaching a fixed point.
	ErrCodeNetworkUnbounded ExpandErrorCode = "NETWORK_UNBOUNDED"

	// ErrCodeBadProduct indicates a rule whose product side cannot be made
	// concrete for some matched reactant (a synthesized monomer missing a
	// state, or a product bond that cannot resolve).
	ErrCodeBadProduct ExpandErrorCode = "BAD_PRODUCT"
)

// ExpandError is a structured, fatal expansion error. Expansion errors are
// reported before any simulation starts; the calibration engine treats
// them as aborting the whole run.
type ExpandError struct {
	Code    ExpandErrorCode
	Rule    string
	Message string
}

// Error implements the error interface.
func (e *ExpandError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("%s: %s (rule %s)", e.Code, e.Message, e.Rule)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnbounded reports whether err is a NETWORK_UNBOUNDED expansion error.
// Uses errors.As to handle wrapped errors.
func IsUnbounded(err error) bool {
	var ee *ExpandError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeNetworkUnbounded
	}
	return false
}

func newExpandError(code ExpandErrorCode, rule, format string, args ...any) *ExpandError {
	return &ExpandError{Code: code, Rule: rule, Message: fmt.Sprintf(format, args...)}
}
