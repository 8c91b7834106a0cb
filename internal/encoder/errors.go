package encoder

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyAddressList   = errors.New("address list is empty")
	ErrDuplicateKind      = errors.New("kind declared more than once")
	ErrUnknownKind        = errors.New("unknown kind")
	ErrInvalidRecipient   = errors.New("recipient is not a valid address")
	ErrInvalidLimits      = errors.New("invalid deposit limits")
	ErrInvalidWaterMark   = errors.New("high-water mark must be positive")
	ErrDenominationAsset  = errors.New("denomination asset lookup failed")
	ErrModuleUnresolvable = errors.New("module address lookup failed")
)

// ConfigurationError reports a draft that cannot be encoded. Encoding is all-or-nothing,
// so when this is returned no blob was produced.
type ConfigurationError struct {
	// Field names the offending draft entry, e.g. "fees.performance.rate".
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid fund configuration: %v", e.Err)
	}
	return fmt.Sprintf("invalid fund configuration: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func configErr(field string, err error) error {
	return &ConfigurationError{Field: field, Err: err}
}
