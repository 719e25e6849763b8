package sizing

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyLoadSet is returned when sizing is requested with zero
	// aggregate load. Recoverable: the caller should prompt the user to add
	// at least one load entry.
	ErrEmptyLoadSet = errors.New("no load entries to size")

	// ErrMissingSelection is returned when sizing or cost estimation is
	// requested without a chosen battery, panel, or inverter.
	ErrMissingSelection = errors.New("no component selected")
)

// InvalidConfigurationError reports a configuration parameter that a formula
// requires to be strictly positive (or a bounded ratio that is out of range).
// The engine fails with this instead of dividing into Inf/NaN.
type InvalidConfigurationError struct {
	Field string
	Value float64
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s out of range (got %g)", e.Field, e.Value)
}

func invalidConfig(field string, value float64) error {
	return &InvalidConfigurationError{Field: field, Value: value}
}
