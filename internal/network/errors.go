package network

import (
	"errors"
	"fmt"
)

// ErrInvalid matches every *ValidationError via errors.Is.
var ErrInvalid = errors.New("invalid network operation")

// Reason classifies a validation failure.
type Reason string

const (
	ReasonFrequencyMismatch Reason = "frequency_mismatch"
	ReasonInvalidFrequency  Reason = "invalid_frequency"
	ReasonEmptyName         Reason = "empty_name"
	ReasonInvalidPosition   Reason = "invalid_position"
	ReasonSameTower         Reason = "same_tower"
	ReasonDuplicateLink     Reason = "duplicate_link"
)

// ValidationError is a rejected command. State is unchanged when one is returned.
type ValidationError struct {
	Reason  Reason
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// Is reports ErrInvalid as a match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

func invalid(reason Reason, format string, args ...any) error {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}
