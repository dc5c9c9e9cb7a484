package core

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrInputValidation   = errors.New("input validation failed")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrOutOfRange        = errors.New("period out of range")
)

// InputValidationError reports a malformed argument. It is never retried.
type InputValidationError struct {
	Field  string
	Reason string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InputValidationError) Is(target error) bool { return target == ErrInputValidation }

// SourceUnavailableError reports a failed collaborator fetch.
type SourceUnavailableError struct {
	Source string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("source %s unavailable", e.Source)
	}
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

func (e *SourceUnavailableError) Is(target error) bool { return target == ErrSourceUnavailable }

// OutOfRangeError reports a drill-down period outside the supported window.
type OutOfRangeError struct {
	Month  int
	Year   int
	Reason string
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("period %02d/%d out of range: %s", e.Month, e.Year, e.Reason)
}

func (e *OutOfRangeError) Is(target error) bool { return target == ErrOutOfRange }
