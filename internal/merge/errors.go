package merge

import (
	"errors"
	"fmt"
)

// ParseError reports a source or target that is not a valid container.
// Line is 0 when the file could not be read at all.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s: line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// PreconditionCode categorizes fatal precondition failures.
type PreconditionCode string

const (
	// ErrCodeTargetMissing indicates the target does not exist and
	// CreateTarget was not set.
	ErrCodeTargetMissing PreconditionCode = "TARGET_MISSING"

	// ErrCodeNoSources indicates no source survived resolution and parsing.
	ErrCodeNoSources PreconditionCode = "NO_USABLE_SOURCES"

	// ErrCodeInvalidOptions indicates the options themselves are unusable.
	ErrCodeInvalidOptions PreconditionCode = "INVALID_OPTIONS"
)

// PreconditionError is a fatal failure detected before any write.
type PreconditionError struct {
	Code    PreconditionCode
	Message string
	Path    string
}

func (e *PreconditionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsPrecondition reports whether err is a PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// IsParseError reports whether err is a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
