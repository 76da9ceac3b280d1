package protocol

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validator is a type able to validate itself. Validate inspects the type for
// syntactic or semantic issues, and returns a descriptive error if any
// violations are encountered. It is recommended that Validate return instances
// of ValidationError where possible, which enables tracking nested contexts.
type Validator interface {
	Validate() error
}

// ValidationError is an error implementation which captures its validation context.
type ValidationError struct {
	Context []string
	Err     error
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	if len(ve.Context) != 0 {
		return strings.Join(ve.Context, ".") + ": " + ve.Err.Error()
	} else {
		return ve.Err.Error()
	}
}

// Unwrap returns the underlying cause of the ValidationError.
func (ve *ValidationError) Unwrap() error { return ve.Err }

// ExtendContext type-checks |err| to a *ValidationError, and if matched extends
// it with |context|. In all cases the value of |err| is returned.
func ExtendContext(err error, format string, args ...interface{}) error {
	if ve, ok := err.(*ValidationError); ok {
		ve.Context = append([]string{fmt.Sprintf(format, args...)}, ve.Context...)
	}
	return err
}

// NewValidationError parallels fmt.Errorf to returns a new ValidationError instance.
func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Err: fmt.Errorf(format, args...)}
}

// ValidateName ensures the string is of length [min, max] bytes, is valid
// UTF-8, and has no control or whitespace runes. Names are things like
// streams, super streams, and offset tracking references.
func ValidateName(n string, min, max int) error {
	if l := len(n); l < min || l > max {
		return NewValidationError("invalid length (%d; expected %d <= length <= %d)", l, min, max)
	} else if !utf8.ValidString(n) {
		return NewValidationError("not valid UTF-8 (%q)", n)
	}
	for _, r := range n {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return NewValidationError("not a valid name (%q)", n)
		}
	}
	return nil
}

// ValidateReference ensures an offset tracking or publisher reference is
// non-empty and within the broker's length limit.
func ValidateReference(ref string) error {
	return ValidateName(ref, 1, MaxReferenceLen)
}

const (
	// MaxStreamNameLen is the longest stream name accepted by brokers.
	MaxStreamNameLen = 255
	// MaxReferenceLen is the longest producer or consumer reference accepted by brokers.
	MaxReferenceLen = 256
)
