package blockpatch

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a patch could not be applied.
type ErrorKind string

const (
	// KindNotFound indicates the target file does not exist or cannot be read.
	KindNotFound ErrorKind = "not_found"

	// KindStructural indicates the target block opening was never matched,
	// or the block has a shape the patcher cannot safely rewrite.
	KindStructural ErrorKind = "structural"

	// KindMalformedNesting indicates the target block opens but its brace
	// depth never falls back below the opening depth before end of file.
	KindMalformedNesting ErrorKind = "malformed_nesting"

	// KindIO indicates the document is too large to load, or the rewritten
	// document could not be persisted.
	KindIO ErrorKind = "io"

	// KindInvalid indicates the directive definition itself is unusable.
	KindInvalid ErrorKind = "invalid"
)

// PatchError is a classified patch failure with context.
type PatchError struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Path is the file being patched, if known.
	Path string `json:"path,omitempty"`

	// Block is the target block name, if applicable.
	Block string `json:"block,omitempty"`

	// Line is the 1-based line number the error refers to, or 0.
	Line int `json:"line,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *PatchError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Path != "" {
		msg += fmt.Sprintf(" (path=%s", e.Path)
		if e.Line > 0 {
			msg += fmt.Sprintf(", line=%d", e.Line)
		}
		msg += ")"
	} else if e.Line > 0 {
		msg += fmt.Sprintf(" (line=%d)", e.Line)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *PatchError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a PatchError of the same kind.
func (e *PatchError) Is(target error) bool {
	t, ok := target.(*PatchError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithPath adds the file path to the error.
func (e *PatchError) WithPath(path string) *PatchError {
	e.Path = path
	return e
}

// WithBlock adds the block name to the error.
func (e *PatchError) WithBlock(block string) *PatchError {
	e.Block = block
	return e
}

// WithLine adds a 1-based line number to the error.
func (e *PatchError) WithLine(line int) *PatchError {
	e.Line = line
	return e
}

// NewNotFoundError creates a new not-found error.
func NewNotFoundError(message string, err error) *PatchError {
	return &PatchError{Kind: KindNotFound, Message: message, Err: err}
}

// NewStructuralError creates a new structural error.
func NewStructuralError(message string, err error) *PatchError {
	return &PatchError{Kind: KindStructural, Message: message, Err: err}
}

// NewMalformedNestingError creates a new malformed nesting error.
func NewMalformedNestingError(message string, err error) *PatchError {
	return &PatchError{Kind: KindMalformedNesting, Message: message, Err: err}
}

// NewIOError creates a new I/O error.
func NewIOError(message string, err error) *PatchError {
	return &PatchError{Kind: KindIO, Message: message, Err: err}
}

// NewInvalidError creates a new invalid-directive error.
func NewInvalidError(message string, err error) *PatchError {
	return &PatchError{Kind: KindInvalid, Message: message, Err: err}
}

// Sentinel values for errors.Is comparisons.
var (
	ErrNotFound         = &PatchError{Kind: KindNotFound}
	ErrStructural       = &PatchError{Kind: KindStructural}
	ErrMalformedNesting = &PatchError{Kind: KindMalformedNesting}
	ErrIO               = &PatchError{Kind: KindIO}
	ErrInvalid          = &PatchError{Kind: KindInvalid}
)

// KindOf returns the classification of err, or "" if err is not a PatchError.
func KindOf(err error) ErrorKind {
	var e *PatchError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNotFound returns true if the error is classified as not found.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsStructural returns true if the block could not be located or closed.
// Malformed nesting counts as structural: in both cases there is no safe
// insertion point.
func IsStructural(err error) bool {
	k := KindOf(err)
	return k == KindStructural || k == KindMalformedNesting
}

// IsIO returns true if the error is classified as an I/O failure.
func IsIO(err error) bool {
	return KindOf(err) == KindIO
}
