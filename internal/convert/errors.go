package convert

import (
	"errors"
	"fmt"
)

// Input error kinds. Match them with errors.Is.
var (
	ErrNotFound    = errors.New("file not found")
	ErrEmpty       = errors.New("file is empty")
	ErrUnsupported = errors.New("unsupported file format")
	ErrTooLarge    = errors.New("file too large")
	ErrUnreadable  = errors.New("file could not be read")
)

// InputError reports a document that cannot be turned into text. Its
// message is safe to show to end users.
type InputError struct {
	Kind    error
	Path    string
	Message string
}

func (e *InputError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Path, e.Kind, e.Message)
}

func (e *InputError) Unwrap() error { return e.Kind }

func inputError(kind error, path, format string, args ...any) *InputError {
	return &InputError{Kind: kind, Path: path, Message: fmt.Sprintf(format, args...)}
}
