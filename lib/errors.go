package lib

import "fmt"

// ValidationError reports a malformed request: a required field is missing or
// empty. Never retried, surfaced as a 4xx.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an operation that named a subscriber which does not
// exist where existence is required.
type NotFoundError struct {
	Resource string
	UserID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s found for user %s", e.Resource, e.UserID)
}
