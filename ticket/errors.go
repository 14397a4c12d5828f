package ticket

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation ErrorKind = "VALIDATION_FAILED"
	KindPermission ErrorKind = "PERMISSION_DENIED"
)

// UserError is reported back to the member who asked for the action. The
// ticket is left unchanged when one is returned.
type UserError struct {
	Kind    ErrorKind
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...any) error {
	return &UserError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewPermissionError(format string, args ...any) error {
	return &UserError{Kind: KindPermission, Message: fmt.Sprintf(format, args...)}
}

// AsUserError returns the UserError in err's chain, if any.
func AsUserError(err error) (*UserError, bool) {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

var (
	ErrRenderFailure = errors.New("transcript render failure")
	errNotTicket     = NewValidationError("This command can only be used inside an open ticket channel.")
)
