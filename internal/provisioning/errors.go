package provisioning

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by collaborators.
var (
	// ErrIdentityExists signals that the email already has an identity.
	ErrIdentityExists = errors.New("provisioning: identity already exists")
	// ErrIdentityNotFound signals that no identity matches the lookup.
	ErrIdentityNotFound = errors.New("provisioning: identity not found")
)

// Category is the stable, caller-visible class of a failure.
type Category string

const (
	CategoryValidation    Category = "validation"
	CategoryPermission    Category = "permission"
	CategoryPrecondition  Category = "precondition"
	CategoryAlreadyExists Category = "already_exists"
	CategoryNotFound      Category = "not_found"
	CategoryInternal      Category = "internal"
)

// Error is the categorized failure returned by every entry operation.
// Message is a printf-style key localized with Args; Err is never shown to callers.
type Error struct {
	Category       Category
	Message        string
	Args           []any
	Fields         map[string]string
	InvalidModules []string
	State          State
	Err            error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("provisioning: ")
	b.WriteString(string(e.Category))
	if e.State != "" {
		b.WriteString(" at ")
		b.WriteString(string(e.State))
	}
	b.WriteString(": ")
	b.WriteString(fmt.Sprintf(e.Message, e.Args...))
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CategoryOf extracts the failure category; unknown errors are internal.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Category
	}
	return CategoryInternal
}

// AsError converts any error into a categorized *Error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}
	return internalError(err)
}

func validationError(fields map[string]string, invalidModules []string, message string, args ...any) *Error {
	return &Error{Category: CategoryValidation, Message: message, Args: args, Fields: fields, InvalidModules: invalidModules}
}

func permissionError(message string) *Error {
	return &Error{Category: CategoryPermission, Message: message}
}

func preconditionError(message string) *Error {
	return &Error{Category: CategoryPrecondition, Message: message}
}

func internalError(err error) *Error {
	return &Error{Category: CategoryInternal, Message: MsgInternal, Err: err}
}
