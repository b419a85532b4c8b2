package apireg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/broady/apireg/schema"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

const (
	CodeInvalidArgument  ErrorCode = "invalid_argument"
	CodeUnauthenticated  ErrorCode = "unauthenticated"
	CodePermissionDenied ErrorCode = "permission_denied"
	CodeNotFound         ErrorCode = "not_found"
	CodeMethodNotAllowed ErrorCode = "method_not_allowed"
	CodeAlreadyExists    ErrorCode = "already_exists"
	CodeCanceled         ErrorCode = "canceled"
	CodeDeadlineExceeded ErrorCode = "deadline_exceeded"
	CodeInternal         ErrorCode = "internal"
)

// statusClientClosedRequest is nginx's status for a caller that went away.
const statusClientClosedRequest = 499

var codeStatus = map[ErrorCode]int{
	CodeInvalidArgument:  http.StatusBadRequest,
	CodeUnauthenticated:  http.StatusUnauthorized,
	CodePermissionDenied: http.StatusForbidden,
	CodeNotFound:         http.StatusNotFound,
	CodeMethodNotAllowed: http.StatusMethodNotAllowed,
	CodeAlreadyExists:    http.StatusConflict,
	CodeCanceled:         statusClientClosedRequest,
	CodeDeadlineExceeded: http.StatusGatewayTimeout,
	CodeInternal:         http.StatusInternalServerError,
}

// HTTPStatus returns the status a response with code c is written with.
// Unknown codes are internal errors.
func (c ErrorCode) HTTPStatus() int {
	if status, ok := codeStatus[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// FieldError is a single per-field validation problem.
type FieldError = schema.FieldError

// Error is the standard JSON error envelope.
// Fields is only set for validation failures and keeps validator order.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Fields  []FieldError   `json:"fields,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new service error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a new service error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// ValidationError builds the invalid_argument error reported for fields.
func ValidationError(fields []FieldError) *Error {
	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = f.String()
	}
	return &Error{
		Code:    CodeInvalidArgument,
		Message: strings.Join(msgs, "; "),
		Fields:  fields,
	}
}

// WithDetail returns a new Error with the key-value pair added to details.
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Fields:  e.Fields,
		Details: details,
	}
}

// ErrorTransformer maps an error returned by an endpoint method to the
// response written for it. Returning nil defers to DefaultErrorTransformer.
type ErrorTransformer func(error) *Error

// DefaultErrorTransformer passes *Error values through, maps context and
// struct validation errors, and reports anything else as internal.
// For joined errors the first one picks the code and every message is kept.
func DefaultErrorTransformer(err error) *Error {
	var svcErr *Error
	var valErrs validator.ValidationErrors
	switch {
	case err == nil:
		return nil
	case errors.As(err, &svcErr):
		return svcErr
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(CodeDeadlineExceeded, "request timeout")
	case errors.Is(err, context.Canceled):
		return NewError(CodeCanceled, "context canceled")
	case errors.As(err, &valErrs):
		return ValidationError(fieldErrors("", valErrs, nil))
	}

	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		if errs := joined.Unwrap(); len(errs) > 0 {
			merged := *DefaultErrorTransformer(errs[0])
			msgs := make([]string, len(errs))
			for i, e := range errs {
				msgs[i] = e.Error()
			}
			merged.Message = strings.Join(msgs, "; ")
			return &merged
		}
	}
	return NewError(CodeInternal, err.Error())
}

// DefinitionError reports an endpoint that cannot be registered.
// It is raised while a class is being defined, never per request.
type DefinitionError struct {
	Class  string
	Method string
	Reason string
	Err    error
}

func (e *DefinitionError) Error() string {
	msg := fmt.Sprintf("apireg: cannot register %s.%s: %s", e.Class, e.Method, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DefinitionError) Unwrap() error { return e.Err }

// ArgumentCountError is returned by a dispatch wrapper when the number of
// supplied arguments differs from the endpoint's parameter count.
type ArgumentCountError struct {
	Path string
	Want int
	Got  int
}

func (e *ArgumentCountError) Error() string {
	return fmt.Sprintf("apireg: %s expects %d arguments, got %d", e.Path, e.Want, e.Got)
}

// ArgumentsError is returned by a dispatch wrapper when the args payload
// cannot be read from the request.
type ArgumentsError struct {
	Path string
	Err  error
}

func (e *ArgumentsError) Error() string {
	return fmt.Sprintf("apireg: %s: malformed args: %v", e.Path, e.Err)
}

func (e *ArgumentsError) Unwrap() error { return e.Err }

// fieldErrors converts struct-tag validation failures to field errors.
// prefix is the JSON pointer of the validated value, e.g. "/0". A nil
// printer renders English.
func fieldErrors(prefix string, errs validator.ValidationErrors, p *message.Printer) []FieldError {
	if p == nil {
		p = message.NewPrinter(language.English)
	}
	out := make([]FieldError, 0, len(errs))
	for _, ve := range errs {
		ns := strings.NewReplacer("[", ".", "]", "").Replace(ve.Namespace())
		parts := strings.Split(ns, ".")
		if len(parts) > 1 {
			parts = parts[1:] // drop the top-level type name
		}
		out = append(out, FieldError{
			Path:    prefix + schema.Pointer(parts),
			Message: tagMessage(ve, p),
		})
	}
	return out
}

// tagMessages render the failure of one validator tag; the string is the tag's param.
var tagMessages = map[string]func(p *message.Printer, param string) string{
	"required": func(p *message.Printer, _ string) string { return p.Sprintf("required") },
	"min":      func(p *message.Printer, v string) string { return p.Sprintf("must be at least %s characters", v) },
	"max":      func(p *message.Printer, v string) string { return p.Sprintf("must be at most %s characters", v) },
	"len":      func(p *message.Printer, v string) string { return p.Sprintf("must be exactly %s characters", v) },
	"gt":       func(p *message.Printer, v string) string { return p.Sprintf("must be greater than %s", v) },
	"gte":      func(p *message.Printer, v string) string { return p.Sprintf("must be at least %s", v) },
	"lt":       func(p *message.Printer, v string) string { return p.Sprintf("must be less than %s", v) },
	"lte":      func(p *message.Printer, v string) string { return p.Sprintf("must be at most %s", v) },
	"email":    func(p *message.Printer, _ string) string { return p.Sprintf("must be a valid email address") },
	"uuid":     func(p *message.Printer, _ string) string { return p.Sprintf("must be a valid UUID") },
	"oneof":    func(p *message.Printer, v string) string { return p.Sprintf("must be one of: %s", v) },
}

func tagMessage(ve validator.FieldError, p *message.Printer) string {
	if render, ok := tagMessages[ve.Tag()]; ok {
		return render(p, ve.Param())
	}
	if ve.Param() != "" {
		return p.Sprintf("failed %s=%s validation", ve.Tag(), ve.Param())
	}
	return p.Sprintf("failed %s validation", ve.Tag())
}

func writeError(w http.ResponseWriter, svcErr *Error, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(svcErr.Code.HTTPStatus())
	if err := encodeErrorResponse(w, svcErr); err != nil {
		logger.Error("failed to encode error response",
			slog.String("code", string(svcErr.Code)),
			slog.String("message", svcErr.Message),
			slog.Any("error", err))
	}
}

// WriteError writes err as a JSON error envelope. Routers use it for
// failures that happen outside a dispatch wrapper.
func WriteError(w http.ResponseWriter, err error, logger *slog.Logger) {
	writeError(w, DefaultErrorTransformer(err), logger)
}
