// Package apperror defines the stable error categories the HTTP layer maps
// to status codes, plus the machine-readable reason code carried by business
// rule rejections.
package apperror

// Kind is a stable error category.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	// KindBusinessRule marks a well-formed request rejected by a domain rule,
	// such as a coupon eligibility failure or an illegal status transition.
	KindBusinessRule Kind = "business_rule"
	KindInternal     Kind = "internal"
)

// Error carries a Kind, a client-safe message, and an optional stable reason
// code. Msg is safe to return to clients for every kind except KindInternal.
type Error struct {
	Kind Kind
	Msg  string
	// Code is a stable machine-readable identifier, e.g. "ALREADY_USED".
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Validation(msg string, err error) *Error   { return New(KindValidation, msg, err) }
func Unauthorized(msg string, err error) *Error { return New(KindUnauthorized, msg, err) }
func Forbidden(msg string, err error) *Error    { return New(KindForbidden, msg, err) }
func NotFound(msg string, err error) *Error     { return New(KindNotFound, msg, err) }
func Internal(err error) *Error                 { return New(KindInternal, "", err) }

// Conflict builds a conflict with a stable reason code alongside the
// human-readable message.
func Conflict(code, msg string, err error) *Error {
	return &Error{Kind: KindConflict, Msg: msg, Code: code, Err: err}
}

// BusinessRule builds a rejection with a stable reason code alongside the
// human-readable message.
func BusinessRule(code, msg string, err error) *Error {
	return &Error{Kind: KindBusinessRule, Msg: msg, Code: code, Err: err}
}
