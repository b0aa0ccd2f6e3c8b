package model

import (
	"errors"
	"strings"
)

type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindAuthorization ErrorKind = "authorization"
	KindInvalidState  ErrorKind = "invalid_state"
	KindPayment       ErrorKind = "payment"
	KindNotFound      ErrorKind = "not_found"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrAuthorization = &Error{Kind: KindAuthorization}
	ErrInvalidState  = &Error{Kind: KindInvalidState}
	ErrPayment       = &Error{Kind: KindPayment}
	ErrNotFound      = &Error{Kind: KindNotFound}
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the typed outcome every usecase returns for an expected
// business failure.
type Error struct {
	Kind    ErrorKind    `json:"kind"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
	Err     error        `json:"-"`
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	for i, f := range e.Fields {
		if i == 0 {
			b.WriteString(" (")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(f.Field + ": " + f.Message)
		if i == len(e.Fields)-1 {
			b.WriteString(")")
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "" for
// unexpected failures.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Unauthorized(msg string) error {
	return &Error{Kind: KindAuthorization, Message: msg}
}

func InvalidState(msg string) error {
	return &Error{Kind: KindInvalidState, Message: msg}
}

func PaymentError(msg string, cause error) error {
	return &Error{Kind: KindPayment, Message: msg, Err: cause}
}

// Validation collects field problems and reports them all at once.
type Validation struct {
	fields []FieldError
}

func (v *Validation) Add(field, msg string) {
	v.fields = append(v.fields, FieldError{Field: field, Message: msg})
}

func (v *Validation) Check(ok bool, field, msg string) {
	if !ok {
		v.Add(field, msg)
	}
}

// Err returns nil when nothing was added.
func (v *Validation) Err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &Error{Kind: KindValidation, Message: "invalid input", Fields: v.fields}
}

func Invalid(field, msg string) error {
	var v Validation
	v.Add(field, msg)
	return v.Err()
}
