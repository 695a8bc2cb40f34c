package rom

import (
	"errors"
	"fmt"
)

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind (and Subject where relevant) rather than
// matching error strings.
type Kind string

const (
	KindInvalidImport          Kind = "InvalidImport"
	KindMissingExport          Kind = "MissingExport"
	KindModuleTooLarge         Kind = "ModuleTooLarge"
	KindInvalidModule          Kind = "InvalidModule"
	KindAssetTooLarge          Kind = "AssetTooLarge"
	KindUnsupportedAssetFormat Kind = "UnsupportedAssetFormat"
	KindSchemaViolation        Kind = "SchemaViolation"
	KindKeyNotFound            Kind = "KeyNotFound"
	KindSignatureMismatch      Kind = "SignatureMismatch"
	KindArchiveCorrupt         Kind = "ArchiveCorrupt"
	KindIOFailure              Kind = "IOFailure"
)

// Error is the toolchain's structured error type.
//
// Subject names the offending thing when there is one: the import name for
// InvalidImport, the export name for MissingExport, the asset or field name
// for asset and schema errors.
//
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	Subject string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.Kind)
	if e.Subject != "" {
		msg += fmt.Sprintf("(%q)", e.Subject)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Errorf returns a new *Error of the given kind.
func Errorf(kind Kind, subject, format string, args ...any) error {
	return &Error{Kind: kind, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a new *Error of the given kind wrapping cause.
//
// A cause that already is a *Error is returned unchanged so that no stage
// downgrades the kind reported by an earlier one.
func Wrap(kind Kind, subject, msg string, cause error) error {
	if cause == nil {
		return &Error{Kind: kind, Subject: subject, Message: msg}
	}
	var e *Error
	if errors.As(cause, &e) {
		return cause
	}
	return &Error{Kind: kind, Subject: subject, Message: msg, Cause: cause}
}

// IOError wraps a filesystem error as IOFailure.
func IOError(op string, cause error) error {
	return Wrap(KindIOFailure, "", op, cause)
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf returns the Kind of a structured error, or "" if err is not one.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}

// SubjectOf returns the Subject of a structured error, or "".
func SubjectOf(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Subject
}

// WithSubject fills in the Subject of a structured error that has none.
// Other errors are returned unchanged.
func WithSubject(err error, subject string) error {
	var e *Error
	if !errors.As(err, &e) || e.Subject != "" {
		return err
	}
	c := *e
	c.Subject = subject
	return &c
}

// Relabel returns a copy of a structured error with a different kind.
// Other errors are wrapped.
func Relabel(err error, kind Kind) error {
	var e *Error
	if !errors.As(err, &e) {
		return Wrap(kind, "", "", err)
	}
	c := *e
	c.Kind = kind
	return &c
}
