package orchestrator

import (
	"errors"
	"fmt"
)

// Kind classifies orchestrator failures. Only the first three abort a
// subcommand; certificate acquisition failures are recovered by the
// self-signed fallback unless the fallback itself cannot write.
type Kind int

const (
	KindMissingDependency Kind = iota
	KindConfigWrite
	KindReload
	KindCertAcquisition
)

func (k Kind) String() string {
	switch k {
	case KindMissingDependency:
		return "missing dependency"
	case KindConfigWrite:
		return "config write"
	case KindReload:
		return "reload"
	case KindCertAcquisition:
		return "certificate acquisition"
	default:
		return "unknown"
	}
}

// Error wraps a failure with its classification and the path or tool it
// concerns.
type Error struct {
	Kind    Kind
	Op      string // Operation that failed
	Subject string // Tool name or filesystem path
	Err     error
}

func (e *Error) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s: %s %s: %v", e.Kind, e.Op, e.Subject, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewMissingDependency reports an absent external tool.
func NewMissingDependency(op, tool string, err error) *Error {
	return &Error{Kind: KindMissingDependency, Op: op, Subject: tool, Err: err}
}

// NewConfigWrite reports an unwritable or unrenderable artifact.
func NewConfigWrite(op, path string, err error) *Error {
	return &Error{Kind: KindConfigWrite, Op: op, Subject: path, Err: err}
}

// NewReload reports a rejected config or a failed proxy reload.
func NewReload(op string, err error) *Error {
	return &Error{Kind: KindReload, Op: op, Err: err}
}

// NewCertAcquisition reports the fatal certificate case: the authority
// client errored and the self-signed fallback could not be written.
func NewCertAcquisition(op, path string, err error) *Error {
	return &Error{Kind: KindCertAcquisition, Op: op, Subject: path, Err: err}
}

// IsKind reports whether err is (or wraps) an orchestrator Error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
