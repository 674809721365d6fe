// ABOUTME: Error kinds for the passthrough core
// ABOUTME: Typed errors matched by kind with errors.Is
package audio

import "fmt"

// ErrorKind classifies failures of the passthrough core
type ErrorKind int

const (
	KindInitialization ErrorKind = iota + 1
	KindEnumeration
	KindInvalidSelection
	KindUnsupportedConfiguration
	KindFormatUnsupported
	KindStreamOpen
	KindRuntimeCallbackFault
)

// String returns the kind name
func (k ErrorKind) String() string {
	switch k {
	case KindInitialization:
		return "initialization failure"
	case KindEnumeration:
		return "enumeration failure"
	case KindInvalidSelection:
		return "invalid selection"
	case KindUnsupportedConfiguration:
		return "unsupported configuration"
	case KindFormatUnsupported:
		return "format unsupported"
	case KindStreamOpen:
		return "stream open failure"
	case KindRuntimeCallbackFault:
		return "runtime callback fault"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Sentinels for errors.Is. They compare equal to any *Error of the same kind.
var (
	ErrInitialization           = &Error{Kind: KindInitialization}
	ErrEnumeration              = &Error{Kind: KindEnumeration}
	ErrInvalidSelection         = &Error{Kind: KindInvalidSelection}
	ErrUnsupportedConfiguration = &Error{Kind: KindUnsupportedConfiguration}
	ErrFormatUnsupported        = &Error{Kind: KindFormatUnsupported}
	ErrStreamOpen               = &Error{Kind: KindStreamOpen}
	ErrRuntimeCallbackFault     = &Error{Kind: KindRuntimeCallbackFault}
)

// NewError builds a classified error
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error with a formatted cause
func Errorf(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}
