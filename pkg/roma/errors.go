package roma

import (
	"errors"
	"fmt"
)

// ErrorKind is the failure taxonomy surfaced to callers.
type ErrorKind string

const (
	ErrorKindRouting    ErrorKind = "routing"
	ErrorKindExtraction ErrorKind = "extraction"
	ErrorKindProvider   ErrorKind = "provider"
	ErrorKindInternal   ErrorKind = "internal"
)

// RetryAvailable reports whether the caller should offer a retry for this kind.
func (k ErrorKind) RetryAvailable() bool {
	switch k {
	case ErrorKindProvider, ErrorKindInternal, ErrorKindRouting:
		return true
	default:
		return false
	}
}

// ErrorInfo describes a failed result. Permanent marks provider faults that
// a retry cannot fix, such as a rejected API key.
type ErrorInfo struct {
	Kind      ErrorKind
	Detail    string
	Permanent bool
}

// RetryAvailable reports whether the caller should offer a retry for this failure.
func (e *ErrorInfo) RetryAvailable() bool {
	return e.Kind.RetryAvailable() && !e.Permanent
}

// transienter is implemented by provider errors that know whether they are worth retrying.
type transienter interface {
	Transient() bool
}

// providerFailed builds a provider failure from err, marking it permanent when
// err says a retry would not help.
func providerFailed(c Capability, err error, format string, args ...any) ExecutionResult {
	res := Failed(c, ErrorKindProvider, format, args...)
	var t transienter
	if errors.As(err, &t) && !t.Transient() {
		res.Error.Permanent = true
	}
	return res
}

func (e *ErrorInfo) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}
