package dnstypes

import (
	"errors"
	"fmt"
)

// Code categorizes the outcome of a simulated resolution attempt.
//
// CodeCacheMiss and CodePending are internal sentinels: every request
// eventually completes with one of the remaining codes, and callbacks only
// ever observe a squashed code (see Squash).
type Code int

const (
	// CodeOK indicates a successful resolution. It is never wrapped in an
	// Error; success is a nil error.
	CodeOK Code = iota

	// CodePending indicates a request registered for asynchronous
	// completion.
	CodePending

	// CodeNotResolved indicates a failed resolution: a failure rule
	// matched, no rule matched and the fallback failed, or the hostname is
	// syntactically invalid.
	CodeNotResolved

	// CodeTimedOut indicates a deliberately simulated timeout.
	CodeTimedOut

	// CodeCacheMiss indicates a cache lookup found nothing usable. It never
	// surfaces as a request's final result.
	CodeCacheMiss

	// CodeHTTPSOnly is the synthetic one-shot signal produced by an HTTPS
	// service-form record rule. Distinct from CodeNotResolved.
	CodeHTTPSOnly

	// CodeShutDown indicates the coordinator no longer accepts work.
	CodeShutDown

	// CodeUnexpected indicates malformed internal state, such as an
	// unparsable literal list in a rule.
	CodeUnexpected
)

// String implements fmt.Stringer.
func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodePending:
		return "PENDING"
	case CodeNotResolved:
		return "NAME_NOT_RESOLVED"
	case CodeTimedOut:
		return "DNS_TIMED_OUT"
	case CodeCacheMiss:
		return "DNS_CACHE_MISS"
	case CodeHTTPSOnly:
		return "DNS_NAME_HTTPS_ONLY"
	case CodeShutDown:
		return "CONTEXT_SHUT_DOWN"
	case CodeUnexpected:
		return "UNEXPECTED"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Error is a simulated resolution failure.
//
// OS carries the optional system error number reported by a forward rule's
// system-resolve collaborator; it is zero otherwise.
type Error struct {
	Code Code
	Msg  string
	OS   int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Msg)
	}
	if e.OS != 0 {
		return fmt.Sprintf("%s (os error %d)", e.Code, e.OS)
	}
	return e.Code.String()
}

// NewError creates an Error with the given code.
func NewError(code Code) *Error {
	return &Error{Code: code}
}

// NewErrorf creates an Error with the given code and detail message.
func NewErrorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the outcome code from an error. A nil error is CodeOK;
// an error that is not an *Error is CodeUnexpected.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnexpected
}

// IsCode reports whether err carries the given outcome code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsPending reports whether err is the asynchronous-registration sentinel.
func IsPending(err error) bool { return IsCode(err, CodePending) }

// IsNotResolved reports whether err is a name-not-resolved failure.
func IsNotResolved(err error) bool { return IsCode(err, CodeNotResolved) }

// IsCacheMiss reports whether err is the internal cache-miss sentinel.
func IsCacheMiss(err error) bool { return IsCode(err, CodeCacheMiss) }

// Squash narrows an error to the set of codes a completion callback may
// observe. Success and the HTTPS-only signal pass through; every other
// failure collapses to CodeNotResolved. The pending sentinel is not a
// completion outcome and also passes through untouched.
func Squash(err error) error {
	switch CodeOf(err) {
	case CodeOK:
		return nil
	case CodePending, CodeHTTPSOnly:
		return err
	default:
		return NewError(CodeNotResolved)
	}
}
