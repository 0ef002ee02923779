package nepse

import (
	"errors"
	"fmt"
)

// Kind classifies client failures. Callers match on kind, not on type.
type Kind string

const (
	KindChallengeFetchFailed    Kind = "challenge_fetch_failed"
	KindNotInitialized          Kind = "not_initialized"
	KindTokenAcquisitionFailed  Kind = "token_acquisition_failed"
	KindDecodeModuleUnavailable Kind = "decode_module_unavailable"
	KindMarketStatusFailed      Kind = "market_status_failed"
	KindSecurityBriefsFailed    Kind = "security_briefs_failed"
	KindSecurityNotFound        Kind = "security_not_found"
	KindSecurityDetailFailed    Kind = "security_detail_failed"
	KindIndexFetchFailed        Kind = "index_fetch_failed"
	KindRetriesExhausted        Kind = "retries_exhausted"
	KindInvalidSymbol           Kind = "invalid_symbol"
)

// Error is the client's error type. Cause is preserved for diagnostics.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrChallengeFetchFailed    = &Error{Kind: KindChallengeFetchFailed}
	ErrNotInitialized          = &Error{Kind: KindNotInitialized}
	ErrTokenAcquisitionFailed  = &Error{Kind: KindTokenAcquisitionFailed}
	ErrDecodeModuleUnavailable = &Error{Kind: KindDecodeModuleUnavailable}
	ErrMarketStatusFailed      = &Error{Kind: KindMarketStatusFailed}
	ErrSecurityBriefsFailed    = &Error{Kind: KindSecurityBriefsFailed}
	ErrSecurityNotFound        = &Error{Kind: KindSecurityNotFound}
	ErrSecurityDetailFailed    = &Error{Kind: KindSecurityDetailFailed}
	ErrIndexFetchFailed        = &Error{Kind: KindIndexFetchFailed}
	ErrRetriesExhausted        = &Error{Kind: KindRetriesExhausted}
	ErrInvalidSymbol           = &Error{Kind: KindInvalidSymbol}
)

// KindOf returns the kind of the outermost *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err's outermost client error has the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatusError is a well-formed non-2xx response. It is never retried.
type HTTPStatusError struct {
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %s", e.Status)
}

// Common error constructors
func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func NewChallengeFetchError(message string, cause error) *Error {
	return newError(KindChallengeFetchFailed, message, cause)
}

func NewNotInitializedError() *Error {
	return newError(KindNotInitialized, "client not initialized: no decode functions loaded", nil)
}

func NewTokenAcquisitionError(cause error) *Error {
	return newError(KindTokenAcquisitionFailed, "failed to acquire access token", cause)
}

func NewDecodeModuleError(message string, cause error) *Error {
	return newError(KindDecodeModuleUnavailable, message, cause)
}

func NewMarketStatusError(message string, cause error) *Error {
	return newError(KindMarketStatusFailed, message, cause)
}

func NewSecurityBriefsError(message string, cause error) *Error {
	return newError(KindSecurityBriefsFailed, message, cause)
}

func NewSecurityNotFoundError(symbol string) *Error {
	return newError(KindSecurityNotFound, "security not found: "+symbol, nil)
}

func NewSecurityDetailError(message string, cause error) *Error {
	return newError(KindSecurityDetailFailed, message, cause)
}

func NewIndexFetchError(message string, cause error) *Error {
	return newError(KindIndexFetchFailed, message, cause)
}

func NewRetriesExhaustedError(endpoint string, attempts int, cause error) *Error {
	return newError(KindRetriesExhausted, fmt.Sprintf("%s: gave up after %d attempts", endpoint, attempts), cause)
}

func NewInvalidSymbolError(symbol string) *Error {
	return newError(KindInvalidSymbol, fmt.Sprintf("invalid security symbol %q", symbol), nil)
}

// wrapOp passes through errors that already carry a kind and wraps the rest.
func wrapOp(err error, wrap func(string, error) *Error, message string) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}
	return wrap(message, err)
}
