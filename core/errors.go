package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoAccount          = errors.New("no wallet account connected")
	ErrNoWalletFound      = errors.New("no wallet provider found")
	ErrUserRejected       = errors.New("user rejected the request")
	ErrNonceFetchFailed   = errors.New("nonce fetch failed")
	ErrSignatureRejected  = errors.New("signature rejected")
	ErrAccountChanged     = errors.New("wallet account changed during sign-in")
	ErrVerificationFailed = errors.New("verification failed")
	ErrSuperseded         = errors.New("sign-in superseded by a newer attempt")

	ErrUnsupported      = errors.New("capability not supported")
	ErrPermissionDenied = errors.New("permission denied")
	ErrStreamClosed     = errors.New("device stream closed")

	ErrKeyNotFound    = errors.New("key not found")
	ErrNoSession      = errors.New("no session token")
	ErrSessionExpired = errors.New("session token has expired")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
	ErrMalformed      = errors.New("malformed response")
	ErrInvalidInput   = errors.New("invalid input")
)

// Kind classifies a failure for the user facing layer
type Kind int

const (
	KindUnexpected Kind = iota
	KindCapabilityUnsupported
	KindPermissionDenied
	KindNetworkFailure
	KindProtocolFailure
	KindAccountChanged
	KindDeviceReadError
	KindDeviceWriteError
)

func (k Kind) String() string {
	switch k {
	case KindCapabilityUnsupported:
		return "CapabilityUnsupported"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindNetworkFailure:
		return "NetworkFailure"
	case KindProtocolFailure:
		return "ProtocolFailure"
	case KindAccountChanged:
		return "AccountChanged"
	case KindDeviceReadError:
		return "DeviceReadError"
	case KindDeviceWriteError:
		return "DeviceWriteError"
	default:
		return "Unexpected"
	}
}

// FlowError is the terminal failure of a sign-in, scan or write flow.
// Reason is one of the sentinels above, Message is the server supplied
// text for protocol failures and Err the underlying cause.
type FlowError struct {
	Kind    Kind
	Reason  error
	Message string
	Err     error
}

// NewFlowError creates a FlowError
func NewFlowError(kind Kind, reason error, cause error) *FlowError {
	return &FlowError{Kind: kind, Reason: reason, Err: cause}
}

func (e *FlowError) Error() string {
	msg := e.Kind.String()
	if e.Reason != nil {
		msg += ": " + e.Reason.Error()
	}
	if e.Message != "" {
		msg += ": " + e.Message
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FlowError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Reason != nil {
		errs = append(errs, e.Reason)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the Kind of the first FlowError in err's chain
func KindOf(err error) Kind {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnexpected
}

// HTTPError is a non-2xx answer from the backend
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// Is lets 401/403 match ErrUnauthorized and 404 match ErrNotFound
func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}
