package pin

import (
	"errors"

	"github.com/matenet/pin/core"
)

// Errors callers commonly match with errors.Is
var (
	ErrNoAccount        = core.ErrNoAccount
	ErrNoWalletFound    = core.ErrNoWalletFound
	ErrUserRejected     = core.ErrUserRejected
	ErrSuperseded       = core.ErrSuperseded
	ErrUnsupported      = core.ErrUnsupported
	ErrPermissionDenied = core.ErrPermissionDenied
	ErrNoSession        = core.ErrNoSession
	ErrSessionExpired   = core.ErrSessionExpired
	ErrUnauthorized     = core.ErrUnauthorized
	ErrNotFound         = core.ErrNotFound
)

// Message renders err for the user. Flow failures map to a short
// explanation of their kind, anything else to a generic failure.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var (
		detail string
		fe     *core.FlowError
	)
	if errors.As(err, &fe) && fe.Message != "" {
		detail = ": " + fe.Message
	}
	switch core.KindOf(err) {
	case core.KindCapabilityUnsupported:
		return "This device does not support the required feature"
	case core.KindPermissionDenied:
		return "Permission was denied, try again when ready"
	case core.KindNetworkFailure:
		return "Network error, check your connection and retry"
	case core.KindProtocolFailure:
		return "The server rejected the request" + detail
	case core.KindAccountChanged:
		return "The wallet account changed, please sign in again"
	case core.KindDeviceReadError:
		return "Could not read the tag, try again"
	case core.KindDeviceWriteError:
		return "Could not write the tag, try again"
	}
	return "Something went wrong"
}
