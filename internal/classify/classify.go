// Package classify normalizes heterogeneous AA client failures into the
// journey's error taxonomy. Classification is stateless and pure: the same
// input always yields the same classification.
package classify

import (
	"context"
	"errors"
	"net"

	"github.com/kitewire/consentflow/pkg/domain"
	"github.com/kitewire/consentflow/pkg/ports"
)

// Failure maps a client call error, and the stage it happened at, to the
// classified ErrorInfo surfaced on the session. The original message is
// preserved for display.
func Failure(stage domain.Stage, err error) domain.ErrorInfo {
	var clientErr *ports.ClientError
	if !errors.As(err, &clientErr) {
		// Anything that is not a structured protocol failure is transport-level.
		return domain.ErrorInfo{
			Kind:    domain.KindNetwork,
			Message: err.Error(),
		}
	}

	if isTransport(err) {
		return domain.ErrorInfo{
			Kind:    domain.KindNetwork,
			Message: clientErr.Message,
			Code:    clientErr.Code,
		}
	}

	return domain.ErrorInfo{
		Kind:    kindForStage(stage),
		Message: clientErr.Message,
		Code:    clientErr.Code,
	}
}

// Validation builds a local precondition violation. It never reaches the client.
func Validation(message string) domain.ErrorInfo {
	return domain.ErrorInfo{
		Kind:    domain.KindValidation,
		Message: message,
	}
}

// NoInstitutions is the distinct failure for an empty participant list.
func NoInstitutions() domain.ErrorInfo {
	return domain.ErrorInfo{
		Kind:    domain.KindDiscovery,
		Message: "no institutions available",
	}
}

// NoAccounts is the failure for a discovery call that succeeded but returned
// no candidates. The linking step requires at least one, so an empty result
// is a failure, not an empty success.
func NoAccounts() domain.ErrorInfo {
	return domain.ErrorInfo{
		Kind:    domain.KindDiscovery,
		Message: "no accounts found",
	}
}

// kindForStage maps the stage an external call failed at to its error kind.
func kindForStage(stage domain.Stage) domain.ErrorKind {
	switch stage {
	case domain.StageInitializing:
		return domain.KindInitialization
	case domain.StageLoggingIn, domain.StageAwaitingLoginOTP:
		return domain.KindAuthentication
	case domain.StageSelectingInstitution, domain.StageDiscoveringAccounts:
		return domain.KindDiscovery
	case domain.StageSelectingAccountsToLink, domain.StageVerifyingLinkingOTP:
		return domain.KindLinking
	case domain.StageReviewingConsent, domain.StageApprovingConsent:
		return domain.KindConsent
	default:
		return domain.KindNetwork
	}
}

// isTransport reports whether the error chain carries a transport failure,
// even when wrapped in a ClientError by an over-eager gateway client.
func isTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
