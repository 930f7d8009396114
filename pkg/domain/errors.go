package domain

import "errors"

// ErrSessionNotFound is returned when a journey session cannot be found in the store.
var ErrSessionNotFound = errors.New("journey session not found")

// ErrInvalidStage is returned when an operation is invoked at a stage that
// does not accept it. This indicates caller misuse, not a protocol failure.
var ErrInvalidStage = errors.New("operation not valid for current stage")

// ErrJourneyCompleted is returned when an operation targets a session that
// already reached its terminal stage.
var ErrJourneyCompleted = errors.New("journey already completed")

// ErrorKind classifies a journey failure for presentation and retry policy.
type ErrorKind string

const (
	// KindInitialization covers connection/config failures before any user action.
	KindInitialization ErrorKind = "initialization"
	// KindAuthentication covers invalid credentials or an invalid login OTP.
	KindAuthentication ErrorKind = "authentication"
	// KindDiscovery covers empty or failed institution/account discovery.
	KindDiscovery ErrorKind = "discovery"
	// KindLinking covers account linking or linking-OTP verification failures.
	KindLinking ErrorKind = "linking"
	// KindConsent covers consent-detail fetch or decision recording failures.
	KindConsent ErrorKind = "consent"
	// KindNetwork covers transport failures and timeouts at any stage.
	KindNetwork ErrorKind = "network"
	// KindValidation covers local precondition violations that never reach the client.
	KindValidation ErrorKind = "validation"
)

// ErrorInfo is the classified failure surfaced on a session.
// Every kind is retryable by re-submitting the triggering event at the
// stage the error pinned the session to.
type ErrorInfo struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
}
