package domain

// Stage identifies a position in the journey state machine.
type Stage string

const (
	StageInitializing            Stage = "initializing"
	StageLoggingIn               Stage = "logging_in"
	StageAwaitingLoginOTP        Stage = "awaiting_login_otp"
	StageSelectingInstitution    Stage = "selecting_institution"
	StageDiscoveringAccounts     Stage = "discovering_accounts"
	StageSelectingAccountsToLink Stage = "selecting_accounts_to_link"
	StageVerifyingLinkingOTP     Stage = "verifying_linking_otp"
	StageReviewingConsent        Stage = "reviewing_consent"
	StageApprovingConsent        Stage = "approving_consent"
	StageCompleted               Stage = "completed"
)

// stageOrder is the fixed forward progression of the journey.
// A session only ever moves to the next entry, never skips one.
var stageOrder = []Stage{
	StageInitializing,
	StageLoggingIn,
	StageAwaitingLoginOTP,
	StageSelectingInstitution,
	StageDiscoveringAccounts,
	StageSelectingAccountsToLink,
	StageVerifyingLinkingOTP,
	StageReviewingConsent,
	StageApprovingConsent,
	StageCompleted,
}

// Index returns the position of the stage in the journey order,
// or -1 for an unknown stage.
func (s Stage) Index() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the stage that follows s in the journey order.
// The terminal stage returns itself.
func (s Stage) Next() Stage {
	i := s.Index()
	if i < 0 || i >= len(stageOrder)-1 {
		return s
	}
	return stageOrder[i+1]
}

// Terminal reports whether the stage ends the journey.
func (s Stage) Terminal() bool {
	return s == StageCompleted
}

// Valid reports whether the stage is a known journey stage.
func (s Stage) Valid() bool {
	return s.Index() >= 0
}
