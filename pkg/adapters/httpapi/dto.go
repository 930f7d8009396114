package httpapi

import (
	"sort"
	"time"

	"github.com/kitewire/consentflow/pkg/domain"
)

// SessionDTO is the wire view of a journey session. Raw credentials never
// leave the orchestrator; only the masked mobile number is rendered.
type SessionDTO struct {
	ConsentHandleID string            `json:"consent_handle_id"`
	Stage           domain.Stage      `json:"stage"`
	Error           *domain.ErrorInfo `json:"error,omitempty"`

	MaskedMobile string             `json:"masked_mobile,omitempty"`
	OTP          *OTPStateDTO       `json:"otp,omitempty"`
	Institutions []domain.FIPOption `json:"institutions,omitempty"`
	SelectedFIP  string             `json:"selected_fip,omitempty"`

	DiscoveredAccounts []domain.DiscoveredAccount `json:"discovered_accounts,omitempty"`
	AccountsToLink     []string                   `json:"accounts_to_link,omitempty"`
	LinkedAccounts     []domain.LinkedAccount     `json:"linked_accounts,omitempty"`

	Consent         *domain.ConsentDetail   `json:"consent,omitempty"`
	ConsentAccounts []string                `json:"consent_accounts,omitempty"`
	Decision        domain.Decision         `json:"decision,omitempty"`
	Artifact        *domain.ConsentArtifact `json:"artifact,omitempty"`
}

// OTPStateDTO is what the screen needs to render the resend countdown.
type OTPStateDTO struct {
	ResendAvailableAt time.Time `json:"resend_available_at"`
	AttemptCount      int       `json:"attempt_count"`
}

func toDTO(s *domain.JourneySession) SessionDTO {
	dto := SessionDTO{
		ConsentHandleID:    s.ConsentHandleID,
		Stage:              s.Stage,
		Error:              s.Error,
		Institutions:       s.Institutions,
		DiscoveredAccounts: s.DiscoveredAccounts,
		AccountsToLink:     sortedKeys(s.AccountsToLink),
		LinkedAccounts:     s.LinkedAccounts,
		Consent:            s.ConsentDetail,
		ConsentAccounts:    sortedKeys(s.ConsentAccountSelection),
		Decision:           s.Decision,
		Artifact:           s.Artifact,
	}
	if s.Credentials != nil {
		dto.MaskedMobile = maskMobile(s.Credentials.Mobile)
	}
	if s.SelectedInstitution != nil {
		dto.SelectedFIP = s.SelectedInstitution.ID
	}
	if challenge := liveChallenge(s); challenge != nil {
		dto.OTP = &OTPStateDTO{
			ResendAvailableAt: challenge.ResendAvailableAt,
			AttemptCount:      challenge.AttemptCount,
		}
	}
	return dto
}

func liveChallenge(s *domain.JourneySession) *domain.OTPChallenge {
	switch s.Stage {
	case domain.StageAwaitingLoginOTP:
		return s.LoginOTP
	case domain.StageVerifyingLinkingOTP:
		return s.LinkingOTP
	}
	return nil
}

func maskMobile(mobile string) string {
	if len(mobile) < 4 {
		return "XXXXXX"
	}
	return "XXXXXX" + mobile[len(mobile)-4:]
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k, v := range set {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
