// Package flow implements the journey's stage transition engine.
//
// The engine is pure: every method takes the current session snapshot and
// returns a new one, never mutating its input. It owns all business rules
// for stage ordering, local validation, error pinning, and the subset
// invariants between discovered, linked, and selected accounts. It performs
// no I/O; the controller invokes the AA client and feeds outcomes here.
package flow

import (
	"fmt"
	"regexp"
	"time"

	"github.com/kitewire/consentflow/internal/classify"
	"github.com/kitewire/consentflow/pkg/domain"
)

// DefaultResendCooldown is the fixed countdown before an OTP can be reissued.
const DefaultResendCooldown = 30 * time.Second

var (
	mobilePattern = regexp.MustCompile(`^\d{10}$`)
	otpPattern    = regexp.MustCompile(`^\d{6}$`)
)

// Engine computes journey transitions.
type Engine struct {
	resendCooldown time.Duration
	now            func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithResendCooldown overrides the OTP resend cooldown.
func WithResendCooldown(d time.Duration) Option {
	return func(e *Engine) {
		e.resendCooldown = d
	}
}

// WithNow injects a clock, for deterministic tests.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a transition engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		resendCooldown: DefaultResendCooldown,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ResendCooldown returns the configured cooldown duration.
func (e *Engine) ResendCooldown() time.Duration {
	return e.resendCooldown
}

// RequireStage checks that the session is at the stage an operation needs.
// A mismatch is caller misuse (domain.ErrInvalidStage), never a protocol failure.
func (e *Engine) RequireStage(s *domain.JourneySession, stage domain.Stage) error {
	if s.Stage.Terminal() {
		return domain.ErrJourneyCompleted
	}
	if s.Stage != stage {
		return fmt.Errorf("%w: at %q, need %q", domain.ErrInvalidStage, s.Stage, stage)
	}
	return nil
}

// Fail pins the session at its current stage with the classified error.
// The stage never advances together with a non-nil error.
func (e *Engine) Fail(s *domain.JourneySession, info domain.ErrorInfo) *domain.JourneySession {
	next := s.Clone()
	next.Error = &info
	return next
}

// FailOTPAttempt pins the session like Fail and increments the live
// challenge's attempt counter. The counter is advisory; no lockout policy
// is enforced here.
func (e *Engine) FailOTPAttempt(s *domain.JourneySession, info domain.ErrorInfo) *domain.JourneySession {
	next := e.Fail(s, info)
	switch next.Stage {
	case domain.StageAwaitingLoginOTP:
		if next.LoginOTP != nil {
			next.LoginOTP.AttemptCount++
		}
	case domain.StageVerifyingLinkingOTP:
		if next.LinkingOTP != nil {
			next.LinkingOTP.AttemptCount++
		}
	}
	return next
}

// advance moves the session to the next stage in the fixed order and clears
// the last error. All success transitions funnel through here, so a stage
// can never be skipped.
func (e *Engine) advance(s *domain.JourneySession) *domain.JourneySession {
	next := s.Clone()
	next.Stage = next.Stage.Next()
	next.Error = nil
	return next
}

// Connected records a successful gateway connection.
func (e *Engine) Connected(s *domain.JourneySession) (*domain.JourneySession, error) {
	if err := e.RequireStage(s, domain.StageInitializing); err != nil {
		return nil, err
	}
	return e.advance(s), nil
}

// ValidateCredentials checks the login form locally. Returns nil when valid.
func (e *Engine) ValidateCredentials(creds domain.Credentials) *domain.ErrorInfo {
	if creds.Username == "" {
		info := classify.Validation("username is required")
		return &info
	}
	if !mobilePattern.MatchString(creds.Mobile) {
		info := classify.Validation("mobile number must be 10 digits")
		return &info
	}
	return nil
}

// LoginStarted records an accepted login and the OTP challenge it issued.
func (e *Engine) LoginStarted(s *domain.JourneySession, creds domain.Credentials, otpReference string) (*domain.JourneySession, error) {
	if err := e.RequireStage(s, domain.StageLoggingIn); err != nil {
		return nil, err
	}
	next := e.advance(s)
	next.Credentials = &creds
	next.LoginOTP = e.newChallenge(otpReference)
	return next, nil
}

// ValidateOTPCode checks a submitted code locally. Returns nil when valid.
func (e *Engine) ValidateOTPCode(code string) *domain.ErrorInfo {
	if !otpPattern.MatchString(code) {
		info := classify.Validation("OTP must be 6 digits")
		return &info
	}
	return nil
}

// LoginVerified records a confirmed login OTP and the institution list
// fetched on its heels. An empty list is a discovery failure: the journey
// stays put because there is nothing to select downstream.
func (e *Engine) LoginVerified(s *domain.JourneySession, userID string, institutions []domain.FIPOption) (*domain.JourneySession, error) {
	if err := e.RequireStage(s, domain.StageAwaitingLoginOTP); err != nil {
		return nil, err
	}
	if len(institutions) == 0 {
		return e.Fail(s, classify.NoInstitutions()), nil
	}
	next := e.advance(s)
	next.UserID = userID
	next.Institutions = append([]domain.FIPOption(nil), institutions...)
	next.LoginOTP = nil
	return next, nil
}

// ChallengeReissued replaces the live OTP challenge after a resend.
// The prior reference is invalidated; the attempt counter starts over.
func (e *Engine) ChallengeReissued(s *domain.JourneySession, otpReference string) (*domain.JourneySession, error) {
	next := s.Clone()
	switch next.Stage {
	case domain.StageAwaitingLoginOTP:
		next.LoginOTP = e.newChallenge(otpReference)
	case domain.StageVerifyingLinkingOTP:
		next.LinkingOTP = e.newChallenge(otpReference)
	default:
		return nil, fmt.Errorf("%w: no OTP challenge at %q", domain.ErrInvalidStage, next.Stage)
	}
	next.Error = nil
	return next, nil
}

// ValidateInstitution checks that the chosen FIP is in the fetched list and
// enabled. Local validation only; no client call is involved.
func (e *Engine) ValidateInstitution(s *domain.JourneySession, fipID string) (domain.FIPOption, *domain.ErrorInfo) {
	fip, ok := s.Institution(fipID)
	if !ok {
		info := classify.Validation("institution is not in the offered list")
		return domain.FIPOption{}, &info
	}
	if !fip.Enabled {
		info := classify.Validation("institution is not currently enabled")
		return domain.FIPOption{}, &info
	}
	return fip, nil
}

// InstitutionSelected records the chosen FIP and its supported discovery
// identifier types.
func (e *Engine) InstitutionSelected(s *domain.JourneySession, fip domain.FIPOption, identifierTypes []string) (*domain.JourneySession, error) {
	if err := e.RequireStage(s, domain.StageSelectingInstitution); err != nil {
		return nil, err
	}
	next := e.advance(s)
	next.SelectedInstitution = &fip
	next.IdentifierTypes = append([]string(nil), identifierTypes...)
	return next, nil
}

// AccountsDiscovered records the discovery result. An empty result is a
// failure, not an empty success: linking needs at least one candidate.
func (e *Engine) AccountsDiscovered(s *domain.JourneySession, accounts []domain.DiscoveredAccount) (*domain.JourneySession, error) {
	if err := e.RequireStage(s, domain.StageDiscoveringAccounts); err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return e.Fail(s, classify.NoAccounts()), nil
	}
	next := e.advance(s)
	next.DiscoveredAccounts = append([]domain.DiscoveredAccount(nil), accounts...)
	next.AccountsToLink = make(map[string]bool)
	return next, nil
}

// ValidateLinkSelection resolves the selected reference numbers against the
// discovered accounts. At least one is required and every reference must be
// a discovered one.
func (e *Engine) ValidateLinkSelection(s *domain.JourneySession, refs []string) ([]domain.DiscoveredAccount, *domain.ErrorInfo) {
	if len(refs) == 0 {
		info := classify.Validation("select at least one account to link")
		return nil, &info
	}
	accounts := make([]domain.DiscoveredAccount, 0, len(refs))
	for _, ref := range refs {
		acc, ok := s.DiscoveredAccount(ref)
		if !ok {
			info := classify.Validation(fmt.Sprintf("account %q was not discovered", ref))
			return nil, &info
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

// LinkStarted records an accepted link request: the selection, its linking
// reference, and the OTP challenge guarding confirmation.
func (e *Engine) LinkStarted(s *domain.JourneySession, refs []string, linkReference string) (*domain.JourneySession, error) {
	if err := e.RequireStage(s, domain.StageSelectingAccountsToLink); err != nil {
		return nil, err
	}
	next := e.advance(s)
	next.AccountsToLink = make(map[string]bool, len(refs))
	for _, ref := range refs {
		next.AccountsToLink[ref] = true
	}
	next.LinkReference = linkReference
	next.LinkingOTP = e.newChallenge(linkReference)
	return next, nil
}

// LinkVerified records confirmed links and the consent detail fetched for review.
func (e *Engine) LinkVerified(s *domain.JourneySession, linked []domain.LinkedAccount, detail *domain.ConsentDetail) (*domain.JourneySession, error) {
	if err := e.RequireStage(s, domain.StageVerifyingLinkingOTP); err != nil {
		return nil, err
	}
	next := e.advance(s)
	next.LinkedAccounts = append([]domain.LinkedAccount(nil), linked...)
	next.ConsentDetail = detail
	next.LinkingOTP = nil
	next.ConsentAccountSelection = make(map[string]bool)
	return next, nil
}

// ValidateConsentSelection resolves the consent account selection against
// the linked accounts. At least one is required, by analogy with linking.
func (e *Engine) ValidateConsentSelection(s *domain.JourneySession, refs []string) ([]domain.LinkedAccount, *domain.ErrorInfo) {
	if len(refs) == 0 {
		info := classify.Validation("select at least one account for consent")
		return nil, &info
	}
	accounts := make([]domain.LinkedAccount, 0, len(refs))
	for _, ref := range refs {
		acc, ok := s.LinkedAccount(ref)
		if !ok {
			info := classify.Validation(fmt.Sprintf("account %q is not linked", ref))
			return nil, &info
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

// ConsentAccountsSelected records the accounts the consent will cover.
func (e *Engine) ConsentAccountsSelected(s *domain.JourneySession, refs []string) (*domain.JourneySession, error) {
	if err := e.RequireStage(s, domain.StageReviewingConsent); err != nil {
		return nil, err
	}
	next := e.advance(s)
	next.ConsentAccountSelection = make(map[string]bool, len(refs))
	for _, ref := range refs {
		next.ConsentAccountSelection[ref] = true
	}
	return next, nil
}

// Decided records the terminal approve/deny outcome. The decision is set
// exactly once; the session is immutable afterwards.
func (e *Engine) Decided(s *domain.JourneySession, decision domain.Decision, artifact *domain.ConsentArtifact) (*domain.JourneySession, error) {
	if err := e.RequireStage(s, domain.StageApprovingConsent); err != nil {
		return nil, err
	}
	next := e.advance(s)
	next.Decision = decision
	next.Artifact = artifact
	return next, nil
}

func (e *Engine) newChallenge(reference string) *domain.OTPChallenge {
	issued := e.now()
	return &domain.OTPChallenge{
		Reference:         reference,
		IssuedAt:          issued,
		ResendAvailableAt: issued.Add(e.resendCooldown),
	}
}
