package domain

// JourneySession is the aggregate root of one consent-and-linking journey.
// Exactly one live instance exists per active journey; it is never persisted
// durably. A session that reaches the terminal stage (or is exited) is
// discarded, and a new journey restarts from StageInitializing.
type JourneySession struct {
	// ConsentHandleID correlates the journey with the requesting
	// application's data-sharing request. Immutable once set.
	ConsentHandleID string

	// Stage is the current position in the state machine.
	Stage Stage

	// Error is the last classified failure, cleared on every successful
	// transition. A non-nil Error always pins Stage at its pre-transition
	// value; the two never advance together.
	Error *ErrorInfo

	// UserID is assigned after login-OTP verification.
	UserID string

	Credentials *Credentials

	LoginOTP   *OTPChallenge
	LinkingOTP *OTPChallenge

	// Institutions is the participant list fetched after login.
	// Immutable for the session once populated.
	Institutions        []FIPOption
	SelectedInstitution *FIPOption

	// IdentifierTypes are the discovery identifier types the selected
	// institution supports.
	IdentifierTypes []string

	DiscoveredAccounts []DiscoveredAccount

	// AccountsToLink is the user's selection, always a subset of
	// DiscoveredAccounts reference numbers.
	AccountsToLink map[string]bool

	// LinkReference correlates the pending link request with its OTP.
	LinkReference string

	LinkedAccounts []LinkedAccount

	ConsentDetail *ConsentDetail

	// ConsentAccountSelection is always a subset of LinkedAccounts
	// reference numbers.
	ConsentAccountSelection map[string]bool

	// Decision is set exactly once, at the terminal stage.
	Decision Decision

	Artifact *ConsentArtifact
}

// NewSession creates a fresh journey at the initializing stage.
func NewSession(consentHandleID string) *JourneySession {
	return &JourneySession{
		ConsentHandleID:         consentHandleID,
		Stage:                   StageInitializing,
		AccountsToLink:          make(map[string]bool),
		ConsentAccountSelection: make(map[string]bool),
	}
}

// Clone returns a deep copy so callers can never mutate shared state.
func (s *JourneySession) Clone() *JourneySession {
	c := *s
	if s.Error != nil {
		e := *s.Error
		c.Error = &e
	}
	if s.Credentials != nil {
		cr := *s.Credentials
		c.Credentials = &cr
	}
	if s.LoginOTP != nil {
		o := *s.LoginOTP
		c.LoginOTP = &o
	}
	if s.LinkingOTP != nil {
		o := *s.LinkingOTP
		c.LinkingOTP = &o
	}
	if s.SelectedInstitution != nil {
		f := *s.SelectedInstitution
		c.SelectedInstitution = &f
	}
	if s.ConsentDetail != nil {
		d := *s.ConsentDetail
		d.FITypes = append([]string(nil), s.ConsentDetail.FITypes...)
		c.ConsentDetail = &d
	}
	if s.Artifact != nil {
		a := *s.Artifact
		a.ConsentIDs = append([]string(nil), s.Artifact.ConsentIDs...)
		c.Artifact = &a
	}
	c.Institutions = append([]FIPOption(nil), s.Institutions...)
	c.IdentifierTypes = append([]string(nil), s.IdentifierTypes...)
	c.DiscoveredAccounts = append([]DiscoveredAccount(nil), s.DiscoveredAccounts...)
	c.LinkedAccounts = append([]LinkedAccount(nil), s.LinkedAccounts...)
	c.AccountsToLink = cloneSet(s.AccountsToLink)
	c.ConsentAccountSelection = cloneSet(s.ConsentAccountSelection)
	return &c
}

func cloneSet(set map[string]bool) map[string]bool {
	out := make(map[string]bool, len(set))
	for k, v := range set {
		out[k] = v
	}
	return out
}

// DiscoveredAccount returns the discovered account with the given reference
// number, if present.
func (s *JourneySession) DiscoveredAccount(ref string) (DiscoveredAccount, bool) {
	for _, a := range s.DiscoveredAccounts {
		if a.ReferenceNumber == ref {
			return a, true
		}
	}
	return DiscoveredAccount{}, false
}

// LinkedAccount returns the linked account with the given reference number,
// if present.
func (s *JourneySession) LinkedAccount(ref string) (LinkedAccount, bool) {
	for _, a := range s.LinkedAccounts {
		if a.ReferenceNumber == ref {
			return a, true
		}
	}
	return LinkedAccount{}, false
}

// Institution returns the fetched institution option with the given ID.
func (s *JourneySession) Institution(fipID string) (FIPOption, bool) {
	for _, f := range s.Institutions {
		if f.ID == fipID {
			return f, true
		}
	}
	return FIPOption{}, false
}
