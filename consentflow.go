package consentflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/kitewire/consentflow/internal/classify"
	"github.com/kitewire/consentflow/internal/flow"
	"github.com/kitewire/consentflow/internal/logging"
	"github.com/kitewire/consentflow/internal/otp"
	"github.com/kitewire/consentflow/pkg/adapters/memory"
	"github.com/kitewire/consentflow/pkg/domain"
	"github.com/kitewire/consentflow/pkg/observability"
	"github.com/kitewire/consentflow/pkg/ports"
	"github.com/kitewire/consentflow/pkg/session"
)

// Controller is the public facade of the consent-and-linking journey.
// The presentation layer drives it with user intents and renders the
// session snapshot it returns; it never mutates session fields directly.
//
// All AA client calls for one journey are serialized: a duplicate
// submission arriving while a call is in flight is ignored (the current
// snapshot is returned) rather than racing a second call that would issue
// two live OTP challenges or two link references.
//
// Expected protocol failures never surface as Go errors; they are
// classified onto the session's Error field. Returned errors indicate
// caller misuse (wrong stage, unknown journey), not protocol outcomes.
type Controller struct {
	client   ports.AAClient
	store    ports.SessionStore
	sessions *session.Manager
	flow     *flow.Engine
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	metrics  *observability.Metrics
	locker   ports.DistributedLocker

	cooldown time.Duration
	now      func() time.Time

	mu     sync.Mutex
	timers map[string]*journeyTimers

	// commitMu serializes run's existence re-check plus write against
	// ExitJourney's delete. Without it an exit landing between the
	// re-check and the save would be overwritten, resurrecting the
	// discarded session. The critical section does no client I/O, so
	// exits never wait on an in-flight gateway call.
	commitMu sync.Mutex
}

// journeyTimers are the two independent resend countdowns of one session.
type journeyTimers struct {
	login   *otp.Timer
	linking *otp.Timer
}

// Option defines a functional option for configuring the Controller.
type Option func(*Controller)

// WithStore injects a custom session store (default: in-memory).
func WithStore(store ports.SessionStore) Option {
	return func(c *Controller) {
		c.store = store
	}
}

// WithLocker enables distributed locking across orchestrator replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(c *Controller) {
		c.locker = locker
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Controller) {
		c.hooks = hooks
	}
}

// WithMetrics records journey metrics on the given collectors.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithResendCooldown overrides the OTP resend cooldown (default 30s).
func WithResendCooldown(d time.Duration) Option {
	return func(c *Controller) {
		c.cooldown = d
	}
}

// WithClock injects a clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// New initializes a journey Controller around the given AA client.
func New(client ports.AAClient, opts ...Option) (*Controller, error) {
	if client == nil {
		return nil, fmt.Errorf("aa client is required")
	}

	c := &Controller{
		client:   client,
		cooldown: flow.DefaultResendCooldown,
		now:      time.Now,
		timers:   make(map[string]*journeyTimers),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.store == nil {
		c.store = memory.NewStore()
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}

	sessionOpts := []session.Option{session.WithLogger(c.logger)}
	if c.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(c.locker))
	}
	c.sessions = session.NewManager(c.store, sessionOpts...)

	c.flow = flow.NewEngine(
		flow.WithResendCooldown(c.cooldown),
		flow.WithNow(c.now),
	)

	if c.metrics != nil {
		hooks := c.hooks
		c.hooks = c.metrics.Hooks(&hooks)
	}

	return c, nil
}

// StartJourney creates (or resumes) the journey for a consent handle and
// attempts the gateway connection. A connection failure pins the session
// at the initializing stage; calling StartJourney again retries it.
func (c *Controller) StartJourney(ctx context.Context, consentHandleID string) (*domain.JourneySession, error) {
	if consentHandleID == "" {
		return nil, fmt.Errorf("consent handle id is required")
	}

	if _, err := c.sessions.LoadOrStart(ctx, consentHandleID); err != nil {
		return nil, err
	}

	return c.run(ctx, consentHandleID, func(ctx context.Context, s *domain.JourneySession) (*domain.JourneySession, error) {
		if s.Stage != domain.StageInitializing {
			// Already connected; resuming is a read, not a restart.
			return s, nil
		}

		done := c.timeOp("connect")
		err := c.client.Initialize(ctx)
		if err == nil {
			err = c.client.Connect(ctx)
		}
		done()
		if err != nil {
			return c.flow.Fail(s, classify.Failure(s.Stage, err)), nil
		}
		return c.flow.Connected(s)
	})
}

// SubmitCredentials submits the username and mobile number at the login
// stage. On acceptance the session holds a live login OTP challenge and
// its resend countdown starts.
func (c *Controller) SubmitCredentials(ctx context.Context, consentHandleID, username, mobile string) (*domain.JourneySession, error) {
	return c.run(ctx, consentHandleID, func(ctx context.Context, s *domain.JourneySession) (*domain.JourneySession, error) {
		if err := c.flow.RequireStage(s, domain.StageLoggingIn); err != nil {
			return nil, err
		}

		creds := domain.Credentials{Username: username, Mobile: mobile}
		if vErr := c.flow.ValidateCredentials(creds); vErr != nil {
			return c.flow.Fail(s, *vErr), nil
		}

		done := c.timeOp("login")
		ref, err := c.client.Login(ctx, creds.Username, creds.Mobile)
		done()
		if err != nil {
			return c.flow.Fail(s, classify.Failure(s.Stage, err)), nil
		}

		next, err := c.flow.LoginStarted(s, creds, ref)
		if err != nil {
			return nil, err
		}
		c.timersFor(consentHandleID).login.Start()
		return next, nil
	})
}

// VerifyLoginOTP submits the 6-digit login code. The presentation layer
// fires this both on explicit submit and when the code buffer fills; the
// engine sees a single event either way. On success the institution list
// is fetched and the journey moves to institution selection.
func (c *Controller) VerifyLoginOTP(ctx context.Context, consentHandleID, code string) (*domain.JourneySession, error) {
	return c.run(ctx, consentHandleID, func(ctx context.Context, s *domain.JourneySession) (*domain.JourneySession, error) {
		if err := c.flow.RequireStage(s, domain.StageAwaitingLoginOTP); err != nil {
			return nil, err
		}

		if vErr := c.flow.ValidateOTPCode(code); vErr != nil {
			return c.flow.Fail(s, *vErr), nil
		}

		done := c.timeOp("verify_login_otp")
		userID, err := c.client.VerifyLoginOTP(ctx, code)
		done()
		if err != nil {
			return c.flow.FailOTPAttempt(s, classify.Failure(s.Stage, err)), nil
		}

		done = c.timeOp("list_institutions")
		institutions, err := c.client.ListInstitutions(ctx)
		done()
		if err != nil {
			return c.flow.Fail(s, classify.Failure(s.Stage, err)), nil
		}

		next, err := c.flow.LoginVerified(s, userID, institutions)
		if err != nil {
			return nil, err
		}
		if next.Stage != domain.StageAwaitingLoginOTP {
			// Challenge stage exited: its countdown dies with it.
			c.timersFor(consentHandleID).login.Cancel()
		}
		return next, nil
	})
}

// ResendOTP reissues the live OTP challenge for the current stage (login
// or linking). During the cooldown window this is a no-op, not an error:
// exactly one new challenge is issued per cooldown.
func (c *Controller) ResendOTP(ctx context.Context, consentHandleID string) (*domain.JourneySession, error) {
	return c.run(ctx, consentHandleID, func(ctx context.Context, s *domain.JourneySession) (*domain.JourneySession, error) {
		timers := c.timersFor(consentHandleID)

		switch s.Stage {
		case domain.StageAwaitingLoginOTP:
			// The persisted ResendAvailableAt is authoritative: a session
			// restored on a fresh controller has no running timer, yet the
			// cooldown from the original challenge still applies.
			if !timers.login.Expired() || (s.LoginOTP != nil && c.now().Before(s.LoginOTP.ResendAvailableAt)) {
				return s, nil
			}
			if s.Credentials == nil {
				return nil, fmt.Errorf("%w: no credentials on session", domain.ErrInvalidStage)
			}
			done := c.timeOp("login")
			ref, err := c.client.Login(ctx, s.Credentials.Username, s.Credentials.Mobile)
			done()
			if err != nil {
				return c.flow.Fail(s, classify.Failure(s.Stage, err)), nil
			}
			next, err := c.flow.ChallengeReissued(s, ref)
			if err != nil {
				return nil, err
			}
			timers.login.Start()
			return next, nil

		case domain.StageVerifyingLinkingOTP:
			if !timers.linking.Expired() || (s.LinkingOTP != nil && c.now().Before(s.LinkingOTP.ResendAvailableAt)) {
				return s, nil
			}
			accounts, vErr := c.flow.ValidateLinkSelection(s, setToSlice(s.AccountsToLink))
			if vErr != nil {
				return c.flow.Fail(s, *vErr), nil
			}
			done := c.timeOp("link_accounts")
			ref, err := c.client.LinkAccounts(ctx, s.SelectedInstitution.ID, accounts)
			done()
			if err != nil {
				return c.flow.Fail(s, classify.Failure(s.Stage, err)), nil
			}
			next, err := c.flow.ChallengeReissued(s, ref)
			if err != nil {
				return nil, err
			}
			next.LinkReference = ref
			timers.linking.Start()
			return next, nil

		default:
			return nil, fmt.Errorf("%w: no OTP challenge at %q", domain.ErrInvalidStage, s.Stage)
		}
	})
}

// SelectInstitution records the chosen FIP. Membership and enablement are
// validated locally; the FIP's supported identifier types are then fetched
// to seed account discovery.
func (c *Controller) SelectInstitution(ctx context.Context, consentHandleID, fipID string) (*domain.JourneySession, error) {
	return c.run(ctx, consentHandleID, func(ctx context.Context, s *domain.JourneySession) (*domain.JourneySession, error) {
		if err := c.flow.RequireStage(s, domain.StageSelectingInstitution); err != nil {
			return nil, err
		}

		fip, vErr := c.flow.ValidateInstitution(s, fipID)
		if vErr != nil {
			return c.flow.Fail(s, *vErr), nil
		}

		done := c.timeOp("institution_capabilities")
		identifierTypes, err := c.client.InstitutionCapabilities(ctx, fip.ID)
		done()
		if err != nil {
			return c.flow.Fail(s, classify.Failure(s.Stage, err)), nil
		}

		return c.flow.InstitutionSelected(s, fip, identifierTypes)
	})
}

// DiscoverAccounts queries the selected FIP for the user's accounts using
// the registered mobile number. An empty result is a discovery failure
// because linking needs at least one candidate.
func (c *Controller) DiscoverAccounts(ctx context.Context, consentHandleID string) (*domain.JourneySession, error) {
	return c.run(ctx, consentHandleID, func(ctx context.Context, s *domain.JourneySession) (*domain.JourneySession, error) {
		if err := c.flow.RequireStage(s, domain.StageDiscoveringAccounts); err != nil {
			return nil, err
		}
		if s.Credentials == nil || s.Credentials.Mobile == "" {
			return c.flow.Fail(s, classify.Validation("mobile number is required for discovery")), nil
		}

		identifiers := []domain.Identifier{{Type: "MOBILE", Value: s.Credentials.Mobile}}

		done := c.timeOp("discover_accounts")
		accounts, err := c.client.DiscoverAccounts(ctx, s.SelectedInstitution.ID, identifiers)
		done()
		if err != nil {
			return c.flow.Fail(s, classify.Failure(s.Stage, err)), nil
		}

		return c.flow.AccountsDiscovered(s, accounts)
	})
}

// SelectAccountsAndLink submits the selected discovered accounts for
// linking. The selection is validated locally first: an empty or unknown
// selection never reaches the AA client.
func (c *Controller) SelectAccountsAndLink(ctx context.Context, consentHandleID string, accountRefs []string) (*domain.JourneySession, error) {
	return c.run(ctx, consentHandleID, func(ctx context.Context, s *domain.JourneySession) (*domain.JourneySession, error) {
		if err := c.flow.RequireStage(s, domain.StageSelectingAccountsToLink); err != nil {
			return nil, err
		}

		accounts, vErr := c.flow.ValidateLinkSelection(s, accountRefs)
		if vErr != nil {
			return c.flow.Fail(s, *vErr), nil
		}

		done := c.timeOp("link_accounts")
		ref, err := c.client.LinkAccounts(ctx, s.SelectedInstitution.ID, accounts)
		done()
		if err != nil {
			return c.flow.Fail(s, classify.Failure(s.Stage, err)), nil
		}

		next, err := c.flow.LinkStarted(s, accountRefs, ref)
		if err != nil {
			return nil, err
		}
		c.timersFor(consentHandleID).linking.Start()
		return next, nil
	})
}

// VerifyLinkingOTP submits the 6-digit link confirmation code. On success
// the linked accounts are recorded and the consent detail is fetched for
// review.
func (c *Controller) VerifyLinkingOTP(ctx context.Context, consentHandleID, code string) (*domain.JourneySession, error) {
	return c.run(ctx, consentHandleID, func(ctx context.Context, s *domain.JourneySession) (*domain.JourneySession, error) {
		if err := c.flow.RequireStage(s, domain.StageVerifyingLinkingOTP); err != nil {
			return nil, err
		}

		if vErr := c.flow.ValidateOTPCode(code); vErr != nil {
			return c.flow.Fail(s, *vErr), nil
		}

		done := c.timeOp("verify_linking_otp")
		linked, err := c.client.VerifyLinkingOTP(ctx, s.LinkReference, code)
		done()
		if err != nil {
			return c.flow.FailOTPAttempt(s, classify.Failure(s.Stage, err)), nil
		}

		done = c.timeOp("consent_detail")
		detail, err := c.client.ConsentDetail(ctx, s.ConsentHandleID)
		done()
		if err != nil {
			return c.flow.Fail(s, classify.Failure(s.Stage, err)), nil
		}

		next, err := c.flow.LinkVerified(s, linked, detail)
		if err != nil {
			return nil, err
		}
		c.timersFor(consentHandleID).linking.Cancel()
		return next, nil
	})
}

// SelectConsentAccounts records which linked accounts the consent will
// cover. At least one is required.
func (c *Controller) SelectConsentAccounts(ctx context.Context, consentHandleID string, accountRefs []string) (*domain.JourneySession, error) {
	return c.run(ctx, consentHandleID, func(ctx context.Context, s *domain.JourneySession) (*domain.JourneySession, error) {
		if err := c.flow.RequireStage(s, domain.StageReviewingConsent); err != nil {
			return nil, err
		}

		if _, vErr := c.flow.ValidateConsentSelection(s, accountRefs); vErr != nil {
			return c.flow.Fail(s, *vErr), nil
		}

		return c.flow.ConsentAccountsSelected(s, accountRefs)
	})
}

// ApproveConsent records approval for the selected accounts and completes
// the journey.
func (c *Controller) ApproveConsent(ctx context.Context, consentHandleID string) (*domain.JourneySession, error) {
	return c.decide(ctx, consentHandleID, domain.DecisionApproved)
}

// DenyConsent records denial of the consent request and completes the
// journey.
func (c *Controller) DenyConsent(ctx context.Context, consentHandleID string) (*domain.JourneySession, error) {
	return c.decide(ctx, consentHandleID, domain.DecisionDenied)
}

func (c *Controller) decide(ctx context.Context, consentHandleID string, decision domain.Decision) (*domain.JourneySession, error) {
	return c.run(ctx, consentHandleID, func(ctx context.Context, s *domain.JourneySession) (*domain.JourneySession, error) {
		if err := c.flow.RequireStage(s, domain.StageApprovingConsent); err != nil {
			return nil, err
		}

		selected, vErr := c.flow.ValidateConsentSelection(s, setToSlice(s.ConsentAccountSelection))
		if vErr != nil {
			return c.flow.Fail(s, *vErr), nil
		}

		var (
			artifact *domain.ConsentArtifact
			err      error
		)
		if decision == domain.DecisionApproved {
			done := c.timeOp("approve_consent")
			artifact, err = c.client.ApproveConsent(ctx, s.ConsentHandleID, selected)
			done()
		} else {
			done := c.timeOp("deny_consent")
			artifact, err = c.client.DenyConsent(ctx, s.ConsentHandleID, selected)
			done()
		}
		if err != nil {
			return c.flow.Fail(s, classify.Failure(s.Stage, err)), nil
		}

		return c.flow.Decided(s, decision, artifact)
	})
}

// Session returns the current snapshot for the presentation layer.
func (c *Controller) Session(ctx context.Context, consentHandleID string) (*domain.JourneySession, error) {
	return c.store.Load(ctx, consentHandleID)
}

// ExitJourney discards the session immediately, independent of any
// in-flight client call: a call that settles after exit finds the session
// gone and its result is dropped, never applied.
func (c *Controller) ExitJourney(ctx context.Context, consentHandleID string) error {
	c.dropTimers(consentHandleID)
	c.commitMu.Lock()
	err := c.store.Delete(ctx, consentHandleID)
	c.commitMu.Unlock()
	if err != nil {
		return err
	}
	c.logger.Info("journey exited", "consent_handle_id", consentHandleID)
	return nil
}

// run executes one journey operation under the session's lock: load,
// apply, re-check existence, save. Duplicate submissions that arrive while
// the lock is held are ignored and the current snapshot is returned.
func (c *Controller) run(ctx context.Context, consentHandleID string, fn func(context.Context, *domain.JourneySession) (*domain.JourneySession, error)) (*domain.JourneySession, error) {
	var out *domain.JourneySession

	acquired, err := c.sessions.TryWithLock(ctx, consentHandleID, func(ctx context.Context) error {
		prev, err := c.store.Load(ctx, consentHandleID)
		if err != nil {
			return err
		}

		next, err := fn(ctx, prev)
		if err != nil {
			return err
		}

		// The journey may have been exited while the client call was in
		// flight. A discarded session is never resurrected: the re-check
		// and the write commit as one unit against ExitJourney's delete.
		c.commitMu.Lock()
		if _, err := c.store.Load(ctx, consentHandleID); err != nil {
			c.commitMu.Unlock()
			c.logger.Debug("dropping result for discarded session", "consent_handle_id", consentHandleID)
			return err
		}

		if next.Stage.Terminal() {
			// Terminal journeys are discarded; the final snapshot is
			// returned to the caller but no longer addressable.
			if err := c.store.Delete(ctx, consentHandleID); err != nil {
				c.commitMu.Unlock()
				return err
			}
			c.dropTimers(consentHandleID)
		} else if err := c.store.Save(ctx, consentHandleID, next); err != nil {
			c.commitMu.Unlock()
			return err
		}
		c.commitMu.Unlock()

		c.emit(ctx, prev, next)
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !acquired {
		c.logger.Debug("duplicate submission ignored", "consent_handle_id", consentHandleID)
		return c.store.Load(ctx, consentHandleID)
	}
	return out, nil
}

// emit fires lifecycle hooks and logging for an applied transition.
// No-op operations hand back the loaded snapshot unchanged; nothing fires.
func (c *Controller) emit(ctx context.Context, prev, next *domain.JourneySession) {
	if prev == next {
		return
	}
	base := domain.EventBase{
		Timestamp:       c.now(),
		ConsentHandleID: next.ConsentHandleID,
	}

	if next.Stage != prev.Stage {
		c.logger.Info("stage entered", "consent_handle_id", next.ConsentHandleID, "from", prev.Stage, "to", next.Stage)
		if c.hooks.OnStageEnter != nil {
			e := &domain.StageEvent{EventBase: base, From: prev.Stage, To: next.Stage}
			e.Type = domain.EventStageEnter
			c.hooks.OnStageEnter(ctx, e)
		}
	}

	if next.Error != nil {
		c.logger.Warn("journey error", "consent_handle_id", next.ConsentHandleID, "stage", next.Stage, "kind", next.Error.Kind, "message", next.Error.Message)
		if c.hooks.OnError != nil {
			e := &domain.ErrorEvent{EventBase: base, Stage: next.Stage, Info: *next.Error}
			e.Type = domain.EventError
			c.hooks.OnError(ctx, e)
		}
	}

	if next.Stage.Terminal() && next.Decision != "" {
		if c.hooks.OnDecision != nil {
			e := &domain.DecisionEvent{EventBase: base, Decision: next.Decision}
			e.Type = domain.EventDecision
			c.hooks.OnDecision(ctx, e)
		}
	}
}

// timersFor returns (creating if needed) the session's countdown pair.
func (c *Controller) timersFor(consentHandleID string) *journeyTimers {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.timers[consentHandleID]
	if !ok {
		t = &journeyTimers{
			login:   otp.NewTimer(c.cooldown, otp.WithNow(c.now)),
			linking: otp.NewTimer(c.cooldown, otp.WithNow(c.now)),
		}
		c.timers[consentHandleID] = t
	}
	return t
}

// dropTimers cancels and forgets the session's countdowns.
func (c *Controller) dropTimers(consentHandleID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.timers[consentHandleID]; ok {
		t.login.Cancel()
		t.linking.Cancel()
		delete(c.timers, consentHandleID)
	}
}

// timeOp measures one AA client call when metrics are enabled.
func (c *Controller) timeOp(operation string) func() {
	if c.metrics == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		c.metrics.ObserveClientCall(operation, start)
	}
}

func setToSlice(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k, v := range set {
		if v {
			out = append(out, k)
		}
	}
	return out
}
