// Package testutils provides a scripted AA client fake shared by the
// controller and HTTP API tests.
package testutils

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/kitewire/consentflow/pkg/domain"
	"github.com/kitewire/consentflow/pkg/ports"
)

// FakeClient implements ports.AAClient with scripted responses. It records
// per-operation call counts, supports one-shot failures, and can hold an
// operation open so tests can interleave other calls while it is in flight.
type FakeClient struct {
	mu       sync.Mutex
	calls    map[string]int
	failNext map[string]error
	holds    map[string]*holdGate

	UserID          string
	Institutions    []domain.FIPOption
	IdentifierTypes []string
	Accounts        []domain.DiscoveredAccount
	Linked          []domain.LinkedAccount
	Detail          *domain.ConsentDetail
	Artifact        *domain.ConsentArtifact
	DenyArtifact    *domain.ConsentArtifact
}

// NewFakeClient returns a fake preloaded with a small consistent world:
// one enabled FIP, two discoverable deposit accounts, and a consent
// detail covering them.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		calls:    make(map[string]int),
		failNext: make(map[string]error),
		holds:    make(map[string]*holdGate),
		UserID:   "user-" + uuid.NewString(),
		Institutions: []domain.FIPOption{
			{ID: "fip-axis", Name: "Axis Bank", Enabled: true},
			{ID: "fip-hdfc", Name: "HDFC Bank", Enabled: true},
		},
		IdentifierTypes: []string{"MOBILE"},
		Accounts: []domain.DiscoveredAccount{
			{ReferenceNumber: "acc-1", MaskedNumber: "XXXX1234", AccountType: "SAVINGS", FIType: "DEPOSIT"},
			{ReferenceNumber: "acc-2", MaskedNumber: "XXXX5678", AccountType: "CURRENT", FIType: "DEPOSIT"},
		},
		Linked: []domain.LinkedAccount{
			{ReferenceNumber: "acc-1", MaskedNumber: "XXXX1234", FIPID: "fip-axis", FIType: "DEPOSIT", LinkReference: "link-acc-1"},
			{ReferenceNumber: "acc-2", MaskedNumber: "XXXX5678", FIPID: "fip-axis", FIType: "DEPOSIT", LinkReference: "link-acc-2"},
		},
		Detail: &domain.ConsentDetail{
			Purpose:       "Wealth management",
			FITypes:       []string{"DEPOSIT"},
			RequesterName: "Kitewire Finance",
			Status:        domain.ConsentStatusActive,
		},
		Artifact: &domain.ConsentArtifact{
			IntentID:   uuid.NewString(),
			ConsentIDs: []string{uuid.NewString()},
		},
		DenyArtifact: &domain.ConsentArtifact{
			IntentID: uuid.NewString(),
		},
	}
}

// Calls returns how many times the named operation settled.
func (f *FakeClient) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// FailNext scripts a one-shot failure for the named operation.
func (f *FakeClient) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext[op] = err
}

// holdGate wedges one call open: entered closes when the call arrives,
// released lets it settle.
type holdGate struct {
	entered  chan struct{}
	released chan struct{}
}

// Hold blocks the next call to op until the returned release function is
// invoked. The entered channel closes once the call is in flight; the call
// counts as settled only after release.
func (f *FakeClient) Hold(op string) (entered <-chan struct{}, release func()) {
	g := &holdGate{
		entered:  make(chan struct{}),
		released: make(chan struct{}),
	}
	f.mu.Lock()
	f.holds[op] = g
	f.mu.Unlock()
	return g.entered, func() { close(g.released) }
}

// Fail is shorthand for a protocol error with the given code.
func Fail(code, message string) *ports.ClientError {
	return &ports.ClientError{Code: code, Message: message}
}

// settle records the call, waits on any hold, and pops a scripted failure.
func (f *FakeClient) settle(op string) error {
	f.mu.Lock()
	gate := f.holds[op]
	delete(f.holds, op)
	f.mu.Unlock()

	if gate != nil {
		close(gate.entered)
		<-gate.released
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if err, ok := f.failNext[op]; ok {
		delete(f.failNext, op)
		return err
	}
	return nil
}

func (f *FakeClient) Initialize(ctx context.Context) error {
	return f.settle("initialize")
}

func (f *FakeClient) Connect(ctx context.Context) error {
	return f.settle("connect")
}

func (f *FakeClient) Login(ctx context.Context, username, mobile string) (string, error) {
	if err := f.settle("login"); err != nil {
		return "", err
	}
	return "otp-" + uuid.NewString(), nil
}

func (f *FakeClient) VerifyLoginOTP(ctx context.Context, code string) (string, error) {
	if err := f.settle("verify_login_otp"); err != nil {
		return "", err
	}
	return f.UserID, nil
}

func (f *FakeClient) ListInstitutions(ctx context.Context) ([]domain.FIPOption, error) {
	if err := f.settle("list_institutions"); err != nil {
		return nil, err
	}
	return f.Institutions, nil
}

func (f *FakeClient) InstitutionCapabilities(ctx context.Context, fipID string) ([]string, error) {
	if err := f.settle("institution_capabilities"); err != nil {
		return nil, err
	}
	return f.IdentifierTypes, nil
}

func (f *FakeClient) DiscoverAccounts(ctx context.Context, fipID string, identifiers []domain.Identifier) ([]domain.DiscoveredAccount, error) {
	if err := f.settle("discover_accounts"); err != nil {
		return nil, err
	}
	return f.Accounts, nil
}

func (f *FakeClient) LinkAccounts(ctx context.Context, fipID string, accounts []domain.DiscoveredAccount) (string, error) {
	if err := f.settle("link_accounts"); err != nil {
		return "", err
	}
	return "link-" + uuid.NewString(), nil
}

func (f *FakeClient) VerifyLinkingOTP(ctx context.Context, referenceNumber, code string) ([]domain.LinkedAccount, error) {
	if err := f.settle("verify_linking_otp"); err != nil {
		return nil, err
	}
	return f.Linked, nil
}

func (f *FakeClient) ConsentDetail(ctx context.Context, consentHandleID string) (*domain.ConsentDetail, error) {
	if err := f.settle("consent_detail"); err != nil {
		return nil, err
	}
	return f.Detail, nil
}

func (f *FakeClient) ApproveConsent(ctx context.Context, consentHandleID string, accounts []domain.LinkedAccount) (*domain.ConsentArtifact, error) {
	if err := f.settle("approve_consent"); err != nil {
		return nil, err
	}
	return f.Artifact, nil
}

func (f *FakeClient) DenyConsent(ctx context.Context, consentHandleID string, accounts []domain.LinkedAccount) (*domain.ConsentArtifact, error) {
	if err := f.settle("deny_consent"); err != nil {
		return nil, err
	}
	return f.DenyArtifact, nil
}
