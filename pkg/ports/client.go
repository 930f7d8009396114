package ports

import (
	"context"
	"fmt"

	"github.com/kitewire/consentflow/pkg/domain"
)

// AAClient is the boundary with the regulated Account Aggregator protocol
// client. Every operation maps a raw external payload to a closed domain
// type on receipt; the rest of the engine never sees untyped data.
//
// Protocol-level failures are returned as *ClientError. Transport failures
// (timeouts, connection resets) are returned as ordinary errors and are
// classified as network failures by the orchestrator.
type AAClient interface {
	// Initialize prepares the client with its configured credentials.
	Initialize(ctx context.Context) error

	// Connect establishes the session with the AA gateway.
	Connect(ctx context.Context) error

	// Login starts user authentication and returns an OTP reference.
	Login(ctx context.Context, username, mobile string) (otpReference string, err error)

	// VerifyLoginOTP confirms the login challenge and returns the user ID.
	VerifyLoginOTP(ctx context.Context, code string) (userID string, err error)

	// ListInstitutions returns the FIPs participating in the ecosystem.
	ListInstitutions(ctx context.Context) ([]domain.FIPOption, error)

	// InstitutionCapabilities returns the discovery identifier types the
	// given FIP supports.
	InstitutionCapabilities(ctx context.Context, fipID string) ([]string, error)

	// DiscoverAccounts queries a FIP for the user's accounts.
	DiscoverAccounts(ctx context.Context, fipID string, identifiers []domain.Identifier) ([]domain.DiscoveredAccount, error)

	// LinkAccounts submits accounts for linking and returns the reference
	// correlating the subsequent confirmation OTP.
	LinkAccounts(ctx context.Context, fipID string, accounts []domain.DiscoveredAccount) (referenceNumber string, err error)

	// VerifyLinkingOTP confirms the link challenge and returns the linked accounts.
	VerifyLinkingOTP(ctx context.Context, referenceNumber, code string) ([]domain.LinkedAccount, error)

	// ConsentDetail fetches the data-sharing request under review.
	ConsentDetail(ctx context.Context, consentHandleID string) (*domain.ConsentDetail, error)

	// ApproveConsent records approval for the selected linked accounts.
	ApproveConsent(ctx context.Context, consentHandleID string, accounts []domain.LinkedAccount) (*domain.ConsentArtifact, error)

	// DenyConsent records denial of the consent request.
	DenyConsent(ctx context.Context, consentHandleID string, accounts []domain.LinkedAccount) (*domain.ConsentArtifact, error)
}

// ClientError is a structured protocol-level failure from the AA client,
// carrying the gateway's message and optional machine code.
type ClientError struct {
	Code    string
	Message string
}

func (e *ClientError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}
