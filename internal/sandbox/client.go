// Package sandbox provides a self-contained AA client for local
// development. It accepts any credentials, expects the OTP 123456, and
// serves a fixed set of institutions and accounts.
package sandbox

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kitewire/consentflow/pkg/domain"
	"github.com/kitewire/consentflow/pkg/ports"
)

// OTP is the only code the sandbox accepts.
const OTP = "123456"

// Client is a scripted stand-in for the AA gateway.
type Client struct{}

var _ ports.AAClient = (*Client)(nil)

// NewClient returns the sandbox client.
func NewClient() *Client {
	return &Client{}
}

func (c *Client) Initialize(ctx context.Context) error { return nil }

func (c *Client) Connect(ctx context.Context) error { return nil }

func (c *Client) Login(ctx context.Context, username, mobile string) (string, error) {
	return "sandbox-otp-" + uuid.NewString(), nil
}

func (c *Client) VerifyLoginOTP(ctx context.Context, code string) (string, error) {
	if code != OTP {
		return "", &ports.ClientError{Code: "OTP_MISMATCH", Message: "incorrect otp"}
	}
	return "sandbox-user", nil
}

func (c *Client) ListInstitutions(ctx context.Context) ([]domain.FIPOption, error) {
	return []domain.FIPOption{
		{ID: "sandbox-fip-1", Name: "Sandbox Bank", Enabled: true},
		{ID: "sandbox-fip-2", Name: "Sandbox Credit Union", Enabled: true},
		{ID: "sandbox-fip-3", Name: "Offline Bank", Enabled: false},
	}, nil
}

func (c *Client) InstitutionCapabilities(ctx context.Context, fipID string) ([]string, error) {
	return []string{"MOBILE"}, nil
}

func (c *Client) DiscoverAccounts(ctx context.Context, fipID string, identifiers []domain.Identifier) ([]domain.DiscoveredAccount, error) {
	return []domain.DiscoveredAccount{
		{ReferenceNumber: "sandbox-acc-1", MaskedNumber: "XXXX0001", AccountType: "SAVINGS", FIType: "DEPOSIT"},
		{ReferenceNumber: "sandbox-acc-2", MaskedNumber: "XXXX0002", AccountType: "CURRENT", FIType: "DEPOSIT"},
		{ReferenceNumber: "sandbox-acc-3", MaskedNumber: "XXXX0003", AccountType: "FIXED", FIType: "TERM_DEPOSIT"},
	}, nil
}

func (c *Client) LinkAccounts(ctx context.Context, fipID string, accounts []domain.DiscoveredAccount) (string, error) {
	return "sandbox-link-" + uuid.NewString(), nil
}

func (c *Client) VerifyLinkingOTP(ctx context.Context, referenceNumber, code string) ([]domain.LinkedAccount, error) {
	if code != OTP {
		return nil, &ports.ClientError{Code: "OTP_MISMATCH", Message: "incorrect otp"}
	}
	accounts, _ := c.DiscoverAccounts(ctx, "", nil)
	linked := make([]domain.LinkedAccount, 0, len(accounts))
	for _, a := range accounts {
		linked = append(linked, domain.LinkedAccount{
			ReferenceNumber: a.ReferenceNumber,
			MaskedNumber:    a.MaskedNumber,
			FIPID:           "sandbox-fip-1",
			FIType:          a.FIType,
			LinkReference:   "sandbox-lnk-" + a.ReferenceNumber,
		})
	}
	return linked, nil
}

func (c *Client) ConsentDetail(ctx context.Context, consentHandleID string) (*domain.ConsentDetail, error) {
	now := time.Now().UTC().Truncate(time.Hour)
	return &domain.ConsentDetail{
		Purpose:       "Personal finance management",
		DataRange:     domain.DateRange{From: now.AddDate(-1, 0, 0), To: now},
		ConsentRange:  domain.DateRange{From: now, To: now.AddDate(1, 0, 0)},
		Frequency:     domain.Frequency{Unit: "MONTH", Value: 4},
		FITypes:       []string{"DEPOSIT", "TERM_DEPOSIT"},
		RequesterName: "Sandbox FIU",
		Status:        domain.ConsentStatusActive,
	}, nil
}

func (c *Client) ApproveConsent(ctx context.Context, consentHandleID string, accounts []domain.LinkedAccount) (*domain.ConsentArtifact, error) {
	ids := make([]string, 0, len(accounts))
	for range accounts {
		ids = append(ids, uuid.NewString())
	}
	return &domain.ConsentArtifact{IntentID: uuid.NewString(), ConsentIDs: ids}, nil
}

func (c *Client) DenyConsent(ctx context.Context, consentHandleID string, accounts []domain.LinkedAccount) (*domain.ConsentArtifact, error) {
	return &domain.ConsentArtifact{IntentID: uuid.NewString()}, nil
}
