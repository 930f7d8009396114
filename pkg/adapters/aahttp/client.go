// Package aahttp implements the AAClient port over the gateway's JSON REST
// API. Every response arrives in a success/error envelope; protocol
// failures become ports.ClientError so the journey layer can classify them.
package aahttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"log/slog"

	"github.com/mitchellh/mapstructure"

	"github.com/kitewire/consentflow/internal/logging"
	"github.com/kitewire/consentflow/pkg/domain"
	"github.com/kitewire/consentflow/pkg/ports"
)

// DefaultTimeout bounds every gateway call.
const DefaultTimeout = 15 * time.Second

// Client talks to the AA gateway over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

var _ ports.AAClient = (*Client)(nil)

// Option defines a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client (proxies, mTLS, test servers).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout overrides the per-call timeout on the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a gateway client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the gateway's uniform response wrapper.
type envelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	Error   *envelopeError `json:"error"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) Initialize(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/v1/session/init", nil, nil)
}

func (c *Client) Connect(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/v1/session/connect", nil, nil)
}

func (c *Client) Login(ctx context.Context, username, mobile string) (string, error) {
	req := map[string]string{"username": username, "mobile": mobile}
	var resp struct {
		OTPReference string `json:"otp_reference"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/user/login", req, &resp); err != nil {
		return "", err
	}
	return resp.OTPReference, nil
}

func (c *Client) VerifyLoginOTP(ctx context.Context, code string) (string, error) {
	req := map[string]string{"otp": code}
	var resp struct {
		UserID string `json:"user_id"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/user/verify-otp", req, &resp); err != nil {
		return "", err
	}
	return resp.UserID, nil
}

func (c *Client) ListInstitutions(ctx context.Context) ([]domain.FIPOption, error) {
	var resp struct {
		Institutions []domain.FIPOption `json:"institutions"`
	}
	if err := c.call(ctx, http.MethodGet, "/v1/fips", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Institutions, nil
}

func (c *Client) InstitutionCapabilities(ctx context.Context, fipID string) ([]string, error) {
	var resp struct {
		IdentifierTypes []string `json:"identifier_types"`
	}
	path := "/v1/fips/" + url.PathEscape(fipID) + "/capabilities"
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.IdentifierTypes, nil
}

func (c *Client) DiscoverAccounts(ctx context.Context, fipID string, identifiers []domain.Identifier) ([]domain.DiscoveredAccount, error) {
	req := map[string]any{"fip_id": fipID, "identifiers": identifiers}
	var resp struct {
		Accounts []domain.DiscoveredAccount `json:"accounts"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/accounts/discover", req, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

func (c *Client) LinkAccounts(ctx context.Context, fipID string, accounts []domain.DiscoveredAccount) (string, error) {
	req := map[string]any{"fip_id": fipID, "accounts": accounts}
	var resp struct {
		ReferenceNumber string `json:"reference_number"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/accounts/link", req, &resp); err != nil {
		return "", err
	}
	return resp.ReferenceNumber, nil
}

func (c *Client) VerifyLinkingOTP(ctx context.Context, referenceNumber, code string) ([]domain.LinkedAccount, error) {
	req := map[string]string{"reference_number": referenceNumber, "otp": code}
	var resp struct {
		LinkedAccounts []domain.LinkedAccount `json:"linked_accounts"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/accounts/link/verify", req, &resp); err != nil {
		return nil, err
	}
	return resp.LinkedAccounts, nil
}

func (c *Client) ConsentDetail(ctx context.Context, consentHandleID string) (*domain.ConsentDetail, error) {
	var detail domain.ConsentDetail
	path := "/v1/consents/" + url.PathEscape(consentHandleID)
	if err := c.call(ctx, http.MethodGet, path, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *Client) ApproveConsent(ctx context.Context, consentHandleID string, accounts []domain.LinkedAccount) (*domain.ConsentArtifact, error) {
	req := map[string]any{"accounts": accounts}
	var artifact domain.ConsentArtifact
	path := "/v1/consents/" + url.PathEscape(consentHandleID) + "/approve"
	if err := c.call(ctx, http.MethodPost, path, req, &artifact); err != nil {
		return nil, err
	}
	return &artifact, nil
}

func (c *Client) DenyConsent(ctx context.Context, consentHandleID string, accounts []domain.LinkedAccount) (*domain.ConsentArtifact, error) {
	req := map[string]any{"accounts": accounts}
	var artifact domain.ConsentArtifact
	path := "/v1/consents/" + url.PathEscape(consentHandleID) + "/deny"
	if err := c.call(ctx, http.MethodPost, path, req, &artifact); err != nil {
		return nil, err
	}
	return &artifact, nil
}

// call performs one gateway round trip: encode, send, unwrap the envelope,
// decode data into out (may be nil when no payload is expected).
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("gateway returned unreadable response (status %d): %w", resp.StatusCode, err)
	}

	if !env.Success {
		cerr := &ports.ClientError{Code: "UNKNOWN", Message: "gateway rejected the request"}
		if env.Error != nil {
			cerr.Code = env.Error.Code
			cerr.Message = env.Error.Message
		}
		c.logger.Debug("gateway call rejected", "method", method, "path", path, "code", cerr.Code)
		return cerr
	}

	if out == nil {
		return nil
	}
	return decodeData(env.Data, out)
}

// decodeData maps the envelope's data object onto a typed response using
// the json tags already on the domain types.
func decodeData(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "json",
		Result:     out,
		DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(data); err != nil {
		return fmt.Errorf("failed to decode gateway payload: %w", err)
	}
	return nil
}
