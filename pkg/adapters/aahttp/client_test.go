package aahttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitewire/consentflow/pkg/ports"
)

// gateway is a minimal scripted AA gateway for round-trip tests.
func gateway(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	ok := func(w http.ResponseWriter, data any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
	}

	mux.HandleFunc("POST /v1/session/init", func(w http.ResponseWriter, r *http.Request) {
		ok(w, nil)
	})
	mux.HandleFunc("POST /v1/session/connect", func(w http.ResponseWriter, r *http.Request) {
		ok(w, nil)
	})
	mux.HandleFunc("POST /v1/user/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req["mobile"] == "0000000000" {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"error":   map[string]string{"code": "USER_NOT_FOUND", "message": "no user for mobile"},
			})
			return
		}
		ok(w, map[string]string{"otp_reference": "otp-ref-1"})
	})
	mux.HandleFunc("POST /v1/user/verify-otp", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]string{"user_id": "user-9"})
	})
	mux.HandleFunc("GET /v1/fips", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{"institutions": []map[string]any{
			{"id": "fip-1", "name": "First Bank", "enabled": true},
			{"id": "fip-2", "name": "Halted Bank", "enabled": false},
		}})
	})
	mux.HandleFunc("GET /v1/fips/fip-1/capabilities", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{"identifier_types": []string{"MOBILE", "PAN"}})
	})
	mux.HandleFunc("POST /v1/accounts/discover", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{"accounts": []map[string]any{
			{"reference_number": "acc-1", "masked_number": "XXXX1234", "account_type": "SAVINGS", "fi_type": "DEPOSIT"},
		}})
	})
	mux.HandleFunc("POST /v1/accounts/link", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]string{"reference_number": "link-ref-7"})
	})
	mux.HandleFunc("POST /v1/accounts/link/verify", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{"linked_accounts": []map[string]any{
			{"reference_number": "acc-1", "masked_number": "XXXX1234", "fip_id": "fip-1", "fi_type": "DEPOSIT", "link_reference": "lnk-1"},
		}})
	})
	mux.HandleFunc("GET /v1/consents/handle-1", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{
			"purpose":        "Wealth management",
			"data_range":     map[string]string{"from": "2024-01-01T00:00:00Z", "to": "2025-01-01T00:00:00Z"},
			"consent_range":  map[string]string{"from": "2024-01-01T00:00:00Z", "to": "2026-01-01T00:00:00Z"},
			"frequency":      map[string]any{"unit": "MONTH", "value": 1},
			"fi_types":       []string{"DEPOSIT"},
			"requester_name": "Kitewire Finance",
			"status":         "ACTIVE",
		})
	})
	mux.HandleFunc("POST /v1/consents/handle-1/approve", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{"intent_id": "intent-1", "consent_ids": []string{"consent-1"}})
	})
	mux.HandleFunc("POST /v1/consents/handle-1/deny", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{"intent_id": "intent-2"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_RoundTrips(t *testing.T) {
	srv := gateway(t)
	client := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	ctx := context.Background()

	require.NoError(t, client.Initialize(ctx))
	require.NoError(t, client.Connect(ctx))

	ref, err := client.Login(ctx, "ravi", "9999999999")
	require.NoError(t, err)
	assert.Equal(t, "otp-ref-1", ref)

	userID, err := client.VerifyLoginOTP(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, "user-9", userID)

	fips, err := client.ListInstitutions(ctx)
	require.NoError(t, err)
	require.Len(t, fips, 2)
	assert.Equal(t, "fip-1", fips[0].ID)
	assert.True(t, fips[0].Enabled)
	assert.False(t, fips[1].Enabled)

	types, err := client.InstitutionCapabilities(ctx, "fip-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"MOBILE", "PAN"}, types)

	accounts, err := client.DiscoverAccounts(ctx, "fip-1", nil)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "XXXX1234", accounts[0].MaskedNumber)

	linkRef, err := client.LinkAccounts(ctx, "fip-1", accounts)
	require.NoError(t, err)
	assert.Equal(t, "link-ref-7", linkRef)

	linked, err := client.VerifyLinkingOTP(ctx, linkRef, "654321")
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, "fip-1", linked[0].FIPID)

	detail, err := client.ConsentDetail(ctx, "handle-1")
	require.NoError(t, err)
	assert.Equal(t, "Wealth management", detail.Purpose)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), detail.DataRange.From)
	assert.Equal(t, "ACTIVE", string(detail.Status))

	artifact, err := client.ApproveConsent(ctx, "handle-1", linked)
	require.NoError(t, err)
	assert.Equal(t, "intent-1", artifact.IntentID)
	assert.Equal(t, []string{"consent-1"}, artifact.ConsentIDs)

	denied, err := client.DenyConsent(ctx, "handle-1", linked)
	require.NoError(t, err)
	require.NotNil(t, denied)
	assert.Equal(t, "intent-2", denied.IntentID)
	assert.Empty(t, denied.ConsentIDs)
}

func TestClient_ProtocolErrorBecomesClientError(t *testing.T) {
	srv := gateway(t)
	client := NewClient(srv.URL, WithHTTPClient(srv.Client()))

	_, err := client.Login(context.Background(), "ghost", "0000000000")
	require.Error(t, err)

	var cerr *ports.ClientError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "USER_NOT_FOUND", cerr.Code)
	assert.Equal(t, "no user for mobile", cerr.Message)
}

func TestClient_UnreadableResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	err := client.Connect(context.Background())
	require.Error(t, err)

	var cerr *ports.ClientError
	assert.False(t, errors.As(err, &cerr), "transport garbage must not classify as protocol error")
}
