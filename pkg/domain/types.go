package domain

import "time"

// Credentials is the user identity submitted at the login stage.
type Credentials struct {
	Username string `json:"username"`
	Mobile   string `json:"mobile"`
}

// OTPChallenge tracks a live one-time-code challenge.
// Issuing a new challenge replaces the prior reference entirely.
type OTPChallenge struct {
	Reference         string    `json:"reference"`
	IssuedAt          time.Time `json:"issued_at"`
	ResendAvailableAt time.Time `json:"resend_available_at"`
	AttemptCount      int       `json:"attempt_count"`
}

// FIPOption is a financial information provider offered for selection.
type FIPOption struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Identifier is a discovery key for a user at a FIP (e.g. MOBILE, PAN).
type Identifier struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// DiscoveredAccount is an account candidate returned by FIP discovery.
type DiscoveredAccount struct {
	ReferenceNumber string `json:"reference_number"`
	MaskedNumber    string `json:"masked_number"`
	AccountType     string `json:"account_type"`
	FIType          string `json:"fi_type"`
}

// LinkedAccount is an account confirmed as linked after OTP verification.
type LinkedAccount struct {
	ReferenceNumber string `json:"reference_number"`
	MaskedNumber    string `json:"masked_number"`
	FIPID           string `json:"fip_id"`
	FIType          string `json:"fi_type"`
	LinkReference   string `json:"link_reference"`
}

// ConsentStatus mirrors the lifecycle states a consent artifact can be in.
type ConsentStatus string

const (
	ConsentStatusActive  ConsentStatus = "ACTIVE"
	ConsentStatusPaused  ConsentStatus = "PAUSED"
	ConsentStatusRevoked ConsentStatus = "REVOKED"
	ConsentStatusExpired ConsentStatus = "EXPIRED"
)

// DateRange bounds a period of data access.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Frequency describes how often data may be fetched under a consent.
type Frequency struct {
	Unit  string `json:"unit"`
	Value int    `json:"value"`
}

// ConsentDetail is the data-sharing request presented for review.
type ConsentDetail struct {
	Purpose       string        `json:"purpose"`
	DataRange     DateRange     `json:"data_range"`
	ConsentRange  DateRange     `json:"consent_range"`
	Frequency     Frequency     `json:"frequency"`
	FITypes       []string      `json:"fi_types"`
	RequesterName string        `json:"requester_name"`
	Status        ConsentStatus `json:"status"`
}

// ConsentArtifact is the outcome of recording an approve/deny decision.
type ConsentArtifact struct {
	IntentID   string   `json:"intent_id"`
	ConsentIDs []string `json:"consent_ids,omitempty"`
}

// Decision is the terminal outcome of a journey.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionDenied   Decision = "denied"
)
