package crm

import "time"

// Domain models for the interaction ingestion pipeline.
//
// Multi-tenant invariant: AccountID is required on every row; no query may
// cross account boundaries.
//
// Provider-specific identifiers (Twilio CallSid, Gmail message id) are kept
// in external_* columns, not mixed into internal ids.

type Customer struct {
	ID          string `json:"id" db:"id"`
	AccountID   string `json:"account_id" db:"account_id"`
	DisplayName string `json:"display_name,omitempty" db:"display_name"`
	Company     string `json:"company,omitempty" db:"company"`

	// Summary is a rolling, recency-weighted digest bounded by SummaryMaxLen.
	Summary string `json:"summary,omitempty" db:"summary"`

	// LastInteractionAt only moves forward.
	LastInteractionAt time.Time `json:"last_interaction_at" db:"last_interaction_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CustomerPhone joins a normalized E.164 number to a customer.
// (account_id, phone_e164) is unique; identity resolution searches on it.
type CustomerPhone struct {
	ID         string    `json:"id" db:"id"`
	AccountID  string    `json:"account_id" db:"account_id"`
	CustomerID string    `json:"customer_id" db:"customer_id"`
	PhoneE164  string    `json:"phone_e164" db:"phone_e164"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// CustomerEmail joins a lowercased address to a customer.
// (account_id, email_lower) is unique.
type CustomerEmail struct {
	ID         string    `json:"id" db:"id"`
	AccountID  string    `json:"account_id" db:"account_id"`
	CustomerID string    `json:"customer_id" db:"customer_id"`
	EmailLower string    `json:"email_lower" db:"email_lower"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// BlockedNumber suppresses customer creation for a phone number.
// Independent of Customer; managed by the settings UI, read-only here.
type BlockedNumber struct {
	ID        string    `json:"id" db:"id"`
	AccountID string    `json:"account_id" db:"account_id"`
	PhoneE164 string    `json:"phone_e164" db:"phone_e164"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type CallDirection string

const (
	DirectionInbound  CallDirection = "inbound"
	DirectionOutbound CallDirection = "outbound"
)

// RecordingStatus tracks a call from creation through transcription outcome.
type RecordingStatus string

const (
	RecordingInitiated           RecordingStatus = "initiated"
	RecordingPending             RecordingStatus = "pending"
	RecordingCompleted           RecordingStatus = "completed"
	RecordingTranscribing        RecordingStatus = "transcribing"
	RecordingTranscribed         RecordingStatus = "transcribed"
	RecordingTranscriptionFailed RecordingStatus = "transcription_failed"
)

// ValidTransition reports whether the lifecycle allows moving from one
// recording status to another. Provider callbacks may overwrite the raw
// status column regardless; the transcription path must respect this.
func ValidTransition(from, to RecordingStatus) bool {
	switch from {
	case RecordingInitiated:
		return to == RecordingPending
	case RecordingPending:
		return to == RecordingCompleted || to == RecordingTranscriptionFailed
	case RecordingCompleted:
		return to == RecordingTranscribing
	case RecordingTranscribing:
		return to == RecordingTranscribed || to == RecordingTranscriptionFailed
	default:
		return false
	}
}

// Terminal reports whether the status ends the lifecycle.
func (s RecordingStatus) Terminal() bool {
	return s == RecordingTranscribed || s == RecordingTranscriptionFailed
}

type Call struct {
	ID         string `json:"id" db:"id"`
	AccountID  string `json:"account_id" db:"account_id"`
	CustomerID string `json:"customer_id" db:"customer_id"`

	// ExternalCallID is the provider call id (unique per account); it is the
	// idempotency key guarding against duplicate webhook deliveries.
	ExternalCallID string `json:"external_call_id" db:"external_call_id"`

	Direction CallDirection `json:"direction" db:"direction"`
	FromPhone string        `json:"from_phone" db:"from_phone"`
	ToPhone   string        `json:"to_phone" db:"to_phone"`

	StartedAt       time.Time `json:"started_at" db:"started_at"`
	DurationSeconds int       `json:"duration_seconds" db:"duration_seconds"`

	RecordingURL    string          `json:"recording_url,omitempty" db:"recording_url"`
	RecordingStatus RecordingStatus `json:"recording_status" db:"recording_status"`

	// Summary holds the extracted meeting notes for this one call.
	Summary string `json:"summary,omitempty" db:"summary"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Transcript is one-to-one with Call, enforced by an existence check before
// transcription starts.
type Transcript struct {
	ID        string    `json:"id" db:"id"`
	AccountID string    `json:"account_id" db:"account_id"`
	CallID    string    `json:"call_id" db:"call_id"`
	RawText   string    `json:"raw_text" db:"raw_text"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EmailDirection string

const (
	EmailSent     EmailDirection = "sent"
	EmailReceived EmailDirection = "received"
)

const (
	// EmailSnippetMaxLen caps the stored preview snippet.
	EmailSnippetMaxLen = 500
	// EmailBodyMaxLen caps the stored full body.
	EmailBodyMaxLen = 10000
)

type Email struct {
	ID         string `json:"id" db:"id"`
	AccountID  string `json:"account_id" db:"account_id"`
	CustomerID string `json:"customer_id" db:"customer_id"`

	// ExternalMessageID is the provider message id (unique per account); the
	// idempotency key for email sync.
	ExternalMessageID string `json:"external_message_id" db:"external_message_id"`
	ThreadID          string `json:"thread_id,omitempty" db:"thread_id"`

	Direction   EmailDirection `json:"direction" db:"direction"`
	FromAddress string         `json:"from_address" db:"from_address"`
	ToAddresses []string       `json:"to_addresses" db:"to_addresses"`

	Subject     string `json:"subject,omitempty" db:"subject"`
	BodySnippet string `json:"body_snippet,omitempty" db:"body_snippet"`
	BodyText    string `json:"body_text,omitempty" db:"body_text"`

	SentAt    time.Time `json:"sent_at" db:"sent_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type MemoryType string

const (
	MemoryPersonal   MemoryType = "personal"
	MemoryBusiness   MemoryType = "business"
	MemoryCommitment MemoryType = "commitment"
)

type InteractionSource string

const (
	SourceCall  InteractionSource = "call"
	SourceEmail InteractionSource = "email"
)

// Memory is a single extracted fact about a customer.
// Invariant: no two rows share (customer_id, content) verbatim.
type Memory struct {
	ID         string            `json:"id" db:"id"`
	AccountID  string            `json:"account_id" db:"account_id"`
	CustomerID string            `json:"customer_id" db:"customer_id"`
	Type       MemoryType        `json:"type" db:"type"`
	Content    string            `json:"content" db:"content"`
	Source     InteractionSource `json:"source" db:"source"`
	SourceID   string            `json:"source_id" db:"source_id"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
}

type FollowUpStatus string

const (
	FollowUpPending FollowUpStatus = "pending"
	FollowUpDone    FollowUpStatus = "done"
	FollowUpIgnored FollowUpStatus = "ignored"
)

// FollowUp is an actionable suggested next step. Never deduplicated; every
// extraction run may add new suggestions.
type FollowUp struct {
	ID         string            `json:"id" db:"id"`
	AccountID  string            `json:"account_id" db:"account_id"`
	CustomerID string            `json:"customer_id" db:"customer_id"`
	Suggestion string            `json:"suggestion" db:"suggestion"`
	Status     FollowUpStatus    `json:"status" db:"status"`
	Source     InteractionSource `json:"source" db:"source"`
	SourceID   string            `json:"source_id" db:"source_id"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
}

// TwilioIntegration holds per-account telephony credentials.
// Written by the settings UI; consumed read-only by the pipeline.
type TwilioIntegration struct {
	AccountID  string `json:"account_id" db:"account_id"`
	AccountSID string `json:"account_sid" db:"account_sid"`
	AuthToken  string `json:"-" db:"auth_token"`
	PhoneE164  string `json:"phone_e164" db:"phone_e164"`
}

// GmailIntegration holds per-account mailbox credentials and sync cursor.
type GmailIntegration struct {
	AccountID    string     `json:"account_id" db:"account_id"`
	RefreshToken string     `json:"-" db:"refresh_token"`
	EmailAddress string     `json:"email_address" db:"email_address"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty" db:"last_sync_at"`
}
