package reporting

import (
	"time"

	"crm-platform/internal/crm"
)

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ActivitySummaryRequest requests aggregated interaction metrics.
// Account isolation: AccountID is required.

type ActivitySummaryRequest struct {
	AccountID string    `json:"account_id"`
	Range     TimeRange `json:"range"`
}

type ActivitySummary struct {
	AccountID string `json:"account_id"`

	TotalCalls         int `json:"total_calls"`
	InboundCalls       int `json:"inbound_calls"`
	OutboundCalls      int `json:"outbound_calls"`
	TranscribedCalls   int `json:"transcribed_calls"`
	FailedTranscripts  int `json:"failed_transcripts"`
	PendingRecordings  int `json:"pending_recordings"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	RecordedCalls int `json:"recorded_calls"`

	TotalEmails int `json:"total_emails"`

	MemoriesByType    map[crm.MemoryType]int     `json:"memories_by_type"`
	FollowUpsByStatus map[crm.FollowUpStatus]int `json:"follow_ups_by_status"`
}
