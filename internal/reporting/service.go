package reporting

import (
	"context"
	"errors"
	"time"

	"crm-platform/internal/crm"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// IMPORTANT:
// - Methods must enforce account filtering.
// - Memory and follow-up counts are account-wide; only calls and emails honor
//   the time range.

type Repository interface {
	ListCalls(ctx context.Context, accountID string, from, to time.Time) ([]crm.Call, error)
	CountEmails(ctx context.Context, accountID string, from, to time.Time) (int, error)
	CountMemoriesByType(ctx context.Context, accountID string) (map[crm.MemoryType]int, error)
	CountFollowUpsByStatus(ctx context.Context, accountID string) (map[crm.FollowUpStatus]int, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) ActivitySummary(ctx context.Context, req ActivitySummaryRequest) (ActivitySummary, error) {
	if req.AccountID == "" {
		return ActivitySummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return ActivitySummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return ActivitySummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.AccountID, req.Range.From, req.Range.To)
	if err != nil {
		return ActivitySummary{}, err
	}

	out := ActivitySummary{AccountID: req.AccountID}
	for _, c := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationSeconds
		if c.RecordingURL != "" {
			out.RecordedCalls++
		}
		switch c.Direction {
		case crm.DirectionInbound:
			out.InboundCalls++
		case crm.DirectionOutbound:
			out.OutboundCalls++
		}
		switch c.RecordingStatus {
		case crm.RecordingTranscribed:
			out.TranscribedCalls++
		case crm.RecordingTranscriptionFailed:
			out.FailedTranscripts++
		case crm.RecordingInitiated, crm.RecordingPending, crm.RecordingCompleted, crm.RecordingTranscribing:
			out.PendingRecordings++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}

	emails, err := s.repo.CountEmails(ctx, req.AccountID, req.Range.From, req.Range.To)
	if err != nil {
		return ActivitySummary{}, err
	}
	out.TotalEmails = emails

	memories, err := s.repo.CountMemoriesByType(ctx, req.AccountID)
	if err != nil {
		return ActivitySummary{}, err
	}
	out.MemoriesByType = memories

	followUps, err := s.repo.CountFollowUpsByStatus(ctx, req.AccountID)
	if err != nil {
		return ActivitySummary{}, err
	}
	out.FollowUpsByStatus = followUps

	return out, nil
}
