package reporting

import (
	"context"
	"testing"
	"time"

	"crm-platform/internal/crm"
)

func TestReporting_AccountIsolation(t *testing.T) {
	repo := crm.NewMemRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []crm.Call{
		{ID: "c1", AccountID: "a1", Direction: crm.DirectionInbound, RecordingStatus: crm.RecordingTranscribed, DurationSeconds: 30, StartedAt: now},
		{ID: "c2", AccountID: "a2", Direction: crm.DirectionInbound, RecordingStatus: crm.RecordingTranscribed, DurationSeconds: 50, StartedAt: now},
	}
	svc := NewService(repo)

	out, err := svc.ActivitySummary(context.Background(), ActivitySummaryRequest{
		AccountID: "a1",
		Range:     TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 1 {
		t.Fatalf("expected 1 call, got %d", out.TotalCalls)
	}
	if out.TotalDurationSeconds != 30 {
		t.Fatalf("expected duration 30, got %d", out.TotalDurationSeconds)
	}
}

func TestReporting_ActivitySummaryAggregates(t *testing.T) {
	repo := crm.NewMemRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []crm.Call{
		{ID: "c1", AccountID: "a", Direction: crm.DirectionInbound, RecordingStatus: crm.RecordingTranscribed, RecordingURL: "https://api.example.com/rec/1", DurationSeconds: 60, StartedAt: now},
		{ID: "c2", AccountID: "a", Direction: crm.DirectionOutbound, RecordingStatus: crm.RecordingTranscriptionFailed, RecordingURL: "https://api.example.com/rec/2", DurationSeconds: 120, StartedAt: now},
		{ID: "c3", AccountID: "a", Direction: crm.DirectionInbound, RecordingStatus: crm.RecordingPending, StartedAt: now},
	}
	repo.StoredEmails = []crm.Email{
		{ID: "e1", AccountID: "a", ExternalMessageID: "m1", SentAt: now},
		{ID: "e2", AccountID: "a", ExternalMessageID: "m2", SentAt: now},
	}
	repo.Memories = []crm.Memory{
		{ID: "k1", AccountID: "a", Type: crm.MemoryPersonal, Content: "Has two kids"},
		{ID: "k2", AccountID: "a", Type: crm.MemoryBusiness, Content: "Owns a bakery"},
		{ID: "k3", AccountID: "a", Type: crm.MemoryBusiness, Content: "Expanding next year"},
	}
	repo.FollowUps = []crm.FollowUp{
		{ID: "f1", AccountID: "a", Status: crm.FollowUpPending},
		{ID: "f2", AccountID: "a", Status: crm.FollowUpDone},
	}
	svc := NewService(repo)

	out, err := svc.ActivitySummary(context.Background(), ActivitySummaryRequest{
		AccountID: "a",
		Range:     TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 3 || out.InboundCalls != 2 || out.OutboundCalls != 1 {
		t.Fatalf("unexpected call counts: %+v", out)
	}
	if out.TranscribedCalls != 1 || out.FailedTranscripts != 1 || out.PendingRecordings != 1 {
		t.Fatalf("unexpected status counts: %+v", out)
	}
	if out.RecordedCalls != 2 {
		t.Fatalf("expected 2 recorded calls, got %d", out.RecordedCalls)
	}
	if out.TotalDurationSeconds != 180 || out.AverageDurationSeconds != 60 {
		t.Fatalf("unexpected durations: %+v", out)
	}
	if out.TotalEmails != 2 {
		t.Fatalf("expected 2 emails, got %d", out.TotalEmails)
	}
	if out.MemoriesByType[crm.MemoryBusiness] != 2 || out.MemoriesByType[crm.MemoryPersonal] != 1 {
		t.Fatalf("unexpected memories: %+v", out.MemoriesByType)
	}
	if out.FollowUpsByStatus[crm.FollowUpPending] != 1 || out.FollowUpsByStatus[crm.FollowUpDone] != 1 {
		t.Fatalf("unexpected follow-ups: %+v", out.FollowUpsByStatus)
	}
}

func TestReporting_RangeExcludesOutsideCalls(t *testing.T) {
	repo := crm.NewMemRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []crm.Call{
		{ID: "c1", AccountID: "a", Direction: crm.DirectionInbound, RecordingStatus: crm.RecordingPending, StartedAt: now},
		{ID: "c2", AccountID: "a", Direction: crm.DirectionInbound, RecordingStatus: crm.RecordingPending, StartedAt: now.Add(-48 * time.Hour)},
	}
	svc := NewService(repo)

	out, err := svc.ActivitySummary(context.Background(), ActivitySummaryRequest{
		AccountID: "a",
		Range:     TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 1 {
		t.Fatalf("expected 1 call in range, got %d", out.TotalCalls)
	}
}

func TestReporting_InvalidRequest(t *testing.T) {
	svc := NewService(crm.NewMemRepo())
	now := time.Now()

	if _, err := svc.ActivitySummary(context.Background(), ActivitySummaryRequest{Range: TimeRange{From: now.Add(-time.Hour), To: now}}); err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest for missing account, got %v", err)
	}
	if _, err := svc.ActivitySummary(context.Background(), ActivitySummaryRequest{AccountID: "a", Range: TimeRange{From: now, To: now}}); err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest for empty range, got %v", err)
	}
}
