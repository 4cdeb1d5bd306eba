package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"crm-platform/internal/crm"
	"crm-platform/internal/extraction"

	"github.com/google/uuid"
)

// Service persists extracted knowledge: deduplicated typed facts,
// follow-up suggestions and the bounded rolling customer summary.

// SummaryMaxLen bounds the rolling customer summary. Merging keeps the tail,
// favoring recency over completeness; the cut may land mid-sentence.
const SummaryMaxLen = 1000

type Repository interface {
	MemoryExists(ctx context.Context, accountID, customerID, content string) (bool, error)
	CreateMemory(ctx context.Context, m crm.Memory) error
	CreateFollowUp(ctx context.Context, f crm.FollowUp) error

	GetCustomer(ctx context.Context, accountID, customerID string) (crm.Customer, error)
	UpdateCustomerSummary(ctx context.Context, accountID, customerID, summary string) error
	SetCallSummary(ctx context.Context, accountID, callID, summary string) error
}

type Service struct {
	repo  Repository
	log   *slog.Logger
	clock func() time.Time
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log, clock: time.Now}
}

// AddMemoryIfNew inserts a fact unless a row with identical
// (customer_id, content) already exists. Dedup is exact-string and
// case-sensitive. Empty or whitespace-only content is dropped silently.
func (s *Service) AddMemoryIfNew(ctx context.Context, accountID, customerID string, memType crm.MemoryType, content string, source crm.InteractionSource, sourceID string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	exists, err := s.repo.MemoryExists(ctx, accountID, customerID, content)
	if err != nil {
		return fmt.Errorf("knowledge: memory lookup: %w", err)
	}
	if exists {
		return nil
	}
	m := crm.Memory{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		CustomerID: customerID,
		Type:       memType,
		Content:    content,
		Source:     source,
		SourceID:   sourceID,
		CreatedAt:  s.clock().UTC(),
	}
	err = s.repo.CreateMemory(ctx, m)
	if errors.Is(err, crm.ErrDuplicate) {
		// A concurrent extraction run inserted the same fact first.
		return nil
	}
	return err
}

// AddFollowUp inserts a pending suggestion unconditionally; follow-ups are
// never deduplicated. Empty suggestions are dropped.
func (s *Service) AddFollowUp(ctx context.Context, accountID, customerID, suggestion string, source crm.InteractionSource, sourceID string) error {
	if strings.TrimSpace(suggestion) == "" {
		return nil
	}
	f := crm.FollowUp{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		CustomerID: customerID,
		Suggestion: suggestion,
		Status:     crm.FollowUpPending,
		Source:     source,
		SourceID:   sourceID,
		CreatedAt:  s.clock().UTC(),
	}
	return s.repo.CreateFollowUp(ctx, f)
}

// MergeSummary appends a fragment to the rolling summary, keeping the last
// SummaryMaxLen characters when the concatenation overruns the budget.
func MergeSummary(existing, fragment string) string {
	merged := fragment
	if existing != "" {
		merged = existing + "\n\n" + fragment
	}
	if len(merged) > SummaryMaxLen {
		merged = merged[len(merged)-SummaryMaxLen:]
	}
	return merged
}

// ApplyExtraction persists one extraction result: typed facts with dedup,
// follow-up suggestions, the per-call meeting notes (call source only) and
// the merged customer summary. A failure on one fact is logged and must not
// abort the siblings.
func (s *Service) ApplyExtraction(ctx context.Context, accountID, customerID string, source crm.InteractionSource, sourceID string, res extraction.Result) error {
	typed := []struct {
		memType crm.MemoryType
		facts   []string
	}{
		{crm.MemoryPersonal, res.PersonalFacts},
		{crm.MemoryBusiness, res.BusinessContext},
		{crm.MemoryCommitment, res.Commitments},
	}
	for _, group := range typed {
		for _, content := range group.facts {
			if err := s.AddMemoryIfNew(ctx, accountID, customerID, group.memType, content, source, sourceID); err != nil {
				s.log.Error("memory insert failed", "account_id", accountID, "customer_id", customerID, "err", err)
			}
		}
	}

	for _, suggestion := range res.FollowUpSuggestions {
		if err := s.AddFollowUp(ctx, accountID, customerID, suggestion, source, sourceID); err != nil {
			s.log.Error("follow-up insert failed", "account_id", accountID, "customer_id", customerID, "err", err)
		}
	}

	if source == crm.SourceCall && strings.TrimSpace(res.Summary) != "" {
		if err := s.repo.SetCallSummary(ctx, accountID, sourceID, res.Summary); err != nil {
			s.log.Error("call summary update failed", "account_id", accountID, "call_id", sourceID, "err", err)
		}
	}

	if strings.TrimSpace(res.Summary) != "" {
		customer, err := s.repo.GetCustomer(ctx, accountID, customerID)
		if err != nil {
			return fmt.Errorf("knowledge: load customer for summary merge: %w", err)
		}
		merged := MergeSummary(customer.Summary, res.Summary)
		if err := s.repo.UpdateCustomerSummary(ctx, accountID, customerID, merged); err != nil {
			return fmt.Errorf("knowledge: summary update: %w", err)
		}
	}
	return nil
}
