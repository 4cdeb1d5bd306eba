package crm

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemRepo is an in-memory repository for tests and early development.
// It enforces account scoping and the same uniqueness constraints the
// Postgres schema carries, so race-fallback code paths are exercisable
// without a database.
type MemRepo struct {
	mu sync.Mutex

	Customers      []Customer
	Phones         []CustomerPhone
	Emails         []CustomerEmail
	Blocked        []BlockedNumber
	Calls          []Call
	Transcripts    []Transcript
	StoredEmails   []Email
	Memories       []Memory
	FollowUps      []FollowUp
	TwilioAccounts []TwilioIntegration
	GmailAccounts  []GmailIntegration
}

func NewMemRepo() *MemRepo { return &MemRepo{} }

/* ---------- customers ---------- */

func (r *MemRepo) CreateCustomer(ctx context.Context, c Customer) error {
	if c.AccountID == "" || c.ID == "" {
		return errors.New("crm: account_id and id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Customers = append(r.Customers, c)
	return nil
}

func (r *MemRepo) GetCustomer(ctx context.Context, accountID, customerID string) (Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.Customers {
		if c.AccountID == accountID && c.ID == customerID {
			return c, nil
		}
	}
	return Customer{}, ErrNotFound
}

func (r *MemRepo) UpdateCustomerSummary(ctx context.Context, accountID, customerID, summary string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.Customers {
		if r.Customers[i].AccountID == accountID && r.Customers[i].ID == customerID {
			r.Customers[i].Summary = summary
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemRepo) TouchCustomerInteraction(ctx context.Context, accountID, customerID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.Customers {
		if r.Customers[i].AccountID == accountID && r.Customers[i].ID == customerID {
			if at.After(r.Customers[i].LastInteractionAt) {
				r.Customers[i].LastInteractionAt = at
			}
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemRepo) SetCustomerDisplayName(ctx context.Context, accountID, customerID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.Customers {
		if r.Customers[i].AccountID == accountID && r.Customers[i].ID == customerID {
			if r.Customers[i].DisplayName == "" && name != "" {
				r.Customers[i].DisplayName = name
			}
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemRepo) DeleteCustomer(ctx context.Context, accountID, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	found := false
	out := r.Customers[:0]
	for _, c := range r.Customers {
		if c.AccountID == accountID && c.ID == customerID {
			found = true
			continue
		}
		out = append(out, c)
	}
	r.Customers = out
	if !found {
		return ErrNotFound
	}

	phones := r.Phones[:0]
	for _, p := range r.Phones {
		if !(p.AccountID == accountID && p.CustomerID == customerID) {
			phones = append(phones, p)
		}
	}
	r.Phones = phones

	emails := r.Emails[:0]
	for _, e := range r.Emails {
		if !(e.AccountID == accountID && e.CustomerID == customerID) {
			emails = append(emails, e)
		}
	}
	r.Emails = emails

	calls := r.Calls[:0]
	deletedCalls := map[string]bool{}
	for _, c := range r.Calls {
		if c.AccountID == accountID && c.CustomerID == customerID {
			deletedCalls[c.ID] = true
			continue
		}
		calls = append(calls, c)
	}
	r.Calls = calls

	transcripts := r.Transcripts[:0]
	for _, tr := range r.Transcripts {
		if !deletedCalls[tr.CallID] {
			transcripts = append(transcripts, tr)
		}
	}
	r.Transcripts = transcripts

	stored := r.StoredEmails[:0]
	for _, e := range r.StoredEmails {
		if !(e.AccountID == accountID && e.CustomerID == customerID) {
			stored = append(stored, e)
		}
	}
	r.StoredEmails = stored

	memories := r.Memories[:0]
	for _, m := range r.Memories {
		if !(m.AccountID == accountID && m.CustomerID == customerID) {
			memories = append(memories, m)
		}
	}
	r.Memories = memories

	followUps := r.FollowUps[:0]
	for _, f := range r.FollowUps {
		if !(f.AccountID == accountID && f.CustomerID == customerID) {
			followUps = append(followUps, f)
		}
	}
	r.FollowUps = followUps

	return nil
}

/* ---------- identity join rows ---------- */

func (r *MemRepo) FindCustomerByPhone(ctx context.Context, accountID, phoneE164 string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.Phones {
		if p.AccountID == accountID && p.PhoneE164 == phoneE164 {
			return p.CustomerID, nil
		}
	}
	return "", ErrNotFound
}

func (r *MemRepo) AttachCustomerPhone(ctx context.Context, p CustomerPhone) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.Phones {
		if existing.AccountID == p.AccountID && existing.PhoneE164 == p.PhoneE164 {
			return ErrDuplicate
		}
	}
	r.Phones = append(r.Phones, p)
	return nil
}

// CreateCustomerWithPhone inserts both rows or neither; it mirrors the
// transactional insert the Postgres store performs.
func (r *MemRepo) CreateCustomerWithPhone(ctx context.Context, c Customer, p CustomerPhone) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.Phones {
		if existing.AccountID == p.AccountID && existing.PhoneE164 == p.PhoneE164 {
			return ErrDuplicate
		}
	}
	r.Customers = append(r.Customers, c)
	r.Phones = append(r.Phones, p)
	return nil
}

func (r *MemRepo) FindCustomerByEmail(ctx context.Context, accountID, emailLower string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Emails {
		if e.AccountID == accountID && e.EmailLower == emailLower {
			return e.CustomerID, nil
		}
	}
	return "", ErrNotFound
}

func (r *MemRepo) AttachCustomerEmail(ctx context.Context, e CustomerEmail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.Emails {
		if existing.AccountID == e.AccountID && existing.EmailLower == e.EmailLower {
			return ErrDuplicate
		}
	}
	r.Emails = append(r.Emails, e)
	return nil
}

/* ---------- blocklist ---------- */

func (r *MemRepo) IsBlockedNumber(ctx context.Context, accountID, phoneE164 string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.Blocked {
		if b.AccountID == accountID && b.PhoneE164 == phoneE164 {
			return true, nil
		}
	}
	return false, nil
}

/* ---------- calls ---------- */

func (r *MemRepo) CreateCall(ctx context.Context, c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.Calls {
		if existing.AccountID == c.AccountID && existing.ExternalCallID == c.ExternalCallID {
			return ErrDuplicate
		}
	}
	r.Calls = append(r.Calls, c)
	return nil
}

func (r *MemRepo) GetCallByExternalID(ctx context.Context, externalCallID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.Calls {
		if c.ExternalCallID == externalCallID {
			return c, nil
		}
	}
	return Call{}, ErrNotFound
}

func (r *MemRepo) UpdateCallRecording(ctx context.Context, accountID, callID, recordingURL string, status RecordingStatus, durationSeconds int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.Calls {
		if r.Calls[i].AccountID == accountID && r.Calls[i].ID == callID {
			r.Calls[i].RecordingURL = recordingURL
			r.Calls[i].RecordingStatus = status
			if durationSeconds > 0 {
				r.Calls[i].DurationSeconds = durationSeconds
			}
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemRepo) SetCallRecordingStatus(ctx context.Context, accountID, callID string, status RecordingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.Calls {
		if r.Calls[i].AccountID == accountID && r.Calls[i].ID == callID {
			r.Calls[i].RecordingStatus = status
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemRepo) SetCallSummary(ctx context.Context, accountID, callID, summary string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.Calls {
		if r.Calls[i].AccountID == accountID && r.Calls[i].ID == callID {
			r.Calls[i].Summary = summary
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemRepo) ListCalls(ctx context.Context, accountID string, from, to time.Time) ([]Call, error) {
	if accountID == "" {
		return nil, errors.New("crm: account_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, 0)
	for _, c := range r.Calls {
		if c.AccountID != accountID {
			continue
		}
		if !c.StartedAt.IsZero() {
			if c.StartedAt.Before(from) || !c.StartedAt.Before(to) {
				continue
			}
		}
		out = append(out, c)
	}
	return out, nil
}

/* ---------- transcripts ---------- */

func (r *MemRepo) TranscriptExists(ctx context.Context, accountID, callID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.Transcripts {
		if t.AccountID == accountID && t.CallID == callID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemRepo) CreateTranscript(ctx context.Context, t Transcript) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Transcripts = append(r.Transcripts, t)
	return nil
}

/* ---------- stored emails ---------- */

func (r *MemRepo) EmailExists(ctx context.Context, accountID, externalMessageID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.StoredEmails {
		if e.AccountID == accountID && e.ExternalMessageID == externalMessageID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemRepo) CreateEmail(ctx context.Context, e Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.StoredEmails {
		if existing.AccountID == e.AccountID && existing.ExternalMessageID == e.ExternalMessageID {
			return ErrDuplicate
		}
	}
	r.StoredEmails = append(r.StoredEmails, e)
	return nil
}

func (r *MemRepo) CountEmails(ctx context.Context, accountID string, from, to time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.StoredEmails {
		if e.AccountID != accountID {
			continue
		}
		if !e.SentAt.IsZero() {
			if e.SentAt.Before(from) || !e.SentAt.Before(to) {
				continue
			}
		}
		n++
	}
	return n, nil
}

/* ---------- memories / follow-ups ---------- */

func (r *MemRepo) MemoryExists(ctx context.Context, accountID, customerID, content string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.Memories {
		if m.AccountID == accountID && m.CustomerID == customerID && m.Content == content {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemRepo) CreateMemory(ctx context.Context, m Memory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.Memories {
		if existing.AccountID == m.AccountID && existing.CustomerID == m.CustomerID && existing.Content == m.Content {
			return ErrDuplicate
		}
	}
	r.Memories = append(r.Memories, m)
	return nil
}

func (r *MemRepo) CountMemoriesByType(ctx context.Context, accountID string) (map[MemoryType]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[MemoryType]int{}
	for _, m := range r.Memories {
		if m.AccountID == accountID {
			out[m.Type]++
		}
	}
	return out, nil
}

func (r *MemRepo) CreateFollowUp(ctx context.Context, f FollowUp) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FollowUps = append(r.FollowUps, f)
	return nil
}

func (r *MemRepo) UpdateFollowUpStatus(ctx context.Context, accountID, followUpID string, status FollowUpStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.FollowUps {
		if r.FollowUps[i].AccountID == accountID && r.FollowUps[i].ID == followUpID {
			r.FollowUps[i].Status = status
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemRepo) CountFollowUpsByStatus(ctx context.Context, accountID string) (map[FollowUpStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[FollowUpStatus]int{}
	for _, f := range r.FollowUps {
		if f.AccountID == accountID {
			out[f.Status]++
		}
	}
	return out, nil
}

/* ---------- integrations ---------- */

func (r *MemRepo) TwilioIntegrationByNumber(ctx context.Context, phoneE164 string) (TwilioIntegration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.TwilioAccounts {
		if t.PhoneE164 == phoneE164 {
			return t, nil
		}
	}
	return TwilioIntegration{}, ErrNotFound
}

func (r *MemRepo) TwilioIntegrationByAccount(ctx context.Context, accountID string) (TwilioIntegration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.TwilioAccounts {
		if t.AccountID == accountID {
			return t, nil
		}
	}
	return TwilioIntegration{}, ErrNotFound
}

func (r *MemRepo) GmailIntegration(ctx context.Context, accountID string) (GmailIntegration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.GmailAccounts {
		if g.AccountID == accountID {
			return g, nil
		}
	}
	return GmailIntegration{}, ErrNotFound
}

func (r *MemRepo) SetGmailLastSync(ctx context.Context, accountID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.GmailAccounts {
		if r.GmailAccounts[i].AccountID == accountID {
			t := at
			r.GmailAccounts[i].LastSyncAt = &t
			return nil
		}
	}
	return ErrNotFound
}
