package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"crm-platform/internal/crm"
	"crm-platform/pkg/utils"

	"github.com/jackc/pgx/v5/pgconn"
)

// Store is the Postgres repository behind every pipeline stage.
//
// NOTE: This repository assumes the following tables exist:
// - customers, customer_phones, customer_emails, blocked_numbers
// - calls, transcripts, emails
// - memories, follow_ups
// - integrations_twilio, integrations_gmail
//
// It also assumes uniqueness constraints backing the idempotency guards:
// UNIQUE (account_id, phone_e164) on customer_phones,
// UNIQUE (account_id, email_lower) on customer_emails,
// UNIQUE (account_id, external_call_id) on calls,
// UNIQUE (account_id, external_message_id) on emails,
// UNIQUE (account_id, customer_id, content) on memories.
//
// Every query is scoped by account_id; cross-account reads are a bug.

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

/* ---------- customers ---------- */

func (s *Store) CreateCustomer(ctx context.Context, c crm.Customer) error {
	const q = `
INSERT INTO customers (id, account_id, display_name, company, summary, last_interaction_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := s.db.ExecContext(ctx, q,
		c.ID, c.AccountID, c.DisplayName, c.Company, c.Summary, c.LastInteractionAt, c.CreatedAt,
	)
	if isUniqueViolation(err) {
		return crm.ErrDuplicate
	}
	return err
}

func (s *Store) GetCustomer(ctx context.Context, accountID, customerID string) (crm.Customer, error) {
	const q = `
SELECT id, account_id, display_name, company, summary, last_interaction_at, created_at
FROM customers
WHERE account_id = $1 AND id = $2
`
	var c crm.Customer
	if err := s.db.QueryRowContext(ctx, q, accountID, customerID).Scan(
		&c.ID, &c.AccountID, &c.DisplayName, &c.Company, &c.Summary, &c.LastInteractionAt, &c.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return crm.Customer{}, crm.ErrNotFound
		}
		return crm.Customer{}, err
	}
	return c, nil
}

func (s *Store) UpdateCustomerSummary(ctx context.Context, accountID, customerID, summary string) error {
	const q = `
UPDATE customers SET summary = $3
WHERE account_id = $1 AND id = $2
`
	return s.execExpectingRow(ctx, q, accountID, customerID, summary)
}

// TouchCustomerInteraction advances last_interaction_at monotonically; an
// older timestamp matches no row and that is not an error.
func (s *Store) TouchCustomerInteraction(ctx context.Context, accountID, customerID string, at time.Time) error {
	const q = `
UPDATE customers SET last_interaction_at = $3
WHERE account_id = $1 AND id = $2 AND last_interaction_at < $3
`
	_, err := s.db.ExecContext(ctx, q, accountID, customerID, at)
	return err
}

// SetCustomerDisplayName fills display_name only when it is still empty.
func (s *Store) SetCustomerDisplayName(ctx context.Context, accountID, customerID, name string) error {
	const q = `
UPDATE customers SET display_name = $3
WHERE account_id = $1 AND id = $2 AND (display_name IS NULL OR display_name = '')
`
	_, err := s.db.ExecContext(ctx, q, accountID, customerID, name)
	return err
}

// DeleteCustomer removes the customer and every dependent row in one
// transaction. Transcripts hang off calls, so they go first.
func (s *Store) DeleteCustomer(ctx context.Context, accountID, customerID string) error {
	return utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM customers WHERE account_id = $1 AND id = $2`, accountID, customerID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return crm.ErrNotFound
		}

		if _, err := tx.ExecContext(ctx, `
DELETE FROM transcripts
WHERE account_id = $1
  AND call_id IN (SELECT id FROM calls WHERE account_id = $1 AND customer_id = $2)`,
			accountID, customerID); err != nil {
			return err
		}

		for _, table := range []string{"calls", "emails", "memories", "follow_ups", "customer_phones", "customer_emails"} {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM `+table+` WHERE account_id = $1 AND customer_id = $2`,
				accountID, customerID); err != nil {
				return err
			}
		}
		return nil
	})
}

/* ---------- identity join rows ---------- */

func (s *Store) FindCustomerByPhone(ctx context.Context, accountID, phoneE164 string) (string, error) {
	const q = `
SELECT customer_id FROM customer_phones
WHERE account_id = $1 AND phone_e164 = $2
`
	return s.queryID(ctx, q, accountID, phoneE164)
}

func (s *Store) AttachCustomerPhone(ctx context.Context, p crm.CustomerPhone) error {
	const q = `
INSERT INTO customer_phones (id, account_id, customer_id, phone_e164, created_at)
VALUES ($1,$2,$3,$4,$5)
`
	_, err := s.db.ExecContext(ctx, q, p.ID, p.AccountID, p.CustomerID, p.PhoneE164, p.CreatedAt)
	if isUniqueViolation(err) {
		return crm.ErrDuplicate
	}
	return err
}

// CreateCustomerWithPhone inserts both rows or neither. A losing creation
// race surfaces as ErrDuplicate from the phone uniqueness constraint and the
// whole transaction rolls back.
func (s *Store) CreateCustomerWithPhone(ctx context.Context, c crm.Customer, p crm.CustomerPhone) error {
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO customers (id, account_id, display_name, company, summary, last_interaction_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			c.ID, c.AccountID, c.DisplayName, c.Company, c.Summary, c.LastInteractionAt, c.CreatedAt,
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO customer_phones (id, account_id, customer_id, phone_e164, created_at)
VALUES ($1,$2,$3,$4,$5)`,
			p.ID, p.AccountID, p.CustomerID, p.PhoneE164, p.CreatedAt,
		)
		return err
	})
	if isUniqueViolation(err) {
		return crm.ErrDuplicate
	}
	return err
}

func (s *Store) FindCustomerByEmail(ctx context.Context, accountID, emailLower string) (string, error) {
	const q = `
SELECT customer_id FROM customer_emails
WHERE account_id = $1 AND email_lower = $2
`
	return s.queryID(ctx, q, accountID, emailLower)
}

func (s *Store) AttachCustomerEmail(ctx context.Context, e crm.CustomerEmail) error {
	const q = `
INSERT INTO customer_emails (id, account_id, customer_id, email_lower, created_at)
VALUES ($1,$2,$3,$4,$5)
`
	_, err := s.db.ExecContext(ctx, q, e.ID, e.AccountID, e.CustomerID, e.EmailLower, e.CreatedAt)
	if isUniqueViolation(err) {
		return crm.ErrDuplicate
	}
	return err
}

/* ---------- blocklist ---------- */

func (s *Store) IsBlockedNumber(ctx context.Context, accountID, phoneE164 string) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM blocked_numbers WHERE account_id = $1 AND phone_e164 = $2
)
`
	var blocked bool
	err := s.db.QueryRowContext(ctx, q, accountID, phoneE164).Scan(&blocked)
	return blocked, err
}

/* ---------- calls ---------- */

func (s *Store) CreateCall(ctx context.Context, c crm.Call) error {
	const q = `
INSERT INTO calls (
  id, account_id, customer_id, external_call_id, direction, from_phone, to_phone,
  started_at, duration_seconds, recording_url, recording_status, summary, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`
	_, err := s.db.ExecContext(ctx, q,
		c.ID, c.AccountID, c.CustomerID, c.ExternalCallID, c.Direction, c.FromPhone, c.ToPhone,
		c.StartedAt, c.DurationSeconds, c.RecordingURL, c.RecordingStatus, c.Summary, c.CreatedAt,
	)
	if isUniqueViolation(err) {
		return crm.ErrDuplicate
	}
	return err
}

// GetCallByExternalID is deliberately unscoped: the recording callback only
// carries the provider call id, and external_call_id values are provider
// unique. The caller verifies the signature with the owning account's secret
// before acting on the row.
func (s *Store) GetCallByExternalID(ctx context.Context, externalCallID string) (crm.Call, error) {
	const q = `
SELECT id, account_id, customer_id, external_call_id, direction, from_phone, to_phone,
       started_at, duration_seconds, recording_url, recording_status, summary, created_at
FROM calls
WHERE external_call_id = $1
`
	var c crm.Call
	if err := s.db.QueryRowContext(ctx, q, externalCallID).Scan(
		&c.ID, &c.AccountID, &c.CustomerID, &c.ExternalCallID, &c.Direction, &c.FromPhone, &c.ToPhone,
		&c.StartedAt, &c.DurationSeconds, &c.RecordingURL, &c.RecordingStatus, &c.Summary, &c.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return crm.Call{}, crm.ErrNotFound
		}
		return crm.Call{}, err
	}
	return c, nil
}

func (s *Store) UpdateCallRecording(ctx context.Context, accountID, callID, recordingURL string, status crm.RecordingStatus, durationSeconds int) error {
	const q = `
UPDATE calls SET
  recording_url = $3,
  recording_status = $4,
  duration_seconds = CASE WHEN $5 > 0 THEN $5 ELSE duration_seconds END
WHERE account_id = $1 AND id = $2
`
	return s.execExpectingRow(ctx, q, accountID, callID, recordingURL, status, durationSeconds)
}

func (s *Store) SetCallRecordingStatus(ctx context.Context, accountID, callID string, status crm.RecordingStatus) error {
	const q = `
UPDATE calls SET recording_status = $3
WHERE account_id = $1 AND id = $2
`
	return s.execExpectingRow(ctx, q, accountID, callID, status)
}

func (s *Store) SetCallSummary(ctx context.Context, accountID, callID, summary string) error {
	const q = `
UPDATE calls SET summary = $3
WHERE account_id = $1 AND id = $2
`
	return s.execExpectingRow(ctx, q, accountID, callID, summary)
}

func (s *Store) ListCalls(ctx context.Context, accountID string, from, to time.Time) ([]crm.Call, error) {
	const q = `
SELECT id, account_id, customer_id, external_call_id, direction, from_phone, to_phone,
       started_at, duration_seconds, recording_url, recording_status, summary, created_at
FROM calls
WHERE account_id = $1 AND started_at >= $2 AND started_at < $3
ORDER BY started_at
`
	rows, err := s.db.QueryContext(ctx, q, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]crm.Call, 0)
	for rows.Next() {
		var c crm.Call
		if err := rows.Scan(
			&c.ID, &c.AccountID, &c.CustomerID, &c.ExternalCallID, &c.Direction, &c.FromPhone, &c.ToPhone,
			&c.StartedAt, &c.DurationSeconds, &c.RecordingURL, &c.RecordingStatus, &c.Summary, &c.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

/* ---------- transcripts ---------- */

func (s *Store) TranscriptExists(ctx context.Context, accountID, callID string) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM transcripts WHERE account_id = $1 AND call_id = $2
)
`
	var exists bool
	err := s.db.QueryRowContext(ctx, q, accountID, callID).Scan(&exists)
	return exists, err
}

func (s *Store) CreateTranscript(ctx context.Context, t crm.Transcript) error {
	const q = `
INSERT INTO transcripts (id, account_id, call_id, raw_text, created_at)
VALUES ($1,$2,$3,$4,$5)
`
	_, err := s.db.ExecContext(ctx, q, t.ID, t.AccountID, t.CallID, t.RawText, t.CreatedAt)
	if isUniqueViolation(err) {
		return crm.ErrDuplicate
	}
	return err
}

/* ---------- stored emails ---------- */

func (s *Store) EmailExists(ctx context.Context, accountID, externalMessageID string) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM emails WHERE account_id = $1 AND external_message_id = $2
)
`
	var exists bool
	err := s.db.QueryRowContext(ctx, q, accountID, externalMessageID).Scan(&exists)
	return exists, err
}

func (s *Store) CreateEmail(ctx context.Context, e crm.Email) error {
	const q = `
INSERT INTO emails (
  id, account_id, customer_id, external_message_id, thread_id, direction,
  from_address, to_addresses, subject, body_snippet, body_text, sent_at, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`
	_, err := s.db.ExecContext(ctx, q,
		e.ID, e.AccountID, e.CustomerID, e.ExternalMessageID, e.ThreadID, e.Direction,
		e.FromAddress, strings.Join(e.ToAddresses, ","), e.Subject, e.BodySnippet, e.BodyText,
		e.SentAt, e.CreatedAt,
	)
	if isUniqueViolation(err) {
		return crm.ErrDuplicate
	}
	return err
}

func (s *Store) CountEmails(ctx context.Context, accountID string, from, to time.Time) (int, error) {
	const q = `
SELECT COUNT(*) FROM emails
WHERE account_id = $1 AND sent_at >= $2 AND sent_at < $3
`
	var n int
	err := s.db.QueryRowContext(ctx, q, accountID, from, to).Scan(&n)
	return n, err
}

/* ---------- memories / follow-ups ---------- */

func (s *Store) MemoryExists(ctx context.Context, accountID, customerID, content string) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM memories WHERE account_id = $1 AND customer_id = $2 AND content = $3
)
`
	var exists bool
	err := s.db.QueryRowContext(ctx, q, accountID, customerID, content).Scan(&exists)
	return exists, err
}

func (s *Store) CreateMemory(ctx context.Context, m crm.Memory) error {
	// ON CONFLICT DO NOTHING plus a rows-affected check: under concurrent
	// extraction runs the existence check alone cannot be trusted.
	const q = `
INSERT INTO memories (id, account_id, customer_id, type, content, source, source_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (account_id, customer_id, content) DO NOTHING
`
	res, err := s.db.ExecContext(ctx, q,
		m.ID, m.AccountID, m.CustomerID, m.Type, m.Content, m.Source, m.SourceID, m.CreatedAt,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return crm.ErrDuplicate
	}
	return nil
}

func (s *Store) CountMemoriesByType(ctx context.Context, accountID string) (map[crm.MemoryType]int, error) {
	const q = `
SELECT type, COUNT(*) FROM memories
WHERE account_id = $1
GROUP BY type
`
	rows, err := s.db.QueryContext(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[crm.MemoryType]int{}
	for rows.Next() {
		var memType crm.MemoryType
		var n int
		if err := rows.Scan(&memType, &n); err != nil {
			return nil, err
		}
		out[memType] = n
	}
	return out, rows.Err()
}

func (s *Store) CreateFollowUp(ctx context.Context, f crm.FollowUp) error {
	const q = `
INSERT INTO follow_ups (id, account_id, customer_id, suggestion, status, source, source_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`
	_, err := s.db.ExecContext(ctx, q,
		f.ID, f.AccountID, f.CustomerID, f.Suggestion, f.Status, f.Source, f.SourceID, f.CreatedAt,
	)
	return err
}

func (s *Store) UpdateFollowUpStatus(ctx context.Context, accountID, followUpID string, status crm.FollowUpStatus) error {
	const q = `
UPDATE follow_ups SET status = $3
WHERE account_id = $1 AND id = $2
`
	return s.execExpectingRow(ctx, q, accountID, followUpID, status)
}

func (s *Store) CountFollowUpsByStatus(ctx context.Context, accountID string) (map[crm.FollowUpStatus]int, error) {
	const q = `
SELECT status, COUNT(*) FROM follow_ups
WHERE account_id = $1
GROUP BY status
`
	rows, err := s.db.QueryContext(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[crm.FollowUpStatus]int{}
	for rows.Next() {
		var status crm.FollowUpStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

/* ---------- integrations ---------- */

func (s *Store) TwilioIntegrationByNumber(ctx context.Context, phoneE164 string) (crm.TwilioIntegration, error) {
	const q = `
SELECT account_id, account_sid, auth_token, phone_e164
FROM integrations_twilio
WHERE phone_e164 = $1
`
	return s.scanTwilio(s.db.QueryRowContext(ctx, q, phoneE164))
}

func (s *Store) TwilioIntegrationByAccount(ctx context.Context, accountID string) (crm.TwilioIntegration, error) {
	const q = `
SELECT account_id, account_sid, auth_token, phone_e164
FROM integrations_twilio
WHERE account_id = $1
`
	return s.scanTwilio(s.db.QueryRowContext(ctx, q, accountID))
}

func (s *Store) GmailIntegration(ctx context.Context, accountID string) (crm.GmailIntegration, error) {
	const q = `
SELECT account_id, refresh_token, email_address, last_sync_at
FROM integrations_gmail
WHERE account_id = $1
`
	var g crm.GmailIntegration
	if err := s.db.QueryRowContext(ctx, q, accountID).Scan(
		&g.AccountID, &g.RefreshToken, &g.EmailAddress, &g.LastSyncAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return crm.GmailIntegration{}, crm.ErrNotFound
		}
		return crm.GmailIntegration{}, err
	}
	return g, nil
}

func (s *Store) SetGmailLastSync(ctx context.Context, accountID string, at time.Time) error {
	const q = `
UPDATE integrations_gmail SET last_sync_at = $2
WHERE account_id = $1
`
	return s.execExpectingRow(ctx, q, accountID, at)
}

/* ---------- helpers ---------- */

func (s *Store) queryID(ctx context.Context, q string, args ...any) (string, error) {
	var id string
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", crm.ErrNotFound
		}
		return "", err
	}
	return id, nil
}

func (s *Store) execExpectingRow(ctx context.Context, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return crm.ErrNotFound
	}
	return nil
}

func (s *Store) scanTwilio(row *sql.Row) (crm.TwilioIntegration, error) {
	var t crm.TwilioIntegration
	if err := row.Scan(&t.AccountID, &t.AccountSID, &t.AuthToken, &t.PhoneE164); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return crm.TwilioIntegration{}, crm.ErrNotFound
		}
		return crm.TwilioIntegration{}, err
	}
	return t, nil
}
