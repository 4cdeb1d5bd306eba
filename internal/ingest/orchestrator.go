package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	netmail "net/mail"
	"strings"
	"time"

	"crm-platform/internal/crm"
	"crm-platform/internal/extraction"
	"crm-platform/internal/gmail"
	"crm-platform/internal/identity"
	"crm-platform/internal/knowledge"
	"crm-platform/internal/mail"
	"crm-platform/internal/telephony"

	"github.com/google/uuid"
)

// Orchestrator composes the two end-to-end ingestion flows:
//
//   voice webhook -> identity -> call row -> (recording callback)
//     -> transcription -> extraction -> memories/follow-ups/summary
//
//   email sync -> filter -> identity (lookup-only) -> email row
//     -> extraction -> same fact sinks
//
// Webhook-path methods must return quickly; transcription and extraction run
// on the background pool. Every entry point is idempotent against
// at-least-once delivery.

// ErrSyncInProgress means another sync run holds the per-account lock.
var ErrSyncInProgress = errors.New("ingest: email sync already running for account")

const (
	// minExtractableBody is the informativeness threshold below which an
	// email is stored but not sent to extraction.
	minExtractableBody = 50

	transcribeTimeout = 5 * time.Minute
)

type Repository interface {
	TouchCustomerInteraction(ctx context.Context, accountID, customerID string, at time.Time) error

	CreateCall(ctx context.Context, c crm.Call) error
	UpdateCallRecording(ctx context.Context, accountID, callID, recordingURL string, status crm.RecordingStatus, durationSeconds int) error
	SetCallRecordingStatus(ctx context.Context, accountID, callID string, status crm.RecordingStatus) error

	TranscriptExists(ctx context.Context, accountID, callID string) (bool, error)
	CreateTranscript(ctx context.Context, t crm.Transcript) error

	EmailExists(ctx context.Context, accountID, externalMessageID string) (bool, error)
	CreateEmail(ctx context.Context, e crm.Email) error

	GmailIntegration(ctx context.Context, accountID string) (crm.GmailIntegration, error)
	SetGmailLastSync(ctx context.Context, accountID string, at time.Time) error
}

// Transcriber is the speech-to-text capability boundary.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// AudioFetcher downloads a recording with provider credentials.
type AudioFetcher interface {
	Fetch(ctx context.Context, recordingURL, accountSID, authToken string) ([]byte, error)
}

// Mailbox reads one authenticated user's messages.
type Mailbox interface {
	ListMessageIDs(ctx context.Context, after time.Time) ([]string, error)
	GetMessage(ctx context.Context, id string) (gmail.Message, error)
}

// MailProvider opens a mailbox from a stored refresh credential.
type MailProvider interface {
	Mailbox(ctx context.Context, refreshToken string) (Mailbox, error)
}

// GmailProvider adapts gmail.Client to the MailProvider boundary.
type GmailProvider struct {
	Client *gmail.Client
}

func (p GmailProvider) Mailbox(ctx context.Context, refreshToken string) (Mailbox, error) {
	return p.Client.Mailbox(ctx, refreshToken)
}

type Orchestrator struct {
	repo        Repository
	resolver    *identity.Resolver
	engine      *extraction.Engine
	knowledge   *knowledge.Service
	transcriber Transcriber
	fetcher     AudioFetcher
	mailbox     MailProvider
	filter      *mail.Filter
	lock        SyncLocker
	pool        *Pool
	lookback    time.Duration
	log         *slog.Logger
	clock       func() time.Time
}

type Options struct {
	Repo        Repository
	Resolver    *identity.Resolver
	Engine      *extraction.Engine
	Knowledge   *knowledge.Service
	Transcriber Transcriber
	Fetcher     AudioFetcher
	Mail        MailProvider
	Filter      *mail.Filter
	Lock        SyncLocker
	Pool        *Pool

	// Lookback is the sync window used when an account has no cursor yet.
	Lookback time.Duration

	Log *slog.Logger
}

func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Lookback <= 0 {
		opts.Lookback = 7 * 24 * time.Hour
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Orchestrator{
		repo:        opts.Repo,
		resolver:    opts.Resolver,
		engine:      opts.Engine,
		knowledge:   opts.Knowledge,
		transcriber: opts.Transcriber,
		fetcher:     opts.Fetcher,
		mailbox:     opts.Mail,
		filter:      opts.Filter,
		lock:        opts.Lock,
		pool:        opts.Pool,
		lookback:    opts.Lookback,
		log:         opts.Log,
		clock:       time.Now,
	}
}

/* ---------- call flow ---------- */

// RegisterInboundCall resolves the caller to a customer and creates the call
// row. Duplicate deliveries for the same CallSid are absorbed by the
// external-id uniqueness check. A blocklisted caller stores nothing and
// reports suppressed=true.
func (o *Orchestrator) RegisterInboundCall(ctx context.Context, in telephony.InboundCall) (bool, error) {
	direction := crm.DirectionOutbound
	if strings.Contains(strings.ToLower(in.Direction), "inbound") {
		direction = crm.DirectionInbound
	}
	customerPhone := in.ToE164
	if direction == crm.DirectionInbound {
		customerPhone = in.FromE164
	}

	customerID, err := o.resolver.ResolveFromPhone(ctx, in.AccountID, customerPhone)
	if errors.Is(err, identity.ErrSuppressed) {
		o.log.Info("blocked number, skipping call ingestion", "account_id", in.AccountID, "call_sid", in.CallSid)
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("ingest: resolve caller: %w", err)
	}

	if err := o.repo.TouchCustomerInteraction(ctx, in.AccountID, customerID, in.OccurredAt); err != nil {
		o.log.Warn("touch interaction failed", "customer_id", customerID, "err", err)
	}

	call := crm.Call{
		ID:              uuid.NewString(),
		AccountID:       in.AccountID,
		CustomerID:      customerID,
		ExternalCallID:  in.CallSid,
		Direction:       direction,
		FromPhone:       in.FromE164,
		ToPhone:         in.ToE164,
		StartedAt:       in.OccurredAt,
		RecordingStatus: crm.RecordingPending,
		CreatedAt:       o.clock().UTC(),
	}
	err = o.repo.CreateCall(ctx, call)
	if errors.Is(err, crm.ErrDuplicate) {
		// Provider retry; the first delivery already created the row.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ingest: create call: %w", err)
	}
	return false, nil
}

// HandleRecordingCallback stores the recording metadata and, for a completed
// recording without a transcript, hands transcription to the background pool.
func (o *Orchestrator) HandleRecordingCallback(ctx context.Context, call crm.Call, integ crm.TwilioIntegration, ev telephony.RecordingWebhook) error {
	status := crm.RecordingStatus(ev.RecordingStatus)
	if err := o.repo.UpdateCallRecording(ctx, call.AccountID, call.ID, ev.RecordingURL, status, ev.RecordingDuration); err != nil {
		return fmt.Errorf("ingest: update recording: %w", err)
	}

	// Transcription is schedulable only from a status the lifecycle allows
	// to move to transcribing; raw provider statuses outside the lifecycle
	// are stored above and go no further.
	if ev.RecordingURL == "" || !crm.ValidTransition(status, crm.RecordingTranscribing) {
		return nil
	}

	exists, err := o.repo.TranscriptExists(ctx, call.AccountID, call.ID)
	if err != nil {
		return fmt.Errorf("ingest: transcript check: %w", err)
	}
	if exists {
		return nil
	}

	recordingURL := ev.RecordingURL
	submitted := o.pool.Submit(func(bg context.Context) {
		o.transcribeAndExtract(bg, call, integ, recordingURL)
	})
	if !submitted {
		o.log.Error("transcription queue full", "call_id", call.ID)
		o.failTranscription(context.Background(), call)
	}
	return nil
}

func (o *Orchestrator) transcribeAndExtract(ctx context.Context, call crm.Call, integ crm.TwilioIntegration, recordingURL string) {
	ctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	log := o.log.With("call_id", call.ID, "account_id", call.AccountID)

	if err := o.repo.SetCallRecordingStatus(ctx, call.AccountID, call.ID, crm.RecordingTranscribing); err != nil {
		log.Error("status update failed", "err", err)
		return
	}

	audio, err := o.fetcher.Fetch(ctx, recordingURL, integ.AccountSID, integ.AuthToken)
	if err != nil {
		log.Error("audio fetch failed", "err", err)
		o.failTranscription(ctx, call)
		return
	}

	text, err := o.transcriber.Transcribe(ctx, audio)
	if err != nil {
		log.Error("transcription failed", "err", err)
		o.failTranscription(ctx, call)
		return
	}

	transcript := crm.Transcript{
		ID:        uuid.NewString(),
		AccountID: call.AccountID,
		CallID:    call.ID,
		RawText:   text,
		CreatedAt: o.clock().UTC(),
	}
	if err := o.repo.CreateTranscript(ctx, transcript); err != nil {
		log.Error("transcript insert failed", "err", err)
		o.failTranscription(ctx, call)
		return
	}
	if err := o.repo.SetCallRecordingStatus(ctx, call.AccountID, call.ID, crm.RecordingTranscribed); err != nil {
		log.Error("status update failed", "err", err)
	}

	// The transcript is durable from here; extraction failures are logged
	// and leave the summary untouched.
	res, err := o.engine.Extract(ctx, text, crm.SourceCall)
	if err != nil {
		log.Error("call extraction failed", "err", err)
		return
	}
	if err := o.knowledge.ApplyExtraction(ctx, call.AccountID, call.CustomerID, crm.SourceCall, call.ID, res); err != nil {
		log.Error("apply extraction failed", "err", err)
	}
}

func (o *Orchestrator) failTranscription(ctx context.Context, call crm.Call) {
	if err := o.repo.SetCallRecordingStatus(ctx, call.AccountID, call.ID, crm.RecordingTranscriptionFailed); err != nil {
		o.log.Error("failed-status update failed", "call_id", call.ID, "err", err)
	}
}

/* ---------- email flow ---------- */

type SyncStats struct {
	MessagesChecked int `json:"messages_checked"`
	EmailsProcessed int `json:"emails_processed"`
}

// SyncEmails runs one incremental sync for the account. Runs are serialized
// per account; a second trigger while one is running gets ErrSyncInProgress.
// A failure on one message is logged and never aborts the rest of the batch.
func (o *Orchestrator) SyncEmails(ctx context.Context, accountID string) (SyncStats, error) {
	lockKey := "emailsync:" + accountID
	acquired, err := o.lock.Acquire(ctx, lockKey)
	if err != nil {
		return SyncStats{}, fmt.Errorf("ingest: sync lock: %w", err)
	}
	if !acquired {
		return SyncStats{}, ErrSyncInProgress
	}
	defer func() {
		if err := o.lock.Release(context.WithoutCancel(ctx), lockKey); err != nil {
			o.log.Warn("sync lock release failed", "account_id", accountID, "err", err)
		}
	}()

	integ, err := o.repo.GmailIntegration(ctx, accountID)
	if err != nil {
		return SyncStats{}, fmt.Errorf("ingest: gmail integration: %w", err)
	}

	mailbox, err := o.mailbox.Mailbox(ctx, integ.RefreshToken)
	if err != nil {
		return SyncStats{}, fmt.Errorf("ingest: open mailbox: %w", err)
	}

	since := o.clock().Add(-o.lookback)
	if integ.LastSyncAt != nil {
		since = *integ.LastSyncAt
	}

	ids, err := mailbox.ListMessageIDs(ctx, since)
	if err != nil {
		return SyncStats{}, fmt.Errorf("ingest: list messages: %w", err)
	}

	stats := SyncStats{MessagesChecked: len(ids)}
	for _, id := range ids {
		processed, err := o.processMessage(ctx, accountID, integ, mailbox, id)
		if err != nil {
			o.log.Error("message processing failed", "account_id", accountID, "message_id", id, "err", err)
			continue
		}
		if processed {
			stats.EmailsProcessed++
		}
	}

	// Advance the cursor even on partial success: processed messages are
	// guarded by the per-message idempotency check, and unprocessed ones
	// stay listable until the window moves past them.
	if err := o.repo.SetGmailLastSync(ctx, accountID, o.clock().UTC()); err != nil {
		o.log.Error("sync cursor update failed", "account_id", accountID, "err", err)
	}
	return stats, nil
}

func (o *Orchestrator) processMessage(ctx context.Context, accountID string, integ crm.GmailIntegration, mailbox Mailbox, id string) (bool, error) {
	exists, err := o.repo.EmailExists(ctx, accountID, id)
	if err != nil {
		return false, fmt.Errorf("email existence check: %w", err)
	}
	if exists {
		return false, nil
	}

	msg, err := mailbox.GetMessage(ctx, id)
	if err != nil {
		return false, fmt.Errorf("fetch message: %w", err)
	}
	if msg.Payload == nil {
		return false, nil
	}

	fromHeader := msg.Header("From")
	subject := msg.Header("Subject")
	fromAddr := mail.ExtractAddress(fromHeader)

	if o.filter.ShouldSkip(msg.Headers(), fromAddr, subject) {
		return false, nil
	}
	toAddrs := mail.SplitRecipients(msg.Header("To"))
	if o.filter.TooManyRecipients(len(toAddrs)) {
		return false, nil
	}

	direction := crm.EmailReceived
	if fromAddr == mail.NormalizeAddress(integ.EmailAddress) {
		direction = crm.EmailSent
	}

	// The participant is the other party: the sender for received mail, the
	// first recipient for sent mail.
	participant := fromAddr
	displayName := mail.ExtractDisplayName(fromHeader)
	if direction == crm.EmailSent {
		if len(toAddrs) == 0 {
			return false, nil
		}
		participant = toAddrs[0]
		displayName = ""
	}
	if participant == "" {
		return false, nil
	}

	bodyText := mail.ExtractPlainText(msg.Payload)

	customerID, err := o.resolver.ResolveFromEmailOrText(ctx, accountID, participant, bodyText, displayName)
	if errors.Is(err, identity.ErrNoMatch) {
		// Email ingestion never creates customers.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("resolve participant: %w", err)
	}

	sentAt := o.clock().UTC()
	if parsed, err := netmail.ParseDate(msg.Header("Date")); err == nil {
		sentAt = parsed
	}
	if err := o.repo.TouchCustomerInteraction(ctx, accountID, customerID, sentAt); err != nil {
		o.log.Warn("touch interaction failed", "customer_id", customerID, "err", err)
	}

	email := crm.Email{
		ID:                uuid.NewString(),
		AccountID:         accountID,
		CustomerID:        customerID,
		ExternalMessageID: id,
		ThreadID:          msg.ThreadID,
		Direction:         direction,
		FromAddress:       fromAddr,
		ToAddresses:       toAddrs,
		Subject:           subject,
		BodySnippet:       capString(msg.Snippet, crm.EmailSnippetMaxLen),
		BodyText:          capString(bodyText, crm.EmailBodyMaxLen),
		SentAt:            sentAt,
		CreatedAt:         o.clock().UTC(),
	}
	err = o.repo.CreateEmail(ctx, email)
	if errors.Is(err, crm.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store email: %w", err)
	}

	if len(bodyText) > minExtractableBody {
		res, err := o.engine.Extract(ctx, "Subject: "+subject+"\n\n"+bodyText, crm.SourceEmail)
		if err != nil {
			// Skippable: the email row stays, the summary stays untouched.
			o.log.Error("email extraction failed", "email_id", email.ID, "err", err)
			return true, nil
		}
		if err := o.knowledge.ApplyExtraction(ctx, accountID, customerID, crm.SourceEmail, email.ID, res); err != nil {
			o.log.Error("apply extraction failed", "email_id", email.ID, "err", err)
		}
	}
	return true, nil
}

func capString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
