package ingest

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"crm-platform/internal/crm"
	"crm-platform/internal/extraction"
	"crm-platform/internal/gmail"
	"crm-platform/internal/identity"
	"crm-platform/internal/knowledge"
	"crm-platform/internal/mail"
	"crm-platform/internal/telephony"
)

const extractionJSON = `{
	"summary": "Discussed kitchen remodel pricing.",
	"personal_facts": ["Has two kids"],
	"business_context": ["Budget around 20k"],
	"commitments": ["Send quote by Friday"],
	"follow_up_suggestions": ["Call back Tuesday"]
}`

type fakeChat struct {
	response string
	err      error
	calls    int
}

func (f *fakeChat) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	return f.response, f.err
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeFetcher struct {
	audio []byte
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, recordingURL, accountSID, authToken string) ([]byte, error) {
	f.calls++
	return f.audio, f.err
}

type fakeMailbox struct {
	ids      []string
	messages map[string]gmail.Message
	gotAfter time.Time
}

func (f *fakeMailbox) ListMessageIDs(ctx context.Context, after time.Time) ([]string, error) {
	f.gotAfter = after
	return f.ids, nil
}

func (f *fakeMailbox) GetMessage(ctx context.Context, id string) (gmail.Message, error) {
	msg, ok := f.messages[id]
	if !ok {
		return gmail.Message{}, errors.New("no such message")
	}
	return msg, nil
}

type fakeProvider struct{ mailbox *fakeMailbox }

func (f fakeProvider) Mailbox(ctx context.Context, refreshToken string) (Mailbox, error) {
	return f.mailbox, nil
}

type fakeLock struct {
	busy     bool
	acquires int
	releases int
}

func (f *fakeLock) Acquire(ctx context.Context, key string) (bool, error) {
	f.acquires++
	return !f.busy, nil
}

func (f *fakeLock) Release(ctx context.Context, key string) error {
	f.releases++
	return nil
}

type fixture struct {
	repo        *crm.MemRepo
	chat        *fakeChat
	transcriber *fakeTranscriber
	fetcher     *fakeFetcher
	mailbox     *fakeMailbox
	lock        *fakeLock
	pool        *Pool
	orch        *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := crm.NewMemRepo()
	chat := &fakeChat{response: extractionJSON}
	transcriber := &fakeTranscriber{text: "Hi, this is Pat. We talked about the kitchen remodel budget of twenty thousand."}
	fetcher := &fakeFetcher{audio: []byte{1, 2, 3}}
	mailbox := &fakeMailbox{messages: map[string]gmail.Message{}}
	lock := &fakeLock{}
	filter, err := mail.NewFilter(mail.DefaultRules())
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	pool := NewPool(1, 8, nil)

	orch := NewOrchestrator(Options{
		Repo:        repo,
		Resolver:    identity.NewResolver(repo),
		Engine:      extraction.NewEngine(chat),
		Knowledge:   knowledge.NewService(repo, nil),
		Transcriber: transcriber,
		Fetcher:     fetcher,
		Mail:        fakeProvider{mailbox: mailbox},
		Filter:      filter,
		Lock:        lock,
		Pool:        pool,
	})
	return &fixture{
		repo: repo, chat: chat, transcriber: transcriber, fetcher: fetcher,
		mailbox: mailbox, lock: lock, pool: pool, orch: orch,
	}
}

func inboundCA1() telephony.InboundCall {
	return telephony.InboundCall{
		AccountID:  "acct1",
		CallSid:    "CA1",
		FromE164:   "+14155550100",
		ToE164:     "+14155550199",
		Direction:  "inbound",
		OccurredAt: time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
	}
}

func TestRegisterInboundCall_CreatesCustomerAndCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	suppressed, err := f.orch.RegisterInboundCall(ctx, inboundCA1())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if suppressed {
		t.Fatalf("unexpected suppression")
	}
	if len(f.repo.Customers) != 1 || len(f.repo.Phones) != 1 {
		t.Fatalf("expected one customer with one phone, got %d/%d", len(f.repo.Customers), len(f.repo.Phones))
	}
	if f.repo.Phones[0].PhoneE164 != "+14155550100" {
		t.Fatalf("expected caller phone attached, got %s", f.repo.Phones[0].PhoneE164)
	}
	if len(f.repo.Calls) != 1 {
		t.Fatalf("expected one call, got %d", len(f.repo.Calls))
	}
	call := f.repo.Calls[0]
	if call.ExternalCallID != "CA1" || call.Direction != crm.DirectionInbound {
		t.Fatalf("unexpected call: %+v", call)
	}
	if call.RecordingStatus != crm.RecordingPending {
		t.Fatalf("expected pending recording, got %s", call.RecordingStatus)
	}
}

func TestRegisterInboundCall_ReplayIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.orch.RegisterInboundCall(ctx, inboundCA1()); err != nil {
			t.Fatalf("replay %d: %v", i, err)
		}
	}
	if len(f.repo.Customers) != 1 {
		t.Fatalf("replay created extra customers: %d", len(f.repo.Customers))
	}
	if len(f.repo.Calls) != 1 {
		t.Fatalf("replay created extra calls: %d", len(f.repo.Calls))
	}
}

func TestRegisterInboundCall_BlockedNumberStoresNothing(t *testing.T) {
	f := newFixture(t)
	f.repo.Blocked = append(f.repo.Blocked, crm.BlockedNumber{
		ID: "b1", AccountID: "acct1", PhoneE164: "+14155550100",
	})

	suppressed, err := f.orch.RegisterInboundCall(context.Background(), inboundCA1())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !suppressed {
		t.Fatalf("expected suppression for blocked number")
	}
	if len(f.repo.Customers) != 0 || len(f.repo.Calls) != 0 {
		t.Fatalf("blocked number must store nothing, got %d customers %d calls", len(f.repo.Customers), len(f.repo.Calls))
	}
}

func TestRegisterInboundCall_OutboundUsesToNumber(t *testing.T) {
	f := newFixture(t)
	in := inboundCA1()
	in.Direction = "outbound-dial"

	if _, err := f.orch.RegisterInboundCall(context.Background(), in); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if f.repo.Phones[0].PhoneE164 != "+14155550199" {
		t.Fatalf("outbound call must resolve the called party, got %s", f.repo.Phones[0].PhoneE164)
	}
}

func recordingCompleted() telephony.RecordingWebhook {
	return telephony.RecordingWebhook{
		CallSid:           "CA1",
		RecordingURL:      "https://api.twilio.com/rec/RE1",
		RecordingStatus:   "completed",
		RecordingDuration: 42,
	}
}

func testIntegration() crm.TwilioIntegration {
	return crm.TwilioIntegration{AccountID: "acct1", AccountSID: "AC1", AuthToken: "tok", PhoneE164: "+14155550199"}
}

func TestRecordingCallback_TranscribesAndExtracts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.orch.RegisterInboundCall(ctx, inboundCA1()); err != nil {
		t.Fatalf("register: %v", err)
	}
	call := f.repo.Calls[0]

	if err := f.orch.HandleRecordingCallback(ctx, call, testIntegration(), recordingCompleted()); err != nil {
		t.Fatalf("callback: %v", err)
	}
	f.pool.Shutdown()

	got, _ := f.repo.GetCallByExternalID(ctx, "CA1")
	if got.RecordingStatus != crm.RecordingTranscribed {
		t.Fatalf("expected transcribed, got %s", got.RecordingStatus)
	}
	if got.RecordingURL != "https://api.twilio.com/rec/RE1" || got.DurationSeconds != 42 {
		t.Fatalf("recording metadata not stored: %+v", got)
	}
	if len(f.repo.Transcripts) != 1 {
		t.Fatalf("expected one transcript, got %d", len(f.repo.Transcripts))
	}
	if len(f.repo.Memories) != 3 {
		t.Fatalf("expected 3 memories, got %d", len(f.repo.Memories))
	}
	if len(f.repo.FollowUps) != 1 {
		t.Fatalf("expected 1 follow-up, got %d", len(f.repo.FollowUps))
	}
	if got.Summary != "Discussed kitchen remodel pricing." {
		t.Fatalf("expected call summary, got %q", got.Summary)
	}
	cust, _ := f.repo.GetCustomer(ctx, "acct1", got.CustomerID)
	if cust.Summary == "" {
		t.Fatalf("expected merged customer summary")
	}
}

func TestRecordingCallback_DuplicateProcessingAddsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.orch.RegisterInboundCall(ctx, inboundCA1()); err != nil {
		t.Fatalf("register: %v", err)
	}
	call := f.repo.Calls[0]
	if err := f.orch.HandleRecordingCallback(ctx, call, testIntegration(), recordingCompleted()); err != nil {
		t.Fatalf("callback: %v", err)
	}
	f.pool.Shutdown()
	memories := len(f.repo.Memories)

	// Replay the callback with a fresh pool; the transcript existence check
	// must stop a second transcription.
	f.orch.pool = NewPool(1, 8, nil)
	if err := f.orch.HandleRecordingCallback(ctx, call, testIntegration(), recordingCompleted()); err != nil {
		t.Fatalf("replay callback: %v", err)
	}
	f.orch.pool.Shutdown()

	if len(f.repo.Transcripts) != 1 {
		t.Fatalf("duplicate callback created transcript: %d", len(f.repo.Transcripts))
	}
	if len(f.repo.Memories) != memories {
		t.Fatalf("duplicate processing added memories: %d -> %d", memories, len(f.repo.Memories))
	}
	if f.transcriber.calls != 1 {
		t.Fatalf("expected one transcription, got %d", f.transcriber.calls)
	}
}

func TestRecordingCallback_FetchFailureMarksFailed(t *testing.T) {
	f := newFixture(t)
	f.fetcher.err = errors.New("network down")
	ctx := context.Background()

	if _, err := f.orch.RegisterInboundCall(ctx, inboundCA1()); err != nil {
		t.Fatalf("register: %v", err)
	}
	call := f.repo.Calls[0]
	if err := f.orch.HandleRecordingCallback(ctx, call, testIntegration(), recordingCompleted()); err != nil {
		t.Fatalf("callback: %v", err)
	}
	f.pool.Shutdown()

	got, _ := f.repo.GetCallByExternalID(ctx, "CA1")
	if got.RecordingStatus != crm.RecordingTranscriptionFailed {
		t.Fatalf("expected transcription_failed, got %s", got.RecordingStatus)
	}
	if len(f.repo.Transcripts) != 0 {
		t.Fatalf("no transcript expected on fetch failure")
	}
}

func TestRecordingCallback_ParseErrorLeavesSummaryUntouched(t *testing.T) {
	f := newFixture(t)
	f.chat.response = "not json at all"
	ctx := context.Background()

	if _, err := f.orch.RegisterInboundCall(ctx, inboundCA1()); err != nil {
		t.Fatalf("register: %v", err)
	}
	call := f.repo.Calls[0]
	if err := f.orch.HandleRecordingCallback(ctx, call, testIntegration(), recordingCompleted()); err != nil {
		t.Fatalf("callback: %v", err)
	}
	f.pool.Shutdown()

	got, _ := f.repo.GetCallByExternalID(ctx, "CA1")
	if got.RecordingStatus != crm.RecordingTranscribed {
		t.Fatalf("transcript is durable even when extraction fails, got %s", got.RecordingStatus)
	}
	if len(f.repo.Transcripts) != 1 {
		t.Fatalf("expected transcript, got %d", len(f.repo.Transcripts))
	}
	if got.Summary != "" || len(f.repo.Memories) != 0 {
		t.Fatalf("parse error must leave summaries and memories untouched")
	}
	cust, _ := f.repo.GetCustomer(ctx, "acct1", got.CustomerID)
	if cust.Summary != "" {
		t.Fatalf("customer summary must stay empty, got %q", cust.Summary)
	}
}

func TestRecordingCallback_NonCompletedStatusOnlyUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.orch.RegisterInboundCall(ctx, inboundCA1()); err != nil {
		t.Fatalf("register: %v", err)
	}
	call := f.repo.Calls[0]

	ev := recordingCompleted()
	ev.RecordingStatus = "absent"
	ev.RecordingURL = ""
	if err := f.orch.HandleRecordingCallback(ctx, call, testIntegration(), ev); err != nil {
		t.Fatalf("callback: %v", err)
	}
	f.pool.Shutdown()

	if f.transcriber.calls != 0 {
		t.Fatalf("non-completed status must not transcribe")
	}
	got, _ := f.repo.GetCallByExternalID(ctx, "CA1")
	if got.RecordingStatus != crm.RecordingStatus("absent") {
		t.Fatalf("raw provider status must be stored, got %s", got.RecordingStatus)
	}
}

func TestRecordingCallback_OutOfLifecycleStatusNeverSchedules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.orch.RegisterInboundCall(ctx, inboundCA1()); err != nil {
		t.Fatalf("register: %v", err)
	}
	call := f.repo.Calls[0]

	// URL present, but the status admits no transition to transcribing.
	ev := recordingCompleted()
	ev.RecordingStatus = "processing"
	if err := f.orch.HandleRecordingCallback(ctx, call, testIntegration(), ev); err != nil {
		t.Fatalf("callback: %v", err)
	}
	f.pool.Shutdown()

	if f.fetcher.calls != 0 || f.transcriber.calls != 0 {
		t.Fatalf("status outside the lifecycle must not schedule transcription")
	}
	got, _ := f.repo.GetCallByExternalID(ctx, "CA1")
	if got.RecordingStatus != crm.RecordingStatus("processing") {
		t.Fatalf("raw provider status must be stored, got %s", got.RecordingStatus)
	}
	if !crm.ValidTransition(crm.RecordingCompleted, crm.RecordingTranscribing) {
		t.Fatalf("completed recordings must remain schedulable")
	}
}

/* ---------- email sync ---------- */

func b64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func textMessage(id, from, to, subject, date, body string) gmail.Message {
	return gmail.Message{
		ID:       id,
		ThreadID: "thread-" + id,
		Snippet:  capString(body, 40),
		Payload: &gmail.Part{
			MimeType: "multipart/alternative",
			Headers: []gmail.Header{
				{Name: "From", Value: from},
				{Name: "To", Value: to},
				{Name: "Subject", Value: subject},
				{Name: "Date", Value: date},
			},
			Parts: []*gmail.Part{
				{MimeType: "text/plain", Body: gmailBody(body)},
			},
		},
	}
}

func gmailBody(s string) gmail.PartBody {
	return gmail.PartBody{Data: b64(s), Size: len(s)}
}

func seedGmailAccount(f *fixture) {
	f.repo.GmailAccounts = append(f.repo.GmailAccounts, crm.GmailIntegration{
		AccountID:    "acct1",
		RefreshToken: "refresh-1",
		EmailAddress: "owner@business.com",
	})
}

const longBody = "Hi, following up on our call about the kitchen remodel. The budget of twenty thousand still works for us and the kids are excited."

func TestSyncEmails_ProcessesKnownCustomer(t *testing.T) {
	f := newFixture(t)
	seedGmailAccount(f)
	f.repo.Customers = append(f.repo.Customers, crm.Customer{ID: "cust1", AccountID: "acct1"})
	f.repo.Emails = append(f.repo.Emails, crm.CustomerEmail{
		ID: "ce1", AccountID: "acct1", CustomerID: "cust1", EmailLower: "pat@example.com",
	})

	f.mailbox.ids = []string{"m1"}
	f.mailbox.messages["m1"] = textMessage(
		"m1", "Pat Jones <pat@example.com>", "owner@business.com",
		"Kitchen remodel", "Tue, 05 Mar 2024 10:00:00 +0000", longBody,
	)

	stats, err := f.orch.SyncEmails(context.Background(), "acct1")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if stats.MessagesChecked != 1 || stats.EmailsProcessed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(f.repo.StoredEmails) != 1 {
		t.Fatalf("expected one stored email, got %d", len(f.repo.StoredEmails))
	}
	email := f.repo.StoredEmails[0]
	if email.CustomerID != "cust1" || email.Direction != crm.EmailReceived {
		t.Fatalf("unexpected email: %+v", email)
	}
	if email.ExternalMessageID != "m1" || email.ThreadID != "thread-m1" {
		t.Fatalf("provider ids not stored: %+v", email)
	}
	if len(f.repo.Memories) == 0 {
		t.Fatalf("expected extraction to run for informative body")
	}
	cust, _ := f.repo.GetCustomer(context.Background(), "acct1", "cust1")
	wantAt := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	if !cust.LastInteractionAt.Equal(wantAt) {
		t.Fatalf("expected last interaction at email date, got %v", cust.LastInteractionAt)
	}
}

func TestSyncEmails_ReplayIsIdempotent(t *testing.T) {
	f := newFixture(t)
	seedGmailAccount(f)
	f.repo.Customers = append(f.repo.Customers, crm.Customer{ID: "cust1", AccountID: "acct1"})
	f.repo.Emails = append(f.repo.Emails, crm.CustomerEmail{
		ID: "ce1", AccountID: "acct1", CustomerID: "cust1", EmailLower: "pat@example.com",
	})
	f.mailbox.ids = []string{"m1"}
	f.mailbox.messages["m1"] = textMessage(
		"m1", "pat@example.com", "owner@business.com",
		"Kitchen remodel", "Tue, 05 Mar 2024 10:00:00 +0000", longBody,
	)

	for i := 0; i < 2; i++ {
		if _, err := f.orch.SyncEmails(context.Background(), "acct1"); err != nil {
			t.Fatalf("sync %d: %v", i, err)
		}
	}
	if len(f.repo.StoredEmails) != 1 {
		t.Fatalf("replay stored duplicate emails: %d", len(f.repo.StoredEmails))
	}
}

func TestSyncEmails_SkipsNewslettersAndUnknownSenders(t *testing.T) {
	f := newFixture(t)
	seedGmailAccount(f)

	f.mailbox.ids = []string{"receipt", "stranger"}
	f.mailbox.messages["receipt"] = textMessage(
		"receipt", "store@shop.com", "owner@business.com",
		"Your receipt #4821", "Tue, 05 Mar 2024 10:00:00 +0000", longBody,
	)
	f.mailbox.messages["stranger"] = textMessage(
		"stranger", "nobody@unknown.com", "owner@business.com",
		"Quick question about pricing", "Tue, 05 Mar 2024 10:00:00 +0000", longBody,
	)

	stats, err := f.orch.SyncEmails(context.Background(), "acct1")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if stats.EmailsProcessed != 0 {
		t.Fatalf("expected nothing processed, got %d", stats.EmailsProcessed)
	}
	if len(f.repo.StoredEmails) != 0 {
		t.Fatalf("skipped messages must not be stored")
	}
	if len(f.repo.Customers) != 0 {
		t.Fatalf("email sync must never create customers, got %d", len(f.repo.Customers))
	}
}

func TestSyncEmails_DefaultLookbackWindow(t *testing.T) {
	f := newFixture(t)
	seedGmailAccount(f)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	f.orch.clock = func() time.Time { return now }

	if _, err := f.orch.SyncEmails(context.Background(), "acct1"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	want := now.Add(-7 * 24 * time.Hour)
	if !f.mailbox.gotAfter.Equal(want) {
		t.Fatalf("expected 7-day lookback %v, got %v", want, f.mailbox.gotAfter)
	}

	integ, _ := f.repo.GmailIntegration(context.Background(), "acct1")
	if integ.LastSyncAt == nil || !integ.LastSyncAt.Equal(now) {
		t.Fatalf("expected cursor advanced to %v, got %v", now, integ.LastSyncAt)
	}
}

func TestSyncEmails_UsesCursorWhenSet(t *testing.T) {
	f := newFixture(t)
	seedGmailAccount(f)
	cursor := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	f.repo.GmailAccounts[0].LastSyncAt = &cursor

	if _, err := f.orch.SyncEmails(context.Background(), "acct1"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !f.mailbox.gotAfter.Equal(cursor) {
		t.Fatalf("expected cursor %v, got %v", cursor, f.mailbox.gotAfter)
	}
}

func TestSyncEmails_SerializedPerAccount(t *testing.T) {
	f := newFixture(t)
	seedGmailAccount(f)
	f.lock.busy = true

	_, err := f.orch.SyncEmails(context.Background(), "acct1")
	if !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}
	if f.lock.releases != 0 {
		t.Fatalf("must not release a lock it never held")
	}
}

func TestSyncEmails_ShortBodySkipsExtraction(t *testing.T) {
	f := newFixture(t)
	seedGmailAccount(f)
	f.repo.Customers = append(f.repo.Customers, crm.Customer{ID: "cust1", AccountID: "acct1"})
	f.repo.Emails = append(f.repo.Emails, crm.CustomerEmail{
		ID: "ce1", AccountID: "acct1", CustomerID: "cust1", EmailLower: "pat@example.com",
	})
	f.mailbox.ids = []string{"m1"}
	f.mailbox.messages["m1"] = textMessage(
		"m1", "pat@example.com", "owner@business.com",
		"Thanks again", "Tue, 05 Mar 2024 10:00:00 +0000", "Thanks!",
	)

	if _, err := f.orch.SyncEmails(context.Background(), "acct1"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(f.repo.StoredEmails) != 1 {
		t.Fatalf("short email must still be stored")
	}
	if f.chat.calls != 0 {
		t.Fatalf("short body must not reach extraction")
	}
}

func TestSyncEmails_CapsBodyAndSnippet(t *testing.T) {
	f := newFixture(t)
	seedGmailAccount(f)
	f.repo.Customers = append(f.repo.Customers, crm.Customer{ID: "cust1", AccountID: "acct1"})
	f.repo.Emails = append(f.repo.Emails, crm.CustomerEmail{
		ID: "ce1", AccountID: "acct1", CustomerID: "cust1", EmailLower: "pat@example.com",
	})

	huge := ""
	for len(huge) < crm.EmailBodyMaxLen+500 {
		huge += fmt.Sprintf("line %d of a very long email about the project. ", len(huge))
	}
	f.mailbox.ids = []string{"m1"}
	f.mailbox.messages["m1"] = textMessage(
		"m1", "pat@example.com", "owner@business.com",
		"Project details", "Tue, 05 Mar 2024 10:00:00 +0000", huge,
	)

	if _, err := f.orch.SyncEmails(context.Background(), "acct1"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	email := f.repo.StoredEmails[0]
	if len(email.BodyText) != crm.EmailBodyMaxLen {
		t.Fatalf("expected body capped at %d, got %d", crm.EmailBodyMaxLen, len(email.BodyText))
	}
	if len(email.BodySnippet) > crm.EmailSnippetMaxLen {
		t.Fatalf("snippet over cap: %d", len(email.BodySnippet))
	}
}
