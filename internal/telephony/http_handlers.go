package telephony

import (
	"context"
	"errors"
	"net/http"
	"time"

	"crm-platform/internal/crm"
	"crm-platform/internal/phone"
	"crm-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Webhook handlers convert Twilio requests to internal types, verify the
// request signature, delegate to the ingestion pipeline, and write TwiML or
// JSON back.
//
// Error contract (voice): HTTP 403 only for a signature failure. Every other
// recoverable error answers 200 with a spoken message so the live call is not
// dropped; the provider retries on non-2xx and a retry cannot fix a
// malformed number.
//
// Tenant scoping: the account is resolved from the dialed number before
// signature verification, so the secret checked is always the secret of the
// number's owner.

// Directory resolves integration credentials and calls for webhook auth.
type Directory interface {
	TwilioIntegrationByNumber(ctx context.Context, phoneE164 string) (crm.TwilioIntegration, error)
	TwilioIntegrationByAccount(ctx context.Context, accountID string) (crm.TwilioIntegration, error)
	GetCallByExternalID(ctx context.Context, externalCallID string) (crm.Call, error)
}

// InboundCall is a verified, normalized voice event handed to the pipeline.
type InboundCall struct {
	AccountID  string
	CallSid    string
	FromE164   string
	ToE164     string
	Direction  string
	OccurredAt time.Time
}

// CallPipeline is implemented by the ingestion orchestrator.
type CallPipeline interface {
	// RegisterInboundCall resolves the customer and creates the call row.
	// suppressed=true means the caller is blocklisted and nothing was stored.
	RegisterInboundCall(ctx context.Context, in InboundCall) (suppressed bool, err error)

	// HandleRecordingCallback updates the call row and, for a completed
	// recording, schedules background transcription. Must return quickly.
	HandleRecordingCallback(ctx context.Context, call crm.Call, integ crm.TwilioIntegration, ev RecordingWebhook) error
}

type WebhookHandler struct {
	Directory Directory
	Pipeline  CallPipeline

	// VoiceURL and RecordingURL are the externally reachable webhook URLs;
	// signatures are computed over them, not over the proxied request URL.
	VoiceURL     string
	RecordingURL string

	Now func() time.Time
}

func (h WebhookHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h WebhookHandler) HandleVoice(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseVoiceWebhook(c.Request)
	if err != nil {
		log.Warn("voice webhook parse failed", "err", err)
		respondSay(c, "Error processing call")
		return
	}
	// Without a CallSid there is no idempotency key; storing such a call
	// would make every later malformed webhook look like its duplicate.
	if form.CallSid == "" {
		log.Warn("voice webhook missing CallSid")
		respondSay(c, "Error processing call")
		return
	}

	toE164, err := phone.Normalize(form.To)
	if err != nil {
		log.Warn("voice webhook has invalid To number", "to", form.To)
		respondSay(c, "Error processing call")
		return
	}

	integ, err := h.Directory.TwilioIntegrationByNumber(c.Request.Context(), toE164)
	if err != nil {
		log.Warn("no integration for dialed number", "to", toE164, "err", err)
		respondSay(c, "Number not configured")
		return
	}

	signature := c.GetHeader("X-Twilio-Signature")
	if !VerifySignature(integ.AuthToken, h.VoiceURL, c.Request.PostForm, signature) {
		log.Warn("voice webhook signature rejected", "call_sid", form.CallSid)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}

	fromE164, err := phone.Normalize(form.From)
	if err != nil {
		log.Warn("voice webhook has invalid From number", "from", form.From)
		respondSay(c, "Error processing call")
		return
	}

	in := InboundCall{
		AccountID:  integ.AccountID,
		CallSid:    form.CallSid,
		FromE164:   fromE164,
		ToE164:     toE164,
		Direction:  form.Direction,
		OccurredAt: h.now(),
	}
	suppressed, err := h.Pipeline.RegisterInboundCall(c.Request.Context(), in)
	if err != nil {
		log.Error("inbound call registration failed", "call_sid", form.CallSid, "err", err)
		respondSay(c, "Error processing call")
		return
	}
	if suppressed {
		// Blocked caller: no rows stored, but the call itself proceeds.
		respondSay(c, "Call connected")
		return
	}

	twiml, err := RenderRecordPrompt(h.RecordingURL)
	if err != nil {
		log.Error("twiml render failed", "err", err)
		respondSay(c, "Error processing call")
		return
	}
	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, twiml)
}

func (h WebhookHandler) HandleRecording(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseRecordingWebhook(c.Request)
	if err != nil {
		log.Warn("recording webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	call, err := h.Directory.GetCallByExternalID(c.Request.Context(), form.CallSid)
	if err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			log.Warn("recording callback for unknown call", "call_sid", form.CallSid)
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		log.Error("call lookup failed", "call_sid", form.CallSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	integ, err := h.Directory.TwilioIntegrationByAccount(c.Request.Context(), call.AccountID)
	if err != nil {
		log.Error("integration lookup failed", "account_id", call.AccountID, "err", err)
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "integration not found"})
		return
	}

	signature := c.GetHeader("X-Twilio-Signature")
	if !VerifySignature(integ.AuthToken, h.RecordingURL, c.Request.PostForm, signature) {
		log.Warn("recording webhook signature rejected", "call_sid", form.CallSid)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}

	if err := h.Pipeline.HandleRecordingCallback(c.Request.Context(), call, integ, form); err != nil {
		log.Error("recording callback failed", "call_sid", form.CallSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func respondSay(c *gin.Context, message string) {
	twiml, err := RenderSay(message)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, twiml)
}
