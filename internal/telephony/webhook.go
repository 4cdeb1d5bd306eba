package telephony

import (
	"net/http"
	"strconv"
	"strings"
)

// Form structs capture the subset of Twilio webhook fields the pipeline
// consumes. Twilio posts application/x-www-form-urlencoded.
//
// Provider-adapter-only; no business logic here.

type VoiceWebhook struct {
	CallSid    string
	AccountSid string
	From       string
	To         string
	Direction  string
	CallStatus string
	CallerName string
}

func ParseVoiceWebhook(r *http.Request) (VoiceWebhook, error) {
	if err := r.ParseForm(); err != nil {
		return VoiceWebhook{}, err
	}
	return VoiceWebhook{
		CallSid:    r.PostFormValue("CallSid"),
		AccountSid: r.PostFormValue("AccountSid"),
		From:       strings.TrimSpace(r.PostFormValue("From")),
		To:         strings.TrimSpace(r.PostFormValue("To")),
		Direction:  r.PostFormValue("Direction"),
		CallStatus: r.PostFormValue("CallStatus"),
		CallerName: r.PostFormValue("CallerName"),
	}, nil
}

type RecordingWebhook struct {
	CallSid           string
	RecordingSid      string
	RecordingURL      string
	RecordingStatus   string
	RecordingDuration int
}

func ParseRecordingWebhook(r *http.Request) (RecordingWebhook, error) {
	if err := r.ParseForm(); err != nil {
		return RecordingWebhook{}, err
	}
	duration, _ := strconv.Atoi(r.PostFormValue("RecordingDuration"))
	return RecordingWebhook{
		CallSid:           r.PostFormValue("CallSid"),
		RecordingSid:      r.PostFormValue("RecordingSid"),
		RecordingURL:      r.PostFormValue("RecordingUrl"),
		RecordingStatus:   r.PostFormValue("RecordingStatus"),
		RecordingDuration: duration,
	}, nil
}
