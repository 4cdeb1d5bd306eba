package telephony

import (
	"bytes"
	"encoding/xml"
)

// Minimal TwiML builder; no provider SDK dependency.
// Only the verbs the recording flow needs.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type twimlRecord struct {
	XMLName                       xml.Name `xml:"Record"`
	RecordingStatusCallback       string   `xml:"recordingStatusCallback,attr"`
	RecordingStatusCallbackMethod string   `xml:"recordingStatusCallbackMethod,attr"`
	RecordingStatusCallbackEvent  string   `xml:"recordingStatusCallbackEvent,attr"`
	Transcribe                    string   `xml:"transcribe,attr"`
	Timeout                       int      `xml:"timeout,attr"`
	PlayBeep                      string   `xml:"playBeep,attr"`
}

// RenderRecordPrompt announces the recording notice, records the call with a
// status callback, and closes with a goodbye. Transcription is done by the
// pipeline, not by the provider.
func RenderRecordPrompt(callbackURL string) (string, error) {
	r := twimlResponse{Verbs: []any{
		twimlSay{Text: "This call may be recorded for quality purposes."},
		twimlRecord{
			RecordingStatusCallback:       callbackURL,
			RecordingStatusCallbackMethod: "POST",
			RecordingStatusCallbackEvent:  "completed",
			Transcribe:                    "false",
			Timeout:                       30,
			PlayBeep:                      "false",
		},
		twimlSay{Text: "Thank you for calling. Goodbye."},
	}}
	return renderTwiML(r)
}

// RenderSay produces a single spoken message. Recoverable webhook errors use
// this with HTTP 200 so the call itself is not dropped.
func RenderSay(message string) (string, error) {
	return renderTwiML(twimlResponse{Verbs: []any{twimlSay{Text: message}}})
}

func renderTwiML(r twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
