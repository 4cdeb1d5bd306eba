package telephony

import (
	"net/url"
	"testing"
)

func TestVerifySignature(t *testing.T) {
	params := url.Values{}
	params.Set("CallSid", "CA123")
	params.Set("From", "+14155550100")
	params.Set("To", "+14155550199")

	const token = "secret-token"
	const reqURL = "https://example.com/webhooks/twilio/voice"

	sig := ComputeSignature(token, reqURL, params)
	if !VerifySignature(token, reqURL, params, sig) {
		t.Fatalf("expected signature to verify")
	}
	if VerifySignature(token, reqURL, params, sig+"x") {
		t.Fatalf("tampered signature must not verify")
	}
	if VerifySignature(token, reqURL, params, "") {
		t.Fatalf("missing signature must not verify")
	}
	if VerifySignature("other-token", reqURL, params, sig) {
		t.Fatalf("wrong secret must not verify")
	}

	params.Set("From", "+14155550111")
	if VerifySignature(token, reqURL, params, sig) {
		t.Fatalf("changed params must not verify")
	}
}

func TestComputeSignature_KeyOrderIndependent(t *testing.T) {
	a := url.Values{"B": {"2"}, "A": {"1"}}
	b := url.Values{"A": {"1"}, "B": {"2"}}
	if ComputeSignature("t", "https://example.com/x", a) != ComputeSignature("t", "https://example.com/x", b) {
		t.Fatalf("signature must not depend on map iteration order")
	}
}
