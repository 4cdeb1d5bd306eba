package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
)

// Twilio signs webhooks with HMAC-SHA1 over the full request URL followed by
// every POST parameter, sorted by key, concatenated as key+value. The digest
// is base64-encoded into the X-Twilio-Signature header.
// Ref: https://www.twilio.com/docs/usage/security#validating-requests

// ComputeSignature builds the expected signature for a webhook request.
func ComputeSignature(authToken, requestURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(requestURL))
	for _, k := range keys {
		mac.Write([]byte(k))
		mac.Write([]byte(params.Get(k)))
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares a header value against the recomputed signature in
// constant time. An empty header never verifies.
func VerifySignature(authToken, requestURL string, params url.Values, signature string) bool {
	if signature == "" {
		return false
	}
	expected := ComputeSignature(authToken, requestURL, params)
	return hmac.Equal([]byte(expected), []byte(signature))
}
