package phone

import (
	"errors"
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Normalize canonicalizes free-text phone numbers to E.164.
//
// Strategy: parse against the default region first; if that fails, retry
// assuming the digits already carry a country code. Malformed input is
// reported as ErrInvalidNumber, never as a panic; callers treat it as
// "no phone found".

var ErrInvalidNumber = errors.New("phone: not a valid phone number")

// DefaultRegion is the region assumed for numbers without a country code.
const DefaultRegion = "US"

var nonDialable = regexp.MustCompile(`[^\d+]`)

func Normalize(raw string) (string, error) {
	return NormalizeRegion(raw, DefaultRegion)
}

func NormalizeRegion(raw, region string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidNumber
	}

	if num, err := phonenumbers.Parse(trimmed, region); err == nil && phonenumbers.IsValidNumber(num) {
		return phonenumbers.Format(num, phonenumbers.E164), nil
	}

	// Retry treating the digits as a full international number.
	digits := strings.TrimPrefix(nonDialable.ReplaceAllString(trimmed, ""), "+")
	if digits == "" {
		return "", ErrInvalidNumber
	}
	num, err := phonenumbers.Parse("+"+digits, "")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidNumber
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// candidatePattern is a permissive sweep for phone-shaped substrings in free
// text (email bodies, signatures). Matches are validated by Normalize before
// being returned, so false positives here are cheap.
var candidatePattern = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`)

// ExtractFromText returns the distinct normalized phone numbers found in text.
func ExtractFromText(text string) []string {
	matches := candidatePattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		normalized, err := Normalize(m)
		if err != nil {
			continue
		}
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, normalized)
	}
	return out
}
