package mail

import (
	"regexp"
	"strings"
)

// NormalizeAddress canonicalizes an email address for identity matching.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

var angleAddr = regexp.MustCompile(`<([^>]+)>`)
var namePrefix = regexp.MustCompile(`^([^<]+)\s*<`)

// ExtractAddress pulls the bare address out of a header value like
// "John Doe <john@example.com>"; a bare address passes through normalized.
func ExtractAddress(header string) string {
	if m := angleAddr.FindStringSubmatch(header); m != nil {
		return NormalizeAddress(m[1])
	}
	return NormalizeAddress(header)
}

// ExtractDisplayName returns the display-name portion of a From header,
// or "" when the header carries only an address.
func ExtractDisplayName(header string) string {
	if m := namePrefix.FindStringSubmatch(header); m != nil {
		return strings.Trim(strings.TrimSpace(m[1]), `"`)
	}
	return ""
}

// SplitRecipients expands a To/Cc header into normalized bare addresses.
func SplitRecipients(header string) []string {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		addr := ExtractAddress(strings.TrimSpace(p))
		if addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
