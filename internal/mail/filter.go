package mail

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Filter decides whether an inbound message is worth ingesting at all.
// It is an allow-list-by-exclusion: newsletters, receipts and automated
// notifications are dropped before extraction ever sees them.
//
// False negatives (a missed newsletter) are acceptable; false positives that
// drop genuine customer correspondence are the risk to minimize. The rule
// set is therefore loadable from a YAML file so tuning does not require a
// redeploy.

type Rules struct {
	// NoReplyPatterns are substrings matched against the sender address.
	NoReplyPatterns []string `yaml:"no_reply_patterns"`

	// SubjectPatterns are case-insensitive regexes matched against the subject.
	SubjectPatterns []string `yaml:"subject_patterns"`

	// ServiceDomains paired with ServicePrefixes: a sender is dropped when its
	// domain is listed AND its local part starts with a listed prefix.
	ServiceDomains  []string `yaml:"service_domains"`
	ServicePrefixes []string `yaml:"service_prefixes"`

	// MaxRecipients is the mass-mail fan-out threshold.
	MaxRecipients int `yaml:"max_recipients"`

	// MinSubjectLength drops empty or near-empty subjects.
	MinSubjectLength int `yaml:"min_subject_length"`
}

func DefaultRules() Rules {
	return Rules{
		NoReplyPatterns: []string{
			"noreply", "no-reply", "donotreply", "do-not-reply",
			"mailer-daemon", "notifications@", "notification@",
		},
		SubjectPatterns: []string{
			`receipt`, `invoice`, `order confirmation`, `shipping confirmation`,
			`your order`, `newsletter`, `unsubscribe`, `verify your`,
			`password reset`, `account alert`,
		},
		ServiceDomains: []string{
			"amazonses.com", "sendgrid.net", "mailchimp.com", "mailgun.org",
			"salesforce.com", "intercom.io", "zendesk.com",
		},
		ServicePrefixes: []string{
			"support", "billing", "info", "hello", "alerts", "updates",
			"news", "marketing", "bounce", "postmaster",
		},
		MaxRecipients:    5,
		MinSubjectLength: 3,
	}
}

// LoadRules reads a YAML rule file. Fields left unset in the file fall back
// to the built-in defaults so a partial override stays safe.
func LoadRules(path string) (Rules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("mail: read filter rules: %w", err)
	}
	rules := DefaultRules()
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return Rules{}, fmt.Errorf("mail: parse filter rules: %w", err)
	}
	if rules.MaxRecipients <= 0 {
		rules.MaxRecipients = DefaultRules().MaxRecipients
	}
	if rules.MinSubjectLength <= 0 {
		rules.MinSubjectLength = DefaultRules().MinSubjectLength
	}
	return rules, nil
}

type Filter struct {
	rules    Rules
	subject  []*regexp.Regexp
	domains  map[string]bool
	prefixes []string
}

func NewFilter(rules Rules) (*Filter, error) {
	f := &Filter{rules: rules, domains: make(map[string]bool, len(rules.ServiceDomains))}
	for _, p := range rules.SubjectPatterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("mail: bad subject pattern %q: %w", p, err)
		}
		f.subject = append(f.subject, re)
	}
	for _, d := range rules.ServiceDomains {
		f.domains[strings.ToLower(d)] = true
	}
	f.prefixes = rules.ServicePrefixes
	return f, nil
}

// ShouldSkip reports whether the message should be dropped before ingestion.
// headers keys are matched case-insensitively.
func (f *Filter) ShouldSkip(headers map[string]string, fromAddr, subject string) bool {
	h := lowerKeys(headers)

	if _, ok := h["list-unsubscribe"]; ok {
		return true
	}
	if isBulkPrecedence(h["precedence"]) {
		return true
	}
	if v, ok := h["auto-submitted"]; ok && !strings.EqualFold(strings.TrimSpace(v), "no") {
		return true
	}
	if _, ok := h["x-auto-response-suppress"]; ok {
		return true
	}

	from := NormalizeAddress(fromAddr)
	if f.IsAutomatedSender(from) {
		return true
	}
	if f.isServiceAddress(from) {
		return true
	}

	trimmed := strings.TrimSpace(subject)
	if len(trimmed) < f.rules.MinSubjectLength {
		return true
	}
	for _, re := range f.subject {
		if re.MatchString(subject) {
			return true
		}
	}
	return false
}

// TooManyRecipients applies the mass-mail fan-out heuristic.
func (f *Filter) TooManyRecipients(count int) bool {
	return count > f.rules.MaxRecipients
}

// IsAutomatedSender matches no-reply style sender naming.
func (f *Filter) IsAutomatedSender(addr string) bool {
	lower := NormalizeAddress(addr)
	for _, p := range f.rules.NoReplyPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func (f *Filter) isServiceAddress(addr string) bool {
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return false
	}
	local, domain := addr[:at], addr[at+1:]
	if !f.domains[domain] {
		return false
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(local, p) {
			return true
		}
	}
	return false
}

func isBulkPrecedence(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "bulk", "list", "junk":
		return true
	default:
		return false
	}
}

func lowerKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = v
	}
	return out
}
