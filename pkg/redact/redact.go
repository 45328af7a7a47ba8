// Package redact masks personal data in transcript text before it is logged.
// Redaction is process-wide and off until SetEnabled(true).
package redact

import (
	"regexp"
	"strings"
	"sync/atomic"
)

var enabled atomic.Bool

type rule struct {
	re    *regexp.Regexp
	label string
}

// Order matters: emails are masked before the phone pattern can match their
// digits.
var rules = []rule{
	{regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`\b\+?\d[\d\s\-]{7,}\d\b`), "[REDACTED_PHONE]"},
}

const nameLabel = "[REDACTED_NAME]"

func SetEnabled(v bool) {
	enabled.Store(v)
}

func Enabled() bool {
	return enabled.Load()
}

// Text masks emails and phone numbers.
func Text(in string) string {
	if !enabled.Load() || strings.TrimSpace(in) == "" {
		return in
	}
	out := in
	for _, r := range rules {
		out = r.re.ReplaceAllString(out, r.label)
	}
	return out
}

// Participant masks Text's patterns and every part of the participant's
// name, case-insensitively. Name parts shorter than two runes are kept.
func Participant(in, name string) string {
	out := Text(in)
	if !enabled.Load() {
		return out
	}
	if re := namePattern(name); re != nil {
		out = re.ReplaceAllString(out, nameLabel)
	}
	return out
}

func namePattern(name string) *regexp.Regexp {
	var parts []string
	for _, part := range strings.Fields(name) {
		if len([]rune(part)) >= 2 {
			parts = append(parts, regexp.QuoteMeta(part))
		}
	}
	if len(parts) == 0 {
		return nil
	}
	re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(parts, "|") + `)\b`)
	if err != nil {
		return nil
	}
	return re
}
