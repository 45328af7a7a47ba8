package redact

import (
	"strings"
	"testing"
)

func TestRedactDisabled(t *testing.T) {
	SetEnabled(false)
	in := "email a@b.com and phone +62 812 3456 7890"
	if got := Participant(in, "Ada Lovelace"); got != in {
		t.Fatalf("expected no redaction, got %q", got)
	}
}

func TestRedactEnabled(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	in := "email a@b.com and phone +62 812 3456 7890"
	got := Text(in)
	if want := "[REDACTED_EMAIL]"; !strings.Contains(got, want) {
		t.Fatalf("expected %q in output", want)
	}
	if want := "[REDACTED_PHONE]"; !strings.Contains(got, want) {
		t.Fatalf("expected %q in output", want)
	}
}

func TestRedactParticipantName(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	got := Participant("hi, I'm ada lovelace and I like Go", "Ada Lovelace")
	if strings.Contains(strings.ToLower(got), "ada") || strings.Contains(strings.ToLower(got), "lovelace") {
		t.Fatalf("expected name removed, got %q", got)
	}
	if !strings.Contains(got, "I like Go") {
		t.Fatalf("expected rest of text kept, got %q", got)
	}
}
