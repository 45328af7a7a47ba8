package configutil

import (
	"strings"
	"testing"
	"time"
)

type cartesiaLike struct {
	APIKey     string `mapstructure:"api_key"`
	VoiceID    string `mapstructure:"voice_id"`
	SampleRate int    `mapstructure:"sample_rate"`
	Interim    *bool  `mapstructure:"interim"`
}

func TestDecodeNormalizesKeys(t *testing.T) {
	input := map[string]any{
		"API-Key":     "secret",
		"voiceId":     "voice-1",
		"sample_rate": "16000",
		"interim":     "false",
	}
	var out cartesiaLike
	err := Decode("vendors.tts.settings", input, Schema{
		Required: []string{"api_key"},
		Optional: []string{"voice_id", "sample_rate", "interim"},
	}, &out)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if out.APIKey != "secret" || out.VoiceID != "voice-1" || out.SampleRate != 16000 {
		t.Fatalf("unexpected decode result: %+v", out)
	}
	if BoolValue(out.Interim, true) {
		t.Fatalf("expected interim=false from weakly typed input")
	}
}

func TestValidateReportsMissingAndUnknown(t *testing.T) {
	err := ValidateSettings(map[string]any{"api_key": "  ", "colour": "blue"}, Schema{
		Required: []string{"api_key"},
	})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "missing: api_key") || !strings.Contains(msg, "unknown: colour") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestDecodePrefixesPath(t *testing.T) {
	var out cartesiaLike
	err := Decode("vendors.tts.settings", nil, Schema{Required: []string{"api_key"}}, &out)
	if err == nil || !strings.HasPrefix(err.Error(), "vendors.tts.settings: ") {
		t.Fatalf("expected path-prefixed error, got %v", err)
	}
}

func TestMillis(t *testing.T) {
	if got := Millis(0, time.Second); got != time.Second {
		t.Fatalf("expected fallback, got %s", got)
	}
	if got := Millis(250, time.Second); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %s", got)
	}
}
