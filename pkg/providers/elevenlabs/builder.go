package elevenlabs

import (
	"github.com/harunnryd/interview/pkg/adapters/tts"
	"github.com/harunnryd/interview/pkg/configutil"
	"github.com/harunnryd/interview/pkg/errorsx"
)

type Settings struct {
	APIKey  string `mapstructure:"api_key"`
	VoiceID string `mapstructure:"voice_id"`
	ModelID string `mapstructure:"model_id"`
	BaseURL string `mapstructure:"base_url"`
}

var Schema = configutil.Schema{
	Required: []string{"api_key", "voice_id"},
	Optional: []string{"model_id", "base_url"},
}

func Builder(settings map[string]any) (tts.Factory, error) {
	var s Settings
	if err := configutil.Decode("vendors.tts.settings", settings, Schema, &s); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonMissingCredentials)
	}
	return func(cfg tts.Config) (tts.Synthesizer, error) {
		return New(Config{
			APIKey:     s.APIKey,
			VoiceID:    s.VoiceID,
			ModelID:    configutil.StringValue(s.ModelID, "eleven_flash_v2_5"),
			BaseURL:    s.BaseURL,
			SampleRate: cfg.SampleRate,
			SessionID:  cfg.SessionID,
		}), nil
	}, nil
}
