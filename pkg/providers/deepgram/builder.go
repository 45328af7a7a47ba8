package deepgram

import (
	"github.com/harunnryd/interview/pkg/adapters/stt"
	"github.com/harunnryd/interview/pkg/configutil"
	"github.com/harunnryd/interview/pkg/errorsx"
)

type Settings struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	Language       string `mapstructure:"language"`
	Interim        *bool  `mapstructure:"interim"`
	UtteranceEndMS *int   `mapstructure:"utterance_end_ms"`
}

var Schema = configutil.Schema{
	Required: []string{"api_key"},
	Optional: []string{"model", "language", "interim", "utterance_end_ms"},
}

// Builder validates vendor settings once and returns a per-connection factory.
func Builder(settings map[string]any) (stt.Factory, error) {
	var s Settings
	if err := configutil.Decode("vendors.stt.settings", settings, Schema, &s); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonMissingCredentials)
	}
	return func(cfg stt.Config) (stt.StreamingSTT, error) {
		return New(Config{
			APIKey:         s.APIKey,
			Model:          s.Model,
			Language:       configutil.StringValue(s.Language, cfg.Language),
			SampleRate:     cfg.SampleRate,
			Interim:        configutil.BoolValue(s.Interim, true),
			UtteranceEndMS: configutil.IntValue(s.UtteranceEndMS, 1000),
			SessionID:      cfg.SessionID,
		}), nil
	}, nil
}
