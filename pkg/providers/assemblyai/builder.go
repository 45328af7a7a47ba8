package assemblyai

import (
	"github.com/harunnryd/interview/pkg/adapters/stt"
	"github.com/harunnryd/interview/pkg/configutil"
	"github.com/harunnryd/interview/pkg/errorsx"
)

type Settings struct {
	APIKey   string `mapstructure:"api_key"`
	TokenURL string `mapstructure:"token_url"`
	WSURL    string `mapstructure:"ws_url"`
}

var Schema = configutil.Schema{
	Required: []string{"api_key"},
	Optional: []string{"token_url", "ws_url"},
}

func Builder(settings map[string]any) (stt.Factory, error) {
	var s Settings
	if err := configutil.Decode("vendors.stt.settings", settings, Schema, &s); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonMissingCredentials)
	}
	return func(cfg stt.Config) (stt.StreamingSTT, error) {
		return New(Config{
			APIKey:     s.APIKey,
			SampleRate: cfg.SampleRate,
			SessionID:  cfg.SessionID,
			TokenURL:   s.TokenURL,
			WSURL:      s.WSURL,
		}), nil
	}, nil
}
