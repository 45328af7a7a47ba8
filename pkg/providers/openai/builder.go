package openai

import (
	"github.com/harunnryd/interview/pkg/configutil"
	"github.com/harunnryd/interview/pkg/errorsx"
	"github.com/harunnryd/interview/pkg/llm"
)

type Settings struct {
	APIKey      string   `mapstructure:"api_key"`
	Model       string   `mapstructure:"model"`
	BaseURL     string   `mapstructure:"base_url"`
	Temperature *float64 `mapstructure:"temperature"`
	MaxTokens   *int     `mapstructure:"max_tokens"`
}

var Schema = configutil.Schema{
	Required: []string{"api_key"},
	Optional: []string{"model", "base_url", "temperature", "max_tokens"},
}

func Builder(settings map[string]any) (llm.Generator, error) {
	var s Settings
	if err := configutil.Decode("vendors.llm.settings", settings, Schema, &s); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonMissingCredentials)
	}
	a := NewAdapter(s.APIKey, s.Model)
	a.BaseURL = configutil.StringValue(s.BaseURL, DefaultBaseURL)
	if s.Temperature != nil {
		a.Temperature = *s.Temperature
	}
	a.MaxTokens = configutil.IntValue(s.MaxTokens, a.MaxTokens)
	return a, nil
}
