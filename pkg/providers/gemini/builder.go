package gemini

import (
	"context"

	"github.com/harunnryd/interview/pkg/configutil"
	"github.com/harunnryd/interview/pkg/errorsx"
	"github.com/harunnryd/interview/pkg/llm"
)

type Settings struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

var Schema = configutil.Schema{
	Required: []string{"api_key"},
	Optional: []string{"model"},
}

func Builder(settings map[string]any) (llm.Generator, error) {
	var s Settings
	if err := configutil.Decode("vendors.llm.settings", settings, Schema, &s); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonMissingCredentials)
	}
	g, err := New(context.Background(), s.APIKey, s.Model)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonProviderInit)
	}
	return g, nil
}
