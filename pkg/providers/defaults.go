package providers

import (
	"github.com/harunnryd/interview/pkg/analysis"
	"github.com/harunnryd/interview/pkg/configutil"
	"github.com/harunnryd/interview/pkg/errorsx"
	"github.com/harunnryd/interview/pkg/providers/assemblyai"
	"github.com/harunnryd/interview/pkg/providers/cartesia"
	"github.com/harunnryd/interview/pkg/providers/deepgram"
	"github.com/harunnryd/interview/pkg/providers/elevenlabs"
	"github.com/harunnryd/interview/pkg/providers/gemini"
	"github.com/harunnryd/interview/pkg/providers/mock"
	"github.com/harunnryd/interview/pkg/providers/openai"
)

type httpFaceSettings struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

// Default registers every built-in provider.
func Default() *Registry {
	r := NewRegistry()

	r.RegisterSTT("deepgram", deepgram.Builder)
	r.RegisterSTT("assemblyai", assemblyai.Builder)
	r.RegisterSTT("mock", mock.STTBuilder)

	r.RegisterLLM("openai", openai.Builder)
	r.RegisterLLM("groq", openai.Builder)
	r.RegisterLLM("gemini", gemini.Builder)
	r.RegisterLLM("mock", mock.LLMBuilder)

	r.RegisterTTS("cartesia", cartesia.Builder)
	r.RegisterTTS("elevenlabs", elevenlabs.Builder)
	r.RegisterTTS("mock", mock.TTSBuilder)

	r.RegisterFace("heuristic", heuristicFace)
	r.RegisterFace("http", httpFace)
	r.RegisterFace("none", noFace)
	return r
}

func heuristicFace(settings map[string]any) (analysis.FaceFactory, error) {
	if err := configutil.ValidateSettings(settings, configutil.Schema{}); err != nil {
		return nil, err
	}
	return func() (analysis.FaceAnalyzer, error) { return analysis.NewHeuristicFace(), nil }, nil
}

func httpFace(settings map[string]any) (analysis.FaceFactory, error) {
	var s httpFaceSettings
	schema := configutil.Schema{Required: []string{"base_url"}, Optional: []string{"api_key", "timeout_ms"}}
	if err := configutil.Decode("vendors.face.settings", settings, schema, &s); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonAnalyzerInit)
	}
	return func() (analysis.FaceAnalyzer, error) {
		return analysis.NewHTTPFace(analysis.HTTPFaceConfig{
			BaseURL: s.BaseURL,
			APIKey:  s.APIKey,
			Timeout: configutil.Millis(s.TimeoutMS, 0),
		}), nil
	}, nil
}

func noFace(map[string]any) (analysis.FaceFactory, error) {
	return func() (analysis.FaceAnalyzer, error) { return analysis.NopFace{}, nil }, nil
}
