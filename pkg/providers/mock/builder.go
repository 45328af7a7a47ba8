package mock

import (
	"github.com/harunnryd/interview/pkg/adapters/stt"
	"github.com/harunnryd/interview/pkg/adapters/tts"
	"github.com/harunnryd/interview/pkg/configutil"
	"github.com/harunnryd/interview/pkg/llm"
)

type sttSettings struct {
	Transcripts   []string `mapstructure:"transcripts"`
	ChunksPerTurn int      `mapstructure:"chunks_per_turn"`
}

type llmSettings struct {
	Responses []string `mapstructure:"responses"`
}

type ttsSettings struct {
	MillisPerWord int `mapstructure:"millis_per_word"`
}

func STTBuilder(settings map[string]any) (stt.Factory, error) {
	var s sttSettings
	if err := configutil.Decode("vendors.stt.settings", settings, configutil.Schema{Optional: []string{"transcripts", "chunks_per_turn"}}, &s); err != nil {
		return nil, err
	}
	return func(cfg stt.Config) (stt.StreamingSTT, error) {
		return NewSTT(STTConfig{Transcripts: s.Transcripts, ChunksPerTurn: s.ChunksPerTurn}), nil
	}, nil
}

func LLMBuilder(settings map[string]any) (llm.Generator, error) {
	var s llmSettings
	if err := configutil.Decode("vendors.llm.settings", settings, configutil.Schema{Optional: []string{"responses"}}, &s); err != nil {
		return nil, err
	}
	return NewGenerator(LLMConfig{Responses: s.Responses}), nil
}

func TTSBuilder(settings map[string]any) (tts.Factory, error) {
	var s ttsSettings
	if err := configutil.Decode("vendors.tts.settings", settings, configutil.Schema{Optional: []string{"millis_per_word"}}, &s); err != nil {
		return nil, err
	}
	return func(cfg tts.Config) (tts.Synthesizer, error) {
		return NewSynthesizer(TTSConfig{SampleRate: cfg.SampleRate, MillisPerWord: s.MillisPerWord}), nil
	}, nil
}
