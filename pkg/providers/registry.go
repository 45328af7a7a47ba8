package providers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harunnryd/interview/pkg/adapters/stt"
	"github.com/harunnryd/interview/pkg/adapters/tts"
	"github.com/harunnryd/interview/pkg/analysis"
	"github.com/harunnryd/interview/pkg/llm"
)

// Builders validate a vendor settings block once at boot and return the
// factory sessions use.
type STTBuilder func(settings map[string]any) (stt.Factory, error)
type TTSBuilder func(settings map[string]any) (tts.Factory, error)
type LLMBuilder func(settings map[string]any) (llm.Generator, error)
type FaceBuilder func(settings map[string]any) (analysis.FaceFactory, error)

type Registry struct {
	stt  map[string]STTBuilder
	tts  map[string]TTSBuilder
	llm  map[string]LLMBuilder
	face map[string]FaceBuilder
}

func NewRegistry() *Registry {
	return &Registry{
		stt:  make(map[string]STTBuilder),
		tts:  make(map[string]TTSBuilder),
		llm:  make(map[string]LLMBuilder),
		face: make(map[string]FaceBuilder),
	}
}

func key(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

func (r *Registry) RegisterSTT(name string, b STTBuilder)   { r.stt[key(name)] = b }
func (r *Registry) RegisterTTS(name string, b TTSBuilder)   { r.tts[key(name)] = b }
func (r *Registry) RegisterLLM(name string, b LLMBuilder)   { r.llm[key(name)] = b }
func (r *Registry) RegisterFace(name string, b FaceBuilder) { r.face[key(name)] = b }

func (r *Registry) BuildSTT(provider string, settings map[string]any) (stt.Factory, error) {
	fn := r.stt[key(provider)]
	if fn == nil {
		return nil, fmt.Errorf("stt provider not registered: %s (known: %s)", provider, names(r.stt))
	}
	return fn(settings)
}

func (r *Registry) BuildTTS(provider string, settings map[string]any) (tts.Factory, error) {
	fn := r.tts[key(provider)]
	if fn == nil {
		return nil, fmt.Errorf("tts provider not registered: %s (known: %s)", provider, names(r.tts))
	}
	return fn(settings)
}

func (r *Registry) BuildLLM(provider string, settings map[string]any) (llm.Generator, error) {
	fn := r.llm[key(provider)]
	if fn == nil {
		return nil, fmt.Errorf("llm provider not registered: %s (known: %s)", provider, names(r.llm))
	}
	return fn(settings)
}

func (r *Registry) BuildFace(provider string, settings map[string]any) (analysis.FaceFactory, error) {
	fn := r.face[key(provider)]
	if fn == nil {
		return nil, fmt.Errorf("face provider not registered: %s (known: %s)", provider, names(r.face))
	}
	return fn(settings)
}

func names[T any](m map[string]T) string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}
