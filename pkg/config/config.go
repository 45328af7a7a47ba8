package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Session       SessionConfig       `mapstructure:"session"`
	Generation    GenerationConfig    `mapstructure:"generation"`
	Vendors       VendorsConfig       `mapstructure:"vendors"`
	Store         StoreConfig         `mapstructure:"store"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
}

type ServerConfig struct {
	Addr            string   `mapstructure:"addr"`
	AllowAnyOrigin  bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	MaxMessageBytes int64    `mapstructure:"max_message_bytes"`
	WriteTimeoutMS  int      `mapstructure:"write_timeout_ms"`
	DrainTimeoutMS  int      `mapstructure:"drain_timeout_ms"`
}

type SessionConfig struct {
	SampleRate          int  `mapstructure:"sample_rate"`
	VocalInterval       int  `mapstructure:"vocal_interval"`
	AudioChunkBytes     int  `mapstructure:"audio_chunk_bytes"`
	PlaybackPacingMS    int  `mapstructure:"playback_pacing_ms"`
	STTConnectTimeoutMS int  `mapstructure:"stt_connect_timeout_ms"`
	GenerateTimeoutMS   int  `mapstructure:"generate_timeout_ms"`
	SynthesizeTimeoutMS int  `mapstructure:"synthesize_timeout_ms"`
	VideoWorkers        int  `mapstructure:"video_workers"`
	VideoQueue          int  `mapstructure:"video_queue"`
	OpeningMessage      bool `mapstructure:"opening_message"`
	MaxReplySentences   int  `mapstructure:"max_reply_sentences"`
	MaxReplyChars       int  `mapstructure:"max_reply_chars"`
}

type GenerationConfig struct {
	MaxAttempts       int   `mapstructure:"max_attempts"`
	RetryDelaysMS     []int `mapstructure:"retry_delays_ms"`
	CircuitThreshold  int   `mapstructure:"circuit_threshold"`
	CircuitCooldownMS int   `mapstructure:"circuit_cooldown_ms"`
	GateWaitMS        int   `mapstructure:"gate_wait_ms"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	STT  VendorConfig `mapstructure:"stt"`
	TTS  VendorConfig `mapstructure:"tts"`
	LLM  VendorConfig `mapstructure:"llm"`
	Face VendorConfig `mapstructure:"face"`
}

type StoreConfig struct {
	TimelineSize        int `mapstructure:"timeline_size"`
	SnapshotTimeline    int `mapstructure:"snapshot_timeline"`
	VocalBroadcastEvery int `mapstructure:"vocal_broadcast_every"`
	ObserverBuffer      int `mapstructure:"observer_buffer"`
	RetainEnded         int `mapstructure:"retain_ended"`
}

type ObservabilityConfig struct {
	MetricsEnabled    bool   `mapstructure:"metrics_enabled"`
	MetricsPath       string `mapstructure:"metrics_path"`
	NATSURL           string `mapstructure:"nats_url"`
	NATSSubjectPrefix string `mapstructure:"nats_subject_prefix"`
	EventsFile        string `mapstructure:"events_file"`
	EventBuffer       int    `mapstructure:"event_buffer"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.allow_any_origin", true)
	v.SetDefault("server.max_message_bytes", 1<<20)
	v.SetDefault("server.write_timeout_ms", 5000)
	v.SetDefault("server.drain_timeout_ms", 10000)
	v.SetDefault("session.sample_rate", 16000)
	v.SetDefault("session.vocal_interval", 3)
	v.SetDefault("session.audio_chunk_bytes", 1600)
	v.SetDefault("session.playback_pacing_ms", 10)
	v.SetDefault("session.stt_connect_timeout_ms", 10000)
	v.SetDefault("session.generate_timeout_ms", 30000)
	v.SetDefault("session.synthesize_timeout_ms", 30000)
	v.SetDefault("session.video_workers", 4)
	v.SetDefault("session.video_queue", 32)
	v.SetDefault("session.opening_message", true)
	v.SetDefault("session.max_reply_sentences", 4)
	v.SetDefault("session.max_reply_chars", 600)
	v.SetDefault("generation.max_attempts", 3)
	v.SetDefault("generation.retry_delays_ms", []int{10000, 30000, 60000})
	v.SetDefault("generation.circuit_threshold", 3)
	v.SetDefault("generation.circuit_cooldown_ms", 60000)
	v.SetDefault("generation.gate_wait_ms", 45000)
	v.SetDefault("vendors.face.provider", "heuristic")
	v.SetDefault("store.timeline_size", 500)
	v.SetDefault("store.snapshot_timeline", 50)
	v.SetDefault("store.vocal_broadcast_every", 5)
	v.SetDefault("store.observer_buffer", 256)
	v.SetDefault("store.retain_ended", 100)
	v.SetDefault("observability.metrics_enabled", true)
	v.SetDefault("observability.metrics_path", "/metrics")
	v.SetDefault("observability.nats_url", "")
	v.SetDefault("observability.nats_subject_prefix", "interview")
	v.SetDefault("observability.events_file", "")
	v.SetDefault("observability.event_buffer", 1024)
	v.SetDefault("privacy.redact_pii", true)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// LoadConfig reads a YAML config file. Environment variables prefixed with
// INTERVIEW_ override file values (server.addr -> INTERVIEW_SERVER_ADDR), and
// ${VAR} references inside string values are expanded after decoding.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("interview")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Vendors.STT.Provider) == "" {
		return fmt.Errorf("vendors.stt.provider is required")
	}
	if strings.TrimSpace(c.Vendors.TTS.Provider) == "" {
		return fmt.Errorf("vendors.tts.provider is required")
	}
	if strings.TrimSpace(c.Vendors.LLM.Provider) == "" {
		return fmt.Errorf("vendors.llm.provider is required")
	}
	if c.Session.VocalInterval <= 0 {
		return fmt.Errorf("session.vocal_interval must be positive, got %d", c.Session.VocalInterval)
	}
	if c.Session.AudioChunkBytes <= 0 || c.Session.AudioChunkBytes%2 != 0 {
		return fmt.Errorf("session.audio_chunk_bytes must be a positive even number, got %d", c.Session.AudioChunkBytes)
	}
	if c.Generation.MaxAttempts <= 0 {
		return fmt.Errorf("generation.max_attempts must be positive, got %d", c.Generation.MaxAttempts)
	}
	if c.Store.TimelineSize <= 0 {
		return fmt.Errorf("store.timeline_size must be positive, got %d", c.Store.TimelineSize)
	}
	return nil
}

// GateWait bounds how long a turn queues behind other sessions' generations.
func (g GenerationConfig) GateWait() time.Duration {
	return time.Duration(g.GateWaitMS) * time.Millisecond
}

// RetryDelays returns the quota backoff schedule.
func (g GenerationConfig) RetryDelays() []time.Duration {
	out := make([]time.Duration, 0, len(g.RetryDelaysMS))
	for _, ms := range g.RetryDelaysMS {
		out = append(out, time.Duration(ms)*time.Millisecond)
	}
	return out
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.STT.Settings = expandSettings(cfg.Vendors.STT.Settings)
	cfg.Vendors.TTS.Settings = expandSettings(cfg.Vendors.TTS.Settings)
	cfg.Vendors.LLM.Settings = expandSettings(cfg.Vendors.LLM.Settings)
	cfg.Vendors.Face.Settings = expandSettings(cfg.Vendors.Face.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		return expandSettings(val)
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	switch v.Kind() {
	case reflect.Pointer:
		if !v.IsNil() {
			expandValue(v.Elem())
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	}
}
