package config

import (
	"time"

	"github.com/harunnryd/interview/pkg/configutil"
)

func (s SessionConfig) PlaybackPacing() time.Duration {
	return configutil.Millis(s.PlaybackPacingMS, 10*time.Millisecond)
}

func (s SessionConfig) STTConnectTimeout() time.Duration {
	return configutil.Millis(s.STTConnectTimeoutMS, 10*time.Second)
}

func (s SessionConfig) GenerateTimeout() time.Duration {
	return configutil.Millis(s.GenerateTimeoutMS, 30*time.Second)
}

func (s SessionConfig) SynthesizeTimeout() time.Duration {
	return configutil.Millis(s.SynthesizeTimeoutMS, 30*time.Second)
}

func (s ServerConfig) WriteTimeout() time.Duration {
	return configutil.Millis(s.WriteTimeoutMS, 5*time.Second)
}

func (s ServerConfig) DrainTimeout() time.Duration {
	return configutil.Millis(s.DrainTimeoutMS, 10*time.Second)
}

func (g GenerationConfig) CircuitCooldown() time.Duration {
	return configutil.Millis(g.CircuitCooldownMS, time.Minute)
}
