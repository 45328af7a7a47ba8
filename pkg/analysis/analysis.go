// Package analysis turns raw media into emotion estimates.
//
// Analyzers return a nil result, not an error, when a frame or chunk carries
// no usable signal (no face found, silence, too short to measure).
package analysis

import (
	"context"

	"github.com/harunnryd/interview/pkg/emotion"
)

// Landmark is a normalized face mesh point.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// FaceResult is one analyzed video frame.
type FaceResult struct {
	Emotions         emotion.Estimate `json:"emotions"`
	MicroExpressions map[string]any   `json:"micro_expressions"`
	Landmarks        []Landmark       `json:"landmarks,omitempty"`
	FrameNumber      int              `json:"frame_number"`
}

// VocalFeatures are the acoustic measurements behind a vocal estimate.
type VocalFeatures struct {
	Pitch            float64 `json:"pitch"`
	AvgPitch         float64 `json:"avg_pitch"`
	PitchVariance    float64 `json:"pitch_variance"`
	Volume           float64 `json:"volume"`
	VolumeVariance   float64 `json:"volume_variance"`
	ZeroCrossingRate float64 `json:"zero_crossing_rate"`
	IsSpeaking       bool    `json:"is_speaking"`
	SpeakingRatio    float64 `json:"speaking_ratio"`
}

// VocalResult is one analyzed audio chunk.
type VocalResult struct {
	Features    VocalFeatures    `json:"features"`
	Emotions    emotion.Estimate `json:"emotions"`
	ChunkNumber int              `json:"chunk_number"`
}

// FaceAnalyzer estimates emotion from a single JPEG frame. Implementations
// keep per-session history and must be safe for concurrent calls.
type FaceAnalyzer interface {
	Name() string
	AnalyzeFrame(ctx context.Context, jpeg []byte) (*FaceResult, error)
	Close() error
}

// VocalAnalyzer estimates emotion from PCM16LE mono audio. Calls arrive in
// chunk order from a single goroutine.
type VocalAnalyzer interface {
	AnalyzeChunk(pcm []byte) *VocalResult
}

// FaceFactory builds a fresh per-session face analyzer.
type FaceFactory func() (FaceAnalyzer, error)

// NopFace never finds a face.
type NopFace struct{}

func (NopFace) Name() string { return "none" }
func (NopFace) AnalyzeFrame(context.Context, []byte) (*FaceResult, error) {
	return nil, nil
}
func (NopFace) Close() error { return nil }
