// Package emotion fuses face and vocal emotion estimates and maps the result
// to an interview adaptation decision.
package emotion

import (
	"fmt"
	"math"
)

// Fusion weights; they sum to 1.
const (
	FaceWeight  = 0.4
	VocalWeight = 0.6
)

// Estimate is one analyzer's reading. Every field is within [0,1].
type Estimate struct {
	Anxiety    float64 `json:"anxiety"`
	Confidence float64 `json:"confidence"`
	Engagement float64 `json:"engagement"`
}

// Neutral is used for a modality that has never produced an estimate.
var Neutral = Estimate{Anxiety: 0.5, Confidence: 0.5, Engagement: 0.5}

// Clamp forces every field into [0,1]; NaN becomes 0.
func (e Estimate) Clamp() Estimate {
	return Estimate{
		Anxiety:    clamp01(e.Anxiety),
		Confidence: clamp01(e.Confidence),
		Engagement: clamp01(e.Engagement),
	}
}

func (e Estimate) String() string {
	return fmt.Sprintf("anxiety=%.3f confidence=%.3f engagement=%.3f", e.Anxiety, e.Confidence, e.Engagement)
}

// Fuse combines a face and a vocal estimate with the fixed weights, rounded to 3 decimals.
func Fuse(face, vocal Estimate) Estimate {
	return Estimate{
		Anxiety:    Round3(FaceWeight*face.Anxiety + VocalWeight*vocal.Anxiety),
		Confidence: Round3(FaceWeight*face.Confidence + VocalWeight*vocal.Confidence),
		Engagement: Round3(FaceWeight*face.Engagement + VocalWeight*vocal.Engagement),
	}
}

// Round3 rounds half away from zero to 3 decimal places.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
