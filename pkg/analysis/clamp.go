package analysis

import "github.com/harunnryd/interview/pkg/emotion"

// Clamp bounds every dimension to [0, 1] and rounds to three decimals, the
// form every analyzer reports.
func Clamp(e emotion.Estimate) emotion.Estimate {
	c := e.Clamp()
	return emotion.Estimate{
		Anxiety:    emotion.Round3(c.Anxiety),
		Confidence: emotion.Round3(c.Confidence),
		Engagement: emotion.Round3(c.Engagement),
	}
}
