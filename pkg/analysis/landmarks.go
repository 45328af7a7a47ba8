package analysis

import (
	"math"
	"sync"

	"github.com/harunnryd/interview/pkg/emotion"
)

// Face mesh indices used for micro-expressions.
const (
	leftEyeTop        = 159
	leftEyeBottom     = 145
	rightEyeTop       = 386
	rightEyeBottom    = 374
	leftEyebrowInner  = 107
	rightEyebrowInner = 336
	upperLip          = 13
	lowerLip          = 14
	leftMouthCorner   = 61
	rightMouthCorner  = 291
	chin              = 152
	forehead          = 10
	jawLeft           = 172
	jawRight          = 397

	// MinMeshLandmarks is the smallest mesh the mapper can read.
	MinMeshLandmarks = jawRight + 1
)

// LandmarkMapper derives micro-expressions and emotions from face mesh
// landmarks, keeping short per-session histories of blinks, brow and mouth
// movement.
type LandmarkMapper struct {
	mu     sync.Mutex
	blinks []bool
	brows  []float64
	mouths []float64
	frames int
}

func NewLandmarkMapper() *LandmarkMapper {
	return &LandmarkMapper{}
}

type point struct{ x, y float64 }

func dist(a, b point) float64 { return math.Hypot(a.x-b.x, a.y-b.y) }

// Map returns nil when the mesh is too small to read.
func (m *LandmarkMapper) Map(landmarks []Landmark, width, height int) *FaceResult {
	if len(landmarks) < MinMeshLandmarks || width <= 0 || height <= 0 {
		return nil
	}
	at := func(i int) point {
		return point{landmarks[i].X * float64(width), landmarks[i].Y * float64(height)}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames++

	faceHeight := math.Max(dist(at(forehead), at(chin)), 1)
	scale := func(v float64) float64 { return v / faceHeight * 10 }

	ear := scale((dist(at(leftEyeTop), at(leftEyeBottom)) + dist(at(rightEyeTop), at(rightEyeBottom))) / 2)
	blinking := ear < 0.2
	m.blinks = append(m.blinks, blinking)
	if len(m.blinks) > 60 {
		m.blinks = m.blinks[len(m.blinks)-60:]
	}
	blinkCount := 0
	for _, b := range m.blinks {
		if b {
			blinkCount++
		}
	}
	blinkRate := float64(blinkCount) / float64(len(m.blinks))

	brow := scale((dist(at(leftEyebrowInner), at(leftEyeTop)) + dist(at(rightEyebrowInner), at(rightEyeTop))) / 2)
	m.brows = pushCapped(m.brows, brow, 30)

	mouthOpen := scale(dist(at(upperLip), at(lowerLip)))
	mouthWidth := scale(dist(at(leftMouthCorner), at(rightMouthCorner)))
	m.mouths = pushCapped(m.mouths, mouthOpen, 30)

	jaw := dist(at(jawLeft), at(jawRight)) / faceHeight

	micro := map[string]any{
		"eye_aspect_ratio": roundTo(ear, 3),
		"is_blinking":      blinking,
		"blink_rate":       roundTo(blinkRate, 3),
		"eyebrow_raise":    roundTo(brow, 3),
		"mouth_open":       roundTo(mouthOpen, 3),
		"mouth_width":      roundTo(mouthWidth, 3),
		"jaw_clench":       roundTo(jaw, 3),
	}

	anxiety := math.Min(roundTo(blinkRate, 3)*2, 0.4)
	anxiety += math.Min(math.Max(roundTo(brow, 3)-0.3, 0)*2, 0.3)
	anxiety += math.Min(math.Max(0.3-roundTo(mouthOpen, 3), 0)*3, 0.3)

	confidence := 0.5
	if blinkRate < 0.15 {
		confidence += 0.2
	}
	if brow > 0.2 && brow < 0.5 {
		confidence += 0.15
	}
	if mouthWidth > 0.3 {
		confidence += 0.15
	}

	engagement := 0.3
	if len(m.mouths) > 5 {
		engagement += math.Min(stddev(m.mouths)*10, 0.3)
	}
	if len(m.brows) > 5 {
		engagement += math.Min(stddev(m.brows)*5, 0.2)
	}
	if mouthOpen > 0.15 {
		engagement += 0.2
	}

	return &FaceResult{
		Emotions:         Clamp(emotion.Estimate{Anxiety: anxiety, Confidence: confidence, Engagement: engagement}),
		MicroExpressions: micro,
		Landmarks:        roundLandmarks(landmarks),
		FrameNumber:      m.frames,
	}
}

func roundLandmarks(in []Landmark) []Landmark {
	out := make([]Landmark, len(in))
	for i, l := range in {
		out[i] = Landmark{X: roundTo(l.X, 4), Y: roundTo(l.Y, 4), Z: roundTo(l.Z, 4)}
	}
	return out
}
