package analysis

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"math"
	"sync"

	"github.com/harunnryd/interview/pkg/emotion"
	"github.com/harunnryd/interview/pkg/errorsx"
)

const (
	heuristicGrid    = 32
	heuristicHistory = 30
	minContrast      = 0.02
)

// HeuristicFace estimates emotion from whole-frame statistics: luminance,
// contrast and inter-frame motion on a coarse grid. It needs no external
// service and finds "no face" only on blank frames.
type HeuristicFace struct {
	mu      sync.Mutex
	prev    []float64
	motions []float64
	frames  int
}

func NewHeuristicFace() *HeuristicFace {
	return &HeuristicFace{}
}

func (h *HeuristicFace) Name() string { return "heuristic" }

func (h *HeuristicFace) AnalyzeFrame(ctx context.Context, data []byte) (*FaceResult, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonDecode)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	grid := luminanceGrid(img, heuristicGrid)
	brightness := mean(grid)
	contrast := stddev(grid)
	if contrast < minContrast {
		return nil, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	motion := 0.0
	if len(h.prev) == len(grid) {
		for i := range grid {
			motion += math.Abs(grid[i] - h.prev[i])
		}
		motion /= float64(len(grid))
	}
	h.prev = grid
	h.motions = pushCapped(h.motions, motion, heuristicHistory)
	h.frames++
	jitter := 0.0
	if len(h.motions) > 5 {
		jitter = stddev(h.motions)
	}

	anxiety := math.Min(jitter*8, 0.5)
	if motion > 0.08 {
		anxiety += 0.2
	}
	if brightness < 0.2 {
		anxiety += 0.1
	}

	confidence := 0.5
	if motion < 0.03 {
		confidence += 0.2
	}
	if brightness > 0.25 && brightness < 0.75 {
		confidence += 0.15
	}
	if contrast > 0.15 {
		confidence += 0.15
	}

	engagement := 0.3 + math.Min(motion*5, 0.4)
	if contrast > 0.1 {
		engagement += 0.2
	}

	return &FaceResult{
		Emotions: Clamp(emotion.Estimate{Anxiety: anxiety, Confidence: confidence, Engagement: engagement}),
		MicroExpressions: map[string]any{
			"brightness": roundTo(brightness, 3),
			"contrast":   roundTo(contrast, 3),
			"motion":     roundTo(motion, 4),
			"jitter":     roundTo(jitter, 4),
		},
		FrameNumber: h.frames,
	}, nil
}

func (h *HeuristicFace) Close() error { return nil }

// luminanceGrid averages Rec. 601 luma over an n x n grid, normalized to [0,1].
func luminanceGrid(img image.Image, n int) []float64 {
	b := img.Bounds()
	w, hgt := b.Dx(), b.Dy()
	grid := make([]float64, n*n)
	counts := make([]int, n*n)
	if w == 0 || hgt == 0 {
		return grid
	}
	stepX := max(1, w/(n*4))
	stepY := max(1, hgt/(n*4))
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		gy := (y - b.Min.Y) * n / hgt
		for x := b.Min.X; x < b.Max.X; x += stepX {
			gx := (x - b.Min.X) * n / w
			r, g, bl, _ := img.At(x, y).RGBA()
			luma := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)) / 65535
			grid[gy*n+gx] += luma
			counts[gy*n+gx]++
		}
	}
	for i := range grid {
		if counts[i] > 0 {
			grid[i] /= float64(counts[i])
		}
	}
	return grid
}
