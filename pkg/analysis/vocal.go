package analysis

import (
	"encoding/binary"
	"math"

	"github.com/harunnryd/interview/pkg/emotion"
)

const (
	minVocalSamples = 256
	speakingRMS     = 0.02
	vocalHistory    = 100
	vocalRecent     = 20
	minPitchHz      = 80
	maxPitchHz      = 400
	pitchPeakRatio  = 0.1
)

// PCMVocalAnalyzer measures energy, zero-crossing rate and autocorrelation
// pitch of each chunk and keeps a rolling history to derive variance and
// speaking ratio. It is not safe for concurrent use.
type PCMVocalAnalyzer struct {
	sampleRate int

	pitch  []float64
	volume []float64
	zcr    []float64

	chunks   int
	speaking int
	silent   int
}

func NewVocalAnalyzer(sampleRate int) *PCMVocalAnalyzer {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &PCMVocalAnalyzer{sampleRate: sampleRate}
}

// AnalyzeChunk returns nil for chunks shorter than 256 samples.
func (a *PCMVocalAnalyzer) AnalyzeChunk(pcm []byte) *VocalResult {
	samples := DecodePCM16(pcm)
	if len(samples) < minVocalSamples {
		return nil
	}
	a.chunks++

	rms := rmsEnergy(samples)
	zcr := zeroCrossingRate(samples)
	pitch := a.estimatePitch(samples, rms)

	isSpeaking := rms > speakingRMS
	if isSpeaking {
		a.speaking++
	} else {
		a.silent++
	}

	a.pitch = pushCapped(a.pitch, pitch, vocalHistory)
	a.volume = pushCapped(a.volume, rms, vocalHistory)
	a.zcr = pushCapped(a.zcr, zcr, vocalHistory)

	var volumeVariance float64
	if len(a.volume) > 5 {
		volumeVariance = stddev(tail(a.volume, vocalRecent))
	}
	voiced := positive(tail(a.pitch, vocalRecent))
	var pitchVariance, avgPitch float64
	if len(voiced) > 3 {
		pitchVariance = stddev(voiced)
	}
	if len(voiced) > 0 {
		avgPitch = mean(voiced)
	}
	speakingRatio := float64(a.speaking) / math.Max(float64(a.speaking+a.silent), 1)

	features := VocalFeatures{
		Pitch:            roundTo(pitch, 1),
		AvgPitch:         roundTo(avgPitch, 1),
		PitchVariance:    roundTo(pitchVariance, 1),
		Volume:           roundTo(rms, 4),
		VolumeVariance:   roundTo(volumeVariance, 4),
		ZeroCrossingRate: roundTo(zcr, 4),
		IsSpeaking:       isSpeaking,
		SpeakingRatio:    roundTo(speakingRatio, 3),
	}
	return &VocalResult{
		Features:    features,
		Emotions:    VocalEmotions(features),
		ChunkNumber: a.chunks,
	}
}

// VocalEmotions maps acoustic features to interview emotions.
func VocalEmotions(f VocalFeatures) emotion.Estimate {
	anxiety := 0.0
	if f.AvgPitch > 200 {
		anxiety += 0.3
	}
	if f.PitchVariance > 30 {
		anxiety += 0.3
	}
	if f.Volume < 0.03 && f.IsSpeaking {
		anxiety += 0.2
	}
	if f.VolumeVariance > 0.02 {
		anxiety += 0.2
	}

	confidence := 0.3
	if f.AvgPitch > 0 && f.PitchVariance < 20 {
		confidence += 0.25
	}
	if f.Volume > 0.05 {
		confidence += 0.2
	}
	if f.SpeakingRatio > 0.3 && f.SpeakingRatio < 0.8 {
		confidence += 0.25
	}

	engagement := 0.2
	if f.IsSpeaking {
		engagement += 0.3
	}
	if f.PitchVariance > 10 {
		engagement += 0.2
	}
	if f.SpeakingRatio > 0.3 {
		engagement += 0.3
	}

	return Clamp(emotion.Estimate{Anxiety: anxiety, Confidence: confidence, Engagement: engagement})
}

func (a *PCMVocalAnalyzer) estimatePitch(samples []float64, rms float64) float64 {
	if rms < speakingRMS {
		return 0
	}
	minLag := a.sampleRate / maxPitchHz
	maxLag := a.sampleRate / minPitchHz
	if maxLag >= len(samples) {
		maxLag = len(samples) - 1
	}
	if minLag >= maxLag {
		return 0
	}
	zero := autocorrelation(samples, 0)
	bestLag, best := minLag, math.Inf(-1)
	for lag := minLag; lag < maxLag; lag++ {
		if c := autocorrelation(samples, lag); c > best {
			best, bestLag = c, lag
		}
	}
	if bestLag > 0 && best > pitchPeakRatio*zero {
		return float64(a.sampleRate) / float64(bestLag)
	}
	return 0
}

// DecodePCM16 converts little-endian 16-bit samples to [-1, 1). A trailing
// odd byte is ignored.
func DecodePCM16(pcm []byte) []float64 {
	out := make([]float64, len(pcm)/2)
	for i := range out {
		out[i] = float64(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768.0
	}
	return out
}

func rmsEnergy(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func zeroCrossingRate(x []float64) float64 {
	var crossings float64
	for i := 1; i < len(x); i++ {
		crossings += math.Abs(sign(x[i]) - sign(x[i-1]))
	}
	return crossings / 2 / float64(len(x))
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func autocorrelation(x []float64, lag int) float64 {
	var sum float64
	for i := 0; i+lag < len(x); i++ {
		sum += x[i] * x[i+lag]
	}
	return sum
}

func pushCapped(h []float64, v float64, limit int) []float64 {
	h = append(h, v)
	if len(h) > limit {
		h = append(h[:0], h[len(h)-limit:]...)
	}
	return h
}

func tail(h []float64, n int) []float64 {
	if len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}

func positive(h []float64) []float64 {
	var out []float64
	for _, v := range h {
		if v > 0 {
			out = append(out, v)
		}
	}
	return out
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

// stddev is the population standard deviation.
func stddev(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	m := mean(x)
	var sum float64
	for _, v := range x {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(x)))
}

func roundTo(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
