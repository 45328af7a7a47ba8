package store

import (
	"github.com/harunnryd/interview/pkg/analysis"
	"github.com/harunnryd/interview/pkg/emotion"
)

// Timeline sources.
const (
	SourceFace  = "face"
	SourceVocal = "vocal"
	SourceFused = "fused"
)

// SessionInfo is the identity a client supplied at init.
type SessionInfo struct {
	SessionID       string  `json:"session_id"`
	ParticipantName string  `json:"participant_name"`
	Topic           string  `json:"topic"`
	Gender          string  `json:"gender"`
	StartTime       float64 `json:"start_time"`
	IsActive        bool    `json:"is_active"`
}

type TimelineEntry struct {
	Timestamp float64 `json:"timestamp"`
	Source    string  `json:"source"`
	emotion.Estimate
}

type Adaptation struct {
	Timestamp     float64          `json:"timestamp"`
	Action        string           `json:"action"`
	Difficulty    string           `json:"difficulty"`
	Tone          string           `json:"tone"`
	FusedEmotions emotion.Estimate `json:"fused_emotions"`
	Reason        string           `json:"reason"`
	Rules         []string         `json:"rules,omitempty"`
}

type TranscriptEntry struct {
	Timestamp float64 `json:"timestamp"`
	Role      string  `json:"role"`
	Text      string  `json:"text"`
	IsFinal   bool    `json:"is_final"`
}

// SessionSummary is one row of the session listing.
type SessionSummary struct {
	SessionInfo
	TotalFrames int `json:"total_frames"`
	Observers   int `json:"observers"`
}

// SessionDump is the full per-session record.
type SessionDump struct {
	SessionInfo
	EmotionTimeline          []TimelineEntry         `json:"emotion_timeline"`
	AdaptationLog            []Adaptation            `json:"adaptation_log"`
	Transcript               []TranscriptEntry       `json:"transcript"`
	LatestFaceEmotions       *emotion.Estimate       `json:"latest_face_emotions"`
	LatestVocalEmotions      *emotion.Estimate       `json:"latest_vocal_emotions"`
	LatestFusedEmotions      *emotion.Estimate       `json:"latest_fused_emotions"`
	LatestMicroExpressions   map[string]any          `json:"latest_micro_expressions"`
	LatestFaceLandmarks      []analysis.Landmark     `json:"latest_face_landmarks,omitempty"`
	LatestVocalFeatures      *analysis.VocalFeatures `json:"latest_vocal_features"`
	TotalFramesAnalyzed      int                     `json:"total_frames_analyzed"`
	TotalAudioChunksAnalyzed int                     `json:"total_audio_chunks_analyzed"`
}

// Observer messages.

type snapshotMessage struct {
	Type string `json:"type"`
	SessionInfo
	EmotionTimeline []TimelineEntry   `json:"emotion_timeline"`
	AdaptationLog   []Adaptation      `json:"adaptation_log"`
	Transcript      []TranscriptEntry `json:"transcript"`
}

type fullStateMessage struct {
	Type string `json:"type"`
	SessionDump
}

type faceUpdateMessage struct {
	Type             string              `json:"type"`
	Landmarks        []analysis.Landmark `json:"landmarks"`
	Emotions         emotion.Estimate    `json:"emotions"`
	MicroExpressions map[string]any      `json:"micro_expressions"`
	FrameNumber      int                 `json:"frame_number"`
}

type vocalUpdateMessage struct {
	Type     string                 `json:"type"`
	Features analysis.VocalFeatures `json:"features"`
	Emotions emotion.Estimate       `json:"emotions"`
}

type fusedMessage struct {
	Type      string           `json:"type"`
	Emotions  emotion.Estimate `json:"emotions"`
	Timestamp float64          `json:"timestamp"`
}

type transcriptMessage struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

type adaptationMessage struct {
	Type string `json:"type"`
	Adaptation
}
