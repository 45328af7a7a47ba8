package protocol

import "time"

// Client -> server control types.
const (
	TypeInit = "init"
	TypeEnd  = "end"
)

// Server -> client message types on the interview socket.
const (
	TypeTranscript = "transcript"
	TypeStatus     = "status"
	TypeError      = "error"
)

// Status values carried by a status message.
const (
	StatusThinking     = "thinking"
	StatusSpeaking     = "speaking"
	StatusListening    = "listening"
	StatusDoneSpeaking = "done_speaking"
)

// Transcript roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ClientMessage is any JSON message a client sends on the interview socket.
type ClientMessage struct {
	Type            string `json:"type"`
	Topic           string `json:"topic,omitempty"`
	Gender          string `json:"gender,omitempty"`
	ParticipantName string `json:"participant_name,omitempty"`
}

type TranscriptMessage struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Text    string `json:"text"`
	IsFinal *bool  `json:"is_final,omitempty"`
}

type StatusMessage struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// UserTranscript builds a user transcript with an explicit finality flag.
func UserTranscript(text string, final bool) TranscriptMessage {
	return TranscriptMessage{Type: TypeTranscript, Role: RoleUser, Text: text, IsFinal: &final}
}

// AssistantTranscript builds an assistant transcript; is_final is omitted.
func AssistantTranscript(text string) TranscriptMessage {
	return TranscriptMessage{Type: TypeTranscript, Role: RoleAssistant, Text: text}
}

func Status(status string) StatusMessage {
	return StatusMessage{Type: TypeStatus, Status: status}
}

func Error(message string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: message}
}

// Observer socket message types.
const (
	ObserverPing     = "ping"
	ObserverPong     = "pong"
	ObserverGetState = "get_state"

	TypeFaceUpdate    = "face_update"
	TypeVocalUpdate   = "vocal_update"
	TypeFusedEmotions = "fused_emotions"
	TypeAdaptation    = "adaptation"
	TypeSessionInfo   = "session_info"
	TypeFullState     = "full_state"
)

// ObserverRequest is a message an observer sends.
type ObserverRequest struct {
	Type string `json:"type"`
}

// Unix converts a time to fractional epoch seconds for JSON timestamps.
func Unix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
