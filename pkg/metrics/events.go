package metrics

// Event names emitted by sessions, the store and providers.
const (
	EventSessionStarted  = "session_started"
	EventSessionEnded    = "session_ended"
	EventStateChange     = "state_change"
	EventTranscriptFinal = "transcript_final"
	EventGenerationDone  = "generation_done"
	EventSynthesisDone   = "synthesis_done"
	EventFirstAudio      = "first_audio_sent"
	EventTurnLatency     = "turn_latency"
	EventRateLimited     = "rate_limited"
	EventQuotaRetry      = "quota_retry"
	EventAnalysis        = "analysis"
	EventMalformedFrame  = "malformed_frame"
	EventObserverDelta   = "observer_delta"
)

// Tag keys.
const (
	TagSession  = "session_id"
	TagProvider = "provider"
	TagOutcome  = "outcome"
	TagModality = "modality"
	TagState    = "state"
	TagReason   = "reason"
	TagKind     = "kind"
)

// Outcome tag values.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeTimeout     = "timeout"
	OutcomeRateLimited = "rate_limited"
	OutcomeEmpty       = "empty"
)
