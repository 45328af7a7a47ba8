package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonMissingCredentials ReasonCode = "missing_credentials"
	ReasonSTTConnect         ReasonCode = "stt_connect"
	ReasonAnalyzerInit       ReasonCode = "analyzer_init"
	ReasonProviderInit       ReasonCode = "provider_init"

	ReasonSTTSend           ReasonCode = "stt_send"
	ReasonGenerate          ReasonCode = "generate"
	ReasonGenerateTimeout   ReasonCode = "generate_timeout"
	ReasonRateLimit         ReasonCode = "rate_limit"
	ReasonSynthesize        ReasonCode = "synthesize"
	ReasonSynthesizeTimeout ReasonCode = "synthesize_timeout"
	ReasonTransportSend     ReasonCode = "transport_send"

	ReasonMalformedFrame   ReasonCode = "malformed_frame"
	ReasonMalformedControl ReasonCode = "malformed_control"
	ReasonDecode           ReasonCode = "decode"

	ReasonSessionEnded ReasonCode = "session_ended"
)

// Category groups reason codes by how the session reacts to them.
type Category int

const (
	// CategoryUnknown errors are handled like per-turn failures.
	CategoryUnknown Category = iota
	// CategorySetup errors end the session.
	CategorySetup
	// CategoryTurn errors are reported to the client and the session returns to listening.
	CategoryTurn
	// CategoryMalformed errors are dropped or logged.
	CategoryMalformed
)

func (c Category) String() string {
	switch c {
	case CategorySetup:
		return "setup"
	case CategoryTurn:
		return "turn"
	case CategoryMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

var categories = map[ReasonCode]Category{
	ReasonMissingCredentials: CategorySetup,
	ReasonSTTConnect:         CategorySetup,
	ReasonAnalyzerInit:       CategorySetup,
	ReasonProviderInit:       CategorySetup,

	ReasonSTTSend:           CategoryTurn,
	ReasonGenerate:          CategoryTurn,
	ReasonGenerateTimeout:   CategoryTurn,
	ReasonRateLimit:         CategoryTurn,
	ReasonSynthesize:        CategoryTurn,
	ReasonSynthesizeTimeout: CategoryTurn,
	ReasonTransportSend:     CategoryTurn,

	ReasonMalformedFrame:   CategoryMalformed,
	ReasonMalformedControl: CategoryMalformed,
	ReasonDecode:           CategoryMalformed,
}

// CategoryOf returns the category of the reason attached to err.
func CategoryOf(err error) Category {
	if err == nil {
		return CategoryUnknown
	}
	return categories[Reason(err)]
}

// IsSetup reports whether err is fatal to a session.
func IsSetup(err error) bool {
	return CategoryOf(err) == CategorySetup
}
