package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/interview/pkg/adapters/stt"
	"github.com/harunnryd/interview/pkg/adapters/tts"
	"github.com/harunnryd/interview/pkg/analysis"
	"github.com/harunnryd/interview/pkg/emotion"
	"github.com/harunnryd/interview/pkg/llm"
	"github.com/harunnryd/interview/pkg/metrics"
	"github.com/harunnryd/interview/pkg/protocol"
	"github.com/harunnryd/interview/pkg/resilience"
	"github.com/harunnryd/interview/pkg/store"
	"github.com/harunnryd/interview/pkg/turn"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSTT struct {
	connectErr error
	results    chan stt.Transcript

	mu     sync.Mutex
	audio  int
	closes int
}

func newStubSTT() *stubSTT {
	return &stubSTT{results: make(chan stt.Transcript, 16)}
}

func (s *stubSTT) Name() string { return "stub" }

func (s *stubSTT) Connect(ctx context.Context) error { return s.connectErr }

func (s *stubSTT) SendAudio(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio++
	return nil
}

func (s *stubSTT) Results() <-chan stt.Transcript { return s.results }

func (s *stubSTT) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *stubSTT) counts() (audio, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audio, s.closes
}

type stubGenerator struct {
	delay time.Duration
	err   error

	mu          sync.Mutex
	calls       int
	inflight    int
	maxInflight int
	prompts     []string
	histories   [][]llm.Message
}

func (g *stubGenerator) Name() string { return "stub" }

func (g *stubGenerator) Generate(ctx context.Context, systemPrompt string, history []llm.Message) (string, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.inflight++
	if g.inflight > g.maxInflight {
		g.maxInflight = g.inflight
	}
	g.prompts = append(g.prompts, systemPrompt)
	g.histories = append(g.histories, history)
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.inflight--
		g.mu.Unlock()
	}()
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if g.err != nil {
		return "", g.err
	}
	return "Question " + string(rune('0'+n)) + "?", nil
}

func (g *stubGenerator) snapshot() (calls, maxInflight int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls, g.maxInflight
}

type stubSynth struct {
	audio []byte
	err   error

	mu     sync.Mutex
	closes int
}

func (s *stubSynth) Name() string { return "stub" }

func (s *stubSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.audio, nil
}

func (s *stubSynth) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

type recordingSink struct {
	block   chan struct{}
	sendErr error

	mu       sync.Mutex
	events   []string
	errors   []string
	chunks   int
	closed   bool
	speaking chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{speaking: make(chan struct{}, 1)}
}

func (s *recordingSink) SendJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch m := v.(type) {
	case protocol.StatusMessage:
		s.events = append(s.events, "status:"+m.Status)
	case protocol.TranscriptMessage:
		label := "transcript:" + m.Role
		if m.IsFinal != nil {
			if *m.IsFinal {
				label += ":final"
			} else {
				label += ":partial"
			}
		}
		s.events = append(s.events, label)
	case protocol.ErrorMessage:
		s.events = append(s.events, "error")
		s.errors = append(s.errors, m.Message)
	}
	return nil
}

func (s *recordingSink) SendAudio(pcm []byte) error {
	select {
	case s.speaking <- struct{}{}:
	default:
	}
	if s.block != nil {
		<-s.block
	}
	if s.sendErr != nil {
		return s.sendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks++
	if n := len(s.events); n == 0 || s.events[n-1] != "audio" {
		s.events = append(s.events, "audio")
	}
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func (s *recordingSink) lastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errors) == 0 {
		return ""
	}
	return s.errors[len(s.errors)-1]
}

func (s *recordingSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type harness struct {
	ctl   *Controller
	sink  *recordingSink
	stt   *stubSTT
	gen   *stubGenerator
	synth *stubSynth
	store *store.Store
	obs   *metrics.MemoryObserver
}

func newHarness(t *testing.T, opts Options, configure func(*Dependencies)) *harness {
	t.Helper()
	h := &harness{
		sink:  newRecordingSink(),
		stt:   newStubSTT(),
		gen:   &stubGenerator{},
		synth: &stubSynth{audio: make([]byte, 4000)},
		store: store.New(store.Options{Logger: quietLogger()}),
		obs:   metrics.NewMemoryObserver(),
	}
	deps := Dependencies{
		STT:       func(stt.Config) (stt.StreamingSTT, error) { return h.stt, nil },
		TTS:       func(tts.Config) (tts.Synthesizer, error) { return h.synth, nil },
		Generator: h.gen,
		Store:     h.store,
		Observer:  h.obs,
		Logger:    quietLogger(),
	}
	if configure != nil {
		configure(&deps)
	}
	h.ctl = New("sess-1", h.sink, deps, opts)
	t.Cleanup(h.ctl.Stop)
	return h
}

func (h *harness) init(t *testing.T) {
	t.Helper()
	h.ctl.HandleControl(protocol.ClientMessage{Type: protocol.TypeInit, Topic: "Go", ParticipantName: "Ada Lovelace"})
	waitFor(t, "LISTENING after init", func() bool { return h.ctl.State() == turn.StateListening })
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func equalEvents(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestControllerRunsTurnCycle(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.init(t)

	h.stt.results <- stt.Transcript{Text: "I mostly write Go services", Final: true, TurnID: 1}

	want := []string{
		"transcript:user:final",
		"status:thinking",
		"transcript:assistant",
		"status:speaking",
		"audio",
		"status:done_speaking",
		"status:listening",
	}
	waitFor(t, "turn cycle", func() bool { return len(h.sink.snapshot()) == len(want) })
	if got := h.sink.snapshot(); !equalEvents(got, want) {
		t.Fatalf("unexpected events:\n got %v\nwant %v", got, want)
	}
	if h.sink.chunks != 3 {
		t.Fatalf("expected 4000 bytes in 3 chunks, got %d", h.sink.chunks)
	}
	if h.ctl.State() != turn.StateListening {
		t.Fatalf("expected LISTENING, got %s", h.ctl.State())
	}

	dump, ok := h.store.Dump("sess-1")
	if !ok {
		t.Fatalf("session not in store")
	}
	if len(dump.Transcript) != 2 || dump.Transcript[0].Role != protocol.RoleUser || dump.Transcript[1].Role != protocol.RoleAssistant {
		t.Fatalf("unexpected stored transcript %+v", dump.Transcript)
	}
	if h.obs.Count(metrics.EventFirstAudio) != 1 {
		t.Fatalf("expected one first_audio_sent event")
	}
}

func TestControllerPartialTranscriptDoesNotGenerate(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.init(t)

	h.stt.results <- stt.Transcript{Text: "I mostly", Final: false, TurnID: 1}
	waitFor(t, "partial forwarded", func() bool { return len(h.sink.snapshot()) == 1 })

	if got := h.sink.snapshot()[0]; got != "transcript:user:partial" {
		t.Fatalf("expected partial transcript, got %s", got)
	}
	if calls, _ := h.gen.snapshot(); calls != 0 {
		t.Fatalf("partial transcript triggered generation")
	}
	if h.ctl.State() != turn.StateListening {
		t.Fatalf("expected LISTENING, got %s", h.ctl.State())
	}
}

func TestControllerSuppressesDuplicateFinals(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.init(t)

	h.stt.results <- stt.Transcript{Text: "hello", Final: true, TurnID: 1}
	h.stt.results <- stt.Transcript{Text: "hello", Final: true, TurnID: 1}
	h.stt.results <- stt.Transcript{Text: "next answer", Final: true, TurnID: 2}

	waitFor(t, "two generations", func() bool {
		calls, _ := h.gen.snapshot()
		return calls == 2 && h.ctl.State() == turn.StateListening
	})

	finals := 0
	for _, ev := range h.sink.snapshot() {
		if ev == "transcript:user:final" {
			finals++
		}
	}
	if finals != 2 {
		t.Fatalf("expected 2 user finals, got %d", finals)
	}
}

func TestControllerSerializesConcurrentFinals(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.gen.delay = 20 * time.Millisecond
	h.init(t)

	var wg sync.WaitGroup
	for _, text := range []string{"first answer", "second answer"} {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			h.ctl.HandleFinalTranscript(text)
		}(text)
	}
	wg.Wait()

	calls, maxInflight := h.gen.snapshot()
	if calls != 2 {
		t.Fatalf("expected 2 generations, got %d", calls)
	}
	if maxInflight != 1 {
		t.Fatalf("generations overlapped: max in flight %d", maxInflight)
	}
	if got := h.ctl.conv.Len(); got != 4 {
		t.Fatalf("expected 4 history messages, got %d", got)
	}
}

func TestControllerTurnErrorReturnsToListening(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "provider", err: errors.New("boom"), want: "Error: "},
		{name: "timeout", err: context.DeadlineExceeded, want: "AI response timed out."},
		{name: "rate limit", err: resilience.RateLimitError{Provider: "stub"}, want: "AI is over its request quota"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, Options{}, nil)
			h.gen.err = tc.err
			h.init(t)

			h.ctl.HandleFinalTranscript("an answer")

			want := []string{"status:thinking", "error", "status:listening"}
			if got := h.sink.snapshot(); !equalEvents(got, want) {
				t.Fatalf("unexpected events:\n got %v\nwant %v", got, want)
			}
			if msg := h.sink.lastError(); !strings.HasPrefix(msg, tc.want) {
				t.Fatalf("expected error starting %q, got %q", tc.want, msg)
			}
			if h.ctl.State() != turn.StateListening {
				t.Fatalf("expected LISTENING, got %s", h.ctl.State())
			}
			if h.ctl.conv.Len() != 0 {
				t.Fatalf("failed turn left %d history messages", h.ctl.conv.Len())
			}
		})
	}
}

func TestControllerSynthesisErrorReturnsToListening(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.synth.err = errors.New("voice unavailable")
	h.init(t)

	h.ctl.HandleFinalTranscript("an answer")

	want := []string{"status:thinking", "transcript:assistant", "error", "status:listening"}
	if got := h.sink.snapshot(); !equalEvents(got, want) {
		t.Fatalf("unexpected events:\n got %v\nwant %v", got, want)
	}
	if h.ctl.conv.Len() != 2 {
		t.Fatalf("generated reply should stay in history, got %d messages", h.ctl.conv.Len())
	}
}

func TestControllerEmptySynthesisSkipsDoneSpeaking(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.synth.audio = nil
	h.init(t)

	h.ctl.HandleFinalTranscript("an answer")

	want := []string{"status:thinking", "transcript:assistant", "status:listening"}
	if got := h.sink.snapshot(); !equalEvents(got, want) {
		t.Fatalf("unexpected events:\n got %v\nwant %v", got, want)
	}
}

func TestControllerFailedAudioWriteSkipsDoneSpeaking(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.sink.sendErr = errors.New("websocket: close sent")
	h.init(t)

	h.ctl.HandleFinalTranscript("an answer")

	want := []string{"status:thinking", "transcript:assistant", "status:speaking", "status:listening"}
	if got := h.sink.snapshot(); !equalEvents(got, want) {
		t.Fatalf("unexpected events:\n got %v\nwant %v", got, want)
	}
	if h.ctl.State() != turn.StateListening {
		t.Fatalf("expected LISTENING, got %s", h.ctl.State())
	}
	if h.obs.Count(metrics.EventFirstAudio) != 0 {
		t.Fatalf("first_audio_sent recorded for a failed write")
	}
}

func TestControllerStopCancelsGeneration(t *testing.T) {
	cases := []struct {
		name    string
		opening bool
	}{
		{name: "turn"},
		{name: "opening", opening: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, Options{OpeningMessage: tc.opening}, nil)
			h.gen.delay = time.Hour
			done := make(chan struct{})
			if tc.opening {
				h.ctl.HandleControl(protocol.ClientMessage{Type: protocol.TypeInit, Topic: "Go"})
				close(done)
			} else {
				h.init(t)
				go func() {
					h.ctl.HandleFinalTranscript("an answer")
					close(done)
				}()
			}
			waitFor(t, "THINKING", func() bool { return h.ctl.State() == turn.StateThinking })

			start := time.Now()
			h.ctl.Stop()
			<-done
			if elapsed := time.Since(start); elapsed > time.Second {
				t.Fatalf("stop waited %s for the generation", elapsed)
			}
			if h.ctl.State() != turn.StateEnded {
				t.Fatalf("expected ENDED, got %s", h.ctl.State())
			}
			if got := h.sink.snapshot(); !equalEvents(got, []string{"status:thinking"}) {
				t.Fatalf("expected no error after stop, got %v", got)
			}
		})
	}
}

func TestControllerDropsAudioBeforeInit(t *testing.T) {
	h := newHarness(t, Options{}, nil)

	h.ctl.HandleAudio(make([]byte, 640))
	h.ctl.HandleVideo([]byte{0xff, 0xd8})
	if audio, _ := h.stt.counts(); audio != 0 {
		t.Fatalf("audio forwarded before init")
	}

	h.init(t)
	h.ctl.HandleAudio(make([]byte, 640))
	if audio, _ := h.stt.counts(); audio != 1 {
		t.Fatalf("expected 1 forwarded chunk, got %d", audio)
	}
}

func TestControllerDropsAudioWhileSpeaking(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.sink.block = make(chan struct{})
	h.init(t)

	done := make(chan struct{})
	go func() {
		h.ctl.HandleFinalTranscript("an answer")
		close(done)
	}()
	<-h.sink.speaking

	if h.ctl.State() != turn.StateSpeaking {
		t.Fatalf("expected SPEAKING, got %s", h.ctl.State())
	}
	h.ctl.HandleAudio(make([]byte, 640))
	if audio, _ := h.stt.counts(); audio != 0 {
		t.Fatalf("audio forwarded while speaking")
	}

	close(h.sink.block)
	<-done
	if h.ctl.State() != turn.StateListening {
		t.Fatalf("expected LISTENING after playback, got %s", h.ctl.State())
	}
}

func TestControllerSetupFailureEndsSession(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.stt.connectErr = &stt.ConnectionError{Provider: "stub", Err: errors.New("refused")}

	h.ctl.HandleControl(protocol.ClientMessage{Type: protocol.TypeInit, Topic: "Go"})
	waitFor(t, "sink closed", h.sink.isClosed)

	if h.ctl.State() != turn.StateEnded {
		t.Fatalf("expected ENDED, got %s", h.ctl.State())
	}
	if got := h.sink.snapshot(); !equalEvents(got, []string{"error"}) {
		t.Fatalf("expected a single error message, got %v", got)
	}
	if msg := h.sink.lastError(); !strings.HasPrefix(msg, "Speech-to-text connection failed") {
		t.Fatalf("unexpected error message %q", msg)
	}

	h.ctl.Stop()
	if _, closes := h.stt.counts(); closes != 1 {
		t.Fatalf("expected recognizer closed once, got %d", closes)
	}
}

func TestControllerStopIsIdempotent(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.init(t)

	h.ctl.Stop()
	h.ctl.Stop()

	if h.ctl.State() != turn.StateEnded {
		t.Fatalf("expected ENDED, got %s", h.ctl.State())
	}
	if _, closes := h.stt.counts(); closes != 1 {
		t.Fatalf("expected recognizer closed once, got %d", closes)
	}
	if h.synth.closes != 1 {
		t.Fatalf("expected synthesizer closed once, got %d", h.synth.closes)
	}
	if n := h.obs.Count(metrics.EventSessionEnded); n != 1 {
		t.Fatalf("expected one session_ended event, got %d", n)
	}
	dump, ok := h.store.Dump("sess-1")
	if !ok || dump.IsActive {
		t.Fatalf("expected inactive session record, got %+v ok=%v", dump.SessionInfo, ok)
	}
	select {
	case <-h.ctl.Done():
	default:
		t.Fatalf("Done not closed after Stop")
	}
}

func TestControllerStopBeforeInit(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.ctl.Stop()
	h.ctl.Stop()

	h.ctl.HandleControl(protocol.ClientMessage{Type: protocol.TypeInit, Topic: "Go"})
	if _, ok := h.store.Dump("sess-1"); ok {
		t.Fatalf("init after stop created a session")
	}
	if h.obs.Count(metrics.EventSessionEnded) != 0 {
		t.Fatalf("session_ended recorded for a session that never started")
	}
}

func TestControllerOpeningMessage(t *testing.T) {
	h := newHarness(t, Options{OpeningMessage: true}, nil)
	h.init(t)

	want := []string{
		"status:thinking",
		"transcript:assistant",
		"status:speaking",
		"audio",
		"status:done_speaking",
		"status:listening",
	}
	waitFor(t, "opening spoken", func() bool { return len(h.sink.snapshot()) == len(want) })
	if got := h.sink.snapshot(); !equalEvents(got, want) {
		t.Fatalf("unexpected events:\n got %v\nwant %v", got, want)
	}
	h.gen.mu.Lock()
	first := h.gen.histories[0][0].Content
	h.gen.mu.Unlock()
	if !strings.Contains(first, "first question about Go") {
		t.Fatalf("opening prompt not sent: %q", first)
	}
}

type stubVocal struct {
	est emotion.Estimate
	n   int
}

func (v *stubVocal) AnalyzeChunk(pcm []byte) *analysis.VocalResult {
	v.n++
	return &analysis.VocalResult{Emotions: v.est, ChunkNumber: v.n}
}

func TestControllerVocalAnalysisDrivesAdaptation(t *testing.T) {
	vocal := &stubVocal{est: emotion.Estimate{Anxiety: 0.9, Confidence: 0.1, Engagement: 0.5}}
	h := newHarness(t, Options{VocalInterval: 2}, func(d *Dependencies) {
		d.Vocal = func(int) analysis.VocalAnalyzer { return vocal }
	})
	h.init(t)

	for i := 0; i < 4; i++ {
		h.ctl.HandleAudio(make([]byte, 640))
	}

	dump, _ := h.store.Dump("sess-1")
	if dump.TotalAudioChunksAnalyzed != 2 {
		t.Fatalf("expected every 2nd chunk analyzed, got %d", dump.TotalAudioChunksAnalyzed)
	}
	if len(dump.AdaptationLog) != 2 {
		t.Fatalf("expected 2 adaptations, got %d", len(dump.AdaptationLog))
	}
	last := dump.AdaptationLog[1]
	if last.Difficulty != "easy" || last.Tone != "encouraging" {
		t.Fatalf("unexpected adaptation %+v", last)
	}
	if last.Action != "Adjusted to easy difficulty with encouraging tone" {
		t.Fatalf("unexpected action %q", last.Action)
	}
	if dump.LatestFusedEmotions == nil || *dump.LatestFusedEmotions != vocal.est {
		t.Fatalf("vocal-only fusion should equal the vocal estimate, got %+v", dump.LatestFusedEmotions)
	}

	h.ctl.HandleFinalTranscript("an answer")
	h.gen.mu.Lock()
	sys := h.gen.prompts[0]
	h.gen.mu.Unlock()
	if !strings.Contains(sys, "Difficulty: easy") {
		t.Fatalf("system prompt does not reflect fusion:\n%s", sys)
	}
}

type stubFace struct {
	est emotion.Estimate

	mu    sync.Mutex
	calls int
}

func (f *stubFace) Name() string { return "stub" }

func (f *stubFace) AnalyzeFrame(ctx context.Context, jpeg []byte) (*analysis.FaceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &analysis.FaceResult{Emotions: f.est, FrameNumber: f.calls}, nil
}

func (f *stubFace) Close() error { return nil }

func TestControllerVideoAnalyzedOnPool(t *testing.T) {
	face := &stubFace{est: emotion.Estimate{Anxiety: 0.2, Confidence: 0.8, Engagement: 0.6}}
	pool := NewWorkerPool(2, 8)
	defer pool.Close()
	h := newHarness(t, Options{}, func(d *Dependencies) {
		d.Face = func() (analysis.FaceAnalyzer, error) { return face, nil }
		d.Pool = pool
	})
	h.init(t)

	h.ctl.HandleVideo([]byte{0xff, 0xd8, 0xff})
	waitFor(t, "frame analyzed", func() bool {
		dump, _ := h.store.Dump("sess-1")
		return dump.TotalFramesAnalyzed == 1 && dump.LatestFusedEmotions != nil
	})

	dump, _ := h.store.Dump("sess-1")
	if *dump.LatestFusedEmotions != face.est {
		t.Fatalf("face-only fusion should equal the face estimate, got %+v", dump.LatestFusedEmotions)
	}
	if h.obs.Tagged(metrics.EventAnalysis, metrics.TagModality, store.SourceFace) != 1 {
		t.Fatalf("expected one face analysis event")
	}
}

func TestControllerEndControlStops(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.init(t)

	h.ctl.HandleControl(protocol.ClientMessage{Type: protocol.TypeEnd})
	if h.ctl.State() != turn.StateEnded {
		t.Fatalf("expected ENDED, got %s", h.ctl.State())
	}
	if _, closes := h.stt.counts(); closes != 1 {
		t.Fatalf("expected recognizer closed")
	}
}

func TestControllerAppliesReplyLimit(t *testing.T) {
	h := newHarness(t, Options{ReplyLimit: llm.ReplyLimit{MaxChars: 8}}, nil)
	h.init(t)

	h.stt.results <- stt.Transcript{Text: "Channels mostly", Final: true, TurnID: 1}
	waitFor(t, "turn done", func() bool {
		events := h.sink.snapshot()
		return len(events) > 0 && events[len(events)-1] == "status:listening"
	})

	dump, _ := h.store.Dump("sess-1")
	if len(dump.Transcript) != 2 || dump.Transcript[1].Text != "Question" {
		t.Fatalf("expected limited assistant reply, got %+v", dump.Transcript)
	}
}
