// Package session runs one interview connection: it drives the turn state
// machine, feeds media to the recognizer and the analyzers, and runs the
// generate-then-speak cycle for every final transcript.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harunnryd/interview/pkg/adapters/stt"
	"github.com/harunnryd/interview/pkg/adapters/tts"
	"github.com/harunnryd/interview/pkg/analysis"
	"github.com/harunnryd/interview/pkg/emotion"
	"github.com/harunnryd/interview/pkg/errorsx"
	"github.com/harunnryd/interview/pkg/llm"
	"github.com/harunnryd/interview/pkg/logging"
	"github.com/harunnryd/interview/pkg/metrics"
	"github.com/harunnryd/interview/pkg/prompt"
	"github.com/harunnryd/interview/pkg/protocol"
	"github.com/harunnryd/interview/pkg/redact"
	"github.com/harunnryd/interview/pkg/store"
	"github.com/harunnryd/interview/pkg/turn"
)

// Sink is the client side of the interview connection.
type Sink interface {
	SendJSON(v any) error
	SendAudio(pcm []byte) error
	Close() error
}

// Dependencies are the collaborators a controller is built from. STT, TTS,
// Generator and Store are required.
type Dependencies struct {
	STT       stt.Factory
	TTS       tts.Factory
	Generator llm.Generator
	// Quota is shared by every session of the process.
	Quota *llm.QuotaGate
	Face  analysis.FaceFactory
	Vocal func(sampleRate int) analysis.VocalAnalyzer
	Store *store.Store
	Pool  *WorkerPool

	Observer metrics.Observer
	Logger   *slog.Logger
}

type Options struct {
	SampleRate        int
	VocalInterval     int
	AudioChunkBytes   int
	PlaybackPacing    time.Duration
	STTConnectTimeout time.Duration
	SynthesizeTimeout time.Duration
	OpeningMessage    bool
	// ReplyLimit is applied to generated text before it is committed,
	// transcribed and spoken.
	ReplyLimit llm.ReplyLimit
}

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = 16000
	}
	if o.VocalInterval <= 0 {
		o.VocalInterval = 3
	}
	if o.AudioChunkBytes <= 0 {
		o.AudioChunkBytes = 1600
	}
	if o.PlaybackPacing < 0 {
		o.PlaybackPacing = 0
	}
	if o.STTConnectTimeout <= 0 {
		o.STTConnectTimeout = 10 * time.Second
	}
	if o.SynthesizeTimeout <= 0 {
		o.SynthesizeTimeout = 30 * time.Second
	}
	return o
}

// Controller owns one interview connection from init to teardown.
type Controller struct {
	id   string
	deps Dependencies
	opts Options
	sink Sink
	log  *slog.Logger

	fsm    *turn.Machine
	ctx    context.Context
	cancel context.CancelFunc

	// genMu admits one generate-and-speak cycle at a time.
	genMu sync.Mutex
	conv  *llm.Conversation

	// fuseMu keeps fused values, prompt versions and the adaptation log in
	// the same order.
	fuseMu sync.Mutex
	fuser  *emotion.Fuser

	mu          sync.Mutex
	initStarted bool
	stopped     bool
	participant string
	prompt      *prompt.Controller
	recognizer  stt.StreamingSTT
	synth       tts.Synthesizer
	face        analysis.FaceAnalyzer
	vocal       analysis.VocalAnalyzer

	gate       stt.TurnGate
	audioCount atomic.Int64
	ownPool    bool

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New builds a controller in INIT. Nothing is connected until the client's
// init message arrives.
func New(id string, sink Sink, deps Dependencies, opts Options) *Controller {
	if deps.Observer == nil {
		deps.Observer = metrics.NoopObserver{}
	}
	if deps.Quota == nil {
		deps.Quota = llm.NewQuotaGate(llm.QuotaConfig{MaxAttempts: 1, Observer: deps.Observer, Logger: deps.Logger})
	}
	if deps.Vocal == nil {
		deps.Vocal = func(rate int) analysis.VocalAnalyzer { return analysis.NewVocalAnalyzer(rate) }
	}
	ownPool := false
	if deps.Pool == nil {
		deps.Pool = NewWorkerPool(1, 4)
		ownPool = true
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		id:      id,
		deps:    deps,
		opts:    opts.withDefaults(),
		sink:    sink,
		log:     logging.NewSessionLogger(deps.Logger, "session", id),
		fsm:     turn.NewMachine(),
		ctx:     ctx,
		cancel:  cancel,
		conv:    llm.NewConversation(),
		fuser:   emotion.NewFuser(),
		ownPool: ownPool,
	}
	c.fsm.AddListener(turn.ListenerFunc(c.onStateChange))
	return c
}

func (c *Controller) ID() string { return c.id }

// State returns the current turn state.
func (c *Controller) State() turn.State { return c.fsm.State() }

// Done is closed once the session has ended.
func (c *Controller) Done() <-chan struct{} { return c.ctx.Done() }

func (c *Controller) onStateChange(ev turn.StateChange) {
	c.log.Debug("state_change", "from", ev.FromState.String(), "to", ev.ToState.String(), "reason", ev.Reason)
	metrics.Record(c.deps.Observer, metrics.EventStateChange, 1, map[string]string{
		metrics.TagSession: c.id,
		metrics.TagState:   ev.ToState.String(),
		metrics.TagReason:  ev.Reason,
	})
}

// HandleControl applies a client control message. Only the first init starts
// the session; end stops it.
func (c *Controller) HandleControl(msg protocol.ClientMessage) {
	switch msg.Type {
	case protocol.TypeInit:
		c.mu.Lock()
		if c.stopped || c.initStarted {
			c.mu.Unlock()
			c.log.Warn("init_ignored", "reason", "already_initialized")
			return
		}
		c.initStarted = true
		c.wg.Add(1)
		c.mu.Unlock()
		go c.start(msg)
	case protocol.TypeEnd:
		c.log.Info("session_end_requested")
		c.Stop()
	default:
		c.log.Debug("control_ignored", "type", msg.Type, "reason_code", string(errorsx.ReasonMalformedControl))
	}
}

func (c *Controller) start(msg protocol.ClientMessage) {
	defer c.wg.Done()

	topic := strings.TrimSpace(msg.Topic)
	if topic == "" {
		topic = "General"
	}
	c.mu.Lock()
	c.participant = msg.ParticipantName
	c.prompt = prompt.NewController(topic)
	c.mu.Unlock()
	c.deps.Store.CreateSession(c.id, msg.ParticipantName, topic, msg.Gender)

	results, err := c.setup()
	if err != nil {
		c.fail(err)
		return
	}
	if err := c.fsm.Transition(turn.StateListening, "init"); err != nil {
		return
	}
	metrics.Record(c.deps.Observer, metrics.EventSessionStarted, 1, map[string]string{metrics.TagSession: c.id})
	c.log.Info("session_started", "topic", topic)

	if c.opts.OpeningMessage {
		c.wg.Add(1)
		go c.opening()
	}
	c.consume(results)
}

// setup builds the per-session collaborators and connects the recognizer.
func (c *Controller) setup() (<-chan stt.Transcript, error) {
	synth, err := c.deps.TTS(tts.Config{SessionID: c.id, SampleRate: c.opts.SampleRate})
	if err != nil {
		return nil, errorsx.Wrapf(err, errorsx.ReasonProviderInit, "speech synthesis init")
	}
	c.mu.Lock()
	c.synth = synth
	c.vocal = c.deps.Vocal(c.opts.SampleRate)
	c.mu.Unlock()

	var face analysis.FaceAnalyzer = analysis.NopFace{}
	if c.deps.Face != nil {
		face, err = c.deps.Face()
		if err != nil {
			return nil, errorsx.Wrapf(err, errorsx.ReasonAnalyzerInit, "face analyzer init")
		}
	}
	c.mu.Lock()
	c.face = face
	c.mu.Unlock()

	recognizer, err := c.deps.STT(stt.Config{SessionID: c.id, SampleRate: c.opts.SampleRate})
	if err != nil {
		return nil, errorsx.Wrapf(err, errorsx.ReasonProviderInit, "speech-to-text init")
	}
	c.mu.Lock()
	c.recognizer = recognizer
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(c.ctx, c.opts.STTConnectTimeout)
	defer cancel()
	if err := recognizer.Connect(ctx); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonSTTConnect)
	}
	c.log.Info("stt_connected", "provider", recognizer.Name())
	return recognizer.Results(), nil
}

// fail ends a session whose setup failed. The client gets one error message
// and the connection is closed; resources are released by Stop.
func (c *Controller) fail(err error) {
	if c.ctx.Err() != nil {
		return
	}
	c.log.Error("session_setup_failed", "reason_code", string(errorsx.Reason(err)), "error", err)
	_ = c.send(protocol.Error(setupMessage(err)))
	c.fsm.End("setup_failed")
	c.cancel()
	_ = c.sink.Close()
}

func setupMessage(err error) string {
	switch {
	case errorsx.HasReason(err, errorsx.ReasonSTTConnect) && errors.Is(err, context.DeadlineExceeded):
		return "Speech-to-text connection timed out."
	case errorsx.HasReason(err, errorsx.ReasonSTTConnect):
		return "Speech-to-text connection failed: " + err.Error()
	case errorsx.HasReason(err, errorsx.ReasonMissingCredentials):
		return "Missing API keys: " + err.Error()
	default:
		return "Session setup failed: " + err.Error()
	}
}

func (c *Controller) consume(results <-chan stt.Transcript) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case tr, ok := <-results:
			if !ok {
				c.log.Warn("stt_results_closed")
				return
			}
			c.onTranscript(tr)
		}
	}
}

func (c *Controller) onTranscript(tr stt.Transcript) {
	text := strings.TrimSpace(tr.Text)
	if text == "" {
		return
	}
	if !tr.Final {
		_ = c.send(protocol.UserTranscript(text, false))
		c.deps.Store.RecordTranscript(c.id, protocol.RoleUser, text, false)
		return
	}

	verdict := c.gate.Admit(tr.TurnID)
	switch verdict {
	case stt.Duplicate:
		c.log.Debug("final_transcript_duplicate", "turn_id", tr.TurnID)
		return
	case stt.Reset:
		c.log.Warn("stt_turn_counter_reset", "turn_id", tr.TurnID)
	}

	_ = c.send(protocol.UserTranscript(text, true))
	c.deps.Store.RecordTranscript(c.id, protocol.RoleUser, text, true)
	metrics.Record(c.deps.Observer, metrics.EventTranscriptFinal, 1, map[string]string{metrics.TagSession: c.id})
	c.log.Info("transcript_final", "turn_id", tr.TurnID, "text", redact.Participant(text, c.participantName()))

	c.HandleFinalTranscript(text)
}

// HandleAudio forwards a microphone chunk to the recognizer and samples every
// Nth chunk for vocal analysis. Audio is dropped outside LISTENING.
func (c *Controller) HandleAudio(pcm []byte) {
	if !c.fsm.Is(turn.StateListening) || len(pcm) == 0 {
		return
	}
	c.mu.Lock()
	recognizer, vocal := c.recognizer, c.vocal
	c.mu.Unlock()
	if recognizer == nil {
		return
	}
	if err := recognizer.SendAudio(pcm); err != nil {
		c.log.Debug("stt_send_failed", "reason_code", string(errorsx.ReasonSTTSend), "error", err)
	}

	n := c.audioCount.Add(1)
	if vocal == nil || n%int64(c.opts.VocalInterval) != 0 {
		return
	}
	res := vocal.AnalyzeChunk(pcm)
	if res == nil {
		return
	}
	c.deps.Store.RecordVocal(c.id, *res)
	metrics.Record(c.deps.Observer, metrics.EventAnalysis, 1, map[string]string{
		metrics.TagSession:  c.id,
		metrics.TagModality: store.SourceVocal,
	})
	c.fuse(func(f *emotion.Fuser) emotion.Estimate { return f.UpdateVocal(res.Emotions) })
}

// HandleVideo queues a JPEG frame for face analysis on the worker pool. It
// never blocks; frames are dropped before init, after the end and when the
// pool is saturated.
func (c *Controller) HandleVideo(jpeg []byte) {
	if len(jpeg) == 0 || c.fsm.Is(turn.StateInit, turn.StateEnded) {
		return
	}
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	ok := c.deps.Pool.Submit(func() {
		defer c.wg.Done()
		c.analyzeFrame(jpeg)
	})
	if !ok {
		c.wg.Done()
		c.log.Debug("video_frame_dropped", "reason", "pool_full")
	}
}

func (c *Controller) analyzeFrame(jpeg []byte) {
	if c.ctx.Err() != nil {
		return
	}
	c.mu.Lock()
	face := c.face
	c.mu.Unlock()
	if face == nil {
		return
	}
	res, err := face.AnalyzeFrame(c.ctx, jpeg)
	if err != nil {
		if c.ctx.Err() == nil {
			c.log.Debug("face_analysis_failed", "reason_code", string(errorsx.Reason(err)), "error", err)
		}
		return
	}
	if res == nil {
		return
	}
	c.deps.Store.RecordFace(c.id, *res)
	metrics.Record(c.deps.Observer, metrics.EventAnalysis, 1, map[string]string{
		metrics.TagSession:  c.id,
		metrics.TagModality: store.SourceFace,
	})
	c.fuse(func(f *emotion.Fuser) emotion.Estimate { return f.UpdateFace(res.Emotions) })
}

// fuse applies one modality update and propagates the fused value to the
// store and the prompt controller.
func (c *Controller) fuse(update func(*emotion.Fuser) emotion.Estimate) {
	pc := c.promptController()
	if pc == nil {
		return
	}
	c.fuseMu.Lock()
	defer c.fuseMu.Unlock()

	fused := update(c.fuser)
	c.deps.Store.RecordFused(c.id, fused)
	state := pc.Update(fused)
	c.deps.Store.RecordAdaptation(c.id, adaptation(state))
}

func adaptation(s prompt.State) store.Adaptation {
	rules := make([]string, 0, len(s.Decision.Rules))
	for _, r := range s.Decision.Rules {
		rules = append(rules, string(r))
	}
	return store.Adaptation{
		Action:        s.Decision.Action(),
		Difficulty:    string(s.Decision.Difficulty),
		Tone:          string(s.Decision.Tone),
		FusedEmotions: s.Fused,
		Reason: fmt.Sprintf("Fused anxiety=%.2f, confidence=%.2f, engagement=%.2f",
			s.Fused.Anxiety, s.Fused.Confidence, s.Fused.Engagement),
		Rules: rules,
	}
}

func (c *Controller) promptController() *prompt.Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prompt
}

func (c *Controller) participantName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.participant
}

func (c *Controller) send(v any) error {
	if err := c.sink.SendJSON(v); err != nil {
		c.log.Debug("client_send_failed", "reason_code", string(errorsx.ReasonTransportSend), "error", err)
		return errorsx.Wrap(err, errorsx.ReasonTransportSend)
	}
	return nil
}

// Stop ends the session and releases every resource. It waits for the
// running turn and queued frame analyses to finish. Calling it again is a
// no-op.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		started := c.initStarted
		c.mu.Unlock()

		c.fsm.End("stop")
		c.cancel()
		c.wg.Wait()

		c.mu.Lock()
		recognizer, synth, face := c.recognizer, c.synth, c.face
		c.recognizer, c.synth, c.face = nil, nil, nil
		c.mu.Unlock()
		if recognizer != nil {
			_ = recognizer.Close()
		}
		if synth != nil {
			_ = synth.Close()
		}
		if face != nil {
			_ = face.Close()
		}
		if c.ownPool {
			c.deps.Pool.Close()
		}

		if started {
			c.deps.Store.EndSession(c.id)
			metrics.Record(c.deps.Observer, metrics.EventSessionEnded, 1, map[string]string{metrics.TagSession: c.id})
		}
		c.log.Info("session_stopped", "turns", c.conv.Len()/2)
	})
}

// Shutdown stops the session and closes the client connection.
func (c *Controller) Shutdown() {
	c.Stop()
	_ = c.sink.Close()
}
