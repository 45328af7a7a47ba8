package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/harunnryd/interview/pkg/errorsx"
	"github.com/harunnryd/interview/pkg/metrics"
	"github.com/harunnryd/interview/pkg/protocol"
	"github.com/harunnryd/interview/pkg/resilience"
	"github.com/harunnryd/interview/pkg/turn"
)

var errEmptyReply = errors.New("empty reply")

// HandleFinalTranscript runs one generate-and-speak cycle for a user turn.
// Concurrent calls for the same session queue behind each other.
func (c *Controller) HandleFinalTranscript(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	c.genMu.Lock()
	defer c.genMu.Unlock()
	if c.ctx.Err() != nil {
		return
	}
	c.runTurn(text, false)
}

func (c *Controller) opening() {
	defer c.wg.Done()
	c.genMu.Lock()
	defer c.genMu.Unlock()
	pc := c.promptController()
	if c.ctx.Err() != nil || pc == nil {
		return
	}
	c.runTurn(pc.OpeningPrompt(), true)
}

// runTurn must be called with genMu held. Every path leaves the machine in
// LISTENING or ENDED.
func (c *Controller) runTurn(userText string, opening bool) {
	reason := "final_transcript"
	if opening {
		reason = "opening"
	}
	if err := c.fsm.Transition(turn.StateThinking, reason); err != nil {
		c.log.Debug("turn_skipped", "state", c.fsm.State().String(), "error", err)
		return
	}
	_ = c.send(protocol.Status(protocol.StatusThinking))

	reply, err := c.generate(userText)
	if err != nil {
		c.turnFailed(err, generationMessage(err, opening))
		return
	}
	_ = c.send(protocol.AssistantTranscript(reply))
	c.deps.Store.RecordTranscript(c.id, protocol.RoleAssistant, reply, true)

	audio, err := c.synthesize(reply)
	if err != nil {
		c.turnFailed(err, synthesisMessage(err))
		return
	}
	if len(audio) == 0 {
		c.listen("empty_synthesis")
		return
	}
	c.speak(audio)
}

func (c *Controller) generate(userText string) (string, error) {
	history, rollback := c.conv.Begin(userText)
	pc := c.promptController()
	provider := c.deps.Generator.Name()

	start := time.Now()
	// The system prompt is read here so the reply reflects the latest fusion.
	reply, err := c.deps.Quota.Generate(c.ctx, c.deps.Generator, pc.SystemPrompt(), history)
	reply = strings.TrimSpace(c.opts.ReplyLimit.Apply(reply))
	if err == nil && reply == "" {
		err = errEmptyReply
	}
	outcome := outcomeOf(err)
	if errors.Is(err, errEmptyReply) {
		outcome = metrics.OutcomeEmpty
	}
	metrics.Record(c.deps.Observer, metrics.EventGenerationDone, time.Since(start).Seconds(), map[string]string{
		metrics.TagSession:  c.id,
		metrics.TagProvider: provider,
		metrics.TagOutcome:  outcome,
	})
	if err != nil {
		rollback()
		switch {
		case resilience.IsRateLimit(err):
			return "", errorsx.Wrap(err, errorsx.ReasonRateLimit)
		case resilience.IsTimeout(err):
			return "", errorsx.Wrap(err, errorsx.ReasonGenerateTimeout)
		default:
			return "", errorsx.Wrap(err, errorsx.ReasonGenerate)
		}
	}
	c.conv.Commit(reply)
	c.log.Info("generation_done", "provider", provider, "latency_ms", time.Since(start).Milliseconds())
	return reply, nil
}

func (c *Controller) synthesize(text string) ([]byte, error) {
	c.mu.Lock()
	synth := c.synth
	c.mu.Unlock()
	if synth == nil {
		return nil, errorsx.New(errorsx.ReasonSessionEnded, "synthesizer closed")
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.opts.SynthesizeTimeout)
	defer cancel()
	start := time.Now()
	audio, err := synth.Synthesize(ctx, text)
	outcome := outcomeOf(err)
	if err == nil && len(audio) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	metrics.Record(c.deps.Observer, metrics.EventSynthesisDone, time.Since(start).Seconds(), map[string]string{
		metrics.TagSession:  c.id,
		metrics.TagProvider: synth.Name(),
		metrics.TagOutcome:  outcome,
	})
	if err != nil {
		switch {
		case resilience.IsRateLimit(err):
			return nil, errorsx.Wrap(err, errorsx.ReasonRateLimit)
		case resilience.IsTimeout(err):
			return nil, errorsx.Wrap(err, errorsx.ReasonSynthesizeTimeout)
		default:
			return nil, errorsx.Wrap(err, errorsx.ReasonSynthesize)
		}
	}
	return audio, nil
}

// speak streams synthesized audio to the client in fixed-size paced chunks.
// Inbound audio is dropped while it plays. done_speaking is only sent when
// every chunk was written.
func (c *Controller) speak(audio []byte) {
	if err := c.fsm.Transition(turn.StateSpeaking, "audio_ready"); err != nil {
		return
	}
	_ = c.send(protocol.Status(protocol.StatusSpeaking))

	chunks := protocol.Chunk(audio, c.opts.AudioChunkBytes)
	for i, chunk := range chunks {
		if c.ctx.Err() != nil {
			return
		}
		if err := c.sink.SendAudio(chunk); err != nil {
			c.log.Warn("audio_send_failed", "reason_code", string(errorsx.ReasonTransportSend), "chunk", i, "error", err)
			c.listen(string(errorsx.ReasonTransportSend))
			return
		}
		if i == 0 {
			metrics.Record(c.deps.Observer, metrics.EventFirstAudio, 1, map[string]string{metrics.TagSession: c.id})
		}
		if i < len(chunks)-1 && !c.pace() {
			return
		}
	}
	_ = c.send(protocol.Status(protocol.StatusDoneSpeaking))
	c.listen("playback_done")
}

func (c *Controller) pace() bool {
	if c.opts.PlaybackPacing <= 0 {
		return c.ctx.Err() == nil
	}
	timer := time.NewTimer(c.opts.PlaybackPacing)
	defer timer.Stop()
	select {
	case <-c.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Controller) turnFailed(err error, message string) {
	if c.ctx.Err() != nil {
		return
	}
	c.log.Warn("turn_failed", "reason_code", string(errorsx.Reason(err)), "error", err)
	_ = c.send(protocol.Error(message))
	c.listen(string(errorsx.Reason(err)))
}

func (c *Controller) listen(reason string) {
	if err := c.fsm.Transition(turn.StateListening, reason); err != nil {
		return
	}
	_ = c.send(protocol.Status(protocol.StatusListening))
}

func generationMessage(err error, opening bool) string {
	switch {
	case errorsx.HasReason(err, errorsx.ReasonGenerateTimeout):
		return "AI response timed out."
	case errorsx.HasReason(err, errorsx.ReasonRateLimit):
		return "AI is over its request quota, please try again shortly."
	case opening:
		return "Failed to generate opening: " + err.Error()
	default:
		return "Error: " + err.Error()
	}
}

func synthesisMessage(err error) string {
	if errorsx.HasReason(err, errorsx.ReasonSynthesizeTimeout) {
		return "TTS timed out"
	}
	return "TTS error: " + err.Error()
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case resilience.IsRateLimit(err):
		return metrics.OutcomeRateLimited
	case resilience.IsTimeout(err):
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeError
	}
}
