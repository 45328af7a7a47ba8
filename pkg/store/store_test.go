package store

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/interview/pkg/analysis"
	"github.com/harunnryd/interview/pkg/emotion"
)

func newTestStore(opts Options) *Store {
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(opts)
}

func decodeType(t *testing.T, payload []byte) string {
	t.Helper()
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return head.Type
}

func drain(sub *Subscription) [][]byte {
	var out [][]byte
	for {
		select {
		case msg, ok := <-sub.Messages():
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestRingKeepsNewest(t *testing.T) {
	r := NewRing[int](500)
	for i := 0; i < 600; i++ {
		r.Push(i)
	}
	items := r.Items()
	if len(items) != 500 {
		t.Fatalf("expected 500 items, got %d", len(items))
	}
	if items[0] != 100 || items[499] != 599 {
		t.Fatalf("expected oldest-first 100..599, got %d..%d", items[0], items[499])
	}
	last := r.Last(3)
	if fmt.Sprint(last) != "[597 598 599]" {
		t.Fatalf("unexpected tail %v", last)
	}
}

func TestStoreTimelineBound(t *testing.T) {
	s := newTestStore(Options{})
	s.CreateSession("s1", "Ada", "Go", "f")
	for i := 0; i < 600; i++ {
		s.RecordFused("s1", emotion.Estimate{Anxiety: float64(i) / 1000})
	}
	dump, ok := s.Dump("s1")
	if !ok {
		t.Fatalf("expected session dump")
	}
	if len(dump.EmotionTimeline) != 500 {
		t.Fatalf("expected 500 timeline entries, got %d", len(dump.EmotionTimeline))
	}
	if dump.EmotionTimeline[0].Anxiety != 0.1 {
		t.Fatalf("expected oldest kept entry 0.1, got %v", dump.EmotionTimeline[0].Anxiety)
	}
}

func TestSubscribeSnapshotPrecedesUpdates(t *testing.T) {
	s := newTestStore(Options{})
	s.CreateSession("s1", "Ada", "Go", "f")
	s.RecordTranscript("s1", "user", "earlier", true)

	sub := s.Subscribe("s1")
	s.RecordFused("s1", emotion.Estimate{Anxiety: 0.2})
	s.RecordTranscript("s1", "assistant", "next question", true)

	msgs := drain(sub)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	want := []string{"session_info", "fused_emotions", "transcript"}
	for i, w := range want {
		if got := decodeType(t, msgs[i]); got != w {
			t.Fatalf("message %d: expected %s, got %s", i, w, got)
		}
	}

	var snap snapshotMessage
	if err := json.Unmarshal(msgs[0], &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.ParticipantName != "Ada" || len(snap.Transcript) != 1 || snap.Transcript[0].Text != "earlier" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestSnapshotCarriesLastTimelineEntries(t *testing.T) {
	s := newTestStore(Options{})
	s.CreateSession("s1", "", "", "")
	for i := 0; i < 80; i++ {
		s.RecordFused("s1", emotion.Neutral)
	}
	sub := s.Subscribe("s1")
	var snap snapshotMessage
	if err := json.Unmarshal(drain(sub)[0], &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.EmotionTimeline) != 50 {
		t.Fatalf("expected 50 timeline entries in snapshot, got %d", len(snap.EmotionTimeline))
	}
}

func TestEarlyObserverSeesSessionInfo(t *testing.T) {
	s := newTestStore(Options{})
	sub := s.Subscribe("s1")
	s.CreateSession("s1", "Ada", "Go", "f")

	msgs := drain(sub)
	if len(msgs) != 2 {
		t.Fatalf("expected empty snapshot then session info, got %d messages", len(msgs))
	}
	var info snapshotMessage
	if err := json.Unmarshal(msgs[1], &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !info.IsActive || info.Topic != "Go" {
		t.Fatalf("unexpected session info %+v", info)
	}
}

func TestFullObserverIsRemovedOthersStillReceive(t *testing.T) {
	s := newTestStore(Options{ObserverBuffer: 2})
	s.CreateSession("s1", "", "", "")
	slow := s.Subscribe("s1")
	fast := s.Subscribe("s1")

	var received [][]byte
	received = append(received, drain(fast)...)
	for i := 0; i < 4; i++ {
		s.RecordFused("s1", emotion.Neutral)
		received = append(received, drain(fast)...)
	}

	if !slow.Closed() {
		t.Fatalf("expected slow observer to be closed")
	}
	if s.ObserverCount("s1") != 1 {
		t.Fatalf("expected one remaining observer, got %d", s.ObserverCount("s1"))
	}
	if len(received) != 5 {
		t.Fatalf("expected snapshot + 4 updates on fast observer, got %d", len(received))
	}
}

func TestPartialTranscriptNotPersisted(t *testing.T) {
	s := newTestStore(Options{})
	s.CreateSession("s1", "", "", "")
	sub := s.Subscribe("s1")
	s.RecordTranscript("s1", "user", "hel", false)
	s.RecordTranscript("s1", "user", "hello", true)

	dump, _ := s.Dump("s1")
	if len(dump.Transcript) != 1 || dump.Transcript[0].Text != "hello" {
		t.Fatalf("expected only the final line persisted, got %+v", dump.Transcript)
	}
	if n := len(drain(sub)); n != 3 {
		t.Fatalf("expected partial and final broadcast, got %d messages", n)
	}
}

func TestVocalBroadcastThrottle(t *testing.T) {
	s := newTestStore(Options{VocalBroadcastEvery: 5})
	s.CreateSession("s1", "", "", "")
	sub := s.Subscribe("s1")
	drain(sub)
	for i := 0; i < 12; i++ {
		s.RecordVocal("s1", analysis.VocalResult{ChunkNumber: i + 1})
	}
	if n := len(drain(sub)); n != 2 {
		t.Fatalf("expected 2 vocal broadcasts for 12 chunks, got %d", n)
	}
	dump, _ := s.Dump("s1")
	if dump.TotalAudioChunksAnalyzed != 12 || dump.LatestVocalFeatures == nil {
		t.Fatalf("unexpected counters %+v", dump)
	}
}

func TestFaceUpdatesTimelineAndCounters(t *testing.T) {
	s := newTestStore(Options{})
	s.CreateSession("s1", "", "", "")
	s.RecordFace("s1", analysis.FaceResult{
		Emotions:         emotion.Estimate{Anxiety: 0.3, Confidence: 0.6, Engagement: 0.7},
		MicroExpressions: map[string]any{"blink_rate": 0.1},
		FrameNumber:      1,
	})
	dump, _ := s.Dump("s1")
	if dump.TotalFramesAnalyzed != 1 || len(dump.EmotionTimeline) != 1 || dump.EmotionTimeline[0].Source != SourceFace {
		t.Fatalf("unexpected dump %+v", dump)
	}
	dump.LatestMicroExpressions["blink_rate"] = 9.0
	again, _ := s.Dump("s1")
	if again.LatestMicroExpressions["blink_rate"] != 0.1 {
		t.Fatalf("dump must be a copy")
	}
}

func TestRecordBeforeCreateIsIgnored(t *testing.T) {
	s := newTestStore(Options{})
	s.RecordFused("ghost", emotion.Neutral)
	s.RecordTranscript("ghost", "user", "hi", true)
	if _, ok := s.Dump("ghost"); ok {
		t.Fatalf("expected no record for uninitialized session")
	}
	if len(s.ListSessions()) != 0 {
		t.Fatalf("expected empty listing")
	}
}

func TestSendStateQueuesFullState(t *testing.T) {
	s := newTestStore(Options{})
	s.CreateSession("s1", "", "Go", "")
	sub := s.Subscribe("s1")
	if !s.SendState(sub) {
		t.Fatalf("expected state queued")
	}
	msgs := drain(sub)
	if decodeType(t, msgs[len(msgs)-1]) != "full_state" {
		t.Fatalf("expected full_state last")
	}
}

type recordingSink struct {
	mu    sync.Mutex
	types []string
}

func (r *recordingSink) Publish(sessionID, msgType string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, sessionID+":"+msgType)
}

func TestSinkReceivesBroadcasts(t *testing.T) {
	sink := &recordingSink{}
	s := newTestStore(Options{Sink: sink})
	s.CreateSession("s1", "", "", "")
	s.RecordAdaptation("s1", Adaptation{Action: "Adjusted to medium difficulty with neutral tone"})
	if fmt.Sprint(sink.types) != "[s1:session_info s1:adaptation]" {
		t.Fatalf("unexpected sink log %v", sink.types)
	}
}

func TestEndedSessionsEvicted(t *testing.T) {
	s := newTestStore(Options{RetainEnded: 2})
	tick := time.Unix(1000, 0)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("s%d", i)
		s.CreateSession(id, "", "", "")
		s.EndSession(id)
	}
	if n := len(s.ListSessions()); n != 2 {
		t.Fatalf("expected 2 retained sessions, got %d", n)
	}
	if _, ok := s.Dump("s3"); !ok {
		t.Fatalf("expected newest ended session retained")
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	s := newTestStore(Options{})
	s.CreateSession("s1", "", "", "")
	sub := s.Subscribe("s1")
	s.Unsubscribe(sub)
	s.Unsubscribe(sub)
	if s.ObserverCount("s1") != 0 || !sub.Closed() {
		t.Fatalf("expected observer removed")
	}
	s.RecordFused("s1", emotion.Neutral)
}

func TestConcurrentRecordAndRead(t *testing.T) {
	s := newTestStore(Options{ObserverBuffer: 4096})
	s.CreateSession("s1", "", "", "")
	sub := s.Subscribe("s1")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.RecordFused("s1", emotion.Neutral)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.ListSessions()
				s.Dump("s1")
			}
		}()
	}
	wg.Wait()
	if n := len(drain(sub)); n != 401 {
		t.Fatalf("expected 401 messages, got %d", n)
	}
}

func TestObserverOfUnknownSessionLeavesNoRecord(t *testing.T) {
	s := newTestStore(Options{})
	sub := s.Subscribe("ghost")
	if got := decodeType(t, <-sub.Messages()); got != "session_info" {
		t.Fatalf("expected session_info snapshot, got %s", got)
	}
	s.Unsubscribe(sub)

	s.mu.RLock()
	_, ok := s.sessions["ghost"]
	s.mu.RUnlock()
	if ok {
		t.Fatalf("orphan record kept after last observer left")
	}
}

func TestReusedSessionIDStartsEmpty(t *testing.T) {
	s := newTestStore(Options{})
	s.CreateSession("s1", "Ada", "Go", "f")
	sub := s.Subscribe("s1")
	s.RecordTranscript("s1", "user", "old answer", true)
	s.RecordFused("s1", emotion.Neutral)
	s.RecordAdaptation("s1", Adaptation{Action: "maintain"})
	s.RecordFace("s1", analysis.FaceResult{FrameNumber: 1})
	s.EndSession("s1")

	s.CreateSession("s1", "Ada", "Rust", "f")
	dump, ok := s.Dump("s1")
	if !ok {
		t.Fatalf("expected session dump")
	}
	if len(dump.Transcript) != 0 || len(dump.EmotionTimeline) != 0 || len(dump.AdaptationLog) != 0 {
		t.Fatalf("expected empty record after re-init, got %+v", dump)
	}
	if dump.TotalFramesAnalyzed != 0 || dump.LatestFusedEmotions != nil || dump.LatestFaceEmotions != nil {
		t.Fatalf("expected counters and latest results reset, got %+v", dump)
	}
	if dump.Topic != "Rust" || !dump.IsActive {
		t.Fatalf("expected fresh session info, got %+v", dump.SessionInfo)
	}
	if s.ObserverCount("s1") != 1 {
		t.Fatalf("expected existing observer kept")
	}
	msgs := drain(sub)
	if decodeType(t, msgs[len(msgs)-1]) != "session_info" {
		t.Fatalf("expected session_info pushed on re-init")
	}
}
