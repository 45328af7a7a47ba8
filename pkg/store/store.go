// Package store keeps the per-session analysis record and pushes every change
// to the session's observers.
//
// Each session record has its own lock. Mutations update the record, encode
// the resulting message once and enqueue it on every subscription while the
// lock is held; enqueueing never blocks, so reads and other sessions are never
// held up by a slow observer. A subscription whose queue is full is removed.
package store

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/harunnryd/interview/pkg/analysis"
	"github.com/harunnryd/interview/pkg/emotion"
	"github.com/harunnryd/interview/pkg/metrics"
	"github.com/harunnryd/interview/pkg/protocol"
)

// Sink receives a copy of every broadcast message, for example to forward it
// to a message bus. Publish must not block.
type Sink interface {
	Publish(sessionID, msgType string, payload []byte)
}

type Options struct {
	TimelineSize        int
	SnapshotTimeline    int
	VocalBroadcastEvery int
	ObserverBuffer      int
	RetainEnded         int
	Sink                Sink
	Observer            metrics.Observer
	Logger              *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.TimelineSize <= 0 {
		o.TimelineSize = 500
	}
	if o.SnapshotTimeline <= 0 {
		o.SnapshotTimeline = 50
	}
	if o.VocalBroadcastEvery <= 0 {
		o.VocalBroadcastEvery = 5
	}
	if o.ObserverBuffer <= 0 {
		o.ObserverBuffer = 256
	}
	if o.RetainEnded <= 0 {
		o.RetainEnded = 100
	}
	if o.Observer == nil {
		o.Observer = metrics.NoopObserver{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Store is the process-wide registry of session records. Create one per
// process and pass it to every component that records or reads analysis.
type Store struct {
	opts Options
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*record
}

type record struct {
	mu sync.Mutex

	info    SessionInfo
	started bool
	endedAt time.Time

	timeline    *Ring[TimelineEntry]
	adaptations []Adaptation
	transcript  []TranscriptEntry

	latestFace     *analysis.FaceResult
	latestVocal    *analysis.VocalResult
	latestFused    *emotion.Estimate
	framesAnalyzed int
	chunksAnalyzed int
	subscriptions  map[*Subscription]struct{}
}

func New(opts Options) *Store {
	return &Store{
		opts:     opts.withDefaults(),
		now:      time.Now,
		sessions: make(map[string]*record),
	}
}

func (s *Store) stamp() float64 { return protocol.Unix(s.now()) }

func (s *Store) get(sessionID string) *record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionID]
}

// getOrCreate returns the record for sessionID, creating an empty one on
// first reference.
func (s *Store) getOrCreate(sessionID string) *record {
	if r := s.get(sessionID); r != nil {
		return r
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.sessions[sessionID]; r != nil {
		return r
	}
	r := &record{
		info:          SessionInfo{SessionID: sessionID},
		timeline:      NewRing[TimelineEntry](s.opts.TimelineSize),
		subscriptions: make(map[*Subscription]struct{}),
	}
	s.sessions[sessionID] = r
	return r
}

// CreateSession starts a session record with the identity sent at init and
// pushes fresh session info to observers that subscribed early. Reusing an
// id starts over with an empty record; subscriptions are kept.
func (s *Store) CreateSession(sessionID, participantName, topic, gender string) {
	r := s.getOrCreate(sessionID)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeline = NewRing[TimelineEntry](s.opts.TimelineSize)
	r.adaptations = nil
	r.transcript = nil
	r.latestFace = nil
	r.latestVocal = nil
	r.latestFused = nil
	r.framesAnalyzed = 0
	r.chunksAnalyzed = 0
	r.info = SessionInfo{
		SessionID:       sessionID,
		ParticipantName: participantName,
		Topic:           topic,
		Gender:          gender,
		StartTime:       s.stamp(),
		IsActive:        true,
	}
	r.started = true
	r.endedAt = time.Time{}
	s.broadcastLocked(r, protocol.TypeSessionInfo, s.snapshotLocked(r))
	s.opts.Logger.Info("analysis_session_created", "session_id", sessionID)
}

// EndSession marks a session inactive. The record stays readable until it is
// evicted by newer ended sessions or removed.
func (s *Store) EndSession(sessionID string) {
	r := s.get(sessionID)
	if r == nil {
		return
	}
	r.mu.Lock()
	r.info.IsActive = false
	r.endedAt = s.now()
	s.broadcastLocked(r, protocol.TypeSessionInfo, s.snapshotLocked(r))
	r.mu.Unlock()
	s.evictEnded()
}

// Remove drops a session record and closes its subscriptions.
func (s *Store) Remove(sessionID string) {
	s.mu.Lock()
	r := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for sub := range r.subscriptions {
		s.dropLocked(r, sub)
	}
}

func (s *Store) evictEnded() {
	type ended struct {
		id string
		at time.Time
	}
	var candidates []ended
	s.mu.RLock()
	for id, r := range s.sessions {
		r.mu.Lock()
		if r.started && !r.info.IsActive && len(r.subscriptions) == 0 {
			candidates = append(candidates, ended{id: id, at: r.endedAt})
		}
		r.mu.Unlock()
	}
	s.mu.RUnlock()

	if len(candidates) <= s.opts.RetainEnded {
		return
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].at.Before(candidates[j].at) })
	for _, c := range candidates[:len(candidates)-s.opts.RetainEnded] {
		s.Remove(c.id)
	}
}

// RecordFace stores a face result, appends its emotions to the timeline and
// broadcasts face_update.
func (s *Store) RecordFace(sessionID string, res analysis.FaceResult) {
	r := s.started(sessionID)
	if r == nil {
		return
	}
	defer r.mu.Unlock()

	r.latestFace = &res
	r.framesAnalyzed++
	r.timeline.Push(TimelineEntry{Timestamp: s.stamp(), Source: SourceFace, Estimate: res.Emotions})
	s.broadcastLocked(r, protocol.TypeFaceUpdate, faceUpdateMessage{
		Type:             protocol.TypeFaceUpdate,
		Landmarks:        res.Landmarks,
		Emotions:         res.Emotions,
		MicroExpressions: res.MicroExpressions,
		FrameNumber:      res.FrameNumber,
	})
}

// RecordVocal stores a vocal result. Only every VocalBroadcastEvery-th
// analyzed chunk is broadcast.
func (s *Store) RecordVocal(sessionID string, res analysis.VocalResult) {
	r := s.started(sessionID)
	if r == nil {
		return
	}
	defer r.mu.Unlock()

	r.latestVocal = &res
	r.chunksAnalyzed++
	if r.chunksAnalyzed%s.opts.VocalBroadcastEvery != 0 {
		return
	}
	s.broadcastLocked(r, protocol.TypeVocalUpdate, vocalUpdateMessage{
		Type:     protocol.TypeVocalUpdate,
		Features: res.Features,
		Emotions: res.Emotions,
	})
}

// RecordFused stores the latest fused estimate and broadcasts fused_emotions.
func (s *Store) RecordFused(sessionID string, fused emotion.Estimate) {
	r := s.started(sessionID)
	if r == nil {
		return
	}
	defer r.mu.Unlock()

	ts := s.stamp()
	r.latestFused = &fused
	r.timeline.Push(TimelineEntry{Timestamp: ts, Source: SourceFused, Estimate: fused})
	s.broadcastLocked(r, protocol.TypeFusedEmotions, fusedMessage{
		Type:      protocol.TypeFusedEmotions,
		Emotions:  fused,
		Timestamp: ts,
	})
}

// RecordAdaptation appends to the adaptation log and broadcasts it.
func (s *Store) RecordAdaptation(sessionID string, a Adaptation) {
	r := s.started(sessionID)
	if r == nil {
		return
	}
	defer r.mu.Unlock()

	if a.Timestamp == 0 {
		a.Timestamp = s.stamp()
	}
	r.adaptations = append(r.adaptations, a)
	s.broadcastLocked(r, protocol.TypeAdaptation, adaptationMessage{Type: protocol.TypeAdaptation, Adaptation: a})
}

// RecordTranscript broadcasts a transcript line. Only final lines are kept.
func (s *Store) RecordTranscript(sessionID, role, text string, final bool) {
	r := s.started(sessionID)
	if r == nil {
		return
	}
	defer r.mu.Unlock()

	if final {
		r.transcript = append(r.transcript, TranscriptEntry{
			Timestamp: s.stamp(),
			Role:      role,
			Text:      text,
			IsFinal:   true,
		})
	}
	s.broadcastLocked(r, protocol.TypeTranscript, transcriptMessage{
		Type:    protocol.TypeTranscript,
		Role:    role,
		Text:    text,
		IsFinal: final,
	})
}

// started returns the locked record for an initialized session, or nil.
func (s *Store) started(sessionID string) *record {
	r := s.get(sessionID)
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	return r
}

// Subscribe registers an observer. The session snapshot is the first message
// on the returned subscription; every later change follows it in order.
func (s *Store) Subscribe(sessionID string) *Subscription {
	r := s.getOrCreate(sessionID)
	sub := newSubscription(sessionID, s.opts.ObserverBuffer)

	r.mu.Lock()
	defer r.mu.Unlock()
	payload, err := json.Marshal(s.snapshotLocked(r))
	if err != nil || !sub.Push(payload) {
		sub.close()
		return sub
	}
	r.subscriptions[sub] = struct{}{}
	metrics.Record(s.opts.Observer, metrics.EventObserverDelta, 1, map[string]string{metrics.TagSession: sessionID})
	s.opts.Logger.Info("observer_connected", "session_id", sessionID, "observer_id", sub.ID())
	return sub
}

// Unsubscribe removes an observer and closes its queue. Safe to call more
// than once.
func (s *Store) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	r := s.get(sub.SessionID())
	if r == nil {
		sub.close()
		return
	}
	r.mu.Lock()
	if _, ok := r.subscriptions[sub]; ok {
		s.dropLocked(r, sub)
	} else {
		sub.close()
	}
	orphan := !r.started && len(r.subscriptions) == 0
	r.mu.Unlock()
	if orphan {
		s.forgetOrphan(sub.SessionID(), r)
	}
}

// forgetOrphan drops a record that only existed because an observer asked
// for a session that never started.
func (s *Store) forgetOrphan(sessionID string, r *record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[sessionID] != r {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started && len(r.subscriptions) == 0 {
		delete(s.sessions, sessionID)
	}
}

// SendState queues a full_state message for one observer, behind anything
// already queued for it.
func (s *Store) SendState(sub *Subscription) bool {
	r := s.get(sub.SessionID())
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	payload, err := json.Marshal(fullStateMessage{Type: protocol.TypeFullState, SessionDump: s.dumpLocked(r)})
	if err != nil {
		return false
	}
	if !sub.Push(payload) {
		s.dropLocked(r, sub)
		return false
	}
	return true
}

// ObserverCount returns how many observers a session has.
func (s *Store) ObserverCount(sessionID string) int {
	r := s.get(sessionID)
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscriptions)
}

func (s *Store) dropLocked(r *record, sub *Subscription) {
	delete(r.subscriptions, sub)
	if sub.close() {
		metrics.Record(s.opts.Observer, metrics.EventObserverDelta, -1, map[string]string{metrics.TagSession: sub.SessionID()})
		s.opts.Logger.Info("observer_removed", "session_id", sub.SessionID(), "observer_id", sub.ID())
	}
}

func (s *Store) broadcastLocked(r *record, msgType string, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.opts.Logger.Warn("broadcast_encode_failed", "session_id", r.info.SessionID, "type", msgType, "error", err)
		return
	}
	if s.opts.Sink != nil {
		s.opts.Sink.Publish(r.info.SessionID, msgType, payload)
	}
	if len(r.subscriptions) == 0 {
		return
	}
	subs := make([]*Subscription, 0, len(r.subscriptions))
	for sub := range r.subscriptions {
		subs = append(subs, sub)
	}
	for _, sub := range subs {
		if !sub.Push(payload) {
			s.dropLocked(r, sub)
		}
	}
}

func (s *Store) snapshotLocked(r *record) snapshotMessage {
	return snapshotMessage{
		Type:            protocol.TypeSessionInfo,
		SessionInfo:     r.info,
		EmotionTimeline: r.timeline.Last(s.opts.SnapshotTimeline),
		AdaptationLog:   append([]Adaptation{}, r.adaptations...),
		Transcript:      append([]TranscriptEntry{}, r.transcript...),
	}
}

func (s *Store) dumpLocked(r *record) SessionDump {
	d := SessionDump{
		SessionInfo:              r.info,
		EmotionTimeline:          r.timeline.Items(),
		AdaptationLog:            append([]Adaptation{}, r.adaptations...),
		Transcript:               append([]TranscriptEntry{}, r.transcript...),
		TotalFramesAnalyzed:      r.framesAnalyzed,
		TotalAudioChunksAnalyzed: r.chunksAnalyzed,
	}
	if r.latestFace != nil {
		face := r.latestFace.Emotions
		d.LatestFaceEmotions = &face
		d.LatestMicroExpressions = copyMap(r.latestFace.MicroExpressions)
		d.LatestFaceLandmarks = append([]analysis.Landmark(nil), r.latestFace.Landmarks...)
	}
	if r.latestVocal != nil {
		vocal := r.latestVocal.Emotions
		features := r.latestVocal.Features
		d.LatestVocalEmotions = &vocal
		d.LatestVocalFeatures = &features
	}
	if r.latestFused != nil {
		fused := *r.latestFused
		d.LatestFusedEmotions = &fused
	}
	return d
}

func copyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ListSessions returns a summary of every initialized session, newest first.
func (s *Store) ListSessions() []SessionSummary {
	s.mu.RLock()
	records := make([]*record, 0, len(s.sessions))
	for _, r := range s.sessions {
		records = append(records, r)
	}
	s.mu.RUnlock()

	out := make([]SessionSummary, 0, len(records))
	for _, r := range records {
		r.mu.Lock()
		if r.started {
			out = append(out, SessionSummary{
				SessionInfo: r.info,
				TotalFrames: r.framesAnalyzed,
				Observers:   len(r.subscriptions),
			})
		}
		r.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime > out[j].StartTime })
	return out
}

// Dump returns a copy of a session's full record.
func (s *Store) Dump(sessionID string) (SessionDump, bool) {
	r := s.get(sessionID)
	if r == nil {
		return SessionDump{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return SessionDump{}, false
	}
	return s.dumpLocked(r), true
}
