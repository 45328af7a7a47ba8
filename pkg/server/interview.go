package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/harunnryd/interview/pkg/errorsx"
	"github.com/harunnryd/interview/pkg/logging"
	"github.com/harunnryd/interview/pkg/metrics"
	"github.com/harunnryd/interview/pkg/protocol"
	"github.com/harunnryd/interview/pkg/session"
)

func (s *Server) handleInterview(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions.Draining() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	id := r.PathValue("id")
	if id == "" {
		id = uuid.NewString()
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("interview_upgrade_failed", "session_id", id, "error", err)
		return
	}
	conn.SetReadLimit(s.cfg.MaxMessageBytes)

	client := newClientConn(conn, s.cfg.WriteTimeout, s.cfg.PingInterval)
	ctl := s.deps.NewSession(id, client)
	if prev := s.deps.Sessions.Add(ctl); prev != nil {
		s.log.Warn("interview_replaced", "session_id", id)
	}
	log := logging.NewSessionLogger(s.deps.Logger, "server", id)
	log.Info("interview_connected", "remote_addr", r.RemoteAddr)

	defer func() {
		s.deps.Sessions.Remove(ctl)
		_ = client.Close()
		log.Info("interview_disconnected")
	}()
	s.readInterview(conn, ctl, log)
}

// readInterview is the connection's message loop. Frames are decoded and
// dispatched in arrival order; malformed ones are counted and dropped.
func (s *Server) readInterview(conn *websocket.Conn, ctl *session.Controller, log *slog.Logger) {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("interview_read_failed", "error", err)
			}
			return
		}
		pts := time.Now().UnixNano()

		var frame protocol.Frame
		switch kind {
		case websocket.BinaryMessage:
			frame, err = protocol.DecodeBinary(data, pts)
		case websocket.TextMessage:
			frame, err = protocol.DecodeText(data, pts)
		default:
			continue
		}
		if err != nil {
			s.malformed(ctl.ID(), kind, err, log)
			continue
		}

		switch f := frame.(type) {
		case protocol.AudioFrame:
			ctl.HandleAudio(f.Payload())
		case protocol.VideoFrame:
			ctl.HandleVideo(f.Payload())
		case protocol.ControlFrame:
			msg := f.Message()
			ctl.HandleControl(msg)
			if msg.Type == protocol.TypeEnd {
				return
			}
		}
	}
}

func (s *Server) malformed(sessionID string, kind int, err error, log *slog.Logger) {
	reason := errorsx.ReasonMalformedFrame
	if kind == websocket.TextMessage {
		reason = errorsx.ReasonMalformedControl
	}
	log.Debug("frame_dropped", "reason_code", string(reason), "error", err)
	metrics.Record(s.deps.Observer, metrics.EventMalformedFrame, 1, map[string]string{
		metrics.TagSession: sessionID,
		metrics.TagReason:  string(reason),
	})
}

func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("observer_upgrade_failed", "session_id", id, "error", err)
		return
	}
	conn.SetReadLimit(4096)

	client := newClientConn(conn, s.cfg.WriteTimeout, s.cfg.PingInterval)
	sub := s.deps.Store.Subscribe(id)
	log := logging.NewSessionLogger(s.deps.Logger, "observer", id).With(slog.String("observer_id", sub.ID()))
	defer func() {
		s.deps.Store.Unsubscribe(sub)
		_ = client.Close()
	}()

	// The pump ends when the store drops the subscription, which also closes
	// the socket so the read loop below returns.
	go func() {
		for msg := range sub.Messages() {
			if err := client.SendText(msg); err != nil {
				break
			}
		}
		_ = client.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req protocol.ObserverRequest
		if err := json.Unmarshal(data, &req); err != nil {
			log.Debug("observer_request_invalid", "error", err)
			continue
		}
		switch req.Type {
		case protocol.ObserverPing:
			_ = client.SendJSON(protocol.ObserverRequest{Type: protocol.ObserverPong})
		case protocol.ObserverGetState:
			if !s.deps.Store.SendState(sub) {
				return
			}
		}
	}
}
