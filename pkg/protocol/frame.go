// Package protocol defines the wire format shared by the interview socket and
// the observer socket.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Binary frame type prefixes.
const (
	PrefixAudio byte = 0x01
	PrefixVideo byte = 0x02
)

type Kind string

const (
	KindAudio   Kind = "audio"
	KindVideo   Kind = "video"
	KindControl Kind = "control"
)

var (
	ErrEmptyFrame     = errors.New("empty frame")
	ErrEmptyPayload   = errors.New("frame has a type prefix but no payload")
	ErrOddPCM         = errors.New("pcm16 payload has odd length")
	ErrUnknownControl = errors.New("unknown control message")
)

type Frame interface {
	Kind() Kind
	PTS() int64
}

// AudioFrame carries PCM 16-bit signed little-endian mono samples.
type AudioFrame struct {
	pts  int64
	data []byte
}

func NewAudioFrame(pts int64, data []byte) AudioFrame {
	return AudioFrame{pts: pts, data: data}
}

func (a AudioFrame) Kind() Kind      { return KindAudio }
func (a AudioFrame) PTS() int64      { return a.pts }
func (a AudioFrame) Payload() []byte { return a.data }

// Samples is the number of 16-bit samples in the frame.
func (a AudioFrame) Samples() int { return len(a.data) / 2 }

// VideoFrame carries one JPEG-encoded image.
type VideoFrame struct {
	pts  int64
	data []byte
}

func NewVideoFrame(pts int64, data []byte) VideoFrame {
	return VideoFrame{pts: pts, data: data}
}

func (v VideoFrame) Kind() Kind      { return KindVideo }
func (v VideoFrame) PTS() int64      { return v.pts }
func (v VideoFrame) Payload() []byte { return v.data }

// ControlFrame carries a decoded client JSON message.
type ControlFrame struct {
	pts int64
	msg ClientMessage
}

func (c ControlFrame) Kind() Kind             { return KindControl }
func (c ControlFrame) PTS() int64             { return c.pts }
func (c ControlFrame) Message() ClientMessage { return c.msg }

// DecodeBinary splits a binary websocket message into an audio or video frame.
// Messages without a known prefix are treated as raw audio.
func DecodeBinary(b []byte, pts int64) (Frame, error) {
	if len(b) == 0 {
		return nil, ErrEmptyFrame
	}
	switch b[0] {
	case PrefixAudio:
		return decodeAudio(b[1:], pts)
	case PrefixVideo:
		if len(b) == 1 {
			return nil, ErrEmptyPayload
		}
		return NewVideoFrame(pts, b[1:]), nil
	default:
		return decodeAudio(b, pts)
	}
}

func decodeAudio(b []byte, pts int64) (Frame, error) {
	if len(b) == 0 {
		return nil, ErrEmptyPayload
	}
	if len(b)%2 != 0 {
		return nil, ErrOddPCM
	}
	return NewAudioFrame(pts, b), nil
}

// DecodeText parses a client JSON control message.
func DecodeText(b []byte, pts int64) (Frame, error) {
	var msg ClientMessage
	if err := json.Unmarshal(b, &msg); err != nil {
		return nil, fmt.Errorf("decode control: %w", err)
	}
	msg.Type = strings.ToLower(strings.TrimSpace(msg.Type))
	switch msg.Type {
	case TypeInit, TypeEnd:
		return ControlFrame{pts: pts, msg: msg}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownControl, msg.Type)
	}
}

// EncodeAudio prefixes PCM bytes for a client that expects typed frames.
func EncodeAudio(pcm []byte) []byte {
	out := make([]byte, 0, len(pcm)+1)
	out = append(out, PrefixAudio)
	return append(out, pcm...)
}

// EncodeVideo prefixes a JPEG image.
func EncodeVideo(jpeg []byte) []byte {
	out := make([]byte, 0, len(jpeg)+1)
	out = append(out, PrefixVideo)
	return append(out, jpeg...)
}

// Chunk splits audio into size-byte slices that share the input's memory.
// The last chunk may be shorter.
func Chunk(audio []byte, size int) [][]byte {
	if size <= 0 || len(audio) == 0 {
		return nil
	}
	out := make([][]byte, 0, (len(audio)+size-1)/size)
	for start := 0; start < len(audio); start += size {
		end := min(start+size, len(audio))
		out = append(out, audio[start:end])
	}
	return out
}
