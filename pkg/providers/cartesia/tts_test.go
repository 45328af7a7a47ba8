package cartesia

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/harunnryd/interview/pkg/resilience"
)

type captured struct {
	auth    string
	version string
	body    request
}

func TestSynthesizeRequestShape(t *testing.T) {
	seen := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var c captured
		c.auth = r.Header.Get("Authorization")
		c.version = r.Header.Get("Cartesia-Version")
		_ = json.NewDecoder(r.Body).Decode(&c.body)
		seen <- c
		_, _ = w.Write([]byte{1, 0, 2, 0, 3})
	}))
	defer srv.Close()

	s := New(Config{APIKey: "key", URL: srv.URL, SampleRate: 16000})
	audio, err := s.Synthesize(context.Background(), "Welcome.")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(audio) != 4 {
		t.Fatalf("expected odd trailing byte trimmed, got %d bytes", len(audio))
	}
	c := <-seen
	if c.auth != "Bearer key" || c.version != APIVersion {
		t.Fatalf("unexpected headers %+v", c)
	}
	b := c.body
	if b.ModelID != DefaultModelID || b.Voice.Mode != "id" || b.Voice.ID != DefaultVoiceID {
		t.Fatalf("unexpected voice/model %+v", b)
	}
	if b.OutputFormat.Container != "raw" || b.OutputFormat.Encoding != "pcm_s16le" || b.OutputFormat.SampleRate != 16000 {
		t.Fatalf("unexpected output format %+v", b.OutputFormat)
	}
	if b.Language != "en" || b.Transcript != "Welcome." {
		t.Fatalf("unexpected body %+v", b)
	}
}

func TestSynthesizeEmptyTextSkipsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request")
	}))
	defer srv.Close()

	audio, err := New(Config{APIKey: "k", URL: srv.URL}).Synthesize(context.Background(), "   ")
	if err != nil || len(audio) != 0 {
		t.Fatalf("expected empty result, got %d bytes, %v", len(audio), err)
	}
}

func TestSynthesizeErrors(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusTooManyRequests)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", int(status.Load()))
	}))
	defer srv.Close()

	s := New(Config{APIKey: "k", URL: srv.URL})
	if _, err := s.Synthesize(context.Background(), "hi"); !resilience.IsRateLimit(err) {
		t.Fatalf("expected rate limit, got %v", err)
	}
	status.Store(http.StatusInternalServerError)
	if _, err := s.Synthesize(context.Background(), "hi"); err == nil || resilience.IsRateLimit(err) {
		t.Fatalf("expected plain error, got %v", err)
	}
}
