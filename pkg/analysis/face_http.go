package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type HTTPFaceConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// HTTPFace sends each frame to a landmark detection service and maps the
// returned face mesh locally.
type HTTPFace struct {
	cfg    HTTPFaceConfig
	client *http.Client
	mapper *LandmarkMapper
}

type meshFace struct {
	Landmarks []Landmark `json:"landmarks"`
}

type meshResponse struct {
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Faces  []meshFace `json:"faces"`
}

func NewHTTPFace(cfg HTTPFaceConfig) *HTTPFace {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPFace{cfg: cfg, client: client, mapper: NewLandmarkMapper()}
}

func (h *HTTPFace) Name() string { return "http" }

func (h *HTTPFace) AnalyzeFrame(ctx context.Context, jpeg []byte) (*FaceResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.BaseURL+"/analyze", bytes.NewReader(jpeg))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Accept", "application/json")
	if h.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.cfg.APIKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("face service %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out meshResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("face service decode: %w", err)
	}
	if len(out.Faces) == 0 {
		return nil, nil
	}
	return h.mapper.Map(out.Faces[0].Landmarks, out.Width, out.Height), nil
}

func (h *HTTPFace) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
