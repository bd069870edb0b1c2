package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/nikhilbhutani/voiceover/internal/align"
)

type StyleTTSConfig struct {
	BaseURL    string // default: "http://localhost:7860"
	SampleRate int    // used when the server omits sample_rate
	Timeout    time.Duration
}

// StyleTTS calls a StyleTTS2 inference server. Payloads are large float
// arrays, so they go through sonic rather than encoding/json.
type StyleTTS struct {
	cfg        StyleTTSConfig
	httpClient *http.Client
}

func NewStyleTTS(cfg StyleTTSConfig) *StyleTTS {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:7860"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 24000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &StyleTTS{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *StyleTTS) Name() string { return "styletts2" }

type styleTTSRequest struct {
	Text           string    `json:"text"`
	PrevStyle      []float32 `json:"prev_style,omitempty"`
	Noise          []float32 `json:"noise"`
	Alpha          float64   `json:"alpha"`
	DiffusionSteps int       `json:"diffusion_steps"`
	EmbeddingScale float64   `json:"embedding_scale"`
}

type styleTTSResponse struct {
	Samples    []float32 `json:"samples"`
	SampleRate int       `json:"sample_rate"`
	Style      []float32 `json:"style"`
	Alignment  *struct {
		Scores [][]float64 `json:"scores"`
		Frames int         `json:"frames"`
		Tokens int         `json:"tokens"`
	} `json:"alignment,omitempty"`
}

func (s *StyleTTS) Infer(ctx context.Context, req InferenceRequest) (*InferenceResult, error) {
	data, err := sonic.Marshal(styleTTSRequest{
		Text:           req.Text,
		PrevStyle:      req.Prev,
		Noise:          req.Noise,
		Alpha:          req.Alpha,
		DiffusionSteps: req.DiffusionSteps,
		EmbeddingScale: req.EmbeddingScale,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/infer", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("styletts request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("styletts failed (status %d): %s", resp.StatusCode, string(body))
	}

	var out styleTTSResponse
	if err := sonic.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	result := &InferenceResult{
		Samples:    out.Samples,
		SampleRate: out.SampleRate,
		State:      out.Style,
	}
	if result.SampleRate <= 0 {
		result.SampleRate = s.cfg.SampleRate
	}

	if out.Alignment != nil && len(out.Alignment.Scores) > 0 {
		scores, err := align.MatrixFrom(out.Alignment.Scores)
		if err != nil {
			return nil, fmt.Errorf("alignment scores: %w", err)
		}
		result.Alignment = &Alignment{
			Scores: scores,
			Frames: out.Alignment.Frames,
			Tokens: out.Alignment.Tokens,
		}
	}

	return result, nil
}
