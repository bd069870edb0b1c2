package tts

import (
	"context"
	"fmt"

	"github.com/nikhilbhutani/voiceover/internal/align"
	"github.com/nikhilbhutani/voiceover/internal/config"
)

// StyleState is the conditioning vector carried from one sentence to the
// next so consecutive sentences keep a consistent voice.
type StyleState []float32

// InferenceRequest holds the inputs for one sentence.
type InferenceRequest struct {
	Text           string
	Prev           StyleState
	Noise          []float32
	Alpha          float64
	DiffusionSteps int
	EmbeddingScale float64
}

// Alignment is the frame-by-token compatibility grid the model produced for
// a sentence, padded to Scores' shape.
type Alignment struct {
	Scores align.Matrix
	Frames int
	Tokens int
}

type InferenceResult struct {
	Samples    []float32
	SampleRate int
	State      StyleState
	Alignment  *Alignment
}

// Vocoder is the interface for text-to-speech backends.
type Vocoder interface {
	Infer(ctx context.Context, req InferenceRequest) (*InferenceResult, error)
	Name() string
}

// NewVocoder builds the backend selected by cfg.Backend.
func NewVocoder(cfg config.TTSConfig) (Vocoder, error) {
	switch cfg.Backend {
	case "styletts", "":
		return NewStyleTTS(StyleTTSConfig{BaseURL: cfg.StyleTTSURL, SampleRate: cfg.SampleRate}), nil
	case "openai":
		return NewOpenAI(OpenAIConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Voice:   cfg.OpenAIVoice,
		}), nil
	case "local":
		return NewPiper(PiperConfig{BinPath: cfg.LocalBinPath, ModelPath: cfg.LocalModel, SampleRate: cfg.LocalRate}), nil
	default:
		return nil, fmt.Errorf("unknown tts backend %q", cfg.Backend)
	}
}
