package tts

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nikhilbhutani/voiceover/internal/audio"
)

// openAIPCMRate is the fixed rate of the "pcm" speech response format.
const openAIPCMRate = 24000

type OpenAIConfig struct {
	APIKey  string
	BaseURL string // default: "https://api.openai.com/v1"
	Model   string // default: "tts-1"
	Voice   string // default: "alloy"
}

// OpenAI synthesizes with the OpenAI speech API. It has no notion of style
// state; the previous state is handed back unchanged.
type OpenAI struct {
	client *openai.Client
	model  string
	voice  string
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.TTSModel1)
	}
	if cfg.Voice == "" {
		cfg.Voice = string(openai.VoiceAlloy)
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		voice:  cfg.Voice,
	}
}

func (o *OpenAI) Name() string { return "openai-tts" }

func (o *OpenAI) Infer(ctx context.Context, req InferenceRequest) (*InferenceResult, error) {
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.model),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(o.voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Close()

	raw, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	return &InferenceResult{
		Samples:    pcm16LEToFloat(raw),
		SampleRate: openAIPCMRate,
		State:      req.Prev,
	}, nil
}

func pcm16LEToFloat(raw []byte) []float32 {
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return audio.PCM16ToFloat(samples)
}
