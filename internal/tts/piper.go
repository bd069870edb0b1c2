package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var ErrPiperModelMissing = errors.New("piper model path is required (set TTS_LOCAL_PIPER_MODEL)")

type PiperConfig struct {
	BinPath    string // default: "piper"
	ModelPath  string // required: path to the .onnx voice model
	SampleRate int    // rate of the voice model, default 22050
}

// Piper synthesizes speech with the Piper binary via subprocess.
// Voice selection and speed are controlled via the model file, not runtime flags.
type Piper struct {
	cfg PiperConfig
}

func NewPiper(cfg PiperConfig) *Piper {
	if cfg.BinPath == "" {
		cfg.BinPath = "piper"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 22050
	}
	return &Piper{cfg: cfg}
}

func (p *Piper) Name() string { return "local-piper" }

// Infer pipes the sentence into Piper via stdin and reads raw PCM16 from stdout.
func (p *Piper) Infer(ctx context.Context, req InferenceRequest) (*InferenceResult, error) {
	if p.cfg.ModelPath == "" {
		return nil, ErrPiperModelMissing
	}

	cmd := exec.CommandContext(ctx, p.cfg.BinPath, "--model", p.cfg.ModelPath, "--output-raw")
	cmd.Stdin = strings.NewReader(req.Text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("piper failed: %w (stderr: %s)", err, stderr.String())
	}

	return &InferenceResult{
		Samples:    pcm16LEToFloat(stdout.Bytes()),
		SampleRate: p.cfg.SampleRate,
		State:      req.Prev,
	}, nil
}
