package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/nikhilbhutani/voiceover/internal/align"
	"github.com/nikhilbhutani/voiceover/internal/audio"
	"github.com/nikhilbhutani/voiceover/internal/tempfiles"
)

// NoiseDim is the length of the diffusion noise vector drawn per sentence.
const NoiseDim = 256

var ErrEmptyText = errors.New("text is required")

type Params struct {
	Alpha          float64
	DiffusionSteps int
	EmbeddingScale float64
}

// DefaultParams are the sampling settings the service has always used.
func DefaultParams() Params {
	return Params{Alpha: 0.7, DiffusionSteps: 20, EmbeddingScale: 1}
}

// NoiseFunc returns n samples of diffusion noise.
type NoiseFunc func(n int) []float32

// GaussianNoise draws from the standard normal distribution.
func GaussianNoise(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(rand.NormFloat64())
	}
	return out
}

// Sentence records what was produced for one piece of the input text.
type Sentence struct {
	Text    string
	Samples int
	// Durations holds frames per token when the vocoder reported an
	// alignment; nil otherwise.
	Durations []int
}

type Synthesis struct {
	Path       string
	SampleRate int
	Samples    int
	Sentences  []Sentence
}

// Durations concatenates the per-token durations of all sentences.
func (s *Synthesis) Durations() []int {
	var out []int
	for _, sent := range s.Sentences {
		out = append(out, sent.Durations...)
	}
	return out
}

// Frames is the total of Durations.
func (s *Synthesis) Frames() int {
	n := 0
	for _, d := range s.Durations() {
		n += d
	}
	return n
}

type Synthesizer struct {
	vocoder Vocoder
	tmp     *tempfiles.Dir
	params  Params
	noise   NoiseFunc
}

func NewSynthesizer(v Vocoder, tmp *tempfiles.Dir, params Params, noise NoiseFunc) *Synthesizer {
	if noise == nil {
		noise = GaussianNoise
	}
	return &Synthesizer{vocoder: v, tmp: tmp, params: params, noise: noise}
}

func (s *Synthesizer) Vocoder() string { return s.vocoder.Name() }

// SplitSentences splits text on periods, drops blank pieces and puts the
// period back on each one.
func SplitSentences(text string) []string {
	var out []string
	for _, piece := range strings.Split(strings.TrimSpace(text), ".") {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		out = append(out, piece+".")
	}
	return out
}

// Synthesize renders text sentence by sentence, threading the style state
// through the sequence, and writes the concatenated waveform to a WAV file in
// the scratch directory. The caller owns the file and must remove it.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (*Synthesis, error) {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil, ErrEmptyText
	}

	var (
		prev    StyleState
		samples []float32
		rate    int
		out     = &Synthesis{Sentences: make([]Sentence, 0, len(sentences))}
	)

	for i, sentence := range sentences {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := s.vocoder.Infer(ctx, InferenceRequest{
			Text:           sentence,
			Prev:           prev,
			Noise:          s.noise(NoiseDim),
			Alpha:          s.params.Alpha,
			DiffusionSteps: s.params.DiffusionSteps,
			EmbeddingScale: s.params.EmbeddingScale,
		})
		if err != nil {
			return nil, fmt.Errorf("sentence %d: %w", i, err)
		}
		if rate == 0 {
			rate = res.SampleRate
		} else if res.SampleRate != rate {
			return nil, fmt.Errorf("sentence %d: sample rate changed from %d to %d", i, rate, res.SampleRate)
		}

		sent := Sentence{Text: sentence, Samples: len(res.Samples)}
		if res.Alignment != nil {
			durations, err := durations(res.Alignment)
			if err != nil {
				// The waveform is still usable; only the timing is lost.
				slog.Warn("alignment failed", "sentence", i, "vocoder", s.vocoder.Name(), "error", err)
			} else {
				sent.Durations = durations
			}
		}

		out.Sentences = append(out.Sentences, sent)
		samples = append(samples, res.Samples...)
		prev = res.State
	}

	wav, err := audio.EncodeFloatWAV(samples, rate)
	if err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	path, err := s.tmp.Write("tts", "wav", wav)
	if err != nil {
		return nil, err
	}

	out.Path = path
	out.SampleRate = rate
	out.Samples = len(samples)
	return out, nil
}

// durations solves the alignment grid. Missing lengths mean the whole grid
// is valid.
func durations(a *Alignment) ([]int, error) {
	frames, tokens := a.Frames, a.Tokens
	if frames <= 0 {
		frames = a.Scores.Rows
	}
	if tokens <= 0 {
		tokens = a.Scores.Cols
	}
	mask := align.MaskFromLengths(a.Scores.Rows, a.Scores.Cols, frames, tokens)
	path, err := align.Solve(a.Scores, mask)
	if err != nil {
		return nil, err
	}
	return path.Durations(), nil
}
