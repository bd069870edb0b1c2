package stt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nikhilbhutani/voiceover/internal/audio"
	"github.com/nikhilbhutani/voiceover/internal/tempfiles"
)

const (
	// NoSpeech is returned when a chunk transcribes to nothing.
	NoSpeech = "No speech detected"
	// Failed is what the client sees when a chunk could not be transcribed.
	Failed = "Transcription error"
)

// Transcriber turns one audio chunk of any supported container into text.
type Transcriber struct {
	provider  Provider
	converter *audio.Converter
	tmp       *tempfiles.Dir
	language  string
	beamSize  int
}

type TranscriberOptions struct {
	Language string
	BeamSize int
}

func NewTranscriber(p Provider, conv *audio.Converter, tmp *tempfiles.Dir, opts TranscriberOptions) *Transcriber {
	return &Transcriber{
		provider:  p,
		converter: conv,
		tmp:       tmp,
		language:  opts.Language,
		beamSize:  opts.BeamSize,
	}
}

func (t *Transcriber) Provider() string { return t.provider.Name() }

// Transcribe converts the chunk to mono WAV in the scratch directory, runs the
// provider on it and joins the trimmed segment texts. Temp files are removed
// before returning.
func (t *Transcriber) Transcribe(ctx context.Context, chunk []byte, format audio.Format) (string, error) {
	wav, err := t.converter.ToWAV(ctx, chunk, format)
	if err != nil {
		return "", fmt.Errorf("convert chunk: %w", err)
	}

	path, err := t.tmp.Write("chunk", "wav", wav)
	if err != nil {
		return "", err
	}
	defer t.tmp.Remove(path)

	resp, err := t.provider.Transcribe(ctx, Request{
		FilePath: path,
		Language: t.language,
		BeamSize: t.beamSize,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", t.provider.Name(), err)
	}

	text := JoinSegments(resp)
	slog.Info("transcript", "provider", t.provider.Name(), "chars", len(text))
	if text == "" {
		return NoSpeech, nil
	}
	return text, nil
}

// JoinSegments prefers per-segment text and falls back to the full text.
func JoinSegments(resp *Response) string {
	if len(resp.Segments) == 0 {
		return strings.TrimSpace(resp.Text)
	}
	parts := make([]string, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		if txt := strings.TrimSpace(s.Text); txt != "" {
			parts = append(parts, txt)
		}
	}
	return strings.Join(parts, " ")
}
