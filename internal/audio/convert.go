package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
)

// G711SampleRate is the fixed rate of telephony mu-law/A-law streams.
const G711SampleRate = 8000

var ErrEmptyAudio = errors.New("empty audio payload")

// Converter normalises arbitrary client audio to mono PCM16 WAV at a fixed
// sample rate. WAV input already in that shape and G.711 input are handled
// in-process; everything else goes through ffmpeg.
type Converter struct {
	FFmpegPath string
	SampleRate int
}

func NewConverter(ffmpegPath string, sampleRate int) *Converter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Converter{FFmpegPath: ffmpegPath, SampleRate: sampleRate}
}

// ToWAV converts data to mono PCM16 WAV at c.SampleRate. An empty format
// means sniff the container.
func (c *Converter) ToWAV(ctx context.Context, data []byte, format Format) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}
	if format == "" || format == FormatUnknown {
		format = Sniff(data)
	}

	switch format {
	case FormatWAV:
		_, info, err := DecodeWAV(data)
		if err == nil && info.Channels == 1 && info.SampleRate == c.SampleRate {
			return data, nil
		}
		// Float or 24-bit WAV is still valid input for ffmpeg.
		if err != nil && !errors.Is(err, ErrUnsupportedWAV) {
			return nil, fmt.Errorf("decode wav: %w", err)
		}
	case FormatMulaw, FormatAlaw:
		samples, err := DecodeG711(data, format)
		if err != nil {
			return nil, err
		}
		if c.SampleRate == G711SampleRate {
			return EncodeWAV(samples, G711SampleRate)
		}
		wav, err := EncodeWAV(samples, G711SampleRate)
		if err != nil {
			return nil, err
		}
		data = wav
	}

	return c.ffmpeg(ctx, data)
}

func (c *Converter) ffmpeg(ctx context.Context, data []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.FFmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-ac", "1",
		"-ar", strconv.Itoa(c.SampleRate),
		"-acodec", "pcm_s16le",
		"-f", "wav",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(data)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w (stderr: %s)", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output")
	}

	return stdout.Bytes(), nil
}
