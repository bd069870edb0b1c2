package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidWAV     = errors.New("invalid WAV data")
	ErrUnsupportedWAV = errors.New("unsupported WAV encoding")
)

// WAVInfo describes the fmt chunk of a PCM16 WAV stream.
type WAVInfo struct {
	SampleRate int
	Channels   int
}

// EncodeWAV writes mono PCM16 samples as a canonical 44-byte-header WAV.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	const (
		channels      = 1
		bitsPerSample = 16
	)
	dataSize := uint32(len(samples) * 2)

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(buf, binary.LittleEndian, struct {
		Size          uint32
		AudioFormat   uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
	}{
		Size:          16,
		AudioFormat:   1,
		Channels:      channels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * channels * bitsPerSample / 8),
		BlockAlign:    channels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
	})
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, dataSize)

	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// EncodeFloatWAV converts [-1, 1] float samples to PCM16, clipping out of
// range values, and wraps them in a WAV container.
func EncodeFloatWAV(samples []float32, sampleRate int) ([]byte, error) {
	return EncodeWAV(FloatToPCM16(samples), sampleRate)
}

func FloatToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, v := range samples {
		f := math.Max(-1, math.Min(1, float64(v)))
		out[i] = int16(math.Round(f * math.MaxInt16))
	}
	return out
}

func PCM16ToFloat(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, v := range samples {
		out[i] = float32(v) / math.MaxInt16
	}
	return out
}

// DecodeWAV reads PCM16 samples out of a RIFF/WAVE stream. Unknown chunks
// (LIST, fact, ...) are skipped. Multi-channel audio is returned interleaved.
func DecodeWAV(data []byte) ([]int16, WAVInfo, error) {
	if Sniff(data) != FormatWAV {
		return nil, WAVInfo{}, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}

	var (
		info    WAVInfo
		haveFmt bool
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(data) {
			// ffmpeg writes 0xFFFFFFFF sizes when streaming to a pipe.
			if id == "data" {
				end = len(data)
			} else {
				return nil, WAVInfo{}, fmt.Errorf("%w: chunk %q overruns buffer", ErrInvalidWAV, id)
			}
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, WAVInfo{}, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}
			audioFormat := binary.LittleEndian.Uint16(data[body:])
			info.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bits := binary.LittleEndian.Uint16(data[body+14:])
			if audioFormat != 1 && audioFormat != 0xFFFE {
				return nil, WAVInfo{}, fmt.Errorf("%w: format tag %d", ErrUnsupportedWAV, audioFormat)
			}
			if bits != 16 {
				return nil, WAVInfo{}, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedWAV, bits)
			}
			if info.Channels < 1 {
				return nil, WAVInfo{}, fmt.Errorf("%w: %d channels", ErrInvalidWAV, info.Channels)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, WAVInfo{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalidWAV)
			}
			raw := data[body:end]
			samples := make([]int16, len(raw)/2)
			for i := range samples {
				samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
			}
			return samples, info, nil
		}

		pos = end + size%2
	}

	return nil, WAVInfo{}, fmt.Errorf("%w: no data chunk", ErrInvalidWAV)
}
